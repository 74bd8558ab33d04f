// Package ledger contains the check-in ledger engine: the atomic
// check-in → streak → points transition, owner retraction with full counter
// recompute, and the bounded same-day caption edit.
package ledger

import (
	"context"
	"sort"
	"time"

	"github.com/darezone/darezone-ledger/internal/domain/challenge"
	"github.com/darezone/darezone-ledger/internal/domain/checkin"
	"github.com/darezone/darezone-ledger/internal/domain/membership"
	"github.com/darezone/darezone-ledger/internal/domain/shared"
	"github.com/darezone/darezone-ledger/pkg/keymutex"
	"github.com/darezone/darezone-ledger/pkg/logger"
	"github.com/darezone/darezone-ledger/pkg/retry"
	"github.com/darezone/darezone-ledger/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STORE
// ══════════════════════════════════════════════════════════════════════════════

// Store is the persistence surface the ledger needs. Commit methods are
// all-or-nothing: the check-in row and the membership counters move together
// in one transaction, and the store enforces uniqueness on the check-in
// natural key as defense in depth against lost-update races.
type Store interface {
	// GetChallenge loads a challenge by ID.
	GetChallenge(ctx context.Context, challengeID string) (*challenge.Challenge, error)

	// GetMembership loads the membership for (challengeID, userID).
	GetMembership(ctx context.Context, challengeID, userID string) (*membership.Membership, error)

	// GetCheckIn loads the check-in for the full natural key, or a
	// not-found error when the member has not checked in that day.
	GetCheckIn(ctx context.Context, challengeID, habitID, userID string, day timeutil.Day) (*checkin.CheckIn, error)

	// GetCheckInByID loads a check-in by surrogate ID.
	GetCheckInByID(ctx context.Context, id string) (*checkin.CheckIn, error)

	// ListCheckIns returns every check-in for (challengeID, habitID, userID),
	// in no particular order.
	ListCheckIns(ctx context.Context, challengeID, habitID, userID string) ([]*checkin.CheckIn, error)

	// CommitCheckIn inserts the check-in and persists the updated membership
	// counters atomically. Returns a duplicate error if the natural key
	// already exists.
	CommitCheckIn(ctx context.Context, ci *checkin.CheckIn, m *membership.Membership) error

	// CommitRetraction deletes the check-in and persists the restated
	// membership counters atomically.
	CommitRetraction(ctx context.Context, checkInID string, m *membership.Membership) error

	// UpdateCheckIn persists a caption edit.
	UpdateCheckIn(ctx context.Context, ci *checkin.CheckIn) error
}

// ══════════════════════════════════════════════════════════════════════════════
// COMMANDS & RESULTS
// ══════════════════════════════════════════════════════════════════════════════

// RecordCheckInCommand contains the data to record one check-in.
type RecordCheckInCommand struct {
	ChallengeID string
	HabitID     string
	UserID      string
	Evidence    checkin.Evidence
}

// Validate validates the command.
func (c RecordCheckInCommand) Validate() error {
	if c.ChallengeID == "" || c.HabitID == "" || c.UserID == "" {
		return shared.NewDomainError("ledger", "RecordCheckIn", shared.ErrEmptyValue, "challenge, habit and user IDs are required")
	}
	if !c.Evidence.HasAny() {
		return shared.NewDomainError("ledger", "RecordCheckIn", shared.ErrInvalidInput, "at least one evidence (photo/video/caption) required")
	}
	return nil
}

// RecordCheckInResult is the outcome of a committed check-in.
type RecordCheckInResult struct {
	CheckIn *checkin.CheckIn

	// Streak is the member's streak after this check-in.
	Streak int

	// Points is the award for this check-in alone.
	Points int

	// Broken is true when a previous streak ended before this check-in.
	Broken bool
}

// RetractCheckInCommand identifies the check-in to delete.
type RetractCheckInCommand struct {
	CheckInID string

	// UserID is the caller; only the owner may retract.
	UserID string
}

// RetractCheckInResult reports the restated counters.
type RetractCheckInResult struct {
	ChallengeID string
	HabitID     string

	// Streak is the member's streak after the recompute.
	Streak int

	// Points is the member's point total after the recompute.
	Points int
}

// EditCaptionCommand replaces the caption of a same-day check-in.
type EditCaptionCommand struct {
	CheckInID string
	UserID    string
	Caption   string
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVICE
// ══════════════════════════════════════════════════════════════════════════════

// Config holds the point-award constants. They are supplied by the caller's
// configuration, never hardcoded here.
type Config struct {
	// BasePoints is the award for a regular check-in.
	BasePoints int

	// StreakMultiplier scales BasePoints on the consecutive-day branch only.
	StreakMultiplier int
}

// Service implements the check-in ledger operations.
type Service struct {
	store     Store
	guard     *keymutex.KeyMutex
	clock     timeutil.Clock
	publisher shared.EventPublisher
	retrier   *retry.Retrier
	log       *logger.Logger
	cfg       Config
}

// NewService creates the check-in ledger service.
func NewService(store Store, guard *keymutex.KeyMutex, clock timeutil.Clock, publisher shared.EventPublisher, log *logger.Logger, cfg Config) *Service {
	return &Service{
		store:     store,
		guard:     guard,
		clock:     clock,
		publisher: publisher,
		retrier:   retry.StoreRetrier(),
		log:       log.With(logger.Component("ledger")),
		cfg:       cfg,
	}
}

// RecordCheckIn commits one check-in and advances the member's streak and
// points. At most one check-in per (challenge, habit, user, day) can ever
// succeed; concurrent calls for the same key serialize on the guard and the
// loser fails with a duplicate error.
func (s *Service) RecordCheckIn(ctx context.Context, cmd RecordCheckInCommand) (*RecordCheckInResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	unlock, err := s.guard.Lock(ctx, checkin.Key(cmd.ChallengeID, cmd.HabitID, cmd.UserID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var result *RecordCheckInResult
	err = s.retrier.Do(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = s.recordCheckIn(ctx, cmd)
		return classifyStoreErr(opErr)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("check-in recorded",
		logger.ChallengeID(cmd.ChallengeID),
		logger.HabitID(cmd.HabitID),
		logger.UserID(cmd.UserID),
		logger.Streak(result.Streak),
		logger.Points(result.Points),
	)

	s.publish(shared.NewCheckInRecordedEvent(
		result.CheckIn.ID, cmd.ChallengeID, cmd.HabitID, cmd.UserID,
		result.CheckIn.Day.String(), result.Streak, result.Points, result.Broken,
	))
	switch {
	case result.Broken:
		s.publish(shared.NewStreakBrokenEvent(cmd.ChallengeID, cmd.HabitID, cmd.UserID, result.Streak))
	case result.Streak > 1:
		s.publish(shared.NewStreakExtendedEvent(cmd.ChallengeID, cmd.HabitID, cmd.UserID, result.Streak))
	}
	s.publish(shared.NewChallengeDirtyEvent(cmd.ChallengeID))

	return result, nil
}

// recordCheckIn is one attempt of the record transition, run under the guard.
func (s *Service) recordCheckIn(ctx context.Context, cmd RecordCheckInCommand) (*RecordCheckInResult, error) {
	ch, err := s.store.GetChallenge(ctx, cmd.ChallengeID)
	if err != nil {
		return nil, err
	}
	if !ch.HasHabit(cmd.HabitID) {
		return nil, shared.NewDomainError("ledger", "RecordCheckIn", shared.ErrInvalidInput, "habit does not belong to this challenge")
	}

	m, err := s.store.GetMembership(ctx, cmd.ChallengeID, cmd.UserID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.ErrNotAMember
		}
		return nil, err
	}
	if !m.IsActive() {
		return nil, shared.ErrNotAMember
	}

	now := s.clock.Now()
	today := s.clock.Today()

	if _, err := s.store.GetCheckIn(ctx, cmd.ChallengeID, cmd.HabitID, cmd.UserID, today); err == nil {
		return nil, shared.ErrDuplicateCheckIn
	} else if !shared.IsNotFound(err) {
		return nil, err
	}

	lastDay, err := s.lastCheckInDay(ctx, cmd.ChallengeID, cmd.HabitID, cmd.UserID)
	if err != nil {
		return nil, err
	}

	streak, points, broken, err := s.deriveStreak(lastDay, today, m.CurrentStreak)
	if err != nil {
		s.log.Error("streak derivation hit a corrupted ledger",
			logger.ChallengeID(cmd.ChallengeID),
			logger.HabitID(cmd.HabitID),
			logger.UserID(cmd.UserID),
			logger.Err(err),
		)
		return nil, err
	}

	ci, err := checkin.New(cmd.ChallengeID, cmd.HabitID, cmd.UserID, today, cmd.Evidence, now)
	if err != nil {
		return nil, err
	}

	m.ApplyCheckIn(streak, points, now)

	if err := s.store.CommitCheckIn(ctx, ci, m); err != nil {
		if shared.IsDuplicate(err) {
			// The uniqueness constraint caught a race the guard could not
			// see (another process or a replayed attempt).
			return nil, shared.ErrDuplicateCheckIn
		}
		return nil, err
	}

	return &RecordCheckInResult{CheckIn: ci, Streak: streak, Points: points, Broken: broken}, nil
}

// deriveStreak computes the streak transition from the last check-in day.
func (s *Service) deriveStreak(lastDay, today timeutil.Day, currentStreak int) (streak, points int, broken bool, err error) {
	switch {
	case lastDay.IsZero():
		return 1, s.cfg.BasePoints, false, nil
	case lastDay == today.Prev():
		return currentStreak + 1, s.cfg.BasePoints * s.cfg.StreakMultiplier, false, nil
	case lastDay.Before(today.Prev()):
		return 1, s.cfg.BasePoints, true, nil
	default:
		// A check-in for today (or later) survived the duplicate guard.
		// That is a corrupted ledger, not a user mistake.
		return 0, 0, false, shared.ErrStreakCorrupted
	}
}

// lastCheckInDay returns the most recent check-in day for the key, or the
// zero day when the member has never checked in for this habit.
func (s *Service) lastCheckInDay(ctx context.Context, challengeID, habitID, userID string) (timeutil.Day, error) {
	history, err := s.store.ListCheckIns(ctx, challengeID, habitID, userID)
	if err != nil {
		return timeutil.Day{}, err
	}
	var last timeutil.Day
	for _, ci := range history {
		if last.IsZero() || ci.Day.After(last) {
			last = ci.Day
		}
	}
	return last, nil
}

// RetractCheckIn deletes an owner's check-in and restates the membership
// counters from the remaining history. Counters are recomputed wholesale,
// never decremented in place: removing a middle check-in can change the
// streak chain in ways a local decrement cannot express.
func (s *Service) RetractCheckIn(ctx context.Context, cmd RetractCheckInCommand) (*RetractCheckInResult, error) {
	if cmd.CheckInID == "" || cmd.UserID == "" {
		return nil, shared.NewDomainError("ledger", "RetractCheckIn", shared.ErrEmptyValue, "check-in and user IDs are required")
	}

	ci, err := s.store.GetCheckInByID(ctx, cmd.CheckInID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.ErrCheckInNotFound
		}
		return nil, err
	}
	if !ci.IsOwnedBy(cmd.UserID) {
		return nil, shared.ErrNotCheckInOwner
	}

	unlock, err := s.guard.Lock(ctx, checkin.Key(ci.ChallengeID, ci.HabitID, ci.UserID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var result *RetractCheckInResult
	err = s.retrier.Do(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = s.retractCheckIn(ctx, ci)
		return classifyStoreErr(opErr)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("check-in retracted",
		logger.CheckInID(ci.ID),
		logger.ChallengeID(ci.ChallengeID),
		logger.UserID(ci.UserID),
		logger.Streak(result.Streak),
	)

	s.publish(shared.NewCheckInRetractedEvent(ci.ID, ci.ChallengeID, ci.HabitID, ci.UserID, result.Streak))
	s.publish(shared.NewChallengeDirtyEvent(ci.ChallengeID))

	return result, nil
}

// retractCheckIn is one attempt of the retraction, run under the guard.
func (s *Service) retractCheckIn(ctx context.Context, ci *checkin.CheckIn) (*RetractCheckInResult, error) {
	// Re-read under the lock: a concurrent retraction may have won.
	if _, err := s.store.GetCheckInByID(ctx, ci.ID); err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.ErrCheckInNotFound
		}
		return nil, err
	}

	m, err := s.store.GetMembership(ctx, ci.ChallengeID, ci.UserID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.ErrMembershipNotFound
		}
		return nil, err
	}

	history, err := s.store.ListCheckIns(ctx, ci.ChallengeID, ci.HabitID, ci.UserID)
	if err != nil {
		return nil, err
	}

	remaining := make([]*checkin.CheckIn, 0, len(history))
	for _, h := range history {
		if h.ID != ci.ID {
			remaining = append(remaining, h)
		}
	}

	currentStreak, longestStreak, points, lastAt := restate(remaining, s.clock.Today(), s.cfg)
	m.RestateFromHistory(currentStreak, longestStreak, len(remaining), points, lastAt)

	if err := s.store.CommitRetraction(ctx, ci.ID, m); err != nil {
		return nil, err
	}

	return &RetractCheckInResult{
		ChallengeID: ci.ChallengeID,
		HabitID:     ci.HabitID,
		Streak:      currentStreak,
		Points:      points,
	}, nil
}

// restate replays the remaining history and recomputes every ledger-derived
// counter: streaks from the day set, points by replaying the award rule over
// days in order (first day of a run earns base, each consecutive day earns
// base times the multiplier).
func restate(remaining []*checkin.CheckIn, today timeutil.Day, cfg Config) (currentStreak, longestStreak, points int, lastAt *time.Time) {
	if len(remaining) == 0 {
		return 0, 0, 0, nil
	}

	days := make([]timeutil.Day, 0, len(remaining))
	for _, ci := range remaining {
		days = append(days, ci.Day)
		if lastAt == nil || ci.CreatedAt.After(*lastAt) {
			at := ci.CreatedAt
			lastAt = &at
		}
	}

	currentStreak, longestStreak = membership.StreakHistory(days, today)

	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	for i, d := range days {
		if i > 0 && days[i-1] == d.Prev() {
			points += cfg.BasePoints * cfg.StreakMultiplier
		} else {
			points += cfg.BasePoints
		}
	}

	return currentStreak, longestStreak, points, lastAt
}

// EditCaption replaces the caption of a same-day check-in. Everything else
// about a committed check-in is immutable.
func (s *Service) EditCaption(ctx context.Context, cmd EditCaptionCommand) (*checkin.CheckIn, error) {
	if cmd.CheckInID == "" || cmd.UserID == "" {
		return nil, shared.NewDomainError("ledger", "EditCaption", shared.ErrEmptyValue, "check-in and user IDs are required")
	}

	ci, err := s.store.GetCheckInByID(ctx, cmd.CheckInID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.ErrCheckInNotFound
		}
		return nil, err
	}
	if !ci.IsOwnedBy(cmd.UserID) {
		return nil, shared.ErrNotCheckInOwner
	}

	if err := ci.EditCaption(cmd.Caption, s.clock.Today(), s.clock.Now()); err != nil {
		return nil, err
	}

	if err := s.store.UpdateCheckIn(ctx, ci); err != nil {
		return nil, err
	}

	return ci, nil
}

// publish delivers an event, logging instead of failing the operation when
// the bus rejects it.
func (s *Service) publish(event shared.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(event); err != nil {
		s.log.Warn("event publish failed",
			logger.String("event_type", string(event.EventType())),
			logger.Err(err),
		)
	}
}

// classifyStoreErr marks transient store failures retryable and everything
// else permanent, so the retrier replays only what is safe to replay.
func classifyStoreErr(err error) error {
	if err == nil {
		return nil
	}
	if shared.IsRetryable(err) {
		return retry.Retryable(err)
	}
	return retry.Permanent(err)
}
