// Package stats contains the aggregator that rebuilds the per-challenge read
// models (member ranks, habit aggregates, challenge summary) from ledger
// state. Every rebuild is wholesale from a consistent snapshot; aggregates
// are never patched incrementally, so a failed write can never leave a
// half-updated rank table.
package stats

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/darezone/darezone-ledger/internal/domain/shared"
	"github.com/darezone/darezone-ledger/internal/domain/stats"
	"github.com/darezone/darezone-ledger/pkg/logger"
	"github.com/darezone/darezone-ledger/pkg/retry"
	"github.com/darezone/darezone-ledger/pkg/timeutil"
)

// Store is the persistence surface the aggregator needs.
type Store interface {
	// Snapshot reads every source record for the challenge as of one
	// consistent instant. Mixing pre- and post-write values would let two
	// members appear simultaneously at rank 1.
	Snapshot(ctx context.Context, challengeID string) (*stats.Snapshot, error)

	// SaveResult replaces the challenge's aggregates wholesale.
	SaveResult(ctx context.Context, result *stats.Result) error

	// ListDayCheckIns returns the (habitID, userID, createdAt, photoURL)
	// tuples for one challenge and day, for the today board.
	ListDayCheckIns(ctx context.Context, challengeID string, day timeutil.Day) ([]stats.DayCheckIn, error)
}

// RankCache is the optional hot-path read model for leaderboards. Failures
// are logged and swallowed; the store remains the source of truth.
type RankCache interface {
	// StoreRanks replaces the cached rank tables for one challenge.
	StoreRanks(ctx context.Context, challengeID string, members []*stats.MemberStat) error
}

// Service implements the stats aggregator.
type Service struct {
	store     Store
	cache     RankCache
	clock     timeutil.Clock
	publisher shared.EventPublisher
	retrier   *retry.Retrier
	log       *logger.Logger

	// flight collapses concurrent Refresh calls for the same challenge to
	// one in-flight rebuild; later callers wait for and share its result.
	flight singleflight.Group
}

// NewService creates the stats aggregator service. cache may be nil.
func NewService(store Store, cache RankCache, clock timeutil.Clock, publisher shared.EventPublisher, log *logger.Logger) *Service {
	return &Service{
		store:     store,
		cache:     cache,
		clock:     clock,
		publisher: publisher,
		retrier:   retry.StoreRetrier(),
		log:       log.With(logger.Component("stats")),
	}
}

// Refresh fully recomputes every aggregate for one challenge from the
// current ledger state. Idempotent and safe to run concurrently with writes.
func (s *Service) Refresh(ctx context.Context, challengeID string) (*stats.Result, error) {
	if challengeID == "" {
		return nil, shared.NewDomainError("stats", "Refresh", shared.ErrEmptyValue, "challenge ID is required")
	}

	v, err, _ := s.flight.Do(challengeID, func() (interface{}, error) {
		var result *stats.Result
		err := s.retrier.Do(ctx, func(ctx context.Context) error {
			var opErr error
			result, opErr = s.refresh(ctx, challengeID)
			if opErr == nil {
				return nil
			}
			if shared.IsRetryable(opErr) {
				return retry.Retryable(opErr)
			}
			return retry.Permanent(opErr)
		})
		return result, err
	})
	if err != nil {
		return nil, err
	}

	return v.(*stats.Result), nil
}

// refresh is one rebuild attempt.
func (s *Service) refresh(ctx context.Context, challengeID string) (*stats.Result, error) {
	started := s.clock.Now()

	snap, err := s.store.Snapshot(ctx, challengeID)
	if err != nil {
		return nil, err
	}

	result := Compute(snap, s.clock.Today(), s.clock.Now())

	if err := s.store.SaveResult(ctx, result); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.StoreRanks(ctx, challengeID, result.Members); err != nil {
			s.log.Warn("rank cache update failed",
				logger.ChallengeID(challengeID),
				logger.Err(err),
			)
		}
	}

	s.log.Info("aggregates refreshed",
		logger.ChallengeID(challengeID),
		logger.Int("members", len(result.Members)),
		logger.Int("habits", len(result.Habits)),
		logger.Latency(s.clock.Now().Sub(started)),
	)

	if s.publisher != nil {
		if err := s.publisher.Publish(shared.NewStatsRefreshedEvent(challengeID, len(result.Members), len(result.Habits))); err != nil {
			s.log.Warn("event publish failed", logger.Err(err))
		}
	}

	return result, nil
}

// Compute derives every aggregate from one snapshot. Pure function, exported
// for direct use in tests and backfills.
func Compute(snap *stats.Snapshot, today timeutil.Day, now time.Time) *stats.Result {
	ch := snap.Challenge
	elapsed := ch.ElapsedDays(today)
	habitCount := len(ch.HabitIDs)

	activeMembers := 0
	for _, m := range snap.Memberships {
		if m.IsActive() {
			activeMembers++
		}
	}

	// Per-member stats. Every membership gets a row; departed members keep
	// their history on the board.
	members := make([]*stats.MemberStat, 0, len(snap.Memberships))
	totalCheckIns := 0
	var sumRate, sumPoints, sumStreak float64
	for _, m := range snap.Memberships {
		rate := 0.0
		if elapsed > 0 && habitCount > 0 {
			rate = stats.ClampRate(float64(m.TotalCheckIns) / float64(elapsed*habitCount))
		}
		members = append(members, &stats.MemberStat{
			ChallengeID:    ch.ID,
			UserID:         m.UserID,
			PointsEarned:   m.PointsEarned,
			CurrentStreak:  m.CurrentStreak,
			TotalCheckIns:  m.TotalCheckIns,
			CompletionRate: rate,
			ComputedAt:     now,
		})
		totalCheckIns += m.TotalCheckIns
		sumRate += rate
		sumPoints += float64(m.PointsEarned)
		sumStreak += float64(m.CurrentStreak)
	}

	stats.RankByCompletion(members)
	stats.RankByPoints(members)

	// Per-habit aggregates.
	perHabit := make(map[string]int, habitCount)
	for _, ci := range snap.CheckIns {
		perHabit[ci.HabitID]++
	}
	habits := make([]*stats.HabitAggregate, 0, habitCount)
	for _, habitID := range ch.HabitIDs {
		rate := 0.0
		if elapsed > 0 && activeMembers > 0 {
			rate = stats.ClampRate(float64(perHabit[habitID]) / float64(elapsed*activeMembers))
		}
		habits = append(habits, &stats.HabitAggregate{
			ChallengeID:    ch.ID,
			HabitID:        habitID,
			TotalCheckIns:  perHabit[habitID],
			CompletionRate: rate,
			ComputedAt:     now,
		})
	}

	summary := &stats.ChallengeSummary{
		ChallengeID:   ch.ID,
		TotalMembers:  len(snap.Memberships),
		ActiveMembers: activeMembers,
		TotalCheckIns: totalCheckIns,
		ComputedAt:    now,
	}
	if n := float64(len(members)); n > 0 {
		summary.AvgCompletionRate = sumRate / n
		summary.AvgPoints = sumPoints / n
		summary.AvgStreak = sumStreak / n
	}

	return &stats.Result{
		ChallengeID: ch.ID,
		Members:     members,
		Habits:      habits,
		Summary:     summary,
	}
}

// TodayBoard builds the "who's checked in today" view for one habit.
func (s *Service) TodayBoard(ctx context.Context, challengeID, habitID string) (*stats.HabitBoard, error) {
	if challengeID == "" || habitID == "" {
		return nil, shared.NewDomainError("stats", "TodayBoard", shared.ErrEmptyValue, "challenge and habit IDs are required")
	}

	snap, err := s.store.Snapshot(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	if !snap.Challenge.HasHabit(habitID) {
		return nil, shared.NewDomainError("stats", "TodayBoard", shared.ErrInvalidInput, "habit does not belong to this challenge")
	}

	today := s.clock.Today()
	dayCheckIns, err := s.store.ListDayCheckIns(ctx, challengeID, today)
	if err != nil {
		return nil, err
	}

	checked := make(map[string]stats.DayCheckIn, len(dayCheckIns))
	for _, ci := range dayCheckIns {
		if ci.HabitID == habitID {
			checked[ci.UserID] = ci
		}
	}

	board := &stats.HabitBoard{HabitID: habitID}
	active := 0
	for _, m := range snap.Memberships {
		if !m.IsActive() {
			continue
		}
		active++
		row := stats.MemberCheckInStatus{UserID: m.UserID}
		if ci, ok := checked[m.UserID]; ok {
			at := ci.CreatedAt
			row.CheckedInToday = true
			row.CheckInTime = &at
			row.PhotoURL = ci.PhotoURL
			board.TotalCheckInsToday++
		}
		board.Members = append(board.Members, row)
	}
	if active > 0 {
		board.CompletionRate = float64(board.TotalCheckInsToday) / float64(active) * 100
	}

	return board, nil
}
