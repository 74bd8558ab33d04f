// Package reminder contains the hitch reminder throttle: batch sends with a
// per-(habit, sender, target, day) dedup log and a per-sender call budget.
// Two independent throttling dimensions, both enforced on every call.
package reminder

import (
	"context"

	"github.com/darezone/darezone-ledger/internal/domain/membership"
	"github.com/darezone/darezone-ledger/internal/domain/reminder"
	"github.com/darezone/darezone-ledger/internal/domain/shared"
	"github.com/darezone/darezone-ledger/pkg/keymutex"
	"github.com/darezone/darezone-ledger/pkg/logger"
	"github.com/darezone/darezone-ledger/pkg/retry"
	"github.com/darezone/darezone-ledger/pkg/timeutil"
)

// Store is the persistence surface the throttle needs. CommitReminders is
// all-or-nothing: the log entries and the quota decrement move together, and
// the store enforces uniqueness on the log entry natural key.
type Store interface {
	// GetMembership loads the membership for (challengeID, userID).
	GetMembership(ctx context.Context, challengeID, userID string) (*membership.Membership, error)

	// ReminderExists reports whether a log entry exists for the dedup key.
	ReminderExists(ctx context.Context, habitID, senderID, targetID string, day timeutil.Day) (bool, error)

	// CommitReminders inserts the log entries and persists the sender's
	// decremented quota atomically.
	CommitReminders(ctx context.Context, entries []*reminder.LogEntry, sender *membership.Membership) error
}

// SendReminderCommand contains one batch hitch send.
type SendReminderCommand struct {
	ChallengeID string
	HabitID     string
	SenderID    string
	TargetIDs   []string
}

// SendReminderResult reports how the batch fared.
type SendReminderResult struct {
	// SentCount is the number of log entries committed this call.
	SentCount int

	// RemainingQuota is the sender's hitch budget after this call.
	RemainingQuota int

	// SentTo lists the targets that actually received an entry.
	SentTo []string
}

// Config bounds a single call.
type Config struct {
	// MaxTargetsPerCall caps the target list length.
	MaxTargetsPerCall int
}

// Service implements the reminder throttle.
type Service struct {
	store     Store
	guard     *keymutex.KeyMutex
	clock     timeutil.Clock
	publisher shared.EventPublisher
	retrier   *retry.Retrier
	log       *logger.Logger
	cfg       Config
}

// NewService creates the reminder throttle service.
func NewService(store Store, guard *keymutex.KeyMutex, clock timeutil.Clock, publisher shared.EventPublisher, log *logger.Logger, cfg Config) *Service {
	return &Service{
		store:     store,
		guard:     guard,
		clock:     clock,
		publisher: publisher,
		retrier:   retry.StoreRetrier(),
		log:       log.With(logger.Component("reminder")),
		cfg:       cfg,
	}
}

// SendReminder sends a hitch to each eligible target. Ineligible targets
// (inactive, unknown, already reminded today, the sender itself) are skipped
// silently; partial validity is expected for batch sends. The quota is
// consumed once per call, never once per target, and only when at least one
// entry commits. Delivery events are published only after the log entries
// are durable, and after the sender lock is released.
func (s *Service) SendReminder(ctx context.Context, cmd SendReminderCommand) (*SendReminderResult, error) {
	if cmd.ChallengeID == "" || cmd.HabitID == "" || cmd.SenderID == "" {
		return nil, shared.NewDomainError("reminder", "SendReminder", shared.ErrEmptyValue, "challenge, habit and sender IDs are required")
	}
	if len(cmd.TargetIDs) == 0 || len(cmd.TargetIDs) > s.cfg.MaxTargetsPerCall {
		return nil, shared.ErrInvalidTargets
	}

	unlock, err := s.guard.Lock(ctx, "reminder/"+cmd.SenderID)
	if err != nil {
		return nil, err
	}

	var (
		result  *SendReminderResult
		entries []*reminder.LogEntry
	)
	err = s.retrier.Do(ctx, func(ctx context.Context) error {
		var opErr error
		result, entries, opErr = s.sendReminder(ctx, cmd)
		if opErr == nil {
			return nil
		}
		if shared.IsRetryable(opErr) {
			return retry.Retryable(opErr)
		}
		return retry.Permanent(opErr)
	})
	unlock()
	if err != nil {
		return nil, err
	}

	s.log.Info("reminders sent",
		logger.ChallengeID(cmd.ChallengeID),
		logger.HabitID(cmd.HabitID),
		logger.UserID(cmd.SenderID),
		logger.Int("sent_count", result.SentCount),
		logger.Int("remaining_quota", result.RemainingQuota),
	)

	// Log first, notify second: the committed entries are the trigger.
	for _, e := range entries {
		s.publish(shared.NewReminderSentEvent(e.ChallengeID, e.HabitID, e.SenderID, e.TargetID, e.Day.String()))
	}

	return result, nil
}

// sendReminder is one attempt of the throttled batch, run under the guard.
func (s *Service) sendReminder(ctx context.Context, cmd SendReminderCommand) (*SendReminderResult, []*reminder.LogEntry, error) {
	sender, err := s.store.GetMembership(ctx, cmd.ChallengeID, cmd.SenderID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, nil, shared.ErrNotAMember
		}
		return nil, nil, err
	}
	if !sender.IsActive() {
		return nil, nil, shared.ErrNotAMember
	}
	if sender.ReminderQuota <= 0 {
		return nil, nil, shared.ErrNoQuotaRemaining
	}

	now := s.clock.Now()
	today := s.clock.Today()

	entries := make([]*reminder.LogEntry, 0, len(cmd.TargetIDs))
	seen := make(map[string]bool, len(cmd.TargetIDs))
	for _, targetID := range cmd.TargetIDs {
		if targetID == "" || targetID == cmd.SenderID || seen[targetID] {
			continue
		}
		seen[targetID] = true

		target, err := s.store.GetMembership(ctx, cmd.ChallengeID, targetID)
		if err != nil {
			if shared.IsNotFound(err) {
				continue
			}
			return nil, nil, err
		}
		if !target.IsActive() {
			continue
		}

		exists, err := s.store.ReminderExists(ctx, cmd.HabitID, cmd.SenderID, targetID, today)
		if err != nil {
			return nil, nil, err
		}
		if exists {
			continue
		}

		entry, err := reminder.NewLogEntry(cmd.ChallengeID, cmd.HabitID, cmd.SenderID, targetID, today, now)
		if err != nil {
			return nil, nil, err
		}
		entries = append(entries, entry)
	}

	if len(entries) == 0 {
		return nil, nil, shared.ErrNoEligibleTargets
	}

	if err := sender.ConsumeReminderQuota(); err != nil {
		return nil, nil, err
	}

	if err := s.store.CommitReminders(ctx, entries, sender); err != nil {
		return nil, nil, err
	}

	sentTo := make([]string, 0, len(entries))
	for _, e := range entries {
		sentTo = append(sentTo, e.TargetID)
	}

	return &SendReminderResult{
		SentCount:      len(entries),
		RemainingQuota: sender.ReminderQuota,
		SentTo:         sentTo,
	}, entries, nil
}

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
