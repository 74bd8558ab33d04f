// Package reminder contains the hitch reminder log entry. The log is
// append-only: one entry per (habit, sender, target, day) is the rate limit,
// and the committed entry - not the push delivery - is the source of truth
// that a reminder was sent.
package reminder

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/darezone/darezone-ledger/internal/domain/shared"
	"github.com/darezone/darezone-ledger/pkg/timeutil"
)

// LogEntry records one delivered hitch reminder.
type LogEntry struct {
	// ID is the surrogate identifier.
	ID string

	// ChallengeID scopes the reminder; not part of the dedup key.
	ChallengeID string

	// HabitID, SenderID, TargetID and Day form the natural key.
	HabitID  string
	SenderID string
	TargetID string
	Day      timeutil.Day

	CreatedAt time.Time
}

// NewLogEntry creates a reminder log entry for the given key.
func NewLogEntry(challengeID, habitID, senderID, targetID string, day timeutil.Day, now time.Time) (*LogEntry, error) {
	if challengeID == "" || habitID == "" || senderID == "" || targetID == "" {
		return nil, shared.NewDomainError("reminder", "NewLogEntry", shared.ErrEmptyValue, "challenge, habit, sender and target IDs are required")
	}
	if senderID == targetID {
		return nil, shared.NewDomainError("reminder", "NewLogEntry", shared.ErrInvalidInput, "cannot remind yourself")
	}
	if day.IsZero() {
		return nil, shared.NewDomainError("reminder", "NewLogEntry", shared.ErrEmptyValue, "day is required")
	}

	return &LogEntry{
		ID:          uuid.New().String(),
		ChallengeID: challengeID,
		HabitID:     habitID,
		SenderID:    senderID,
		TargetID:    targetID,
		Day:         day,
		CreatedAt:   now.UTC(),
	}, nil
}

// NaturalKey returns the dedup key for the one-per-day rule.
func (e *LogEntry) NaturalKey() string {
	return DedupKey(e.HabitID, e.SenderID, e.TargetID, e.Day)
}

// DedupKey builds the (habit, sender, target, day) rate-limit key.
func DedupKey(habitID, senderID, targetID string, day timeutil.Day) string {
	return fmt.Sprintf("%s/%s/%s/%s", habitID, senderID, targetID, day)
}
