// Package checkin contains the check-in ledger entry. A check-in is created
// once per (challenge, habit, user, day) and never mutated afterwards, except
// for a bounded same-day caption edit. The uniqueness of its natural key is
// the central correctness guarantee of the whole engine.
package checkin

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/darezone/darezone-ledger/internal/domain/shared"
	"github.com/darezone/darezone-ledger/pkg/timeutil"
)

// Evidence is the proof attached to a check-in. Media lives in external
// storage; the ledger only keeps opaque references.
type Evidence struct {
	PhotoURL string
	VideoURL string
	Caption  string
}

// HasAny reports whether at least one piece of evidence is present.
func (e Evidence) HasAny() bool {
	return e.PhotoURL != "" || e.VideoURL != "" || e.Caption != ""
}

// CheckIn is one immutable ledger entry.
type CheckIn struct {
	// ID is the surrogate identifier.
	ID string

	// ChallengeID, HabitID, UserID and Day form the natural key.
	ChallengeID string
	HabitID     string
	UserID      string
	Day         timeutil.Day

	// Evidence is the attached proof.
	Evidence Evidence

	// OnTime is true when the check-in was created within its calendar day.
	OnTime bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// New creates a check-in for the given key and evidence.
func New(challengeID, habitID, userID string, day timeutil.Day, evidence Evidence, now time.Time) (*CheckIn, error) {
	if challengeID == "" || habitID == "" || userID == "" {
		return nil, shared.NewDomainError("checkin", "New", shared.ErrEmptyValue, "challenge, habit and user IDs are required")
	}
	if day.IsZero() {
		return nil, shared.NewDomainError("checkin", "New", shared.ErrEmptyValue, "day is required")
	}
	if !evidence.HasAny() {
		return nil, shared.NewDomainError("checkin", "New", shared.ErrInvalidInput, "at least one evidence (photo/video/caption) required")
	}

	at := now.UTC()
	return &CheckIn{
		ID:          uuid.New().String(),
		ChallengeID: challengeID,
		HabitID:     habitID,
		UserID:      userID,
		Day:         day,
		Evidence:    evidence,
		OnTime:      timeutil.DayOf(at) == day,
		CreatedAt:   at,
		UpdatedAt:   at,
	}, nil
}

// Key returns the natural key as a single string, used for per-key
// serialization and duplicate detection.
func Key(challengeID, habitID, userID string) string {
	return fmt.Sprintf("%s/%s/%s", challengeID, habitID, userID)
}

// NaturalKey returns the full dedup key including the day.
func (c *CheckIn) NaturalKey() string {
	return fmt.Sprintf("%s/%s", Key(c.ChallengeID, c.HabitID, c.UserID), c.Day)
}

// EditCaption replaces the caption. Allowed only for same-day edits; every
// other field is immutable once the entry is committed.
func (c *CheckIn) EditCaption(caption string, today timeutil.Day, now time.Time) error {
	if c.Day != today {
		return shared.ErrEditWindowClosed
	}
	c.Evidence.Caption = caption
	c.UpdatedAt = now.UTC()
	return nil
}

// IsOwnedBy reports whether the check-in belongs to the given user.
func (c *CheckIn) IsOwnedBy(userID string) bool {
	return c.UserID == userID
}
