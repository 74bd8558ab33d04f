// Package membership contains the challenge membership entity. A membership
// carries the per-member streak, point, and hitch-quota counters that the
// check-in ledger mutates. Role and status transitions belong to the external
// membership-management collaborator; this engine reads status and writes only
// the counter fields.
package membership

import (
	"time"

	"github.com/darezone/darezone-ledger/internal/domain/shared"
	"github.com/darezone/darezone-ledger/pkg/timeutil"
)

// Status represents the membership lifecycle state.
type Status string

const (
	// StatusPending - invited but not yet joined.
	StatusPending Status = "pending"
	// StatusActive - a full participant; only active members may check in.
	StatusActive Status = "active"
	// StatusLeft - the member left voluntarily; stats are retained.
	StatusLeft Status = "left"
	// StatusKicked - removed by an admin; stats are retained.
	StatusKicked Status = "kicked"
)

// Role represents the member's role within a challenge.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Membership is one user's participation in one challenge.
// There is exactly one membership per (challengeID, userID).
type Membership struct {
	ChallengeID string
	UserID      string
	Role        Role
	Status      Status

	// CurrentStreak is the length of the trailing run of consecutive
	// check-in days. Invariant: 0 <= CurrentStreak <= LongestStreak.
	CurrentStreak int

	// LongestStreak is the maximum streak ever observed.
	LongestStreak int

	// TotalCheckIns counts every check-in this member ever recorded here.
	TotalCheckIns int

	// PointsEarned is the exact sum of per-check-in point awards.
	PointsEarned int

	// ReminderQuota is the number of hitch sends remaining. Reset is
	// external to this engine; the throttle only reads and decrements it.
	ReminderQuota int

	// LastCheckInAt is the commit time of the most recent check-in, nil
	// when the member has never checked in.
	LastCheckInAt *time.Time

	JoinedAt time.Time
}

// IsActive reports whether the member may check in and send reminders.
func (m *Membership) IsActive() bool {
	return m.Status == StatusActive
}

// Validate checks the counter invariants.
func (m *Membership) Validate() error {
	if m.ChallengeID == "" || m.UserID == "" {
		return shared.NewDomainError("membership", "Validate", shared.ErrEmptyValue, "challenge and user IDs are required")
	}
	if m.CurrentStreak < 0 || m.LongestStreak < 0 || m.TotalCheckIns < 0 || m.PointsEarned < 0 || m.ReminderQuota < 0 {
		return shared.NewDomainError("membership", "Validate", shared.ErrNegativeValue, "counters cannot be negative")
	}
	if m.LongestStreak < m.CurrentStreak {
		return shared.NewDomainError("membership", "Validate", shared.ErrInvariantViolation, "longest streak below current streak")
	}
	return nil
}

// ApplyCheckIn advances the counters for a freshly committed check-in.
func (m *Membership) ApplyCheckIn(streak, points int, now time.Time) {
	m.CurrentStreak = streak
	if streak > m.LongestStreak {
		m.LongestStreak = streak
	}
	m.TotalCheckIns++
	m.PointsEarned += points
	at := now.UTC()
	m.LastCheckInAt = &at
}

// RestateFromHistory replaces every ledger-derived counter with values
// recomputed from the remaining check-in history. Used after a retraction,
// where decrementing in place could leave the streak chain inconsistent.
func (m *Membership) RestateFromHistory(currentStreak, longestStreak, totalCheckIns, points int, lastCheckInAt *time.Time) {
	m.CurrentStreak = currentStreak
	m.LongestStreak = longestStreak
	m.TotalCheckIns = totalCheckIns
	m.PointsEarned = points
	m.LastCheckInAt = lastCheckInAt
}

// ConsumeReminderQuota decrements the hitch budget by one call.
func (m *Membership) ConsumeReminderQuota() error {
	if m.ReminderQuota <= 0 {
		return shared.ErrNoQuotaRemaining
	}
	m.ReminderQuota--
	return nil
}

// StreakHistory derives streak counters from a set of check-in days.
// currentStreak is the trailing run of consecutive days ending today or
// yesterday; longestStreak is the maximum run anywhere in the history.
func StreakHistory(days []timeutil.Day, today timeutil.Day) (currentStreak, longestStreak int) {
	if len(days) == 0 {
		return 0, 0
	}

	// Dedup and index by day.
	seen := make(map[timeutil.Day]bool, len(days))
	for _, d := range days {
		seen[d] = true
	}

	for d := range seen {
		// Only count runs from their first day.
		if seen[d.Prev()] {
			continue
		}
		run := 1
		for next := d.Next(); seen[next]; next = next.Next() {
			run++
		}
		if run > longestStreak {
			longestStreak = run
		}
	}

	// The trailing run is alive if it reaches today or yesterday.
	anchor := today
	if !seen[anchor] {
		anchor = today.Prev()
	}
	for seen[anchor] {
		currentStreak++
		anchor = anchor.Prev()
	}

	return currentStreak, longestStreak
}
