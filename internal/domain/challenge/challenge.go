// Package challenge contains the challenge read model consumed by the ledger
// engine. Challenge lifecycle (create, join, archive) belongs to an external
// collaborator; this engine only reads the time box and the habit list to
// derive elapsed days and completion rates.
package challenge

import (
	"github.com/darezone/darezone-ledger/internal/domain/shared"
	"github.com/darezone/darezone-ledger/pkg/timeutil"
)

// Status represents the lifecycle state of a challenge.
type Status string

const (
	// StatusPending - the challenge has not started yet.
	StatusPending Status = "pending"
	// StatusActive - the challenge is running and accepts check-ins.
	StatusActive Status = "active"
	// StatusCompleted - the challenge reached its end date.
	StatusCompleted Status = "completed"
	// StatusFailed - the challenge was abandoned before its end date.
	StatusFailed Status = "failed"
)

// Challenge is the time-boxed container for habits and members.
type Challenge struct {
	// ID is the unique challenge identifier.
	ID string

	// Name is the display name, kept for logging only.
	Name string

	// StartDate is the first calendar day of the challenge.
	StartDate timeutil.Day

	// EndDate is the last calendar day of the challenge (inclusive).
	EndDate timeutil.Day

	// Status is the lifecycle state.
	Status Status

	// HabitIDs are the habits tracked by this challenge.
	HabitIDs []string
}

// Validate checks structural integrity of the challenge.
func (c *Challenge) Validate() error {
	if c.ID == "" {
		return shared.NewDomainError("challenge", "Validate", shared.ErrEmptyValue, "challenge ID is required")
	}
	if c.StartDate.IsZero() || c.EndDate.IsZero() {
		return shared.NewDomainError("challenge", "Validate", shared.ErrEmptyValue, "challenge dates are required")
	}
	if c.EndDate.Before(c.StartDate) {
		return shared.NewDomainError("challenge", "Validate", shared.ErrValueOutOfRange, "end date before start date")
	}
	return nil
}

// ElapsedDays returns the number of challenge days elapsed as of today,
// clamped to the challenge time box: min(today, endDate) - startDate + 1.
// Returns 0 before the challenge starts.
func (c *Challenge) ElapsedDays(today timeutil.Day) int {
	if today.Before(c.StartDate) {
		return 0
	}
	last := today
	if c.EndDate.Before(last) {
		last = c.EndDate
	}
	return timeutil.DaysBetween(c.StartDate, last) + 1
}

// DurationDays returns the total length of the challenge in days.
func (c *Challenge) DurationDays() int {
	return timeutil.DaysBetween(c.StartDate, c.EndDate) + 1
}

// ContainsDay reports whether the given day is inside the challenge time box.
func (c *Challenge) ContainsDay(day timeutil.Day) bool {
	return !day.Before(c.StartDate) && !day.After(c.EndDate)
}

// HasHabit reports whether the habit belongs to this challenge.
func (c *Challenge) HasHabit(habitID string) bool {
	for _, id := range c.HabitIDs {
		if id == habitID {
			return true
		}
	}
	return false
}
