// Package timeutil provides UTC calendar-day utilities for the DareZone ledger.
// Every "one per day" rule in the engine (check-ins, hitch reminders) is defined
// over UTC calendar days, so all day math lives here in one place.
// No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"time"
)

// Day represents a single UTC calendar day (midnight-to-midnight).
// It is the unit of the one-check-in-per-day and one-hitch-per-day rules.
type Day struct {
	Year       int
	Month      time.Month
	DayOfMonth int
}

// DayOf returns the UTC calendar day that contains t.
func DayOf(t time.Time) Day {
	u := t.UTC()
	return Day{Year: u.Year(), Month: u.Month(), DayOfMonth: u.Day()}
}

// ParseDay parses a day in YYYY-MM-DD form.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(FormatDate, s)
	if err != nil {
		return Day{}, fmt.Errorf("timeutil: invalid day %q: %w", s, err)
	}
	return DayOf(t), nil
}

// Time returns the start of the day (00:00:00 UTC).
func (d Day) Time() time.Time {
	return time.Date(d.Year, d.Month, d.DayOfMonth, 0, 0, 0, 0, time.UTC)
}

// AddDays returns the day n days after d (n may be negative).
func (d Day) AddDays(n int) Day {
	return DayOf(d.Time().AddDate(0, 0, n))
}

// Prev returns the previous calendar day.
func (d Day) Prev() Day {
	return d.AddDays(-1)
}

// Next returns the next calendar day.
func (d Day) Next() Day {
	return d.AddDays(1)
}

// Before reports whether d is strictly earlier than other.
func (d Day) Before(other Day) bool {
	return d.Time().Before(other.Time())
}

// After reports whether d is strictly later than other.
func (d Day) After(other Day) bool {
	return d.Time().After(other.Time())
}

// IsZero reports whether d is the zero value (no day).
func (d Day) IsZero() bool {
	return d == Day{}
}

// String returns the day in YYYY-MM-DD form.
func (d Day) String() string {
	return d.Time().Format(FormatDate)
}

// DaysBetween returns the number of calendar days from a to b.
// Positive when b is after a, negative when b is before a.
func DaysBetween(a, b Day) int {
	return int(b.Time().Sub(a.Time()).Hours() / 24)
}

// IsSameDay checks if two times fall on the same UTC calendar day.
func IsSameDay(t1, t2 time.Time) bool {
	return DayOf(t1) == DayOf(t2)
}

// IsConsecutiveDay checks if t2 falls on the day after t1.
func IsConsecutiveDay(t1, t2 time.Time) bool {
	return DayOf(t1).Next() == DayOf(t2)
}

// StartOfDay returns the start of the UTC day containing t.
func StartOfDay(t time.Time) time.Time {
	return DayOf(t).Time()
}

// EndOfDay returns the last nanosecond of the UTC day containing t.
func EndOfDay(t time.Time) time.Time {
	return DayOf(t).Next().Time().Add(-time.Nanosecond)
}

// Common date/time formats.
const (
	// FormatDate is the standard date format (YYYY-MM-DD).
	FormatDate = "2006-01-02"
	// FormatDateTime is the standard datetime format.
	FormatDateTime = "2006-01-02 15:04:05"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLOCK
// ══════════════════════════════════════════════════════════════════════════════

// Clock supplies the current time and the current UTC day boundary.
// The ledger engine never calls time.Now directly; a Clock is injected so
// streak and dedup rules are testable across simulated days.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Today returns the current UTC calendar day.
	Today() Day
}

// SystemClock is the production Clock backed by the wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// Today implements Clock.
func (SystemClock) Today() Day {
	return DayOf(time.Now())
}

// FixedClock is a Clock pinned to a settable instant. Test helper.
type FixedClock struct {
	Current time.Time
}

// NewFixedClock creates a FixedClock at the given instant.
func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{Current: t.UTC()}
}

// Now implements Clock.
func (c *FixedClock) Now() time.Time {
	return c.Current
}

// Today implements Clock.
func (c *FixedClock) Today() Day {
	return DayOf(c.Current)
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.Current = c.Current.Add(d)
}

// AdvanceDays moves the clock forward by n calendar days.
func (c *FixedClock) AdvanceDays(n int) {
	c.Current = c.Current.AddDate(0, 0, n)
}
