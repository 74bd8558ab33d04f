package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDayOf_NormalizesToUTC(t *testing.T) {
	// 23:30 in UTC+5 is 18:30 UTC on the same date
	almaty := time.FixedZone("UTC+5", 5*3600)
	local := time.Date(2025, 3, 10, 23, 30, 0, 0, almaty)

	assert.Equal(t, Day{2025, time.March, 10}, DayOf(local))

	// 02:00 in UTC+5 is the previous UTC day
	early := time.Date(2025, 3, 10, 2, 0, 0, 0, almaty)
	assert.Equal(t, Day{2025, time.March, 9}, DayOf(early))
}

func TestDay_NextPrev(t *testing.T) {
	d := Day{2025, time.February, 28}
	assert.Equal(t, Day{2025, time.March, 1}, d.Next())
	assert.Equal(t, Day{2025, time.February, 27}, d.Prev())

	// Leap year rollover
	leap := Day{2024, time.February, 28}
	assert.Equal(t, Day{2024, time.February, 29}, leap.Next())

	// Year boundary
	nye := Day{2024, time.December, 31}
	assert.Equal(t, Day{2025, time.January, 1}, nye.Next())
}

func TestDaysBetween(t *testing.T) {
	a := Day{2025, time.January, 1}
	b := Day{2025, time.January, 31}

	assert.Equal(t, 30, DaysBetween(a, b))
	assert.Equal(t, -30, DaysBetween(b, a))
	assert.Equal(t, 0, DaysBetween(a, a))

	// Across a month boundary
	assert.Equal(t, 2, DaysBetween(Day{2025, time.April, 30}, Day{2025, time.May, 2}))
}

func TestIsConsecutiveDay(t *testing.T) {
	d1 := time.Date(2025, 6, 1, 23, 59, 0, 0, time.UTC)
	d2 := time.Date(2025, 6, 2, 0, 1, 0, 0, time.UTC)
	d3 := time.Date(2025, 6, 3, 12, 0, 0, 0, time.UTC)

	assert.True(t, IsConsecutiveDay(d1, d2))
	assert.False(t, IsConsecutiveDay(d1, d3))
	assert.False(t, IsConsecutiveDay(d2, d1))
}

func TestParseDay(t *testing.T) {
	d, err := ParseDay("2025-07-15")
	assert.NoError(t, err)
	assert.Equal(t, Day{2025, time.July, 15}, d)
	assert.Equal(t, "2025-07-15", d.String())

	_, err = ParseDay("15.07.2025")
	assert.Error(t, err)
}

func TestFixedClock(t *testing.T) {
	clock := NewFixedClock(time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC))

	assert.Equal(t, Day{2025, time.January, 1}, clock.Today())

	clock.AdvanceDays(1)
	assert.Equal(t, Day{2025, time.January, 2}, clock.Today())

	clock.Advance(14 * time.Hour)
	assert.Equal(t, Day{2025, time.January, 3}, clock.Today())
}

func TestStartEndOfDay(t *testing.T) {
	at := time.Date(2025, 9, 5, 13, 45, 12, 999, time.UTC)

	assert.Equal(t, time.Date(2025, 9, 5, 0, 0, 0, 0, time.UTC), StartOfDay(at))
	assert.Equal(t, time.Date(2025, 9, 5, 23, 59, 59, 999999999, time.UTC), EndOfDay(at))
}
