package challenge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darezone/darezone-ledger/internal/domain/shared"
	"github.com/darezone/darezone-ledger/pkg/timeutil"
)

func day(t *testing.T, s string) timeutil.Day {
	t.Helper()
	d, err := timeutil.ParseDay(s)
	require.NoError(t, err)
	return d
}

func testChallenge(t *testing.T) *Challenge {
	return &Challenge{
		ID:        "ch-1",
		Name:      "30 days of running",
		StartDate: day(t, "2025-03-01"),
		EndDate:   day(t, "2025-03-30"),
		Status:    StatusActive,
		HabitIDs:  []string{"habit-run", "habit-stretch"},
	}
}

func TestValidate(t *testing.T) {
	ch := testChallenge(t)
	assert.NoError(t, ch.Validate())

	ch.EndDate = day(t, "2025-02-01")
	assert.ErrorIs(t, ch.Validate(), shared.ErrValueOutOfRange)

	ch.ID = ""
	assert.ErrorIs(t, ch.Validate(), shared.ErrEmptyValue)
}

func TestElapsedDays(t *testing.T) {
	ch := testChallenge(t)

	// Before the start nothing has elapsed.
	assert.Equal(t, 0, ch.ElapsedDays(day(t, "2025-02-28")))

	// The first day counts as one elapsed day.
	assert.Equal(t, 1, ch.ElapsedDays(day(t, "2025-03-01")))
	assert.Equal(t, 10, ch.ElapsedDays(day(t, "2025-03-10")))

	// After the end the count stays clamped to the time box.
	assert.Equal(t, 30, ch.ElapsedDays(day(t, "2025-03-30")))
	assert.Equal(t, 30, ch.ElapsedDays(day(t, "2025-04-15")))
}

func TestDurationDays(t *testing.T) {
	assert.Equal(t, 30, testChallenge(t).DurationDays())
}

func TestContainsDay(t *testing.T) {
	ch := testChallenge(t)

	assert.False(t, ch.ContainsDay(day(t, "2025-02-28")))
	assert.True(t, ch.ContainsDay(day(t, "2025-03-01")))
	assert.True(t, ch.ContainsDay(day(t, "2025-03-30")))
	assert.False(t, ch.ContainsDay(day(t, "2025-03-31")))
}

func TestHasHabit(t *testing.T) {
	ch := testChallenge(t)

	assert.True(t, ch.HasHabit("habit-run"))
	assert.False(t, ch.HasHabit("habit-swim"))
}
