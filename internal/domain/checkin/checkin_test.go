package checkin

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darezone/darezone-ledger/internal/domain/shared"
	"github.com/darezone/darezone-ledger/pkg/timeutil"
)

func TestNew_RequiresEvidence(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	day := timeutil.DayOf(now)

	_, err := New("ch-1", "habit-1", "u-1", day, Evidence{}, now)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	ci, err := New("ch-1", "habit-1", "u-1", day, Evidence{Caption: "done"}, now)
	require.NoError(t, err)
	assert.NotEmpty(t, ci.ID)
	assert.True(t, ci.OnTime)
}

func TestNew_RequiresKeyFields(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	day := timeutil.DayOf(now)
	evidence := Evidence{PhotoURL: "https://cdn.example/p.jpg"}

	_, err := New("", "habit-1", "u-1", day, evidence, now)
	assert.ErrorIs(t, err, shared.ErrEmptyValue)

	_, err = New("ch-1", "habit-1", "u-1", timeutil.Day{}, evidence, now)
	assert.ErrorIs(t, err, shared.ErrEmptyValue)
}

func TestNaturalKey(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	ci, err := New("ch-1", "habit-1", "u-1", timeutil.DayOf(now), Evidence{Caption: "x"}, now)
	require.NoError(t, err)

	assert.Equal(t, "ch-1/habit-1/u-1", Key("ch-1", "habit-1", "u-1"))
	assert.Equal(t, "ch-1/habit-1/u-1/2025-03-01", ci.NaturalKey())
}

func TestEditCaption_SameDayOnly(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	today := timeutil.DayOf(now)
	ci, err := New("ch-1", "habit-1", "u-1", today, Evidence{Caption: "before"}, now)
	require.NoError(t, err)

	require.NoError(t, ci.EditCaption("after", today, now.Add(time.Hour)))
	assert.Equal(t, "after", ci.Evidence.Caption)

	tomorrow := today.Next()
	err = ci.EditCaption("too late", tomorrow, now.AddDate(0, 0, 1))
	assert.ErrorIs(t, err, shared.ErrEditWindowClosed)
	assert.Equal(t, "after", ci.Evidence.Caption)
}

func TestIsOwnedBy(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	ci, err := New("ch-1", "habit-1", "u-1", timeutil.DayOf(now), Evidence{Caption: "x"}, now)
	require.NoError(t, err)

	assert.True(t, ci.IsOwnedBy("u-1"))
	assert.False(t, ci.IsOwnedBy("u-2"))
}
