package reminder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darezone/darezone-ledger/internal/domain/shared"
	"github.com/darezone/darezone-ledger/pkg/timeutil"
)

func TestNewLogEntry(t *testing.T) {
	now := time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)
	day := timeutil.DayOf(now)

	entry, err := NewLogEntry("ch-1", "habit-1", "alice", "bob", day, now)
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "habit-1/alice/bob/2025-03-01", entry.NaturalKey())
}

func TestNewLogEntry_RejectsSelfReminder(t *testing.T) {
	now := time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)

	_, err := NewLogEntry("ch-1", "habit-1", "alice", "alice", timeutil.DayOf(now), now)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestNewLogEntry_RequiresKeyFields(t *testing.T) {
	now := time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)

	_, err := NewLogEntry("ch-1", "", "alice", "bob", timeutil.DayOf(now), now)
	assert.ErrorIs(t, err, shared.ErrEmptyValue)

	_, err = NewLogEntry("ch-1", "habit-1", "alice", "bob", timeutil.Day{}, now)
	assert.ErrorIs(t, err, shared.ErrEmptyValue)
}

func TestDedupKey_DistinguishesDirection(t *testing.T) {
	day, err := timeutil.ParseDay("2025-03-01")
	require.NoError(t, err)

	// alice->bob and bob->alice are separate rate-limit buckets.
	assert.NotEqual(t,
		DedupKey("habit-1", "alice", "bob", day),
		DedupKey("habit-1", "bob", "alice", day),
	)
}
