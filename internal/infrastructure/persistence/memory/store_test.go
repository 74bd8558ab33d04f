package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darezone/darezone-ledger/internal/domain/challenge"
	"github.com/darezone/darezone-ledger/internal/domain/checkin"
	"github.com/darezone/darezone-ledger/internal/domain/membership"
	"github.com/darezone/darezone-ledger/internal/domain/reminder"
	"github.com/darezone/darezone-ledger/internal/domain/shared"
	"github.com/darezone/darezone-ledger/pkg/timeutil"
)

var testNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func testMembership(userID string) *membership.Membership {
	return &membership.Membership{
		ChallengeID:   "ch-1",
		UserID:        userID,
		Status:        membership.StatusActive,
		ReminderQuota: 2,
		JoinedAt:      testNow,
	}
}

func testChallengeFixture(t *testing.T) *challenge.Challenge {
	t.Helper()
	start, err := timeutil.ParseDay("2025-03-01")
	require.NoError(t, err)
	return &challenge.Challenge{
		ID:        "ch-1",
		Name:      "march habits",
		StartDate: start,
		EndDate:   start.AddDays(29),
		Status:    challenge.StatusActive,
		HabitIDs:  []string{"habit-1"},
	}
}

func testCheckIn(t *testing.T, userID string, day timeutil.Day) *checkin.CheckIn {
	t.Helper()
	ci, err := checkin.New("ch-1", "habit-1", userID, day, checkin.Evidence{Caption: "done"}, testNow)
	require.NoError(t, err)
	return ci
}

func TestCommitCheckIn_EnforcesNaturalKey(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	day := timeutil.DayOf(testNow)
	m := testMembership("u-1")

	first := testCheckIn(t, "u-1", day)
	require.NoError(t, store.CommitCheckIn(ctx, first, m))

	// A second entry for the same (challenge, habit, user, day) is rejected
	// even though its surrogate ID differs.
	second := testCheckIn(t, "u-1", day)
	err := store.CommitCheckIn(ctx, second, m)
	assert.ErrorIs(t, err, shared.ErrDuplicateCheckIn)

	// A different day is a different key.
	next := testCheckIn(t, "u-1", day.Next())
	assert.NoError(t, store.CommitCheckIn(ctx, next, m))
}

func TestCommitRetraction_FreesNaturalKey(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	day := timeutil.DayOf(testNow)
	m := testMembership("u-1")

	ci := testCheckIn(t, "u-1", day)
	require.NoError(t, store.CommitCheckIn(ctx, ci, m))
	require.NoError(t, store.CommitRetraction(ctx, ci.ID, m))

	_, err := store.GetCheckInByID(ctx, ci.ID)
	assert.ErrorIs(t, err, shared.ErrCheckInNotFound)

	// The key is free again after the retraction.
	again := testCheckIn(t, "u-1", day)
	assert.NoError(t, store.CommitCheckIn(ctx, again, m))
}

func TestCommitRetraction_UnknownID(t *testing.T) {
	store := NewStore()
	err := store.CommitRetraction(context.Background(), "missing", testMembership("u-1"))
	assert.ErrorIs(t, err, shared.ErrCheckInNotFound)
}

func TestCommitReminders_AllOrNothing(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	day := timeutil.DayOf(testNow)
	sender := testMembership("alice")

	first, err := reminder.NewLogEntry("ch-1", "habit-1", "alice", "bob", day, testNow)
	require.NoError(t, err)
	require.NoError(t, store.CommitReminders(ctx, []*reminder.LogEntry{first}, sender))

	dup, err := reminder.NewLogEntry("ch-1", "habit-1", "alice", "bob", day, testNow)
	require.NoError(t, err)
	fresh, err := reminder.NewLogEntry("ch-1", "habit-1", "alice", "carol", day, testNow)
	require.NoError(t, err)

	// One duplicate poisons the whole batch; the fresh entry must not land.
	err = store.CommitReminders(ctx, []*reminder.LogEntry{fresh, dup}, sender)
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)

	exists, err := store.ReminderExists(ctx, "habit-1", "alice", "carol", day)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSnapshot_IsolatedFromLaterWrites(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	day := timeutil.DayOf(testNow)

	store.PutChallenge(testChallengeFixture(t))
	m := testMembership("u-1")
	store.PutMembership(m)
	require.NoError(t, store.CommitCheckIn(ctx, testCheckIn(t, "u-1", day), m))

	snap, err := store.Snapshot(ctx, "ch-1")
	require.NoError(t, err)
	require.Len(t, snap.CheckIns, 1)

	// Writes after the snapshot do not leak into it.
	require.NoError(t, store.CommitCheckIn(ctx, testCheckIn(t, "u-1", day.Next()), m))
	assert.Len(t, snap.CheckIns, 1)
}

func TestSnapshot_UnknownChallenge(t *testing.T) {
	store := NewStore()
	_, err := store.Snapshot(context.Background(), "missing")
	assert.ErrorIs(t, err, shared.ErrChallengeNotFound)
}
