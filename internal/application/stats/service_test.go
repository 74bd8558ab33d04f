package stats

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/darezone/darezone-ledger/internal/domain/challenge"
	"github.com/darezone/darezone-ledger/internal/domain/checkin"
	"github.com/darezone/darezone-ledger/internal/domain/membership"
	"github.com/darezone/darezone-ledger/internal/domain/stats"
	"github.com/darezone/darezone-ledger/internal/infrastructure/persistence/memory"
	"github.com/darezone/darezone-ledger/pkg/logger"
	"github.com/darezone/darezone-ledger/pkg/timeutil"
)

const (
	testChallengeID = "ch-1"
	testHabitID     = "habit-run"
)

// fixture: a 10-day challenge, day 5 in progress, one habit.
func newFixture(t *testing.T) (*Service, *memory.Store, *timeutil.FixedClock) {
	t.Helper()

	store := memory.NewStore()
	clock := timeutil.NewFixedClock(time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC))

	store.PutChallenge(&challenge.Challenge{
		ID:        testChallengeID,
		StartDate: timeutil.DayOf(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)),
		EndDate:   timeutil.DayOf(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)),
		Status:    challenge.StatusActive,
		HabitIDs:  []string{testHabitID},
	})
	return NewService(store, nil, clock, nil, logger.Default()), store, clock
}

func addMember(store *memory.Store, userID string, points, streak, total int) {
	store.PutMembership(&membership.Membership{
		ChallengeID:   testChallengeID,
		UserID:        userID,
		Status:        membership.StatusActive,
		PointsEarned:  points,
		CurrentStreak: streak,
		LongestStreak: streak,
		TotalCheckIns: total,
	})
}

func addCheckIn(t *testing.T, store *memory.Store, userID string, day time.Time) {
	t.Helper()
	ci, err := checkin.New(testChallengeID, testHabitID, userID, timeutil.DayOf(day),
		checkin.Evidence{Caption: "done"}, day)
	assert.NoError(t, err)
	m, err := store.GetMembership(context.Background(), testChallengeID, userID)
	assert.NoError(t, err)
	assert.NoError(t, store.CommitCheckIn(context.Background(), ci, m))
}

func TestRefresh_ComputesRatesAndRanks(t *testing.T) {
	svc, store, _ := newFixture(t)
	ctx := context.Background()

	// Day 5 of 10, one habit: elapsedDays = 5.
	addMember(store, "alice", 90, 5, 5)
	addMember(store, "bob", 90, 2, 4)
	addMember(store, "carol", 30, 1, 2)

	res, err := svc.Refresh(ctx, testChallengeID)
	assert.NoError(t, err)
	assert.Len(t, res.Members, 3)

	byUser := map[string]*stats.MemberStat{}
	for _, m := range res.Members {
		byUser[m.UserID] = m
	}

	assert.InDelta(t, 1.0, byUser["alice"].CompletionRate, 1e-9)
	assert.InDelta(t, 0.8, byUser["bob"].CompletionRate, 1e-9)
	assert.InDelta(t, 0.4, byUser["carol"].CompletionRate, 1e-9)

	// Equal points: alice outranks bob on streak.
	assert.Equal(t, 1, byUser["alice"].PointsRank)
	assert.Equal(t, 2, byUser["bob"].PointsRank)
	assert.Equal(t, 3, byUser["carol"].PointsRank)

	assert.Equal(t, 1, byUser["alice"].CompletionRank)
	assert.Equal(t, 2, byUser["bob"].CompletionRank)
	assert.Equal(t, 3, byUser["carol"].CompletionRank)

	assert.Equal(t, 3, res.Summary.TotalMembers)
	assert.Equal(t, 3, res.Summary.ActiveMembers)
	assert.Equal(t, 11, res.Summary.TotalCheckIns)
}

func TestRefresh_HabitAggregate(t *testing.T) {
	svc, store, _ := newFixture(t)
	ctx := context.Background()

	addMember(store, "alice", 0, 0, 0)
	addMember(store, "bob", 0, 0, 0)
	for i := 0; i < 3; i++ {
		addCheckIn(t, store, "alice", time.Date(2025, 3, 1+i, 8, 0, 0, 0, time.UTC))
	}
	addCheckIn(t, store, "bob", time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC))

	res, err := svc.Refresh(ctx, testChallengeID)
	assert.NoError(t, err)
	assert.Len(t, res.Habits, 1)

	// 4 check-ins over elapsedDays(5) x activeMembers(2).
	habit := res.Habits[0]
	assert.Equal(t, testHabitID, habit.HabitID)
	assert.Equal(t, 4, habit.TotalCheckIns)
	assert.InDelta(t, 0.4, habit.CompletionRate, 1e-9)
}

func TestRefresh_Idempotent(t *testing.T) {
	svc, store, _ := newFixture(t)
	ctx := context.Background()
	addMember(store, "alice", 50, 3, 3)

	first, err := svc.Refresh(ctx, testChallengeID)
	assert.NoError(t, err)
	second, err := svc.Refresh(ctx, testChallengeID)
	assert.NoError(t, err)

	assert.Equal(t, len(first.Members), len(second.Members))
	for i := range first.Members {
		assert.Equal(t, first.Members[i].PointsRank, second.Members[i].PointsRank)
		assert.Equal(t, first.Members[i].CompletionRate, second.Members[i].CompletionRate)
	}
}

func TestRefresh_RateClamped(t *testing.T) {
	svc, store, _ := newFixture(t)
	ctx := context.Background()

	// More check-ins than elapsed slots (backfilled data): clamp to 1.
	addMember(store, "alice", 0, 0, 50)

	res, err := svc.Refresh(ctx, testChallengeID)
	assert.NoError(t, err)
	assert.Equal(t, 1.0, res.Members[0].CompletionRate)
}

func TestRefresh_ConcurrentCallsCollapse(t *testing.T) {
	svc, store, _ := newFixture(t)
	ctx := context.Background()
	addMember(store, "alice", 10, 1, 1)

	const callers = 10
	var wg sync.WaitGroup
	results := make([]*stats.Result, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = svc.Refresh(ctx, testChallengeID)
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		if assert.NotNil(t, r) {
			assert.Len(t, r.Members, 1)
		}
	}
}

func TestTodayBoard(t *testing.T) {
	svc, store, clock := newFixture(t)
	ctx := context.Background()

	addMember(store, "alice", 0, 0, 0)
	addMember(store, "bob", 0, 0, 0)
	store.PutMembership(&membership.Membership{
		ChallengeID: testChallengeID,
		UserID:      "gone",
		Status:      membership.StatusLeft,
	})

	addCheckIn(t, store, "alice", clock.Now())

	board, err := svc.TodayBoard(ctx, testChallengeID, testHabitID)
	assert.NoError(t, err)
	assert.Len(t, board.Members, 2)
	assert.Equal(t, 1, board.TotalCheckInsToday)
	assert.InDelta(t, 50.0, board.CompletionRate, 1e-9)

	for _, row := range board.Members {
		switch row.UserID {
		case "alice":
			assert.True(t, row.CheckedInToday)
			assert.NotNil(t, row.CheckInTime)
		case "bob":
			assert.False(t, row.CheckedInToday)
		}
	}
}
