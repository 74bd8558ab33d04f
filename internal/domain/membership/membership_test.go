package membership

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/darezone/darezone-ledger/internal/domain/shared"
	"github.com/darezone/darezone-ledger/pkg/timeutil"
)

func day(s string) timeutil.Day {
	d, err := timeutil.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestStreakHistory_Empty(t *testing.T) {
	current, longest := StreakHistory(nil, day("2025-03-10"))
	assert.Equal(t, 0, current)
	assert.Equal(t, 0, longest)
}

func TestStreakHistory_SingleDayToday(t *testing.T) {
	current, longest := StreakHistory([]timeutil.Day{day("2025-03-10")}, day("2025-03-10"))
	assert.Equal(t, 1, current)
	assert.Equal(t, 1, longest)
}

func TestStreakHistory_BrokenRun(t *testing.T) {
	// Days 1, 2, skip 3, day 4: trailing run is length 1, longest is 2.
	days := []timeutil.Day{
		day("2025-03-01"),
		day("2025-03-02"),
		day("2025-03-04"),
	}

	current, longest := StreakHistory(days, day("2025-03-04"))
	assert.Equal(t, 1, current)
	assert.Equal(t, 2, longest)
}

func TestStreakHistory_AliveFromYesterday(t *testing.T) {
	// The member has not checked in today yet; yesterday's run still counts.
	days := []timeutil.Day{
		day("2025-03-07"),
		day("2025-03-08"),
		day("2025-03-09"),
	}

	current, longest := StreakHistory(days, day("2025-03-10"))
	assert.Equal(t, 3, current)
	assert.Equal(t, 3, longest)
}

func TestStreakHistory_StaleRun(t *testing.T) {
	// Last check-in was two days ago: the trailing run is dead.
	days := []timeutil.Day{
		day("2025-03-05"),
		day("2025-03-06"),
		day("2025-03-07"),
		day("2025-03-08"),
	}

	current, longest := StreakHistory(days, day("2025-03-10"))
	assert.Equal(t, 0, current)
	assert.Equal(t, 4, longest)
}

func TestStreakHistory_DuplicateDays(t *testing.T) {
	days := []timeutil.Day{
		day("2025-03-09"),
		day("2025-03-09"),
		day("2025-03-10"),
	}

	current, longest := StreakHistory(days, day("2025-03-10"))
	assert.Equal(t, 2, current)
	assert.Equal(t, 2, longest)
}

func TestStreakHistory_MonthBoundary(t *testing.T) {
	days := []timeutil.Day{
		day("2025-02-28"),
		day("2025-03-01"),
	}

	current, longest := StreakHistory(days, day("2025-03-01"))
	assert.Equal(t, 2, current)
	assert.Equal(t, 2, longest)
}

func TestApplyCheckIn(t *testing.T) {
	m := &Membership{
		ChallengeID:   "ch-1",
		UserID:        "u-1",
		Status:        StatusActive,
		CurrentStreak: 2,
		LongestStreak: 5,
		TotalCheckIns: 7,
		PointsEarned:  90,
	}
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	m.ApplyCheckIn(3, 20, now)

	assert.Equal(t, 3, m.CurrentStreak)
	assert.Equal(t, 5, m.LongestStreak)
	assert.Equal(t, 8, m.TotalCheckIns)
	assert.Equal(t, 110, m.PointsEarned)
	if assert.NotNil(t, m.LastCheckInAt) {
		assert.Equal(t, now, *m.LastCheckInAt)
	}
}

func TestApplyCheckIn_NewLongest(t *testing.T) {
	m := &Membership{CurrentStreak: 5, LongestStreak: 5}

	m.ApplyCheckIn(6, 20, time.Now())

	assert.Equal(t, 6, m.CurrentStreak)
	assert.Equal(t, 6, m.LongestStreak)
}

func TestConsumeReminderQuota(t *testing.T) {
	m := &Membership{ReminderQuota: 1}

	assert.NoError(t, m.ConsumeReminderQuota())
	assert.Equal(t, 0, m.ReminderQuota)

	err := m.ConsumeReminderQuota()
	assert.ErrorIs(t, err, shared.ErrNoQuotaRemaining)
	assert.Equal(t, 0, m.ReminderQuota)
}

func TestValidate_StreakInvariant(t *testing.T) {
	m := &Membership{
		ChallengeID:   "ch-1",
		UserID:        "u-1",
		CurrentStreak: 4,
		LongestStreak: 2,
	}

	err := m.Validate()
	assert.ErrorIs(t, err, shared.ErrInvariantViolation)
}

func TestIsActive(t *testing.T) {
	assert.True(t, (&Membership{Status: StatusActive}).IsActive())
	assert.False(t, (&Membership{Status: StatusPending}).IsActive())
	assert.False(t, (&Membership{Status: StatusLeft}).IsActive())
	assert.False(t, (&Membership{Status: StatusKicked}).IsActive())
}
