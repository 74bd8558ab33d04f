// Package stats contains the derived, read-optimized projections of the
// check-in ledger: per-habit aggregates, per-member ranking stats, and the
// per-challenge summary. Every type here is rebuilt wholesale from source
// records by the aggregator and never incrementally patched.
package stats

import (
	"time"

	"github.com/darezone/darezone-ledger/internal/domain/challenge"
	"github.com/darezone/darezone-ledger/internal/domain/membership"
	"github.com/darezone/darezone-ledger/pkg/timeutil"
)

// HabitAggregate is the derived per-habit projection.
type HabitAggregate struct {
	ChallengeID string
	HabitID     string

	// TotalCheckIns counts every check-in for this habit across members.
	TotalCheckIns int

	// CompletionRate = totalCheckIns / (elapsedDays * activeMemberCount),
	// clamped to [0, 1]. May be stale between refreshes.
	CompletionRate float64

	ComputedAt time.Time
}

// MemberStat is the derived per-member projection used for leaderboards.
type MemberStat struct {
	ChallengeID string
	UserID      string

	// Source counters copied from the ledger at refresh time.
	PointsEarned  int
	CurrentStreak int
	TotalCheckIns int

	// CompletionRate = totalCheckIns / (elapsedDays * habitCount),
	// clamped to [0, 1].
	CompletionRate float64

	// PointsRank is the dense rank by (points desc, streak desc).
	PointsRank int

	// CompletionRank is the dense rank by completion rate desc.
	CompletionRank int

	ComputedAt time.Time
}

// ChallengeSummary is the derived whole-challenge projection.
type ChallengeSummary struct {
	ChallengeID string

	TotalMembers      int
	ActiveMembers     int
	AvgCompletionRate float64
	AvgPoints         float64
	AvgStreak         float64
	TotalCheckIns     int

	ComputedAt time.Time
}

// CheckInRecord is the minimal ledger tuple the aggregator consumes.
type CheckInRecord struct {
	HabitID string
	UserID  string
	Day     timeutil.Day
}

// DayCheckIn is one committed check-in on a specific day, as the today
// board consumes it.
type DayCheckIn struct {
	HabitID   string
	UserID    string
	CreatedAt time.Time
	PhotoURL  string
}

// Snapshot is a consistent read of every source record for one challenge,
// taken as of a single instant. The aggregator derives all projections from
// it, never mixing pre- and post-write values.
type Snapshot struct {
	Challenge   *challenge.Challenge
	Memberships []*membership.Membership
	CheckIns    []CheckInRecord
	TakenAt     time.Time
}

// Result is the output of one full refresh.
type Result struct {
	ChallengeID string
	Members     []*MemberStat
	Habits      []*HabitAggregate
	Summary     *ChallengeSummary
}

// ══════════════════════════════════════════════════════════════════════════════
// TODAY BOARD (read model for "Who's checked in?")
// ══════════════════════════════════════════════════════════════════════════════

// MemberCheckInStatus is one member's row on the today board.
type MemberCheckInStatus struct {
	UserID         string
	CheckedInToday bool
	CheckInTime    *time.Time
	PhotoURL       string
}

// HabitBoard is the today board for a single habit.
type HabitBoard struct {
	HabitID string
	Members []MemberCheckInStatus

	// CompletionRate is today's checked-in fraction, in percent.
	CompletionRate float64

	TotalCheckInsToday int
}

// ClampRate clamps a derived rate into [0, 1].
func ClampRate(rate float64) float64 {
	if rate < 0 {
		return 0
	}
	if rate > 1 {
		return 1
	}
	return rate
}
