package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func member(userID string, points, streak int, rate float64) *MemberStat {
	return &MemberStat{
		ChallengeID:    "ch-1",
		UserID:         userID,
		PointsEarned:   points,
		CurrentStreak:  streak,
		CompletionRate: rate,
	}
}

func TestRankByPoints_DenseRanks(t *testing.T) {
	members := []*MemberStat{
		member("a", 100, 3, 0),
		member("b", 100, 3, 0),
		member("c", 90, 9, 0),
		member("d", 40, 1, 0),
	}

	RankByPoints(members)

	ranks := map[string]int{}
	for _, m := range members {
		ranks[m.UserID] = m.PointsRank
	}

	// Tied members share a rank and the next distinct pair is rank+1.
	assert.Equal(t, 1, ranks["a"])
	assert.Equal(t, 1, ranks["b"])
	assert.Equal(t, 2, ranks["c"])
	assert.Equal(t, 3, ranks["d"])
}

func TestRankByPoints_StreakBreaksTie(t *testing.T) {
	members := []*MemberStat{
		member("low", 50, 1, 0),
		member("high", 50, 5, 0),
	}

	RankByPoints(members)

	assert.Equal(t, "high", members[0].UserID)
	assert.Equal(t, 1, members[0].PointsRank)
	assert.Equal(t, 2, members[1].PointsRank)
}

func TestRankByCompletion(t *testing.T) {
	members := []*MemberStat{
		member("a", 0, 0, 0.25),
		member("b", 0, 0, 1.0),
		member("c", 0, 0, 0.25),
		member("d", 0, 0, 0.0),
	}

	RankByCompletion(members)

	ranks := map[string]int{}
	for _, m := range members {
		ranks[m.UserID] = m.CompletionRank
	}

	assert.Equal(t, 1, ranks["b"])
	assert.Equal(t, 2, ranks["a"])
	assert.Equal(t, 2, ranks["c"])
	assert.Equal(t, 3, ranks["d"])
}

func TestRankByPoints_Empty(t *testing.T) {
	assert.NotPanics(t, func() {
		RankByPoints(nil)
		RankByCompletion(nil)
	})
}

func TestClampRate(t *testing.T) {
	assert.Equal(t, 0.0, ClampRate(-0.1))
	assert.Equal(t, 1.0, ClampRate(1.5))
	assert.Equal(t, 0.5, ClampRate(0.5))
}
