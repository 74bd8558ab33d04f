package stats

import "sort"

// RankByPoints assigns dense ranks over (PointsEarned desc, CurrentStreak desc).
// Members with equal points and streak share a rank; the next distinct pair
// gets rank+1 (dense ranking, no gaps). The slice is re-ordered in place.
func RankByPoints(members []*MemberStat) {
	sort.SliceStable(members, func(i, j int) bool {
		if members[i].PointsEarned != members[j].PointsEarned {
			return members[i].PointsEarned > members[j].PointsEarned
		}
		return members[i].CurrentStreak > members[j].CurrentStreak
	})

	rank := 0
	for i, m := range members {
		if i == 0 || m.PointsEarned != members[i-1].PointsEarned || m.CurrentStreak != members[i-1].CurrentStreak {
			rank++
		}
		m.PointsRank = rank
	}
}

// RankByCompletion assigns dense ranks over CompletionRate desc.
// The slice is re-ordered in place.
func RankByCompletion(members []*MemberStat) {
	sort.SliceStable(members, func(i, j int) bool {
		return members[i].CompletionRate > members[j].CompletionRate
	})

	rank := 0
	for i, m := range members {
		if i == 0 || m.CompletionRate != members[i-1].CompletionRate {
			rank++
		}
		m.CompletionRank = rank
	}
}
