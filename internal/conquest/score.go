package conquest

import (
	"math"
	"sort"
)

// DefaultStreakWindow is the number of consecutive wins that earns one
// bonus increment when a game doesn't configure its own window.
const DefaultStreakWindow = 10

// Points computes the award for one won challenge.
//
//	base × multiplier × (1 + floor(streakBefore/window) × bonusPct/100)
//
// streakBefore is the winner's streak before this win is counted, so the
// first bonus increment lands on the win after a full window (win 11 for a
// window of 10), and the result is rounded to the nearest integer.
func Points(base int, multiplier float64, streakBefore, window, bonusPct int) int {
	if window <= 0 {
		window = DefaultStreakWindow
	}
	factor := 1 + float64(streakBefore/window)*float64(bonusPct)/100
	return int(math.Round(float64(base) * multiplier * factor))
}

// RankingEntry is one row of the live or frozen ranking.
type RankingEntry struct {
	ClanID               string `json:"clanId"`
	Name                 string `json:"name"`
	Color                string `json:"color,omitempty"`
	Emblem               string `json:"emblem,omitempty"`
	TotalPoints          int    `json:"totalPoints"`
	TerritoriesOwned     int    `json:"territoriesOwned"`
	TerritoriesConquered int    `json:"territoriesConquered"`
	SuccessfulDefenses   int    `json:"successfulDefenses"`
	BestStreak           int    `json:"bestStreak"`
}

// SortRanking orders entries by total points, then territories owned, then
// best streak, all descending. Clan ID breaks remaining ties so repeated
// reads return an identical ordering.
func SortRanking(entries []RankingEntry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.TotalPoints != b.TotalPoints {
			return a.TotalPoints > b.TotalPoints
		}
		if a.TerritoriesOwned != b.TerritoriesOwned {
			return a.TerritoriesOwned > b.TerritoriesOwned
		}
		if a.BestStreak != b.BestStreak {
			return a.BestStreak > b.BestStreak
		}
		return a.ClanID < b.ClanID
	})
}
