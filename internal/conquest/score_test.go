package conquest

import "testing"

func TestPoints(t *testing.T) {
	tests := []struct {
		name         string
		base         int
		multiplier   float64
		streakBefore int
		window       int
		bonusPct     int
		want         int
	}{
		{"no streak", 100, 1, 0, 10, 50, 100},
		{"streak below window", 100, 1, 9, 10, 50, 100},
		{"win after full window", 100, 1, 10, 10, 50, 150},
		{"two windows", 100, 1, 20, 10, 50, 200},
		{"strategic multiplier", 100, 2, 0, 10, 50, 200},
		{"multiplier with bonus", 100, 1.5, 10, 10, 50, 225},
		{"rounds to nearest", 15, 1.5, 0, 10, 50, 23},
		{"zero window falls back to default", 100, 1, 10, 0, 50, 150},
		{"no bonus configured", 100, 1, 30, 10, 0, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Points(tt.base, tt.multiplier, tt.streakBefore, tt.window, tt.bonusPct)
			if got != tt.want {
				t.Errorf("Points() = %d, want %d", got, tt.want)
			}
		})
	}
}

// The 11th consecutive win includes exactly one bonus increment for a
// window of 10; the 10th does not.
func TestPointsStreakBoundary(t *testing.T) {
	var awards []int
	for streak := 0; streak < 11; streak++ {
		awards = append(awards, Points(100, 1, streak, 10, 25))
	}

	for i := 0; i < 10; i++ {
		if awards[i] != 100 {
			t.Errorf("win %d: award = %d, want 100", i+1, awards[i])
		}
	}
	if awards[10] != 125 {
		t.Errorf("win 11: award = %d, want 125", awards[10])
	}
}

func TestSortRanking(t *testing.T) {
	entries := []RankingEntry{
		{ClanID: "c", TotalPoints: 50, TerritoriesOwned: 3, BestStreak: 2},
		{ClanID: "a", TotalPoints: 80, TerritoriesOwned: 1, BestStreak: 1},
		{ClanID: "d", TotalPoints: 50, TerritoriesOwned: 3, BestStreak: 5},
		{ClanID: "b", TotalPoints: 50, TerritoriesOwned: 4, BestStreak: 0},
	}

	SortRanking(entries)

	want := []string{"a", "b", "d", "c"}
	for i, id := range want {
		if entries[i].ClanID != id {
			t.Errorf("position %d: got %s, want %s", i, entries[i].ClanID, id)
		}
	}
}

func TestSortRankingStable(t *testing.T) {
	entries := []RankingEntry{
		{ClanID: "z", TotalPoints: 10},
		{ClanID: "a", TotalPoints: 10},
	}

	SortRanking(entries)

	if entries[0].ClanID != "a" {
		t.Errorf("tie should break on clan id, got %s first", entries[0].ClanID)
	}
}
