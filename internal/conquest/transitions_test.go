package conquest

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to GameStatus
		want     bool
	}{
		{StatusDraft, StatusActive, true},
		{StatusDraft, StatusPaused, false},
		{StatusDraft, StatusFinished, true},
		{StatusActive, StatusPaused, true},
		{StatusActive, StatusFinished, true},
		{StatusActive, StatusDraft, false},
		{StatusPaused, StatusActive, true},
		{StatusPaused, StatusFinished, true},
		{StatusFinished, StatusActive, false},
		{StatusFinished, StatusFinished, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
