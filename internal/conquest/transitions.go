package conquest

// transitions lists the legal lifecycle moves. Finishing is reachable from
// every non-finished status; everything else is a single step.
var transitions = map[GameStatus][]GameStatus{
	StatusDraft:  {StatusActive, StatusFinished},
	StatusActive: {StatusPaused, StatusFinished},
	StatusPaused: {StatusActive, StatusFinished},
}

// CanTransition reports whether a game may move from one status to another.
func CanTransition(from, to GameStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
