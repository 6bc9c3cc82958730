package conquest

import "errors"

// Engine errors. All of these are client-recoverable: re-fetch state and retry.
var (
	ErrNotFound              = errors.New("not found")
	ErrInvalidTransition     = errors.New("invalid game transition")
	ErrTerritoryUnavailable  = errors.New("territory unavailable")
	ErrInvalidClan           = errors.New("clan is not part of this game")
	ErrGamePaused            = errors.New("game is paused")
	ErrChallengeNotFound     = errors.New("challenge not found")
	ErrQuestionBankExhausted = errors.New("no questions available")
	ErrMapInUse              = errors.New("map is referenced by an unfinished game")
)
