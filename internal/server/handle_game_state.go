package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleGameState serves the full read model for one game: map, territory
// ownership, clan scores, live ranking, question stats and any pending
// challenges. It never mutates state, so both teacher and student views may
// poll it as often as they like.
func handleGameState(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := store.GameState(r.Context(), classroomFrom(r), chi.URLParam(r, "gameID"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, state)
	}
}
