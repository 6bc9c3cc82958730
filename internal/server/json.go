package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aulaboard/conquista/internal/conquest"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps engine errors onto HTTP statuses. Everything the
// engine returns is client-recoverable; only unknown errors become a 500.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, conquest.ErrNotFound),
		errors.Is(err, conquest.ErrChallengeNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, conquest.ErrInvalidClan):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, conquest.ErrInvalidTransition),
		errors.Is(err, conquest.ErrTerritoryUnavailable),
		errors.Is(err, conquest.ErrGamePaused),
		errors.Is(err, conquest.ErrQuestionBankExhausted),
		errors.Is(err, conquest.ErrMapInUse):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
