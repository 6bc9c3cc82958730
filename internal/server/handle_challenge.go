package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aulaboard/conquista/internal/conquest"
)

type ChallengeRequest struct {
	TerritoryID string `json:"territoryId"`
	ClanID      string `json:"clanId"`
}

func handleInitiateChallenge(store Store, broker *Broker, kind conquest.ChallengeKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameID := chi.URLParam(r, "gameID")

		var req ChallengeRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.TerritoryID == "" || req.ClanID == "" {
			writeError(w, http.StatusBadRequest, "territoryId and clanId are required")
			return
		}

		ch, err := store.InitiateChallenge(r.Context(), classroomFrom(r), gameID, req.TerritoryID, req.ClanID, kind)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		broker.Publish(gameID, SSEEvent{
			Type:        "challenge_initiated",
			ChallengeID: ch.ID,
			TerritoryID: ch.TerritoryID,
			ClanID:      ch.ChallengerClanID,
		})
		writeJSON(w, http.StatusCreated, ch)
	}
}

// ResolveRequest carries either a graded verdict or a raw answer payload.
// Exactly one must be present: an answer is checked against the challenge
// question's key, a verdict is applied as-is (host-judged rounds).
type ResolveRequest struct {
	IsCorrect      *bool           `json:"isCorrect,omitempty"`
	Answer         json.RawMessage `json:"answer,omitempty"`
	ElapsedSeconds int             `json:"elapsedSeconds,omitempty"`
}

func handleResolveChallenge(store Store, broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		classroom := classroomFrom(r)
		challengeID := chi.URLParam(r, "challengeID")

		var req ResolveRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if (req.IsCorrect == nil) == (len(req.Answer) == 0) {
			writeError(w, http.StatusBadRequest, "provide exactly one of isCorrect or answer")
			return
		}

		ch, err := store.GetChallenge(r.Context(), classroom, challengeID)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		correct := false
		switch {
		case req.IsCorrect != nil:
			correct = *req.IsCorrect
		case ch.Outcome == conquest.OutcomePending:
			correct, err = conquest.CheckAnswer(ch.Question, req.Answer)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
		}

		result, err := store.ResolveChallenge(r.Context(), classroom, challengeID, correct)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		if !result.AlreadyResolved {
			event := SSEEvent{
				Type:        "challenge_resolved",
				ChallengeID: result.Challenge.ID,
				TerritoryID: result.Challenge.TerritoryID,
				ClanID:      result.Challenge.ChallengerClanID,
			}
			if result.WinnerClanID != nil {
				event.WinnerClanID = *result.WinnerClanID
			}
			broker.Publish(result.Challenge.GameID, event)
			if result.GameFinished {
				broker.Publish(result.Challenge.GameID, SSEEvent{Type: "game_finished"})
			}
		}
		writeJSON(w, http.StatusOK, result)
	}
}
