package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/aulaboard/conquista/internal/conquest"
)

type GameRequest struct {
	MapID           string   `json:"mapId"`
	Name            string   `json:"name"`
	ClanIDs         []string `json:"clanIds"`
	BankIDs         []string `json:"bankIds"`
	MaxRounds       int      `json:"maxRounds"`
	TimePerQuestion int      `json:"timePerQuestion"`
	StreakWindow    int      `json:"streakWindow"`
}

func handleCreateGame(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		classroom := classroomFrom(r)

		var req GameRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}
		if len(req.ClanIDs) < 2 {
			writeError(w, http.StatusBadRequest, "at least two clans are required")
			return
		}
		if len(req.BankIDs) < 1 {
			writeError(w, http.StatusBadRequest, "at least one question bank is required")
			return
		}
		if req.MaxRounds < 0 {
			writeError(w, http.StatusBadRequest, "maxRounds cannot be negative")
			return
		}
		if req.TimePerQuestion <= 0 {
			req.TimePerQuestion = 30
		}
		if req.StreakWindow <= 0 {
			req.StreakWindow = conquest.DefaultStreakWindow
		}

		m, err := store.GetMap(r.Context(), req.MapID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if len(m.Territories) == 0 {
			writeError(w, http.StatusBadRequest, "map has no territories")
			return
		}
		if err := store.ClansExist(r.Context(), classroom, req.ClanIDs); err != nil {
			writeDomainError(w, err)
			return
		}
		if err := store.BanksExist(r.Context(), classroom, req.BankIDs); err != nil {
			writeDomainError(w, err)
			return
		}

		g, err := store.CreateGame(r.Context(), conquest.Game{
			Classroom:       classroom,
			MapID:           req.MapID,
			Name:            req.Name,
			ClanIDs:         req.ClanIDs,
			BankIDs:         req.BankIDs,
			MaxRounds:       req.MaxRounds,
			TimePerQuestion: req.TimePerQuestion,
			StreakWindow:    req.StreakWindow,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, g)
	}
}

func handleListGames(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		games, err := store.ListGames(r.Context(), classroomFrom(r))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if games == nil {
			games = []conquest.Game{}
		}
		writeJSON(w, http.StatusOK, games)
	}
}

// handleTransitionGame covers start, pause and resume; finish has its own
// handler because it snapshots the final ranking.
func handleTransitionGame(store Store, broker *Broker, to conquest.GameStatus, event string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameID := chi.URLParam(r, "gameID")

		g, err := store.TransitionGame(r.Context(), classroomFrom(r), gameID, to)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		broker.Publish(gameID, SSEEvent{Type: event})
		writeJSON(w, http.StatusOK, g)
	}
}

func handleFinishGame(store Store, broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameID := chi.URLParam(r, "gameID")

		results, err := store.FinishGame(r.Context(), classroomFrom(r), gameID)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		broker.Publish(gameID, SSEEvent{Type: "game_finished"})
		writeJSON(w, http.StatusOK, results)
	}
}

// handleGameResults serves the frozen ranking of a finished game. Safe to
// call repeatedly: the snapshot never changes after finish.
func handleGameResults(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results, err := store.GetResults(r.Context(), classroomFrom(r), chi.URLParam(r, "gameID"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, results)
	}
}
