package server

import (
	"database/sql"
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"

	"github.com/aulaboard/conquista/internal/conquest"
)

func addRoutes(r chi.Router, logger *slog.Logger, db *sql.DB, store Store, broker *Broker, spaDir string) {
	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("Conquista API", "/openapi.json", "/docs"))
	r.Get("/healthz", handleHealth(logger, db))
	r.Get("/ws/echo", handleWSEcho(logger))

	// Admin auth uses a cookie session.
	r.Post("/api/admin/login", handleAdminLogin(store))
	r.Post("/api/admin/logout", handleAdminLogout(store))
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(adminAuthMiddleware(store))
		r.Get("/me", handleAdminMe())

		// Map authoring. Maps are global: any classroom can play them.
		r.Get("/maps", handleListMaps(store))
		r.Post("/maps", handleCreateMap(store))
		r.Get("/maps/{mapID}", handleGetMap(store))
		r.Post("/maps/{mapID}/territories", handleCreateTerritories(store))
	})

	r.Route("/api/classrooms/{classroom}", func(r chi.Router) {
		r.Use(classroomMiddleware(store))

		// Lifecycle, admin only.
		r.Group(func(r chi.Router) {
			r.Use(adminAuthMiddleware(store))
			r.Post("/games", handleCreateGame(store))
			r.Post("/games/{gameID}/start", handleTransitionGame(store, broker, conquest.StatusActive, "game_started"))
			r.Post("/games/{gameID}/pause", handleTransitionGame(store, broker, conquest.StatusPaused, "game_paused"))
			r.Post("/games/{gameID}/resume", handleTransitionGame(store, broker, conquest.StatusActive, "game_resumed"))
			r.Post("/games/{gameID}/finish", handleFinishGame(store, broker))
		})

		// Play surface, driven by the classroom host device.
		r.Get("/games", handleListGames(store))
		r.Get("/games/{gameID}/state", handleGameState(store))
		r.Get("/games/{gameID}/results", handleGameResults(store))
		r.Get("/games/{gameID}/events", handleEvents(store, broker))
		r.Post("/games/{gameID}/challenges/conquest", handleInitiateChallenge(store, broker, conquest.KindConquest))
		r.Post("/games/{gameID}/challenges/defense", handleInitiateChallenge(store, broker, conquest.KindDefense))
		r.Post("/games/{gameID}/challenges/{challengeID}/resolve", handleResolveChallenge(store, broker))
	})

	if spaDir != "" {
		if info, err := os.Stat(spaDir); err == nil && info.IsDir() {
			logger.Info("serving SPA", "dir", spaDir)
			r.NotFound(handleSPA(spaDir))
		}
	}
}
