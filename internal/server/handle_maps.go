package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/aulaboard/conquista/internal/conquest"
)

type MapRequest struct {
	Name               string `json:"name"`
	GridCols           int    `json:"gridCols"`
	GridRows           int    `json:"gridRows"`
	BaseConquestPoints int    `json:"baseConquestPoints"`
	BaseDefensePoints  int    `json:"baseDefensePoints"`
	BonusStreakPoints  int    `json:"bonusStreakPoints"`
}

func handleCreateMap(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MapRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}
		if req.GridCols < 1 || req.GridRows < 1 {
			writeError(w, http.StatusBadRequest, "grid dimensions must be positive")
			return
		}
		if req.BaseConquestPoints <= 0 {
			req.BaseConquestPoints = 100
		}
		if req.BaseDefensePoints <= 0 {
			req.BaseDefensePoints = 80
		}
		if req.BonusStreakPoints < 0 {
			writeError(w, http.StatusBadRequest, "bonusStreakPoints cannot be negative")
			return
		}

		m, err := store.CreateMap(r.Context(), conquest.Map{
			Name:               req.Name,
			GridCols:           req.GridCols,
			GridRows:           req.GridRows,
			BaseConquestPoints: req.BaseConquestPoints,
			BaseDefensePoints:  req.BaseDefensePoints,
			BonusStreakPoints:  req.BonusStreakPoints,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, m)
	}
}

func handleListMaps(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		maps, err := store.ListMaps(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if maps == nil {
			maps = []MapSummary{}
		}
		writeJSON(w, http.StatusOK, maps)
	}
}

func handleGetMap(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := store.GetMap(r.Context(), chi.URLParam(r, "mapID"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, m)
	}
}

type TerritoryRequest struct {
	Name            string  `json:"name"`
	GridX           int     `json:"gridX"`
	GridY           int     `json:"gridY"`
	Icon            string  `json:"icon"`
	Color           string  `json:"color"`
	PointMultiplier float64 `json:"pointMultiplier"`
	IsStrategic     bool    `json:"isStrategic"`
}

type TerritoriesBatchRequest struct {
	Territories []TerritoryRequest `json:"territories"`
}

// handleCreateTerritories adds territories to a map in one batch. The map
// must not be referenced by an unfinished game.
func handleCreateTerritories(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mapID := chi.URLParam(r, "mapID")

		var req TerritoriesBatchRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if len(req.Territories) == 0 {
			writeError(w, http.StatusBadRequest, "territories are required")
			return
		}

		m, err := store.GetMap(r.Context(), mapID)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		taken := make(map[[2]int]bool, len(m.Territories))
		for _, t := range m.Territories {
			taken[[2]int{t.GridX, t.GridY}] = true
		}

		ts := make([]conquest.Territory, 0, len(req.Territories))
		for i, tr := range req.Territories {
			tr.Name = strings.TrimSpace(tr.Name)
			if tr.Name == "" {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("territory %d: name is required", i))
				return
			}
			if tr.GridX < 0 || tr.GridX >= m.GridCols || tr.GridY < 0 || tr.GridY >= m.GridRows {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("territory %q: position outside the %dx%d grid", tr.Name, m.GridCols, m.GridRows))
				return
			}
			pos := [2]int{tr.GridX, tr.GridY}
			if taken[pos] {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("territory %q: position (%d,%d) already occupied", tr.Name, tr.GridX, tr.GridY))
				return
			}
			taken[pos] = true
			if tr.PointMultiplier < 0 {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("territory %q: negative multiplier", tr.Name))
				return
			}
			ts = append(ts, conquest.Territory{
				Name:            tr.Name,
				GridX:           tr.GridX,
				GridY:           tr.GridY,
				Icon:            tr.Icon,
				Color:           tr.Color,
				PointMultiplier: tr.PointMultiplier,
				IsStrategic:     tr.IsStrategic,
			})
		}

		created, err := store.AddTerritories(r.Context(), mapID, ts)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}
