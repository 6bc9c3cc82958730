package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/aulaboard/conquista/internal/conquest"
)

// SeedDemo creates a demo classroom with clans, question banks, a map and an
// admin account, if the database is empty. Idempotent: does nothing when a
// classroom already exists.
func SeedDemo(ctx context.Context, logger *slog.Logger, db *sql.DB) error {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM classrooms`).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("conquista"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `
		INSERT INTO admins (email, password_hash) VALUES (?, ?)
	`, "profe@demo.edu", string(hash)); err != nil {
		return fmt.Errorf("seeding admin: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
		INSERT INTO classrooms (slug, name) VALUES ('demo', 'Aula Demo')
	`); err != nil {
		return fmt.Errorf("seeding classroom: %w", err)
	}

	clans := []conquest.Clan{
		{ID: "clan-fenix", Name: "Fénix", Color: "#e25822", Emblem: "🔥", Members: 5},
		{ID: "clan-dragones", Name: "Dragones", Color: "#2e8b57", Emblem: "🐉", Members: 5},
		{ID: "clan-lobos", Name: "Lobos", Color: "#4169e1", Emblem: "🐺", Members: 4},
		{ID: "clan-buhos", Name: "Búhos", Color: "#8b008b", Emblem: "🦉", Members: 4},
	}
	for _, c := range clans {
		if _, err := db.ExecContext(ctx, `
			INSERT INTO clans (id, classroom_slug, name, color, emblem, members)
			VALUES (?, 'demo', ?, ?, ?, ?)
		`, c.ID, c.Name, c.Color, c.Emblem, c.Members); err != nil {
			return fmt.Errorf("seeding clan %s: %w", c.Name, err)
		}
	}

	banks := map[string]struct {
		name      string
		questions []conquest.Question
	}{
		"bank-mate": {
			name: "Matemáticas",
			questions: []conquest.Question{
				{ID: "mate-1", Type: conquest.SingleChoice, Text: "¿Cuánto es 7 × 8?",
					Options: []string{"54", "56", "64"}, Correct: json.RawMessage(`1`)},
				{ID: "mate-2", Type: conquest.TrueFalse, Text: "El número 91 es primo.",
					Correct: json.RawMessage(`false`)},
				{ID: "mate-3", Type: conquest.MultipleChoice, Text: "¿Cuáles son múltiplos de 6?",
					Options: []string{"12", "15", "18", "20"}, Correct: json.RawMessage(`[0, 2]`)},
			},
		},
		"bank-ciencias": {
			name: "Ciencias",
			questions: []conquest.Question{
				{ID: "cien-1", Type: conquest.SingleChoice, Text: "¿Qué planeta es el más grande?",
					Options: []string{"Tierra", "Júpiter", "Saturno"}, Correct: json.RawMessage(`1`)},
				{ID: "cien-2", Type: conquest.Matching, Text: "Relaciona el animal con su clase.",
					Pairs: []conquest.MatchPair{
						{Left: "Cóndor", Right: "Ave"},
						{Left: "Vicuña", Right: "Mamífero"},
						{Left: "Rana", Right: "Anfibio"},
					}},
				{ID: "cien-3", Type: conquest.TrueFalse, Text: "El agua hierve a 100 °C al nivel del mar.",
					Correct: json.RawMessage(`true`)},
			},
		},
	}
	for id, b := range banks {
		questionsJSON, _ := json.Marshal(b.questions)
		if _, err := db.ExecContext(ctx, `
			INSERT INTO question_banks (id, classroom_slug, name, questions)
			VALUES (?, 'demo', ?, ?)
		`, id, b.name, string(questionsJSON)); err != nil {
			return fmt.Errorf("seeding bank %s: %w", b.name, err)
		}
	}

	mapID := uuid.NewString()
	if _, err := db.ExecContext(ctx, `
		INSERT INTO maps (id, name, grid_cols, grid_rows, base_conquest_points, base_defense_points, bonus_streak_points)
		VALUES (?, 'Valle de los Sabios', 4, 3, 100, 80, 50)
	`, mapID); err != nil {
		return fmt.Errorf("seeding map: %w", err)
	}

	territories := []conquest.Territory{
		{Name: "Bosque Nublado", GridX: 0, GridY: 0, Icon: "🌲", PointMultiplier: 1},
		{Name: "Río Hablador", GridX: 1, GridY: 0, Icon: "🏞️", PointMultiplier: 1},
		{Name: "Cumbre Nevada", GridX: 2, GridY: 1, Icon: "🏔️", PointMultiplier: 2, IsStrategic: true},
		{Name: "Desierto Rojo", GridX: 3, GridY: 1, Icon: "🏜️", PointMultiplier: 1},
		{Name: "Laguna Esmeralda", GridX: 1, GridY: 2, Icon: "💧", PointMultiplier: 1.5},
		{Name: "Ciudadela Antigua", GridX: 3, GridY: 2, Icon: "🏛️", PointMultiplier: 2, IsStrategic: true},
	}
	for _, t := range territories {
		if _, err := db.ExecContext(ctx, `
			INSERT INTO territories (id, map_id, name, grid_x, grid_y, icon, point_multiplier, is_strategic)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, uuid.NewString(), mapID, t.Name, t.GridX, t.GridY, t.Icon, t.PointMultiplier, t.IsStrategic); err != nil {
			return fmt.Errorf("seeding territory %s: %w", t.Name, err)
		}
	}

	logger.Info("demo classroom seeded", "classroom", "demo", "map_id", mapID)
	return nil
}
