package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aulaboard/conquista/internal/conquest"
)

const timeLayout = "2006-01-02T15:04:05.000Z"

func stamp(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type SQLiteStore struct {
	db        *sql.DB
	selector  *conquest.Selector
	lockGrace time.Duration
}

func NewSQLiteStore(db *sql.DB, lockGrace time.Duration) *SQLiteStore {
	return &SQLiteStore{
		db:        db,
		selector:  conquest.NewSelector(),
		lockGrace: lockGrace,
	}
}

// --- Admin auth ---

func (s *SQLiteStore) AdminByEmail(ctx context.Context, email string) (string, string, error) {
	var adminID, passwordHash string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, password_hash FROM admins WHERE email = ?
	`, email).Scan(&adminID, &passwordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", conquest.ErrNotFound
	}
	return adminID, passwordHash, err
}

func (s *SQLiteStore) CreateAdminSession(ctx context.Context, adminID string) (string, error) {
	var sessionID string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO admin_sessions (admin_id)
		VALUES (?)
		RETURNING id
	`, adminID).Scan(&sessionID)
	return sessionID, err
}

func (s *SQLiteStore) DeleteAdminSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM admin_sessions WHERE id = ?`, sessionID)
	return err
}

func (s *SQLiteStore) AdminFromSession(ctx context.Context, sessionID string) (adminSession, error) {
	var sess adminSession
	err := s.db.QueryRowContext(ctx, `
		SELECT a.id, a.email
		FROM admin_sessions s
		JOIN admins a ON a.id = s.admin_id
		WHERE s.id = ?
	`, sessionID).Scan(&sess.AdminID, &sess.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return adminSession{}, errNoAdminSession
	}
	return sess, err
}

// --- Roster and banks ---

func (s *SQLiteStore) ClassroomExists(ctx context.Context, slug string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM classrooms WHERE slug = ?`, slug).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (s *SQLiteStore) ListClans(ctx context.Context, classroom string) ([]conquest.Clan, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, color, emblem, members
		FROM clans WHERE classroom_slug = ? ORDER BY name
	`, classroom)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clans []conquest.Clan
	for rows.Next() {
		var c conquest.Clan
		if err := rows.Scan(&c.ID, &c.Name, &c.Color, &c.Emblem, &c.Members); err != nil {
			return nil, err
		}
		clans = append(clans, c)
	}
	return clans, rows.Err()
}

func (s *SQLiteStore) ClansExist(ctx context.Context, classroom string, ids []string) error {
	for _, id := range ids {
		var one int
		err := s.db.QueryRowContext(ctx, `
			SELECT 1 FROM clans WHERE classroom_slug = ? AND id = ?
		`, classroom, id).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("clan %s: %w", id, conquest.ErrInvalidClan)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) BanksExist(ctx context.Context, classroom string, ids []string) error {
	for _, id := range ids {
		var one int
		err := s.db.QueryRowContext(ctx, `
			SELECT 1 FROM question_banks WHERE classroom_slug = ? AND id = ?
		`, classroom, id).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("question bank %s: %w", id, conquest.ErrNotFound)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// bankQuestions returns the union of the banks' contents.
func (s *SQLiteStore) bankQuestions(ctx context.Context, q dbtx, classroom string, bankIDs []string) ([]conquest.Question, error) {
	var pool []conquest.Question
	for _, id := range bankIDs {
		var raw string
		err := q.QueryRowContext(ctx, `
			SELECT questions FROM question_banks WHERE classroom_slug = ? AND id = ?
		`, classroom, id).Scan(&raw)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var qs []conquest.Question
		if err := json.Unmarshal([]byte(raw), &qs); err != nil {
			return nil, fmt.Errorf("decoding bank %s: %w", id, err)
		}
		pool = append(pool, qs...)
	}
	return pool, nil
}

// --- Maps ---

func (s *SQLiteStore) CreateMap(ctx context.Context, m conquest.Map) (conquest.Map, error) {
	m.ID = uuid.NewString()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO maps (id, name, grid_cols, grid_rows, base_conquest_points, base_defense_points, bonus_streak_points)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING created_at
	`, m.ID, m.Name, m.GridCols, m.GridRows, m.BaseConquestPoints, m.BaseDefensePoints, m.BonusStreakPoints).Scan(&m.CreatedAt)
	if err != nil {
		return conquest.Map{}, err
	}
	if m.Territories == nil {
		m.Territories = []conquest.Territory{}
	}
	return m, nil
}

func (s *SQLiteStore) mapInUse(ctx context.Context, mapID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM games WHERE map_id = ? AND status != 'finished'
	`, mapID).Scan(&n)
	return n > 0, err
}

func (s *SQLiteStore) AddTerritories(ctx context.Context, mapID string, ts []conquest.Territory) ([]conquest.Territory, error) {
	if _, err := s.GetMap(ctx, mapID); err != nil {
		return nil, err
	}
	inUse, err := s.mapInUse(ctx, mapID)
	if err != nil {
		return nil, err
	}
	if inUse {
		return nil, conquest.ErrMapInUse
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	for i := range ts {
		ts[i].ID = uuid.NewString()
		ts[i].MapID = mapID
		if ts[i].PointMultiplier == 0 {
			ts[i].PointMultiplier = 1
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO territories (id, map_id, name, grid_x, grid_y, icon, color, point_multiplier, is_strategic)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, ts[i].ID, mapID, ts[i].Name, ts[i].GridX, ts[i].GridY, ts[i].Icon, ts[i].Color, ts[i].PointMultiplier, ts[i].IsStrategic)
		if err != nil {
			return nil, fmt.Errorf("inserting territory %q: %w", ts[i].Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ts, nil
}

func (s *SQLiteStore) GetMap(ctx context.Context, mapID string) (conquest.Map, error) {
	var m conquest.Map
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, grid_cols, grid_rows, base_conquest_points, base_defense_points, bonus_streak_points, created_at
		FROM maps WHERE id = ?
	`, mapID).Scan(&m.ID, &m.Name, &m.GridCols, &m.GridRows, &m.BaseConquestPoints, &m.BaseDefensePoints, &m.BonusStreakPoints, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return m, conquest.ErrNotFound
	}
	if err != nil {
		return m, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, map_id, name, grid_x, grid_y, icon, color, point_multiplier, is_strategic
		FROM territories WHERE map_id = ? ORDER BY grid_y, grid_x
	`, mapID)
	if err != nil {
		return m, err
	}
	defer rows.Close()

	m.Territories = []conquest.Territory{}
	for rows.Next() {
		var t conquest.Territory
		if err := rows.Scan(&t.ID, &t.MapID, &t.Name, &t.GridX, &t.GridY, &t.Icon, &t.Color, &t.PointMultiplier, &t.IsStrategic); err != nil {
			return m, err
		}
		m.Territories = append(m.Territories, t)
	}
	return m, rows.Err()
}

func (s *SQLiteStore) ListMaps(ctx context.Context) ([]MapSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.name, m.grid_cols, m.grid_rows, COUNT(t.id), m.created_at
		FROM maps m
		LEFT JOIN territories t ON t.map_id = m.id
		GROUP BY m.id
		ORDER BY m.created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var maps []MapSummary
	for rows.Next() {
		var m MapSummary
		if err := rows.Scan(&m.ID, &m.Name, &m.GridCols, &m.GridRows, &m.TerritoryCount, &m.CreatedAt); err != nil {
			return nil, err
		}
		maps = append(maps, m)
	}
	return maps, rows.Err()
}

// --- Games ---

const gameColumns = `id, classroom_slug, map_id, name, status, current_round, max_rounds,
	time_per_question, streak_window, clan_ids, bank_ids, total_challenges,
	started_at, finished_at, created_at`

func scanGame(row interface{ Scan(...any) error }) (conquest.Game, error) {
	var g conquest.Game
	var clanIDs, bankIDs string
	var startedAt, finishedAt sql.NullString
	err := row.Scan(&g.ID, &g.Classroom, &g.MapID, &g.Name, &g.Status, &g.CurrentRound,
		&g.MaxRounds, &g.TimePerQuestion, &g.StreakWindow, &clanIDs, &bankIDs,
		&g.TotalChallenges, &startedAt, &finishedAt, &g.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return g, conquest.ErrNotFound
	}
	if err != nil {
		return g, err
	}
	if startedAt.Valid {
		g.StartedAt = &startedAt.String
	}
	if finishedAt.Valid {
		g.FinishedAt = &finishedAt.String
	}
	if err := json.Unmarshal([]byte(clanIDs), &g.ClanIDs); err != nil {
		return g, fmt.Errorf("decoding clan ids: %w", err)
	}
	if err := json.Unmarshal([]byte(bankIDs), &g.BankIDs); err != nil {
		return g, fmt.Errorf("decoding bank ids: %w", err)
	}
	return g, nil
}

func (s *SQLiteStore) getGame(ctx context.Context, q dbtx, classroom, gameID string) (conquest.Game, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+gameColumns+` FROM games WHERE id = ? AND classroom_slug = ?
	`, gameID, classroom)
	return scanGame(row)
}

func (s *SQLiteStore) CreateGame(ctx context.Context, g conquest.Game) (conquest.Game, error) {
	g.ID = uuid.NewString()
	g.Status = conquest.StatusDraft
	clanIDs, _ := json.Marshal(g.ClanIDs)
	bankIDs, _ := json.Marshal(g.BankIDs)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return conquest.Game{}, err
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO games (id, classroom_slug, map_id, name, status, max_rounds, time_per_question, streak_window, clan_ids, bank_ids)
		VALUES (?, ?, ?, ?, 'draft', ?, ?, ?, ?, ?)
		RETURNING created_at
	`, g.ID, g.Classroom, g.MapID, g.Name, g.MaxRounds, g.TimePerQuestion, g.StreakWindow,
		string(clanIDs), string(bankIDs)).Scan(&g.CreatedAt)
	if err != nil {
		return conquest.Game{}, err
	}

	// Session state: every territory starts neutral, every clan at zero.
	_, err = tx.ExecContext(ctx, `
		INSERT INTO territory_ownership (game_id, territory_id, status)
		SELECT ?, id, 'neutral' FROM territories WHERE map_id = ?
	`, g.ID, g.MapID)
	if err != nil {
		return conquest.Game{}, err
	}
	for _, clanID := range g.ClanIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO clan_scores (game_id, clan_id) VALUES (?, ?)
		`, g.ID, clanID); err != nil {
			return conquest.Game{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return conquest.Game{}, err
	}
	return g, nil
}

func (s *SQLiteStore) GetGame(ctx context.Context, classroom, gameID string) (conquest.Game, error) {
	return s.getGame(ctx, s.db, classroom, gameID)
}

func (s *SQLiteStore) ListGames(ctx context.Context, classroom string) ([]conquest.Game, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+gameColumns+` FROM games WHERE classroom_slug = ? ORDER BY created_at DESC
	`, classroom)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var games []conquest.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

// TransitionGame moves a game between draft/active/paused. Finishing goes
// through FinishGame, which also snapshots the ranking.
func (s *SQLiteStore) TransitionGame(ctx context.Context, classroom, gameID string, to conquest.GameStatus) (conquest.Game, error) {
	g, err := s.GetGame(ctx, classroom, gameID)
	if err != nil {
		return conquest.Game{}, err
	}
	if !conquest.CanTransition(g.Status, to) {
		return conquest.Game{}, fmt.Errorf("%s -> %s: %w", g.Status, to, conquest.ErrInvalidTransition)
	}

	var res sql.Result
	if g.Status == conquest.StatusDraft && to == conquest.StatusActive {
		res, err = s.db.ExecContext(ctx, `
			UPDATE games SET status = 'active', current_round = 1,
				started_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
			WHERE id = ? AND status = 'draft'
		`, gameID)
	} else {
		// Status guard makes the update a compare-and-set: a concurrent
		// transition loses and reports ErrInvalidTransition.
		res, err = s.db.ExecContext(ctx, `
			UPDATE games SET status = ? WHERE id = ? AND status = ?
		`, to, gameID, g.Status)
	}
	if err != nil {
		return conquest.Game{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return conquest.Game{}, conquest.ErrInvalidTransition
	}
	return s.GetGame(ctx, classroom, gameID)
}

func (s *SQLiteStore) FinishGame(ctx context.Context, classroom, gameID string) (GameResults, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return GameResults{}, err
	}
	defer tx.Rollback()

	g, err := s.getGame(ctx, tx, classroom, gameID)
	if err != nil {
		return GameResults{}, err
	}
	if g.Status == conquest.StatusFinished {
		return GameResults{}, conquest.ErrInvalidTransition
	}

	results, err := s.finishTx(ctx, tx, g)
	if err != nil {
		return GameResults{}, err
	}
	if err := tx.Commit(); err != nil {
		return GameResults{}, err
	}
	return results, nil
}

// finishTx freezes a game: voids in-flight challenges (reverting their
// territories), snapshots the ranking and stamps the final status.
func (s *SQLiteStore) finishTx(ctx context.Context, tx *sql.Tx, g conquest.Game) (GameResults, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT territory_id FROM challenges WHERE game_id = ? AND outcome = 'pending'
	`, g.ID)
	if err != nil {
		return GameResults{}, err
	}
	var contested []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return GameResults{}, err
		}
		contested = append(contested, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return GameResults{}, err
	}

	now := stamp(time.Now())
	for _, territoryID := range contested {
		if err := revertTerritory(ctx, tx, g.ID, territoryID); err != nil {
			return GameResults{}, err
		}
	}
	if len(contested) > 0 {
		if _, err := tx.ExecContext(ctx, `
			UPDATE challenges SET outcome = 'void', resolved_at = ?
			WHERE game_id = ? AND outcome = 'pending'
		`, now, g.ID); err != nil {
			return GameResults{}, err
		}
		if err := resyncOwnedCounts(ctx, tx, g.ID); err != nil {
			return GameResults{}, err
		}
	}

	ranking, err := s.ranking(ctx, tx, g.ID)
	if err != nil {
		return GameResults{}, err
	}
	rankingJSON, _ := json.Marshal(ranking)

	if _, err := tx.ExecContext(ctx, `
		UPDATE games SET status = 'finished', finished_at = ?, final_ranking = ?
		WHERE id = ?
	`, now, string(rankingJSON), g.ID); err != nil {
		return GameResults{}, err
	}

	return GameResults{
		GameID:          g.ID,
		Name:            g.Name,
		FinishedAt:      &now,
		TotalChallenges: g.TotalChallenges,
		Rounds:          g.CurrentRound,
		Ranking:         ranking,
	}, nil
}

func (s *SQLiteStore) GetResults(ctx context.Context, classroom, gameID string) (GameResults, error) {
	var r GameResults
	var status string
	var finishedAt, rankingJSON sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, status, finished_at, total_challenges, current_round, final_ranking
		FROM games WHERE id = ? AND classroom_slug = ?
	`, gameID, classroom).Scan(&r.GameID, &r.Name, &status, &finishedAt, &r.TotalChallenges, &r.Rounds, &rankingJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return r, conquest.ErrNotFound
	}
	if err != nil {
		return r, err
	}
	if status != string(conquest.StatusFinished) {
		return r, fmt.Errorf("results before finish: %w", conquest.ErrInvalidTransition)
	}
	if finishedAt.Valid {
		r.FinishedAt = &finishedAt.String
	}
	if rankingJSON.Valid {
		if err := json.Unmarshal([]byte(rankingJSON.String), &r.Ranking); err != nil {
			return r, fmt.Errorf("decoding ranking snapshot: %w", err)
		}
	}
	return r, nil
}

// ranking builds the sorted live ranking from scores joined with the roster.
func (s *SQLiteStore) ranking(ctx context.Context, q dbtx, gameID string) ([]conquest.RankingEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT s.clan_id, c.name, c.color, c.emblem, s.total_points,
			s.territories_owned, s.territories_conquered, s.successful_defenses, s.best_streak
		FROM clan_scores s
		JOIN clans c ON c.id = s.clan_id
		WHERE s.game_id = ?
	`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []conquest.RankingEntry{}
	for rows.Next() {
		var e conquest.RankingEntry
		if err := rows.Scan(&e.ClanID, &e.Name, &e.Color, &e.Emblem, &e.TotalPoints,
			&e.TerritoriesOwned, &e.TerritoriesConquered, &e.SuccessfulDefenses, &e.BestStreak); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	conquest.SortRanking(entries)
	return entries, nil
}

// --- Read model ---

func (s *SQLiteStore) GameState(ctx context.Context, classroom, gameID string) (GameState, error) {
	g, err := s.GetGame(ctx, classroom, gameID)
	if err != nil {
		return GameState{}, err
	}
	m, err := s.GetMap(ctx, g.MapID)
	if err != nil {
		return GameState{}, err
	}

	owners := map[string]conquest.Ownership{}
	rows, err := s.db.QueryContext(ctx, `
		SELECT territory_id, status, owner_clan_id FROM territory_ownership WHERE game_id = ?
	`, gameID)
	if err != nil {
		return GameState{}, err
	}
	for rows.Next() {
		var o conquest.Ownership
		var owner sql.NullString
		if err := rows.Scan(&o.TerritoryID, &o.Status, &owner); err != nil {
			rows.Close()
			return GameState{}, err
		}
		if owner.Valid {
			o.OwnerClanID = &owner.String
		}
		owners[o.TerritoryID] = o
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return GameState{}, err
	}

	territories := make([]TerritoryState, 0, len(m.Territories))
	for _, t := range m.Territories {
		ts := TerritoryState{Territory: t, Status: conquest.TerritoryNeutral}
		if o, ok := owners[t.ID]; ok {
			ts.Status = o.Status
			ts.OwnerClanID = o.OwnerClanID
		}
		territories = append(territories, ts)
	}

	clans, err := s.clanStates(ctx, gameID)
	if err != nil {
		return GameState{}, err
	}

	ranking, err := s.ranking(ctx, s.db, gameID)
	if err != nil {
		return GameState{}, err
	}

	stats, err := s.questionStats(ctx, classroom, g)
	if err != nil {
		return GameState{}, err
	}

	pending, err := s.pendingChallenges(ctx, gameID)
	if err != nil {
		return GameState{}, err
	}

	return GameState{
		Game:              g,
		Map:               m,
		Territories:       territories,
		Clans:             clans,
		Ranking:           ranking,
		QuestionStats:     stats,
		PendingChallenges: pending,
	}, nil
}

func (s *SQLiteStore) clanStates(ctx context.Context, gameID string) ([]ClanState, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.color, c.emblem, c.members,
			s.total_points, s.territories_owned, s.territories_conquered,
			s.successful_defenses, s.current_streak, s.best_streak
		FROM clan_scores s
		JOIN clans c ON c.id = s.clan_id
		WHERE s.game_id = ?
		ORDER BY c.name
	`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	clans := []ClanState{}
	for rows.Next() {
		var cs ClanState
		if err := rows.Scan(&cs.ID, &cs.Name, &cs.Color, &cs.Emblem, &cs.Members,
			&cs.Score.TotalPoints, &cs.Score.TerritoriesOwned, &cs.Score.TerritoriesConquered,
			&cs.Score.SuccessfulDefenses, &cs.Score.CurrentStreak, &cs.Score.BestStreak); err != nil {
			return nil, err
		}
		cs.Score.ClanID = cs.ID
		clans = append(clans, cs)
	}
	return clans, rows.Err()
}

func (s *SQLiteStore) questionStats(ctx context.Context, classroom string, g conquest.Game) (conquest.QuestionStats, error) {
	pool, err := s.bankQuestions(ctx, s.db, classroom, g.BankIDs)
	if err != nil {
		return conquest.QuestionStats{}, err
	}
	var used int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM question_usage WHERE game_id = ?
	`, g.ID).Scan(&used); err != nil {
		return conquest.QuestionStats{}, err
	}
	return conquest.QuestionStats{Total: len(pool), UniqueUsed: used}, nil
}

func (s *SQLiteStore) pendingChallenges(ctx context.Context, gameID string) ([]PendingChallenge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, territory_id, kind, challenger_clan_id, defender_clan_id, question, created_at, expires_at
		FROM challenges WHERE game_id = ? AND outcome = 'pending'
		ORDER BY created_at
	`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pending := []PendingChallenge{}
	for rows.Next() {
		var p PendingChallenge
		var defender sql.NullString
		var questionJSON string
		if err := rows.Scan(&p.ID, &p.TerritoryID, &p.Kind, &p.ChallengerClanID,
			&defender, &questionJSON, &p.CreatedAt, &p.ExpiresAt); err != nil {
			return nil, err
		}
		if defender.Valid {
			p.DefenderClanID = &defender.String
		}
		var q conquest.Question
		if err := json.Unmarshal([]byte(questionJSON), &q); err != nil {
			return nil, fmt.Errorf("decoding challenge question: %w", err)
		}
		p.Question = q.Public()
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

// --- Challenges ---

// lockContention reports whether err is SQLite write contention. The
// territory CAS runs in a deferred transaction after a read, so the racer
// that loses the write upgrade sees a busy error rather than zero matched
// rows; busy_timeout does not retry that upgrade.
func lockContention(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "SQLITE_BUSY")
}

// revertTerritory drops a contested territory back to its resting state;
// the retained owner_clan_id decides between neutral and owned.
func revertTerritory(ctx context.Context, q dbtx, gameID, territoryID string) error {
	_, err := q.ExecContext(ctx, `
		UPDATE territory_ownership
		SET status = CASE WHEN owner_clan_id IS NULL THEN 'neutral' ELSE 'owned' END
		WHERE game_id = ? AND territory_id = ?
	`, gameID, territoryID)
	return err
}

// resyncOwnedCounts recomputes territories_owned from ownership for every
// clan in the game, instead of trusting incremental bookkeeping.
func resyncOwnedCounts(ctx context.Context, q dbtx, gameID string) error {
	_, err := q.ExecContext(ctx, `
		UPDATE clan_scores SET territories_owned = (
			SELECT COUNT(*) FROM territory_ownership o
			WHERE o.game_id = clan_scores.game_id
			  AND o.status = 'owned'
			  AND o.owner_clan_id = clan_scores.clan_id
		)
		WHERE game_id = ?
	`, gameID)
	return err
}

func (s *SQLiteStore) InitiateChallenge(ctx context.Context, classroom, gameID, territoryID, clanID string, kind conquest.ChallengeKind) (conquest.Challenge, error) {
	g, err := s.GetGame(ctx, classroom, gameID)
	if err != nil {
		return conquest.Challenge{}, err
	}
	switch g.Status {
	case conquest.StatusActive:
	case conquest.StatusPaused:
		return conquest.Challenge{}, conquest.ErrGamePaused
	default:
		return conquest.Challenge{}, fmt.Errorf("game is %s: %w", g.Status, conquest.ErrInvalidTransition)
	}
	if !g.HasClan(clanID) {
		return conquest.Challenge{}, conquest.ErrInvalidClan
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return conquest.Challenge{}, err
	}
	defer tx.Rollback()

	var status string
	var owner sql.NullString
	err = tx.QueryRowContext(ctx, `
		SELECT status, owner_clan_id FROM territory_ownership
		WHERE game_id = ? AND territory_id = ?
	`, gameID, territoryID).Scan(&status, &owner)
	if errors.Is(err, sql.ErrNoRows) {
		return conquest.Challenge{}, conquest.ErrNotFound
	}
	if err != nil {
		return conquest.Challenge{}, err
	}

	// The lock: a compare-and-set into contested. The race loser either
	// matches zero rows or fails its write upgrade with a busy error when
	// the winner's transaction still holds the page; both outcomes are the
	// same contention and get ErrTerritoryUnavailable.
	var defender *string
	switch kind {
	case conquest.KindConquest:
		res, err := tx.ExecContext(ctx, `
			UPDATE territory_ownership SET status = 'contested'
			WHERE game_id = ? AND territory_id = ? AND status = 'neutral'
		`, gameID, territoryID)
		if lockContention(err) {
			return conquest.Challenge{}, conquest.ErrTerritoryUnavailable
		}
		if err != nil {
			return conquest.Challenge{}, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return conquest.Challenge{}, conquest.ErrTerritoryUnavailable
		}
	case conquest.KindDefense:
		res, err := tx.ExecContext(ctx, `
			UPDATE territory_ownership SET status = 'contested'
			WHERE game_id = ? AND territory_id = ? AND status = 'owned' AND owner_clan_id != ?
		`, gameID, territoryID, clanID)
		if lockContention(err) {
			return conquest.Challenge{}, conquest.ErrTerritoryUnavailable
		}
		if err != nil {
			return conquest.Challenge{}, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return conquest.Challenge{}, conquest.ErrTerritoryUnavailable
		}
		defender = &owner.String
	default:
		return conquest.Challenge{}, fmt.Errorf("unknown challenge kind %q", kind)
	}

	pool, err := s.bankQuestions(ctx, tx, classroom, g.BankIDs)
	if err != nil {
		return conquest.Challenge{}, err
	}
	used := map[string]bool{}
	rows, err := tx.QueryContext(ctx, `SELECT question_id FROM question_usage WHERE game_id = ?`, gameID)
	if err != nil {
		return conquest.Challenge{}, err
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return conquest.Challenge{}, err
		}
		used[id] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return conquest.Challenge{}, err
	}

	q, err := s.selector.Pick(pool, used)
	if err != nil {
		// Rollback releases the territory again.
		return conquest.Challenge{}, err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO question_usage (game_id, question_id) VALUES (?, ?)
		ON CONFLICT (game_id, question_id) DO NOTHING
	`, gameID, q.ID); err != nil {
		return conquest.Challenge{}, err
	}

	now := time.Now()
	ch := conquest.Challenge{
		ID:               uuid.NewString(),
		GameID:           gameID,
		TerritoryID:      territoryID,
		Kind:             kind,
		ChallengerClanID: clanID,
		DefenderClanID:   defender,
		Question:         q,
		Outcome:          conquest.OutcomePending,
		CreatedAt:        stamp(now),
		ExpiresAt:        stamp(now.Add(time.Duration(g.TimePerQuestion)*time.Second + s.lockGrace)),
	}
	questionJSON, _ := json.Marshal(q)

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO challenges (id, game_id, territory_id, kind, challenger_clan_id, defender_clan_id, question, outcome, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 'pending', ?, ?)
	`, ch.ID, ch.GameID, ch.TerritoryID, ch.Kind, ch.ChallengerClanID, ch.DefenderClanID,
		string(questionJSON), ch.CreatedAt, ch.ExpiresAt); err != nil {
		return conquest.Challenge{}, err
	}

	if err := tx.Commit(); err != nil {
		return conquest.Challenge{}, err
	}
	return ch, nil
}

func scanChallenge(row interface{ Scan(...any) error }) (conquest.Challenge, error) {
	var ch conquest.Challenge
	var defender, resolvedAt sql.NullString
	var questionJSON string
	err := row.Scan(&ch.ID, &ch.GameID, &ch.TerritoryID, &ch.Kind, &ch.ChallengerClanID,
		&defender, &questionJSON, &ch.Outcome, &ch.PointsAwarded, &ch.CreatedAt, &ch.ExpiresAt, &resolvedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ch, conquest.ErrChallengeNotFound
	}
	if err != nil {
		return ch, err
	}
	if defender.Valid {
		ch.DefenderClanID = &defender.String
	}
	if resolvedAt.Valid {
		ch.ResolvedAt = &resolvedAt.String
	}
	if err := json.Unmarshal([]byte(questionJSON), &ch.Question); err != nil {
		return ch, fmt.Errorf("decoding challenge question: %w", err)
	}
	return ch, nil
}

const challengeColumns = `c.id, c.game_id, c.territory_id, c.kind, c.challenger_clan_id,
	c.defender_clan_id, c.question, c.outcome, c.points_awarded, c.created_at, c.expires_at, c.resolved_at`

func (s *SQLiteStore) GetChallenge(ctx context.Context, classroom, challengeID string) (conquest.Challenge, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+challengeColumns+`
		FROM challenges c
		JOIN games g ON g.id = c.game_id
		WHERE c.id = ? AND g.classroom_slug = ?
	`, challengeID, classroom)
	return scanChallenge(row)
}

func (s *SQLiteStore) ResolveChallenge(ctx context.Context, classroom, challengeID string, correct bool) (ResolveResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ResolveResult{}, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT `+challengeColumns+`
		FROM challenges c
		JOIN games g ON g.id = c.game_id
		WHERE c.id = ? AND g.classroom_slug = ?
	`, challengeID, classroom)
	ch, err := scanChallenge(row)
	if err != nil {
		return ResolveResult{}, err
	}

	// Idempotent: a retried resolution returns the stored outcome untouched.
	if ch.Outcome != conquest.OutcomePending {
		return ResolveResult{
			Challenge:       ch,
			WinnerClanID:    challengeWinner(ch),
			PointsAwarded:   ch.PointsAwarded,
			AlreadyResolved: true,
		}, nil
	}

	g, err := s.getGame(ctx, tx, classroom, ch.GameID)
	if err != nil {
		return ResolveResult{}, err
	}

	var baseConquest, baseDefense, bonusPct int
	if err := tx.QueryRowContext(ctx, `
		SELECT base_conquest_points, base_defense_points, bonus_streak_points
		FROM maps WHERE id = ?
	`, g.MapID).Scan(&baseConquest, &baseDefense, &bonusPct); err != nil {
		return ResolveResult{}, err
	}
	var multiplier float64
	if err := tx.QueryRowContext(ctx, `
		SELECT point_multiplier FROM territories WHERE id = ?
	`, ch.TerritoryID).Scan(&multiplier); err != nil {
		return ResolveResult{}, err
	}

	var winner *string
	var points int
	now := stamp(time.Now())

	if correct {
		// Challenger takes the territory.
		winner = &ch.ChallengerClanID
		streak, err := clanStreak(ctx, tx, ch.GameID, ch.ChallengerClanID)
		if err != nil {
			return ResolveResult{}, err
		}
		points = conquest.Points(baseConquest, multiplier, streak, g.StreakWindow, bonusPct)

		if _, err := tx.ExecContext(ctx, `
			UPDATE territory_ownership SET status = 'owned', owner_clan_id = ?
			WHERE game_id = ? AND territory_id = ?
		`, ch.ChallengerClanID, ch.GameID, ch.TerritoryID); err != nil {
			return ResolveResult{}, err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE clan_scores SET
				total_points = total_points + ?,
				territories_conquered = territories_conquered + 1,
				current_streak = current_streak + 1,
				best_streak = MAX(best_streak, current_streak + 1)
			WHERE game_id = ? AND clan_id = ?
		`, points, ch.GameID, ch.ChallengerClanID); err != nil {
			return ResolveResult{}, err
		}
		ch.Outcome = conquest.OutcomeWon
	} else {
		// Territory reverts; the challenger's run is over.
		if err := revertTerritory(ctx, tx, ch.GameID, ch.TerritoryID); err != nil {
			return ResolveResult{}, err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE clan_scores SET current_streak = 0
			WHERE game_id = ? AND clan_id = ?
		`, ch.GameID, ch.ChallengerClanID); err != nil {
			return ResolveResult{}, err
		}

		// A survived takeover pays the defender.
		if ch.Kind == conquest.KindDefense && ch.DefenderClanID != nil {
			winner = ch.DefenderClanID
			streak, err := clanStreak(ctx, tx, ch.GameID, *ch.DefenderClanID)
			if err != nil {
				return ResolveResult{}, err
			}
			points = conquest.Points(baseDefense, multiplier, streak, g.StreakWindow, bonusPct)

			if _, err := tx.ExecContext(ctx, `
				UPDATE clan_scores SET
					total_points = total_points + ?,
					successful_defenses = successful_defenses + 1,
					current_streak = current_streak + 1,
					best_streak = MAX(best_streak, current_streak + 1)
				WHERE game_id = ? AND clan_id = ?
			`, points, ch.GameID, *ch.DefenderClanID); err != nil {
				return ResolveResult{}, err
			}
		}
		ch.Outcome = conquest.OutcomeLost
	}

	if err := resyncOwnedCounts(ctx, tx, ch.GameID); err != nil {
		return ResolveResult{}, err
	}

	ch.PointsAwarded = points
	ch.ResolvedAt = &now
	if _, err := tx.ExecContext(ctx, `
		UPDATE challenges SET outcome = ?, points_awarded = ?, resolved_at = ?
		WHERE id = ?
	`, ch.Outcome, points, now, ch.ID); err != nil {
		return ResolveResult{}, err
	}

	// Every resolution advances the round and challenge counters.
	var round, maxRounds int
	if err := tx.QueryRowContext(ctx, `
		UPDATE games SET total_challenges = total_challenges + 1, current_round = current_round + 1
		WHERE id = ?
		RETURNING current_round, max_rounds
	`, ch.GameID).Scan(&round, &maxRounds); err != nil {
		return ResolveResult{}, err
	}

	finished := false
	if maxRounds > 0 && round > maxRounds {
		g.CurrentRound = round
		g.TotalChallenges++
		if _, err := s.finishTx(ctx, tx, g); err != nil {
			return ResolveResult{}, err
		}
		finished = true
	}

	if err := tx.Commit(); err != nil {
		return ResolveResult{}, err
	}

	return ResolveResult{
		Challenge:     ch,
		WinnerClanID:  winner,
		PointsAwarded: points,
		GameFinished:  finished,
	}, nil
}

// challengeWinner recovers the paid side from a stored outcome.
func challengeWinner(ch conquest.Challenge) *string {
	switch ch.Outcome {
	case conquest.OutcomeWon:
		return &ch.ChallengerClanID
	case conquest.OutcomeLost:
		if ch.Kind == conquest.KindDefense && ch.PointsAwarded > 0 {
			return ch.DefenderClanID
		}
	}
	return nil
}

func clanStreak(ctx context.Context, q dbtx, gameID, clanID string) (int, error) {
	var streak int
	err := q.QueryRowContext(ctx, `
		SELECT current_streak FROM clan_scores WHERE game_id = ? AND clan_id = ?
	`, gameID, clanID).Scan(&streak)
	return streak, err
}

// ExpireChallenges reverts challenges whose question window (plus grace)
// elapsed without a resolution. Streaks are untouched: an abandoned
// challenge is not a wrong answer.
func (s *SQLiteStore) ExpireChallenges(ctx context.Context, now time.Time) ([]ExpiredChallenge, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, game_id, territory_id FROM challenges
		WHERE outcome = 'pending' AND expires_at < ?
	`, stamp(now))
	if err != nil {
		return nil, err
	}
	var expired []ExpiredChallenge
	for rows.Next() {
		var e ExpiredChallenge
		if err := rows.Scan(&e.ChallengeID, &e.GameID, &e.TerritoryID); err != nil {
			rows.Close()
			return nil, err
		}
		expired = append(expired, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(expired) == 0 {
		return nil, nil
	}

	resolvedAt := stamp(now)
	for _, e := range expired {
		if err := revertTerritory(ctx, tx, e.GameID, e.TerritoryID); err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE challenges SET outcome = 'expired', resolved_at = ?
			WHERE id = ? AND outcome = 'pending'
		`, resolvedAt, e.ChallengeID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return expired, nil
}
