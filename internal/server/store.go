package server

import (
	"context"
	"time"

	"github.com/aulaboard/conquista/internal/conquest"
)

// TerritoryState is a map territory merged with its per-game ownership.
type TerritoryState struct {
	conquest.Territory
	Status      conquest.OwnershipStatus `json:"status"`
	OwnerClanID *string                  `json:"ownerClanId"`
}

// ClanState pairs roster identity with the game score.
type ClanState struct {
	conquest.Clan
	Score conquest.ClanScore `json:"score"`
}

// PendingChallenge is the read-model view of an unresolved challenge. Its
// question is stripped of the answer key: this struct is polled by players.
type PendingChallenge struct {
	ID               string                 `json:"challengeId"`
	TerritoryID      string                 `json:"territoryId"`
	Kind             conquest.ChallengeKind `json:"kind"`
	ChallengerClanID string                 `json:"challengerClanId"`
	DefenderClanID   *string                `json:"defenderClanId"`
	Question         conquest.Question      `json:"question"`
	CreatedAt        string                 `json:"createdAt"`
	ExpiresAt        string                 `json:"expiresAt"`
}

// GameState is the single read model driving teacher and student views.
// Serving it has no side effects, so clients may poll it freely.
type GameState struct {
	Game              conquest.Game          `json:"game"`
	Map               conquest.Map           `json:"map"`
	Territories       []TerritoryState       `json:"territories"`
	Clans             []ClanState            `json:"clans"`
	Ranking           []conquest.RankingEntry `json:"ranking"`
	QuestionStats     conquest.QuestionStats `json:"questionStats"`
	PendingChallenges []PendingChallenge     `json:"pendingChallenges"`
}

// GameResults is the frozen outcome of a finished game.
type GameResults struct {
	GameID          string                  `json:"gameId"`
	Name            string                  `json:"name"`
	FinishedAt      *string                 `json:"finishedAt"`
	TotalChallenges int                     `json:"totalChallenges"`
	Rounds          int                     `json:"rounds"`
	Ranking         []conquest.RankingEntry `json:"ranking"`
}

// ResolveResult reports what one resolution did. AlreadyResolved marks the
// idempotent path: a retried call gets the stored outcome, nothing changes.
type ResolveResult struct {
	Challenge       conquest.Challenge `json:"challenge"`
	WinnerClanID    *string            `json:"winnerClanId"`
	PointsAwarded   int                `json:"pointsAwarded"`
	AlreadyResolved bool               `json:"alreadyResolved"`
	GameFinished    bool               `json:"gameFinished"`
}

// ExpiredChallenge identifies a challenge reverted by the lock reaper.
type ExpiredChallenge struct {
	ChallengeID string
	GameID      string
	TerritoryID string
}

// MapSummary is the list view of a map.
type MapSummary struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	GridCols       int    `json:"gridCols"`
	GridRows       int    `json:"gridRows"`
	TerritoryCount int    `json:"territoryCount"`
	CreatedAt      string `json:"createdAt"`
}

type Store interface {
	// Admin auth.
	AdminByEmail(ctx context.Context, email string) (adminID, passwordHash string, err error)
	CreateAdminSession(ctx context.Context, adminID string) (sessionID string, err error)
	DeleteAdminSession(ctx context.Context, sessionID string) error
	AdminFromSession(ctx context.Context, sessionID string) (adminSession, error)

	// Classroom roster and question banks: external collaborators the
	// engine only reads.
	ClassroomExists(ctx context.Context, slug string) (bool, error)
	ListClans(ctx context.Context, classroom string) ([]conquest.Clan, error)
	ClansExist(ctx context.Context, classroom string, ids []string) error
	BanksExist(ctx context.Context, classroom string, ids []string) error

	// Maps.
	CreateMap(ctx context.Context, m conquest.Map) (conquest.Map, error)
	AddTerritories(ctx context.Context, mapID string, ts []conquest.Territory) ([]conquest.Territory, error)
	GetMap(ctx context.Context, mapID string) (conquest.Map, error)
	ListMaps(ctx context.Context) ([]MapSummary, error)

	// Game lifecycle.
	CreateGame(ctx context.Context, g conquest.Game) (conquest.Game, error)
	GetGame(ctx context.Context, classroom, gameID string) (conquest.Game, error)
	ListGames(ctx context.Context, classroom string) ([]conquest.Game, error)
	TransitionGame(ctx context.Context, classroom, gameID string, to conquest.GameStatus) (conquest.Game, error)
	FinishGame(ctx context.Context, classroom, gameID string) (GameResults, error)
	GetResults(ctx context.Context, classroom, gameID string) (GameResults, error)
	GameState(ctx context.Context, classroom, gameID string) (GameState, error)

	// Challenges.
	InitiateChallenge(ctx context.Context, classroom, gameID, territoryID, clanID string, kind conquest.ChallengeKind) (conquest.Challenge, error)
	GetChallenge(ctx context.Context, classroom, challengeID string) (conquest.Challenge, error)
	ResolveChallenge(ctx context.Context, classroom, challengeID string, correct bool) (ResolveResult, error)
	ExpireChallenges(ctx context.Context, now time.Time) ([]ExpiredChallenge, error)
}
