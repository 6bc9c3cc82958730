// Package conquest defines the core domain types and rules of the territory
// battle engine. It has no external dependencies; everything here is pure Go.
package conquest

// Map is the static description of a battlefield. It never changes once a
// non-finished game references it; ownership lives on the game, not here.
type Map struct {
	ID                 string      `json:"id"`
	Name               string      `json:"name"`
	GridCols           int         `json:"gridCols"`
	GridRows           int         `json:"gridRows"`
	BaseConquestPoints int         `json:"baseConquestPoints"`
	BaseDefensePoints  int         `json:"baseDefensePoints"`
	BonusStreakPoints  int         `json:"bonusStreakPoints"`
	Territories        []Territory `json:"territories"`
	CreatedAt          string      `json:"createdAt,omitempty"`
}

// Territory is one cell of a map. Position is unique within the map.
type Territory struct {
	ID              string  `json:"id"`
	MapID           string  `json:"mapId,omitempty"`
	Name            string  `json:"name"`
	GridX           int     `json:"gridX"`
	GridY           int     `json:"gridY"`
	Icon            string  `json:"icon,omitempty"`
	Color           string  `json:"color,omitempty"`
	PointMultiplier float64 `json:"pointMultiplier"`
	IsStrategic     bool    `json:"isStrategic"`
}

type GameStatus string

const (
	StatusDraft    GameStatus = "draft"
	StatusActive   GameStatus = "active"
	StatusPaused   GameStatus = "paused"
	StatusFinished GameStatus = "finished"
)

// Game is one play session over a map. MaxRounds == 0 means unlimited.
type Game struct {
	ID              string     `json:"id"`
	Classroom       string     `json:"classroom"`
	MapID           string     `json:"mapId"`
	Name            string     `json:"name"`
	Status          GameStatus `json:"status"`
	CurrentRound    int        `json:"currentRound"`
	MaxRounds       int        `json:"maxRounds,omitempty"`
	TimePerQuestion int        `json:"timePerQuestion"`
	StreakWindow    int        `json:"streakWindow"`
	ClanIDs         []string   `json:"clanIds"`
	BankIDs         []string   `json:"bankIds"`
	TotalChallenges int        `json:"totalChallenges"`
	StartedAt       *string    `json:"startedAt"`
	FinishedAt      *string    `json:"finishedAt"`
	CreatedAt       string     `json:"createdAt,omitempty"`
}

// HasClan reports whether id is one of the game's participating clans.
func (g Game) HasClan(id string) bool {
	for _, c := range g.ClanIDs {
		if c == id {
			return true
		}
	}
	return false
}

type OwnershipStatus string

const (
	TerritoryNeutral   OwnershipStatus = "neutral"
	TerritoryOwned     OwnershipStatus = "owned"
	TerritoryContested OwnershipStatus = "contested"
)

// Ownership is per-game session state for one territory. While contested,
// OwnerClanID retains the previous owner (if any) so a lost or abandoned
// challenge can revert the territory.
type Ownership struct {
	TerritoryID string          `json:"territoryId"`
	GameID      string          `json:"gameId,omitempty"`
	Status      OwnershipStatus `json:"status"`
	OwnerClanID *string         `json:"ownerClanId"`
}

// Revert returns the resting status an abandoned or lost contest falls back to.
func (o Ownership) Revert() OwnershipStatus {
	if o.OwnerClanID != nil {
		return TerritoryOwned
	}
	return TerritoryNeutral
}

// Clan identity comes from the classroom roster; the engine only reads it.
type Clan struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Color   string `json:"color"`
	Emblem  string `json:"emblem"`
	Members int    `json:"members,omitempty"`
}

// ClanScore is the per-clan aggregate for one game. TerritoriesOwned is
// derived from ownership after every resolution, never mutated independently.
type ClanScore struct {
	ClanID               string `json:"clanId"`
	TotalPoints          int    `json:"totalPoints"`
	TerritoriesOwned     int    `json:"territoriesOwned"`
	TerritoriesConquered int    `json:"territoriesConquered"`
	SuccessfulDefenses   int    `json:"successfulDefenses"`
	CurrentStreak        int    `json:"currentStreak"`
	BestStreak           int    `json:"bestStreak"`
}

type ChallengeKind string

const (
	KindConquest ChallengeKind = "conquest"
	KindDefense  ChallengeKind = "defense"
)

type Outcome string

const (
	OutcomePending Outcome = "pending"
	OutcomeWon     Outcome = "won"
	OutcomeLost    Outcome = "lost"
	OutcomeExpired Outcome = "expired"
	OutcomeVoid    Outcome = "void"
)

// Challenge is the only entity allowed to move a territory out of its resting
// state. At most one pending challenge exists per territory.
type Challenge struct {
	ID               string        `json:"challengeId"`
	GameID           string        `json:"gameId"`
	TerritoryID      string        `json:"territoryId"`
	Kind             ChallengeKind `json:"kind"`
	ChallengerClanID string        `json:"challengerClanId"`
	DefenderClanID   *string       `json:"defenderClanId"`
	Question         Question      `json:"question"`
	Outcome          Outcome       `json:"outcome"`
	PointsAwarded    int           `json:"pointsAwarded"`
	CreatedAt        string        `json:"createdAt"`
	ExpiresAt        string        `json:"expiresAt"`
	ResolvedAt       *string       `json:"resolvedAt"`
}

// QuestionStats is the per-game usage view. UniqueUsed never exceeds Total:
// once the pool is exhausted questions repeat without growing the count.
type QuestionStats struct {
	Total      int `json:"total"`
	UniqueUsed int `json:"uniqueUsed"`
}
