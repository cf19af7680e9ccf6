// Package model defines the data models for the battle royale results bot.
package model

import "time"

// GameStatus is the lifecycle state of a game.
type GameStatus string

// Game lifecycle states. Only the lifecycle collaborator moves a game between them.
const (
	GameStatusCreated GameStatus = "created"
	GameStatusStarted GameStatus = "started"
	GameStatusEnded   GameStatus = "ended"
)

// Game is one battle royale played across one or more lobbies.
type Game struct {
	ID                int64      `db:"id"`
	Name              string     `db:"name"`
	TeamLives         int        `db:"team_lives"`
	CountFailedScores bool       `db:"count_failed_scores"`
	Status            GameStatus `db:"status"`
	StartedAt         *time.Time `db:"started_at"`
	EndedAt           *time.Time `db:"ended_at"`
	CreatedAt         time.Time  `db:"created_at"`

	Teams []*GameTeam `db:"-"`
}

// ActiveTeams returns the game's teams that have not been soft-removed,
// ordered as loaded (by team number).
func (g *Game) ActiveTeams() []*GameTeam {
	teams := make([]*GameTeam, 0, len(g.Teams))
	for _, t := range g.Teams {
		if t.RemovedAt == nil {
			teams = append(teams, t)
		}
	}
	return teams
}

// GameTeam is a team's participation in one game.
type GameTeam struct {
	GameID        int64      `db:"game_id"`
	TeamID        int64      `db:"team_id"`
	TeamNumber    int        `db:"team_number"`
	Colour        string     `db:"colour"`
	StartingLives int        `db:"starting_lives"`
	RemovedAt     *time.Time `db:"removed_at"`
	CreatedAt     time.Time  `db:"created_at"`

	Team *Team `db:"-"`
}

// Team is a named, ordered set of players.
type Team struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`

	Players []*Player `db:"-"`
}

// Player is an osu! user, keyed by their osu! user id.
type Player struct {
	ID       int64  `db:"id"`
	Username string `db:"username"`
}

// Lobby is an osu! multiplayer room attached to a game.
type Lobby struct {
	ID            int64      `db:"id"`
	GameID        int64      `db:"game_id"`
	LobbyNumber   int        `db:"lobby_number"`
	MultiplayerID int64      `db:"multiplayer_id"`
	RemovedAt     *time.Time `db:"removed_at"`
	CreatedAt     time.Time  `db:"created_at"`

	Matches []*Match `db:"-"`
}

// Match is one real beatmap played in a lobby. A nil EndTime means the map is still in progress.
type Match struct {
	ID        int64      `db:"id"`
	LobbyID   int64      `db:"lobby_id"`
	BeatmapID int64      `db:"beatmap_id"`
	MapNumber int        `db:"map_number"`
	StartTime time.Time  `db:"start_time"`
	EndTime   *time.Time `db:"end_time"`
	Aborted   bool       `db:"aborted"`
	TeamMode  string     `db:"team_mode"`

	Scores []*PlayerScore `db:"-"`
}

// OrderTime is the time a match is ordered by: its end time, or its start time while in progress.
func (m *Match) OrderTime() time.Time {
	if m.EndTime != nil {
		return *m.EndTime
	}
	return m.StartTime
}

// PlayerScore is one player's result in a match.
type PlayerScore struct {
	ID          int64   `db:"id"`
	MatchID     int64   `db:"match_id"`
	PlayerID    int64   `db:"player_id"`
	Score       int64   `db:"score"`
	Passed      bool    `db:"passed"`
	Accuracy    float64 `db:"accuracy"`
	LetterGrade string  `db:"letter_grade"`
}

// DeliveredReportable is a reportable that a dispatch has confirmed delivering.
type DeliveredReportable struct {
	ID                int64     `db:"id"`
	GameID            int64     `db:"game_id"`
	Type              string    `db:"type"`
	SubType           string    `db:"sub_type"`
	BeatmapID         int64     `db:"beatmap_id"`
	SameBeatmapNumber int       `db:"same_beatmap_number"`
	ReportedAt        time.Time `db:"reported_at"`
	Item              []byte    `db:"item"`
	DeliveredAt       time.Time `db:"delivered_at"`
}

// ApiMultiplayerResult is one polled snapshot of an osu! multiplayer room.
type ApiMultiplayerResult struct {
	MultiplayerID int64
	Matches       []ApiMatch
}

// ApiMatch is one game inside a polled multiplayer room.
type ApiMatch struct {
	BeatmapID int64
	MapNumber int
	StartTime time.Time
	EndTime   *time.Time
	TeamMode  string
	Aborted   bool
	Scores    []ApiScore
}

// ApiScore is one player's result inside a polled game.
type ApiScore struct {
	PlayerID    int64
	Score       int64
	Passed      bool
	Accuracy    float64
	LetterGrade string
}
