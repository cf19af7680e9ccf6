package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"battle-royale-bot/internal/model"
)

// ErrInvalidPlan is returned when a game plan cannot produce a playable game.
var ErrInvalidPlan = errors.New("invalid game plan")

// PlayerPlan is one osu! player of a planned team.
type PlayerPlan struct {
	ID       int64  `mapstructure:"id"`
	Username string `mapstructure:"username"`
}

// TeamPlan is one planned team. StartingLives of 0 means the game's lives.
type TeamPlan struct {
	Name          string       `mapstructure:"name"`
	Colour        string       `mapstructure:"colour"`
	StartingLives int          `mapstructure:"starting_lives"`
	Players       []PlayerPlan `mapstructure:"players"`
}

// GamePlan describes a game to create: its teams and the osu! rooms it polls.
type GamePlan struct {
	Name              string     `mapstructure:"name"`
	TeamLives         int        `mapstructure:"team_lives"`
	CountFailedScores bool       `mapstructure:"count_failed_scores"`
	Teams             []TeamPlan `mapstructure:"teams"`
	Lobbies           []int64    `mapstructure:"lobbies"`
	Start             bool       `mapstructure:"start"`
}

// Validate checks that the plan describes a playable game.
func (p *GamePlan) Validate() error {
	var problems []string
	if strings.TrimSpace(p.Name) == "" {
		problems = append(problems, "name is required")
	}
	if p.TeamLives < 1 {
		problems = append(problems, "team_lives must be at least 1")
	}
	if len(p.Teams) < 2 {
		problems = append(problems, "at least 2 teams are required")
	}
	if len(p.Lobbies) == 0 {
		problems = append(problems, "at least 1 lobby is required")
	}

	seenPlayers := make(map[int64]string)
	for i, t := range p.Teams {
		if len(t.Players) == 0 {
			problems = append(problems, fmt.Sprintf("team %d has no players", i+1))
		}
		if t.StartingLives < 0 {
			problems = append(problems, fmt.Sprintf("team %d has negative starting_lives", i+1))
		}
		for _, pl := range t.Players {
			if pl.ID <= 0 {
				problems = append(problems, fmt.Sprintf("team %d has a player without an id", i+1))
				continue
			}
			if other, ok := seenPlayers[pl.ID]; ok {
				problems = append(problems, fmt.Sprintf("player %d is on both %s and %s", pl.ID, other, teamLabel(t, i)))
			}
			seenPlayers[pl.ID] = teamLabel(t, i)
		}
	}

	seenLobbies := make(map[int64]bool)
	for _, mp := range p.Lobbies {
		if mp <= 0 || seenLobbies[mp] {
			problems = append(problems, fmt.Sprintf("lobby %d is invalid or listed twice", mp))
		}
		seenLobbies[mp] = true
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidPlan, strings.Join(problems, "; "))
	}
	return nil
}

func teamLabel(t TeamPlan, i int) string {
	if t.Name != "" {
		return t.Name
	}
	return fmt.Sprintf("team %d", i+1)
}

// SetupGameStore creates games and their team slots.
type SetupGameStore interface {
	Create(ctx context.Context, name string, teamLives int, countFailedScores bool) (*model.Game, error)
	AddTeam(ctx context.Context, gameID, teamID int64, teamNumber int, colour string, startingLives int) (*model.GameTeam, error)
	Start(ctx context.Context, gameID int64) (*model.Game, error)
}

// SetupTeamStore creates teams and players.
type SetupTeamStore interface {
	Create(ctx context.Context, name string) (*model.Team, error)
	UpsertPlayer(ctx context.Context, osuID int64, username string) (*model.Player, error)
	AddMember(ctx context.Context, teamID, playerID int64) error
}

// SetupLobbyStore creates lobbies.
type SetupLobbyStore interface {
	Create(ctx context.Context, gameID int64, lobbyNumber int, multiplayerID int64) (*model.Lobby, error)
}

// SetupService creates games from plans.
type SetupService struct {
	games   SetupGameStore
	teams   SetupTeamStore
	lobbies SetupLobbyStore
}

// NewSetupService creates a new SetupService instance.
func NewSetupService(games SetupGameStore, teams SetupTeamStore, lobbies SetupLobbyStore) *SetupService {
	return &SetupService{games: games, teams: teams, lobbies: lobbies}
}

// CreateGame validates the plan and creates the game, its teams and lobbies.
// Teams are numbered in plan order starting at 1. The game is started when
// the plan asks for it.
func (s *SetupService) CreateGame(ctx context.Context, plan *GamePlan) (*model.Game, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	game, err := s.games.Create(ctx, plan.Name, plan.TeamLives, plan.CountFailedScores)
	if err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}

	for i, tp := range plan.Teams {
		number := i + 1
		team, err := s.teams.Create(ctx, teamLabel(tp, i))
		if err != nil {
			return nil, fmt.Errorf("failed to create team %d: %w", number, err)
		}
		for _, pp := range tp.Players {
			player, err := s.teams.UpsertPlayer(ctx, pp.ID, pp.Username)
			if err != nil {
				return nil, fmt.Errorf("failed to store player %d: %w", pp.ID, err)
			}
			if err := s.teams.AddMember(ctx, team.ID, player.ID); err != nil {
				return nil, fmt.Errorf("failed to add player %d to team %d: %w", pp.ID, number, err)
			}
		}
		if _, err := s.games.AddTeam(ctx, game.ID, team.ID, number, tp.Colour, tp.StartingLives); err != nil {
			return nil, fmt.Errorf("failed to add team %d to game: %w", number, err)
		}
	}

	for i, mp := range plan.Lobbies {
		if _, err := s.lobbies.Create(ctx, game.ID, i+1, mp); err != nil {
			return nil, fmt.Errorf("failed to create lobby for room %d: %w", mp, err)
		}
	}

	if plan.Start {
		if game, err = s.games.Start(ctx, game.ID); err != nil {
			return nil, fmt.Errorf("failed to start game: %w", err)
		}
	}

	log.Info().
		Int64("game_id", game.ID).
		Str("name", game.Name).
		Int("teams", len(plan.Teams)).
		Int("lobbies", len(plan.Lobbies)).
		Str("status", string(game.Status)).
		Msg("Game created")

	return game, nil
}
