// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"battle-royale-bot/internal/model"
)

// Common errors for repository operations.
var (
	ErrGameNotFound  = errors.New("game not found")
	ErrLobbyNotFound = errors.New("lobby not found")
	ErrTeamNotFound  = errors.New("team not found")
	// ErrInvalidTransition is returned when a game's status does not allow a lifecycle step.
	ErrInvalidTransition = errors.New("invalid game status transition")
)

// GameRepository handles games, their teams and their lifecycle.
type GameRepository struct {
	pool *pgxpool.Pool
}

// NewGameRepository creates a new GameRepository instance.
func NewGameRepository(pool *pgxpool.Pool) *GameRepository {
	return &GameRepository{pool: pool}
}

const gameColumns = `id, name, team_lives, count_failed_scores, status, started_at, ended_at, created_at`

func scanGame(row pgx.Row) (*model.Game, error) {
	var g model.Game
	err := row.Scan(
		&g.ID,
		&g.Name,
		&g.TeamLives,
		&g.CountFailedScores,
		&g.Status,
		&g.StartedAt,
		&g.EndedAt,
		&g.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// Create creates a new game in the created state.
func (r *GameRepository) Create(ctx context.Context, name string, teamLives int, countFailedScores bool) (*model.Game, error) {
	query := `
		INSERT INTO games (name, team_lives, count_failed_scores, status, created_at)
		VALUES ($1, $2, $3, 'created', NOW())
		RETURNING ` + gameColumns

	g, err := scanGame(r.pool.QueryRow(ctx, query, name, teamLives, countFailedScores))
	if err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}
	return g, nil
}

// GetByID retrieves a game without its teams.
// Returns ErrGameNotFound if the game does not exist.
func (r *GameRepository) GetByID(ctx context.Context, gameID int64) (*model.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE id = $1`

	g, err := scanGame(r.pool.QueryRow(ctx, query, gameID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	return g, nil
}

// GetWithTeams retrieves a game with its teams (removed ones included), each
// team's members, ordered by team number.
func (r *GameRepository) GetWithTeams(ctx context.Context, gameID int64) (*model.Game, error) {
	g, err := r.GetByID(ctx, gameID)
	if err != nil {
		return nil, err
	}

	const teamsQuery = `
		SELECT gt.game_id, gt.team_id, gt.team_number, gt.colour, gt.starting_lives,
		       gt.removed_at, gt.created_at, t.id, t.name, t.created_at
		FROM game_teams gt
		JOIN teams t ON t.id = gt.team_id
		WHERE gt.game_id = $1
		ORDER BY gt.team_number
	`
	rows, err := r.pool.Query(ctx, teamsQuery, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to get game teams: %w", err)
	}
	defer rows.Close()

	byTeam := make(map[int64]*model.Team)
	for rows.Next() {
		gt := &model.GameTeam{Team: &model.Team{}}
		err := rows.Scan(
			&gt.GameID,
			&gt.TeamID,
			&gt.TeamNumber,
			&gt.Colour,
			&gt.StartingLives,
			&gt.RemovedAt,
			&gt.CreatedAt,
			&gt.Team.ID,
			&gt.Team.Name,
			&gt.Team.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game team: %w", err)
		}
		g.Teams = append(g.Teams, gt)
		byTeam[gt.TeamID] = gt.Team
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate game teams: %w", err)
	}
	rows.Close()

	const membersQuery = `
		SELECT tm.team_id, p.id, p.username
		FROM game_teams gt
		JOIN team_members tm ON tm.team_id = gt.team_id
		JOIN players p ON p.id = tm.player_id
		WHERE gt.game_id = $1
		ORDER BY tm.team_id, p.id
	`
	rows, err = r.pool.Query(ctx, membersQuery, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to get team members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var teamID int64
		p := &model.Player{}
		if err := rows.Scan(&teamID, &p.ID, &p.Username); err != nil {
			return nil, fmt.Errorf("failed to scan team member: %w", err)
		}
		if team, ok := byTeam[teamID]; ok {
			team.Players = append(team.Players, p)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate team members: %w", err)
	}
	return g, nil
}

// ListByStatus lists games in the given state, oldest first.
func (r *GameRepository) ListByStatus(ctx context.Context, status model.GameStatus) ([]*model.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE status = $1 ORDER BY id`

	rows, err := r.pool.Query(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	defer rows.Close()

	var games []*model.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		games = append(games, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate games: %w", err)
	}
	return games, nil
}

// AddTeam attaches a team to a game. startingLives of 0 means the game's team lives.
func (r *GameRepository) AddTeam(ctx context.Context, gameID, teamID int64, teamNumber int, colour string, startingLives int) (*model.GameTeam, error) {
	const query = `
		INSERT INTO game_teams (game_id, team_id, team_number, colour, starting_lives, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING game_id, team_id, team_number, colour, starting_lives, removed_at, created_at
	`

	var gt model.GameTeam
	err := r.pool.QueryRow(ctx, query, gameID, teamID, teamNumber, colour, startingLives).Scan(
		&gt.GameID,
		&gt.TeamID,
		&gt.TeamNumber,
		&gt.Colour,
		&gt.StartingLives,
		&gt.RemovedAt,
		&gt.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to add team to game: %w", err)
	}
	return &gt, nil
}

// RemoveTeam soft-removes a team from a game.
func (r *GameRepository) RemoveTeam(ctx context.Context, gameID, teamID int64) error {
	const query = `
		UPDATE game_teams SET removed_at = NOW()
		WHERE game_id = $1 AND team_id = $2 AND removed_at IS NULL
	`
	tag, err := r.pool.Exec(ctx, query, gameID, teamID)
	if err != nil {
		return fmt.Errorf("failed to remove team from game: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTeamNotFound
	}
	return nil
}

// Start moves a created game to started. Starting a started game is a no-op.
func (r *GameRepository) Start(ctx context.Context, gameID int64) (*model.Game, error) {
	query := `
		UPDATE games SET status = 'started', started_at = COALESCE(started_at, NOW())
		WHERE id = $1 AND status IN ('created', 'started')
		RETURNING ` + gameColumns

	g, err := scanGame(r.pool.QueryRow(ctx, query, gameID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.lifecycleError(ctx, gameID)
		}
		return nil, fmt.Errorf("failed to start game: %w", err)
	}
	return g, nil
}

// End marks a started game ended. Ending an ended game is a no-op and keeps
// the original end time.
func (r *GameRepository) End(ctx context.Context, gameID int64) (*model.Game, error) {
	query := `
		UPDATE games SET status = 'ended', ended_at = COALESCE(ended_at, NOW())
		WHERE id = $1 AND status IN ('started', 'ended')
		RETURNING ` + gameColumns

	g, err := scanGame(r.pool.QueryRow(ctx, query, gameID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.lifecycleError(ctx, gameID)
		}
		return nil, fmt.Errorf("failed to end game: %w", err)
	}
	return g, nil
}

// lifecycleError tells a missing game apart from one in the wrong state.
func (r *GameRepository) lifecycleError(ctx context.Context, gameID int64) error {
	if _, err := r.GetByID(ctx, gameID); err != nil {
		return err
	}
	return ErrInvalidTransition
}
