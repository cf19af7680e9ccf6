package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"battle-royale-bot/internal/model"
)

// TeamRepository handles teams, players and team membership.
type TeamRepository struct {
	pool *pgxpool.Pool
}

// NewTeamRepository creates a new TeamRepository instance.
func NewTeamRepository(pool *pgxpool.Pool) *TeamRepository {
	return &TeamRepository{pool: pool}
}

// Create creates a new team.
func (r *TeamRepository) Create(ctx context.Context, name string) (*model.Team, error) {
	const query = `
		INSERT INTO teams (name, created_at)
		VALUES ($1, NOW())
		RETURNING id, name, created_at
	`

	var t model.Team
	if err := r.pool.QueryRow(ctx, query, name).Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to create team: %w", err)
	}
	return &t, nil
}

// UpsertPlayer creates a player or refreshes their username.
func (r *TeamRepository) UpsertPlayer(ctx context.Context, osuID int64, username string) (*model.Player, error) {
	const query = `
		INSERT INTO players (id, username, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username
		RETURNING id, username
	`

	var p model.Player
	if err := r.pool.QueryRow(ctx, query, osuID, username).Scan(&p.ID, &p.Username); err != nil {
		return nil, fmt.Errorf("failed to upsert player: %w", err)
	}
	return &p, nil
}

// AddMember adds a player to a team. Adding an existing member is a no-op.
func (r *TeamRepository) AddMember(ctx context.Context, teamID, playerID int64) error {
	const query = `
		INSERT INTO team_members (team_id, player_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`

	if _, err := r.pool.Exec(ctx, query, teamID, playerID); err != nil {
		return fmt.Errorf("failed to add team member: %w", err)
	}
	return nil
}
