package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

// Execer is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type migration struct {
	name string
	sql  string
}

var migrations = []migration{
	{"players", `
		CREATE TABLE IF NOT EXISTS players (
			id BIGINT PRIMARY KEY,
			username VARCHAR(255) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`},
	{"teams", `
		CREATE TABLE IF NOT EXISTS teams (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS team_members (
			team_id BIGINT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
			player_id BIGINT NOT NULL REFERENCES players(id) ON DELETE CASCADE,
			PRIMARY KEY (team_id, player_id)
		);
	`},
	{"games", `
		CREATE TABLE IF NOT EXISTS games (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			team_lives INT NOT NULL,
			count_failed_scores BOOLEAN NOT NULL DEFAULT TRUE,
			status VARCHAR(20) NOT NULL DEFAULT 'created',
			started_at TIMESTAMPTZ,
			ended_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_games_status ON games(status);
		CREATE TABLE IF NOT EXISTS game_teams (
			game_id BIGINT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
			team_id BIGINT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
			team_number INT NOT NULL,
			colour VARCHAR(32) NOT NULL DEFAULT '',
			starting_lives INT NOT NULL DEFAULT 0,
			removed_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (game_id, team_id),
			UNIQUE (game_id, team_number)
		);
	`},
	{"lobbies", `
		CREATE TABLE IF NOT EXISTS lobbies (
			id BIGSERIAL PRIMARY KEY,
			game_id BIGINT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
			lobby_number INT NOT NULL,
			multiplayer_id BIGINT NOT NULL,
			removed_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (game_id, lobby_number)
		);
	`},
	{"matches", `
		CREATE TABLE IF NOT EXISTS matches (
			id BIGSERIAL PRIMARY KEY,
			lobby_id BIGINT NOT NULL REFERENCES lobbies(id) ON DELETE CASCADE,
			beatmap_id BIGINT NOT NULL,
			map_number INT NOT NULL,
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ,
			aborted BOOLEAN NOT NULL DEFAULT FALSE,
			team_mode VARCHAR(32) NOT NULL DEFAULT '',
			UNIQUE (lobby_id, map_number)
		);
		CREATE TABLE IF NOT EXISTS player_scores (
			id BIGSERIAL PRIMARY KEY,
			match_id BIGINT NOT NULL REFERENCES matches(id) ON DELETE CASCADE,
			player_id BIGINT NOT NULL,
			score BIGINT NOT NULL,
			passed BOOLEAN NOT NULL,
			accuracy DOUBLE PRECISION NOT NULL DEFAULT 0,
			letter_grade VARCHAR(4) NOT NULL DEFAULT '',
			UNIQUE (match_id, player_id)
		);
	`},
	{"delivered_reportables", `
		CREATE TABLE IF NOT EXISTS delivered_reportables (
			id BIGSERIAL PRIMARY KEY,
			game_id BIGINT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
			type VARCHAR(32) NOT NULL,
			sub_type VARCHAR(64) NOT NULL,
			beatmap_id BIGINT NOT NULL,
			same_beatmap_number INT NOT NULL,
			reported_at TIMESTAMPTZ NOT NULL,
			item JSONB NOT NULL,
			delivered_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (game_id, type, sub_type, beatmap_id, same_beatmap_number)
		);
	`},
}

// Migrate creates every table the bot uses. Each statement is idempotent.
func Migrate(ctx context.Context, db Execer) error {
	log.Info().Msg("Running database migrations...")
	for i, m := range migrations {
		if _, err := db.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("failed to run migration %d (%s): %w", i+1, m.name, err)
		}
		log.Info().Int("migration", i+1).Str("name", m.name).Msg("Migration applied")
	}
	log.Info().Msg("All migrations completed successfully")
	return nil
}
