package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"battle-royale-bot/internal/model"
)

// LobbyRepository handles lobbies and the matches and scores polled into them.
type LobbyRepository struct {
	pool *pgxpool.Pool
}

// NewLobbyRepository creates a new LobbyRepository instance.
func NewLobbyRepository(pool *pgxpool.Pool) *LobbyRepository {
	return &LobbyRepository{pool: pool}
}

const lobbyColumns = `id, game_id, lobby_number, multiplayer_id, removed_at, created_at`

func scanLobby(row pgx.Row) (*model.Lobby, error) {
	var l model.Lobby
	err := row.Scan(&l.ID, &l.GameID, &l.LobbyNumber, &l.MultiplayerID, &l.RemovedAt, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// Create attaches an osu! multiplayer room to a game.
func (r *LobbyRepository) Create(ctx context.Context, gameID int64, lobbyNumber int, multiplayerID int64) (*model.Lobby, error) {
	query := `
		INSERT INTO lobbies (game_id, lobby_number, multiplayer_id, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING ` + lobbyColumns

	l, err := scanLobby(r.pool.QueryRow(ctx, query, gameID, lobbyNumber, multiplayerID))
	if err != nil {
		return nil, fmt.Errorf("failed to create lobby: %w", err)
	}
	return l, nil
}

// GetByID retrieves a lobby without its matches.
// Returns ErrLobbyNotFound if the lobby does not exist.
func (r *LobbyRepository) GetByID(ctx context.Context, lobbyID int64) (*model.Lobby, error) {
	query := `SELECT ` + lobbyColumns + ` FROM lobbies WHERE id = $1`

	l, err := scanLobby(r.pool.QueryRow(ctx, query, lobbyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLobbyNotFound
		}
		return nil, fmt.Errorf("failed to get lobby: %w", err)
	}
	return l, nil
}

// Remove soft-removes a lobby. Its matches stay but no longer count.
func (r *LobbyRepository) Remove(ctx context.Context, lobbyID int64) error {
	const query = `UPDATE lobbies SET removed_at = NOW() WHERE id = $1 AND removed_at IS NULL`

	tag, err := r.pool.Exec(ctx, query, lobbyID)
	if err != nil {
		return fmt.Errorf("failed to remove lobby: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLobbyNotFound
	}
	return nil
}

// ListByGame lists every lobby of a game, removed ones included, with their
// matches ordered by map number and each match's scores.
func (r *LobbyRepository) ListByGame(ctx context.Context, gameID int64) ([]*model.Lobby, error) {
	query := `SELECT ` + lobbyColumns + ` FROM lobbies WHERE game_id = $1 ORDER BY lobby_number, id`

	rows, err := r.pool.Query(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to list lobbies: %w", err)
	}
	defer rows.Close()

	var lobbies []*model.Lobby
	byID := make(map[int64]*model.Lobby)
	for rows.Next() {
		l, err := scanLobby(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lobby: %w", err)
		}
		lobbies = append(lobbies, l)
		byID[l.ID] = l
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate lobbies: %w", err)
	}
	rows.Close()

	if len(lobbies) == 0 {
		return lobbies, nil
	}

	matches, err := r.listMatches(ctx, gameID)
	if err != nil {
		return nil, err
	}
	for _, m := range matches {
		if l, ok := byID[m.LobbyID]; ok {
			l.Matches = append(l.Matches, m)
		}
	}
	return lobbies, nil
}

func (r *LobbyRepository) listMatches(ctx context.Context, gameID int64) ([]*model.Match, error) {
	const matchesQuery = `
		SELECT m.id, m.lobby_id, m.beatmap_id, m.map_number, m.start_time, m.end_time, m.aborted, m.team_mode
		FROM matches m
		JOIN lobbies l ON l.id = m.lobby_id
		WHERE l.game_id = $1
		ORDER BY m.lobby_id, m.map_number
	`
	rows, err := r.pool.Query(ctx, matchesQuery, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	defer rows.Close()

	var matches []*model.Match
	byID := make(map[int64]*model.Match)
	for rows.Next() {
		var m model.Match
		err := rows.Scan(&m.ID, &m.LobbyID, &m.BeatmapID, &m.MapNumber, &m.StartTime, &m.EndTime, &m.Aborted, &m.TeamMode)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, &m)
		byID[m.ID] = &m
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate matches: %w", err)
	}
	rows.Close()

	const scoresQuery = `
		SELECT s.id, s.match_id, s.player_id, s.score, s.passed, s.accuracy, s.letter_grade
		FROM player_scores s
		JOIN matches m ON m.id = s.match_id
		JOIN lobbies l ON l.id = m.lobby_id
		WHERE l.game_id = $1
		ORDER BY s.match_id, s.player_id
	`
	rows, err = r.pool.Query(ctx, scoresQuery, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to list scores: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s model.PlayerScore
		err := rows.Scan(&s.ID, &s.MatchID, &s.PlayerID, &s.Score, &s.Passed, &s.Accuracy, &s.LetterGrade)
		if err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		if m, ok := byID[s.MatchID]; ok {
			m.Scores = append(m.Scores, &s)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate scores: %w", err)
	}
	return matches, nil
}

// UpsertMatch stores one polled game of a lobby together with its scores, in
// one transaction. The match is keyed by (lobby, map number); storing the same
// payload twice leaves the rows unchanged.
func (r *LobbyRepository) UpsertMatch(ctx context.Context, lobbyID int64, am model.ApiMatch) (*model.Match, error) {
	const matchQuery = `
		INSERT INTO matches (lobby_id, beatmap_id, map_number, start_time, end_time, aborted, team_mode)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (lobby_id, map_number) DO UPDATE SET
			beatmap_id = EXCLUDED.beatmap_id,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			aborted = EXCLUDED.aborted,
			team_mode = EXCLUDED.team_mode
		RETURNING id, lobby_id, beatmap_id, map_number, start_time, end_time, aborted, team_mode
	`
	const scoreQuery = `
		INSERT INTO player_scores (match_id, player_id, score, passed, accuracy, letter_grade)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (match_id, player_id) DO UPDATE SET
			score = EXCLUDED.score,
			passed = EXCLUDED.passed,
			accuracy = EXCLUDED.accuracy,
			letter_grade = EXCLUDED.letter_grade
		RETURNING id, match_id, player_id, score, passed, accuracy, letter_grade
	`
	const pruneQuery = `DELETE FROM player_scores WHERE match_id = $1 AND NOT (player_id = ANY($2))`

	var m model.Match
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, matchQuery,
			lobbyID, am.BeatmapID, am.MapNumber, am.StartTime, am.EndTime, am.Aborted, am.TeamMode,
		).Scan(&m.ID, &m.LobbyID, &m.BeatmapID, &m.MapNumber, &m.StartTime, &m.EndTime, &m.Aborted, &m.TeamMode)
		if err != nil {
			return fmt.Errorf("failed to upsert match: %w", err)
		}

		players := make([]int64, 0, len(am.Scores))
		for _, as := range am.Scores {
			var s model.PlayerScore
			err := tx.QueryRow(ctx, scoreQuery,
				m.ID, as.PlayerID, as.Score, as.Passed, as.Accuracy, as.LetterGrade,
			).Scan(&s.ID, &s.MatchID, &s.PlayerID, &s.Score, &s.Passed, &s.Accuracy, &s.LetterGrade)
			if err != nil {
				return fmt.Errorf("failed to upsert score: %w", err)
			}
			m.Scores = append(m.Scores, &s)
			players = append(players, as.PlayerID)
		}

		if _, err := tx.Exec(ctx, pruneQuery, m.ID, players); err != nil {
			return fmt.Errorf("failed to prune scores: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}
