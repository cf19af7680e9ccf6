package repository

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"battle-royale-bot/internal/model"
	"battle-royale-bot/internal/pkg/db"
)

// checkDockerAvailable checks if Docker is available and running
func checkDockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	err := cmd.Run()
	return err == nil
}

// setupTestDB creates a PostgreSQL container and returns a migrated pool.
// Skips the test if Docker is not available.
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	require.NoError(t, db.Migrate(ctx, pool))
	// a second run must be a no-op
	require.NoError(t, db.Migrate(ctx, pool))

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return pool, cleanup
}

// seedGame creates a game with two single-player teams.
func seedGame(t *testing.T, pool *pgxpool.Pool) *model.Game {
	t.Helper()
	ctx := context.Background()
	games := NewGameRepository(pool)
	teams := NewTeamRepository(pool)

	g, err := games.Create(ctx, "royale", 3, true)
	require.NoError(t, err)

	for i, name := range []string{"Red", "Blue"} {
		team, err := teams.Create(ctx, name)
		require.NoError(t, err)
		p, err := teams.UpsertPlayer(ctx, int64(1000+i), name+" player")
		require.NoError(t, err)
		require.NoError(t, teams.AddMember(ctx, team.ID, p.ID))
		_, err = games.AddTeam(ctx, g.ID, team.ID, i+1, name, 0)
		require.NoError(t, err)
	}
	return g
}

// ============================================================================
// GameRepository Tests
// ============================================================================

func TestGameRepository_GetWithTeams(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	g := seedGame(t, pool)
	repo := NewGameRepository(pool)

	got, err := repo.GetWithTeams(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "royale", got.Name)
	assert.Equal(t, model.GameStatusCreated, got.Status)
	require.Len(t, got.Teams, 2)
	assert.Equal(t, 1, got.Teams[0].TeamNumber)
	assert.Equal(t, "Red", got.Teams[0].Team.Name)
	require.Len(t, got.Teams[0].Team.Players, 1)
	assert.Equal(t, int64(1000), got.Teams[0].Team.Players[0].ID)

	_, err = repo.GetWithTeams(ctx, 99999)
	assert.ErrorIs(t, err, ErrGameNotFound)
}

func TestGameRepository_Lifecycle(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	g := seedGame(t, pool)
	repo := NewGameRepository(pool)

	_, err := repo.End(ctx, g.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition, "a created game cannot end")

	started, err := repo.Start(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, model.GameStatusStarted, started.Status)
	require.NotNil(t, started.StartedAt)

	list, err := repo.ListByStatus(ctx, model.GameStatusStarted)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, g.ID, list[0].ID)

	ended, err := repo.End(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, model.GameStatusEnded, ended.Status)
	require.NotNil(t, ended.EndedAt)

	again, err := repo.End(ctx, g.ID)
	require.NoError(t, err, "ending twice is a no-op")
	assert.True(t, ended.EndedAt.Equal(*again.EndedAt))

	_, err = repo.Start(ctx, g.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = repo.End(ctx, 99999)
	assert.ErrorIs(t, err, ErrGameNotFound)
}

func TestGameRepository_RemoveTeam(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	g := seedGame(t, pool)
	repo := NewGameRepository(pool)

	full, err := repo.GetWithTeams(ctx, g.ID)
	require.NoError(t, err)
	require.NoError(t, repo.RemoveTeam(ctx, g.ID, full.Teams[1].TeamID))
	assert.ErrorIs(t, repo.RemoveTeam(ctx, g.ID, full.Teams[1].TeamID), ErrTeamNotFound)

	got, err := repo.GetWithTeams(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, got.Teams, 2)
	assert.Len(t, got.ActiveTeams(), 1)
}

// ============================================================================
// LobbyRepository Tests
// ============================================================================

func TestLobbyRepository_UpsertMatchIsIdempotent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	g := seedGame(t, pool)
	repo := NewLobbyRepository(pool)

	lobby, err := repo.Create(ctx, g.ID, 1, 111222)
	require.NoError(t, err)

	start := time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)
	am := model.ApiMatch{
		BeatmapID: 75,
		MapNumber: 1,
		StartTime: start,
		TeamMode:  "head-to-head",
		Scores: []model.ApiScore{
			{PlayerID: 1000, Score: 500000, Passed: true, Accuracy: 0.98, LetterGrade: "S"},
			{PlayerID: 1001, Score: 400000, Passed: false, Accuracy: 0.80, LetterGrade: "F"},
		},
	}

	first, err := repo.UpsertMatch(ctx, lobby.ID, am)
	require.NoError(t, err)
	assert.Nil(t, first.EndTime)
	require.Len(t, first.Scores, 2)

	end := start.Add(3 * time.Minute)
	am.EndTime = &end
	am.Scores = am.Scores[:1]
	second, err := repo.UpsertMatch(ctx, lobby.ID, am)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	require.NotNil(t, second.EndTime)

	lobbies, err := repo.ListByGame(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, lobbies, 1)
	require.Len(t, lobbies[0].Matches, 1)
	m := lobbies[0].Matches[0]
	assert.True(t, m.EndTime.Equal(end))
	require.Len(t, m.Scores, 1, "scores missing from the payload are pruned")
	assert.Equal(t, int64(500000), m.Scores[0].Score)
	assert.Equal(t, "S", m.Scores[0].LetterGrade)
}

func TestLobbyRepository_Remove(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	g := seedGame(t, pool)
	repo := NewLobbyRepository(pool)

	lobby, err := repo.Create(ctx, g.ID, 1, 111222)
	require.NoError(t, err)
	require.NoError(t, repo.Remove(ctx, lobby.ID))
	assert.ErrorIs(t, repo.Remove(ctx, lobby.ID), ErrLobbyNotFound)

	got, err := repo.GetByID(ctx, lobby.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.RemovedAt)

	_, err = repo.GetByID(ctx, 99999)
	assert.ErrorIs(t, err, ErrLobbyNotFound)
}

// ============================================================================
// ReportableRepository Tests
// ============================================================================

func TestReportableRepository_MarkDelivered(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	g := seedGame(t, pool)
	repo := NewReportableRepository(pool)

	at := time.Date(2024, 3, 1, 18, 10, 0, 0, time.UTC)
	batch := []*model.DeliveredReportable{
		{Type: "game_event", SubType: "team_scored_highest", BeatmapID: 75, SameBeatmapNumber: 1, ReportedAt: at, Item: []byte(`{"teamId":1}`)},
		{Type: "leaderboard", SubType: "virtual_match_leaderboard", BeatmapID: 75, SameBeatmapNumber: 1, ReportedAt: at, Item: []byte(`{}`)},
	}

	n, err := repo.MarkDelivered(ctx, g.ID, batch)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = repo.MarkDelivered(ctx, g.ID, batch)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "identities are delivered at most once")

	delivered, err := repo.ListDelivered(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, delivered, 2)
	assert.Equal(t, "team_scored_highest", delivered[0].SubType)
	assert.JSONEq(t, `{"teamId":1}`, string(delivered[0].Item))

	n, err = repo.MarkDelivered(ctx, g.ID, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}
