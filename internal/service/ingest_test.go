package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"battle-royale-bot/internal/model"
)

type recordingMatchStore struct {
	stored map[int]model.ApiMatch
	err    error
}

func (s *recordingMatchStore) UpsertMatch(_ context.Context, lobbyID int64, am model.ApiMatch) (*model.Match, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.stored == nil {
		s.stored = make(map[int]model.ApiMatch)
	}
	s.stored[am.MapNumber] = am
	return &model.Match{LobbyID: lobbyID, BeatmapID: am.BeatmapID, MapNumber: am.MapNumber}, nil
}

func TestIngest(t *testing.T) {
	store := &recordingMatchStore{}
	svc := NewIngestService(store)
	lobby := &model.Lobby{ID: 1, MultiplayerID: 5000}

	end := baseTime.Add(3 * time.Minute)
	payload := &model.ApiMultiplayerResult{
		MultiplayerID: 5000,
		Matches: []model.ApiMatch{
			{BeatmapID: 10, MapNumber: 1, StartTime: baseTime, EndTime: &end, Scores: []model.ApiScore{{PlayerID: 101, Score: 5}}},
			{BeatmapID: 0, MapNumber: 2, StartTime: baseTime},
			{BeatmapID: 20, MapNumber: 3, StartTime: end},
		},
	}

	n, err := svc.Ingest(context.Background(), lobby, payload)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, store.stored, 2)

	n, err = svc.Ingest(context.Background(), lobby, payload)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, store.stored, 2, "re-ingesting keys the same rows")
}

func TestIngest_Rejects(t *testing.T) {
	svc := NewIngestService(&recordingMatchStore{})
	ctx := context.Background()

	_, err := svc.Ingest(ctx, &model.Lobby{ID: 1, MultiplayerID: 5000}, &model.ApiMultiplayerResult{MultiplayerID: 6000})
	assert.ErrorIs(t, err, ErrMultiplayerMismatch)

	removed := baseTime
	_, err = svc.Ingest(ctx, &model.Lobby{ID: 1, MultiplayerID: 5000, RemovedAt: &removed}, &model.ApiMultiplayerResult{MultiplayerID: 5000})
	assert.ErrorIs(t, err, ErrLobbyRemoved)
}

func TestIngest_StoreError(t *testing.T) {
	boom := errors.New("boom")
	svc := NewIngestService(&recordingMatchStore{err: boom})

	_, err := svc.Ingest(context.Background(), &model.Lobby{ID: 1, MultiplayerID: 5000}, &model.ApiMultiplayerResult{
		MultiplayerID: 5000,
		Matches:       []model.ApiMatch{{BeatmapID: 10, MapNumber: 1}},
	})
	assert.ErrorIs(t, err, boom)
}
