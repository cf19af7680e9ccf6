// Package service provides business logic implementations.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"battle-royale-bot/internal/model"
)

// Ingest-related errors.
var (
	ErrMultiplayerMismatch = errors.New("payload belongs to a different multiplayer room")
	ErrLobbyRemoved        = errors.New("lobby has been removed")
)

// MatchStore persists polled matches.
type MatchStore interface {
	UpsertMatch(ctx context.Context, lobbyID int64, am model.ApiMatch) (*model.Match, error)
}

// IngestService turns polled multiplayer payloads into match and score rows.
type IngestService struct {
	matches MatchStore
}

// NewIngestService creates a new IngestService instance.
func NewIngestService(matches MatchStore) *IngestService {
	return &IngestService{matches: matches}
}

// Ingest stores every match of the payload in the lobby. Storing the same
// payload again changes nothing. It returns the number of matches stored.
func (s *IngestService) Ingest(ctx context.Context, lobby *model.Lobby, result *model.ApiMultiplayerResult) (int, error) {
	if lobby.RemovedAt != nil {
		return 0, ErrLobbyRemoved
	}
	if result.MultiplayerID != lobby.MultiplayerID {
		return 0, fmt.Errorf("%w: lobby %d polls %d, payload is %d",
			ErrMultiplayerMismatch, lobby.ID, lobby.MultiplayerID, result.MultiplayerID)
	}

	stored := 0
	for _, am := range result.Matches {
		if am.BeatmapID <= 0 {
			log.Warn().
				Int64("lobby_id", lobby.ID).
				Int("map_number", am.MapNumber).
				Msg("Skipping match without beatmap")
			continue
		}
		if _, err := s.matches.UpsertMatch(ctx, lobby.ID, am); err != nil {
			return stored, fmt.Errorf("failed to ingest map %d of lobby %d: %w", am.MapNumber, lobby.ID, err)
		}
		stored++
	}

	log.Debug().
		Int64("lobby_id", lobby.ID).
		Int64("multiplayer_id", lobby.MultiplayerID).
		Int("matches", stored).
		Msg("Lobby ingested")
	return stored, nil
}
