package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"battle-royale-bot/internal/game/battleroyale"
	"battle-royale-bot/internal/model"
	"battle-royale-bot/internal/pkg/lock"
)

// Results-related errors.
var (
	ErrGameNotStarted = errors.New("game has not started")
	ErrNoStandings    = errors.New("no round has been scored yet")
)

// GameStore loads games and ends them.
type GameStore interface {
	GetWithTeams(ctx context.Context, gameID int64) (*model.Game, error)
	End(ctx context.Context, gameID int64) (*model.Game, error)
}

// LobbyStore loads a game's lobbies with their matches and scores.
type LobbyStore interface {
	ListByGame(ctx context.Context, gameID int64) ([]*model.Lobby, error)
}

// DeliveryStore records delivered reportables.
type DeliveryStore interface {
	ListDelivered(ctx context.Context, gameID int64) ([]*model.DeliveredReportable, error)
	MarkDelivered(ctx context.Context, gameID int64, batch []*model.DeliveredReportable) (int64, error)
}

// Dispatcher delivers reportables. A nil error means every reportable was delivered.
type Dispatcher interface {
	Dispatch(ctx context.Context, game *model.Game, reportables []battleroyale.ReportableContext) error
}

// PassResult summarizes one ProcessGame pass.
type PassResult struct {
	GameID     int64
	Dispatched int
	Champion   *battleroyale.TeamIsGameChampion
	Ended      bool
}

// ResultsService runs result passes: derive everything from the stored
// snapshot, deliver what is new and remember it.
type ResultsService struct {
	games       GameStore
	lobbies     LobbyStore
	delivered   DeliveryStore
	dispatcher  Dispatcher
	gameLock    *lock.GameLock
	lockTimeout time.Duration
}

// NewResultsService creates a new ResultsService instance.
func NewResultsService(
	games GameStore,
	lobbies LobbyStore,
	delivered DeliveryStore,
	dispatcher Dispatcher,
	gameLock *lock.GameLock,
	lockTimeout time.Duration,
) *ResultsService {
	if gameLock == nil {
		gameLock = lock.NewGameLock()
	}
	return &ResultsService{
		games:       games,
		lobbies:     lobbies,
		delivered:   delivered,
		dispatcher:  dispatcher,
		gameLock:    gameLock,
		lockTimeout: lockTimeout,
	}
}

// RefreshFunc brings a game's stored matches up to date before a pass.
type RefreshFunc func(ctx context.Context) error

// ProcessGame runs one pass over a game while holding its lock. When the
// dispatch fails nothing is recorded and the next pass retries the same
// reportables.
func (s *ResultsService) ProcessGame(ctx context.Context, gameID int64) (*PassResult, error) {
	return s.RefreshAndProcess(ctx, gameID, nil)
}

// RefreshAndProcess runs refresh and then a pass, both under the game's lock,
// so ingest and delivery of one game never interleave. A refresh error aborts
// the pass.
func (s *ResultsService) RefreshAndProcess(ctx context.Context, gameID int64, refresh RefreshFunc) (*PassResult, error) {
	var result *PassResult
	err := s.gameLock.WithLockContext(ctx, gameID, s.lockTimeout, func() error {
		if refresh != nil {
			if err := refresh(ctx); err != nil {
				return err
			}
		}
		var err error
		result, err = s.process(ctx, gameID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// process delivers what is new and only then ends a decided game, so the
// poller keeps picking the game up until its deciding round is recorded.
func (s *ResultsService) process(ctx context.Context, gameID int64) (*PassResult, error) {
	game, lobbies, err := s.load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game.Status == model.GameStatusCreated {
		return nil, ErrGameNotStarted
	}

	data, err := battleroyale.BuildReportData(game, lobbies)
	if err != nil {
		return nil, fmt.Errorf("failed to derive results for game %d: %w", gameID, err)
	}

	delivered, err := s.delivered.ListDelivered(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to load delivered reportables: %w", err)
	}
	report, err := battleroyale.Aggregate(data, lobbies, identities(delivered))
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate results for game %d: %w", gameID, err)
	}

	result := &PassResult{GameID: gameID}
	champion, decided := report.Champion()
	if decided {
		result.Champion = &champion
	}

	if len(report.ToBeReported) > 0 {
		batch, err := deliveredBatch(gameID, report.ToBeReported)
		if err != nil {
			return nil, err
		}
		if err := s.dispatcher.Dispatch(ctx, game, report.ToBeReported); err != nil {
			return nil, fmt.Errorf("failed to dispatch %d reportables for game %d: %w", len(report.ToBeReported), gameID, err)
		}
		if _, err := s.delivered.MarkDelivered(ctx, gameID, batch); err != nil {
			return nil, fmt.Errorf("failed to record delivered reportables: %w", err)
		}
		result.Dispatched = len(batch)

		log.Info().
			Int64("game_id", gameID).
			Int("reportables", result.Dispatched).
			Msg("Results delivered")
	}

	if decided && game.Status != model.GameStatusEnded {
		if _, err := s.games.End(ctx, gameID); err != nil {
			return nil, fmt.Errorf("failed to end game %d: %w", gameID, err)
		}
		result.Ended = true
		log.Info().
			Int64("game_id", gameID).
			Int64("champion_team_id", champion.TeamID).
			Str("key", champion.EventMatch.String()).
			Msg("Game decided")
	}

	return result, nil
}

// Standings returns the leaderboard of the most recently scored round.
func (s *ResultsService) Standings(ctx context.Context, gameID int64) (*model.Game, *battleroyale.Leaderboard, error) {
	game, lobbies, err := s.load(ctx, gameID)
	if err != nil {
		return nil, nil, err
	}

	vms, err := battleroyale.BuildVirtualMatches(lobbies)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build rounds for game %d: %w", gameID, err)
	}
	events, err := battleroyale.DetectEvents(game, vms)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to detect events for game %d: %w", gameID, err)
	}
	lb, err := battleroyale.LatestLeaderboard(game, vms, events)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build leaderboard for game %d: %w", gameID, err)
	}
	if lb == nil {
		return game, nil, ErrNoStandings
	}
	return game, lb, nil
}

func (s *ResultsService) load(ctx context.Context, gameID int64) (*model.Game, []*model.Lobby, error) {
	game, err := s.games.GetWithTeams(ctx, gameID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load game %d: %w", gameID, err)
	}
	lobbies, err := s.lobbies.ListByGame(ctx, gameID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load lobbies of game %d: %w", gameID, err)
	}
	return game, lobbies, nil
}

func identities(delivered []*model.DeliveredReportable) []battleroyale.ReportableIdentity {
	ids := make([]battleroyale.ReportableIdentity, 0, len(delivered))
	for _, d := range delivered {
		ids = append(ids, battleroyale.ReportableIdentity{
			Type:              battleroyale.ReportableType(d.Type),
			SubType:           d.SubType,
			BeatmapID:         d.BeatmapID,
			SameBeatmapNumber: d.SameBeatmapNumber,
		})
	}
	return ids
}

func deliveredBatch(gameID int64, reportables []battleroyale.ReportableContext) ([]*model.DeliveredReportable, error) {
	batch := make([]*model.DeliveredReportable, 0, len(reportables))
	for _, rc := range reportables {
		item, err := json.Marshal(rc.Item)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s/%s: %w", rc.Type, rc.SubType, err)
		}
		batch = append(batch, &model.DeliveredReportable{
			GameID:            gameID,
			Type:              string(rc.Type),
			SubType:           rc.SubType,
			BeatmapID:         rc.BeatmapID,
			SameBeatmapNumber: rc.SameBeatmapNumber,
			ReportedAt:        rc.Time,
			Item:              item,
		})
	}
	return batch, nil
}
