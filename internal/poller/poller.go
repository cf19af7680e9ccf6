// Package poller periodically refreshes every started game.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"battle-royale-bot/internal/model"
	"battle-royale-bot/internal/service"
)

// Fetcher fetches a multiplayer room.
type Fetcher interface {
	FetchMatch(ctx context.Context, multiplayerID int64) (*model.ApiMultiplayerResult, error)
}

// GameLister lists games by status.
type GameLister interface {
	ListByStatus(ctx context.Context, status model.GameStatus) ([]*model.Game, error)
}

// LobbyLister lists the lobbies of a game.
type LobbyLister interface {
	ListByGame(ctx context.Context, gameID int64) ([]*model.Lobby, error)
}

// Ingester stores a fetched room.
type Ingester interface {
	Ingest(ctx context.Context, lobby *model.Lobby, result *model.ApiMultiplayerResult) (int, error)
}

// Processor runs a refresh and a result pass over a game under its lock.
type Processor interface {
	RefreshAndProcess(ctx context.Context, gameID int64, refresh service.RefreshFunc) (*service.PassResult, error)
}

// Option configures a Poller.
type Option func(*Poller)

// WithHealthCheck skips a tick while check fails.
func WithHealthCheck(check func(ctx context.Context) error) Option {
	return func(p *Poller) { p.healthCheck = check }
}

// WithAfterTick runs fn after every tick.
func WithAfterTick(fn func()) Option {
	return func(p *Poller) { p.afterTick = fn }
}

// Poller fetches, ingests and processes every started game on a fixed interval.
type Poller struct {
	fetcher   Fetcher
	games     GameLister
	lobbies   LobbyLister
	ingester  Ingester
	processor Processor

	interval    time.Duration
	passTimeout time.Duration
	maxParallel int

	healthCheck func(ctx context.Context) error
	afterTick   func()
}

// New creates a new Poller.
func New(
	fetcher Fetcher,
	games GameLister,
	lobbies LobbyLister,
	ingester Ingester,
	processor Processor,
	interval, passTimeout time.Duration,
	maxParallel int,
	opts ...Option,
) *Poller {
	if maxParallel < 1 {
		maxParallel = 1
	}
	p := &Poller{
		fetcher:     fetcher,
		games:       games,
		lobbies:     lobbies,
		ingester:    ingester,
		processor:   processor,
		interval:    interval,
		passTimeout: passTimeout,
		maxParallel: maxParallel,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run ticks until ctx is done. The first tick runs immediately.
func (p *Poller) Run(ctx context.Context) error {
	log.Info().Dur("interval", p.interval).Msg("Poller started")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.Tick(ctx); err != nil {
			log.Error().Err(err).Msg("Poll tick finished with errors")
		}
		select {
		case <-ctx.Done():
			log.Info().Msg("Poller stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Tick refreshes every started game once, several games at a time. A failing
// game does not stop the others; their errors are joined.
func (p *Poller) Tick(ctx context.Context) error {
	if p.afterTick != nil {
		defer p.afterTick()
	}
	if p.healthCheck != nil {
		if err := p.healthCheck(ctx); err != nil {
			return fmt.Errorf("skipping tick, health check failed: %w", err)
		}
	}

	games, err := p.games.ListByStatus(ctx, model.GameStatusStarted)
	if err != nil {
		return fmt.Errorf("failed to list started games: %w", err)
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	var g errgroup.Group
	g.SetLimit(p.maxParallel)
	for _, game := range games {
		game := game
		g.Go(func() error {
			if err := p.pollGame(ctx, game.ID); err != nil {
				log.Error().Err(err).Int64("game_id", game.ID).Msg("Game poll failed")
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// pollGame refreshes the game's lobbies then runs a result pass, both under
// the game's lock. A lobby that cannot be fetched is skipped; the pass works
// from what is stored.
func (p *Poller) pollGame(ctx context.Context, gameID int64) error {
	if p.passTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.passTimeout)
		defer cancel()
	}

	result, err := p.processor.RefreshAndProcess(ctx, gameID, func(ctx context.Context) error {
		return p.refresh(ctx, gameID)
	})
	if err != nil {
		return err
	}
	if result.Dispatched > 0 {
		log.Debug().Int64("game_id", gameID).Int("dispatched", result.Dispatched).Msg("Game polled")
	}
	return nil
}

func (p *Poller) refresh(ctx context.Context, gameID int64) error {
	lobbies, err := p.lobbies.ListByGame(ctx, gameID)
	if err != nil {
		return fmt.Errorf("failed to list lobbies: %w", err)
	}

	for _, lobby := range lobbies {
		if lobby.RemovedAt != nil {
			continue
		}
		result, err := p.fetcher.FetchMatch(ctx, lobby.MultiplayerID)
		if err != nil {
			log.Warn().
				Err(err).
				Int64("game_id", gameID).
				Int64("lobby_id", lobby.ID).
				Msg("Failed to fetch lobby")
			continue
		}
		if _, err := p.ingester.Ingest(ctx, lobby, result); err != nil {
			return fmt.Errorf("failed to ingest lobby %d: %w", lobby.ID, err)
		}
	}
	return nil
}
