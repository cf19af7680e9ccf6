// Package main is the entry point for the Battle Royale results bot.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"battle-royale-bot/internal/bot"
	"battle-royale-bot/internal/config"
	"battle-royale-bot/internal/osuapi"
	"battle-royale-bot/internal/pkg/db"
	"battle-royale-bot/internal/pkg/lock"
	"battle-royale-bot/internal/poller"
	"battle-royale-bot/internal/repository"
	"battle-royale-bot/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Info().Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbPool, err := db.NewPool(ctx, &cfg.Database, cfg.Poller.MaxParallel)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	if err := db.Migrate(ctx, dbPool.Pool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	gameRepo := repository.NewGameRepository(dbPool.Pool)
	lobbyRepo := repository.NewLobbyRepository(dbPool.Pool)
	reportableRepo := repository.NewReportableRepository(dbPool.Pool)

	telegramBot, err := bot.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bot")
	}

	if len(cfg.Notify.Chats) == 0 {
		log.Warn().Msg("notify.chats is empty, reports are held back until a chat is configured")
	}

	gameLock := lock.NewGameLock()
	resultsService := service.NewResultsService(
		gameRepo,
		lobbyRepo,
		reportableRepo,
		telegramBot.Dispatcher(),
		gameLock,
		cfg.Processing.LockTimeout,
	)
	ingestService := service.NewIngestService(lobbyRepo)

	telegramBot.Register(&bot.Dependencies{Standings: resultsService})

	resultsPoller := poller.New(
		osuapi.New(ctx, &cfg.Osu),
		gameRepo,
		lobbyRepo,
		ingestService,
		resultsService,
		cfg.Poller.Interval,
		cfg.Poller.PassTimeout,
		cfg.Poller.MaxParallel,
		poller.WithHealthCheck(dbPool.HealthCheck),
		poller.WithAfterTick(func() {
			stat := dbPool.Stats()
			log.Debug().
				Int32("acquired_conns", stat.AcquiredConns()).
				Int32("idle_conns", stat.IdleConns()).
				Int32("total_conns", stat.TotalConns()).
				Msg("Database pool stats")
		}),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info().Msg("Bot is starting...")
		telegramBot.Start()
	}()

	pollerDone := make(chan struct{})
	go func() {
		defer close(pollerDone)
		if err := resultsPoller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Poller stopped")
		}
	}()

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	cancel()
	<-pollerDone
	telegramBot.Stop()
	log.Info().Msg("Bot stopped gracefully")
}
