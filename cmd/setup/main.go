// Package main creates a Battle Royale game from a plan file.
//
//	setup -plan game.yaml
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"battle-royale-bot/internal/config"
	"battle-royale-bot/internal/pkg/db"
	"battle-royale-bot/internal/repository"
	"battle-royale-bot/internal/service"
)

func main() {
	planPath := flag.String("plan", "game.yaml", "path to the game plan")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	plan, err := loadPlan(*planPath)
	if err != nil {
		log.Fatal().Err(err).Str("plan", *planPath).Msg("Failed to load game plan")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	dbPool, err := db.NewPool(ctx, &cfg.Database, 1)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	if err := db.Migrate(ctx, dbPool.Pool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	setup := service.NewSetupService(
		repository.NewGameRepository(dbPool.Pool),
		repository.NewTeamRepository(dbPool.Pool),
		repository.NewLobbyRepository(dbPool.Pool),
	)

	game, err := setup.CreateGame(ctx, plan)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create game")
		return
	}
	log.Info().Int64("game_id", game.ID).Msg("Use /standings with this game id")
}

func loadPlan(path string) (*service.GamePlan, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("team_lives", 3)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var plan service.GamePlan
	if err := v.Unmarshal(&plan); err != nil {
		return nil, err
	}
	return &plan, nil
}
