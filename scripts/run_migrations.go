package main

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/safar/storefront/internal/config"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/migrations"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal().Msg("Usage: go run scripts/run_migrations.go [up|down]")
	}

	direction, err := migrations.ParseDirection(os.Args[1])
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid direction")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Load config")
	}
	config.SetupLogging(&cfg.Log)

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Connect to database")
	}
	defer db.Close()

	n, err := migrations.Apply(context.Background(), db, direction)
	if err != nil {
		log.Fatal().Err(err).Msg("Run migrations")
	}

	log.Info().Msgf("Successfully ran %d migration(s) %s", n, direction)
}
