package main

import (
	"errors"
	"os"
	"time"

	"roast-roulette/internal/config"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const migrationsSource = "file://db/migrations"

// Applies the SQL migrations in db/migrations. Pass "down" to roll back the
// most recent one instead.
func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := config.LoadDotEnv(".env"); err != nil {
		log.Warn().Err(err).Msg("failed to load .env")
	}
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal().Msg("DATABASE_URL is not set")
	}

	m, err := migrate.New(migrationsSource, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("migration setup failed")
	}

	direction := "up"
	if len(os.Args) > 1 {
		direction = os.Args[1]
	}
	switch direction {
	case "up":
		err = m.Up()
	case "down":
		err = m.Steps(-1)
	default:
		log.Fatal().Str("arg", direction).Msg("expected \"up\" or \"down\"")
	}
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info().Msg("database already up to date")
		return
	}
	if err != nil {
		log.Fatal().Err(err).Str("direction", direction).Msg("migration failed")
	}
	log.Info().Str("direction", direction).Msg("migrations applied")
}
