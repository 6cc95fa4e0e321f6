package main

import (
	"net/http"
	"os"
	"time"

	"roast-roulette/internal/config"
	"roast-roulette/internal/db"
	"roast-roulette/internal/server"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := config.LoadDotEnv(".env"); err != nil {
		log.Warn().Err(err).Msg("failed to load .env")
	}
	cfg := config.Load()

	conn := openDatabase(cfg)

	addr := ":8080"
	if env := os.Getenv("PORT"); env != "" {
		addr = ":" + env
	}

	srv := server.New(conn, cfg)
	log.Info().Str("addr", addr).Msg("roast-roulette server listening")
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

// openDatabase connects when DATABASE_URL is set. Without it the server runs
// purely in memory, which is enough for local play.
func openDatabase(cfg config.Config) *gorm.DB {
	if os.Getenv("DATABASE_URL") == "" {
		log.Warn().Msg("DATABASE_URL not set, running without persistence")
		return nil
	}
	conn, err := db.Open()
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	sqlDB, err := conn.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("database handle unavailable")
	}
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.DBConnMaxLifetimeSeconds) * time.Second)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.DBConnMaxIdleTimeSeconds) * time.Second)
	if err := db.Migrate(conn); err != nil {
		log.Fatal().Err(err).Msg("database migration failed")
	}
	return conn
}
