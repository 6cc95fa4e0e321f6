package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads environment variables from a .env file if present.
// Existing environment variables are not overwritten.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

type Config struct {
	UploadSeconds            int
	SelectTargetSeconds      int
	VoteSeconds              int
	ResultsSeconds           int
	PhotoPollMillis          int
	StaleAfterSeconds        int
	IdeasPerRound            int
	TopIdeas                 int
	RoastLanguage            string
	GenerateTimeoutSeconds   int
	DBMaxOpenConns           int
	DBMaxIdleConns           int
	DBConnMaxLifetimeSeconds int
	DBConnMaxIdleTimeSeconds int
	OpenAIAPIKey             string
	OpenAIBaseURL            string
	OpenAIModel              string
}

func Default() Config {
	return Config{
		UploadSeconds:            60,
		SelectTargetSeconds:      10,
		VoteSeconds:              30,
		ResultsSeconds:           30,
		PhotoPollMillis:          1000,
		StaleAfterSeconds:        5,
		IdeasPerRound:            5,
		TopIdeas:                 3,
		RoastLanguage:            "english",
		GenerateTimeoutSeconds:   30,
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           10,
		DBConnMaxLifetimeSeconds: 300,
		DBConnMaxIdleTimeSeconds: 60,
		OpenAIBaseURL:            "https://api.openai.com/v1",
		OpenAIModel:              "gpt-4o-mini",
	}
}

func Load() Config {
	cfg := Default()
	loadInt("UPLOAD_SECONDS", &cfg.UploadSeconds)
	loadInt("SELECT_TARGET_SECONDS", &cfg.SelectTargetSeconds)
	loadInt("VOTE_SECONDS", &cfg.VoteSeconds)
	loadInt("RESULTS_SECONDS", &cfg.ResultsSeconds)
	loadInt("PHOTO_POLL_MILLIS", &cfg.PhotoPollMillis)
	loadInt("STALE_AFTER_SECONDS", &cfg.StaleAfterSeconds)
	loadInt("IDEAS_PER_ROUND", &cfg.IdeasPerRound)
	loadInt("TOP_IDEAS", &cfg.TopIdeas)
	loadInt("GENERATE_TIMEOUT_SECONDS", &cfg.GenerateTimeoutSeconds)
	loadInt("DB_MAX_OPEN_CONNS", &cfg.DBMaxOpenConns)
	loadInt("DB_MAX_IDLE_CONNS", &cfg.DBMaxIdleConns)
	loadInt("DB_CONN_MAX_LIFETIME_SECONDS", &cfg.DBConnMaxLifetimeSeconds)
	loadInt("DB_CONN_MAX_IDLE_SECONDS", &cfg.DBConnMaxIdleTimeSeconds)
	if raw := os.Getenv("ROAST_LANGUAGE"); raw != "" {
		cfg.RoastLanguage = raw
	}
	if raw := os.Getenv("OPENAI_API_KEY"); raw != "" {
		cfg.OpenAIAPIKey = raw
	}
	if raw := os.Getenv("OPENAI_BASE_URL"); raw != "" {
		cfg.OpenAIBaseURL = raw
	}
	if raw := os.Getenv("OPENAI_MODEL"); raw != "" {
		cfg.OpenAIModel = raw
	}
	return cfg
}

func loadInt(key string, dest *int) {
	raw := os.Getenv(key)
	if raw == "" {
		return
	}
	if value, err := strconv.Atoi(raw); err == nil && value > 0 {
		*dest = value
	}
}
