package config

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	DBDriver      string
	DBDSN         string
	ServerPort    string
	SessionSecret string
	LogLevel      string

	// PartialCoveragePolicy: как трактовать as-is контроль со статусом partial:
	// missing | weak_operation | covered.
	PartialCoveragePolicy string
	CatalogSeed           string

	AdminUsername string
	AdminPassword string
	SeedDemoUsers bool
}

func Load() *Config {
	_ = godotenv.Load()

	cfg, err := Parse(os.Getenv)
	if err != nil {
		log.Fatal(err)
	}
	return cfg
}

// Parse читает настройки через getenv, чтобы тесты не трогали окружение процесса.
func Parse(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		DBDriver:              getenv("DB_DRIVER"),
		DBDSN:                 getenv("DB_DSN"),
		ServerPort:            getenv("SERVER_PORT"),
		SessionSecret:         getenv("SESSION_SECRET"),
		LogLevel:              getenv("LOG_LEVEL"),
		PartialCoveragePolicy: getenv("PARTIAL_COVERAGE_POLICY"),
		CatalogSeed:           getenv("CATALOG_SEED"),
		AdminUsername:         getenv("ADMIN_USERNAME"),
		AdminPassword:         getenv("ADMIN_PASSWORD"),
		SeedDemoUsers:         getenv("SEED_DEMO_USERS") == "true",
	}

	if cfg.DBDriver == "" {
		cfg.DBDriver = "postgres"
	}
	if cfg.DBDriver != "postgres" && cfg.DBDriver != "sqlite" {
		return nil, fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", cfg.DBDriver)
	}
	if cfg.DBDSN == "" {
		return nil, errors.New("DB_DSN is not set")
	}
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	if cfg.SessionSecret == "" {
		return nil, errors.New("SESSION_SECRET is not set")
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.PartialCoveragePolicy == "" {
		cfg.PartialCoveragePolicy = "missing"
	}
	if cfg.AdminUsername == "" {
		cfg.AdminUsername = "admin@controls.local"
	}

	return cfg, nil
}
