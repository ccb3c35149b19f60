// Package cli consolidates the initialization shared by the binaries
// under cmd/.
package cli

import (
	"os"

	"github.com/joho/godotenv"

	"finsight/internal/config"
	"finsight/internal/log"
	"finsight/internal/storage"
)

// SetupLogger initializes a component logger honoring LOG_LEVEL and
// installs it as the process default, so packages using slog directly
// inherit the handler.
func SetupLogger(component string) *log.Logger {
	logger := log.New(component, log.ParseLevel(os.Getenv("LOG_LEVEL")))
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development. Errors are
// ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it, exiting the
// process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// InitSQLite opens the SQLite repository, exiting the process on failure.
func InitSQLite(logger *log.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", dbPath)
		os.Exit(1)
	}
	return repo
}
