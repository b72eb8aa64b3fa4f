// Package config provides configuration management functionality.
//
// This package handles loading configuration from environment variables (.env file)
// and updating configuration from the settings database. Settings database values
// take precedence over environment variables.
//
// Configuration Loading Order:
// 1. Load from .env file (if exists)
// 2. Load from environment variables
// 3. Update from settings database (takes precedence)
//
// Data Directory Priority (highest to lowest):
// 1. dataDirOverride argument to Load (if provided)
// 2. TOKENPULSE_DATA_DIR environment variable
// 3. ./data (default)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/aristath/tokenpulse/internal/modules/settings"
	"github.com/joho/godotenv"
)

// Config holds application configuration.
//
// Configuration is loaded from environment variables and can be updated
// from the settings database. Settings database values take precedence.
type Config struct {
	DataDir           string // Base directory for all databases, always absolute
	DexAPIBaseURL     string // Base URL of the DEX pair/liquidity data provider
	DexAPIKey         string // Optional API key for the DEX provider (can be overridden by settings DB)
	LogLevel          string // Log level (debug, info, warn, error)
	LogPretty         bool   // Pretty console logging (dev mode)
	Port              int    // HTTP server port
	SchedulerEnabled  bool   // Master on/off switch for the two-tier scheduler
	NotArbExportPath  string // Destination path for the NotArb export file
	S3ArchiveBucket   string // S3-compatible bucket for the optional snapshot archive sink
	S3ArchiveRegion   string
	CORSAllowOrigins  string // comma-separated list, empty = "*"
}

// Load reads configuration from environment variables.
//
// This function:
// 1. Loads .env file if it exists (via godotenv)
// 2. Reads environment variables with defaults
// 3. Resolves data directory to absolute path
// 4. Creates data directory if it doesn't exist
// 5. Validates configuration
//
// Note: Configuration can be updated later from settings database via UpdateFromSettings().
// Settings database values take precedence over environment variables.
//
// dataDirOverride - Optional override for data directory (takes highest priority)
func Load(dataDirOverride ...string) (*Config, error) {
	// godotenv.Load() returns an error if .env doesn't exist, which is fine
	_ = godotenv.Load()

	var dataDir string
	if len(dataDirOverride) > 0 && dataDirOverride[0] != "" {
		dataDir = dataDirOverride[0]
	} else {
		dataDir = getEnv("TOKENPULSE_DATA_DIR", "")
		if dataDir == "" {
			dataDir = "./data"
		}
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:          absDataDir,
		DexAPIBaseURL:    getEnv("DEX_API_BASE_URL", "https://api.dexscreener.com/latest/dex"),
		DexAPIKey:        getEnv("DEX_API_KEY", ""),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogPretty:        getEnvAsBool("LOG_PRETTY", false),
		Port:             getEnvAsInt("HTTP_PORT", 8080),
		SchedulerEnabled: getEnvAsBool("SCHEDULER_ENABLED", true),
		NotArbExportPath: getEnv("NOTARB_EXPORT_PATH", filepath.Join(absDataDir, "notarb", "tokens.json")),
		S3ArchiveBucket:  getEnv("S3_ARCHIVE_BUCKET", ""),
		S3ArchiveRegion:  getEnv("S3_ARCHIVE_REGION", "auto"),
		CORSAllowOrigins: getEnv("CORS_ALLOW_ORIGINS", "*"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// UpdateFromSettings updates configuration from the settings database.
//
// This should be called after the config database is initialized (in cmd/server/main.go).
// Settings database values take precedence over environment variables; if a
// settings DB value is empty, the environment variable value is kept as fallback.
func (c *Config) UpdateFromSettings(settingsRepo *settings.Repository) error {
	dexAPIKey, err := settingsRepo.Get("dex_api_key")
	if err != nil {
		return fmt.Errorf("failed to get dex_api_key from settings: %w", err)
	}
	if dexAPIKey != nil && *dexAPIKey != "" {
		c.DexAPIKey = *dexAPIKey
	}

	exportPath, err := settingsRepo.Get("notarb_export_path")
	if err != nil {
		return fmt.Errorf("failed to get notarb_export_path from settings: %w", err)
	}
	if exportPath != nil && *exportPath != "" {
		c.NotArbExportPath = *exportPath
	}

	return nil
}

// Validate checks if required configuration is present.
func (c *Config) Validate() error {
	if c.DexAPIBaseURL == "" {
		return fmt.Errorf("DEX_API_BASE_URL must not be empty")
	}
	return nil
}

// ==========================================
// Helper Functions
// ==========================================

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
