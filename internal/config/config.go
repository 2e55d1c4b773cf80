package config

import (
	"fmt"
	"os"

	"digiucto/internal/logger"
)

type Config struct {
	// Storage Configuration
	DatabasePath string

	// Owner scoping for CLI runs
	OwnerID string

	// Ledger Configuration
	OpenAIAPIKey    string // empty disables the AI suggester
	OpenAIModel     string
	LedgerRulesPath string // empty uses the built-in rule table

	// Export Configuration
	ExportApplication string
	InTransitPairing  bool

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		DatabasePath:      getEnv("DIGIUCTO_DB_PATH", "digiucto.db"),
		OwnerID:           getEnv("DIGIUCTO_OWNER_ID", ""),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:       getEnv("OPENAI_MODEL", ""),
		LedgerRulesPath:   getEnv("DIGIUCTO_LEDGER_RULES", ""),
		ExportApplication: getEnv("DIGIUCTO_EXPORT_APPLICATION", "Digi-Uctenka"),
		InTransitPairing:  getEnv("DIGIUCTO_IN_TRANSIT_PAIRING", "true") != "false",
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:     getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:         getEnv("LOG_OUTPUT", "stderr"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DIGIUCTO_DB_PATH is required")
	}
	if c.OwnerID == "" {
		return fmt.Errorf("DIGIUCTO_OWNER_ID is required")
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
