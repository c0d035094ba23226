package config

import (
	"fmt"
	"os"
	"slices"

	"library-catalog/logger"
)

const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"

	OutputText = "text"
	OutputJSON = "json"
)

// Config holds all configuration for the library shell
type Config struct {
	ServiceName string
	Store       string
	LogLevel    string
	Output      string
	Seed        string
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		ServiceName: getEnv("LIBRARY_SERVICE_NAME", "library"),
		Store:       getEnv("LIBRARY_STORE", StoreMemory),
		LogLevel:    getEnv("LIBRARY_LOG_LEVEL", "warn"),
		Output:      getEnv("LIBRARY_OUTPUT", OutputText),
		Seed:        getEnv("LIBRARY_SEED", ""),
	}
}

// Validate rejects values the shell cannot act on.
func (c *Config) Validate() error {
	if c.Store != StoreMemory && c.Store != StoreSQLite {
		return fmt.Errorf("unknown store %q (want %s or %s)", c.Store, StoreMemory, StoreSQLite)
	}
	if c.Output != OutputText && c.Output != OutputJSON {
		return fmt.Errorf("unknown output %q (want %s or %s)", c.Output, OutputText, OutputJSON)
	}
	if !slices.Contains(logger.Levels, c.LogLevel) {
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
