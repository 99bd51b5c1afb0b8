package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// LoadDotEnv loads the given files, or ".env" when none are given, into the
// process environment. Variables already set win. Missing files are skipped.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				slog.Debug("No env file found", "file", f)
				continue
			}
			slog.Warn("Failed to load env file", "file", f, "error", err)
			continue
		}
		slog.Info("Loaded env file", "file", f)
	}
}

// Read fills cfg from environment variables using its cleanenv tags.
func Read(cfg interface{}) error {
	return cleanenv.ReadEnv(cfg)
}

// GetEnvOrDefault retrieves an environment variable or returns a default value
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvInt retrieves an environment variable as an integer
// Returns the default value if not set or invalid
func GetEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// GetEnvBool retrieves an environment variable as a boolean
// Returns the default value if not set or invalid
func GetEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return defaultValue
}

// GetEnvDuration retrieves an environment variable as a time.Duration
// Supports Go duration strings (e.g., "5m", "1h30m", "24h")
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// GetEnvSlice retrieves a comma-separated environment variable as a slice of strings
// Empty values are filtered out, and each value is trimmed
func GetEnvSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := SplitAndTrim(value, ",")
	if len(parts) == 0 {
		return defaultValue
	}
	return parts
}

// SplitAndTrim splits s by sep, trims each part and drops empty ones.
func SplitAndTrim(s, sep string) []string {
	var parts []string
	for _, part := range strings.Split(s, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
