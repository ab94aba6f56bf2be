package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"sprint-history/internal/devops"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// AppConfig holds the complete application configuration.
type AppConfig struct {
	DevOps              devops.Config
	DataPath            string
	LogDir              string
	CacheDir            string
	SettingsDir         string
	ChartDir            string
	CacheTTL            time.Duration
	FetchConcurrency    int
	EnableMermaidCharts bool

	// Location used to bucket change events into calendar days.
	Location *time.Location
}

// Load loads the configuration from .env files and environment variables.
func Load() (*AppConfig, error) {
	// 1. Try to load from the executable's directory (highest priority for MCP servers)
	exePath, err := os.Executable()
	exeDir := ""
	if err == nil {
		exeDir = filepath.Dir(exePath)
		envPath := filepath.Join(exeDir, ".env")
		if err := godotenv.Load(envPath); err == nil {
			log.Debug().Str("path", envPath).Msg("Loaded configuration from binary directory")
		}
	}

	// 2. Fallback to current working directory (useful for development/go run)
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found in working directory, relying on environment variables or binary-relative .env")
	}

	if exeDir == "" {
		exeDir = "."
	}
	cfg, err := FromEnv(exeDir)
	if err != nil {
		return nil, err
	}

	// Ensure directories exist
	for _, dir := range []string{cfg.LogDir, cfg.CacheDir, cfg.SettingsDir, cfg.ChartDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Warn().Err(err).Str("path", dir).Msg("Failed to create data directory")
		}
	}

	return cfg, nil
}

// FromEnv builds the configuration from the process environment. Data
// directories default to defaultDataPath when DATA_PATH is unset.
func FromEnv(defaultDataPath string) (*AppConfig, error) {
	dataPath := getEnv("DATA_PATH", defaultDataPath)

	loc := time.UTC
	if tz := getEnv("TIMEZONE", ""); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("invalid TIMEZONE %q: %w", tz, err)
		}
		loc = l
	}

	cfg := &AppConfig{
		DevOps: devops.Config{
			OrganizationURL: getEnv("ADO_ORG_URL", ""),
			Project:         getEnv("ADO_PROJECT", ""),
			Token:           getEnv("ADO_TOKEN", ""),
			RequestDelay:    time.Duration(getEnvInt("ADO_REQUEST_DELAY_MS", 100)) * time.Millisecond,
		},
		DataPath:            dataPath,
		LogDir:              filepath.Join(dataPath, "logs"),
		CacheDir:            filepath.Join(dataPath, "cache"),
		SettingsDir:         filepath.Join(dataPath, "settings"),
		ChartDir:            filepath.Join(dataPath, "charts"),
		CacheTTL:            time.Duration(getEnvInt("CACHE_TTL_MINUTES", 15)) * time.Minute,
		FetchConcurrency:    max(getEnvInt("FETCH_CONCURRENCY", 4), 1),
		EnableMermaidCharts: getEnvBool("ENABLE_MERMAID_CHARTS", false),
		Location:            loc,
	}

	return cfg, nil
}

// Validate reports missing connection settings.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.DevOps.OrganizationURL == "" {
		errs = append(errs, errors.New("ADO_ORG_URL is not set"))
	}
	if c.DevOps.Project == "" {
		errs = append(errs, errors.New("ADO_PROJECT is not set"))
	}
	if c.DevOps.Token == "" {
		errs = append(errs, errors.New("ADO_TOKEN is not set"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil && n >= 0 {
			return n
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Ignoring invalid integer setting")
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}
