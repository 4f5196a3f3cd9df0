package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	AuthModeGoogle = "google"
	AuthModeDev    = "dev"
)

type Config struct {
	Port string
	// LocalDBPath is the sqlite file. ":memory:" keeps everything in RAM.
	LocalDBPath string
	// RemoteDatabaseURL is optional. Empty runs against an in-process remote.
	RemoteDatabaseURL string
	GoogleClientID    string
	AuthMode          string
	WorkerCount       int
	QueueSize         int
	LogLevel          string
	Timezone          string
}

func Load() (Config, error) {
	cfg := Config{
		Port:              getEnv("PORT", "8080"),
		LocalDBPath:       getEnv("LOCAL_DB_PATH", "planner.db"),
		RemoteDatabaseURL: getEnv("REMOTE_DATABASE_URL", ""),
		GoogleClientID:    getEnv("GOOGLE_CLIENT_ID", ""),
		AuthMode:          getEnv("AUTH_MODE", AuthModeGoogle),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		Timezone:          getEnv("TIMEZONE", "Local"),
	}

	var err error
	if cfg.WorkerCount, err = getEnvInt("WORKER_COUNT", 3); err != nil {
		return Config{}, err
	}
	if cfg.QueueSize, err = getEnvInt("QUEUE_SIZE", 64); err != nil {
		return Config{}, err
	}

	switch cfg.AuthMode {
	case AuthModeGoogle:
		if cfg.GoogleClientID == "" {
			return Config{}, fmt.Errorf("GOOGLE_CLIENT_ID is required when AUTH_MODE=%s", AuthModeGoogle)
		}
	case AuthModeDev:
	default:
		return Config{}, fmt.Errorf("unknown AUTH_MODE %q", cfg.AuthMode)
	}
	if cfg.WorkerCount < 1 {
		return Config{}, fmt.Errorf("WORKER_COUNT must be positive, got %d", cfg.WorkerCount)
	}
	return cfg, nil
}

// Location resolves Timezone, used to read form deadlines.
func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
