package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL     string
	ShutdownTimeout int // seconds
	LogLevel        string
	LogFormat       string
	MetricsAddr     string

	TMDBAPIKey      string
	TMDBAccessToken string
	TMDBBaseURL     string
	TMDBTimeout     int // seconds

	SyncJobName          string
	SyncTotalPages       int
	SyncBatchSize        int
	SyncChunkSize        int
	SyncSchedule         string
	SyncRestartCompleted bool

	WorkerConcurrency        int
	WorkerRateLimit          float64 // batch starts per second
	WorkerMaxAttempts        int
	WorkerBackoffInitialMS   int
	WorkerPollInterval       int // seconds
	WorkerLeaseTimeout       int // seconds
	RedisURL                 string
	CacheInvalidationChannel string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error in production)
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	cfg := &Config{
		DatabaseURL:     dbURL,
		ShutdownTimeout: 30,
		LogLevel:        getString("LOG_LEVEL", "info"),
		LogFormat:       getString("LOG_FORMAT", "text"),
		MetricsAddr:     getString("METRICS_ADDR", ":9090"),

		TMDBAPIKey:      os.Getenv("TMDB_API_KEY"),
		TMDBAccessToken: os.Getenv("TMDB_ACCESS_TOKEN"),
		TMDBBaseURL:     getString("TMDB_BASE_URL", "https://api.themoviedb.org"),

		SyncJobName:  getString("SYNC_JOB_NAME", "tmdb-popular"),
		SyncSchedule: getString("SYNC_SCHEDULE", "0 2 * * *"),

		RedisURL:                 os.Getenv("REDIS_URL"),
		CacheInvalidationChannel: getString("CACHE_INVALIDATION_CHANNEL", "movies:invalidate"),
	}

	var err error
	ints := []struct {
		key  string
		def  int
		dest *int
	}{
		{"SHUTDOWN_TIMEOUT", 30, &cfg.ShutdownTimeout},
		{"TMDB_TIMEOUT", 15, &cfg.TMDBTimeout},
		{"SYNC_TOTAL_PAGES", 500, &cfg.SyncTotalPages},
		{"SYNC_BATCH_SIZE", 5, &cfg.SyncBatchSize},
		{"SYNC_CHUNK_SIZE", 50, &cfg.SyncChunkSize},
		{"WORKER_CONCURRENCY", 3, &cfg.WorkerConcurrency},
		{"WORKER_MAX_ATTEMPTS", 3, &cfg.WorkerMaxAttempts},
		{"WORKER_BACKOFF_INITIAL_MS", 1000, &cfg.WorkerBackoffInitialMS},
		{"WORKER_POLL_INTERVAL", 2, &cfg.WorkerPollInterval},
		{"WORKER_LEASE_TIMEOUT", 900, &cfg.WorkerLeaseTimeout},
	}
	for _, v := range ints {
		if *v.dest, err = getPositiveInt(v.key, v.def); err != nil {
			return nil, err
		}
	}

	if cfg.WorkerRateLimit, err = getPositiveFloat("WORKER_RATE_LIMIT", 10); err != nil {
		return nil, err
	}
	if cfg.SyncRestartCompleted, err = getBool("SYNC_RESTART_COMPLETED", true); err != nil {
		return nil, err
	}

	if cfg.TMDBAPIKey == "" && cfg.TMDBAccessToken == "" {
		fmt.Println("Warning: TMDB_API_KEY or TMDB_ACCESS_TOKEN not set, catalog sync will not work")
	}

	return cfg, nil
}

func getString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getPositiveInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, raw)
	}
	return v, nil
}

func getPositiveFloat(key string, def float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%s must be a positive number, got %q", key, raw)
	}
	return v, nil
}

func getBool(key string, def bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", key, raw)
	}
	return v, nil
}
