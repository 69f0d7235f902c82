package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/vipul43/tmdb-sync-worker/internal/cache"
	"github.com/vipul43/tmdb-sync-worker/internal/config"
	"github.com/vipul43/tmdb-sync-worker/internal/database"
	"github.com/vipul43/tmdb-sync-worker/internal/metrics"
	"github.com/vipul43/tmdb-sync-worker/internal/repository"
	"github.com/vipul43/tmdb-sync-worker/internal/service"
	"github.com/vipul43/tmdb-sync-worker/internal/tmdb"
	"github.com/vipul43/tmdb-sync-worker/internal/watcher"
)

// app wires the repositories, clients and processors shared by every command
type app struct {
	cfg         *config.Config
	db          *gorm.DB
	redisClient *redis.Client

	jobs      *repository.SyncJobRepository
	errorLogs *repository.SyncErrorLogRepository
	movies    *repository.MovieRepository
	tasks     *repository.BatchTaskRepository

	recorder  *metrics.PrometheusRecorder
	processor *service.SyncProcessor
	watcher   *watcher.Watcher
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	log.Info("Database connected successfully")

	a := &app{
		cfg:       cfg,
		db:        db,
		jobs:      repository.NewSyncJobRepository(db),
		errorLogs: repository.NewSyncErrorLogRepository(db),
		movies:    repository.NewMovieRepository(db),
		tasks:     repository.NewBatchTaskRepository(db),
		recorder:  metrics.NewPrometheusRecorder(),
	}

	var invalidator service.CacheInvalidator = cache.NoopInvalidator{}
	if cfg.RedisURL != "" {
		client, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			a.close()
			return nil, err
		}
		a.redisClient = client
		invalidator = cache.NewRedisInvalidator(client, cfg.CacheInvalidationChannel)
		log.Info("Redis connected successfully")
	}

	opts := []tmdb.Option{
		tmdb.WithBaseURL(cfg.TMDBBaseURL),
		tmdb.WithTimeout(time.Duration(cfg.TMDBTimeout) * time.Second),
	}
	if cfg.TMDBAccessToken != "" {
		opts = append(opts, tmdb.WithAccessToken(cfg.TMDBAccessToken))
	}
	catalog := tmdb.NewClient(cfg.TMDBAPIKey, opts...)

	a.processor = service.NewSyncProcessor(
		service.SyncConfig{
			TotalPages:       cfg.SyncTotalPages,
			BatchSize:        cfg.SyncBatchSize,
			ChunkSize:        cfg.SyncChunkSize,
			RestartCompleted: cfg.SyncRestartCompleted,
		},
		catalog,
		a.jobs,
		a.errorLogs,
		a.movies,
		repository.NewGenreRepository(db),
		a.tasks,
		invalidator,
		a.recorder,
	)
	a.watcher = watcher.New(cfg, a.tasks, a.processor, a.recorder)

	return a, nil
}

func (a *app) close() {
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			log.WithError(err).Warn("Failed to close redis client")
		}
	}
	if err := database.Close(a.db); err != nil {
		log.WithError(err).Warn("Failed to close database")
	}
}
