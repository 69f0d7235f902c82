package service

import (
	"context"
	"time"

	"github.com/vipul43/tmdb-sync-worker/internal/models"
)

const (
	OutcomeCommitted = "committed"
	OutcomeFailed    = "failed"
)

// Cache scopes invalidated after every committed batch
const (
	ScopeMovieList   = "movies:list"
	ScopeMovieDetail = "movies"
)

// Recorder receives pipeline measurements
type Recorder interface {
	BatchFinished(outcome string, elapsed time.Duration)
	BatchRetried()
	PagesFetched(n int)
	ItemsUpserted(n int)
	SyncError(errType models.ErrorType)
	Checkpoint(jobName string, page int)
}

// NopRecorder discards every measurement
type NopRecorder struct{}

func (NopRecorder) BatchFinished(string, time.Duration) {}
func (NopRecorder) BatchRetried()                       {}
func (NopRecorder) PagesFetched(int)                    {}
func (NopRecorder) ItemsUpserted(int)                   {}
func (NopRecorder) SyncError(models.ErrorType)          {}
func (NopRecorder) Checkpoint(string, int)              {}

// CacheInvalidator signals the read path that cached views are stale
type CacheInvalidator interface {
	Invalidate(ctx context.Context, scopes ...string) error
}

type nopInvalidator struct{}

func (nopInvalidator) Invalidate(context.Context, ...string) error { return nil }
