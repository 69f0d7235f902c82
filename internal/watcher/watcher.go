package watcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/vipul43/tmdb-sync-worker/internal/config"
	"github.com/vipul43/tmdb-sync-worker/internal/models"
	"github.com/vipul43/tmdb-sync-worker/internal/service"
)

// TaskStore is the consumer side of the batch queue
type TaskStore interface {
	ClaimNext(ctx context.Context, leaseTimeout time.Duration) (*models.SyncBatchTask, error)
	RecordAttempt(ctx context.Context, id string) error
	Release(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, errType models.ErrorType, message string, code *int) error
	CountClaimable(ctx context.Context, leaseTimeout time.Duration) (int64, error)
}

// BatchProcessor interface for dependency injection
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, batch models.BatchDescriptor) error
	SettleRun(ctx context.Context, jobID uint, runID string) error
}

type Watcher struct {
	cfg       *config.Config
	tasks     TaskStore
	processor BatchProcessor
	recorder  service.Recorder
	limiter   *rate.Limiter
}

func New(
	cfg *config.Config,
	tasks TaskStore,
	processor BatchProcessor,
	recorder service.Recorder,
) *Watcher {
	if recorder == nil {
		recorder = service.NopRecorder{}
	}
	return &Watcher{
		cfg:       cfg,
		tasks:     tasks,
		processor: processor,
		recorder:  recorder,
		limiter:   rate.NewLimiter(rate.Limit(cfg.WorkerRateLimit), max(1, cfg.WorkerConcurrency)),
	}
}

// Start runs the worker pool until ctx is cancelled. Idle workers poll the
// queue every WorkerPollInterval seconds.
func (w *Watcher) Start(ctx context.Context) error {
	log.WithFields(log.Fields{
		"workers":    w.cfg.WorkerConcurrency,
		"rate_limit": w.cfg.WorkerRateLimit,
	}).Info("Starting watcher for batch tasks...")

	var wg sync.WaitGroup
	for i := 0; i < w.cfg.WorkerConcurrency; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			w.poll(ctx, worker)
		}(i + 1)
	}
	wg.Wait()

	log.Info("Watcher shutting down...")
	return ctx.Err()
}

// Drain processes queued batches until no task is claimable and returns the
// batches that failed permanently
func (w *Watcher) Drain(ctx context.Context) error {
	var (
		mu     sync.Mutex
		result *multierror.Error
		wg     sync.WaitGroup
	)
	collect := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		result = multierror.Append(result, err)
	}

	for i := 0; i < w.cfg.WorkerConcurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				task, err := w.claim(ctx)
				if err != nil {
					collect(err)
					return
				}
				if task == nil {
					// A claim lost to a concurrent worker also returns nil
					remaining, err := w.tasks.CountClaimable(ctx, w.leaseTimeout())
					if err != nil {
						collect(err)
						return
					}
					if remaining == 0 {
						return
					}
					continue
				}
				if err := w.handle(ctx, task); err != nil {
					collect(err)
				}
			}
		}()
	}
	wg.Wait()

	return result.ErrorOrNil()
}

func (w *Watcher) poll(ctx context.Context, worker int) {
	ticker := time.NewTicker(time.Duration(w.cfg.WorkerPollInterval) * time.Second)
	defer ticker.Stop()

	for {
		// Work through the queue before going idle
		for {
			task, err := w.claim(ctx)
			if err != nil {
				if ctx.Err() == nil {
					log.WithField("worker", worker).WithError(err).Error("Error claiming batch task")
				}
				break
			}
			if task == nil {
				break
			}
			if err := w.handle(ctx, task); err != nil {
				log.WithField("worker", worker).Errorf("Failed to process batch task %s: %v", task.ID, err)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Watcher) claim(ctx context.Context) (*models.SyncBatchTask, error) {
	if err := w.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return w.tasks.ClaimNext(ctx, w.leaseTimeout())
}

func (w *Watcher) leaseTimeout() time.Duration {
	return time.Duration(w.cfg.WorkerLeaseTimeout) * time.Second
}

// handle runs one task with exponential backoff between attempts, records a
// permanent failure and settles the run. It returns an error only when the
// batch failed permanently.
func (w *Watcher) handle(ctx context.Context, task *models.SyncBatchTask) error {
	batch := task.Descriptor()
	logger := log.WithFields(log.Fields{
		"task_id":     task.ID,
		"run_id":      task.RunID,
		"batch_start": task.BatchStart,
		"batch_end":   task.BatchEnd,
	})

	if task.Attempts > 0 {
		logger.WithField("attempts", task.Attempts).Info("Resuming batch task")
	}

	tries := max(w.cfg.WorkerMaxAttempts-task.Attempts, 1)
	attempt := task.Attempts

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = time.Duration(w.cfg.WorkerBackoffInitialMS) * time.Millisecond
	expBackoff.Multiplier = 2
	expBackoff.RandomizationFactor = 0

	operation := func() (struct{}, error) {
		attempt++
		if err := w.tasks.RecordAttempt(ctx, task.ID); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, w.processor.ProcessBatch(ctx, batch)
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(uint(tries)),
		backoff.WithNotify(func(err error, next time.Duration) {
			w.recorder.BatchRetried()
			logger.WithFields(log.Fields{"attempt": attempt, "retry_in": next}).Warn("Batch attempt failed, retrying")
		}),
	)

	// bookkeeping below must land even while shutting down
	bgCtx := context.WithoutCancel(ctx)

	if err != nil && ctx.Err() != nil {
		if rErr := w.tasks.Release(bgCtx, task.ID); rErr != nil {
			logger.WithError(rErr).Error("Failed to release batch task")
		}
		logger.Info("Shutdown during batch, task returned to queue")
		return nil
	}

	var failure error
	if err != nil {
		errType, code := service.ClassifyError(err)
		if mErr := w.tasks.MarkFailed(bgCtx, task.ID, errType, err.Error(), code); mErr != nil {
			logger.WithError(mErr).Error("Failed to mark batch task failed")
		}
		logger.WithField("attempts", attempt).WithError(err).Error("Batch failed permanently")
		failure = fmt.Errorf("batch %s: %w", batch, err)
	}

	if sErr := w.processor.SettleRun(bgCtx, task.SyncJobID, task.RunID); sErr != nil {
		logger.WithError(sErr).Error("Failed to settle run")
	}

	return failure
}
