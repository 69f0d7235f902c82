package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vipul43/tmdb-sync-worker/internal/models"
)

// SyncJobStore persists the checkpoint row of each named job
type SyncJobStore interface {
	LoadOrCreate(ctx context.Context, name string) (*models.SyncJob, error)
	GetByID(ctx context.Context, id uint) (*models.SyncJob, error)
	StartRun(ctx context.Context, id uint, runID string, resetCheckpoint bool) error
	Advance(ctx context.Context, id uint, page int) error
	MarkFailed(ctx context.Context, id uint, errType models.ErrorType, message string, code *int) error
	MarkCompleted(ctx context.Context, id uint) error
}

// ErrorLogStore appends failed batch records
type ErrorLogStore interface {
	Create(ctx context.Context, entry *models.SyncErrorLog) error
}

// MovieStore writes movie chunks and their genre links in one transaction
type MovieStore interface {
	UpsertChunk(ctx context.Context, movies []models.Movie, reportedGenres map[int][]int) error
}

// GenreStore upserts the genre catalog
type GenreStore interface {
	UpsertMany(ctx context.Context, genres []models.Genre) error
}

// TaskQueue is the producer side of the batch queue plus the run bookkeeping
// the processor needs to settle checkpoints
type TaskQueue interface {
	Enqueue(ctx context.Context, jobID uint, runID string, batches []models.BatchDescriptor) ([]models.SyncBatchTask, error)
	CancelStale(ctx context.Context, jobID uint, runID string) (int64, error)
	MarkCompleted(ctx context.Context, id string) error
	CommittedRanges(ctx context.Context, jobID uint, runID string) ([]models.PageRange, error)
	RunSummary(ctx context.Context, runID string) (models.RunSummary, error)
	LastFailure(ctx context.Context, runID string) (*models.SyncBatchTask, error)
}

// SyncConfig bounds a run: page ceiling, pages per batch and items per transaction
type SyncConfig struct {
	TotalPages       int
	BatchSize        int
	ChunkSize        int
	RestartCompleted bool
}

// StartResult describes the run a StartSync call began
type StartResult struct {
	JobID     uint
	RunID     string
	StartPage int
	Batches   []models.BatchDescriptor
	Completed bool // nothing left to sync, job marked COMPLETED
}

type SyncProcessor struct {
	cfg       SyncConfig
	catalog   CatalogClient
	jobs      SyncJobStore
	errorLogs ErrorLogStore
	movies    MovieStore
	genres    GenreStore
	tasks     TaskQueue
	cache     CacheInvalidator
	recorder  Recorder

	// serializes checkpoint folding and run settlement
	checkpointMu sync.Mutex
}

func NewSyncProcessor(
	cfg SyncConfig,
	catalog CatalogClient,
	jobs SyncJobStore,
	errorLogs ErrorLogStore,
	movies MovieStore,
	genres GenreStore,
	tasks TaskQueue,
	cache CacheInvalidator,
	recorder Recorder,
) *SyncProcessor {
	if cache == nil {
		cache = nopInvalidator{}
	}
	if recorder == nil {
		recorder = NopRecorder{}
	}
	if cfg.ChunkSize < 1 {
		cfg.ChunkSize = 50
	}
	return &SyncProcessor{
		cfg:       cfg,
		catalog:   catalog,
		jobs:      jobs,
		errorLogs: errorLogs,
		movies:    movies,
		genres:    genres,
		tasks:     tasks,
		cache:     cache,
		recorder:  recorder,
	}
}

// StartSync begins or resumes the named job: it opens a new run, syncs genres
// best-effort and enqueues every batch after the checkpoint. It returns once
// the batches are queued.
func (p *SyncProcessor) StartSync(ctx context.Context, jobName string) (*StartResult, error) {
	job, err := p.jobs.LoadOrCreate(ctx, jobName)
	if err != nil {
		return nil, fmt.Errorf("failed to load sync job: %w", err)
	}

	reset := p.cfg.RestartCompleted &&
		job.Status == models.SyncStatusCompleted &&
		job.LastPageSynced >= p.cfg.TotalPages

	runID := uuid.New().String()
	if err := p.jobs.StartRun(ctx, job.ID, runID, reset); err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}

	logger := log.WithFields(log.Fields{"job": jobName, "run_id": runID})

	cancelled, err := p.tasks.CancelStale(ctx, job.ID, runID)
	if err != nil {
		return nil, err
	}
	if cancelled > 0 {
		logger.WithField("cancelled", cancelled).Info("Cancelled pending batches of previous run")
	}

	startPage := job.LastPageSynced + 1
	if reset {
		startPage = 1
		logger.Info("Previous pass completed, restarting from page 1")
	}
	logger.WithFields(log.Fields{"status": job.Status, "start_page": startPage}).Info("Starting sync run")

	if err := p.SyncGenres(ctx); err != nil {
		logger.WithError(err).Warn("Genre sync failed, continuing with movie sync")
	}

	result := &StartResult{JobID: job.ID, RunID: runID, StartPage: startPage}

	batches := Partition(job.ID, startPage, p.cfg.TotalPages, p.cfg.BatchSize)
	if len(batches) == 0 {
		if err := p.jobs.MarkCompleted(ctx, job.ID); err != nil {
			return nil, err
		}
		result.Completed = true
		logger.Info("Nothing left to sync, job completed")
		return result, nil
	}

	tasks, err := p.tasks.Enqueue(ctx, job.ID, runID, batches)
	if err != nil {
		return nil, err
	}

	result.Batches = make([]models.BatchDescriptor, 0, len(tasks))
	for _, task := range tasks {
		result.Batches = append(result.Batches, task.Descriptor())
	}

	logger.WithField("batches", len(tasks)).Info("Enqueued batches")
	return result, nil
}

// SyncGenres refreshes the genre taxonomy
func (p *SyncProcessor) SyncGenres(ctx context.Context) error {
	categories, err := p.catalog.FetchCategories(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch genres: %w", err)
	}

	genres := make([]models.Genre, 0, len(categories))
	for _, c := range categories {
		genres = append(genres, models.Genre{TMDBID: c.ExternalID, Name: c.Name})
	}

	if err := p.genres.UpsertMany(ctx, genres); err != nil {
		return err
	}

	log.WithField("genres", len(genres)).Info("Synced genres")
	return nil
}

// ProcessBatch fetches, upserts and commits one batch. On failure one error
// log row is written, the job is marked FAILED unless the batch belongs to a
// superseded run, and the error is returned so
// the caller can retry the whole batch. A batch interrupted by ctx is not
// recorded as a failure.
func (p *SyncProcessor) ProcessBatch(ctx context.Context, batch models.BatchDescriptor) error {
	started := time.Now()
	logger := log.WithFields(log.Fields{
		"job_id":      batch.JobID,
		"run_id":      batch.RunID,
		"batch_start": batch.BatchStart,
		"batch_end":   batch.BatchEnd,
	})
	logger.Info("Processing batch")

	if err := p.processBatch(ctx, batch, logger); err != nil {
		if ctx.Err() != nil {
			logger.WithError(err).Warn("Batch interrupted")
			return fmt.Errorf("batch %s interrupted: %w", batch, err)
		}
		p.recorder.BatchFinished(OutcomeFailed, time.Since(started))
		p.recordFailure(ctx, batch, err, logger)
		return fmt.Errorf("batch %s failed: %w", batch, err)
	}

	p.recorder.BatchFinished(OutcomeCommitted, time.Since(started))
	return nil
}

func (p *SyncProcessor) processBatch(ctx context.Context, batch models.BatchDescriptor, logger *log.Entry) error {
	if batch.BatchStart < 1 || batch.Pages() == 0 {
		return fmt.Errorf("invalid batch range %s", batch)
	}

	items, err := p.fetchPages(ctx, batch)
	if err != nil {
		return err
	}

	movies, reported := toMovies(dedupeItems(items))
	for start := 0; start < len(movies); start += p.cfg.ChunkSize {
		end := min(start+p.cfg.ChunkSize, len(movies))
		chunk := movies[start:end]

		chunkGenres := make(map[int][]int)
		for _, m := range chunk {
			if ids, ok := reported[m.TMDBID]; ok {
				chunkGenres[m.TMDBID] = ids
			}
		}

		if err := p.movies.UpsertChunk(ctx, chunk, chunkGenres); err != nil {
			return fmt.Errorf("failed to upsert movies %d-%d of batch: %w", start, end-1, err)
		}
	}
	p.recorder.ItemsUpserted(len(movies))

	checkpoint, err := p.commitCheckpoint(ctx, batch, logger)
	if err != nil {
		return err
	}

	if err := p.cache.Invalidate(ctx, ScopeMovieList, ScopeMovieDetail); err != nil {
		logger.WithError(err).Warn("Cache invalidation failed")
	}

	logger.WithFields(log.Fields{"movies": len(movies), "checkpoint": checkpoint}).Info("Completed batch")
	return nil
}

// fetchPages fetches every page of the batch concurrently and returns the
// items in page order
func (p *SyncProcessor) fetchPages(ctx context.Context, batch models.BatchDescriptor) ([]CatalogItem, error) {
	pages := make([][]CatalogItem, batch.Pages())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batch.Pages())
	for page := batch.BatchStart; page <= batch.BatchEnd; page++ {
		g.Go(func() error {
			items, err := p.catalog.FetchPage(gctx, page)
			if err != nil {
				return fmt.Errorf("failed to fetch page %d: %w", page, err)
			}
			pages[page-batch.BatchStart] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	p.recorder.PagesFetched(batch.Pages())

	var items []CatalogItem
	for _, pageItems := range pages {
		items = append(items, pageItems...)
	}
	return items, nil
}

// dedupeItems keeps one entry per external id; later pages win
func dedupeItems(items []CatalogItem) []CatalogItem {
	index := make(map[int]int, len(items))
	out := make([]CatalogItem, 0, len(items))
	for _, item := range items {
		if i, ok := index[item.ExternalID]; ok {
			out[i] = item
			continue
		}
		index[item.ExternalID] = len(out)
		out = append(out, item)
	}
	return out
}

func toMovies(items []CatalogItem) ([]models.Movie, map[int][]int) {
	movies := make([]models.Movie, 0, len(items))
	reported := make(map[int][]int)
	for _, item := range items {
		movies = append(movies, models.Movie{
			TMDBID:      item.ExternalID,
			Title:       item.Title,
			Overview:    item.Description,
			PosterPath:  item.ImagePath,
			ReleaseDate: item.ReleaseDate,
		})
		if item.CategoryIDs != nil {
			reported[item.ExternalID] = item.CategoryIDs
		}
	}
	return movies, reported
}

// commitCheckpoint marks the batch committed and advances the job to the
// highest contiguous committed page of its run
func (p *SyncProcessor) commitCheckpoint(ctx context.Context, batch models.BatchDescriptor, logger *log.Entry) (int, error) {
	p.checkpointMu.Lock()
	defer p.checkpointMu.Unlock()

	if batch.TaskID != "" {
		if err := p.tasks.MarkCompleted(ctx, batch.TaskID); err != nil {
			return 0, err
		}
	}

	job, err := p.jobs.GetByID(ctx, batch.JobID)
	if err != nil {
		return 0, fmt.Errorf("failed to load sync job: %w", err)
	}

	if batch.RunID != "" && batch.RunID != job.RunID() {
		logger.Warn("Batch belongs to a superseded run, checkpoint unchanged")
		return job.LastPageSynced, nil
	}

	ranges := []models.PageRange{{Start: batch.BatchStart, End: batch.BatchEnd}}
	if batch.RunID != "" {
		committed, err := p.tasks.CommittedRanges(ctx, job.ID, batch.RunID)
		if err != nil {
			return 0, err
		}
		ranges = append(ranges, committed...)
	}

	watermark := ContiguousWatermark(job.LastPageSynced, ranges)
	if err := p.jobs.Advance(ctx, job.ID, watermark); err != nil {
		return 0, fmt.Errorf("failed to advance checkpoint: %w", err)
	}
	p.recorder.Checkpoint(job.JobName, watermark)

	if watermark < batch.BatchEnd {
		logger.WithField("checkpoint", watermark).Debug("Batch committed ahead of an earlier batch")
	}
	return watermark, nil
}

func (p *SyncProcessor) recordFailure(ctx context.Context, batch models.BatchDescriptor, err error, logger *log.Entry) {
	errType, code := ClassifyError(err)
	p.recorder.SyncError(errType)

	fields := log.Fields{"error_type": errType}
	if code != nil {
		fields["code"] = *code
	}
	logger.WithFields(fields).WithError(err).Error("Batch failed")

	message := err.Error()
	if p.isCurrentRun(ctx, batch, logger) {
		if mErr := p.jobs.MarkFailed(ctx, batch.JobID, errType, message, code); mErr != nil {
			logger.WithError(mErr).Error("Failed to mark job failed")
		}
	} else {
		logger.Warn("Batch belongs to a superseded run, job status unchanged")
	}

	entry := &models.SyncErrorLog{
		SyncJobID: batch.JobID,
		Page:      batch.BatchStart,
		ErrorType: errType,
		Message:   message,
		Code:      code,
	}
	if lErr := p.errorLogs.Create(ctx, entry); lErr != nil {
		logger.WithError(lErr).Error("Failed to write sync error log")
	}
}

// isCurrentRun reports whether the batch may still change the job status.
// Batches processed outside a run always may.
func (p *SyncProcessor) isCurrentRun(ctx context.Context, batch models.BatchDescriptor, logger *log.Entry) bool {
	if batch.RunID == "" {
		return true
	}

	p.checkpointMu.Lock()
	defer p.checkpointMu.Unlock()

	job, err := p.jobs.GetByID(ctx, batch.JobID)
	if err != nil {
		logger.WithError(err).Warn("Failed to load sync job for failure bookkeeping")
		return true
	}
	return job.RunID() == batch.RunID
}

// SettleRun finishes a run once none of its batches are queued or in flight:
// COMPLETED when all committed, otherwise FAILED with the diagnostics of the
// last failed batch. Superseded runs are ignored.
func (p *SyncProcessor) SettleRun(ctx context.Context, jobID uint, runID string) error {
	p.checkpointMu.Lock()
	defer p.checkpointMu.Unlock()

	job, err := p.jobs.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load sync job: %w", err)
	}
	if job.RunID() != runID {
		return nil
	}

	summary, err := p.tasks.RunSummary(ctx, runID)
	if err != nil {
		return err
	}
	if summary.Outstanding() > 0 {
		return nil
	}

	logger := log.WithFields(log.Fields{
		"job":        job.JobName,
		"run_id":     runID,
		"completed":  summary.Completed,
		"failed":     summary.Failed,
		"checkpoint": job.LastPageSynced,
	})

	if summary.Failed > 0 {
		failure, err := p.tasks.LastFailure(ctx, runID)
		if err != nil {
			return err
		}

		errType := models.ErrorTypeUnknown
		message := "batch failed"
		var code *int
		if failure != nil {
			if failure.LastErrorType != nil {
				errType = *failure.LastErrorType
			}
			if failure.LastErrorMessage != nil {
				message = *failure.LastErrorMessage
			}
			code = failure.LastErrorCode
		}

		if err := p.jobs.MarkFailed(ctx, job.ID, errType, message, code); err != nil {
			return err
		}
		logger.Warn("Sync run finished with failed batches")
		return nil
	}

	if err := p.jobs.MarkCompleted(ctx, job.ID); err != nil {
		return err
	}
	logger.Info("Sync run completed")
	return nil
}
