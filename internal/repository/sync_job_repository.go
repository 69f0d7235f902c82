package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vipul43/tmdb-sync-worker/internal/models"
)

var ErrSyncJobNotFound = errors.New("sync job not found")

type SyncJobRepository struct {
	db *gorm.DB
}

func NewSyncJobRepository(db *gorm.DB) *SyncJobRepository {
	return &SyncJobRepository{db: db}
}

// LoadOrCreate returns the job row for name, inserting a PENDING row first if none exists
func (r *SyncJobRepository) LoadOrCreate(ctx context.Context, name string) (*models.SyncJob, error) {
	job := models.SyncJob{
		JobName: name,
		Status:  models.SyncStatusPending,
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "job_name"}},
			DoNothing: true,
		}).
		Create(&job)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to create sync job: %w", result.Error)
	}

	return r.GetByName(ctx, name)
}

// GetByID retrieves a job by primary key
func (r *SyncJobRepository) GetByID(ctx context.Context, id uint) (*models.SyncJob, error) {
	var job models.SyncJob
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&job)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrSyncJobNotFound
		}
		return nil, fmt.Errorf("failed to query sync job: %w", result.Error)
	}
	return &job, nil
}

// GetByName retrieves a job by its unique name
func (r *SyncJobRepository) GetByName(ctx context.Context, name string) (*models.SyncJob, error) {
	var job models.SyncJob
	result := r.db.WithContext(ctx).Where("job_name = ?", name).First(&job)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrSyncJobNotFound
		}
		return nil, fmt.Errorf("failed to query sync job: %w", result.Error)
	}
	return &job, nil
}

// StartRun moves the job to IN_PROGRESS under a new run id.
// With resetCheckpoint the next pass starts again from page 1.
func (r *SyncJobRepository) StartRun(ctx context.Context, id uint, runID string, resetCheckpoint bool) error {
	updates := map[string]interface{}{
		"status":         models.SyncStatusInProgress,
		"current_run_id": runID,
		"updated_at":     time.Now().UTC(),
	}
	if resetCheckpoint {
		updates["last_page_synced"] = 0
	}
	return r.update(ctx, id, updates, "failed to start run")
}

// Advance records a committed batch. The checkpoint never moves backwards
// and error fields from earlier attempts are cleared.
func (r *SyncJobRepository) Advance(ctx context.Context, id uint, page int) error {
	return r.update(ctx, id, map[string]interface{}{
		"last_page_synced":   gorm.Expr("CASE WHEN last_page_synced < ? THEN ? ELSE last_page_synced END", page, page),
		"status":             models.SyncStatusInProgress,
		"last_error_type":    nil,
		"last_error_message": nil,
		"last_error_code":    nil,
		"updated_at":         time.Now().UTC(),
	}, "failed to advance checkpoint")
}

// MarkFailed sets the job FAILED with diagnostics; the checkpoint is untouched
func (r *SyncJobRepository) MarkFailed(ctx context.Context, id uint, errType models.ErrorType, message string, code *int) error {
	return r.update(ctx, id, map[string]interface{}{
		"status":             models.SyncStatusFailed,
		"last_error_type":    errType,
		"last_error_message": message,
		"last_error_code":    code,
		"updated_at":         time.Now().UTC(),
	}, "failed to mark job failed")
}

// MarkCompleted sets the job COMPLETED
func (r *SyncJobRepository) MarkCompleted(ctx context.Context, id uint) error {
	return r.update(ctx, id, map[string]interface{}{
		"status":     models.SyncStatusCompleted,
		"updated_at": time.Now().UTC(),
	}, "failed to mark job completed")
}

func (r *SyncJobRepository) update(ctx context.Context, id uint, updates map[string]interface{}, msg string) error {
	result := r.db.WithContext(ctx).Model(&models.SyncJob{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("%s: %w", msg, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrSyncJobNotFound
	}
	return nil
}
