package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vipul43/tmdb-sync-worker/internal/models"
)

// BatchTaskRepository is the durable FIFO of batch descriptors
type BatchTaskRepository struct {
	db *gorm.DB
}

func NewBatchTaskRepository(db *gorm.DB) *BatchTaskRepository {
	return &BatchTaskRepository{db: db}
}

// Enqueue stores the batches of one run as pending tasks, preserving their order
func (r *BatchTaskRepository) Enqueue(ctx context.Context, jobID uint, runID string, batches []models.BatchDescriptor) ([]models.SyncBatchTask, error) {
	if len(batches) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	tasks := make([]models.SyncBatchTask, 0, len(batches))
	for i, b := range batches {
		tasks = append(tasks, models.SyncBatchTask{
			ID:         uuid.New().String(),
			SyncJobID:  jobID,
			RunID:      runID,
			Sequence:   i,
			BatchStart: b.BatchStart,
			BatchEnd:   b.BatchEnd,
			Status:     models.TaskStatusPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Omit("Job").CreateInBatches(&tasks, 100).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue batch tasks: %w", err)
	}
	return tasks, nil
}

// CancelStale cancels pending tasks of the job that belong to any run other than runID
func (r *BatchTaskRepository) CancelStale(ctx context.Context, jobID uint, runID string) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.SyncBatchTask{}).
		Where("sync_job_id = ? AND run_id <> ? AND status = ?", jobID, runID, models.TaskStatusPending).
		Updates(map[string]interface{}{
			"status":     models.TaskStatusCancelled,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to cancel stale tasks: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// claimQuery selects the oldest claimable task. On Postgres rows locked by a
// concurrent claim are skipped so that claim moves on to the next task.
func claimQuery(dialect string) string {
	lock := ""
	if dialect == "postgres" {
		lock = "FOR UPDATE SKIP LOCKED"
	}
	return fmt.Sprintf(`
		UPDATE sync_batch_tasks
		SET status = ?, claimed_at = ?, updated_at = ?
		WHERE id = (
			SELECT id FROM sync_batch_tasks
			WHERE status = ? OR (status = ? AND claimed_at <= ?)
			ORDER BY created_at ASC, sequence ASC
			LIMIT 1
			%s
		)
		AND (status = ? OR (status = ? AND claimed_at <= ?))
		RETURNING id
	`, lock)
}

// ClaimNext atomically moves the oldest claimable task to processing.
// Processing tasks whose claim is older than leaseTimeout are claimable again.
// Returns nil when nothing is claimable.
func (r *BatchTaskRepository) ClaimNext(ctx context.Context, leaseTimeout time.Duration) (*models.SyncBatchTask, error) {
	query := claimQuery(r.db.Dialector.Name())

	now := time.Now().UTC()
	cutoff := now.Add(-leaseTimeout)

	var id string
	err := r.db.WithContext(ctx).Raw(query,
		models.TaskStatusProcessing, now, now,
		models.TaskStatusPending, models.TaskStatusProcessing, cutoff,
		models.TaskStatusPending, models.TaskStatusProcessing, cutoff,
	).Row().Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim batch task: %w", err)
	}

	return r.GetByID(ctx, id)
}

// CountClaimable returns the number of tasks ClaimNext could still hand out
func (r *BatchTaskRepository) CountClaimable(ctx context.Context, leaseTimeout time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-leaseTimeout)

	var count int64
	err := r.db.WithContext(ctx).Model(&models.SyncBatchTask{}).
		Where("status = ? OR (status = ? AND claimed_at <= ?)",
			models.TaskStatusPending, models.TaskStatusProcessing, cutoff).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count claimable tasks: %w", err)
	}
	return count, nil
}

// GetByID retrieves a task by id
func (r *BatchTaskRepository) GetByID(ctx context.Context, id string) (*models.SyncBatchTask, error) {
	var task models.SyncBatchTask
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&task).Error; err != nil {
		return nil, fmt.Errorf("failed to query batch task: %w", err)
	}
	return &task, nil
}

// RecordAttempt increments the attempt counter and renews the claim
func (r *BatchTaskRepository) RecordAttempt(ctx context.Context, id string) error {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).Model(&models.SyncBatchTask{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":   gorm.Expr("attempts + 1"),
			"claimed_at": now,
			"updated_at": now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to record attempt: %w", result.Error)
	}
	return nil
}

// Release returns a claimed task to the queue without counting it as failed
func (r *BatchTaskRepository) Release(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Model(&models.SyncBatchTask{}).
		Where("id = ? AND status = ?", id, models.TaskStatusProcessing).
		Updates(map[string]interface{}{
			"status":     models.TaskStatusPending,
			"claimed_at": nil,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to release task: %w", result.Error)
	}
	return nil
}

// MarkCompleted marks a task committed
func (r *BatchTaskRepository) MarkCompleted(ctx context.Context, id string) error {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).Model(&models.SyncBatchTask{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":             models.TaskStatusCompleted,
			"last_error_type":    nil,
			"last_error_message": nil,
			"last_error_code":    nil,
			"processed_at":       now,
			"updated_at":         now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark task completed: %w", result.Error)
	}
	return nil
}

// MarkFailed marks a task permanently failed for its run
func (r *BatchTaskRepository) MarkFailed(ctx context.Context, id string, errType models.ErrorType, message string, code *int) error {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).Model(&models.SyncBatchTask{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":             models.TaskStatusFailed,
			"last_error_type":    errType,
			"last_error_message": message,
			"last_error_code":    code,
			"processed_at":       now,
			"updated_at":         now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark task failed: %w", result.Error)
	}
	return nil
}

// CommittedRanges returns the page ranges of completed tasks of a run, ascending
func (r *BatchTaskRepository) CommittedRanges(ctx context.Context, jobID uint, runID string) ([]models.PageRange, error) {
	var rows []struct {
		BatchStart int
		BatchEnd   int
	}
	result := r.db.WithContext(ctx).Model(&models.SyncBatchTask{}).
		Select("batch_start, batch_end").
		Where("sync_job_id = ? AND run_id = ? AND status = ?", jobID, runID, models.TaskStatusCompleted).
		Order("batch_start ASC").
		Scan(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to query committed ranges: %w", result.Error)
	}

	ranges := make([]models.PageRange, 0, len(rows))
	for _, row := range rows {
		ranges = append(ranges, models.PageRange{Start: row.BatchStart, End: row.BatchEnd})
	}
	return ranges, nil
}

// RunSummary counts the tasks of a run by status
func (r *BatchTaskRepository) RunSummary(ctx context.Context, runID string) (models.RunSummary, error) {
	var rows []struct {
		Status models.TaskStatus
		Total  int
	}
	result := r.db.WithContext(ctx).Model(&models.SyncBatchTask{}).
		Select("status, COUNT(*) AS total").
		Where("run_id = ?", runID).
		Group("status").
		Scan(&rows)
	if result.Error != nil {
		return models.RunSummary{}, fmt.Errorf("failed to summarize run: %w", result.Error)
	}

	var summary models.RunSummary
	for _, row := range rows {
		switch row.Status {
		case models.TaskStatusPending:
			summary.Pending = row.Total
		case models.TaskStatusProcessing:
			summary.Processing = row.Total
		case models.TaskStatusCompleted:
			summary.Completed = row.Total
		case models.TaskStatusFailed:
			summary.Failed = row.Total
		case models.TaskStatusCancelled:
			summary.Cancelled = row.Total
		}
	}
	return summary, nil
}

// LastFailure returns the most recently failed task of a run, or nil
func (r *BatchTaskRepository) LastFailure(ctx context.Context, runID string) (*models.SyncBatchTask, error) {
	var tasks []models.SyncBatchTask
	result := r.db.WithContext(ctx).
		Where("run_id = ? AND status = ?", runID, models.TaskStatusFailed).
		Order("processed_at DESC, sequence DESC").
		Limit(1).
		Find(&tasks)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to query failed tasks: %w", result.Error)
	}
	if len(tasks) == 0 {
		return nil, nil
	}
	return &tasks[0], nil
}
