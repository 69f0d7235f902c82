package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/vipul43/tmdb-sync-worker/internal/models"
)

type SyncErrorLogRepository struct {
	db *gorm.DB
}

func NewSyncErrorLogRepository(db *gorm.DB) *SyncErrorLogRepository {
	return &SyncErrorLogRepository{db: db}
}

// Create appends one error log row
func (r *SyncErrorLogRepository) Create(ctx context.Context, entry *models.SyncErrorLog) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to create sync error log: %w", err)
	}
	return nil
}

// ListRecent returns the latest error rows of a job, newest first
func (r *SyncErrorLogRepository) ListRecent(ctx context.Context, jobID uint, limit int) ([]models.SyncErrorLog, error) {
	var entries []models.SyncErrorLog
	result := r.db.WithContext(ctx).
		Where("sync_job_id = ?", jobID).
		Order("occurred_at DESC, id DESC").
		Limit(limit).
		Find(&entries)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to query sync error logs: %w", result.Error)
	}
	return entries, nil
}
