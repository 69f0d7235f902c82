package models

import "time"

type SyncStatus string

const (
	SyncStatusPending    SyncStatus = "PENDING"     // Created, never run
	SyncStatusInProgress SyncStatus = "IN_PROGRESS" // Run started or batch committed
	SyncStatusFailed     SyncStatus = "FAILED"      // A batch failed; checkpoint kept at last committed batch
	SyncStatusCompleted  SyncStatus = "COMPLETED"   // Every batch of the run committed
)

type ErrorType string

const (
	ErrorTypeNetwork  ErrorType = "NETWORK"  // Transport failure, no response
	ErrorTypeProvider ErrorType = "PROVIDER" // Upstream answered with an error status
	ErrorTypeUnknown  ErrorType = "UNKNOWN"  // Anything else, including local errors
)

// SyncJob is the checkpoint row of a named recurring sync job
type SyncJob struct {
	ID               uint       `gorm:"column:id;primaryKey"`
	JobName          string     `gorm:"column:job_name;type:varchar(100);uniqueIndex;not null"`
	LastPageSynced   int        `gorm:"column:last_page_synced;not null;default:0"`
	Status           SyncStatus `gorm:"column:status;type:varchar(20);not null;default:PENDING"`
	CurrentRunID     *string    `gorm:"column:current_run_id;type:varchar(36)"`
	LastErrorType    *ErrorType `gorm:"column:last_error_type;type:varchar(20)"`
	LastErrorMessage *string    `gorm:"column:last_error_message;type:text"`
	LastErrorCode    *int       `gorm:"column:last_error_code"`
	CreatedAt        time.Time  `gorm:"column:created_at"`
	UpdatedAt        time.Time  `gorm:"column:updated_at"`
}

// TableName specifies the table name for GORM
func (SyncJob) TableName() string {
	return "sync_jobs"
}

// RunID returns the current run id or an empty string
func (j SyncJob) RunID() string {
	if j.CurrentRunID == nil {
		return ""
	}
	return *j.CurrentRunID
}
