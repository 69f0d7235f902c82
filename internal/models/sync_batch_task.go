package models

import "time"

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"    // Waiting for a worker
	TaskStatusProcessing TaskStatus = "processing" // Claimed by a worker
	TaskStatusCompleted  TaskStatus = "completed"  // Batch committed
	TaskStatusFailed     TaskStatus = "failed"     // Retries exhausted
	TaskStatusCancelled  TaskStatus = "cancelled"  // Superseded by a newer run
)

// SyncBatchTask is one queued batch descriptor
type SyncBatchTask struct {
	ID               string     `gorm:"column:id;type:varchar(36);primaryKey"`
	SyncJobID        uint       `gorm:"column:sync_job_id;index;not null"`
	Job              *SyncJob   `gorm:"foreignKey:SyncJobID;constraint:OnDelete:CASCADE"`
	RunID            string     `gorm:"column:run_id;type:varchar(36);index;not null"`
	Sequence         int        `gorm:"column:sequence;not null"`
	BatchStart       int        `gorm:"column:batch_start;not null"`
	BatchEnd         int        `gorm:"column:batch_end;not null"`
	Status           TaskStatus `gorm:"column:status;type:varchar(20);index;not null"`
	Attempts         int        `gorm:"column:attempts;not null;default:0"`
	LastErrorType    *ErrorType `gorm:"column:last_error_type;type:varchar(20)"`
	LastErrorMessage *string    `gorm:"column:last_error_message;type:text"`
	LastErrorCode    *int       `gorm:"column:last_error_code"`
	ClaimedAt        *time.Time `gorm:"column:claimed_at"`
	CreatedAt        time.Time  `gorm:"column:created_at"`
	UpdatedAt        time.Time  `gorm:"column:updated_at"`
	ProcessedAt      *time.Time `gorm:"column:processed_at"`
}

// TableName specifies the table name for GORM
func (SyncBatchTask) TableName() string {
	return "sync_batch_tasks"
}

// Descriptor converts the task into the batch it describes
func (t SyncBatchTask) Descriptor() BatchDescriptor {
	return BatchDescriptor{
		JobID:      t.SyncJobID,
		RunID:      t.RunID,
		TaskID:     t.ID,
		BatchStart: t.BatchStart,
		BatchEnd:   t.BatchEnd,
	}
}

// RunSummary counts the tasks of one run by status
type RunSummary struct {
	Pending    int
	Processing int
	Completed  int
	Failed     int
	Cancelled  int
}

// Outstanding returns the number of tasks still queued or in flight
func (s RunSummary) Outstanding() int {
	return s.Pending + s.Processing
}
