package models

import "time"

// SyncErrorLog is an append-only record of one failed page or batch
type SyncErrorLog struct {
	ID         uint      `gorm:"column:id;primaryKey"`
	SyncJobID  uint      `gorm:"column:sync_job_id;index;not null"`
	Job        *SyncJob  `gorm:"foreignKey:SyncJobID;constraint:OnDelete:CASCADE"`
	Page       int       `gorm:"column:page;not null"`
	ErrorType  ErrorType `gorm:"column:error_type;type:varchar(20);not null"`
	Message    string    `gorm:"column:message;type:text;not null"`
	Code       *int      `gorm:"column:code"`
	OccurredAt time.Time `gorm:"column:occurred_at;autoCreateTime"`
}

// TableName specifies the table name for GORM
func (SyncErrorLog) TableName() string {
	return "sync_error_logs"
}
