package models

import "time"

// Genre mirrors a TMDB genre, unique by TMDBID
type Genre struct {
	ID        uint      `gorm:"column:id;primaryKey"`
	TMDBID    int       `gorm:"column:tmdb_id;uniqueIndex;not null"`
	Name      string    `gorm:"column:name;type:varchar(100);not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName specifies the table name for GORM
func (Genre) TableName() string {
	return "genres"
}
