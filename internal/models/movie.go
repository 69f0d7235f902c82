package models

import "time"

// Movie mirrors a TMDB movie, unique by TMDBID
type Movie struct {
	ID          uint       `gorm:"column:id;primaryKey"`
	TMDBID      int        `gorm:"column:tmdb_id;uniqueIndex;not null"`
	Title       string     `gorm:"column:title;type:varchar(255);not null"`
	Overview    string     `gorm:"column:overview;type:text;not null"`
	PosterPath  *string    `gorm:"column:poster_path;type:varchar(512)"`
	ReleaseDate *time.Time `gorm:"column:release_date;type:date"`
	AvgRating   float64    `gorm:"column:avg_rating;not null;default:0"`
	Genres      []Genre    `gorm:"many2many:movie_genres;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at"`
}

// TableName specifies the table name for GORM
func (Movie) TableName() string {
	return "movies"
}

// GenreTMDBIDs returns the TMDB ids of the loaded genres
func (m Movie) GenreTMDBIDs() []int {
	ids := make([]int, 0, len(m.Genres))
	for _, g := range m.Genres {
		ids = append(ids, g.TMDBID)
	}
	return ids
}
