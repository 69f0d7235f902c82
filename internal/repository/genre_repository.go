package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vipul43/tmdb-sync-worker/internal/models"
)

type GenreRepository struct {
	db *gorm.DB
}

func NewGenreRepository(db *gorm.DB) *GenreRepository {
	return &GenreRepository{db: db}
}

// UpsertMany inserts genres or renames existing ones by tmdb_id
func (r *GenreRepository) UpsertMany(ctx context.Context, genres []models.Genre) error {
	if len(genres) == 0 {
		return nil
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tmdb_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
		}).
		Create(&genres)
	if result.Error != nil {
		return fmt.Errorf("failed to upsert genres: %w", result.Error)
	}
	return nil
}

// List returns every stored genre ordered by tmdb_id
func (r *GenreRepository) List(ctx context.Context) ([]models.Genre, error) {
	var genres []models.Genre
	if err := r.db.WithContext(ctx).Order("tmdb_id ASC").Find(&genres).Error; err != nil {
		return nil, fmt.Errorf("failed to query genres: %w", err)
	}
	return genres, nil
}
