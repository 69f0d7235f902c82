package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vipul43/tmdb-sync-worker/internal/models"
)

var ErrMovieNotFound = errors.New("movie not found")

// Columns refreshed when a movie with the same tmdb_id already exists
var movieUpsertColumns = []string{"title", "overview", "poster_path", "release_date", "updated_at"}

type MovieRepository struct {
	db *gorm.DB
}

func NewMovieRepository(db *gorm.DB) *MovieRepository {
	return &MovieRepository{db: db}
}

// UpsertChunk writes one chunk of movies in a single transaction.
//
// Movies are inserted or updated by tmdb_id. For every tmdb_id present in
// reportedGenres the movie's genre set is replaced with exactly the listed
// genres; movies absent from the map keep their current genres. Genre ids
// that are not stored yet are skipped.
func (r *MovieRepository) UpsertChunk(ctx context.Context, movies []models.Movie, reportedGenres map[int][]int) error {
	if len(movies) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Omit(clause.Associations).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "tmdb_id"}},
				DoUpdates: clause.AssignmentColumns(movieUpsertColumns),
			}).
			Create(&movies)
		if result.Error != nil {
			return fmt.Errorf("failed to upsert movies: %w", result.Error)
		}

		if len(reportedGenres) == 0 {
			return nil
		}
		return reconcileGenres(tx, reportedGenres)
	})
}

func reconcileGenres(tx *gorm.DB, reportedGenres map[int][]int) error {
	movieIDs := make([]int, 0, len(reportedGenres))
	genreIDs := make([]int, 0)
	for movieID, ids := range reportedGenres {
		movieIDs = append(movieIDs, movieID)
		genreIDs = append(genreIDs, ids...)
	}

	var stored []models.Movie
	if err := tx.Preload("Genres").Where("tmdb_id IN ?", movieIDs).Find(&stored).Error; err != nil {
		return fmt.Errorf("failed to reload movies: %w", err)
	}

	genresByTMDBID := make(map[int]models.Genre)
	if len(genreIDs) > 0 {
		var genres []models.Genre
		if err := tx.Where("tmdb_id IN ?", genreIDs).Find(&genres).Error; err != nil {
			return fmt.Errorf("failed to resolve genres: %w", err)
		}
		for _, g := range genres {
			genresByTMDBID[g.TMDBID] = g
		}
	}

	for i := range stored {
		movie := &stored[i]

		resolved := make([]models.Genre, 0, len(reportedGenres[movie.TMDBID]))
		seen := make(map[int]bool)
		for _, id := range reportedGenres[movie.TMDBID] {
			if seen[id] {
				continue
			}
			seen[id] = true

			genre, ok := genresByTMDBID[id]
			if !ok {
				log.WithFields(log.Fields{"tmdb_id": movie.TMDBID, "genre_id": id}).Debug("Skipping unknown genre")
				continue
			}
			resolved = append(resolved, genre)
		}

		if sameGenreSet(movie.Genres, resolved) {
			continue
		}

		association := tx.Model(movie).Association("Genres")
		var err error
		if len(resolved) == 0 {
			err = association.Clear()
		} else {
			err = association.Replace(resolved)
		}
		if err != nil {
			return fmt.Errorf("failed to replace genres of movie %d: %w", movie.TMDBID, err)
		}
	}

	return nil
}

func sameGenreSet(current, next []models.Genre) bool {
	if len(current) != len(next) {
		return false
	}
	a := make([]int, 0, len(current))
	b := make([]int, 0, len(next))
	for i := range current {
		a = append(a, current[i].TMDBID)
		b = append(b, next[i].TMDBID)
	}
	sort.Ints(a)
	sort.Ints(b)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// GetByTMDBID loads a movie with its genres
func (r *MovieRepository) GetByTMDBID(ctx context.Context, tmdbID int) (*models.Movie, error) {
	var movie models.Movie
	result := r.db.WithContext(ctx).Preload("Genres").Where("tmdb_id = ?", tmdbID).First(&movie)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrMovieNotFound
		}
		return nil, fmt.Errorf("failed to query movie: %w", result.Error)
	}
	return &movie, nil
}

// Count returns the number of stored movies
func (r *MovieRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Movie{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count movies: %w", err)
	}
	return count, nil
}
