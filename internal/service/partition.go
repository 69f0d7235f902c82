package service

import "github.com/vipul43/tmdb-sync-worker/internal/models"

// Partition splits [startPage, totalPages] into ascending, non-overlapping
// batches of at most batchSize pages. The last batch may be shorter.
func Partition(jobID uint, startPage, totalPages, batchSize int) []models.BatchDescriptor {
	if startPage < 1 {
		startPage = 1
	}
	if batchSize < 1 {
		batchSize = 1
	}

	var batches []models.BatchDescriptor
	for start := startPage; start <= totalPages; start += batchSize {
		end := min(start+batchSize-1, totalPages)
		batches = append(batches, models.BatchDescriptor{
			JobID:      jobID,
			BatchStart: start,
			BatchEnd:   end,
		})
	}
	return batches
}
