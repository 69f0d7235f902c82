package service

import (
	"slices"

	"github.com/vipul43/tmdb-sync-worker/internal/models"
)

// ContiguousWatermark returns the highest page P such that every page in
// [1, P] is either at or below current or covered by one of ranges.
func ContiguousWatermark(current int, ranges []models.PageRange) int {
	sorted := slices.Clone(ranges)
	slices.SortFunc(sorted, func(a, b models.PageRange) int {
		return a.Start - b.Start
	})

	mark := current
	for _, r := range sorted {
		if r.Start > mark+1 {
			break
		}
		if r.End > mark {
			mark = r.End
		}
	}
	return mark
}
