package service

import (
	"context"
	"time"
)

// CatalogClient interface for the upstream movie catalog
type CatalogClient interface {
	FetchPage(ctx context.Context, page int) ([]CatalogItem, error)
	FetchCategories(ctx context.Context) ([]CatalogCategory, error)
}

// CatalogItem is one movie as reported by the catalog.
// A nil CategoryIDs means the catalog did not report categories for the
// item; an empty non-nil slice means it reported none.
type CatalogItem struct {
	ExternalID  int
	Title       string
	Description string
	ImagePath   *string
	ReleaseDate *time.Time
	CategoryIDs []int
}

type CatalogCategory struct {
	ExternalID int
	Name       string
}
