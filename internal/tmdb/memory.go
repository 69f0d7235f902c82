package tmdb

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/vipul43/tmdb-sync-worker/internal/service"
)

var _ service.CatalogClient = (*MemoryClient)(nil)

// MemoryClient is an in-memory catalog. Pages that were never set are empty.
type MemoryClient struct {
	mu            sync.Mutex
	pages         map[int][]service.CatalogItem
	categories    []service.CatalogCategory
	pageFailures  map[int]*failure
	categoryErr   error
	pageCalls     map[int]int
	categoryCalls int
}

type failure struct {
	err       error
	remaining int // < 0 fails forever
}

func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		pages:        make(map[int][]service.CatalogItem),
		pageFailures: make(map[int]*failure),
		pageCalls:    make(map[int]int),
	}
}

func (m *MemoryClient) SetPage(page int, items ...service.CatalogItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[page] = items
}

func (m *MemoryClient) SetCategories(categories ...service.CatalogCategory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories = categories
}

// FailPage makes the next times fetches of page return err; times <= 0 fails forever
func (m *MemoryClient) FailPage(page int, err error, times int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if times <= 0 {
		times = -1
	}
	m.pageFailures[page] = &failure{err: err, remaining: times}
}

// FailCategories makes every genre fetch return err; nil clears it
func (m *MemoryClient) FailCategories(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categoryErr = err
}

func (m *MemoryClient) PageCalls(page int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pageCalls[page]
}

func (m *MemoryClient) CategoryCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.categoryCalls
}

func (m *MemoryClient) FetchPage(ctx context.Context, page int) ([]service.CatalogItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if page < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPage, page)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.pageCalls[page]++
	if f, ok := m.pageFailures[page]; ok && f.remaining != 0 {
		if f.remaining > 0 {
			f.remaining--
		}
		return nil, f.err
	}
	return slices.Clone(m.pages[page]), nil
}

func (m *MemoryClient) FetchCategories(ctx context.Context) ([]service.CatalogCategory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.categoryCalls++
	if m.categoryErr != nil {
		return nil, m.categoryErr
	}
	return slices.Clone(m.categories), nil
}
