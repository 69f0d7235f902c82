package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"testing"

	"github.com/vipul43/tmdb-sync-worker/internal/models"
)

type statusError struct{ status int }

func (e statusError) Error() string   { return fmt.Sprintf("status %d", e.status) }
func (e statusError) StatusCode() int { return e.status }

type transportError struct{}

func (transportError) Error() string        { return "socket hang up" }
func (transportError) NetworkFailure() bool { return true }

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantType models.ErrorType
		wantCode *int
	}{
		{name: "nil", err: nil, wantType: models.ErrorTypeUnknown},
		{name: "upstream status", err: statusError{status: 503}, wantType: models.ErrorTypeProvider, wantCode: intPtr(503)},
		{
			name:     "wrapped upstream status",
			err:      fmt.Errorf("failed to fetch page 3: %w", statusError{status: 404}),
			wantType: models.ErrorTypeProvider,
			wantCode: intPtr(404),
		},
		{name: "network capability", err: fmt.Errorf("fetch: %w", transportError{}), wantType: models.ErrorTypeNetwork},
		{
			name:     "connection refused",
			err:      &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED},
			wantType: models.ErrorTypeNetwork,
		},
		{name: "deadline exceeded", err: context.DeadlineExceeded, wantType: models.ErrorTypeNetwork},
		{name: "truncated body", err: fmt.Errorf("read: %w", io.ErrUnexpectedEOF), wantType: models.ErrorTypeNetwork},
		{name: "local error", err: errors.New("duplicate key value violates unique constraint"), wantType: models.ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotType, gotCode := ClassifyError(tt.err)
			if gotType != tt.wantType {
				t.Errorf("expected type %s, got %s", tt.wantType, gotType)
			}
			switch {
			case tt.wantCode == nil && gotCode != nil:
				t.Errorf("expected no code, got %d", *gotCode)
			case tt.wantCode != nil && gotCode == nil:
				t.Errorf("expected code %d, got nil", *tt.wantCode)
			case tt.wantCode != nil && *gotCode != *tt.wantCode:
				t.Errorf("expected code %d, got %d", *tt.wantCode, *gotCode)
			}
		})
	}
}

func intPtr(i int) *int {
	return &i
}

func TestDedupeItems_LaterPageWins(t *testing.T) {
	items := []CatalogItem{
		{ExternalID: 1, Title: "first"},
		{ExternalID: 2, Title: "two"},
		{ExternalID: 1, Title: "second"},
	}

	got := dedupeItems(items)
	if len(got) != 2 {
		t.Fatalf("expected 2 items, got %d", len(got))
	}
	if got[0].ExternalID != 1 || got[0].Title != "second" {
		t.Errorf("expected later copy of item 1 first, got %+v", got[0])
	}
	if got[1].ExternalID != 2 {
		t.Errorf("expected item 2 second, got %+v", got[1])
	}
}

func TestToMovies_ReportedGenres(t *testing.T) {
	movies, reported := toMovies([]CatalogItem{
		{ExternalID: 1, Title: "a", CategoryIDs: []int{28}},
		{ExternalID: 2, Title: "b", CategoryIDs: []int{}},
		{ExternalID: 3, Title: "c"},
	})

	if len(movies) != 3 {
		t.Fatalf("expected 3 movies, got %d", len(movies))
	}
	if _, ok := reported[1]; !ok {
		t.Error("expected genres reported for movie 1")
	}
	if ids, ok := reported[2]; !ok || len(ids) != 0 {
		t.Errorf("expected empty genre list for movie 2, got %v (%v)", ids, ok)
	}
	if _, ok := reported[3]; ok {
		t.Error("expected no genres reported for movie 3")
	}
}
