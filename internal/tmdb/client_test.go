package tmdb

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vipul43/tmdb-sync-worker/internal/models"
	"github.com/vipul43/tmdb-sync-worker/internal/service"
)

const popularPage = `{
	"page": 3,
	"results": [
		{"id": 550, "title": "Fight Club", "overview": "An insomniac...", "poster_path": "/fc.jpg", "release_date": "1999-10-15", "genre_ids": [18, 53]},
		{"id": 603, "title": "The Matrix", "overview": "A hacker...", "poster_path": null, "release_date": "", "genre_ids": []},
		{"id": 680, "title": "Pulp Fiction", "overview": "Two hitmen...", "release_date": "not-a-date"}
	],
	"total_pages": 500,
	"total_results": 10000
}`

func TestClient_FetchPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/3/movie/popular", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		assert.Equal(t, "3", r.URL.Query().Get("page"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(popularPage))
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL))

	items, err := client.FetchPage(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, items, 3)

	fightClub := items[0]
	assert.Equal(t, 550, fightClub.ExternalID)
	assert.Equal(t, "Fight Club", fightClub.Title)
	assert.Equal(t, "An insomniac...", fightClub.Description)
	require.NotNil(t, fightClub.ImagePath)
	assert.Equal(t, "/fc.jpg", *fightClub.ImagePath)
	require.NotNil(t, fightClub.ReleaseDate)
	assert.Equal(t, time.Date(1999, 10, 15, 0, 0, 0, 0, time.UTC), *fightClub.ReleaseDate)
	assert.Equal(t, []int{18, 53}, fightClub.CategoryIDs)

	matrix := items[1]
	assert.Nil(t, matrix.ImagePath)
	assert.Nil(t, matrix.ReleaseDate)
	assert.NotNil(t, matrix.CategoryIDs)
	assert.Empty(t, matrix.CategoryIDs)

	pulp := items[2]
	assert.Nil(t, pulp.ReleaseDate)
	assert.Nil(t, pulp.CategoryIDs)
}

func TestClient_FetchPage_AccessToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer read-token", r.Header.Get("Authorization"))
		assert.Empty(t, r.URL.Query().Get("api_key"))
		_, _ = w.Write([]byte(`{"page": 1, "results": []}`))
	}))
	defer server.Close()

	client := NewClient("", WithBaseURL(server.URL), WithAccessToken("read-token"))

	items, err := client.FetchPage(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestClient_FetchPage_ProviderErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
	}{
		{
			name:        "tmdb error body",
			status:      http.StatusUnauthorized,
			body:        `{"status_code": 7, "status_message": "Invalid API key: You must be granted a valid key.", "success": false}`,
			wantMessage: "Invalid API key: You must be granted a valid key.",
		},
		{
			name:        "plain body",
			status:      http.StatusServiceUnavailable,
			body:        "upstream down",
			wantMessage: "Service Unavailable",
		},
		{
			name:        "rate limited",
			status:      http.StatusTooManyRequests,
			body:        `{"status_code": 25, "status_message": "Your request count is over the allowed limit."}`,
			wantMessage: "Your request count is over the allowed limit.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient("test-key", WithBaseURL(server.URL))

			_, err := client.FetchPage(context.Background(), 1)
			require.Error(t, err)

			var providerErr *ProviderError
			require.True(t, errors.As(err, &providerErr))
			assert.Equal(t, tt.status, providerErr.StatusCode())
			assert.Equal(t, tt.wantMessage, providerErr.Message)

			errType, code := service.ClassifyError(err)
			assert.Equal(t, models.ErrorTypeProvider, errType)
			require.NotNil(t, code)
			assert.Equal(t, tt.status, *code)
		})
	}
}

func TestClient_FetchPage_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	client := NewClient("test-key", WithBaseURL(baseURL))

	_, err := client.FetchPage(context.Background(), 1)
	require.Error(t, err)

	var networkErr *NetworkError
	assert.True(t, errors.As(err, &networkErr))

	errType, code := service.ClassifyError(err)
	assert.Equal(t, models.ErrorTypeNetwork, errType)
	assert.Nil(t, code)
}

func TestClient_FetchPage_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient("test-key", WithBaseURL(server.URL), WithTimeout(50*time.Millisecond))

	_, err := client.FetchPage(context.Background(), 1)
	require.Error(t, err)

	errType, _ := service.ClassifyError(err)
	assert.Equal(t, models.ErrorTypeNetwork, errType)
}

func TestClient_FetchPage_Validation(t *testing.T) {
	_, err := NewClient("test-key").FetchPage(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidPage)

	_, err = NewClient("").FetchPage(context.Background(), 1)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestClient_FetchPage_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results": [`))
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL))

	_, err := client.FetchPage(context.Background(), 1)
	require.Error(t, err)

	errType, _ := service.ClassifyError(err)
	assert.Equal(t, models.ErrorTypeUnknown, errType)
}

func TestClient_FetchCategories(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/3/genre/movie/list", r.URL.Path)
		_, _ = w.Write([]byte(`{"genres": [{"id": 28, "name": "Action"}, {"id": 18, "name": "Drama"}]}`))
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL))

	categories, err := client.FetchCategories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []service.CatalogCategory{
		{ExternalID: 28, Name: "Action"},
		{ExternalID: 18, Name: "Drama"},
	}, categories)
}
