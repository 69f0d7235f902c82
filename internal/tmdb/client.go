package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/vipul43/tmdb-sync-worker/internal/service"
)

const (
	DefaultBaseURL = "https://api.themoviedb.org"
	DefaultTimeout = 15 * time.Second

	releaseDateLayout = "2006-01-02"
)

var _ service.CatalogClient = (*Client)(nil)

type Client struct {
	baseURL     string
	apiKey      string
	accessToken string
	timeout     time.Duration
	httpClient  *http.Client
}

type Option func(*Client)

// WithBaseURL points the client at another host, mostly for tests
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithAccessToken authenticates with a v4 read access token instead of the api_key parameter
func WithAccessToken(token string) Option {
	return func(c *Client) {
		c.accessToken = token
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		if c.accessToken != "" {
			token := &oauth2.Token{
				AccessToken: c.accessToken,
				TokenType:   "Bearer",
			}
			c.httpClient = oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(token))
			c.httpClient.Timeout = c.timeout
		} else {
			c.httpClient = &http.Client{Timeout: c.timeout}
		}
	}

	return c
}

type movieResult struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Overview    string  `json:"overview"`
	PosterPath  *string `json:"poster_path"`
	ReleaseDate string  `json:"release_date"`
	GenreIDs    []int   `json:"genre_ids"`
}

type popularResponse struct {
	Page         int           `json:"page"`
	Results      []movieResult `json:"results"`
	TotalPages   int           `json:"total_pages"`
	TotalResults int           `json:"total_results"`
}

type genreListResponse struct {
	Genres []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"genres"`
}

type errorResponse struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
}

// FetchPage fetches one page of popular movies
func (c *Client) FetchPage(ctx context.Context, page int) ([]service.CatalogItem, error) {
	if page < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPage, page)
	}

	query := url.Values{}
	query.Set("page", strconv.Itoa(page))

	var resp popularResponse
	if err := c.get(ctx, "/3/movie/popular", query, &resp); err != nil {
		return nil, err
	}

	items := make([]service.CatalogItem, 0, len(resp.Results))
	for _, m := range resp.Results {
		items = append(items, service.CatalogItem{
			ExternalID:  m.ID,
			Title:       m.Title,
			Description: m.Overview,
			ImagePath:   m.PosterPath,
			ReleaseDate: parseReleaseDate(m.ID, m.ReleaseDate),
			CategoryIDs: m.GenreIDs,
		})
	}

	log.WithFields(log.Fields{"page": page, "movies": len(items)}).Debug("Fetched TMDB page")
	return items, nil
}

// FetchCategories fetches the movie genre list
func (c *Client) FetchCategories(ctx context.Context) ([]service.CatalogCategory, error) {
	var resp genreListResponse
	if err := c.get(ctx, "/3/genre/movie/list", url.Values{}, &resp); err != nil {
		return nil, err
	}

	categories := make([]service.CatalogCategory, 0, len(resp.Genres))
	for _, g := range resp.Genres {
		categories = append(categories, service.CatalogCategory{ExternalID: g.ID, Name: g.Name})
	}
	return categories, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	if c.apiKey == "" && c.accessToken == "" {
		return ErrMissingAPIKey
	}
	if c.accessToken == "" {
		query.Set("api_key", c.apiKey)
	}

	endpoint := c.baseURL + path + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Op: "GET " + path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Op: "read " + path, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		providerErr := &ProviderError{Status: resp.StatusCode}
		var apiErr errorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.StatusMessage != "" {
			providerErr.Message = apiErr.StatusMessage
		} else {
			providerErr.Message = http.StatusText(resp.StatusCode)
		}
		return providerErr
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse TMDB response: %w", err)
	}
	return nil
}

func parseReleaseDate(movieID int, value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := time.Parse(releaseDateLayout, value)
	if err != nil {
		log.WithFields(log.Fields{"tmdb_id": movieID, "release_date": value}).Debug("Ignoring unparseable release date")
		return nil
	}
	return &t
}
