package tmdb

import (
	"errors"
	"fmt"
)

var (
	ErrMissingAPIKey = errors.New("tmdb api key or access token is required")
	ErrInvalidPage   = errors.New("page must be a positive integer")
)

// ProviderError is returned when TMDB answers with a non-2xx status
type ProviderError struct {
	Status  int
	Message string
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("tmdb responded with status %d", e.Status)
	}
	return fmt.Sprintf("tmdb responded with status %d: %s", e.Status, e.Message)
}

// StatusCode returns the upstream HTTP status
func (e *ProviderError) StatusCode() int {
	return e.Status
}

// NetworkError is returned when a request fails before a response is read
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("tmdb %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

func (e *NetworkError) NetworkFailure() bool {
	return true
}
