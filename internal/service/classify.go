package service

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"

	"github.com/vipul43/tmdb-sync-worker/internal/models"
)

// statusCoder is implemented by errors carrying an upstream HTTP status
type statusCoder interface {
	StatusCode() int
}

// networkFailure is implemented by errors raised before any response arrived
type networkFailure interface {
	NetworkFailure() bool
}

// ClassifyError maps a batch failure to an error type.
// Errors carrying an upstream status are PROVIDER with that status as code,
// transport failures are NETWORK and everything else is UNKNOWN.
func ClassifyError(err error) (models.ErrorType, *int) {
	if err == nil {
		return models.ErrorTypeUnknown, nil
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		code := sc.StatusCode()
		return models.ErrorTypeProvider, &code
	}

	var nf networkFailure
	if errors.As(err, &nf) && nf.NetworkFailure() {
		return models.ErrorTypeNetwork, nil
	}

	if isTransportError(err) {
		return models.ErrorTypeNetwork, nil
	}

	return models.ErrorTypeUnknown, nil
}

func isTransportError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
