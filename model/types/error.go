package types

import (
	"errors"
	"fmt"
)

// Outcome classification returned by capability backends. The gateway
// retries transient failures with backoff; fatal failures go straight to
// the failed state.
var (
	// ErrUnavailable indicates the backing system cannot be reached right now.
	ErrUnavailable = errors.New("capability unavailable")

	// ErrTimeout indicates the invocation exceeded its upper-bound timeout.
	ErrTimeout = errors.New("capability timeout")

	// ErrRateLimited indicates the backing system asked to slow down.
	ErrRateLimited = errors.New("capability rate limited")

	// ErrRejected indicates the backend permanently refused the request.
	ErrRejected = errors.New("capability rejected request")

	// ErrMalformed indicates the input could not be interpreted by the backend.
	ErrMalformed = errors.New("malformed capability input")
)

// IsTransient reports whether err warrants a retry.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrRateLimited)
}

func NewMethodNotFoundError(name string) error {
	return fmt.Errorf("method %v not found", name)
}

func NewInvalidInputError(in interface{}) error {
	return fmt.Errorf("invalid input %T", in)
}

func NewInvalidOutputError(in interface{}) error {
	return fmt.Errorf("invalid output %T", in)
}
