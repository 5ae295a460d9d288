package gateway

import (
	"errors"
	"fmt"

	"github.com/eternalApril/moonview/internal/keyspace"
	"github.com/eternalApril/moonview/internal/registry"
)

var (
	// ErrServerNotFound is returned when the requested server is not configured
	ErrServerNotFound = registry.ErrServerNotFound

	// ErrUnsupportedType is returned when a key has no inspectable type
	ErrUnsupportedType = keyspace.ErrUnsupportedType

	// ErrMalformedRequest is returned for invalid arguments
	ErrMalformedRequest = errors.New("malformed request")
)

// UpstreamError wraps a failure talking to the backend
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsUpstream reports whether err is an UpstreamError
func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}

// malformed builds an ErrMalformedRequest with a reason
func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedRequest, fmt.Sprintf(format, args...))
}

// upstream classifies err: known sentinels pass through, everything else
// is reported as an UpstreamError for op
func upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsUpstream(err) || errors.Is(err, ErrServerNotFound) || errors.Is(err, ErrUnsupportedType) || errors.Is(err, ErrMalformedRequest) {
		return err
	}
	return &UpstreamError{Op: op, Err: err}
}

// Message returns the text exposed to clients for err
func Message(err error) string {
	var ute *keyspace.UnsupportedTypeError
	switch {
	case errors.Is(err, ErrServerNotFound):
		return ErrServerNotFound.Error()
	case errors.As(err, &ute):
		return "Unsupported type: " + ute.Type
	default:
		return err.Error()
	}
}
