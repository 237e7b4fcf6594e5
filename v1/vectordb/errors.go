package vectordb

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Sentinel errors forming the engine's error taxonomy.
//
// Validation errors are raised client-side before any request is sent and
// are never retried. Transport errors are retried exactly once through the
// reconnect wrapper; a second failure propagates with its cause intact.
// Rate-limit errors are surfaced for the caller's resilience layer, the
// engine does not implement backoff itself.
var (
	// ErrEmptyFilter is returned when a non-nil filter has empty
	// Must, Should and MustNot lists.
	ErrEmptyFilter = errors.New("vectordb: filter has no conditions")

	// ErrConflictingCondition is returned for structurally invalid
	// conditions, including a field condition setting more than one of
	// match, range and geo.
	ErrConflictingCondition = errors.New("vectordb: invalid filter condition")

	// ErrEmptyFieldKey is returned when a field condition has no key.
	ErrEmptyFieldKey = errors.New("vectordb: empty field key")

	// ErrEmptyVector is returned when a search request carries no query vector.
	ErrEmptyVector = errors.New("vectordb: empty query vector")

	// ErrDimensionMismatch is returned when a dense vector's length does
	// not equal the collection's configured dimension.
	ErrDimensionMismatch = errors.New("vectordb: vector dimension mismatch")

	// ErrNotFound is returned when a collection or point is absent.
	ErrNotFound = errors.New("vectordb: not found")

	// ErrRateLimited is returned when the backend signals overload.
	// Backoff policy is delegated to the caller.
	ErrRateLimited = errors.New("vectordb: rate limited")

	// ErrTransport marks timeouts, unavailability and disconnections.
	ErrTransport = errors.New("vectordb: transport failure")
)

// IsValidation reports whether err originates from client-side validation
// and is therefore non-retryable.
func IsValidation(err error) bool {
	return errors.Is(err, ErrEmptyFilter) ||
		errors.Is(err, ErrConflictingCondition) ||
		errors.Is(err, ErrEmptyFieldKey) ||
		errors.Is(err, ErrEmptyVector) ||
		errors.Is(err, ErrDimensionMismatch)
}

// IsTransport reports whether err is a transport-level failure eligible for
// the reconnect-and-retry-once policy.
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

// IsNotFound reports whether err indicates an absent collection or point.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRateLimited reports whether the backend signalled overload.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// ClassifyRPC maps an RPC error onto the engine taxonomy, preserving the
// original error as the wrapped cause. Non-gRPC errors and unrecognized
// codes pass through unchanged.
func ClassifyRPC(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	s, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch s.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted:
		return fmt.Errorf("%w: %w", ErrTransport, err)
	case codes.NotFound:
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case codes.ResourceExhausted:
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	default:
		return err
	}
}
