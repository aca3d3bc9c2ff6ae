package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound signals an absent namespace, index or document. Read paths
// treat it as an empty result, not a failure.
var ErrNotFound = errors.New("not found")

// ValidationError rejects bad input before any external call is made
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// RateLimitedError reports a throttled remote call. Callers must back off
// before retrying.
type RateLimitedError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rate limited: %v", e.Err)
	}
	return "rate limited"
}

func (e *RateLimitedError) Unwrap() error { return e.Err }

// TransientError reports a network or 5xx failure worth a bounded retry
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// ConfigurationError is fatal and never retried: bad credentials, a
// dimension mismatch, a malformed request.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// EmbeddingError carries the offending batch of a failed embedding call so
// the caller can decide between retry and abort
type EmbeddingError struct {
	BatchStart int // index of the first text of the failed batch
	BatchSize  int
	Err        error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding batch [%d..%d) failed: %v", e.BatchStart, e.BatchStart+e.BatchSize, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// IngestionError wraps a pipeline failure with the stage it occurred in
type IngestionError struct {
	Stage IngestStage
	Err   error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingestion failed at stage %s: %v", e.Stage, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

// IsNotFound reports whether err resolves to an absent resource
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRateLimited reports whether err carries a throttling signal
func IsRateLimited(err error) bool {
	var rl *RateLimitedError
	return errors.As(err, &rl)
}

// IsTransient reports whether err is a retryable IO failure
func IsTransient(err error) bool {
	var tr *TransientError
	return errors.As(err, &tr)
}

// IsRetryable reports whether a bounded retry could help
func IsRetryable(err error) bool {
	return IsRateLimited(err) || IsTransient(err)
}
