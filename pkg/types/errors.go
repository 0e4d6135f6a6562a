package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies upstream failures for the retry policy.
type ErrorKind string

const (
	ErrKindTransport ErrorKind = "upstream_transport" // timeout, connection failure
	ErrKindRateLimit ErrorKind = "upstream_ratelimit" // HTTP 429
	ErrKindServer    ErrorKind = "upstream_server"    // HTTP 5xx
	ErrKindClient    ErrorKind = "upstream_client"    // other 4xx, never retried
	ErrKindBreaker   ErrorKind = "upstream_breaker"   // rejected locally, circuit open
)

// UpstreamError is a typed failure from an upstream API call.
type UpstreamError struct {
	Kind       ErrorKind
	StatusCode int // 0 for transport errors
	URL        string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: status %d from %s", e.Kind, e.StatusCode, e.URL)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.URL, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Retryable reports whether the retry policy may attempt the call again:
// transport failures, rate limits, and server errors only.
func (e *UpstreamError) Retryable() bool {
	switch e.Kind {
	case ErrKindTransport, ErrKindRateLimit, ErrKindServer:
		return true
	}
	return false
}

// ClassifyStatus maps an HTTP status to an error kind.
func ClassifyStatus(status int) ErrorKind {
	switch {
	case status == 429:
		return ErrKindRateLimit
	case status >= 500:
		return ErrKindServer
	default:
		return ErrKindClient
	}
}

// IsRetryable reports whether err (or anything it wraps) is a retryable
// upstream failure. Non-upstream errors are not retried.
func IsRetryable(err error) bool {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Retryable()
	}
	return false
}

// IsRateLimited reports whether err is an HTTP 429.
func IsRateLimited(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.Kind == ErrKindRateLimit
}
