package source

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed upstream call for retry and reporting
// decisions.
type ErrorKind string

const (
	// KindNotFound is a 404: the record does not exist upstream.
	KindNotFound ErrorKind = "not_found"
	// KindRateLimited is a 429: the source throttled us.
	KindRateLimited ErrorKind = "rate_limited"
	// KindNetwork is a transport-level failure (DNS, dial, timeout).
	KindNetwork ErrorKind = "network"
	// KindUpstream is a 5xx from the source.
	KindUpstream ErrorKind = "upstream_5xx"
	// KindMalformed is an undecodable or schema-violating payload,
	// or an unexpected 4xx.
	KindMalformed ErrorKind = "malformed"
)

// Error describes a failed call against an upstream catalog source.
type Error struct {
	Kind       ErrorKind
	Source     string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("source %s: %s (status %d): %v", e.Source, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("source %s: %s: %v", e.Source, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether a later attempt may succeed.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindRateLimited, KindNetwork, KindUpstream:
		return true
	default:
		return false
	}
}

// KindOf extracts the error kind, or "" when err is not a source error.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// IsNotFound reports whether err is a 404 from a source.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsRateLimited reports whether err is a 429 from a source.
func IsRateLimited(err error) bool {
	return KindOf(err) == KindRateLimited
}

// IsRetryable reports whether err is a source error worth retrying.
func IsRetryable(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return false
}
