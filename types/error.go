package types

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrorCode represents a unified error code across the gateway.
type ErrorCode string

// Provider error codes. Adapters map vendor failures onto this set.
const (
	ErrMissingAPIKey     ErrorCode = "MISSING_API_KEY"
	ErrUnauthorized      ErrorCode = "UNAUTHORIZED"
	ErrRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrBadRequest        ErrorCode = "BAD_REQUEST"
	ErrQuotaExceeded     ErrorCode = "QUOTA_EXCEEDED"
	ErrServerError       ErrorCode = "SERVER_ERROR"
	ErrConnectionError   ErrorCode = "CONNECTION_ERROR"
	ErrTimeout           ErrorCode = "TIMEOUT"
	ErrContentBlocked    ErrorCode = "CONTENT_BLOCKED"
	ErrUnknown           ErrorCode = "UNKNOWN_ERROR"
)

// Error represents a structured provider error with code, message, and
// metadata. It is the canonical failure representation all adapters raise
// into; nothing else crosses the gateway boundary.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Provider   string    `json:"provider,omitempty"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the upstream HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithProvider sets the provider name.
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// AsError extracts a *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// GetErrorCode extracts the error code from an error, or "" if it is not
// a *Error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// RateLimitError is raised by the local rate limiter when an identity has
// exhausted one of its windows. It is never retried internally; the caller
// receives RetryAfter and decides whether to come back later.
type RateLimitError struct {
	Identity   string        `json:"identity,omitempty"`
	RetryAfter time.Duration `json:"retry_after"`
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter)
}

// RetryAfterSeconds returns the wait rounded up to whole seconds, as
// rendered in the Retry-After response header. Never less than 1.
func (e *RateLimitError) RetryAfterSeconds() int {
	s := int(math.Ceil(e.RetryAfter.Seconds()))
	if s < 1 {
		s = 1
	}
	return s
}

// IsRateLimitError reports whether err's chain contains a *RateLimitError.
func IsRateLimitError(err error) bool {
	var rle *RateLimitError
	return errors.As(err, &rle)
}

// AsRateLimitError extracts a *RateLimitError from err's chain.
func AsRateLimitError(err error) (*RateLimitError, bool) {
	var rle *RateLimitError
	ok := errors.As(err, &rle)
	return rle, ok
}
