package errors

import (
	"fmt"
)

// Error is the structured error type for webrecall.
// It provides rich context for error handling, logging, and user presentation.
type Error struct {
	// Code is the unique error code (e.g., "ERR_202_STORAGE_BUSY").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Storage, Network, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with Error.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestion = suggestion
	return e
}

// New creates a new Error with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an Error from an existing error.
// The error's message becomes the Error message.
func Wrap(code string, err error) *Error {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// Validation creates a validation error for a named input field.
func Validation(field, reason string) *Error {
	return New(ErrCodeInvalidInput, fmt.Sprintf("invalid %s: %s", field, reason), nil).
		WithDetail("field", field).
		WithDetail("reason", reason)
}

// BlockedURL creates a blocklist rejection for a URL and the pattern it matched.
func BlockedURL(url, pattern string) *Error {
	return New(ErrCodeBlockedURL, fmt.Sprintf("url blocked by pattern %q", pattern), nil).
		WithDetail("url", url).
		WithDetail("pattern", pattern)
}

// Fetch creates an upstream fetch error of the given kind
// (timeout, http_error, network, malformed).
func Fetch(kind, message string, cause error) *Error {
	code := ErrCodeFetchNetwork
	switch kind {
	case "timeout":
		code = ErrCodeFetchTimeout
	case "http_error":
		code = ErrCodeFetchHTTP
	case "malformed":
		code = ErrCodeFetchMalformed
	}
	return New(code, message, cause).WithDetail("kind", kind)
}

// Embed creates an embedding model error.
func Embed(message string, cause error) *Error {
	return New(ErrCodeEmbedFailed, message, cause)
}

// Storage creates an unrecoverable storage error.
func Storage(message string, cause error) *Error {
	return New(ErrCodeStorageFailed, message, cause)
}

// Contention creates a retryable database busy/locked error.
func Contention(message string, cause error) *Error {
	return New(ErrCodeStorageBusy, message, cause)
}

// NotFound creates a missing-record error.
func NotFound(message string) *Error {
	return New(ErrCodeNotFound, message, nil)
}

// Unauthorized creates an authentication failure.
func Unauthorized(message string) *Error {
	return New(ErrCodeUnauthorized, message, nil)
}

// RateLimited creates a rate-limit rejection.
func RateLimited(message string) *Error {
	return New(ErrCodeRateLimited, message, nil)
}

// Sync creates a background sync failure.
func Sync(message string, cause error) *Error {
	return New(ErrCodeSyncFailed, message, cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is an Error with Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if we, ok := err.(*Error); ok {
		return we.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if we, ok := err.(*Error); ok {
		return we.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from an Error.
// Returns empty string if not an Error.
func GetCode(err error) string {
	if we, ok := err.(*Error); ok {
		return we.Code
	}
	return ""
}

// GetCategory extracts the category from an Error.
// Returns empty string if not an Error.
func GetCategory(err error) Category {
	if we, ok := err.(*Error); ok {
		return we.Category
	}
	return ""
}
