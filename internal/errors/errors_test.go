package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	originalErr := errors.New("disk I/O error")

	// When: wrapping with a structured error
	wrapped := New(ErrCodeStorageFailed, "upsert failed", originalErr)

	// Then: unwrapping returns original error
	require.NotNil(t, wrapped)
	assert.Equal(t, originalErr, errors.Unwrap(wrapped))
	assert.True(t, errors.Is(wrapped, originalErr))
}

func TestError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{
			name:     "contention error",
			code:     ErrCodeStorageBusy,
			message:  "database is locked",
			expected: "[ERR_202_STORAGE_BUSY] database is locked",
		},
		{
			name:     "fetch timeout",
			code:     ErrCodeFetchTimeout,
			message:  "crawler did not answer",
			expected: "[ERR_301_FETCH_TIMEOUT] crawler did not answer",
		},
		{
			name:     "blocked url",
			code:     ErrCodeBlockedURL,
			message:  "url blocked",
			expected: "[ERR_402_BLOCKED_URL] url blocked",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestError_Is_MatchesByCode(t *testing.T) {
	// Given: two errors with same code
	err1 := New(ErrCodeBlockedURL, "url A blocked", nil)
	err2 := New(ErrCodeBlockedURL, "url B blocked", nil)

	// Then: they match by code
	assert.True(t, errors.Is(err1, err2))
}

func TestError_Is_DoesNotMatchDifferentCodes(t *testing.T) {
	err1 := New(ErrCodeBlockedURL, "url blocked", nil)
	err2 := New(ErrCodeInvalidInput, "bad query", nil)

	assert.False(t, errors.Is(err1, err2))
}

func TestError_CategoryFromCode(t *testing.T) {
	tests := []struct {
		code         string
		wantCategory Category
	}{
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodeStorageOpen, CategoryStorage},
		{ErrCodeStorageBusy, CategoryStorage},
		{ErrCodeFetchTimeout, CategoryNetwork},
		{ErrCodeFetchMalformed, CategoryNetwork},
		{ErrCodeInvalidInput, CategoryValidation},
		{ErrCodeBlockedURL, CategoryValidation},
		{ErrCodeEmbedFailed, CategoryInternal},
		{ErrCodeSyncFailed, CategoryInternal},
		{ErrCodeUnauthorized, CategoryAuth},
		{ErrCodeRateLimited, CategoryAuth},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "msg", nil)
			assert.Equal(t, tt.wantCategory, err.Category)
		})
	}
}

func TestError_RetryableFlags(t *testing.T) {
	// Busy/locked and transient network failures are retryable
	assert.True(t, IsRetryable(Contention("database is locked", nil)))
	assert.True(t, IsRetryable(Fetch("timeout", "deadline exceeded", nil)))
	assert.True(t, IsRetryable(Fetch("network", "connection refused", nil)))

	// Everything else is terminal
	assert.False(t, IsRetryable(Storage("schema mismatch", nil)))
	assert.False(t, IsRetryable(Validation("url", "too long")))
	assert.False(t, IsRetryable(Embed("model error", nil)))
	assert.False(t, IsRetryable(nil))
}

func TestError_FatalSeverity(t *testing.T) {
	assert.True(t, IsFatal(New(ErrCodeDiskFull, "no space left", nil)))
	assert.True(t, IsFatal(New(ErrCodeStorageCorrupt, "malformed database", nil)))
	assert.False(t, IsFatal(Contention("busy", nil)))
	assert.False(t, IsFatal(nil))
}

func TestValidation_CarriesFieldDetail(t *testing.T) {
	// Given: a field rejection
	err := Validation("query", "exceeds 1000 characters")

	// Then: field and reason are recorded as details
	assert.Equal(t, "query", err.Details["field"])
	assert.Equal(t, "exceeds 1000 characters", err.Details["reason"])
	assert.Equal(t, ErrCodeInvalidInput, err.Code)
}

func TestBlockedURL_CarriesPattern(t *testing.T) {
	err := BlockedURL("https://x.blocked/p", "*.blocked")

	assert.Equal(t, ErrCodeBlockedURL, err.Code)
	assert.Equal(t, "*.blocked", err.Details["pattern"])
	assert.Contains(t, err.Error(), "*.blocked")
}

func TestFetch_MapsKindToCode(t *testing.T) {
	tests := []struct {
		kind string
		code string
	}{
		{"timeout", ErrCodeFetchTimeout},
		{"http_error", ErrCodeFetchHTTP},
		{"network", ErrCodeFetchNetwork},
		{"malformed", ErrCodeFetchMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			err := Fetch(tt.kind, "boom", nil)
			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, tt.kind, err.Details["kind"])
		})
	}
}

func TestWrap_NilReturnsNil(t *testing.T) {
	var err *Error = Wrap(ErrCodeInternal, nil)
	assert.Nil(t, err)
}

func TestFormatForLog_IncludesDetails(t *testing.T) {
	err := Validation("tag", "illegal characters").WithSuggestion("use letters, digits, spaces, _ or -")

	fields := FormatForLog(err)

	assert.Equal(t, ErrCodeInvalidInput, fields["error_code"])
	assert.Equal(t, "tag", fields["detail_field"])
	assert.Equal(t, "use letters, digits, spaces, _ or -", fields["suggestion"])
}
