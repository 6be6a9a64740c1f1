// Package errors provides structured error handling for webrecall.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Storage errors (database, disk)
//   - 3XX: Fetch/network errors (upstream crawler)
//   - 4XX: Validation and blocklist errors
//   - 5XX: Internal errors (embedding, search, sync)
//   - 6XX: Auth and rate-limit errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStorage indicates database and disk errors.
	CategoryStorage Category = "STORAGE"
	// CategoryNetwork indicates upstream fetch and network errors.
	CategoryNetwork Category = "NETWORK"
	// CategoryValidation indicates input validation and blocklist rejections.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
	// CategoryAuth indicates authentication and rate-limit errors.
	CategoryAuth Category = "AUTH"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigInvalid  = "ERR_101_CONFIG_INVALID"
	ErrCodeConfigNotFound = "ERR_102_CONFIG_NOT_FOUND"

	// Storage errors (200-299)
	ErrCodeStorageOpen    = "ERR_201_STORAGE_OPEN"
	ErrCodeStorageBusy    = "ERR_202_STORAGE_BUSY"
	ErrCodeDiskFull       = "ERR_203_DISK_FULL"
	ErrCodeStorageCorrupt = "ERR_204_STORAGE_CORRUPT"
	ErrCodeNotFound       = "ERR_205_NOT_FOUND"
	ErrCodeStorageFailed  = "ERR_206_STORAGE_FAILED"

	// Fetch errors (300-399)
	ErrCodeFetchTimeout   = "ERR_301_FETCH_TIMEOUT"
	ErrCodeFetchHTTP      = "ERR_302_FETCH_HTTP"
	ErrCodeFetchNetwork   = "ERR_303_FETCH_NETWORK"
	ErrCodeFetchMalformed = "ERR_304_FETCH_MALFORMED"

	// Validation errors (400-499)
	ErrCodeInvalidInput = "ERR_401_INVALID_INPUT"
	ErrCodeBlockedURL   = "ERR_402_BLOCKED_URL"

	// Internal errors (500-599)
	ErrCodeInternal     = "ERR_501_INTERNAL"
	ErrCodeEmbedFailed  = "ERR_502_EMBED_FAILED"
	ErrCodeSearchFailed = "ERR_503_SEARCH_FAILED"
	ErrCodeSyncFailed   = "ERR_504_SYNC_FAILED"

	// Auth errors (600-699)
	ErrCodeUnauthorized = "ERR_601_UNAUTHORIZED"
	ErrCodeRateLimited  = "ERR_602_RATE_LIMITED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "201" from "ERR_201_STORAGE_OPEN")
	numStr := code[4:7]
	if len(numStr) < 1 {
		return CategoryInternal
	}

	switch numStr[0] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStorage
	case '3':
		return CategoryNetwork
	case '4':
		return CategoryValidation
	case '6':
		return CategoryAuth
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	// Fatal errors
	switch code {
	case ErrCodeDiskFull, ErrCodeStorageCorrupt:
		return SeverityFatal
	}

	// Retryable errors get warning severity
	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeStorageBusy, ErrCodeFetchTimeout, ErrCodeFetchNetwork:
		return true
	default:
		return false
	}
}
