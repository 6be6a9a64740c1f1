// Package httpapi serves the REST surface over a service.Backend.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	werrors "github.com/webrecall/webrecall/internal/errors"
)

// respond wraps data in the success envelope.
func respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success":   true,
		"data":      data,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// respondError maps the error taxonomy onto HTTP status codes and emits the
// failure envelope.
func respondError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(err))
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success":   false,
		"error":     err.Error(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func statusFor(err error) int {
	switch werrors.GetCode(err) {
	case werrors.ErrCodeInvalidInput, werrors.ErrCodeBlockedURL:
		return http.StatusBadRequest
	case werrors.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case werrors.ErrCodeNotFound:
		return http.StatusNotFound
	case werrors.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case werrors.ErrCodeFetchHTTP, werrors.ErrCodeFetchNetwork, werrors.ErrCodeFetchMalformed:
		return http.StatusBadGateway
	case werrors.ErrCodeFetchTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
