package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"specd/internal/manager"
	"specd/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// Client facing messages for lookups that miss.
const (
	msgFileNotFound  = "File not found"
	msgModelNotFound = "Model not found"
)

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

// errorStatus maps well-known service errors to an HTTP status and message.
func errorStatus(err error) (int, string) {
	var he HTTPError
	var mbe *http.MaxBytesError
	switch {
	case manager.IsMissingField(err), manager.IsInvalidInput(err):
		return http.StatusBadRequest, err.Error()
	case manager.IsModelNotFound(err):
		return http.StatusNotFound, msgModelNotFound
	case manager.IsNotFound(err):
		return http.StatusNotFound, msgFileNotFound
	case manager.IsTooBusy(err):
		return http.StatusTooManyRequests, err.Error()
	case manager.IsDependencyUnavailable(err):
		return http.StatusServiceUnavailable, err.Error()
	case errors.As(err, &mbe):
		return http.StatusRequestEntityTooLarge, "request body too large"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, err.Error()
	case errors.As(err, &he):
		return he.StatusCode(), he.Error()
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

// writeServiceError maps err and writes it, counting 429s as backpressure.
func writeServiceError(w http.ResponseWriter, err error, reason string) int {
	status, msg := errorStatus(err)
	if status == http.StatusTooManyRequests {
		IncrementBackpressure(reason)
	}
	writeJSONError(w, status, msg)
	return status
}
