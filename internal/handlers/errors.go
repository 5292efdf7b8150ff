package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/crucial707/hci-undo/internal/undo"
)

// ErrMessageInternal is the generic message for 500 responses. Do not expose internal details to clients.
const ErrMessageInternal = "internal server error"

// JSONError sends a JSON error response with a single "error" field.
func JSONError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

// JSONValidationError sends a JSON error response with "error" and optional "fields" for field-level details.
// status is typically http.StatusBadRequest (400).
func JSONValidationError(w http.ResponseWriter, message string, fields map[string]string, status int) {
	out := map[string]interface{}{"error": message}
	if len(fields) > 0 {
		out["fields"] = fields
	}
	writeJSON(w, status, out)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// undoErrorStatus maps engine errors to HTTP status codes.
func undoErrorStatus(err error) int {
	switch {
	case errors.Is(err, undo.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, undo.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, undo.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, undo.ErrExpired):
		return http.StatusGone
	case errors.Is(err, undo.ErrUnreversible), errors.Is(err, undo.ErrUnsupportedResource):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
