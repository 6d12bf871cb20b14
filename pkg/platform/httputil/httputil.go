// Package httputil centralizes JSON response writing so every endpoint
// returns the same envelope shapes.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"auditstream/pkg/platform/sentinel"
)

// errorResponse is the uniform error envelope.
type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates an error into the uniform envelope. Unrecognized
// errors map to 500 with the description omitted so internals never leak.
func WriteError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		WriteJSON(w, http.StatusNotFound, errorResponse{Error: "not_found", ErrorDescription: err.Error()})
	case errors.Is(err, sentinel.ErrUnavailable):
		WriteJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "service_unavailable", ErrorDescription: err.Error()})
	default:
		WriteJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal_error"})
	}
}

// WriteBadRequest reports a caller mistake with a human-readable description.
func WriteBadRequest(w http.ResponseWriter, description string) {
	WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "bad_request", ErrorDescription: description})
}
