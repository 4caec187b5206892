package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/turnstream/turnstream/internal/session"
)

// errorResponse is the only error body shape this API returns:
// {"detail": "..."}.
type errorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeErrorDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

// writeError classifies err into an HTTP status and renders it as
// {"detail": "..."}. AlreadyRunning and SequenceViolation are
// internal-only error kinds that should never reach this boundary
// unmasked; if one does, it falls through to 500 like any other
// unclassified error.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, ErrValidationError):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, ErrCancelled):
		status = http.StatusServiceUnavailable
	}
	writeErrorDetail(w, status, err.Error())
}
