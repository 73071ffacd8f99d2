package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/abhisek/attune/internal/dialogue"
	"github.com/abhisek/attune/internal/engine"
)

// errorBody is the envelope for every error response.
type errorBody struct {
	Error   string `json:"error"`
	Apology string `json:"apology,omitempty"`
}

// JSON writes v with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, errorBody{Error: message})
}

// fail maps a domain error onto a status code.
func fail(w http.ResponseWriter, err error) {
	var notFound *dialogue.ErrSessionNotFound
	var active *dialogue.ErrSessionActive
	switch {
	case errors.As(err, &notFound):
		JSON(w, http.StatusNotFound, errorBody{Error: "session_not_found", Apology: notFound.Apology()})
	case errors.As(err, &active):
		Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, engine.ErrStopped):
		Error(w, http.StatusServiceUnavailable, "engine_stopped")
	default:
		Error(w, http.StatusInternalServerError, err.Error())
	}
}
