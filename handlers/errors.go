// Package handlers implements the HTTP surface of the movie backend.
package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"

	"cinemood/models"
	"cinemood/services/llm"
	"cinemood/services/metadata"
	"cinemood/services/mood"
	"cinemood/services/recommend"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[handlers] encode response: %v", err)
	}
}

// writeError emits the uniform envelope. Server-side failures get a trace id
// that is also logged, so a reported trace can be found in the logs.
func writeError(w http.ResponseWriter, status int, message, hint, dependency string) {
	apiErr := models.APIError{Code: status, Message: message, Hint: hint, Dependency: dependency}
	if status >= 500 {
		apiErr.TraceID = uuid.NewString()
		log.Printf("[handlers] %d %s trace_id=%s dependency=%s", status, message, apiErr.TraceID, dependency)
	}
	writeJSON(w, status, apiErr)
}

// writeServiceError maps service-layer sentinels onto HTTP responses.
func writeServiceError(w http.ResponseWriter, err error) {
	var statusErr *metadata.StatusError
	switch {
	case errors.Is(err, metadata.ErrInvalidRegion):
		writeError(w, http.StatusBadRequest, "unsupported region", "see /api/regions for the supported set", "")
	case errors.Is(err, mood.ErrMissingMood):
		writeError(w, http.StatusBadRequest, "mood parameter is required", "pass ?mood=happy or another supported mood", "")
	case errors.Is(err, mood.ErrUnknownMood):
		writeError(w, http.StatusBadRequest, "unknown mood", "see /api/moods for the supported set", "")
	case errors.Is(err, recommend.ErrNoMatch):
		writeError(w, http.StatusBadGateway, "no matching movies found", "try describing the mood differently", "")
	case errors.Is(err, recommend.ErrLLM), errors.Is(err, llm.ErrUnavailable):
		writeError(w, http.StatusBadGateway, "mood analysis is temporarily unavailable", "retry shortly", "llm")
	case errors.As(err, &statusErr):
		if statusErr.Code == http.StatusNotFound {
			writeError(w, http.StatusNotFound, "movie not found", "", "")
			return
		}
		writeError(w, http.StatusBadGateway, "metadata provider rejected the request", "", "tmdb")
	case errors.Is(err, metadata.ErrUpstream):
		writeError(w, http.StatusBadGateway, "metadata provider is unavailable", "retry shortly", "tmdb")
	default:
		writeError(w, http.StatusInternalServerError, "internal error", "", "")
	}
}

// RecoverMiddleware converts handler panics into 500 envelopes.
func RecoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("[handlers] panic serving %s %s: %v", r.Method, r.URL.Path, rec)
				writeError(w, http.StatusInternalServerError, "internal error", "", "")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
