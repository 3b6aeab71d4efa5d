package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bryan-buckman/frontpage/internal/database"
	"github.com/bryan-buckman/frontpage/internal/story"
	log "github.com/sirupsen/logrus"
)

// badRequest is a client error whose message is safe to return as is.
type badRequest string

func (e badRequest) Error() string { return string(e) }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("Error encoding response")
	}
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	var br badRequest
	switch {
	case errors.As(err, &br),
		errors.Is(err, story.ErrInvalidCursor),
		errors.Is(err, story.ErrInvalidBatchSize),
		errors.Is(err, database.ErrMissingFeedID),
		errors.Is(err, database.ErrMissingURL),
		errors.Is(err, database.ErrInvalidURL):
		return http.StatusBadRequest
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, database.ErrDuplicateFeed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.WithError(err).Error("Request failed")
		msg = "Internal server error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}
