package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"timelock-backend/internal/models"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 1 << 20

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}

// respondJSON sends body as JSON with the given status
func respondJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// respondServiceError maps err to a status by its kind and logs it. Internal
// details are only logged, never returned.
func respondServiceError(w http.ResponseWriter, err error, event *zerolog.Event, msg string) {
	status := statusFor(err)
	event.Err(err).Int("status", status).Msg(msg)
	respondError(w, models.MessageOf(err), status)
}

// logFor returns a log event at a level matching how bad err is
func logFor(err error) *zerolog.Event {
	switch models.KindOf(err) {
	case models.KindInternal, models.KindUnavailable:
		return log.Error()
	default:
		return log.Info()
	}
}

func statusFor(err error) int {
	switch models.KindOf(err) {
	case models.KindValidation:
		return http.StatusBadRequest
	case models.KindConflict:
		return http.StatusConflict
	case models.KindAuthorization:
		return http.StatusForbidden
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON decodes the request body into dst, rejecting unknown fields
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			respondError(w, "Request body too large", http.StatusRequestEntityTooLarge)
		case errors.Is(err, io.EOF):
			respondError(w, "Request body required", http.StatusBadRequest)
		default:
			respondError(w, "Invalid request body", http.StatusBadRequest)
		}
		return false
	}
	return true
}
