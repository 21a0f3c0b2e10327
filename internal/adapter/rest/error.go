package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/deckardhq/deckard/internal/entity"
)

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps domain sentinels to HTTP status codes. Unknown errors
// are internal; their details stay out of the response body.
func statusFor(err error) int {
	switch {
	case errors.Is(err, entity.ErrDeckNotFound),
		errors.Is(err, entity.ErrCardNotFound),
		errors.Is(err, entity.ErrSchedulerStateNotFound),
		errors.Is(err, entity.ErrSessionNotFound),
		errors.Is(err, entity.ErrImportJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrNotDeckOwner),
		errors.Is(err, entity.ErrNotSessionOwner):
		return http.StatusForbidden
	case errors.Is(err, entity.ErrInvalidReviewResponse),
		errors.Is(err, entity.ErrInvalidCardText),
		errors.Is(err, entity.ErrInvalidImportFormat),
		errors.Is(err, entity.ErrInvalidImportContent):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrSessionAlreadyEnded),
		errors.Is(err, entity.ErrDuplicateCardFront):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.WithError(err).Error("request failed")
		message = "internal error"
	}
	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
