package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/link-tracker/internal/models"
	"github.com/mmeshcher/link-tracker/internal/service"
)

const (
	msgInvalidJSON      = "Invalid JSON"
	msgURLRequired      = "URL is required"
	msgTokenInvalid     = "Token is invalid"
	msgLinkNotFound     = "Link not found"
	msgIdentityMissing  = "Oops something went wrong"
	msgInternal         = "Internal server error"
	msgNotFound         = "Not found"
	msgMethodNotAllowed = "Method not allowed"
)

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func writeError(rw http.ResponseWriter, status int, msg string) {
	writeJSON(rw, status, models.ErrorResponse{Error: msg})
}

// writeServiceError maps err to a status code. Unexpected errors are logged
// and answered without detail.
func (h *Handler) writeServiceError(rw http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrEmptyURL):
		writeError(rw, http.StatusBadRequest, msgURLRequired)
	case errors.Is(err, service.ErrValidation):
		writeError(rw, http.StatusBadRequest, validationMessage(err))
	case errors.Is(err, service.ErrInvalidAPIKey):
		writeError(rw, http.StatusForbidden, msgTokenInvalid)
	case errors.Is(err, service.ErrLinkNotFound):
		writeError(rw, http.StatusNotFound, msgLinkNotFound)
	case errors.Is(err, service.ErrIdentityMissing):
		writeError(rw, http.StatusNotFound, msgIdentityMissing)
	default:
		h.logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeError(rw, http.StatusInternalServerError, msgInternal)
	}
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrEmptyShortID):
		return "short_id is required"
	case errors.Is(err, service.ErrInvalidStatus):
		return "Status is invalid"
	}
	return "Bad request"
}
