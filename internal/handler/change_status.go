package handler

import (
	"encoding/json"
	"net/http"

	"github.com/mmeshcher/link-tracker/internal/models"
)

func (h *Handler) ChangeStatusHandler(rw http.ResponseWriter, r *http.Request) {
	var req models.ChangeStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(rw, http.StatusBadRequest, msgInvalidJSON)
		return
	}

	if err := h.service.ChangeStatus(r.Context(), r.Header.Get(apiKeyHeader), req); err != nil {
		h.writeServiceError(rw, r, err)
		return
	}

	writeJSON(rw, http.StatusOK, models.MessageResponse{Message: "Updated"})
}
