package handler

import (
	"encoding/json"
	"net/http"

	"github.com/mmeshcher/link-tracker/internal/models"
)

func (h *Handler) CreateHandler(rw http.ResponseWriter, r *http.Request) {
	var req models.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(rw, http.StatusBadRequest, msgInvalidJSON)
		return
	}

	resp, err := h.service.Create(r.Context(), r.Header.Get(apiKeyHeader), req)
	if err != nil {
		h.writeServiceError(rw, r, err)
		return
	}

	writeJSON(rw, http.StatusCreated, resp)
}
