package handler

import "net/http"

// StatsHandler dumps every link regardless of status.
func (h *Handler) StatsHandler(rw http.ResponseWriter, r *http.Request) {
	links, err := h.service.Stats(r.Context())
	if err != nil {
		h.writeServiceError(rw, r, err)
		return
	}

	writeJSON(rw, http.StatusOK, links)
}
