package handler

import (
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/link-tracker/internal/middleware"
	"github.com/mmeshcher/link-tracker/internal/models"
)

func (h *Handler) RedirectHandler(rw http.ResponseWriter, r *http.Request) {
	shortID := chi.URLParam(r, "shortID")

	visitorID, ok := middleware.VisitorIDFromContext(r.Context())
	if !ok {
		writeError(rw, http.StatusNotFound, msgIdentityMissing)
		return
	}

	destination, err := h.service.Redirect(r.Context(), shortID, models.Visitor{
		ID: visitorID,
		IP: clientIP(r),
	})
	if err != nil {
		h.writeServiceError(rw, r, err)
		return
	}

	http.Redirect(rw, r, destination, http.StatusFound)
}

// clientIP returns the host part of RemoteAddr, which chi's RealIP may
// already have replaced with a bare address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
