package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type contextKey string

const visitorIDKey contextKey = "visitorID"

const (
	VisitorCookieName = "user_id"
	visitorCookieAge  = 365 * 24 * time.Hour
	maxVisitorIDLen   = 128
)

// Visitor makes sure every request carries a visitor id. An existing user_id
// cookie is trusted as is; otherwise a new id is issued and set on the
// response.
func Visitor(secure bool) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			visitorID, ok := visitorFromCookie(r)
			if !ok {
				visitorID = uuid.NewString()
				setVisitorCookie(w, visitorID, secure)
			}

			ctx := context.WithValue(r.Context(), visitorIDKey, visitorID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func visitorFromCookie(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(VisitorCookieName)
	if err != nil {
		return "", false
	}
	if cookie.Value == "" || len(cookie.Value) > maxVisitorIDLen {
		return "", false
	}
	return cookie.Value, true
}

func setVisitorCookie(w http.ResponseWriter, visitorID string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     VisitorCookieName,
		Value:    visitorID,
		Path:     "/",
		MaxAge:   int(visitorCookieAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func VisitorIDFromContext(ctx context.Context) (string, bool) {
	visitorID, ok := ctx.Value(visitorIDKey).(string)
	return visitorID, ok && visitorID != ""
}
