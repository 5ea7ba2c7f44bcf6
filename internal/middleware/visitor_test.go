package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVisitor(t *testing.T) {
	type want struct {
		visitorID string
		newCookie bool
	}

	tests := []struct {
		name   string
		cookie *http.Cookie
		secure bool
		want   want
	}{
		{
			name: "positive: no cookie issues a new id",
			want: want{newCookie: true},
		},
		{
			name:   "positive: secure cookie",
			secure: true,
			want:   want{newCookie: true},
		},
		{
			name:   "positive: existing cookie is reused",
			cookie: &http.Cookie{Name: VisitorCookieName, Value: "returning-visitor"},
			want:   want{visitorID: "returning-visitor"},
		},
		{
			name:   "negative: oversized cookie is replaced",
			cookie: &http.Cookie{Name: VisitorCookieName, Value: strings.Repeat("a", maxVisitorIDLen+1)},
			want:   want{newCookie: true},
		},
		{
			name:   "negative: other cookies are ignored",
			cookie: &http.Cookie{Name: "session", Value: "x"},
			want:   want{newCookie: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				id, ok := VisitorIDFromContext(r.Context())
				require.True(t, ok)
				seen = id
			})

			req := httptest.NewRequest(http.MethodGet, "/abc", nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			w := httptest.NewRecorder()

			Visitor(tt.secure)(next).ServeHTTP(w, req)

			result := w.Result()
			defer result.Body.Close()

			cookies := result.Cookies()
			if !tt.want.newCookie {
				assert.Empty(t, cookies)
				assert.Equal(t, tt.want.visitorID, seen)
				return
			}

			require.Len(t, cookies, 1)
			c := cookies[0]
			assert.Equal(t, VisitorCookieName, c.Name)
			assert.Equal(t, seen, c.Value)
			_, err := uuid.Parse(c.Value)
			assert.NoError(t, err)
			assert.Equal(t, "/", c.Path)
			assert.Equal(t, int(visitorCookieAge.Seconds()), c.MaxAge)
			assert.True(t, c.HttpOnly)
			assert.Equal(t, tt.secure, c.Secure)
			assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
		})
	}
}

func TestVisitorIDFromContextMissing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	_, ok := VisitorIDFromContext(req.Context())
	assert.False(t, ok)
}
