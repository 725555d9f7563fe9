package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidewatch/tidewatch/internal/api/middleware"
	"github.com/tidewatch/tidewatch/internal/auth"
)

func TestControlAuth(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	tokens := auth.NewTokenService(auth.Config{
		SigningKey: "middleware-test-key",
		Now:        func() time.Time { return now },
	})

	issue := func(ttl time.Duration, scopes ...string) string {
		token, _, err := tokens.Issue("hallway", ttl, scopes...)
		require.NoError(t, err)
		return token
	}
	expired := issue(time.Minute)
	now = now.Add(time.Hour)

	tests := []struct {
		name    string
		header  string
		status  int
		subject string
	}{
		{"missing header", "", http.StatusUnauthorized, ""},
		{"basic auth", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, ""},
		{"empty bearer", "Bearer ", http.StatusUnauthorized, ""},
		{"invalid token", "Bearer nope", http.StatusUnauthorized, ""},
		{"expired", "Bearer " + expired, http.StatusUnauthorized, ""},
		{"missing scope", "Bearer " + issue(time.Hour, auth.ScopeVisibility), http.StatusForbidden, ""},
		{"granted", "Bearer " + issue(time.Hour, auth.ScopeRefresh), http.StatusOK, "hallway"},
		{"lowercase scheme", "bearer " + issue(time.Hour), http.StatusOK, "hallway"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var subject string
			h := middleware.ControlAuth(tokens, auth.ScopeRefresh)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				subject = middleware.GetSubject(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodPost, "/v1/dashboard/refresh", http.NoBody)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.subject, subject)
			if tt.status == http.StatusUnauthorized {
				assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Bearer")
			}
		})
	}
}

func TestControlAuth_DisabledPassesThrough(t *testing.T) {
	for _, validator := range []middleware.TokenValidator{nil, auth.NewTokenService(auth.Config{})} {
		h := middleware.ControlAuth(validator, auth.ScopeRefresh)(http.HandlerFunc(okHandler))

		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/dashboard/refresh", http.NoBody))

		assert.Equal(t, http.StatusOK, w.Code)
	}
}
