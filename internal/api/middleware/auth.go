package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/tidewatch/tidewatch/internal/api/models"
	"github.com/tidewatch/tidewatch/internal/auth"
)

type subjectKey struct{}

// TokenValidator validates control tokens.
type TokenValidator interface {
	Enabled() bool
	Validate(token string) (*auth.Claims, error)
}

// ControlAuth requires a bearer control token granting scope. When the
// validator has no signing key every request passes.
func ControlAuth(validator TokenValidator, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if validator == nil || !validator.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeUnauthorized(w, r, "missing authorization header")
				return
			}

			const bearerPrefix = "Bearer "
			if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
				writeUnauthorized(w, r, "invalid authorization header format")
				return
			}

			token := strings.TrimSpace(header[len(bearerPrefix):])
			if token == "" {
				writeUnauthorized(w, r, "missing bearer token")
				return
			}

			claims, err := validator.Validate(token)
			if err != nil {
				switch {
				case errors.Is(err, auth.ErrTokenExpired):
					writeUnauthorized(w, r, "control token has expired")
				case errors.Is(err, auth.ErrInvalidToken):
					writeUnauthorized(w, r, "invalid control token")
				default:
					writeUnauthorized(w, r, "authentication failed")
				}
				return
			}

			if scope != "" && !claims.HasScope(scope) {
				models.NewForbidden(GetRequestID(r.Context()), "token does not grant "+scope).
					WithInstance(r.URL.Path).
					Write(w)
				return
			}

			ctx := context.WithValue(r.Context(), subjectKey{}, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeUnauthorized lives here rather than in response to avoid an import cycle.
func writeUnauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="tidewatch"`)
	models.NewUnauthorized(GetRequestID(r.Context()), detail).
		WithInstance(r.URL.Path).
		Write(w)
}

// GetSubject returns the control token subject, or "" when unauthenticated.
func GetSubject(ctx context.Context) string {
	if s, ok := ctx.Value(subjectKey{}).(string); ok {
		return s
	}
	return ""
}
