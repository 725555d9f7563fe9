package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidewatch/tidewatch/internal/auth"
)

func newService(key, issuer, audience string) *auth.TokenService {
	return auth.NewTokenService(auth.Config{
		SigningKey: key,
		Issuer:     issuer,
		Audience:   audience,
	})
}

func TestTokenService_IssueAndValidate(t *testing.T) {
	svc := newService("test-secret-key-for-testing-only", "", "")

	token, expiresAt, err := svc.Issue("kitchen-display", time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "kitchen-display", claims.Subject)
	assert.Equal(t, "tidewatch", claims.Issuer)
	assert.True(t, claims.HasScope(auth.ScopeRefresh))
	assert.True(t, claims.HasScope(auth.ScopeVisibility))
}

func TestTokenService_Scopes(t *testing.T) {
	svc := newService("test-key", "", "")

	token, _, err := svc.Issue("automation", 0, auth.ScopeRefresh)
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.True(t, claims.HasScope(auth.ScopeRefresh))
	assert.False(t, claims.HasScope(auth.ScopeVisibility))
}

func TestTokenService_InvalidToken(t *testing.T) {
	svc := newService("test-key", "", "")

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"malformed token", "not.a.valid.jwt"},
		{"invalid base64", "xxx.yyy.zzz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Validate(tt.token)
			assert.ErrorIs(t, err, auth.ErrInvalidToken)
		})
	}
}

func TestTokenService_Mismatches(t *testing.T) {
	token, _, err := newService("key-one", "issuer-one", "audience-one").Issue("display", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name string
		svc  *auth.TokenService
	}{
		{"wrong key", newService("key-two", "issuer-one", "audience-one")},
		{"wrong issuer", newService("key-one", "issuer-two", "audience-one")},
		{"wrong audience", newService("key-one", "issuer-one", "audience-two")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.svc.Validate(token)
			assert.ErrorIs(t, err, auth.ErrInvalidToken)
		})
	}
}

func TestTokenService_Expired(t *testing.T) {
	now := time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)
	svc := auth.NewTokenService(auth.Config{
		SigningKey: "test-key",
		Now:        func() time.Time { return now },
	})

	token, _, err := svc.Issue("display", time.Minute)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
}

func TestTokenService_Disabled(t *testing.T) {
	svc := newService("", "", "")
	assert.False(t, svc.Enabled())

	_, _, err := svc.Issue("display", time.Hour)
	assert.ErrorIs(t, err, auth.ErrNoSigningKey)

	_, err = svc.Validate("anything")
	assert.ErrorIs(t, err, auth.ErrNoSigningKey)
}
