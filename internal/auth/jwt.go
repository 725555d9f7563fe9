// Package auth issues and validates the bearer tokens that guard the
// dashboard control endpoints.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token defaults.
const (
	// DefaultTokenTTL is used when Issue is given no TTL.
	DefaultTokenTTL = 24 * time.Hour

	// DefaultAudience is the audience claim on every control token.
	DefaultAudience = "tidewatch-control"
)

// Scopes a control token can grant.
const (
	ScopeRefresh    = "refresh"
	ScopeVisibility = "visibility"
)

// AllScopes is granted when Issue is given none.
var AllScopes = []string{ScopeRefresh, ScopeVisibility}

var (
	ErrInvalidToken = errors.New("invalid control token")
	ErrTokenExpired = errors.New("control token has expired")
	ErrMissingScope = errors.New("control token lacks required scope")
	ErrNoSigningKey = errors.New("no signing key configured")
)

// Claims are the claims in a control token. Subject names the display or
// automation holding the token.
type Claims struct {
	jwt.RegisteredClaims

	Scopes []string `json:"scp"`
}

// HasScope reports whether the token grants scope.
func (c *Claims) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Config holds configuration for a TokenService.
type Config struct {
	// SigningKey is the HS256 secret. Empty disables issuing and validation.
	SigningKey string

	// Issuer is the issuer claim (default "tidewatch").
	Issuer string

	// Audience is the audience claim (default DefaultAudience).
	Audience string

	// Now overrides the clock for expiry checks.
	Now func() time.Time
}

// TokenService handles control token creation and validation.
type TokenService struct {
	signingKey []byte
	issuer     string
	audience   string
	now        func() time.Time
}

// NewTokenService creates a TokenService.
func NewTokenService(cfg Config) *TokenService {
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = "tidewatch"
	}
	audience := cfg.Audience
	if audience == "" {
		audience = DefaultAudience
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &TokenService{
		signingKey: []byte(cfg.SigningKey),
		issuer:     issuer,
		audience:   audience,
		now:        now,
	}
}

// Enabled reports whether a signing key is configured.
func (s *TokenService) Enabled() bool {
	return len(s.signingKey) > 0
}

// Issue signs a token for subject. Zero ttl uses DefaultTokenTTL and no
// scopes grants AllScopes.
func (s *TokenService) Issue(subject string, ttl time.Duration, scopes ...string) (string, time.Time, error) {
	if !s.Enabled() {
		return "", time.Time{}, ErrNoSigningKey
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	if len(scopes) == 0 {
		scopes = AllScopes
	}

	now := s.now()
	expiresAt := now.Add(ttl)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			ID:        generateTokenID(),
		},
		Scopes: scopes,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing control token: %w", err)
	}

	return tokenString, expiresAt, nil
}

// Validate parses a token and returns its claims.
func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	if !s.Enabled() {
		return nil, ErrNoSigningKey
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidToken, err.Error())
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func generateTokenID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(bytes)
}
