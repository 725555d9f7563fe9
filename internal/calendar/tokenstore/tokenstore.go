// Package tokenstore persists the OAuth tokens of connected calendar accounts.
package tokenstore

import (
	"context"
	"errors"
	"time"

	"golang.org/x/oauth2"
)

// Store errors.
var (
	ErrAccountNotFound = errors.New("calendar account not found")
	ErrInvalidAccount  = errors.New("calendar account email is required")
)

// Account is one connected calendar account and its token.
type Account struct {
	Email string `yaml:"email"`
	Label string `yaml:"label,omitempty"`
	Color string `yaml:"color,omitempty"`

	AccessToken  string    `yaml:"access_token"`
	RefreshToken string    `yaml:"refresh_token,omitempty"`
	TokenType    string    `yaml:"token_type,omitempty"`
	Expiry       time.Time `yaml:"expiry,omitempty"`

	UpdatedAt time.Time `yaml:"updated_at"`
}

// Token returns the account's OAuth token.
func (a *Account) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  a.AccessToken,
		RefreshToken: a.RefreshToken,
		TokenType:    a.TokenType,
		Expiry:       a.Expiry,
	}
}

// SetToken copies tok into the account. An empty refresh token keeps the
// stored one; providers only send it on first consent.
func (a *Account) SetToken(tok *oauth2.Token) {
	a.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		a.RefreshToken = tok.RefreshToken
	}
	a.TokenType = tok.TokenType
	a.Expiry = tok.Expiry
}

// Store defines the interface for account persistence.
type Store interface {
	// List returns every stored account ordered by email.
	List(ctx context.Context) ([]*Account, error)

	// Get returns one account.
	Get(ctx context.Context, email string) (*Account, error)

	// Save creates or replaces an account.
	Save(ctx context.Context, account *Account) error

	// Delete removes an account.
	Delete(ctx context.Context, email string) error
}

func copyAccount(a *Account) *Account {
	c := *a
	return &c
}
