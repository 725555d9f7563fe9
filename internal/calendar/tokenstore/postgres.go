package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the accounts table.
const Schema = `
CREATE TABLE IF NOT EXISTS calendar_accounts (
	email         TEXT PRIMARY KEY,
	label         TEXT NOT NULL DEFAULT '',
	color         TEXT NOT NULL DEFAULT '',
	access_token  TEXT NOT NULL,
	refresh_token TEXT NOT NULL DEFAULT '',
	token_type    TEXT NOT NULL DEFAULT '',
	expiry        TIMESTAMPTZ,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore is a PostgreSQL implementation of Store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL token store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the accounts table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create calendar_accounts: %w", err)
	}
	return nil
}

const selectAccount = `
	SELECT email, label, color, access_token, refresh_token, token_type, expiry, updated_at
	FROM calendar_accounts
`

// List returns every stored account ordered by email.
func (s *PostgresStore) List(ctx context.Context) ([]*Account, error) {
	rows, err := s.pool.Query(ctx, selectAccount+` ORDER BY email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return accounts, nil
}

// Get returns one account.
func (s *PostgresStore) Get(ctx context.Context, email string) (*Account, error) {
	a, err := scanAccount(s.pool.QueryRow(ctx, selectAccount+` WHERE email = $1`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	return a, err
}

// Save creates or replaces an account.
func (s *PostgresStore) Save(ctx context.Context, account *Account) error {
	if account == nil || account.Email == "" {
		return ErrInvalidAccount
	}

	query := `
		INSERT INTO calendar_accounts (email, label, color, access_token, refresh_token, token_type, expiry, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (email) DO UPDATE SET
			label = EXCLUDED.label,
			color = EXCLUDED.color,
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_type = EXCLUDED.token_type,
			expiry = EXCLUDED.expiry,
			updated_at = now()
	`

	var expiry any
	if !account.Expiry.IsZero() {
		expiry = account.Expiry
	}
	_, err := s.pool.Exec(ctx, query,
		account.Email,
		account.Label,
		account.Color,
		account.AccessToken,
		account.RefreshToken,
		account.TokenType,
		expiry,
	)
	return err
}

// Delete removes an account.
func (s *PostgresStore) Delete(ctx context.Context, email string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM calendar_accounts WHERE email = $1`, email)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func scanAccount(row pgx.Row) (*Account, error) {
	var (
		a      Account
		expiry *time.Time
	)
	err := row.Scan(
		&a.Email,
		&a.Label,
		&a.Color,
		&a.AccessToken,
		&a.RefreshToken,
		&a.TokenType,
		&expiry,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if expiry != nil {
		a.Expiry = *expiry
	}
	return &a, nil
}
