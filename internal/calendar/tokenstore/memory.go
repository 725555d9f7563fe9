package tokenstore

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory implementation of Store.
// This is intended for testing and for one-shot runs.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*Account
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[string]*Account), now: time.Now}
}

// List returns every stored account ordered by email.
func (s *MemoryStore) List(_ context.Context) ([]*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedCopies(s.accounts), nil
}

// Get returns one account.
func (s *MemoryStore) Get(_ context.Context, email string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[email]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return copyAccount(a), nil
}

// Save creates or replaces an account.
func (s *MemoryStore) Save(_ context.Context, account *Account) error {
	if account == nil || account.Email == "" {
		return ErrInvalidAccount
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c := copyAccount(account)
	c.UpdatedAt = s.now()
	s.accounts[c.Email] = c
	return nil
}

// Delete removes an account.
func (s *MemoryStore) Delete(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[email]; !ok {
		return ErrAccountNotFound
	}
	delete(s.accounts, email)
	return nil
}

func sortedCopies(accounts map[string]*Account) []*Account {
	out := make([]*Account, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, copyAccount(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out
}
