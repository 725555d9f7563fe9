package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// FileStore keeps accounts in a YAML file readable only by the owner.
type FileStore struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

type fileDocument struct {
	Accounts []*Account `yaml:"accounts"`
}

// NewFileStore creates a store backed by path. The file is created on the
// first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

// List returns every stored account ordered by email.
func (s *FileStore) List(_ context.Context) ([]*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.load()
	if err != nil {
		return nil, err
	}
	return sortedCopies(accounts), nil
}

// Get returns one account.
func (s *FileStore) Get(_ context.Context, email string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.load()
	if err != nil {
		return nil, err
	}
	a, ok := accounts[email]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return a, nil
}

// Save creates or replaces an account.
func (s *FileStore) Save(_ context.Context, account *Account) error {
	if account == nil || account.Email == "" {
		return ErrInvalidAccount
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.load()
	if err != nil {
		return err
	}
	c := copyAccount(account)
	c.UpdatedAt = s.now()
	accounts[c.Email] = c
	return s.write(accounts)
}

// Delete removes an account.
func (s *FileStore) Delete(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := accounts[email]; !ok {
		return ErrAccountNotFound
	}
	delete(accounts, email)
	return s.write(accounts)
}

func (s *FileStore) load() (map[string]*Account, error) {
	accounts := make(map[string]*Account)

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return accounts, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}

	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse token file %s: %w", s.path, err)
	}
	for _, a := range doc.Accounts {
		if a != nil && a.Email != "" {
			accounts[a.Email] = a
		}
	}
	return accounts, nil
}

// write replaces the file atomically via a temp file in the same directory.
func (s *FileStore) write(accounts map[string]*Account) error {
	data, err := yaml.Marshal(fileDocument{Accounts: sortedCopies(accounts)})
	if err != nil {
		return fmt.Errorf("encode token file: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tokens-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp token file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write token file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close token file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace token file: %w", err)
	}
	return nil
}
