package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/snaka/mioportal/internal/domain"
	"github.com/snaka/mioportal/internal/ports"
)

const (
	storeDirMode  = 0o700
	storeFileMode = 0o600

	credentialsFile = "credentials.json"
)

// Store is the plaintext-file fallback used when no password store is
// available. The file sits in the app's private directory with 0600
// permissions. An older release kept the file at an unscoped location; Load
// migrates it into the scoped path transparently.
type Store struct {
	root       string
	legacyPath string
	mu         sync.RWMutex
}

var _ ports.CredentialStore = (*Store)(nil)

func NewStore(root string) *Store {
	return &Store{root: filepath.Clean(root)}
}

// NewStoreWithLegacy also checks legacyPath on Load and migrates its
// contents into root.
func NewStoreWithLegacy(root, legacyPath string) *Store {
	return &Store{root: filepath.Clean(root), legacyPath: filepath.Clean(legacyPath)}
}

type storedCredentials struct {
	MioID    string `json:"mioId"`
	Password string `json:"password"`
}

func (s *Store) Load(ctx context.Context) (domain.Credentials, error) {
	if err := ctx.Err(); err != nil {
		return domain.Credentials{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path())
	if errors.Is(err, os.ErrNotExist) {
		data, err = s.migrateLegacyLocked()
	}
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.Credentials{}, domain.ErrCredentialNotFound
		}
		return domain.Credentials{}, fmt.Errorf("read credential file: %w", err)
	}

	var stored storedCredentials
	if err := json.Unmarshal(data, &stored); err != nil {
		return domain.Credentials{}, fmt.Errorf("decode credential file: %w", err)
	}

	creds := domain.Credentials{MioID: stored.MioID, Password: stored.Password}
	if !creds.Valid() {
		return domain.Credentials{}, domain.ErrCredentialNotFound
	}
	return creds, nil
}

// migrateLegacyLocked imports the pre-scoping credential file, writes it to
// the scoped path, and removes the original.
func (s *Store) migrateLegacyLocked() ([]byte, error) {
	if s.legacyPath == "" {
		return nil, os.ErrNotExist
	}

	data, err := os.ReadFile(s.legacyPath)
	if err != nil {
		return nil, err
	}

	if err := s.writeLocked(data); err != nil {
		return nil, fmt.Errorf("migrate legacy credential file: %w", err)
	}
	if err := os.Remove(s.legacyPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove legacy credential file: %w", err)
	}

	return data, nil
}

func (s *Store) Save(ctx context.Context, creds domain.Credentials) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(storedCredentials{MioID: creds.MioID, Password: creds.Password})
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(data)
}

func (s *Store) writeLocked(data []byte) error {
	if err := os.MkdirAll(s.root, storeDirMode); err != nil {
		return fmt.Errorf("create credential directory: %w", err)
	}
	if err := os.WriteFile(s.path(), data, storeFileMode); err != nil {
		return fmt.Errorf("write credential file: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete credential file: %w", err)
	}
	return nil
}

func (s *Store) path() string {
	return filepath.Join(s.root, credentialsFile)
}
