package chain

import (
	"context"
	"errors"
	"fmt"

	filestore "github.com/snaka/mioportal/internal/adapters/credstore/file"
	passstore "github.com/snaka/mioportal/internal/adapters/credstore/pass"
	"github.com/snaka/mioportal/internal/domain"
	"github.com/snaka/mioportal/internal/ports"
)

// Store tries the primary credential backend first and falls through to the
// fallback, so the password store is preferred when present and the plain
// file keeps working without it.
type Store struct {
	primary  ports.CredentialStore
	fallback ports.CredentialStore
}

var _ ports.CredentialStore = (*Store)(nil)

var (
	errNilPrimaryStore  = errors.New("primary credential store is nil")
	errNilFallbackStore = errors.New("fallback credential store is nil")
)

func NewStore(primary ports.CredentialStore, fallback ports.CredentialStore) *Store {
	store, err := NewStoreChecked(primary, fallback)
	if err != nil {
		panic(err)
	}

	return store
}

func NewStoreChecked(primary ports.CredentialStore, fallback ports.CredentialStore) (*Store, error) {
	if primary == nil {
		return nil, errNilPrimaryStore
	}
	if fallback == nil {
		return nil, errNilFallbackStore
	}

	return &Store{primary: primary, fallback: fallback}, nil
}

// NewPassFirstWithFileFallback wires the default chain used at startup.
func NewPassFirstWithFileFallback(fileRoot, legacyPath string) (*Store, error) {
	return NewStoreChecked(passstore.NewStore(), filestore.NewStoreWithLegacy(fileRoot, legacyPath))
}

func (s *Store) Load(ctx context.Context) (domain.Credentials, error) {
	creds, err := s.primary.Load(ctx)
	if err == nil {
		return creds, nil
	}
	if shouldSkipFallback(err) {
		return domain.Credentials{}, err
	}

	fallbackCreds, fallbackErr := s.fallback.Load(ctx)
	if fallbackErr == nil {
		return fallbackCreds, nil
	}

	return domain.Credentials{}, fmt.Errorf("primary backend load failed: %w; fallback backend load failed: %w", err, fallbackErr)
}

func (s *Store) Save(ctx context.Context, creds domain.Credentials) error {
	err := s.primary.Save(ctx, creds)
	if err == nil {
		return nil
	}
	if shouldSkipFallback(err) {
		return err
	}

	fallbackErr := s.fallback.Save(ctx, creds)
	if fallbackErr == nil {
		return nil
	}

	return fmt.Errorf("primary backend save failed: %w; fallback backend save failed: %w", err, fallbackErr)
}

func (s *Store) Delete(ctx context.Context) error {
	err := s.primary.Delete(ctx)
	if err == nil {
		return s.fallback.Delete(ctx)
	}
	if shouldSkipFallback(err) {
		return err
	}

	fallbackErr := s.fallback.Delete(ctx)
	if fallbackErr == nil {
		return nil
	}

	return fmt.Errorf("primary backend delete failed: %w; fallback backend delete failed: %w", err, fallbackErr)
}

func shouldSkipFallback(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
