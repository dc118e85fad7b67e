package ports

import (
	"context"

	"github.com/snaka/mioportal/internal/domain"
)

// CredentialStore persists the single portal credential set. Load returns
// domain.ErrCredentialNotFound when nothing is stored.
type CredentialStore interface {
	Load(ctx context.Context) (domain.Credentials, error)
	Save(ctx context.Context, creds domain.Credentials) error
	Delete(ctx context.Context) error
}
