package ports

import (
	"context"

	"github.com/snaka/mioportal/internal/domain"
)

// PortalClient is the session-authenticated fetch surface the orchestrator
// drives. A nil creds asks the client to reuse its current session and to
// fail with domain.ErrNoActiveSession when it has none.
type PortalClient interface {
	FetchAll(ctx context.Context, creds *domain.Credentials) (domain.AggregatePayload, error)
}
