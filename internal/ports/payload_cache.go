package ports

import (
	"context"

	"github.com/snaka/mioportal/internal/domain"
)

// PayloadCache stores the last successful AggregatePayload as one unit.
// Load returns (nil, nil) when no payload has been cached yet.
type PayloadCache interface {
	Save(ctx context.Context, payload domain.AggregatePayload) error
	Load(ctx context.Context) (*domain.AggregatePayload, error)
	Clear(ctx context.Context) error
}
