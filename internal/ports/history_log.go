package ports

import (
	"context"

	"github.com/snaka/mioportal/internal/domain"
)

// HistoryLog records refresh attempts, newest first, capped by the adapter.
type HistoryLog interface {
	Append(ctx context.Context, record domain.RefreshRecord) error
	Load(ctx context.Context) ([]domain.RefreshRecord, error)
	Clear(ctx context.Context) error
}
