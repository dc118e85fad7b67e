package ports

import (
	"context"
	"time"

	"github.com/snaka/mioportal/internal/domain"
)

// SnapshotStore holds the widget projection. SetRefreshing and
// SetSuccessUntil update their fields without rewriting the whole snapshot.
// Load returns (nil, nil) when no snapshot exists yet.
type SnapshotStore interface {
	Save(ctx context.Context, snapshot domain.WidgetSnapshot) error
	Load(ctx context.Context) (*domain.WidgetSnapshot, error)
	SetRefreshing(ctx context.Context, refreshing bool) error
	SetSuccessUntil(ctx context.Context, until *time.Time) error
}
