package ports

import "context"

// Notifier delivers local usage alerts. Implementations own the
// at-most-once-per-period dedup, tracked via last-alerted timestamps.
type Notifier interface {
	NotifyMonthlyThreshold(ctx context.Context, usedGB, thresholdGB float64) error
	NotifyDailyThreshold(ctx context.Context, usedMB, thresholdMB float64) error
}
