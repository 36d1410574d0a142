package idempotency

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Janitor periodically deletes expired records.
type Janitor struct {
	Store     Store
	Interval  time.Duration
	BatchSize int
	Logger    *zap.Logger
	Clock     func() time.Time
}

// Run blocks until ctx is cancelled.
func (j Janitor) Run(ctx context.Context) {
	if j.Store == nil || j.Interval <= 0 {
		return
	}
	logger := j.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := j.Clock
	if clock == nil {
		clock = time.Now
	}

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := j.Store.CleanupExpired(ctx, clock().UTC(), j.BatchSize)
			if err != nil {
				logger.Warn("idempotency cleanup failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				logger.Debug("idempotency cleanup", zap.Int("removed", removed))
			}
		}
	}
}
