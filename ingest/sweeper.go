package ingest

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/vesfx/vesrates/storage"
)

// Sweeper enforces the retention horizons on append-only data:
// old history observations and old audit rows are purged on a ticker
type Sweeper struct {
	store  storage.Storage
	logger *slog.Logger

	historyRetention time.Duration
	apiLogRetention  time.Duration
	interval         time.Duration
}

// NewSweeper creates a new Sweeper instance
func NewSweeper(store storage.Storage, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		store:            store,
		logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		historyRetention: 90 * 24 * time.Hour,
		apiLogRetention:  30 * 24 * time.Hour,
		interval:         time.Hour,
	}

	// Apply the options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start starts the retention sweep loop [BLOCKING].
// A sweep runs on boot, then on every tick
func (s *Sweeper) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper service shut down")

			return nil
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep purges rows past their retention horizon. Purge failures are
// logged and retried on the next tick
func (s *Sweeper) Sweep(ctx context.Context) {
	now := time.Now().UTC()

	purged, err := s.store.PurgeHistoryBefore(ctx, now.Add(-s.historyRetention))
	if err != nil {
		s.logger.Error("unable to purge rate history", "err", err)
	} else if purged > 0 {
		s.logger.Info("purged rate history", "rows", purged)
	}

	purged, err = s.store.PurgeAPILogsBefore(ctx, now.Add(-s.apiLogRetention))
	if err != nil {
		s.logger.Error("unable to purge api logs", "err", err)
	} else if purged > 0 {
		s.logger.Info("purged api logs", "rows", purged)
	}
}
