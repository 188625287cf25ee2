package ingest

import (
	"log/slog"
	"time"
)

type Option func(o *Orchestrator)

// WithLogger specifies the logger for the orchestrator
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// WithQueryInterval specifies query interval for the orchestrator's jobs.
// Defaults to 1s.
// This should only be modified if the registered sources with the orchestrator
// have sparse runs (once every hour / 24hrs)
func WithQueryInterval(q time.Duration) Option {
	return func(o *Orchestrator) {
		o.queryInterval = q
	}
}

type RefresherOption func(r *Refresher)

// WithRefresherLogger specifies the logger for the refresher
func WithRefresherLogger(l *slog.Logger) RefresherOption {
	return func(r *Refresher) {
		r.logger = l
	}
}

// WithChangeThreshold specifies the significant-change percentage that
// gates history appends. Defaults to 0.01%
func WithChangeThreshold(pct float64) RefresherOption {
	return func(r *Refresher) {
		r.thresholdPct = pct
	}
}

type SweeperOption func(s *Sweeper)

// WithSweeperLogger specifies the logger for the sweeper
func WithSweeperLogger(l *slog.Logger) SweeperOption {
	return func(s *Sweeper) {
		s.logger = l
	}
}

// WithHistoryRetention specifies how long history observations are kept.
// Defaults to 90 days
func WithHistoryRetention(d time.Duration) SweeperOption {
	return func(s *Sweeper) {
		s.historyRetention = d
	}
}

// WithAPILogRetention specifies how long audit rows are kept.
// Defaults to 30 days
func WithAPILogRetention(d time.Duration) SweeperOption {
	return func(s *Sweeper) {
		s.apiLogRetention = d
	}
}

// WithSweepInterval specifies how often the sweep runs. Defaults to 1h
func WithSweepInterval(d time.Duration) SweeperOption {
	return func(s *Sweeper) {
		s.interval = d
	}
}
