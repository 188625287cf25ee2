package ingest

import (
	"context"
	"time"

	"github.com/vesfx/vesrates/storage/types"
)

// Source is a single external exchange rate source
type Source interface {
	// Name returns the human-readable name of the source
	Name() string

	// Interval returns the interval at which the source should be polled
	Interval() time.Duration

	// Fetch is the source's main fetch job, yielding normalized rate records
	Fetch(context.Context) ([]*types.RateRecord, error)
}
