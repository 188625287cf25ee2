package ingest

import (
	"context"
	"time"

	"github.com/rs/xid"

	"github.com/vesfx/vesrates/storage/types"
)

// scheduledIngest is a single scheduled Source ingest job
type scheduledIngest struct {
	at       time.Time
	source   Source
	sourceID xid.ID
}

// Less is utilized to sort scheduled ingests by their due-time (latest == first)
func (a scheduledIngest) Less(b scheduledIngest) bool {
	return a.at.Before(b.at)
}

// workerInfo is the work context for the source routine
type workerInfo struct {
	source    Source
	refresher *Refresher
	resCh     chan<- *workerResponse
	sourceID  xid.ID
}

// workerResponse is the source routine response
type workerResponse struct {
	error    error               // encountered error, if any
	records  []*types.RateRecord // the persisted rate records
	sourceID xid.ID              // the source ID
}

// handleJob runs a full refresh cycle for the source
func handleJob(
	ctx context.Context,
	info *workerInfo,
) {
	records, err := info.refresher.Refresh(ctx, info.source)

	response := &workerResponse{
		error:    err,
		records:  records,
		sourceID: info.sourceID,
	}

	select {
	case <-ctx.Done():
	case info.resCh <- response:
	}
}
