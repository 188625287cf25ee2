package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/sig-0/iq"
)

var (
	errInvalidSource   = errors.New("invalid source")
	errInvalidInterval = errors.New("invalid interval")
)

// retryDelay is how soon a failed source run is retried
const retryDelay = time.Second * 10

// Orchestrator is the main job scheduler for registered sources
type Orchestrator struct {
	refresher *Refresher
	logger    *slog.Logger

	registeredSources sync.Map

	q             iq.Queue[scheduledIngest]
	queryInterval time.Duration
	qMux          sync.Mutex
}

// New creates a new Orchestrator instance
func New(refresher *Refresher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		refresher:     refresher,
		q:             iq.NewQueue[scheduledIngest](),
		queryInterval: time.Second, // every second
	}

	// Apply the options
	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Register registers a new source with the orchestrator.
// The source is immediately queued up for execution
func (o *Orchestrator) Register(s Source) error {
	if s == nil || s.Name() == "" {
		return errInvalidSource
	}

	if s.Interval() <= 0 {
		return errInvalidInterval
	}

	// Register the source
	id := xid.New()
	o.registeredSources.Store(id, s)

	o.logger.Info(
		"registered new source",
		"name", s.Name(),
	)

	// Schedule the job
	o.scheduleIngest(
		time.Now().UTC(),
		id,
		s,
	)

	return nil
}

// Start starts the source orchestration service loop [BLOCKING]
func (o *Orchestrator) Start(ctx context.Context) error {
	collectorCh := make(chan *workerResponse, 100)

	// Start a listener for monitoring jobs
	ticker := time.NewTicker(o.queryInterval)
	defer ticker.Stop()

	// handleIngest initializes all jobs that are executable (due)
	handleIngest := func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
				nextSI := o.nextIngest()
				if nextSI == nil {
					return // nothing to schedule anymore
				}

				o.logger.Info(
					"scheduling ingest",
					"name", nextSI.source.Name(),
				)

				// Spawn worker
				info := &workerInfo{
					source:    nextSI.source,
					refresher: o.refresher,
					sourceID:  nextSI.sourceID,
					resCh:     collectorCh,
				}

				go handleJob(ctx, info)
			}
		}
	}

	// Initialize the first set of due jobs (on boot)
	handleIngest()

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("orchestrator service shut down")
			close(collectorCh)

			return nil
		case <-ticker.C:
			handleIngest()
		case response := <-collectorCh:
			now := time.Now().UTC()

			rsRaw, ok := o.registeredSources.Load(response.sourceID)

			if !ok {
				o.logger.Error(
					"unable to load registered source",
					"id", response.sourceID.String(),
				)

				continue
			}

			rs, _ := rsRaw.(Source)

			if response.error != nil {
				o.logger.Error(
					"error encountered during rate refresh",
					"id", response.sourceID.String(),
					"err", response.error.Error(),
				)

				// Retry ingest job soon
				o.scheduleIngest(
					now.Add(retryDelay),
					response.sourceID,
					rs,
				)

				continue
			}

			o.logger.Info(
				"refreshed source",
				"name", rs.Name(),
				"records", len(response.records),
			)

			// Schedule a new ingest for this source
			o.scheduleIngest(
				now.Add(rs.Interval()),
				response.sourceID,
				rs,
			)
		}
	}
}

// scheduleIngest schedules a new source ingest
func (o *Orchestrator) scheduleIngest(
	at time.Time,
	sourceID xid.ID,
	source Source,
) {
	o.qMux.Lock()
	defer o.qMux.Unlock()

	futureSI := scheduledIngest{
		at:       at,
		sourceID: sourceID,
		source:   source,
	}

	o.q.Push(futureSI)
}

// nextIngest fetches the next due ingest job, as of the moment of calling
func (o *Orchestrator) nextIngest() *scheduledIngest {
	o.qMux.Lock()
	defer o.qMux.Unlock()

	now := time.Now().UTC()

	// Check if anything needs to be scheduled
	if o.q.Len() == 0 {
		return nil // nothing to schedule, all jobs are running
	}

	// Check if the top element is due
	if o.q.Index(0).at.After(now) {
		return nil // nothing to schedule, latest job is in the future
	}

	// Grab the next job
	nextSI := o.q.PopFront()

	return nextSI
}
