package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/rs/xid"

	"github.com/vesfx/vesrates/rates"
	"github.com/vesfx/vesrates/storage"
	"github.com/vesfx/vesrates/storage/types"
)

// Refresher is the single write path for fetched rates: it audits the
// external call, recomputes the 24h variation, replaces the current-rate
// row and appends a history observation when the move is significant
type Refresher struct {
	store  storage.Storage
	logger *slog.Logger

	// thresholdPct gates history appends: moves below it update the
	// current row only
	thresholdPct float64
}

// NewRefresher creates a new Refresher instance
func NewRefresher(store storage.Storage, opts ...RefresherOption) *Refresher {
	r := &Refresher{
		store:        store,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		thresholdPct: 0.01,
	}

	// Apply the options
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Refresh runs a single fetch-and-persist cycle for the source. The
// external call is always audited, including failed ones. Returns the
// persisted records
func (r *Refresher) Refresh(ctx context.Context, source Source) ([]*types.RateRecord, error) {
	fetchStart := time.Now()

	records, fetchErr := source.Fetch(ctx)

	r.audit(ctx, source.Name(), time.Since(fetchStart), fetchErr)

	if fetchErr != nil {
		return nil, fmt.Errorf("unable to fetch from %s: %w", source.Name(), fetchErr)
	}

	if err := r.Persist(ctx, records); err != nil {
		return nil, err
	}

	return records, nil
}

// Persist writes fetched records: variation is recomputed against the
// latest history observation, the current row is replaced, and a history
// entry is appended only when the move crosses the significance threshold.
// The first storage failure aborts the batch; partial records are never
// written for a single record
func (r *Refresher) Persist(ctx context.Context, records []*types.RateRecord) error {
	for _, record := range records {
		prevAvg, err := r.latestAvg(ctx, record.ExchangeCode, record.PairSymbol)
		if err != nil {
			return err
		}

		record.Variation24h = rates.Variation(prevAvg, record.AvgPrice)

		if err := r.store.UpsertCurrentRate(ctx, record); err != nil {
			return fmt.Errorf(
				"unable to upsert current rate for %s %s: %w",
				record.ExchangeCode, record.PairSymbol, err,
			)
		}

		if !rates.SignificantChange(prevAvg, record.AvgPrice, r.thresholdPct) {
			r.logger.Debug(
				"skipping insignificant history append",
				"exchange", record.ExchangeCode,
				"pair", record.PairSymbol,
				"prev_avg", prevAvg,
				"avg", record.AvgPrice,
			)

			continue
		}

		entry := &types.HistoryEntry{
			ExchangeCode: record.ExchangeCode,
			PairSymbol:   record.PairSymbol,
			BuyPrice:     record.BuyPrice,
			SellPrice:    record.SellPrice,
			AvgPrice:     record.AvgPrice,
			Volume24h:    record.Volume24h,
			Source:       record.Source,
			ObservedAt:   record.LastUpdate,
		}

		if err := r.store.AppendHistory(ctx, entry); err != nil {
			return fmt.Errorf(
				"unable to append history for %s %s: %w",
				record.ExchangeCode, record.PairSymbol, err,
			)
		}

		r.logger.Info(
			"saved rate observation",
			"exchange", record.ExchangeCode,
			"pair", record.PairSymbol,
			"avg", record.AvgPrice,
			"variation", record.Variation24h,
		)
	}

	return nil
}

// latestAvg returns the most recent observed average for the key,
// or 0 when there is no history yet
func (r *Refresher) latestAvg(ctx context.Context, exchangeCode, pairSymbol string) (float64, error) {
	entries, err := r.store.History(ctx, &types.HistoryQuery{
		ExchangeCode: exchangeCode,
		PairSymbol:   pairSymbol,
		Limit:        1,
	})
	if err != nil {
		return 0, fmt.Errorf("unable to fetch latest observation: %w", err)
	}

	if len(entries) == 0 {
		return 0, nil
	}

	return entries[0].AvgPrice, nil
}

// audit appends the external-call audit row. Audit failures are logged,
// never propagated: a broken audit trail must not block rate updates
func (r *Refresher) audit(ctx context.Context, sourceName string, latency time.Duration, fetchErr error) {
	entry := &types.APILogEntry{
		ID:            xid.New().String(),
		Endpoint:      sourceName,
		OperationType: "fetch_rates",
		Source:        sourceName,
		LatencyMS:     latency.Milliseconds(),
		Success:       fetchErr == nil,
		ObservedAt:    time.Now().UTC(),
	}

	if fetchErr != nil {
		entry.Error = fetchErr.Error()
	}

	if err := r.store.LogAPICall(ctx, entry); err != nil {
		r.logger.Error(
			"unable to audit external call",
			"source", sourceName,
			"err", err,
		)
	}
}
