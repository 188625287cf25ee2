package server

import (
	"context"
	"time"

	"github.com/vesfx/vesrates/ingest"
	"github.com/vesfx/vesrates/provider/binance"
	"github.com/vesfx/vesrates/storage/types"
)

type mockFetcher struct {
	fetchFn func(context.Context) ([]*types.RateRecord, error)
}

func (m *mockFetcher) Fetch(ctx context.Context) ([]*types.RateRecord, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx)
	}

	return nil, nil
}

type mockQuoteClient struct {
	fetchCompleteQuoteFn func(context.Context) (*binance.CompleteQuote, error)
}

func (m *mockQuoteClient) FetchCompleteQuote(ctx context.Context) (*binance.CompleteQuote, error) {
	if m.fetchCompleteQuoteFn != nil {
		return m.fetchCompleteQuoteFn(ctx)
	}

	return nil, nil
}

type mockRefresher struct {
	refreshFn func(context.Context, ingest.Source) ([]*types.RateRecord, error)
}

func (m *mockRefresher) Refresh(
	ctx context.Context,
	source ingest.Source,
) ([]*types.RateRecord, error) {
	if m.refreshFn != nil {
		return m.refreshFn(ctx, source)
	}

	return nil, nil
}

type mockSource struct {
	nameFn     func() string
	intervalFn func() time.Duration
	fetchFn    func(context.Context) ([]*types.RateRecord, error)
}

func (m *mockSource) Name() string {
	if m.nameFn != nil {
		return m.nameFn()
	}

	return ""
}

func (m *mockSource) Interval() time.Duration {
	if m.intervalFn != nil {
		return m.intervalFn()
	}

	return time.Hour
}

func (m *mockSource) Fetch(ctx context.Context) ([]*types.RateRecord, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx)
	}

	return nil, nil
}
