package mock

import (
	"context"
	"time"

	"github.com/vesfx/vesrates/storage/types"
)

type (
	UpsertCurrentRateDelegate  func(context.Context, *types.RateRecord) error
	CurrentRatesDelegate       func(context.Context, *types.RateQuery) ([]*types.RateRecord, error)
	AppendHistoryDelegate      func(context.Context, *types.HistoryEntry) error
	HistoryDelegate            func(context.Context, *types.HistoryQuery) ([]*types.HistoryEntry, error)
	PurgeHistoryBeforeDelegate func(context.Context, time.Time) (int64, error)
	LogAPICallDelegate         func(context.Context, *types.APILogEntry) error
	APILogsDelegate            func(context.Context, int32) ([]*types.APILogEntry, error)
	PurgeAPILogsBeforeDelegate func(context.Context, time.Time) (int64, error)
	ListExchangesDelegate      func(context.Context) ([]*types.Exchange, error)
	SaveExchangeDelegate       func(context.Context, *types.Exchange) error
	ListPairsDelegate          func(context.Context) ([]*types.CurrencyPair, error)
	SavePairDelegate           func(context.Context, *types.CurrencyPair) error
)

type Storage struct {
	UpsertCurrentRateFn  UpsertCurrentRateDelegate
	CurrentRatesFn       CurrentRatesDelegate
	AppendHistoryFn      AppendHistoryDelegate
	HistoryFn            HistoryDelegate
	PurgeHistoryBeforeFn PurgeHistoryBeforeDelegate
	LogAPICallFn         LogAPICallDelegate
	APILogsFn            APILogsDelegate
	PurgeAPILogsBeforeFn PurgeAPILogsBeforeDelegate
	ListExchangesFn      ListExchangesDelegate
	SaveExchangeFn       SaveExchangeDelegate
	ListPairsFn          ListPairsDelegate
	SavePairFn           SavePairDelegate
}

func (m *Storage) UpsertCurrentRate(ctx context.Context, r *types.RateRecord) error {
	if m.UpsertCurrentRateFn != nil {
		return m.UpsertCurrentRateFn(ctx, r)
	}

	return nil
}

func (m *Storage) CurrentRates(
	ctx context.Context,
	query *types.RateQuery,
) ([]*types.RateRecord, error) {
	if m.CurrentRatesFn != nil {
		return m.CurrentRatesFn(ctx, query)
	}

	return nil, nil
}

func (m *Storage) AppendHistory(ctx context.Context, h *types.HistoryEntry) error {
	if m.AppendHistoryFn != nil {
		return m.AppendHistoryFn(ctx, h)
	}

	return nil
}

func (m *Storage) History(
	ctx context.Context,
	query *types.HistoryQuery,
) ([]*types.HistoryEntry, error) {
	if m.HistoryFn != nil {
		return m.HistoryFn(ctx, query)
	}

	return nil, nil
}

func (m *Storage) PurgeHistoryBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.PurgeHistoryBeforeFn != nil {
		return m.PurgeHistoryBeforeFn(ctx, cutoff)
	}

	return 0, nil
}

func (m *Storage) LogAPICall(ctx context.Context, entry *types.APILogEntry) error {
	if m.LogAPICallFn != nil {
		return m.LogAPICallFn(ctx, entry)
	}

	return nil
}

func (m *Storage) APILogs(ctx context.Context, limit int32) ([]*types.APILogEntry, error) {
	if m.APILogsFn != nil {
		return m.APILogsFn(ctx, limit)
	}

	return nil, nil
}

func (m *Storage) PurgeAPILogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.PurgeAPILogsBeforeFn != nil {
		return m.PurgeAPILogsBeforeFn(ctx, cutoff)
	}

	return 0, nil
}

func (m *Storage) ListExchanges(ctx context.Context) ([]*types.Exchange, error) {
	if m.ListExchangesFn != nil {
		return m.ListExchangesFn(ctx)
	}

	return nil, nil
}

func (m *Storage) SaveExchange(ctx context.Context, e *types.Exchange) error {
	if m.SaveExchangeFn != nil {
		return m.SaveExchangeFn(ctx, e)
	}

	return nil
}

func (m *Storage) ListPairs(ctx context.Context) ([]*types.CurrencyPair, error) {
	if m.ListPairsFn != nil {
		return m.ListPairsFn(ctx)
	}

	return nil, nil
}

func (m *Storage) SavePair(ctx context.Context, p *types.CurrencyPair) error {
	if m.SavePairFn != nil {
		return m.SavePairFn(ctx, p)
	}

	return nil
}
