package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vesfx/vesrates/storage/types"
)

type rateKey struct {
	exchange, pair string
}

type Storage struct {
	current   map[rateKey]types.RateRecord
	history   []types.HistoryEntry
	apiLogs   []types.APILogEntry
	exchanges map[string]types.Exchange
	pairs     map[string]types.CurrencyPair

	historyID int64

	mu sync.RWMutex
}

func NewStorage() *Storage {
	return &Storage{
		current:   make(map[rateKey]types.RateRecord),
		exchanges: make(map[string]types.Exchange),
		pairs:     make(map[string]types.CurrencyPair),
	}
}

func (s *Storage) UpsertCurrentRate(_ context.Context, r *types.RateRecord) error {
	k := rateKey{
		exchange: r.ExchangeCode,
		pair:     r.PairSymbol,
	}

	elem := *r
	elem.LastUpdate = elem.LastUpdate.UTC()

	s.mu.Lock()
	s.current[k] = elem // key is unique
	s.mu.Unlock()

	return nil
}

func (s *Storage) CurrentRates(
	_ context.Context,
	query *types.RateQuery,
) ([]*types.RateRecord, error) {
	s.mu.RLock()

	out := make([]*types.RateRecord, 0, len(s.current))

	for _, v := range s.current {
		if query.ExchangeCode != "" && v.ExchangeCode != query.ExchangeCode {
			continue
		}

		if query.PairSymbol != "" && v.PairSymbol != query.PairSymbol {
			continue
		}

		cp := v
		out = append(out, &cp)
	}

	s.mu.RUnlock()

	// Deterministic ordering: exchange, then pair
	sort.Slice(out, func(i, j int) bool {
		if out[i].ExchangeCode != out[j].ExchangeCode {
			return out[i].ExchangeCode < out[j].ExchangeCode
		}

		return out[i].PairSymbol < out[j].PairSymbol
	})

	return out, nil
}

func (s *Storage) AppendHistory(_ context.Context, h *types.HistoryEntry) error {
	elem := *h
	elem.ObservedAt = elem.ObservedAt.UTC()

	s.mu.Lock()

	s.historyID++
	elem.ID = s.historyID

	s.history = append(s.history, elem)

	s.mu.Unlock()

	return nil
}

func (s *Storage) History(
	_ context.Context,
	query *types.HistoryQuery,
) ([]*types.HistoryEntry, error) {
	lim := clampLimit(query.Limit)

	s.mu.RLock()

	matched := make([]*types.HistoryEntry, 0, lim)

	for i := range s.history {
		v := s.history[i]

		if v.ExchangeCode != query.ExchangeCode || v.PairSymbol != query.PairSymbol {
			continue
		}

		cp := v
		matched = append(matched, &cp)
	}

	s.mu.RUnlock()

	// Newest-first; entries with equal timestamps keep insertion order
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].ObservedAt.After(matched[j].ObservedAt)
	})

	if len(matched) > int(lim) {
		matched = matched[:lim]
	}

	return matched, nil
}

func (s *Storage) PurgeHistoryBefore(_ context.Context, cutoff time.Time) (int64, error) {
	cutoff = cutoff.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.history[:0]

	var removed int64

	for _, v := range s.history {
		if v.ObservedAt.Before(cutoff) {
			removed++

			continue
		}

		kept = append(kept, v)
	}

	s.history = kept

	return removed, nil
}

func (s *Storage) LogAPICall(_ context.Context, entry *types.APILogEntry) error {
	elem := *entry
	elem.ObservedAt = elem.ObservedAt.UTC()

	s.mu.Lock()
	s.apiLogs = append(s.apiLogs, elem)
	s.mu.Unlock()

	return nil
}

func (s *Storage) APILogs(_ context.Context, limit int32) ([]*types.APILogEntry, error) {
	lim := clampLimit(limit)

	s.mu.RLock()

	out := make([]*types.APILogEntry, 0, len(s.apiLogs))

	for i := range s.apiLogs {
		cp := s.apiLogs[i]
		out = append(out, &cp)
	}

	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ObservedAt.After(out[j].ObservedAt)
	})

	if len(out) > int(lim) {
		out = out[:lim]
	}

	return out, nil
}

func (s *Storage) PurgeAPILogsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	cutoff = cutoff.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.apiLogs[:0]

	var removed int64

	for _, v := range s.apiLogs {
		if v.ObservedAt.Before(cutoff) {
			removed++

			continue
		}

		kept = append(kept, v)
	}

	s.apiLogs = kept

	return removed, nil
}

func (s *Storage) ListExchanges(_ context.Context) ([]*types.Exchange, error) {
	s.mu.RLock()

	out := make([]*types.Exchange, 0, len(s.exchanges))

	for _, v := range s.exchanges {
		cp := v
		out = append(out, &cp)
	}

	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Code < out[j].Code
	})

	return out, nil
}

func (s *Storage) SaveExchange(_ context.Context, e *types.Exchange) error {
	elem := *e

	s.mu.Lock()
	s.exchanges[e.Code] = elem
	s.mu.Unlock()

	return nil
}

func (s *Storage) ListPairs(_ context.Context) ([]*types.CurrencyPair, error) {
	s.mu.RLock()

	out := make([]*types.CurrencyPair, 0, len(s.pairs))

	for _, v := range s.pairs {
		cp := v
		out = append(out, &cp)
	}

	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Symbol < out[j].Symbol
	})

	return out, nil
}

func (s *Storage) SavePair(_ context.Context, p *types.CurrencyPair) error {
	elem := *p

	s.mu.Lock()
	s.pairs[p.Symbol] = elem
	s.mu.Unlock()

	return nil
}

func clampLimit(limit int32) int32 {
	if limit <= 0 {
		return 100
	}

	if limit > 500 {
		return 500
	}

	return limit
}
