package storage

import (
	"context"
	"errors"
	"time"

	"github.com/vesfx/vesrates/storage/types"
)

// ErrStorage is the common tag for datastore connectivity / write failures.
// Callers treat a failed write as "not yet persisted"; no compensation
// is attempted
var ErrStorage = errors.New("storage unavailable")

// Storage is an abstraction over exchange rate data
type Storage interface {
	// UpsertCurrentRate inserts or replaces the single current-rate row
	// for the record's (exchange, pair) key. Idempotent
	UpsertCurrentRate(context.Context, *types.RateRecord) error

	// CurrentRates fetches current rates matching the given query,
	// ordered by exchange then pair
	CurrentRates(context.Context, *types.RateQuery) ([]*types.RateRecord, error)

	// AppendHistory appends a rate observation. Insert-only
	AppendHistory(context.Context, *types.HistoryEntry) error

	// History fetches history entries, newest-first, capped at the query limit
	History(context.Context, *types.HistoryQuery) ([]*types.HistoryEntry, error)

	// PurgeHistoryBefore deletes history rows observed before the cutoff,
	// returning the number of deleted rows
	PurgeHistoryBefore(context.Context, time.Time) (int64, error)

	// LogAPICall appends an external-call audit entry
	LogAPICall(context.Context, *types.APILogEntry) error

	// APILogs fetches the latest audit entries, newest-first
	APILogs(context.Context, int32) ([]*types.APILogEntry, error)

	// PurgeAPILogsBefore deletes audit rows observed before the cutoff,
	// returning the number of deleted rows
	PurgeAPILogsBefore(context.Context, time.Time) (int64, error)

	// ListExchanges lists all registered exchanges
	ListExchanges(context.Context) ([]*types.Exchange, error)

	// SaveExchange inserts or updates exchange reference data
	SaveExchange(context.Context, *types.Exchange) error

	// ListPairs lists all registered currency pairs
	ListPairs(context.Context) ([]*types.CurrencyPair, error)

	// SavePair inserts or updates currency pair reference data
	SavePair(context.Context, *types.CurrencyPair) error
}
