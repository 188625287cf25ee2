package sql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vesfx/vesrates/storage"
	"github.com/vesfx/vesrates/storage/types"
)

type Storage struct {
	pool *pgxpool.Pool
}

func NewStorage(pool *pgxpool.Pool) *Storage {
	return &Storage{
		pool: pool,
	}
}

// Connect opens a pgx connection pool against the given DSN
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse DB config: %w", err)
	}

	cfg.MaxConnIdleTime = 2 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to open DB pool: %w", err)
	}

	return pool, nil
}

func (s *Storage) UpsertCurrentRate(ctx context.Context, r *types.RateRecord) error {
	const q = `
	INSERT INTO current_rates (
		exchange_code, pair_symbol,
		buy_price, sell_price, avg_price,
		volume_24h, variation_24h,
		source, last_update
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (exchange_code, pair_symbol) DO UPDATE SET
		buy_price     = EXCLUDED.buy_price,
		sell_price    = EXCLUDED.sell_price,
		avg_price     = EXCLUDED.avg_price,
		volume_24h    = EXCLUDED.volume_24h,
		variation_24h = EXCLUDED.variation_24h,
		source        = EXCLUDED.source,
		last_update   = EXCLUDED.last_update`

	_, err := s.pool.Exec(
		ctx, q,
		r.ExchangeCode, r.PairSymbol,
		r.BuyPrice, r.SellPrice, r.AvgPrice,
		r.Volume24h, r.Variation24h,
		r.Source, r.LastUpdate.UTC(),
	)
	if err != nil {
		return storageErr("unable to upsert current rate", err)
	}

	return nil
}

func (s *Storage) CurrentRates(
	ctx context.Context,
	query *types.RateQuery,
) ([]*types.RateRecord, error) {
	const q = `
	SELECT
		exchange_code, pair_symbol,
		buy_price::float8, sell_price::float8, avg_price::float8,
		volume_24h::float8, variation_24h::float8,
		source, last_update
	FROM current_rates
	WHERE ($1 = '' OR exchange_code = $1)
	  AND ($2 = '' OR pair_symbol = $2)
	ORDER BY exchange_code, pair_symbol`

	rows, err := s.pool.Query(ctx, q, query.ExchangeCode, query.PairSymbol)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, storageErr("unable to fetch current rates", err)
	}
	defer rows.Close()

	out := make([]*types.RateRecord, 0)

	for rows.Next() {
		var r types.RateRecord

		if err := rows.Scan(
			&r.ExchangeCode, &r.PairSymbol,
			&r.BuyPrice, &r.SellPrice, &r.AvgPrice,
			&r.Volume24h, &r.Variation24h,
			&r.Source, &r.LastUpdate,
		); err != nil {
			return nil, storageErr("unable to scan current rate", err)
		}

		out = append(out, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, storageErr("unable to read current rates", err)
	}

	return out, nil
}

func (s *Storage) AppendHistory(ctx context.Context, h *types.HistoryEntry) error {
	const q = `
	INSERT INTO rate_history (
		exchange_code, pair_symbol,
		buy_price, sell_price, avg_price, volume_24h,
		source, observed_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.pool.Exec(
		ctx, q,
		h.ExchangeCode, h.PairSymbol,
		h.BuyPrice, h.SellPrice, h.AvgPrice, h.Volume24h,
		h.Source, h.ObservedAt.UTC(),
	)
	if err != nil {
		return storageErr("unable to append history", err)
	}

	return nil
}

func (s *Storage) History(
	ctx context.Context,
	query *types.HistoryQuery,
) ([]*types.HistoryEntry, error) {
	const q = `
	SELECT
		id, exchange_code, pair_symbol,
		buy_price::float8, sell_price::float8, avg_price::float8, volume_24h::float8,
		source, observed_at
	FROM rate_history
	WHERE exchange_code = $1 AND pair_symbol = $2
	ORDER BY observed_at DESC
	LIMIT $3`

	rows, err := s.pool.Query(ctx, q, query.ExchangeCode, query.PairSymbol, clampLimit(query.Limit))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, storageErr("unable to fetch history", err)
	}
	defer rows.Close()

	out := make([]*types.HistoryEntry, 0)

	for rows.Next() {
		var h types.HistoryEntry

		if err := rows.Scan(
			&h.ID, &h.ExchangeCode, &h.PairSymbol,
			&h.BuyPrice, &h.SellPrice, &h.AvgPrice, &h.Volume24h,
			&h.Source, &h.ObservedAt,
		); err != nil {
			return nil, storageErr("unable to scan history entry", err)
		}

		out = append(out, &h)
	}

	if err := rows.Err(); err != nil {
		return nil, storageErr("unable to read history", err)
	}

	return out, nil
}

func (s *Storage) PurgeHistoryBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(
		ctx,
		`DELETE FROM rate_history WHERE observed_at < $1`,
		cutoff.UTC(),
	)
	if err != nil {
		return 0, storageErr("unable to purge history", err)
	}

	return tag.RowsAffected(), nil
}

func (s *Storage) LogAPICall(ctx context.Context, entry *types.APILogEntry) error {
	const q = `
	INSERT INTO api_logs (
		id, endpoint, method, status_code,
		source, operation_type,
		latency_ms, success, error, observed_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.pool.Exec(
		ctx, q,
		entry.ID, entry.Endpoint, entry.Method, entry.StatusCode,
		entry.Source, entry.OperationType,
		entry.LatencyMS, entry.Success, entry.Error, entry.ObservedAt.UTC(),
	)
	if err != nil {
		return storageErr("unable to log api call", err)
	}

	return nil
}

func (s *Storage) APILogs(ctx context.Context, limit int32) ([]*types.APILogEntry, error) {
	const q = `
	SELECT
		id, endpoint, method, status_code,
		source, operation_type,
		latency_ms, success, error, observed_at
	FROM api_logs
	ORDER BY observed_at DESC
	LIMIT $1`

	rows, err := s.pool.Query(ctx, q, clampLimit(limit))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, storageErr("unable to fetch api logs", err)
	}
	defer rows.Close()

	out := make([]*types.APILogEntry, 0)

	for rows.Next() {
		var e types.APILogEntry

		if err := rows.Scan(
			&e.ID, &e.Endpoint, &e.Method, &e.StatusCode,
			&e.Source, &e.OperationType,
			&e.LatencyMS, &e.Success, &e.Error, &e.ObservedAt,
		); err != nil {
			return nil, storageErr("unable to scan api log", err)
		}

		out = append(out, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, storageErr("unable to read api logs", err)
	}

	return out, nil
}

func (s *Storage) PurgeAPILogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(
		ctx,
		`DELETE FROM api_logs WHERE observed_at < $1`,
		cutoff.UTC(),
	)
	if err != nil {
		return 0, storageErr("unable to purge api logs", err)
	}

	return tag.RowsAffected(), nil
}

func (s *Storage) ListExchanges(ctx context.Context) ([]*types.Exchange, error) {
	const q = `
	SELECT
		code, name, kind, description,
		operating_hours, update_frequency, website,
		active, created_at, updated_at
	FROM exchanges
	ORDER BY code`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, storageErr("unable to fetch exchanges", err)
	}
	defer rows.Close()

	out := make([]*types.Exchange, 0)

	for rows.Next() {
		var e types.Exchange

		if err := rows.Scan(
			&e.Code, &e.Name, &e.Kind, &e.Description,
			&e.OperatingHours, &e.UpdateFrequency, &e.Website,
			&e.Active, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, storageErr("unable to scan exchange", err)
		}

		out = append(out, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, storageErr("unable to read exchanges", err)
	}

	return out, nil
}

func (s *Storage) SaveExchange(ctx context.Context, e *types.Exchange) error {
	const q = `
	INSERT INTO exchanges (
		code, name, kind, description,
		operating_hours, update_frequency, website, active,
		created_at, updated_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
	ON CONFLICT (code) DO UPDATE SET
		name             = EXCLUDED.name,
		kind             = EXCLUDED.kind,
		description      = EXCLUDED.description,
		operating_hours  = EXCLUDED.operating_hours,
		update_frequency = EXCLUDED.update_frequency,
		website          = EXCLUDED.website,
		active           = EXCLUDED.active,
		updated_at       = now()`

	_, err := s.pool.Exec(
		ctx, q,
		e.Code, e.Name, e.Kind, e.Description,
		e.OperatingHours, e.UpdateFrequency, e.Website, e.Active,
	)
	if err != nil {
		return storageErr("unable to save exchange", err)
	}

	return nil
}

func (s *Storage) ListPairs(ctx context.Context) ([]*types.CurrencyPair, error) {
	const q = `
	SELECT symbol, base_currency, quote_currency, precision, active, created_at
	FROM currency_pairs
	ORDER BY symbol`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, storageErr("unable to fetch pairs", err)
	}
	defer rows.Close()

	out := make([]*types.CurrencyPair, 0)

	for rows.Next() {
		var p types.CurrencyPair

		if err := rows.Scan(
			&p.Symbol, &p.Base, &p.Quote, &p.Precision, &p.Active, &p.CreatedAt,
		); err != nil {
			return nil, storageErr("unable to scan pair", err)
		}

		out = append(out, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, storageErr("unable to read pairs", err)
	}

	return out, nil
}

func (s *Storage) SavePair(ctx context.Context, p *types.CurrencyPair) error {
	const q = `
	INSERT INTO currency_pairs (symbol, base_currency, quote_currency, precision, active, created_at)
	VALUES ($1, $2, $3, $4, $5, now())
	ON CONFLICT (symbol) DO UPDATE SET
		base_currency  = EXCLUDED.base_currency,
		quote_currency = EXCLUDED.quote_currency,
		precision      = EXCLUDED.precision,
		active         = EXCLUDED.active`

	_, err := s.pool.Exec(ctx, q, p.Symbol, p.Base, p.Quote, p.Precision, p.Active)
	if err != nil {
		return storageErr("unable to save pair", err)
	}

	return nil
}

// storageErr tags a datastore failure with the common storage error
func storageErr(msg string, err error) error {
	return fmt.Errorf("%s: %w: %w", msg, storage.ErrStorage, err)
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
