package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vesfx/vesrates/ingest"
	"github.com/vesfx/vesrates/provider"
	"github.com/vesfx/vesrates/provider/binance"
	"github.com/vesfx/vesrates/server/config"
	"github.com/vesfx/vesrates/storage/mock"
	"github.com/vesfx/vesrates/storage/types"
)

func testRecord(exchange, pair string, avg float64) *types.RateRecord {
	return &types.RateRecord{
		ExchangeCode: exchange,
		PairSymbol:   pair,
		BuyPrice:     avg,
		SellPrice:    avg,
		AvgPrice:     avg,
		Source:       exchange,
		LastUpdate:   time.Now().UTC(),
	}
}

func decodeJSON[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var v T

	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))

	return v
}

func TestHandlers_CurrentRates(t *testing.T) {
	t.Parallel()

	t.Run("storage error", func(t *testing.T) {
		t.Parallel()

		storage := &mock.Storage{
			CurrentRatesFn: func(_ context.Context, _ *types.RateQuery) ([]*types.RateRecord, error) {
				return nil, errors.New("boom")
			},
		}

		s := &Server{
			storage: storage,
			logger:  noopLogger,
		}

		req := httptest.NewRequest(http.MethodGet, "/v1/rates", http.NoBody)
		w := httptest.NewRecorder()

		s.CurrentRates(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("filters forwarded", func(t *testing.T) {
		t.Parallel()

		var capturedQuery *types.RateQuery

		storage := &mock.Storage{
			CurrentRatesFn: func(_ context.Context, query *types.RateQuery) ([]*types.RateRecord, error) {
				capturedQuery = query

				return []*types.RateRecord{
					testRecord("bcv", "USD/VES", 133.51),
				}, nil
			},
		}

		s := &Server{
			storage: storage,
			logger:  noopLogger,
		}

		req := httptest.NewRequest(
			http.MethodGet,
			"/v1/rates?exchange=bcv&pair=USD/VES",
			http.NoBody,
		)
		w := httptest.NewRecorder()

		s.CurrentRates(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		require.NotNil(t, capturedQuery)
		assert.Equal(t, "bcv", capturedQuery.ExchangeCode)
		assert.Equal(t, "USD/VES", capturedQuery.PairSymbol)

		page := decodeJSON[types.Page[*types.RateRecord]](t, w)

		require.Len(t, page.Results, 1)
		assert.EqualValues(t, 1, page.Total)
		assert.Equal(t, 133.51, page.Results[0].AvgPrice)
	})
}

func TestHandlers_History(t *testing.T) {
	t.Parallel()

	t.Run("missing exchange", func(t *testing.T) {
		t.Parallel()

		var called bool

		storage := &mock.Storage{
			HistoryFn: func(_ context.Context, _ *types.HistoryQuery) ([]*types.HistoryEntry, error) {
				called = true

				return nil, nil
			},
		}

		s := &Server{
			storage: storage,
			logger:  noopLogger,
		}

		req := httptest.NewRequest(http.MethodGet, "/v1/rates/history?pair=USD/VES", http.NoBody)
		w := httptest.NewRecorder()

		s.History(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.False(t, called)
	})

	t.Run("missing pair", func(t *testing.T) {
		t.Parallel()

		s := &Server{
			storage: &mock.Storage{},
			logger:  noopLogger,
		}

		req := httptest.NewRequest(http.MethodGet, "/v1/rates/history?exchange=bcv", http.NoBody)
		w := httptest.NewRecorder()

		s.History(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid limit", func(t *testing.T) {
		t.Parallel()

		s := &Server{
			storage: &mock.Storage{},
			logger:  noopLogger,
		}

		req := httptest.NewRequest(
			http.MethodGet,
			"/v1/rates/history?exchange=bcv&pair=USD/VES&limit=abc",
			http.NoBody,
		)
		w := httptest.NewRecorder()

		s.History(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("limit clamped", func(t *testing.T) {
		t.Parallel()

		var capturedQuery *types.HistoryQuery

		storage := &mock.Storage{
			HistoryFn: func(_ context.Context, query *types.HistoryQuery) ([]*types.HistoryEntry, error) {
				capturedQuery = query

				return nil, nil
			},
		}

		s := &Server{
			storage: storage,
			logger:  noopLogger,
		}

		req := httptest.NewRequest(
			http.MethodGet,
			"/v1/rates/history?exchange=bcv&pair=USD/VES&limit=9999",
			http.NoBody,
		)
		w := httptest.NewRecorder()

		s.History(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		require.NotNil(t, capturedQuery)
		assert.Equal(t, maxLimit, capturedQuery.Limit)
	})
}

func TestHandlers_Compare(t *testing.T) {
	t.Parallel()

	t.Run("default comparison", func(t *testing.T) {
		t.Parallel()

		rateByKey := map[string]*types.RateRecord{
			"bcv/USD/VES":          testRecord("bcv", "USD/VES", 133.5159),
			"binance_p2p/USDT/VES": testRecord("binance_p2p", "USDT/VES", 37.5),
		}

		storage := &mock.Storage{
			CurrentRatesFn: func(_ context.Context, query *types.RateQuery) ([]*types.RateRecord, error) {
				record, ok := rateByKey[query.ExchangeCode+"/"+query.PairSymbol]
				if !ok {
					return nil, nil
				}

				return []*types.RateRecord{record}, nil
			},
		}

		s := &Server{
			storage: storage,
			logger:  noopLogger,
		}

		req := httptest.NewRequest(http.MethodGet, "/v1/rates/compare", http.NoBody)
		w := httptest.NewRecorder()

		s.Compare(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		resp := decodeJSON[CompareResponse](t, w)

		assert.Equal(t, "bcv", resp.RateA.ExchangeCode)
		assert.Equal(t, "binance_p2p", resp.RateB.ExchangeCode)
		assert.InDelta(t, 96.0159, resp.Comparison.SpreadAbsolute, 1e-9)
		assert.InDelta(t, 96.0159/37.5*100, resp.Comparison.SpreadPercentage, 1e-4)
	})

	t.Run("missing rate", func(t *testing.T) {
		t.Parallel()

		s := &Server{
			storage: &mock.Storage{},
			logger:  noopLogger,
		}

		req := httptest.NewRequest(http.MethodGet, "/v1/rates/compare", http.NoBody)
		w := httptest.NewRecorder()

		s.Compare(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHandlers_LiveSources(t *testing.T) {
	t.Parallel()

	t.Run("bcv not wired", func(t *testing.T) {
		t.Parallel()

		s := &Server{
			storage: &mock.Storage{},
			logger:  noopLogger,
		}

		w := httptest.NewRecorder()
		s.BCVRates(w, httptest.NewRequest(http.MethodGet, "/v1/rates/bcv", http.NoBody))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("bcv fetch failure is a gateway error", func(t *testing.T) {
		t.Parallel()

		s := &Server{
			storage: &mock.Storage{},
			logger:  noopLogger,
			scraper: &mockFetcher{
				fetchFn: func(_ context.Context) ([]*types.RateRecord, error) {
					return nil, provider.ErrParse
				},
			},
		}

		w := httptest.NewRecorder()
		s.BCVRates(w, httptest.NewRequest(http.MethodGet, "/v1/rates/bcv", http.NoBody))

		assert.Equal(t, http.StatusBadGateway, w.Code)
	})

	t.Run("bcv live fetch", func(t *testing.T) {
		t.Parallel()

		s := &Server{
			storage: &mock.Storage{},
			logger:  noopLogger,
			scraper: &mockFetcher{
				fetchFn: func(_ context.Context) ([]*types.RateRecord, error) {
					return []*types.RateRecord{
						testRecord("bcv", "USD/VES", 133.51),
						testRecord("bcv", "EUR/VES", 155.72),
					}, nil
				},
			},
		}

		w := httptest.NewRecorder()
		s.BCVRates(w, httptest.NewRequest(http.MethodGet, "/v1/rates/bcv", http.NoBody))

		require.Equal(t, http.StatusOK, w.Code)

		page := decodeJSON[types.Page[*types.RateRecord]](t, w)
		assert.Len(t, page.Results, 2)
	})

	t.Run("binance empty market is not found", func(t *testing.T) {
		t.Parallel()

		s := &Server{
			storage: &mock.Storage{},
			logger:  noopLogger,
			p2p: &mockQuoteClient{
				fetchCompleteQuoteFn: func(_ context.Context) (*binance.CompleteQuote, error) {
					return nil, provider.ErrNoAdvertisements
				},
			},
		}

		w := httptest.NewRecorder()
		s.BinanceQuote(w, httptest.NewRequest(http.MethodGet, "/v1/rates/binance", http.NoBody))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("binance live quote", func(t *testing.T) {
		t.Parallel()

		s := &Server{
			storage: &mock.Storage{},
			logger:  noopLogger,
			p2p: &mockQuoteClient{
				fetchCompleteQuoteFn: func(_ context.Context) (*binance.CompleteQuote, error) {
					return &binance.CompleteQuote{
						SpreadInternal: 0.6,
						LiquidityScore: "medium",
					}, nil
				},
			},
		}

		w := httptest.NewRecorder()
		s.BinanceQuote(w, httptest.NewRequest(http.MethodGet, "/v1/rates/binance", http.NoBody))

		require.Equal(t, http.StatusOK, w.Code)

		quote := decodeJSON[binance.CompleteQuote](t, w)
		assert.Equal(t, "medium", quote.LiquidityScore)
	})
}

func TestHandlers_Refresh(t *testing.T) {
	t.Parallel()

	newSource := func(name string, records []*types.RateRecord) ingest.Source {
		return &mockSource{
			nameFn: func() string {
				return name
			},
			fetchFn: func(_ context.Context) ([]*types.RateRecord, error) {
				return records, nil
			},
		}
	}

	t.Run("unknown exchange", func(t *testing.T) {
		t.Parallel()

		s := &Server{
			storage:   &mock.Storage{},
			logger:    noopLogger,
			refresher: &mockRefresher{},
			sources: map[string]ingest.Source{
				"bcv": newSource("BCV", nil),
			},
		}

		req := httptest.NewRequest(http.MethodPost, "/v1/rates/refresh?exchange=nope", http.NoBody)
		w := httptest.NewRecorder()

		s.Refresh(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("refresh all sources", func(t *testing.T) {
		t.Parallel()

		var refreshed []string

		s := &Server{
			storage: &mock.Storage{},
			logger:  noopLogger,
			refresher: &mockRefresher{
				refreshFn: func(_ context.Context, source ingest.Source) ([]*types.RateRecord, error) {
					refreshed = append(refreshed, source.Name())

					return []*types.RateRecord{
						testRecord(source.Name(), "USD/VES", 1),
					}, nil
				},
			},
			sources: map[string]ingest.Source{
				"bcv":         newSource("bcv", nil),
				"binance_p2p": newSource("binance_p2p", nil),
			},
		}

		req := httptest.NewRequest(http.MethodPost, "/v1/rates/refresh", http.NoBody)
		w := httptest.NewRecorder()

		s.Refresh(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		// Deterministic order: exchange codes sorted
		assert.Equal(t, []string{"bcv", "binance_p2p"}, refreshed)

		resp := decodeJSON[RefreshResponse](t, w)
		assert.Len(t, resp.Refreshed, 2)
	})

	t.Run("refresh single exchange", func(t *testing.T) {
		t.Parallel()

		var refreshed []string

		s := &Server{
			storage: &mock.Storage{},
			logger:  noopLogger,
			refresher: &mockRefresher{
				refreshFn: func(_ context.Context, source ingest.Source) ([]*types.RateRecord, error) {
					refreshed = append(refreshed, source.Name())

					return nil, nil
				},
			},
			sources: map[string]ingest.Source{
				"bcv":         newSource("bcv", nil),
				"binance_p2p": newSource("binance_p2p", nil),
			},
		}

		req := httptest.NewRequest(http.MethodPost, "/v1/rates/refresh?exchange=bcv", http.NoBody)
		w := httptest.NewRecorder()

		s.Refresh(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []string{"bcv"}, refreshed)
	})

	t.Run("fetch failure is a gateway error", func(t *testing.T) {
		t.Parallel()

		s := &Server{
			storage: &mock.Storage{},
			logger:  noopLogger,
			refresher: &mockRefresher{
				refreshFn: func(_ context.Context, _ ingest.Source) ([]*types.RateRecord, error) {
					return nil, provider.ErrTransport
				},
			},
			sources: map[string]ingest.Source{
				"bcv": newSource("bcv", nil),
			},
		}

		req := httptest.NewRequest(http.MethodPost, "/v1/rates/refresh", http.NoBody)
		w := httptest.NewRecorder()

		s.Refresh(w, req)

		assert.Equal(t, http.StatusBadGateway, w.Code)
	})
}

func TestHandlers_Status(t *testing.T) {
	t.Parallel()

	lastUpdate := time.Now().UTC().Add(-time.Minute)

	storage := &mock.Storage{
		ListExchangesFn: func(_ context.Context) ([]*types.Exchange, error) {
			return []*types.Exchange{
				{Code: "bcv", Name: "Banco Central de Venezuela", Active: true},
				{Code: "binance_p2p", Name: "Binance P2P", Active: true},
			}, nil
		},
		CurrentRatesFn: func(_ context.Context, _ *types.RateQuery) ([]*types.RateRecord, error) {
			record := testRecord("bcv", "USD/VES", 133.51)
			record.LastUpdate = lastUpdate

			return []*types.RateRecord{record}, nil
		},
	}

	s := &Server{
		storage: storage,
		logger:  noopLogger,
	}

	w := httptest.NewRecorder()
	s.Status(w, httptest.NewRequest(http.MethodGet, "/v1/rates/status", http.NoBody))

	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeJSON[StatusResponse](t, w)

	require.Len(t, resp.Exchanges, 2)

	bcv := resp.Exchanges[0]
	assert.Equal(t, "bcv", bcv.Code)
	require.Len(t, bcv.Rates, 1)
	assert.Equal(t, "USD/VES", bcv.Rates[0].PairSymbol)
	assert.GreaterOrEqual(t, bcv.Rates[0].AgeSeconds, int64(59))

	// No stored rate yet for the second exchange
	assert.Empty(t, resp.Exchanges[1].Rates)
}

func TestHandlers_APILogs(t *testing.T) {
	t.Parallel()

	t.Run("invalid limit", func(t *testing.T) {
		t.Parallel()

		s := &Server{
			storage: &mock.Storage{},
			logger:  noopLogger,
		}

		w := httptest.NewRecorder()
		s.APILogs(w, httptest.NewRequest(http.MethodGet, "/v1/logs?limit=-5", http.NoBody))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("latest entries", func(t *testing.T) {
		t.Parallel()

		var capturedLimit int32

		storage := &mock.Storage{
			APILogsFn: func(_ context.Context, limit int32) ([]*types.APILogEntry, error) {
				capturedLimit = limit

				return []*types.APILogEntry{
					{ID: "entry-1", Success: true},
				}, nil
			},
		}

		s := &Server{
			storage: storage,
			logger:  noopLogger,
		}

		w := httptest.NewRecorder()
		s.APILogs(w, httptest.NewRequest(http.MethodGet, "/v1/logs", http.NoBody))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, defaultLimit, capturedLimit)

		page := decodeJSON[types.Page[*types.APILogEntry]](t, w)
		require.Len(t, page.Results, 1)
	})
}

func TestServer_New(t *testing.T) {
	t.Parallel()

	t.Run("invalid configuration", func(t *testing.T) {
		t.Parallel()

		cfg := config.DefaultConfig()
		cfg.ListenAddress = "bogus"

		_, err := New(&mock.Storage{}, WithConfig(cfg))
		assert.Error(t, err)
	})

	t.Run("routes registered", func(t *testing.T) {
		t.Parallel()

		s, err := New(&mock.Storage{})
		require.NoError(t, err)

		srv := httptest.NewServer(s.mux)
		t.Cleanup(srv.Close)

		resp, err := http.Get(srv.URL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp, err = http.Get(srv.URL + "/v1/rates")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}
