package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/vesfx/vesrates/provider"
	"github.com/vesfx/vesrates/rates"
	"github.com/vesfx/vesrates/storage/types"
)

const (
	defaultLimit = int32(100)
	maxLimit     = int32(500)
)

// Default comparison targets: the official rate vs the P2P market
const (
	defaultCompareExchangeA = "bcv"
	defaultComparePairA     = "USD/VES"
	defaultCompareExchangeB = "binance_p2p"
	defaultComparePairB     = "USDT/VES"
)

var (
	errUnableToFetchRates     = errors.New("unable to fetch rates")
	errUnableToFetchHistory   = errors.New("unable to fetch rate history")
	errUnableToFetchExchanges = errors.New("unable to fetch exchanges")
	errUnableToFetchPairs     = errors.New("unable to fetch currency pairs")
	errUnableToFetchLogs      = errors.New("unable to fetch api logs")

	errMissingExchange = errors.New("missing exchange")
	errMissingPair     = errors.New("missing pair")
	errInvalidLimit    = errors.New("invalid limit")

	errRateNotFound      = errors.New("rate not found")
	errUnknownExchange   = errors.New("unknown exchange")
	errSourceNotWired    = errors.New("source not configured")
	errSourceUnavailable = errors.New("source unavailable")
)

// CurrentRates serves the latest rate snapshot, optionally filtered
// by exchange and pair
func (s *Server) CurrentRates(w http.ResponseWriter, r *http.Request) {
	query := &types.RateQuery{
		ExchangeCode: strings.TrimSpace(r.URL.Query().Get("exchange")),
		PairSymbol:   strings.TrimSpace(r.URL.Query().Get("pair")),
	}

	items, err := s.storage.CurrentRates(r.Context(), query)
	if err != nil {
		s.logger.Debug(
			"unable to fetch rates",
			"err", err,
		)

		writeError(
			w,
			http.StatusInternalServerError,
			errUnableToFetchRates,
		)

		return
	}

	page := &types.Page[*types.RateRecord]{
		Results: items,
		Total:   int64(len(items)),
	}

	writeJSON(w, http.StatusOK, page)
}

// History serves past observations for a single (exchange, pair) key,
// newest first
func (s *Server) History(w http.ResponseWriter, r *http.Request) {
	var (
		exchangeParam = strings.TrimSpace(r.URL.Query().Get("exchange"))
		pairParam     = strings.TrimSpace(r.URL.Query().Get("pair"))
		limitParam    = r.URL.Query().Get("limit")
	)

	if exchangeParam == "" {
		writeError(w, http.StatusBadRequest, errMissingExchange)

		return
	}

	if pairParam == "" {
		writeError(w, http.StatusBadRequest, errMissingPair)

		return
	}

	limit, err := parseLimit(limitParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	query := &types.HistoryQuery{
		ExchangeCode: exchangeParam,
		PairSymbol:   pairParam,
		Limit:        limit,
	}

	items, err := s.storage.History(r.Context(), query)
	if err != nil {
		s.logger.Debug(
			"unable to fetch history",
			"err", err,
		)

		writeError(
			w,
			http.StatusInternalServerError,
			errUnableToFetchHistory,
		)

		return
	}

	page := &types.Page[*types.HistoryEntry]{
		Results: items,
		Total:   int64(len(items)),
	}

	writeJSON(w, http.StatusOK, page)
}

// Compare serves the spread between two stored rates. Defaults to the
// official BCV USD rate against the Binance P2P USDT market
func (s *Server) Compare(w http.ResponseWriter, r *http.Request) {
	var (
		exchangeA = queryDefault(r, "exchange_a", defaultCompareExchangeA)
		pairA     = queryDefault(r, "pair_a", defaultComparePairA)
		exchangeB = queryDefault(r, "exchange_b", defaultCompareExchangeB)
		pairB     = queryDefault(r, "pair_b", defaultComparePairB)
	)

	rateA, err := s.currentRate(r, exchangeA, pairA)
	if err != nil {
		s.writeRateLookupError(w, err)

		return
	}

	rateB, err := s.currentRate(r, exchangeB, pairB)
	if err != nil {
		s.writeRateLookupError(w, err)

		return
	}

	resp := &CompareResponse{
		RateA:      rateA,
		RateB:      rateB,
		Comparison: rates.Compare(rateA, rateB),
	}

	writeJSON(w, http.StatusOK, resp)
}

// BCVRates serves a live scrape of the official BCV rates,
// without persisting anything
func (s *Server) BCVRates(w http.ResponseWriter, r *http.Request) {
	if s.scraper == nil {
		writeError(w, http.StatusServiceUnavailable, errSourceNotWired)

		return
	}

	records, err := s.scraper.Fetch(r.Context())
	if err != nil {
		s.logger.Debug(
			"unable to fetch live BCV rates",
			"err", err,
		)

		writeError(w, fetchStatus(err), errSourceUnavailable)

		return
	}

	page := &types.Page[*types.RateRecord]{
		Results: records,
		Total:   int64(len(records)),
	}

	writeJSON(w, http.StatusOK, page)
}

// BinanceQuote serves a live complete P2P market quote,
// without persisting anything
func (s *Server) BinanceQuote(w http.ResponseWriter, r *http.Request) {
	if s.p2p == nil {
		writeError(w, http.StatusServiceUnavailable, errSourceNotWired)

		return
	}

	quote, err := s.p2p.FetchCompleteQuote(r.Context())
	if err != nil {
		s.logger.Debug(
			"unable to fetch live P2P quote",
			"err", err,
		)

		if errors.Is(err, provider.ErrNoAdvertisements) {
			writeError(w, http.StatusNotFound, provider.ErrNoAdvertisements)

			return
		}

		writeError(w, fetchStatus(err), errSourceUnavailable)

		return
	}

	writeJSON(w, http.StatusOK, quote)
}

// Refresh runs a forced fetch-and-persist cycle in the request scope.
// An optional exchange query param narrows the source set
func (s *Server) Refresh(w http.ResponseWriter, r *http.Request) {
	if s.refresher == nil {
		writeError(w, http.StatusServiceUnavailable, errSourceNotWired)

		return
	}

	exchangeParam := strings.TrimSpace(r.URL.Query().Get("exchange"))

	codes := make([]string, 0, len(s.sources))

	if exchangeParam != "" {
		if _, ok := s.sources[exchangeParam]; !ok {
			writeError(w, http.StatusNotFound, errUnknownExchange)

			return
		}

		codes = append(codes, exchangeParam)
	} else {
		for code := range s.sources {
			codes = append(codes, code)
		}

		sort.Strings(codes)
	}

	refreshed := make([]*types.RateRecord, 0, len(codes))

	for _, code := range codes {
		records, err := s.refresher.Refresh(r.Context(), s.sources[code])
		if err != nil {
			s.logger.Debug(
				"unable to refresh source",
				"exchange", code,
				"err", err,
			)

			writeError(w, fetchStatus(err), errSourceUnavailable)

			return
		}

		refreshed = append(refreshed, records...)
	}

	writeJSON(w, http.StatusOK, &RefreshResponse{Refreshed: refreshed})
}

// Status serves per-exchange freshness information
func (s *Server) Status(w http.ResponseWriter, r *http.Request) {
	exchanges, err := s.storage.ListExchanges(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, errUnableToFetchExchanges)

		return
	}

	current, err := s.storage.CurrentRates(r.Context(), &types.RateQuery{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, errUnableToFetchRates)

		return
	}

	now := time.Now().UTC()

	byExchange := make(map[string][]RateStatus)
	for _, record := range current {
		byExchange[record.ExchangeCode] = append(
			byExchange[record.ExchangeCode],
			RateStatus{
				PairSymbol: record.PairSymbol,
				LastUpdate: record.LastUpdate,
				AgeSeconds: int64(now.Sub(record.LastUpdate).Seconds()),
			},
		)
	}

	resp := &StatusResponse{
		Exchanges: make([]ExchangeStatus, 0, len(exchanges)),
		Timestamp: now,
	}

	for _, exchange := range exchanges {
		resp.Exchanges = append(resp.Exchanges, ExchangeStatus{
			Code:   exchange.Code,
			Name:   exchange.Name,
			Active: exchange.Active,
			Rates:  byExchange[exchange.Code],
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// Exchanges serves the registered exchange reference data
func (s *Server) Exchanges(w http.ResponseWriter, r *http.Request) {
	items, err := s.storage.ListExchanges(r.Context())
	if err != nil {
		s.logger.Debug(
			"unable to fetch exchanges",
			"err", err,
		)

		writeError(
			w,
			http.StatusInternalServerError,
			errUnableToFetchExchanges,
		)

		return
	}

	page := &types.Page[*types.Exchange]{
		Results: items,
		Total:   int64(len(items)),
	}

	writeJSON(w, http.StatusOK, page)
}

// Pairs serves the registered currency pair reference data
func (s *Server) Pairs(w http.ResponseWriter, r *http.Request) {
	items, err := s.storage.ListPairs(r.Context())
	if err != nil {
		s.logger.Debug(
			"unable to fetch pairs",
			"err", err,
		)

		writeError(
			w,
			http.StatusInternalServerError,
			errUnableToFetchPairs,
		)

		return
	}

	page := &types.Page[*types.CurrencyPair]{
		Results: items,
		Total:   int64(len(items)),
	}

	writeJSON(w, http.StatusOK, page)
}

// APILogs serves the latest external-call audit entries
func (s *Server) APILogs(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	items, err := s.storage.APILogs(r.Context(), limit)
	if err != nil {
		s.logger.Debug(
			"unable to fetch api logs",
			"err", err,
		)

		writeError(
			w,
			http.StatusInternalServerError,
			errUnableToFetchLogs,
		)

		return
	}

	page := &types.Page[*types.APILogEntry]{
		Results: items,
		Total:   int64(len(items)),
	}

	writeJSON(w, http.StatusOK, page)
}

// currentRate fetches the single stored rate for an (exchange, pair) key
func (s *Server) currentRate(
	r *http.Request,
	exchangeCode string,
	pairSymbol string,
) (*types.RateRecord, error) {
	items, err := s.storage.CurrentRates(r.Context(), &types.RateQuery{
		ExchangeCode: exchangeCode,
		PairSymbol:   pairSymbol,
	})
	if err != nil {
		return nil, err
	}

	if len(items) == 0 {
		return nil, errRateNotFound
	}

	return items[0], nil
}

func (s *Server) writeRateLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, errRateNotFound) {
		writeError(w, http.StatusNotFound, errRateNotFound)

		return
	}

	s.logger.Debug(
		"unable to fetch rates",
		"err", err,
	)

	writeError(w, http.StatusInternalServerError, errUnableToFetchRates)
}

// fetchStatus maps a fetch failure to its HTTP status: upstream
// transport / payload failures are gateway errors, anything else is
// an internal failure
func fetchStatus(err error) int {
	switch {
	case errors.Is(err, provider.ErrTransport),
		errors.Is(err, provider.ErrParse),
		errors.Is(err, rates.ErrValidation):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func parseLimit(limitRaw string) (int32, error) {
	limit := defaultLimit

	if v := strings.TrimSpace(limitRaw); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return 0, errInvalidLimit
		}

		limit = int32(n) //nolint:gosec // Fine to clamp
	}

	if limit == 0 {
		limit = defaultLimit
	}

	if limit > maxLimit {
		limit = maxLimit
	}

	return limit, nil
}

func queryDefault(r *http.Request, key, fallback string) string {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return fallback
	}

	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // Fine to ignore
}

func writeError(w http.ResponseWriter, status int, err error) {
	resp := &ErrorResponse{
		Error: err.Error(),
	}

	writeJSON(w, status, resp)
}
