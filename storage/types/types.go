package types

import "time"

type Currency string

const (
	CurrencyUSD  Currency = "USD"
	CurrencyEUR  Currency = "EUR"
	CurrencyUSDT Currency = "USDT"
	CurrencyVES  Currency = "VES"
)

func (c Currency) String() string {
	return string(c)
}

// TradeSide is the side of a P2P market quote,
// from the perspective of the asset buyer / seller
type TradeSide string

const (
	TradeSideBUY  TradeSide = "BUY"
	TradeSideSELL TradeSide = "SELL"
)

func (t TradeSide) String() string {
	return string(t)
}

// ExchangeKind is the category of the rate venue
type ExchangeKind string

const (
	ExchangeKindFiat   ExchangeKind = "fiat"
	ExchangeKindCrypto ExchangeKind = "crypto"
)

func (k ExchangeKind) String() string {
	return string(k)
}

// Exchange is a single rate venue (central bank, P2P market...).
// Created once at setup, rarely mutated afterwards
type Exchange struct {
	Code            string       `json:"code"`
	Name            string       `json:"name"`
	Kind            ExchangeKind `json:"kind"`
	Description     string       `json:"description,omitempty"`
	OperatingHours  string       `json:"operating_hours,omitempty"`
	UpdateFrequency string       `json:"update_frequency,omitempty"`
	Website         string       `json:"website,omitempty"`
	Active          bool         `json:"active"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// CurrencyPair is static reference data for a traded pair
type CurrencyPair struct {
	Symbol    string    `json:"symbol"` // ex. "USD/VES"
	Base      Currency  `json:"base"`
	Quote     Currency  `json:"quote"`
	Precision int       `json:"precision"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// RateRecord is the latest normalized observation for an (exchange, pair) key.
// At most one live row per key; buy and sell prices are always positive,
// and the average is recomputed from them, never stored independently
type RateRecord struct {
	ExchangeCode string    `json:"exchange_code"`
	PairSymbol   string    `json:"pair_symbol"`
	BuyPrice     float64   `json:"buy_price"`
	SellPrice    float64   `json:"sell_price"`
	AvgPrice     float64   `json:"avg_price"`
	Volume24h    float64   `json:"volume_24h"`
	Variation24h float64   `json:"variation_24h"`
	Source       string    `json:"source"`
	LastUpdate   time.Time `json:"last_update"`
}

// HistoryEntry is a single immutable, timestamped rate observation
type HistoryEntry struct {
	ID           int64     `json:"id"`
	ExchangeCode string    `json:"exchange_code"`
	PairSymbol   string    `json:"pair_symbol"`
	BuyPrice     float64   `json:"buy_price"`
	SellPrice    float64   `json:"sell_price"`
	AvgPrice     float64   `json:"avg_price"`
	Volume24h    float64   `json:"volume_24h"`
	Source       string    `json:"source"`
	ObservedAt   time.Time `json:"observed_at"`
}

// APILogEntry is an append-only audit row for a single external call
type APILogEntry struct {
	ID            string    `json:"id"`
	Endpoint      string    `json:"endpoint"`
	Method        string    `json:"method"`
	StatusCode    int       `json:"status_code"`
	Source        string    `json:"source,omitempty"`
	OperationType string    `json:"operation_type,omitempty"`
	LatencyMS     int64     `json:"latency_ms"`
	Success       bool      `json:"success"`
	Error         string    `json:"error,omitempty"`
	ObservedAt    time.Time `json:"observed_at"`
}

// RateQuery filters current rate reads. Empty fields match everything
type RateQuery struct {
	ExchangeCode string `json:"exchange_code,omitempty"`
	PairSymbol   string `json:"pair_symbol,omitempty"`
}

// HistoryQuery filters history reads (newest-first, capped at Limit)
type HistoryQuery struct {
	ExchangeCode string `json:"exchange_code"`
	PairSymbol   string `json:"pair_symbol"`
	Limit        int32  `json:"limit"`
}

// Page wraps the results for pagination
type Page[T any] struct {
	Results []T   `json:"results"`
	Total   int64 `json:"total"`
}
