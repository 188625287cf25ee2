// Package rates holds the pure rate math: normalization of raw source
// output into the common record shape, spread comparison between venues,
// and the history write-gate policy.
package rates

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/vesfx/vesrates/storage/types"
)

// ErrValidation tags semantically invalid numeric values: non-positive
// prices, or a negative spread on asset-style quotes. Corrupt upstream
// data is rejected, never silently stored
var ErrValidation = errors.New("invalid rate values")

// RawRate is the source-shaped input of the normalizer
type RawRate struct {
	BuyPrice   float64
	SellPrice  float64
	Volume24h  float64
	Source     string
	ObservedAt time.Time
}

// Comparison is the spread between two normalized records
type Comparison struct {
	SpreadAbsolute   float64 `json:"spread_absolute"`
	SpreadPercentage float64 `json:"spread_percentage"`
}

// Normalize maps raw source output onto the common record shape for the
// given (exchange, pair) key. The average is always recomputed from
// buy / sell, rounded to 4dp. Deterministic; fails only on invalid
// numeric input
func Normalize(raw RawRate, exchangeCode, pairSymbol string) (*types.RateRecord, error) {
	if raw.BuyPrice <= 0 || raw.SellPrice <= 0 {
		return nil, fmt.Errorf(
			"%w: non-positive price (buy=%f, sell=%f)",
			ErrValidation, raw.BuyPrice, raw.SellPrice,
		)
	}

	// Best-bid / best-ask selection guarantees sell >= buy; a negative
	// spread means the upstream data is corrupt
	if raw.SellPrice < raw.BuyPrice {
		return nil, fmt.Errorf(
			"%w: negative spread (buy=%f, sell=%f)",
			ErrValidation, raw.BuyPrice, raw.SellPrice,
		)
	}

	var (
		buy  = Round4(raw.BuyPrice)
		sell = Round4(raw.SellPrice)
	)

	observedAt := raw.ObservedAt
	if observedAt.IsZero() {
		observedAt = time.Now()
	}

	return &types.RateRecord{
		ExchangeCode: exchangeCode,
		PairSymbol:   pairSymbol,
		BuyPrice:     buy,
		SellPrice:    sell,
		AvgPrice:     Round4((buy + sell) / 2),
		Volume24h:    raw.Volume24h,
		Source:       raw.Source,
		LastUpdate:   observedAt.UTC(),
	}, nil
}

// Compare computes the absolute and relative spread between the average
// prices of two records. Symmetric in magnitude; assumes both records
// passed normalization (positive averages)
func Compare(a, b *types.RateRecord) Comparison {
	abs := math.Abs(a.AvgPrice - b.AvgPrice)

	return Comparison{
		SpreadAbsolute:   Round4(abs),
		SpreadPercentage: Round4(abs / math.Min(a.AvgPrice, b.AvgPrice) * 100),
	}
}

// Variation computes the percent change from prev to last, 4dp rounded.
// A non-positive reference yields 0
func Variation(prev, last float64) float64 {
	if prev <= 0 {
		return 0
	}

	return Round4((last - prev) / prev * 100)
}

// SignificantChange reports whether the move from prev to next crosses
// the given percentage threshold. Used to gate history appends
func SignificantChange(prev, next, thresholdPct float64) bool {
	if prev <= 0 {
		return true
	}

	return math.Abs(next-prev)/prev*100 >= thresholdPct
}

// Round4 rounds to 4 decimal places, the storage precision for rates
func Round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
