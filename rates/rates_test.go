package rates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vesfx/vesrates/storage/types"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	t.Run("valid quote", func(t *testing.T) {
		t.Parallel()

		r, err := Normalize(
			RawRate{
				BuyPrice:   37.2,
				SellPrice:  37.8,
				Volume24h:  12500,
				Source:     "binance_p2p",
				ObservedAt: time.Now(),
			},
			"binance_p2p",
			"USDT/VES",
		)

		require.NoError(t, err)

		assert.Equal(t, "binance_p2p", r.ExchangeCode)
		assert.Equal(t, "USDT/VES", r.PairSymbol)
		assert.Equal(t, 37.2, r.BuyPrice)
		assert.Equal(t, 37.8, r.SellPrice)
		assert.Equal(t, 37.5, r.AvgPrice)
		assert.Equal(t, float64(12500), r.Volume24h)
	})

	t.Run("single official rate", func(t *testing.T) {
		t.Parallel()

		r, err := Normalize(
			RawRate{
				BuyPrice:  133.5159,
				SellPrice: 133.5159,
				Source:    "bcv",
			},
			"bcv",
			"USD/VES",
		)

		require.NoError(t, err)

		assert.Equal(t, r.BuyPrice, r.SellPrice)
		assert.Equal(t, r.BuyPrice, r.AvgPrice)
		assert.False(t, r.LastUpdate.IsZero())
	})

	t.Run("non-positive buy price", func(t *testing.T) {
		t.Parallel()

		_, err := Normalize(
			RawRate{BuyPrice: 0, SellPrice: 37.8},
			"binance_p2p",
			"USDT/VES",
		)

		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("non-positive sell price", func(t *testing.T) {
		t.Parallel()

		_, err := Normalize(
			RawRate{BuyPrice: 37.2, SellPrice: -1},
			"binance_p2p",
			"USDT/VES",
		)

		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("negative spread", func(t *testing.T) {
		t.Parallel()

		_, err := Normalize(
			RawRate{BuyPrice: 37.8, SellPrice: 37.2},
			"binance_p2p",
			"USDT/VES",
		)

		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("average is recomputed, 4dp", func(t *testing.T) {
		t.Parallel()

		r, err := Normalize(
			RawRate{BuyPrice: 1.00005, SellPrice: 1.00005},
			"bcv",
			"USD/VES",
		)

		require.NoError(t, err)
		assert.Equal(t, 1.0001, r.AvgPrice)
	})
}

func TestCompare(t *testing.T) {
	t.Parallel()

	record := func(avg float64) *types.RateRecord {
		return &types.RateRecord{AvgPrice: avg}
	}

	t.Run("mechanical spread example", func(t *testing.T) {
		t.Parallel()

		// Binance P2P best ask 37.80, best bid 37.20 -> avg 37.50,
		// against the official 133.5159 rate
		var (
			binanceAvg = (37.8 + 37.2) / 2
			bcvAvg     = 133.5159
		)

		c := Compare(record(binanceAvg), record(bcvAvg))

		assert.Equal(t, Round4(bcvAvg-binanceAvg), c.SpreadAbsolute)
		assert.Equal(t, Round4((bcvAvg-binanceAvg)/binanceAvg*100), c.SpreadPercentage)
	})

	t.Run("symmetric in magnitude", func(t *testing.T) {
		t.Parallel()

		a := Compare(record(37.5), record(133.5159))
		b := Compare(record(133.5159), record(37.5))

		assert.Equal(t, a.SpreadAbsolute, b.SpreadAbsolute)
		assert.Equal(t, a.SpreadPercentage, b.SpreadPercentage)
	})

	t.Run("identical averages", func(t *testing.T) {
		t.Parallel()

		c := Compare(record(42), record(42))

		assert.Zero(t, c.SpreadAbsolute)
		assert.Zero(t, c.SpreadPercentage)
	})
}

func TestVariation(t *testing.T) {
	t.Parallel()

	assert.Equal(t, float64(10), Variation(100, 110))
	assert.Equal(t, float64(-10), Variation(100, 90))
	assert.Zero(t, Variation(0, 110))
}

func TestSignificantChange(t *testing.T) {
	t.Parallel()

	t.Run("below threshold", func(t *testing.T) {
		t.Parallel()

		assert.False(t, SignificantChange(100, 100.005, 0.01))
	})

	t.Run("at threshold", func(t *testing.T) {
		t.Parallel()

		assert.True(t, SignificantChange(100, 100.01, 0.01))
	})

	t.Run("no previous value", func(t *testing.T) {
		t.Parallel()

		assert.True(t, SignificantChange(0, 37.5, 0.01))
	})
}
