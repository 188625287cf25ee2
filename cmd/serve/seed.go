package serve

import (
	"context"
	"fmt"
	"time"

	"github.com/vesfx/vesrates/provider/bcv"
	"github.com/vesfx/vesrates/provider/binance"
	"github.com/vesfx/vesrates/storage"
	"github.com/vesfx/vesrates/storage/types"
)

// seedReferenceData registers the default exchanges and currency pairs.
// Safe to run on every boot: saves are upserts
func seedReferenceData(ctx context.Context, store storage.Storage) error {
	now := time.Now().UTC()

	exchanges := []*types.Exchange{
		{
			Code:            bcv.ExchangeCode,
			Name:            "Banco Central de Venezuela",
			Kind:            types.ExchangeKindFiat,
			Description:     "Official central bank reference rate",
			OperatingHours:  "Mon-Fri banking days",
			UpdateFrequency: "daily",
			Website:         "https://www.bcv.org.ve",
			Active:          true,
			CreatedAt:       now,
			UpdatedAt:       now,
		},
		{
			Code:            binance.ExchangeCode,
			Name:            "Binance P2P",
			Kind:            types.ExchangeKindCrypto,
			Description:     "Peer-to-peer USDT/VES market",
			OperatingHours:  "24/7",
			UpdateFrequency: "5m",
			Website:         "https://p2p.binance.com",
			Active:          true,
			CreatedAt:       now,
			UpdatedAt:       now,
		},
	}

	for _, exchange := range exchanges {
		if err := store.SaveExchange(ctx, exchange); err != nil {
			return fmt.Errorf("unable to seed exchange %s: %w", exchange.Code, err)
		}
	}

	pairs := []*types.CurrencyPair{
		{
			Symbol:    "USD/VES",
			Base:      types.CurrencyUSD,
			Quote:     types.CurrencyVES,
			Precision: 4,
			Active:    true,
			CreatedAt: now,
		},
		{
			Symbol:    "EUR/VES",
			Base:      types.CurrencyEUR,
			Quote:     types.CurrencyVES,
			Precision: 4,
			Active:    true,
			CreatedAt: now,
		},
		{
			Symbol:    "USDT/VES",
			Base:      types.CurrencyUSDT,
			Quote:     types.CurrencyVES,
			Precision: 4,
			Active:    true,
			CreatedAt: now,
		},
	}

	for _, pair := range pairs {
		if err := store.SavePair(ctx, pair); err != nil {
			return fmt.Errorf("unable to seed pair %s: %w", pair.Symbol, err)
		}
	}

	return nil
}
