package serve

import (
	"time"

	"github.com/vesfx/vesrates/ingest"
	"github.com/vesfx/vesrates/provider"
	"github.com/vesfx/vesrates/provider/bcv"
	"github.com/vesfx/vesrates/provider/binance"
	"github.com/vesfx/vesrates/server/config"
)

// sourceSet bundles the configured rate sources
type sourceSet struct {
	scraper *bcv.Scraper
	p2p     *binance.Client

	// byExchange keys the sources by their exchange code,
	// for forced refreshes
	byExchange map[string]ingest.Source
}

// buildSources constructs the default rate sources from the config
func buildSources(cfg *config.Config) *sourceSet {
	var (
		timeout = time.Duration(cfg.Sources.TimeoutSeconds) * time.Second

		retry = provider.RetryPolicy{
			MaxAttempts:     cfg.Sources.MaxRetries,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     time.Second,
		}

		// Official BCV rates
		scraper = bcv.NewScraper(
			cfg.Sources.BCVURL,
			timeout,
			retry,
		)

		// Binance P2P USDT market
		p2p = binance.NewClient(
			cfg.Sources.BinanceURL,
			timeout,
			retry,
			binance.LiquidityThresholds{
				High:   cfg.Policy.LiquidityHighVolume,
				Medium: cfg.Policy.LiquidityMediumVolume,
			},
		)
	)

	return &sourceSet{
		scraper: scraper,
		p2p:     p2p,
		byExchange: map[string]ingest.Source{
			bcv.ExchangeCode:     scraper,
			binance.ExchangeCode: p2p,
		},
	}
}
