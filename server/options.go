package server

import (
	"log/slog"

	"github.com/vesfx/vesrates/ingest"
	"github.com/vesfx/vesrates/server/config"
)

type Option func(s *Server)

// WithLogger specifies the logger for the server
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithConfig specifies the config for the server
func WithConfig(c *config.Config) Option {
	return func(s *Server) {
		s.config = c
	}
}

// WithScraper specifies the live BCV fetcher
func WithScraper(f RateFetcher) Option {
	return func(s *Server) {
		s.scraper = f
	}
}

// WithP2PClient specifies the live Binance P2P quote client
func WithP2PClient(c QuoteClient) Option {
	return func(s *Server) {
		s.p2p = c
	}
}

// WithRefresher specifies the forced-refresh write path
func WithRefresher(r Refresher) Option {
	return func(s *Server) {
		s.refresher = r
	}
}

// WithSources specifies the refreshable sources, keyed by exchange code
func WithSources(sources map[string]ingest.Source) Option {
	return func(s *Server) {
		s.sources = sources
	}
}
