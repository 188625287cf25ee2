package config

import (
	"errors"
	"os"
	"regexp"

	"github.com/pelletier/go-toml"
)

const DefaultListenAddress = "0.0.0.0:8545"

// Default source endpoints
const (
	DefaultBCVURL     = "https://www.bcv.org.ve/"
	DefaultBinanceURL = "https://p2p.binance.com/bapi/c2c/v2/friendly/c2c/adv/search"
)

var (
	ErrInvalidListenAddress = errors.New("invalid listen address")
	ErrInvalidSourceURL     = errors.New("invalid source URL")
	ErrInvalidTimeout       = errors.New("invalid source timeout")
	ErrInvalidThreshold     = errors.New("invalid change threshold")
	ErrInvalidRetention     = errors.New("invalid retention horizon")
)

var listenAddressRegex = regexp.MustCompile(`^\d{1,3}(\.\d{1,3}){3}:\d+$`)

// Config defines the base-level server configuration
type Config struct {
	// The associated CORS config, if any
	CORSConfig *CORS `toml:"cors_config"`

	// The external source settings
	Sources Sources `toml:"sources"`

	// The persistence policy settings
	Policy Policy `toml:"policy"`

	// The address at which the server will be served.
	// Format should be: <IP>:<PORT>
	ListenAddress string `toml:"listen_address"`
}

// Sources holds the external rate source settings
type Sources struct {
	// The BCV website URL to scrape
	BCVURL string `toml:"bcv_url"`

	// The Binance P2P ad-search endpoint
	BinanceURL string `toml:"binance_url"`

	// The per-request timeout, in seconds
	TimeoutSeconds int `toml:"timeout_seconds"`

	// The transport retry budget per fetch
	MaxRetries uint64 `toml:"max_retries"`
}

// Policy holds the persistence and retention policy settings
type Policy struct {
	// The percentage move that gates history appends
	SignificantChangePct float64 `toml:"significant_change_pct"`

	// Combined-volume buckets for the P2P liquidity score
	LiquidityHighVolume   float64 `toml:"liquidity_high_volume"`
	LiquidityMediumVolume float64 `toml:"liquidity_medium_volume"`

	// Retention horizons, in days
	HistoryRetentionDays int `toml:"history_retention_days"`
	APILogRetentionDays  int `toml:"api_log_retention_days"`
}

// DefaultConfig returns the default server configuration
func DefaultConfig() *Config {
	return &Config{
		ListenAddress: DefaultListenAddress,
		CORSConfig:    DefaultCORSConfig(),
		Sources: Sources{
			BCVURL:         DefaultBCVURL,
			BinanceURL:     DefaultBinanceURL,
			TimeoutSeconds: 30,
			MaxRetries:     3,
		},
		Policy: Policy{
			SignificantChangePct:  0.01,
			LiquidityHighVolume:   50000,
			LiquidityMediumVolume: 10000,
			HistoryRetentionDays:  90,
			APILogRetentionDays:   30,
		},
	}
}

// ValidateConfig validates the server configuration
func ValidateConfig(config *Config) error {
	// Validate the listen address
	if !listenAddressRegex.MatchString(config.ListenAddress) {
		return ErrInvalidListenAddress
	}

	// Validate the source settings
	if config.Sources.BCVURL == "" || config.Sources.BinanceURL == "" {
		return ErrInvalidSourceURL
	}

	if config.Sources.TimeoutSeconds <= 0 {
		return ErrInvalidTimeout
	}

	// Validate the policy settings
	if config.Policy.SignificantChangePct < 0 {
		return ErrInvalidThreshold
	}

	if config.Policy.HistoryRetentionDays <= 0 || config.Policy.APILogRetentionDays <= 0 {
		return ErrInvalidRetention
	}

	return nil
}

// Read reads the configuration from the given path
func Read(path string) (*Config, error) {
	// Read the config file
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Start from defaults so partial files stay valid
	cfg := DefaultConfig()

	if err := toml.Unmarshal(content, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
