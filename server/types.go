package server

import (
	"time"

	"github.com/vesfx/vesrates/rates"
	"github.com/vesfx/vesrates/storage/types"
)

type CompareResponse struct {
	RateA      *types.RateRecord `json:"rate_a"`
	RateB      *types.RateRecord `json:"rate_b"`
	Comparison rates.Comparison  `json:"comparison"`
}

type RefreshResponse struct {
	Refreshed []*types.RateRecord `json:"refreshed"`
}

type RateStatus struct {
	PairSymbol string    `json:"pair_symbol"`
	LastUpdate time.Time `json:"last_update"`
	AgeSeconds int64     `json:"age_seconds"`
}

type ExchangeStatus struct {
	Code   string       `json:"code"`
	Name   string       `json:"name"`
	Active bool         `json:"active"`
	Rates  []RateStatus `json:"rates"`
}

type StatusResponse struct {
	Exchanges []ExchangeStatus `json:"exchanges"`
	Timestamp time.Time        `json:"timestamp"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
