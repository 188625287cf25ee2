// Package binance fetches USDT/VES quotes from the Binance P2P
// advertisement search API.
//
//nolint:tagliatelle // Binance API uses camel case
package binance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/vesfx/vesrates/provider"
	"github.com/vesfx/vesrates/rates"
	"github.com/vesfx/vesrates/storage/types"
)

// ExchangeCode is the storage key for the Binance P2P market
const ExchangeCode = "binance_p2p"

// DefaultURL is the public Binance P2P ad-search endpoint
const DefaultURL = "https://p2p.binance.com/bapi/c2c/v2/friendly/c2c/adv/search"

// successCode is the only response code the API returns on success
const successCode = "000000"

// adSearchRequest is the request body for the Binance P2P ad search
type adSearchRequest struct {
	Asset         string   `json:"asset"`
	Fiat          string   `json:"fiat"`
	TradeType     string   `json:"tradeType"`
	Page          int      `json:"page"`
	Rows          int      `json:"rows"`
	TransAmount   int      `json:"transAmount"`
	PayTypes      []string `json:"payTypes"`
	PublisherType string   `json:"publisherType"`
}

// adSearchResponse is the fixed response schema of the ad search.
// Anything that deviates from it is a parse failure
type adSearchResponse struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Data    []adEntry `json:"data"`
}

type adEntry struct {
	Adv        adBody           `json:"adv"`
	Advertiser advertiserRecord `json:"advertiser"`
}

type adBody struct {
	Price                string        `json:"price"`
	MinSingleTransAmount string        `json:"minSingleTransAmount"`
	MaxSingleTransAmount string        `json:"maxSingleTransAmount"`
	TradableQuantity     string        `json:"tradableQuantity"`
	TradeMethods         []tradeMethod `json:"tradeMethods"`
}

type tradeMethod struct {
	TradeMethodName string `json:"tradeMethodName"`
}

type advertiserRecord struct {
	NickName string `json:"nickName"`
	UserType string `json:"userType"`
}

// Ad is the fully-parsed best advertisement of a quote side
type Ad struct {
	Price          float64  `json:"price"`
	MinAmount      float64  `json:"min_amount"`
	MaxAmount      float64  `json:"max_amount"`
	Merchant       string   `json:"merchant"`
	PayTypes       []string `json:"pay_types"`
	AdvertiserType string   `json:"advertiser_type"`
}

// Quote is the aggregation of a single market side
type Quote struct {
	Side      types.TradeSide `json:"side"`
	BestPrice float64         `json:"best_price"`
	AvgPrice  float64         `json:"avg_price"`
	Volume    float64         `json:"volume"`
	AdCount   int             `json:"ad_count"`
	BestAd    Ad              `json:"best_ad"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// CompleteQuote combines both market sides with the internal spread
// and a liquidity score
type CompleteQuote struct {
	Buy              Quote   `json:"buy"`
	Sell             Quote   `json:"sell"`
	SpreadInternal   float64 `json:"spread_internal"`
	SpreadPercentage float64 `json:"spread_percentage"`
	LiquidityScore   string  `json:"liquidity_score"`
}

// LiquidityThresholds buckets the combined 24h volume of both sides
// into a coarse liquidity score
type LiquidityThresholds struct {
	High   float64
	Medium float64
}

// DefaultLiquidityThresholds returns the standard volume buckets
func DefaultLiquidityThresholds() LiquidityThresholds {
	return LiquidityThresholds{
		High:   50000,
		Medium: 10000,
	}
}

func (t LiquidityThresholds) score(volume float64) string {
	switch {
	case volume >= t.High:
		return "high"
	case volume >= t.Medium:
		return "medium"
	default:
		return "low"
	}
}

// Client is the Binance P2P ad-search client
type Client struct {
	client    *http.Client
	url       string
	retry     provider.RetryPolicy
	liquidity LiquidityThresholds
}

// NewClient creates a new instance of the Binance P2P client
func NewClient(
	url string,
	timeout time.Duration,
	retry provider.RetryPolicy,
	liquidity LiquidityThresholds,
) *Client {
	return &Client{
		client: &http.Client{
			Timeout: timeout,
		},
		url:       url,
		retry:     retry,
		liquidity: liquidity,
	}
}

func (c *Client) Name() string {
	return "Binance P2P"
}

func (c *Client) Interval() time.Duration {
	return time.Minute * 5
}

// Fetch produces the normalized USDT/VES record from a complete quote.
// The BUY side of the ad search lists asks and the SELL side lists bids,
// so the stored buy price is the SELL-side best and the stored sell
// price is the BUY-side best
func (c *Client) Fetch(ctx context.Context) ([]*types.RateRecord, error) {
	quote, err := c.FetchCompleteQuote(ctx)
	if err != nil {
		return nil, err
	}

	record, err := rates.Normalize(
		rates.RawRate{
			BuyPrice:   quote.Sell.BestPrice,
			SellPrice:  quote.Buy.BestPrice,
			Volume24h:  quote.Buy.Volume + quote.Sell.Volume,
			Source:     ExchangeCode,
			ObservedAt: quote.Buy.FetchedAt,
		},
		ExchangeCode,
		"USDT/VES",
	)
	if err != nil {
		return nil, err
	}

	return []*types.RateRecord{record}, nil
}

// FetchCompleteQuote aggregates both market sides into a single quote
// with the internal spread and the liquidity score
func (c *Client) FetchCompleteQuote(ctx context.Context) (*CompleteQuote, error) {
	buy, err := c.FetchQuote(ctx, types.TradeSideBUY)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch BUY side: %w", err)
	}

	sell, err := c.FetchQuote(ctx, types.TradeSideSELL)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch SELL side: %w", err)
	}

	// The BUY side best is the lowest ask, the SELL side best is the
	// highest bid, so the internal spread is ask - bid
	spread := rates.Round4(buy.BestPrice - sell.BestPrice)

	return &CompleteQuote{
		Buy:              *buy,
		Sell:             *sell,
		SpreadInternal:   spread,
		SpreadPercentage: rates.Round4(spread / ((buy.BestPrice + sell.BestPrice) / 2) * 100),
		LiquidityScore:   c.liquidity.score(buy.Volume + sell.Volume),
	}, nil
}

// FetchQuote fetches and aggregates a single market side: the best
// price across the returned ads, the average of all ad prices, the
// summed tradable volume, and the full best-ad record
func (c *Client) FetchQuote(ctx context.Context, side types.TradeSide) (*Quote, error) {
	body, err := c.search(ctx, side)
	if err != nil {
		return nil, err
	}

	var apiResp adSearchResponse
	if err = json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("unable to decode response: %w: %w", provider.ErrParse, err)
	}

	if apiResp.Code != successCode {
		return nil, fmt.Errorf(
			"unexpected response code %q (%s): %w",
			apiResp.Code, apiResp.Message, provider.ErrParse,
		)
	}

	if len(apiResp.Data) == 0 {
		return nil, fmt.Errorf("%w for %s side", provider.ErrNoAdvertisements, side)
	}

	quote := &Quote{
		Side:      side,
		FetchedAt: time.Now().UTC(),
	}

	var priceSum float64

	for _, entry := range apiResp.Data {
		price, ok := parseFloat(entry.Adv.Price)
		if !ok || price <= 0 {
			continue
		}

		priceSum += price
		quote.AdCount++

		if volume, ok := parseFloat(entry.Adv.TradableQuantity); ok {
			quote.Volume += volume
		}

		// Strict comparison: the first ad at the best price wins.
		// The requester of the BUY side takes the lowest ask, the
		// requester of the SELL side takes the highest bid
		better := quote.AdCount == 1 ||
			(side == types.TradeSideBUY && price < quote.BestPrice) ||
			(side == types.TradeSideSELL && price > quote.BestPrice)

		if better {
			quote.BestPrice = price
			quote.BestAd = parseAd(entry, price)
		}
	}

	if quote.AdCount == 0 {
		return nil, fmt.Errorf("no parseable advertisements for %s side: %w", side, provider.ErrParse)
	}

	quote.BestPrice = rates.Round4(quote.BestPrice)
	quote.AvgPrice = rates.Round4(priceSum / float64(quote.AdCount))

	return quote, nil
}

// search POSTs the ad search for one side within the transport retry
// budget and returns the raw response body
func (c *Client) search(ctx context.Context, side types.TradeSide) ([]byte, error) {
	reqBody := adSearchRequest{
		Asset:         string(types.CurrencyUSDT),
		Fiat:          string(types.CurrencyVES),
		TradeType:     string(side),
		Page:          1,
		Rows:          10,
		TransAmount:   500,
		PayTypes:      []string{"PagoMovil"},
		PublisherType: "merchant",
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("unable to marshal request: %w", err)
	}

	var body []byte

	err = c.retry.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
		if err != nil {
			return provider.Permanent(
				fmt.Errorf("unable to create POST request: %w: %w", provider.ErrTransport, err),
			)
		}

		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("unable to execute POST request: %w: %w", provider.ErrTransport, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			err = fmt.Errorf(
				"invalid status code received: %w: %d",
				provider.ErrTransport, resp.StatusCode,
			)

			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return provider.Permanent(err)
			}

			return err
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("unable to read response body: %w: %w", provider.ErrTransport, err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return body, nil
}

// parseAd expands an ad entry into the full best-ad record
func parseAd(entry adEntry, price float64) Ad {
	var (
		minAmount, _ = parseFloat(entry.Adv.MinSingleTransAmount)
		maxAmount, _ = parseFloat(entry.Adv.MaxSingleTransAmount)
	)

	payTypes := make([]string, 0, len(entry.Adv.TradeMethods))
	for _, method := range entry.Adv.TradeMethods {
		payTypes = append(payTypes, method.TradeMethodName)
	}

	return Ad{
		Price:          price,
		MinAmount:      minAmount,
		MaxAmount:      maxAmount,
		Merchant:       entry.Advertiser.NickName,
		PayTypes:       payTypes,
		AdvertiserType: entry.Advertiser.UserType,
	}
}

// parseFloat parses a float string into a value
func parseFloat(value string) (float64, bool) {
	if value == "" {
		return 0, false
	}

	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false
	}

	return parsed, true
}
