// Package alphavantage provides a client for the Alpha Vantage GLOBAL_QUOTE API.
package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Client is an Alpha Vantage API client.
// Alpha Vantage has a much stricter rate limit than Finnhub (25 requests/day
// on the free tier) which is why it sits second in the resolution chain.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new Alpha Vantage client
func NewClient(apiKey string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: "https://www.alphavantage.co/query",
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     log.With().Str("client", "alphavantage").Logger(),
	}
}

// globalQuoteResponse represents the GLOBAL_QUOTE payload.
// All numeric values are returned as strings.
type globalQuoteResponse struct {
	GlobalQuote struct {
		Symbol string `json:"01. symbol"`
		Price  string `json:"05. price"`
	} `json:"Global Quote"`
}

// CurrentPrice fetches the latest close/price for a symbol via GLOBAL_QUOTE.
func (c *Client) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	if c.apiKey == "" {
		return 0, fmt.Errorf("alpha vantage API key not configured")
	}

	params := url.Values{}
	params.Add("function", "GLOBAL_QUOTE")
	params.Add("symbol", symbol)
	params.Add("apikey", c.apiKey)

	reqURL := c.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch quote: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("alpha vantage API returned status %d", resp.StatusCode)
	}

	var result globalQuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("failed to parse response: %w", err)
	}

	// Rate-limited responses come back 200 with an empty Global Quote object
	if result.GlobalQuote.Price == "" {
		return 0, fmt.Errorf("no quote data returned for symbol %s", symbol)
	}

	price, err := strconv.ParseFloat(result.GlobalQuote.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse price %q: %w", result.GlobalQuote.Price, err)
	}

	if price <= 0 {
		return 0, fmt.Errorf("alpha vantage returned non-positive price %.4f for %s", price, symbol)
	}

	c.log.Debug().
		Str("symbol", symbol).
		Float64("price", price).
		Msg("Fetched quote")

	return price, nil
}
