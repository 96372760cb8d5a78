// Package finnhub provides a client for the Finnhub real-time quote API.
package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// Client is a Finnhub API client
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new Finnhub client
func NewClient(token string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: "https://finnhub.io/api/v1",
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     log.With().Str("client", "finnhub").Logger(),
	}
}

// quoteResponse represents the Finnhub /quote payload.
// "c" is the current price; the other fields are unused here.
type quoteResponse struct {
	Current       float64 `json:"c"`
	PreviousClose float64 `json:"pc"`
}

// CurrentPrice fetches the real-time price for a symbol.
// Returns an error when the API responds with a non-200 status or a
// non-positive price; callers treat any error as "this source failed".
func (c *Client) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	if c.token == "" {
		return 0, fmt.Errorf("finnhub API key not configured")
	}

	params := url.Values{}
	params.Add("symbol", symbol)
	params.Add("token", c.token)

	reqURL := c.baseURL + "/quote?" + params.Encode()

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
		return 0, fmt.Errorf("finnhub API returned status %d", resp.StatusCode)
	}

	var quote quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return 0, fmt.Errorf("failed to parse response: %w", err)
	}

	if quote.Current <= 0 {
		return 0, fmt.Errorf("finnhub returned non-positive price %.4f for %s", quote.Current, symbol)
	}

	c.log.Debug().
		Str("symbol", symbol).
		Float64("price", quote.Current).
		Msg("Fetched quote")

	return quote.Current, nil
}
