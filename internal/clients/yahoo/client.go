// Package yahoo provides an unauthenticated Yahoo Finance client built on the
// public v7 quote and v8 chart endpoints.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

const (
	quoteBaseURL = "https://query1.finance.yahoo.com/v7/finance/quote"
	chartBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart/"
)

// priceFields are scanned in order when resolving a current price from the
// quote payload. The first positive value wins.
var priceFields = []string{
	"currentPrice",
	"regularMarketPrice",
	"regularMarketPreviousClose",
	"previousClose",
	"regularMarketOpen",
	"open",
	"bid",
	"ask",
}

// Client is a Yahoo Finance API client
type Client struct {
	quoteURL string
	chartURL string
	client   *http.Client
	log      zerolog.Logger
}

// NewClient creates a new Yahoo Finance client
func NewClient(log zerolog.Logger) *Client {
	return &Client{
		quoteURL: quoteBaseURL,
		chartURL: chartBaseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log.With().Str("client", "yahoo").Logger(),
	}
}

// yahooQuoteResponse represents the response from the Yahoo Finance quote API
type yahooQuoteResponse struct {
	QuoteResponse struct {
		Result []map[string]interface{} `json:"result"`
		Error  interface{}              `json:"error"`
	} `json:"quoteResponse"`
}

// CurrentPrice resolves a current price by scanning the quote payload for the
// first positive price-like field.
func (c *Client) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	info, err := c.getQuoteInfo(ctx, symbol)
	if err != nil {
		return 0, fmt.Errorf("failed to get quote info: %w", err)
	}

	for _, field := range priceFields {
		if price := getFloat64(info, field); price != nil && *price > 0 {
			c.log.Debug().
				Str("symbol", symbol).
				Str("field", field).
				Float64("price", *price).
				Msg("Resolved price from quote")
			return *price, nil
		}
	}

	return 0, fmt.Errorf("no positive price field in quote for symbol %s", symbol)
}

// ChartPrice resolves a price from the v8 chart endpoint metadata. This is the
// last resort in the resolution chain: the chart endpoint is less aggressively
// rate-limited than the quote endpoint.
func (c *Client) ChartPrice(ctx context.Context, symbol string) (float64, error) {
	chart, err := c.getChart(ctx, symbol, "1d", "1d")
	if err != nil {
		return 0, err
	}

	if chart.Meta.RegularMarketPrice > 0 {
		return chart.Meta.RegularMarketPrice, nil
	}
	if chart.Meta.PreviousClose > 0 {
		return chart.Meta.PreviousClose, nil
	}
	if chart.Meta.ChartPreviousClose > 0 {
		return chart.Meta.ChartPreviousClose, nil
	}

	// Fall back to the last non-zero close in the series
	if len(chart.Indicators.Quote) > 0 {
		closes := chart.Indicators.Quote[0].Close
		for i := len(closes) - 1; i >= 0; i-- {
			if closes[i] > 0 {
				return closes[i], nil
			}
		}
	}

	return 0, fmt.Errorf("no positive price in chart data for symbol %s", symbol)
}

// DailyCloses fetches daily closing prices for the given range (e.g. "1mo",
// "3mo", "1y"). Used for technical indicator evaluation.
func (c *Client) DailyCloses(ctx context.Context, symbol, period string) ([]DailyClose, error) {
	chart, err := c.getChart(ctx, symbol, "1d", period)
	if err != nil {
		return nil, err
	}

	if len(chart.Indicators.Quote) == 0 {
		c.log.Warn().Str("symbol", symbol).Msg("No quote data in chart response")
		return []DailyClose{}, nil
	}

	timestamps := chart.Timestamp
	closes := chart.Indicators.Quote[0].Close

	var result []DailyClose
	for i := range timestamps {
		if i >= len(closes) || closes[i] <= 0 {
			continue
		}
		result = append(result, DailyClose{
			Date:  time.Unix(timestamps[i], 0).UTC(),
			Close: closes[i],
		})
	}

	c.log.Debug().
		Str("symbol", symbol).
		Str("period", period).
		Int("count", len(result)).
		Msg("Fetched daily closes")

	return result, nil
}

// GetCompanyInfo fetches company name, sector and industry metadata.
func (c *Client) GetCompanyInfo(ctx context.Context, symbol string) (*CompanyInfo, error) {
	info, err := c.getQuoteInfo(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to get quote info: %w", err)
	}

	name := getString(info, "longName", "")
	if name == "" {
		name = getString(info, "shortName", symbol)
	}

	return &CompanyInfo{
		Symbol:   symbol,
		Name:     name,
		Sector:   getString(info, "sector", ""),
		Industry: getString(info, "industry", ""),
		Exchange: getString(info, "fullExchangeName", ""),
		Currency: getString(info, "currency", "USD"),
	}, nil
}

// getQuoteInfo fetches quote information from the Yahoo Finance quote API
func (c *Client) getQuoteInfo(ctx context.Context, symbol string) (map[string]interface{}, error) {
	params := url.Values{}
	params.Add("symbols", symbol)
	params.Add("fields", "symbol,currentPrice,regularMarketPrice,regularMarketPreviousClose,previousClose,"+
		"regularMarketOpen,open,bid,ask,sector,industry,fullExchangeName,currency,"+
		"quoteType,longName,shortName")

	reqURL := c.quoteURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Set headers to mimic browser
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch quote: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("Yahoo Finance API returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var result yahooQuoteResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if result.QuoteResponse.Error != nil {
		return nil, fmt.Errorf("Yahoo Finance API error: %v", result.QuoteResponse.Error)
	}

	if len(result.QuoteResponse.Result) == 0 {
		return nil, fmt.Errorf("no quote data returned for symbol %s", symbol)
	}

	return result.QuoteResponse.Result[0], nil
}

// chartResult is the portion of the v8 chart response we care about
type chartResult struct {
	Meta struct {
		RegularMarketPrice float64 `json:"regularMarketPrice"`
		PreviousClose      float64 `json:"previousClose"`
		ChartPreviousClose float64 `json:"chartPreviousClose"`
		Currency           string  `json:"currency"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []float64 `json:"close"`
		} `json:"quote"`
	} `json:"indicators"`
}

// getChart fetches data from the Yahoo Finance chart API
func (c *Client) getChart(ctx context.Context, symbol, interval, rng string) (*chartResult, error) {
	params := url.Values{}
	params.Add("interval", interval)
	params.Add("range", rng)

	reqURL := c.chartURL + url.PathEscape(symbol) + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Set headers to mimic browser
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chart data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("Yahoo Finance API returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var result struct {
		Chart struct {
			Result []chartResult `json:"result"`
			Error  interface{}   `json:"error"`
		} `json:"chart"`
	}

	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if result.Chart.Error != nil {
		return nil, fmt.Errorf("Yahoo Finance API error: %v", result.Chart.Error)
	}

	if len(result.Chart.Result) == 0 {
		return nil, fmt.Errorf("no chart data returned for symbol %s", symbol)
	}

	return &result.Chart.Result[0], nil
}

// Helper functions to safely extract values from the quote map

func getFloat64(m map[string]interface{}, key string) *float64 {
	if val, ok := m[key]; ok && val != nil {
		switch v := val.(type) {
		case float64:
			return &v
		case int:
			f := float64(v)
			return &f
		case int64:
			f := float64(v)
			return &f
		}
	}
	return nil
}

func getString(m map[string]interface{}, key string, defaultVal string) string {
	if val, ok := m[key]; ok && val != nil {
		if s, ok := val.(string); ok && s != "" {
			return s
		}
	}
	return defaultVal
}
