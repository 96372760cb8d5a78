package yahoo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(zerolog.Nop())
	c.quoteURL = srv.URL + "/quote"
	c.chartURL = srv.URL + "/chart/"
	return c
}

func TestCurrentPriceFieldOrder(t *testing.T) {
	testCases := []struct {
		name      string
		result    string
		wantPrice float64
		wantErr   bool
	}{
		{
			name:      "currentPrice preferred",
			result:    `{"currentPrice": 150.5, "regularMarketPrice": 151.0}`,
			wantPrice: 150.5,
		},
		{
			name:      "falls through zero currentPrice",
			result:    `{"currentPrice": 0, "regularMarketPrice": 151.0}`,
			wantPrice: 151.0,
		},
		{
			name:      "bid as deep fallback",
			result:    `{"bid": 99.25}`,
			wantPrice: 99.25,
		},
		{
			name:    "no price fields",
			result:  `{"symbol": "AAPL", "currency": "USD"}`,
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"quoteResponse": {"result": [` + tc.result + `], "error": null}}`))
			})

			price, err := c.CurrentPrice(context.Background(), "AAPL")
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantPrice, price)
		})
	}
}

func TestCurrentPriceEmptyResult(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"quoteResponse": {"result": [], "error": null}}`))
	})

	_, err := c.CurrentPrice(context.Background(), "NOPE")
	assert.ErrorContains(t, err, "no quote data")
}

func TestChartPriceMetaFallback(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart": {"result": [{
			"meta": {"regularMarketPrice": 0, "previousClose": 0, "chartPreviousClose": 142.8},
			"timestamp": [],
			"indicators": {"quote": []}
		}], "error": null}}`))
	})

	price, err := c.ChartPrice(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 142.8, price)
}

func TestChartPriceLastClose(t *testing.T) {
	// Meta carries nothing usable; the last non-zero close wins
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart": {"result": [{
			"meta": {},
			"timestamp": [1700000000, 1700086400, 1700172800],
			"indicators": {"quote": [{"close": [101.5, 102.25, 0]}]}
		}], "error": null}}`))
	})

	price, err := c.ChartPrice(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 102.25, price)
}

func TestDailyClosesSkipsGaps(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		assert.Equal(t, "3mo", r.URL.Query().Get("range"))

		w.Write([]byte(`{"chart": {"result": [{
			"meta": {"regularMarketPrice": 100},
			"timestamp": [1700000000, 1700086400, 1700172800],
			"indicators": {"quote": [{"close": [100.0, 0, 103.5]}]}
		}], "error": null}}`))
	})

	closes, err := c.DailyCloses(context.Background(), "AAPL", "3mo")
	require.NoError(t, err)
	require.Len(t, closes, 2)
	assert.Equal(t, 100.0, closes[0].Close)
	assert.Equal(t, 103.5, closes[1].Close)
}

func TestGetCompanyInfo(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"quoteResponse": {"result": [{
			"longName": "Apple Inc.",
			"sector": "Technology",
			"industry": "Consumer Electronics",
			"fullExchangeName": "NasdaqGS",
			"currency": "USD"
		}], "error": null}}`))
	})

	info, err := c.GetCompanyInfo(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "Apple Inc.", info.Name)
	assert.Equal(t, "Technology", info.Sector)
	assert.Equal(t, "NasdaqGS", info.Exchange)
}

func TestGetCompanyInfoNameFallback(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"quoteResponse": {"result": [{"shortName": "Apple"}], "error": null}}`))
	})

	info, err := c.GetCompanyInfo(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "Apple", info.Name)
	assert.Equal(t, "USD", info.Currency)
}
