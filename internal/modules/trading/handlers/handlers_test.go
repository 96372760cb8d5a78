package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantcoin/quantz/internal/auth"
	"github.com/quantcoin/quantz/internal/modules/trading"
	"github.com/quantcoin/quantz/internal/pricing"
)

type staticPriceSource struct {
	price float64
}

func (s *staticPriceSource) Resolve(ctx context.Context, symbol string) (*pricing.PriceResult, error) {
	return &pricing.PriceResult{Symbol: symbol, Price: s.price, Source: "test"}, nil
}

func setupTestRouter(t *testing.T) chi.Router {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, trading.InitSchema(db))

	log := zerolog.Nop()
	svc := trading.NewService(
		db,
		trading.NewWalletRepository(db, log),
		trading.NewHoldingRepository(db, log),
		trading.NewTransactionRepository(db, log),
		&staticPriceSource{price: 100.0},
		nil,
		10000.00,
		log,
	)

	r := chi.NewRouter()
	r.Route("/trading", func(r chi.Router) {
		r.Use(auth.Middleware)
		NewHandler(svc, log).RegisterRoutes(r)
	})
	return r
}

func TestTradeValidationReturnsBadRequest(t *testing.T) {
	router := setupTestRouter(t)

	testCases := []struct {
		name string
		path string
		body string
	}{
		{
			name: "empty symbol",
			path: "/trading/buy",
			body: `{"symbol":"","quantity":1}`,
		},
		{
			name: "zero quantity",
			path: "/trading/buy",
			body: `{"symbol":"AAPL","quantity":0}`,
		},
		{
			name: "negative pinned price",
			path: "/trading/buy",
			body: `{"symbol":"AAPL","quantity":1,"current_price":-5}`,
		},
		{
			name: "sell empty symbol",
			path: "/trading/sell",
			body: `{"symbol":"","quantity":1}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tc.path, strings.NewReader(tc.body))
			req.Header.Set(auth.HeaderUserID, "user-1")
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), `"success":false`)
		})
	}
}

func TestTradeMissingUserRejected(t *testing.T) {
	router := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/trading/buy",
		strings.NewReader(`{"symbol":"AAPL","quantity":1}`))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
