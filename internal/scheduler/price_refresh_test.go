package scheduler

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantcoin/quantz/internal/clientdata"
	"github.com/quantcoin/quantz/internal/modules/trading"
	"github.com/quantcoin/quantz/internal/pricing"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPriceRefreshJob(t *testing.T) {
	ledgerDB := openTestDB(t)
	require.NoError(t, trading.InitSchema(ledgerDB))

	log := zerolog.Nop()
	holdings := trading.NewHoldingRepository(ledgerDB, log)

	_, err := ledgerDB.Exec(`
		INSERT INTO holdings (user_id, symbol, company_name, quantity, average_price, total_cost, current_price, current_value, created_at, last_updated)
		VALUES ('user-1', 'AAPL', 'Apple Inc.', 10, 100, 1000, 100, 1000, '2026-01-01 00:00:00', '2026-01-01 00:00:00')
	`)
	require.NoError(t, err)

	oracle := pricing.NewOracle([]pricing.Provider{
		{
			Name: "static",
			Fetch: func(_ context.Context, _ string) (float64, error) {
				return 125.50, nil
			},
		},
	}, nil, log)

	job := NewPriceRefreshJob(holdings, oracle, log)
	assert.Equal(t, "price_refresh", job.Name())
	require.NoError(t, job.Run())

	holding, err := holdings.Get("user-1", "AAPL")
	require.NoError(t, err)
	require.NotNil(t, holding)
	assert.Equal(t, 125.50, holding.CurrentPrice)
	assert.Equal(t, 1255.0, holding.CurrentValue)
}

func TestPriceRefreshJobNoHoldings(t *testing.T) {
	ledgerDB := openTestDB(t)
	require.NoError(t, trading.InitSchema(ledgerDB))

	log := zerolog.Nop()
	holdings := trading.NewHoldingRepository(ledgerDB, log)
	oracle := pricing.NewOracle(nil, nil, log)

	job := NewPriceRefreshJob(holdings, oracle, log)
	require.NoError(t, job.Run())
}

func TestCacheCleanupJob(t *testing.T) {
	cacheDB := openTestDB(t)
	cache := clientdata.NewRepository(cacheDB)
	require.NoError(t, cache.EnsureSchema())

	require.NoError(t, cache.Store(clientdata.TableCurrentPrices, "AAPL", map[string]float64{"price": 100}, -time.Minute))
	require.NoError(t, cache.Store(clientdata.TableCurrentPrices, "MSFT", map[string]float64{"price": 200}, time.Hour))

	job := NewCacheCleanupJob(cache, zerolog.Nop())
	require.NoError(t, job.Run())

	// The expired entry is gone even via the stale-tolerant read
	raw, err := cache.Get(clientdata.TableCurrentPrices, "AAPL")
	require.NoError(t, err)
	assert.Nil(t, raw)

	raw, err = cache.Get(clientdata.TableCurrentPrices, "MSFT")
	require.NoError(t, err)
	assert.NotNil(t, raw)
}
