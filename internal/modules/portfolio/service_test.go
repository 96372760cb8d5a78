package portfolio

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sync"
	"testing"

	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantcoin/quantz/internal/modules/trading"
	"github.com/quantcoin/quantz/internal/pricing"
)

type fakePriceSource struct {
	mu     sync.Mutex
	prices map[string]float64
}

func (f *fakePriceSource) Resolve(ctx context.Context, symbol string) (*pricing.PriceResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	price, ok := f.prices[symbol]
	if !ok {
		return nil, fmt.Errorf("no price for %s", symbol)
	}
	return &pricing.PriceResult{Symbol: symbol, Price: price, Source: "test"}, nil
}

func (f *fakePriceSource) set(symbol string, price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[symbol] = price
}

func (f *fakePriceSource) unset(symbol string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.prices, symbol)
}

func setupTestPortfolio(t *testing.T) (*Service, *trading.Service, *fakePriceSource) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, trading.InitSchema(db))

	log := zerolog.Nop()
	prices := &fakePriceSource{prices: map[string]float64{}}

	holdings := trading.NewHoldingRepository(db, log)
	tradingSvc := trading.NewService(
		db,
		trading.NewWalletRepository(db, log),
		holdings,
		trading.NewTransactionRepository(db, log),
		prices,
		nil,
		10000.00,
		log,
	)

	snapshots := NewSnapshotRepository(db, log)
	require.NoError(t, snapshots.InitSchema())

	svc := NewService(tradingSvc, holdings, prices, nil, nil, snapshots, log)
	return svc, tradingSvc, prices
}

func TestSummaryZeroHoldings(t *testing.T) {
	svc, _, _ := setupTestPortfolio(t)

	summary, err := svc.GetSummary(context.Background(), "alice")
	require.NoError(t, err)

	assert.Empty(t, summary.Holdings)
	assert.Equal(t, 0.0, summary.TotalValue)
	assert.Equal(t, 0.0, summary.TotalCost)
	assert.Equal(t, 0.0, summary.TotalGainLossPercent)
	assert.Equal(t, 0.0, summary.DiversificationScore)
	assert.Nil(t, summary.BestPerformer)
	assert.Equal(t, 10000.00, summary.CashBalance)
}

func TestSummaryValuation(t *testing.T) {
	svc, tradingSvc, prices := setupTestPortfolio(t)
	ctx := context.Background()

	prices.set("AAPL", 100.00)
	_, err := tradingSvc.Buy(ctx, "alice", &trading.TradeRequest{Symbol: "AAPL", Quantity: 10})
	require.NoError(t, err)

	prices.set("AAPL", 120.00)
	summary, err := svc.GetSummary(ctx, "alice")
	require.NoError(t, err)

	require.Len(t, summary.Holdings, 1)
	h := summary.Holdings[0]
	assert.Equal(t, SourceRealtime, h.PriceSource)
	assert.InDelta(t, 1200.00, h.CurrentValue, 1e-9)
	assert.InDelta(t, 200.00, h.UnrealizedGainLoss, 1e-9)
	assert.InDelta(t, 20.0, h.UnrealizedGainLossPercent, 1e-9)
	assert.InDelta(t, 20.0, h.HoldingPeriodReturn, 1e-9)
	assert.Equal(t, 1, h.DaysHeld)
	// Annualized from a 1-day holding period: (1.2)^365.25 - 1
	expectedCAGR := (math.Pow(1.2, 365.25) - 1) * 100
	assert.InDelta(t, expectedCAGR, h.CAGRPercent, expectedCAGR*1e-9)

	assert.InDelta(t, 1200.00, summary.TotalValue, 1e-9)
	assert.InDelta(t, 1000.00, summary.TotalCost, 1e-9)
	assert.InDelta(t, 20.0, summary.TotalGainLossPercent, 1e-9)
	assert.InDelta(t, 9000.00, summary.CashBalance, 1e-9)
}

func TestSummaryIdempotentRead(t *testing.T) {
	svc, tradingSvc, prices := setupTestPortfolio(t)
	ctx := context.Background()

	prices.set("AAPL", 100.00)
	prices.set("MSFT", 50.00)
	_, err := tradingSvc.Buy(ctx, "alice", &trading.TradeRequest{Symbol: "AAPL", Quantity: 10})
	require.NoError(t, err)
	_, err = tradingSvc.Buy(ctx, "alice", &trading.TradeRequest{Symbol: "MSFT", Quantity: 4})
	require.NoError(t, err)

	first, err := svc.GetSummary(ctx, "alice")
	require.NoError(t, err)
	second, err := svc.GetSummary(ctx, "alice")
	require.NoError(t, err)

	// Valuation must never touch cost basis
	require.Len(t, second.Holdings, len(first.Holdings))
	for i := range first.Holdings {
		assert.Equal(t, first.Holdings[i].Quantity, second.Holdings[i].Quantity)
		assert.Equal(t, first.Holdings[i].AveragePrice, second.Holdings[i].AveragePrice)
		assert.Equal(t, first.Holdings[i].TotalCost, second.Holdings[i].TotalCost)
	}
}

func TestSyntheticPriceFlagged(t *testing.T) {
	svc, tradingSvc, prices := setupTestPortfolio(t)
	ctx := context.Background()

	prices.set("AAPL", 100.00)
	_, err := tradingSvc.Buy(ctx, "alice", &trading.TradeRequest{Symbol: "AAPL", Quantity: 10})
	require.NoError(t, err)

	// Quotes go dark; the stored current_price equals the purchase price so
	// it carries no market information and the estimate kicks in
	prices.unset("AAPL")

	summary, err := svc.GetSummary(ctx, "alice")
	require.NoError(t, err)

	require.Len(t, summary.Holdings, 1)
	h := summary.Holdings[0]
	assert.Equal(t, SourceEstimated, h.PriceSource)
	assert.InDelta(t, 100.00, h.CurrentPrice, 5.00+1e-9)
	assert.Greater(t, h.CurrentPrice, 0.0)

	// Estimated prices must never be written back to the ledger
	stored, err := tradingSvc.GetHolding("alice", "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 100.00, stored.CurrentPrice)
}

func TestStoredPriceFallback(t *testing.T) {
	svc, tradingSvc, prices := setupTestPortfolio(t)
	ctx := context.Background()

	prices.set("AAPL", 100.00)
	_, err := tradingSvc.Buy(ctx, "alice", &trading.TradeRequest{Symbol: "AAPL", Quantity: 10})
	require.NoError(t, err)

	// A real refresh lands 110, then quotes go dark
	prices.set("AAPL", 110.00)
	_, err = svc.GetSummary(ctx, "alice")
	require.NoError(t, err)
	prices.unset("AAPL")

	summary, err := svc.GetSummary(ctx, "alice")
	require.NoError(t, err)

	require.Len(t, summary.Holdings, 1)
	h := summary.Holdings[0]
	assert.Equal(t, SourceStored, h.PriceSource)
	assert.Equal(t, 110.00, h.CurrentPrice)
}

func TestDiversificationScore(t *testing.T) {
	testCases := []struct {
		name     string
		holdings []ValuedHolding
		check    func(t *testing.T, score float64)
	}{
		{
			name:     "empty",
			holdings: nil,
			check:    func(t *testing.T, score float64) { assert.Equal(t, 0.0, score) },
		},
		{
			name: "single sector",
			holdings: []ValuedHolding{
				{Sector: "Technology", CurrentValue: 1000},
				{Sector: "Technology", CurrentValue: 500},
			},
			check: func(t *testing.T, score float64) { assert.Equal(t, 0.0, score) },
		},
		{
			name: "two equal sectors",
			holdings: []ValuedHolding{
				{Sector: "Technology", CurrentValue: 1000},
				{Sector: "Energy", CurrentValue: 1000},
			},
			check: func(t *testing.T, score float64) { assert.InDelta(t, 100.0, score, 1e-9) },
		},
		{
			name: "skewed two sectors score below equal split",
			holdings: []ValuedHolding{
				{Sector: "Technology", CurrentValue: 1900},
				{Sector: "Energy", CurrentValue: 100},
			},
			check: func(t *testing.T, score float64) {
				assert.Greater(t, score, 0.0)
				assert.Less(t, score, 100.0)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.check(t, diversificationScore(tc.holdings))
		})
	}

	// More distinct sectors at equal weight never lowers the score
	two := diversificationScore([]ValuedHolding{
		{Sector: "A", CurrentValue: 100},
		{Sector: "B", CurrentValue: 100},
	})
	three := diversificationScore([]ValuedHolding{
		{Sector: "A", CurrentValue: 100},
		{Sector: "B", CurrentValue: 100},
		{Sector: "C", CurrentValue: 100},
	})
	assert.GreaterOrEqual(t, three, two-1e-9)
}

func TestSnapshotRoundTrip(t *testing.T) {
	svc, tradingSvc, prices := setupTestPortfolio(t)
	ctx := context.Background()

	prices.set("AAPL", 100.00)
	_, err := tradingSvc.Buy(ctx, "alice", &trading.TradeRequest{Symbol: "AAPL", Quantity: 10})
	require.NoError(t, err)

	snapshot, err := svc.TakeSnapshot(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, snapshot.Breakdown, 1)

	// Same-day snapshot overwrites, no duplicate point
	_, err = svc.TakeSnapshot(ctx, "alice")
	require.NoError(t, err)

	history, err := svc.GetHistory("alice", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, snapshot.Date, history[0].Date)
	require.Len(t, history[0].Breakdown, 1)
	assert.Equal(t, "AAPL", history[0].Breakdown[0].Symbol)
	assert.Equal(t, 10, history[0].Breakdown[0].Quantity)
}
