package alerts

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantcoin/quantz/internal/clients/yahoo"
	"github.com/quantcoin/quantz/internal/pricing"
)

type fakePriceSource struct {
	mu     sync.Mutex
	prices map[string]float64
}

func (f *fakePriceSource) set(symbol string, price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.prices == nil {
		f.prices = make(map[string]float64)
	}
	f.prices[symbol] = price
}

func (f *fakePriceSource) Resolve(_ context.Context, symbol string) (*pricing.PriceResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	price, ok := f.prices[symbol]
	if !ok {
		return nil, pricing.ErrNoPrice
	}
	return &pricing.PriceResult{Symbol: symbol, Price: price, Source: "fake"}, nil
}

type fakeClosesSource struct {
	closes map[string][]float64
}

func (f *fakeClosesSource) DailyCloses(_ context.Context, symbol, _ string) ([]yahoo.DailyClose, error) {
	closes, ok := f.closes[symbol]
	if !ok {
		return nil, fmt.Errorf("no history for %s", symbol)
	}
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]yahoo.DailyClose, 0, len(closes))
	for i, c := range closes {
		out = append(out, yahoo.DailyClose{Date: start.AddDate(0, 0, i), Close: c})
	}
	return out, nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (f *fakeNotifier) Notify(userID, category, title, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, fmt.Sprintf("%s|%s|%s", userID, category, message))
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

func setupTestAlerts(t *testing.T) (*Service, *fakePriceSource, *fakeClosesSource, *fakeNotifier) {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	log := zerolog.Nop()
	repo := NewRepository(db, log)
	require.NoError(t, repo.InitSchema())

	prices := &fakePriceSource{}
	closes := &fakeClosesSource{closes: make(map[string][]float64)}
	notifier := &fakeNotifier{}

	svc := NewService(repo, prices, closes, nil, notifier, log)
	return svc, prices, closes, notifier
}

func TestCreateAlertValidation(t *testing.T) {
	svc, prices, _, _ := setupTestAlerts(t)
	prices.set("AAPL", 150)

	testCases := []struct {
		name    string
		req     CreateRequest
		wantErr bool
	}{
		{
			name: "valid price target",
			req:  CreateRequest{Symbol: "AAPL", AlertType: TypePriceTarget, Condition: ConditionAbove, TargetValue: 200},
		},
		{
			name:    "missing symbol",
			req:     CreateRequest{AlertType: TypePriceTarget, Condition: ConditionAbove, TargetValue: 200},
			wantErr: true,
		},
		{
			name:    "bad alert type",
			req:     CreateRequest{Symbol: "AAPL", AlertType: "MOON", Condition: ConditionAbove, TargetValue: 200},
			wantErr: true,
		},
		{
			name:    "bad condition",
			req:     CreateRequest{Symbol: "AAPL", AlertType: TypePriceTarget, Condition: "SIDEWAYS", TargetValue: 200},
			wantErr: true,
		},
		{
			name:    "non-positive price target",
			req:     CreateRequest{Symbol: "AAPL", AlertType: TypePriceTarget, Condition: ConditionBelow, TargetValue: 0},
			wantErr: true,
		},
		{
			name:    "unsupported indicator",
			req:     CreateRequest{Symbol: "AAPL", AlertType: TypeTechnicalIndicator, Condition: ConditionAbove, TargetValue: 70, Indicator: "MACD"},
			wantErr: true,
		},
		{
			name: "rsi indicator",
			req:  CreateRequest{Symbol: "AAPL", AlertType: TypeTechnicalIndicator, Condition: ConditionAbove, TargetValue: 70, Indicator: "RSI"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			alert, err := svc.Create(context.Background(), "user-1", &tc.req)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotZero(t, alert.ID)
			assert.True(t, alert.IsActive)
			assert.False(t, alert.IsTriggered)
		})
	}
}

func TestPercentageAlertAnchorsBaseline(t *testing.T) {
	svc, prices, _, _ := setupTestAlerts(t)
	prices.set("TSLA", 200)

	alert, err := svc.Create(context.Background(), "user-1", &CreateRequest{
		Symbol:      "tsla",
		AlertType:   TypePercentageChange,
		Condition:   ConditionAbove,
		TargetValue: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, "TSLA", alert.Symbol)
	assert.Equal(t, 200.0, alert.BaselinePrice)

	// Creation fails when no baseline price can be resolved
	_, err = svc.Create(context.Background(), "user-1", &CreateRequest{
		Symbol:      "DARK",
		AlertType:   TypePercentageChange,
		Condition:   ConditionAbove,
		TargetValue: 10,
	})
	assert.Error(t, err)
}

func TestSweepPriceTarget(t *testing.T) {
	svc, prices, _, notifier := setupTestAlerts(t)
	prices.set("AAPL", 150)

	_, err := svc.Create(context.Background(), "user-1", &CreateRequest{
		Symbol: "AAPL", AlertType: TypePriceTarget, Condition: ConditionAbove, TargetValue: 160,
	})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), "user-1", &CreateRequest{
		Symbol: "AAPL", AlertType: TypePriceTarget, Condition: ConditionBelow, TargetValue: 160,
	})
	require.NoError(t, err)

	// 150: only the BELOW alert fires
	fired, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, fired)
	assert.Equal(t, 1, notifier.count())

	// Triggered alerts stay inert on later sweeps
	fired, err = svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, fired)

	// Price crosses the remaining threshold
	prices.set("AAPL", 165)
	fired, err = svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, fired)
	assert.Equal(t, 2, notifier.count())

	list, err := svc.List("user-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, a := range list {
		assert.True(t, a.IsTriggered)
		assert.NotNil(t, a.TriggeredAt)
	}
}

func TestSweepEqualsTolerance(t *testing.T) {
	svc, prices, _, _ := setupTestAlerts(t)
	prices.set("MSFT", 300.005)

	_, err := svc.Create(context.Background(), "user-1", &CreateRequest{
		Symbol: "MSFT", AlertType: TypePriceTarget, Condition: ConditionEquals, TargetValue: 300,
	})
	require.NoError(t, err)

	fired, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, fired)
}

func TestSweepPercentageChange(t *testing.T) {
	svc, prices, _, notifier := setupTestAlerts(t)
	prices.set("NVDA", 100)

	_, err := svc.Create(context.Background(), "user-1", &CreateRequest{
		Symbol: "NVDA", AlertType: TypePercentageChange, Condition: ConditionAbove, TargetValue: 5,
	})
	require.NoError(t, err)

	// +4% does not fire
	prices.set("NVDA", 104)
	fired, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, fired)

	// +6% fires
	prices.set("NVDA", 106)
	fired, err = svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, fired)
	assert.Equal(t, 1, notifier.count())
}

func TestSweepRSI(t *testing.T) {
	svc, _, closes, notifier := setupTestAlerts(t)

	// A strictly rising series drives RSI(14) to 100
	rising := make([]float64, 30)
	for i := range rising {
		rising[i] = 100 + float64(i)
	}
	closes.closes["AAPL"] = rising

	_, err := svc.Create(context.Background(), "user-1", &CreateRequest{
		Symbol: "AAPL", AlertType: TypeTechnicalIndicator, Condition: ConditionAbove,
		TargetValue: 70, Indicator: "RSI",
	})
	require.NoError(t, err)

	fired, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, fired)
	assert.Equal(t, 1, notifier.count())
}

func TestSweepInsufficientHistory(t *testing.T) {
	svc, _, closes, _ := setupTestAlerts(t)
	closes.closes["NEW"] = []float64{10, 11, 12}

	_, err := svc.Create(context.Background(), "user-1", &CreateRequest{
		Symbol: "NEW", AlertType: TypeTechnicalIndicator, Condition: ConditionBelow,
		TargetValue: 30, Indicator: "RSI",
	})
	require.NoError(t, err)

	// Evaluation fails but the alert stays pending
	fired, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, fired)

	list, err := svc.List("user-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].IsTriggered)
}

func TestDeleteAlertOwnership(t *testing.T) {
	svc, prices, _, _ := setupTestAlerts(t)
	prices.set("AAPL", 150)

	alert, err := svc.Create(context.Background(), "user-1", &CreateRequest{
		Symbol: "AAPL", AlertType: TypePriceTarget, Condition: ConditionAbove, TargetValue: 200,
	})
	require.NoError(t, err)

	ok, err := svc.Delete("user-2", alert.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.Delete("user-1", alert.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	list, err := svc.List("user-1")
	require.NoError(t, err)
	assert.Empty(t, list)
}
