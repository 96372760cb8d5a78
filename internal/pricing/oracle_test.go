package pricing

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantcoin/quantz/internal/clientdata"
)

func setupTestCache(t *testing.T) *clientdata.Repository {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := clientdata.NewRepository(db)
	require.NoError(t, repo.EnsureSchema())
	return repo
}

func staticProvider(name string, price float64) Provider {
	return Provider{
		Name:    name,
		Timeout: time.Second,
		Fetch: func(ctx context.Context, symbol string) (float64, error) {
			return price, nil
		},
	}
}

func failingProvider(name string) Provider {
	return Provider{
		Name:    name,
		Timeout: time.Second,
		Fetch: func(ctx context.Context, symbol string) (float64, error) {
			return 0, errors.New("source unavailable")
		},
	}
}

func TestOracleFirstPositiveWins(t *testing.T) {
	testCases := []struct {
		name          string
		providers     []Provider
		expectedPrice float64
		expectedSrc   string
		expectErr     bool
	}{
		{
			name: "first source wins",
			providers: []Provider{
				staticProvider("finnhub", 150.25),
				staticProvider("yahoo", 149.00),
			},
			expectedPrice: 150.25,
			expectedSrc:   "finnhub",
		},
		{
			name: "falls through failed source",
			providers: []Provider{
				failingProvider("finnhub"),
				staticProvider("yahoo", 149.00),
			},
			expectedPrice: 149.00,
			expectedSrc:   "yahoo",
		},
		{
			name: "non-positive price is rejected",
			providers: []Provider{
				staticProvider("finnhub", 0),
				staticProvider("yahoo", -3),
				staticProvider("chart", 42.5),
			},
			expectedPrice: 42.5,
			expectedSrc:   "chart",
		},
		{
			name: "all sources exhausted",
			providers: []Provider{
				failingProvider("finnhub"),
				staticProvider("yahoo", 0),
			},
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			oracle := NewOracle(tc.providers, setupTestCache(t), zerolog.Nop())

			result, err := oracle.ResolveFresh(context.Background(), "AAPL")
			if tc.expectErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrNoPrice)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expectedPrice, result.Price)
			assert.Equal(t, tc.expectedSrc, result.Source)
			assert.False(t, result.Cached)
		})
	}
}

func TestOracleCacheWriteThrough(t *testing.T) {
	cache := setupTestCache(t)

	calls := 0
	counting := Provider{
		Name:    "finnhub",
		Timeout: time.Second,
		Fetch: func(ctx context.Context, symbol string) (float64, error) {
			calls++
			return 150.25, nil
		},
	}

	oracle := NewOracle([]Provider{counting}, cache, zerolog.Nop())

	first, err := oracle.Resolve(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, 1, calls)

	// Second lookup within the TTL window must come from the cache
	second, err := oracle.Resolve(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Price, second.Price)
	assert.Equal(t, "finnhub", second.Source)
	assert.Equal(t, 1, calls)
}

func TestOracleProviderTimeout(t *testing.T) {
	slow := Provider{
		Name:    "slow",
		Timeout: 20 * time.Millisecond,
		Fetch: func(ctx context.Context, symbol string) (float64, error) {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(5 * time.Second):
				return 99, nil
			}
		},
	}

	oracle := NewOracle([]Provider{slow, staticProvider("fallback", 10)}, setupTestCache(t), zerolog.Nop())

	start := time.Now()
	result, err := oracle.ResolveFresh(context.Background(), "MSFT")
	require.NoError(t, err)
	assert.Equal(t, "fallback", result.Source)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestOracleContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	oracle := NewOracle([]Provider{
		{
			Name:    "finnhub",
			Timeout: time.Second,
			Fetch: func(ctx context.Context, symbol string) (float64, error) {
				return 0, ctx.Err()
			},
		},
		staticProvider("yahoo", 10),
	}, setupTestCache(t), zerolog.Nop())

	_, err := oracle.ResolveFresh(ctx, "AAPL")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOracleResolveMany(t *testing.T) {
	oracle := NewOracle([]Provider{
		{
			Name:    "finnhub",
			Timeout: time.Second,
			Fetch: func(ctx context.Context, symbol string) (float64, error) {
				if symbol == "BAD" {
					return 0, errors.New("unknown symbol")
				}
				return 100, nil
			},
		},
	}, setupTestCache(t), zerolog.Nop())

	results := oracle.ResolveMany(context.Background(), []string{"AAPL", "MSFT", "BAD"})

	assert.Len(t, results, 2)
	assert.Contains(t, results, "AAPL")
	assert.Contains(t, results, "MSFT")
	assert.NotContains(t, results, "BAD")
}
