package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantcoin/quantz/internal/modules/trading"
	"github.com/quantcoin/quantz/internal/pricing"
)

// PriceRefreshJob re-fetches quotes for every held symbol and updates the
// advisory price columns on holdings. Runs frequently during market hours
// plus comprehensive passes at open and close.
type PriceRefreshJob struct {
	holdings *trading.HoldingRepository
	oracle   *pricing.Oracle
	timeout  time.Duration
	log      zerolog.Logger
}

// NewPriceRefreshJob creates a new price refresh job
func NewPriceRefreshJob(
	holdings *trading.HoldingRepository,
	oracle *pricing.Oracle,
	log zerolog.Logger,
) *PriceRefreshJob {
	return &PriceRefreshJob{
		holdings: holdings,
		oracle:   oracle,
		timeout:  2 * time.Minute,
		log:      log.With().Str("job", "price_refresh").Logger(),
	}
}

// Name returns the job name
func (j *PriceRefreshJob) Name() string {
	return "price_refresh"
}

// Run refreshes quotes for all held symbols
func (j *PriceRefreshJob) Run() error {
	symbols, err := j.holdings.ListSymbols()
	if err != nil {
		return err
	}
	if len(symbols) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	results := j.oracle.ResolveManyFresh(ctx, symbols)

	updated := 0
	for symbol, result := range results {
		if _, err := j.holdings.UpdateCurrentPrice(symbol, result.Price); err != nil {
			j.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to store refreshed price")
			continue
		}
		updated++
	}

	j.log.Info().
		Int("symbols", len(symbols)).
		Int("updated", updated).
		Msg("Price refresh completed")

	return nil
}
