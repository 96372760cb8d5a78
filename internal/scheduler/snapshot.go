package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantcoin/quantz/internal/modules/portfolio"
	"github.com/quantcoin/quantz/internal/modules/trading"
)

// SnapshotJob records a nightly portfolio snapshot for every user with a
// wallet, feeding the history endpoint
type SnapshotJob struct {
	wallets   *trading.WalletRepository
	portfolio *portfolio.Service
	timeout   time.Duration
	log       zerolog.Logger
}

// NewSnapshotJob creates a new snapshot job
func NewSnapshotJob(
	wallets *trading.WalletRepository,
	portfolioService *portfolio.Service,
	log zerolog.Logger,
) *SnapshotJob {
	return &SnapshotJob{
		wallets:   wallets,
		portfolio: portfolioService,
		timeout:   10 * time.Minute,
		log:       log.With().Str("job", "portfolio_snapshot").Logger(),
	}
}

// Name returns the job name
func (j *SnapshotJob) Name() string {
	return "portfolio_snapshot"
}

// Run snapshots every user's portfolio. Per-user failures are logged and
// skipped so one broken portfolio does not block the rest.
func (j *SnapshotJob) Run() error {
	userIDs, err := j.wallets.ListUserIDs()
	if err != nil {
		return err
	}
	if len(userIDs) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	taken := 0
	for _, userID := range userIDs {
		if _, err := j.portfolio.TakeSnapshot(ctx, userID); err != nil {
			j.log.Error().Err(err).Str("user_id", userID).Msg("Failed to snapshot portfolio")
			continue
		}
		taken++
	}

	j.log.Info().
		Int("users", len(userIDs)).
		Int("snapshots", taken).
		Msg("Portfolio snapshots completed")

	return nil
}
