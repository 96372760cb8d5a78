package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantcoin/quantz/internal/modules/alerts"
)

// AlertSweepJob evaluates pending price alerts every minute
type AlertSweepJob struct {
	alerts  *alerts.Service
	timeout time.Duration
	log     zerolog.Logger
}

// NewAlertSweepJob creates a new alert sweep job
func NewAlertSweepJob(alertService *alerts.Service, log zerolog.Logger) *AlertSweepJob {
	return &AlertSweepJob{
		alerts:  alertService,
		timeout: 45 * time.Second,
		log:     log.With().Str("job", "alert_sweep").Logger(),
	}
}

// Name returns the job name
func (j *AlertSweepJob) Name() string {
	return "alert_sweep"
}

// Run sweeps all pending alerts
func (j *AlertSweepJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	fired, err := j.alerts.Sweep(ctx)
	if err != nil {
		return err
	}

	if fired > 0 {
		j.log.Info().Int("fired", fired).Msg("Alert sweep fired alerts")
	}
	return nil
}
