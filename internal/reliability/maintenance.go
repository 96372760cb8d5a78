package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantcoin/quantz/internal/database"
)

// MaintenanceService runs periodic health checks and WAL hygiene on the
// SQLite databases
type MaintenanceService struct {
	databases map[string]*database.DB
	log       zerolog.Logger
}

// NewMaintenanceService creates a new maintenance service
func NewMaintenanceService(databases map[string]*database.DB, log zerolog.Logger) *MaintenanceService {
	return &MaintenanceService{
		databases: databases,
		log:       log.With().Str("service", "maintenance").Logger(),
	}
}

// RunDaily performs the full maintenance pass: integrity check, WAL
// checkpoint and space reclamation for every database
func (s *MaintenanceService) RunDaily(ctx context.Context) error {
	s.log.Info().Msg("Starting daily maintenance")
	startTime := time.Now()

	for name, db := range s.databases {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("integrity check failed for %s: %w", name, err)
		}

		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			s.log.Error().Err(err).Str("database", name).Msg("WAL checkpoint failed")
			continue
		}

		// Incremental vacuum is a no-op on databases without it enabled
		if _, err := db.Exec("PRAGMA incremental_vacuum"); err != nil {
			s.log.Warn().Err(err).Str("database", name).Msg("Incremental vacuum failed")
		}

		if stats, err := db.GetStats(); err == nil {
			s.log.Info().
				Str("database", name).
				Int64("size_bytes", stats.SizeBytes).
				Int64("wal_bytes", stats.WALSizeBytes).
				Int64("free_pages", stats.FreelistCount).
				Msg("Database maintained")
		}
	}

	s.log.Info().Dur("duration_ms", time.Since(startTime)).Msg("Daily maintenance completed")
	return nil
}

// CheckpointAll forces a passive WAL checkpoint on every database. Used
// between the heavier daily passes to keep WAL files small.
func (s *MaintenanceService) CheckpointAll() error {
	var firstErr error
	for name, db := range s.databases {
		if err := db.WALCheckpoint("PASSIVE"); err != nil {
			s.log.Error().Err(err).Str("database", name).Msg("WAL checkpoint failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
