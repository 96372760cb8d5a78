package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantcoin/quantz/internal/reliability"
)

// BackupJob ships a nightly database backup to object storage and rotates
// old archives
type BackupJob struct {
	backup        *reliability.BackupService
	maintenance   *reliability.MaintenanceService
	retentionDays int
	timeout       time.Duration
	log           zerolog.Logger
}

// NewBackupJob creates a new backup job
func NewBackupJob(backup *reliability.BackupService, maintenance *reliability.MaintenanceService, retentionDays int, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		backup:        backup,
		maintenance:   maintenance,
		retentionDays: retentionDays,
		timeout:       15 * time.Minute,
		log:           log.With().Str("job", "backup").Logger(),
	}
}

// Name returns the job name
func (j *BackupJob) Name() string {
	return "backup"
}

// Run checkpoints the WAL files, creates and uploads a backup, then prunes
// expired ones
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	// Flushing the WAL first keeps the snapshot sizes close to the live files
	if j.maintenance != nil {
		if err := j.maintenance.CheckpointAll(); err != nil {
			j.log.Warn().Err(err).Msg("Pre-backup checkpoint failed")
		}
	}

	if err := j.backup.CreateAndUploadBackup(ctx); err != nil {
		return err
	}

	if err := j.backup.RotateOldBackups(ctx, j.retentionDays); err != nil {
		j.log.Error().Err(err).Msg("Backup rotation failed")
	}
	return nil
}

// MaintenanceJob runs the daily database maintenance pass
type MaintenanceJob struct {
	maintenance *reliability.MaintenanceService
	timeout     time.Duration
}

// NewMaintenanceJob creates a new maintenance job
func NewMaintenanceJob(maintenance *reliability.MaintenanceService) *MaintenanceJob {
	return &MaintenanceJob{
		maintenance: maintenance,
		timeout:     10 * time.Minute,
	}
}

// Name returns the job name
func (j *MaintenanceJob) Name() string {
	return "db_maintenance"
}

// Run executes the maintenance pass
func (j *MaintenanceJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	return j.maintenance.RunDaily(ctx)
}
