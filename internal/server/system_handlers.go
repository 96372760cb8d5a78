package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/quantcoin/quantz/internal/api"
	"github.com/quantcoin/quantz/internal/database"
	"github.com/quantcoin/quantz/internal/reliability"
	"github.com/quantcoin/quantz/internal/scheduler"
)

// SystemHandlers handles system-wide monitoring and operations endpoints
type SystemHandlers struct {
	log       zerolog.Logger
	databases map[string]*database.DB
	scheduler *scheduler.Scheduler
	backup    *reliability.BackupService
	backupJob scheduler.Job
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(
	log zerolog.Logger,
	databases map[string]*database.DB,
	sched *scheduler.Scheduler,
) *SystemHandlers {
	return &SystemHandlers{
		log:       log.With().Str("component", "system_handlers").Logger(),
		databases: databases,
		scheduler: sched,
	}
}

// SetBackup registers the backup service and its job for manual triggering.
// Called from main.go only when backup is configured.
func (h *SystemHandlers) SetBackup(backup *reliability.BackupService, job scheduler.Job) {
	h.backup = backup
	h.backupJob = job
}

// RegisterRoutes mounts the system routes
func (h *SystemHandlers) RegisterRoutes(r chi.Router) {
	r.Get("/status", h.HandleStatus)
	r.Get("/databases", h.HandleDatabaseStats)
	r.Get("/backups", h.HandleListBackups)
	r.Post("/backup", h.HandleTriggerBackup)
}

// DatabaseInfo summarizes one database for the status endpoints
type DatabaseInfo struct {
	Name      string `json:"name"`
	SizeBytes int64  `json:"size_bytes"`
	WALBytes  int64  `json:"wal_bytes"`
	PageCount int64  `json:"page_count"`
	FreePages int64  `json:"free_pages"`
	Healthy   bool   `json:"healthy"`
}

// HandleStatus returns process and host statistics
func (h *SystemHandlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}
	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	ramPercent := 0.0
	if memStat, err := mem.VirtualMemory(); err == nil {
		ramPercent = memStat.UsedPercent
	} else {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
	}

	databasesHealthy := true
	for _, db := range h.databases {
		if err := db.QuickCheck(r.Context()); err != nil {
			databasesHealthy = false
			break
		}
	}

	api.Success(w, "System status", map[string]interface{}{
		"uptime_seconds":    int64(time.Since(startupTime).Seconds()),
		"cpu_percent":       cpuAvg,
		"ram_percent":       ramPercent,
		"databases_healthy": databasesHealthy,
		"backup_configured": h.backup != nil,
	})
}

// HandleDatabaseStats returns size and page statistics per database
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	infos := make([]DatabaseInfo, 0, len(h.databases))

	for name, db := range h.databases {
		info := DatabaseInfo{
			Name:    name,
			Healthy: db.QuickCheck(r.Context()) == nil,
		}
		if stats, err := db.GetStats(); err == nil {
			info.SizeBytes = stats.SizeBytes
			info.WALBytes = stats.WALSizeBytes
			info.PageCount = stats.PageCount
			info.FreePages = stats.FreelistCount
		} else {
			h.log.Error().Err(err).Str("database", name).Msg("Failed to get database stats")
		}
		infos = append(infos, info)
	}

	api.Success(w, "Database statistics", map[string]interface{}{
		"databases": infos,
	})
}

// HandleListBackups lists backups stored in the object store
func (h *SystemHandlers) HandleListBackups(w http.ResponseWriter, r *http.Request) {
	if h.backup == nil {
		api.Error(w, http.StatusServiceUnavailable, "backup is not configured")
		return
	}

	backups, err := h.backup.ListBackups(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list backups")
		api.Error(w, http.StatusInternalServerError, "failed to list backups")
		return
	}

	api.Success(w, "Backups retrieved", map[string]interface{}{
		"backups": backups,
		"count":   len(backups),
	})
}

// HandleTriggerBackup runs the backup job immediately
func (h *SystemHandlers) HandleTriggerBackup(w http.ResponseWriter, r *http.Request) {
	if h.backupJob == nil {
		api.Error(w, http.StatusServiceUnavailable, "backup is not configured")
		return
	}

	h.log.Info().Msg("Manual backup triggered")

	if err := h.scheduler.RunNow(h.backupJob); err != nil {
		h.log.Error().Err(err).Msg("Manual backup failed")
		api.Error(w, http.StatusInternalServerError, "backup failed: "+err.Error())
		return
	}

	api.Success(w, "Backup completed", nil)
}
