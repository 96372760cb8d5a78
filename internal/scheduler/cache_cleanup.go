package scheduler

import (
	"github.com/rs/zerolog"

	"github.com/quantcoin/quantz/internal/clientdata"
)

// CacheCleanupJob prunes expired rows from the market data cache
type CacheCleanupJob struct {
	cache *clientdata.Repository
	log   zerolog.Logger
}

// NewCacheCleanupJob creates a new cache cleanup job
func NewCacheCleanupJob(cache *clientdata.Repository, log zerolog.Logger) *CacheCleanupJob {
	return &CacheCleanupJob{
		cache: cache,
		log:   log.With().Str("job", "cache_cleanup").Logger(),
	}
}

// Name returns the job name
func (j *CacheCleanupJob) Name() string {
	return "cache_cleanup"
}

// Run deletes all expired cache entries
func (j *CacheCleanupJob) Run() error {
	deleted, err := j.cache.DeleteAllExpired()
	if err != nil {
		return err
	}

	total := int64(0)
	for _, n := range deleted {
		total += n
	}
	if total > 0 {
		j.log.Info().Int64("deleted", total).Msg("Cache cleanup completed")
	}
	return nil
}
