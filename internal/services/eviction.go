package services

import (
	"time"

	"github.com/patchpilot/patchpilot/internal/config"
	"github.com/patchpilot/patchpilot/pkg/logger"
	"github.com/robfig/cron/v3"
)

// EvictionScheduler periodically drops cache entries older than the
// configured retention window.
type EvictionScheduler struct {
	cache  *ReviewCacheService
	config *config.CacheConfig
	cron   *cron.Cron
}

func NewEvictionScheduler(cache *ReviewCacheService, cfg *config.CacheConfig) *EvictionScheduler {
	return &EvictionScheduler{
		cache:  cache,
		config: cfg,
		cron:   cron.New(),
	}
}

// Start registers the sweep at the configured schedule and launches the
// scheduler. A negative retention disables the sweep entirely.
func (s *EvictionScheduler) Start() error {
	if s.config.RetentionDays <= 0 {
		logger.Info().Msg("Cache eviction disabled (retention_days <= 0)")
		return nil
	}

	_, err := s.cron.AddFunc(s.config.EvictionSchedule, s.sweep)
	if err != nil {
		return err
	}

	s.cron.Start()
	logger.Infof("Cache eviction scheduled: %q, retention %d days", s.config.EvictionSchedule, s.config.RetentionDays)
	return nil
}

func (s *EvictionScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *EvictionScheduler) sweep() {
	age := time.Duration(s.config.RetentionDays) * 24 * time.Hour
	removed, err := s.cache.EvictOlderThan(0, age)
	if err != nil {
		logger.Errorf("[Cache] Eviction sweep failed: %v", err)
		return
	}
	logger.Infof("[Cache] Eviction sweep removed %d entries older than %d days", removed, s.config.RetentionDays)
}
