package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/ocdul/social-listening/internal/config"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// SessionSweeper discards idle sessions
type SessionSweeper interface {
	Sweep() int
}

// CachePurger drops expired cached results
type CachePurger interface {
	PurgeCache() int
}

// ExportPruner deletes exports past their retention
type ExportPruner interface {
	PruneExports(ctx context.Context) (int, error)
}

const pruneTimeout = 2 * time.Minute

// Service runs periodic housekeeping of sessions, cached results and stored
// exports
type Service struct {
	config   *config.Config
	sessions SessionSweeper
	cache    CachePurger
	exports  ExportPruner
	cron     *cron.Cron
}

// NewService creates a new scheduler service. Any of the housekeeping
// targets may be nil.
func NewService(cfg *config.Config, sessions SessionSweeper, cache CachePurger, exports ExportPruner) *Service {
	return &Service{
		config:   cfg,
		sessions: sessions,
		cache:    cache,
		exports:  exports,
		cron:     cron.New(cron.WithSeconds()),
	}
}

// Start schedules housekeeping on the configured cron expression
func (s *Service) Start() error {
	schedule := s.config.SweepSchedule
	if schedule == "" {
		// Every five minutes
		schedule = "0 */5 * * * *"
	}

	if _, err := s.cron.AddFunc(schedule, s.RunHousekeeping); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}

	s.cron.Start()
	logrus.Infof("Scheduler started with housekeeping schedule %q", schedule)
	return nil
}

// RunHousekeeping sweeps idle sessions, purges expired cache entries and
// prunes old exports
func (s *Service) RunHousekeeping() {
	sessions := 0
	if s.sessions != nil {
		sessions = s.sessions.Sweep()
	}
	entries := 0
	if s.cache != nil {
		entries = s.cache.PurgeCache()
	}
	exports := 0
	if s.exports != nil {
		ctx, cancel := context.WithTimeout(context.Background(), pruneTimeout)
		n, err := s.exports.PruneExports(ctx)
		cancel()
		if err != nil {
			logrus.Errorf("Export pruning failed: %v", err)
		}
		exports = n
	}

	if sessions > 0 || entries > 0 || exports > 0 {
		logrus.Infof("Housekeeping removed %d idle session(s), %d expired cache entries and %d old export(s)", sessions, entries, exports)
	} else {
		logrus.Debug("Housekeeping found nothing to remove")
	}
}

// Stop stops the scheduler
func (s *Service) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
		logrus.Info("Scheduler stopped")
	}
}
