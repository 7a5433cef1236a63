package services

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/tariffscope/admission/internal/core/ports"
)

const cleanupJobTimeout = 2 * time.Minute

// CleanupService owns the scheduled maintenance jobs: sweeping expired
// in-memory windows and aging out violation and audit rows past their
// retention horizons. All schedules use cron syntax.
type CleanupService struct {
	sweeper    ports.WindowSweeper
	violations ports.ViolationService
	audit      AuditPurger
	logger     *logrus.Logger
	cron       *cron.Cron

	sweepSchedule      string
	purgeSchedule      string
	violationRetention time.Duration
	auditRetention     time.Duration
}

// AuditPurger is the slice of the audit service the cleanup job needs.
type AuditPurger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type CleanupConfig struct {
	SweepSchedule      string
	PurgeSchedule      string
	ViolationRetention time.Duration
	AuditRetention     time.Duration
}

func NewCleanupService(sweeper ports.WindowSweeper, violations ports.ViolationService, audit AuditPurger, cfg *CleanupConfig, logger *logrus.Logger) *CleanupService {
	// Apply defaults
	sweep := "@hourly"
	purge := "@daily"
	vr := 30 * 24 * time.Hour
	ar := 90 * 24 * time.Hour
	if cfg != nil {
		if cfg.SweepSchedule != "" {
			sweep = cfg.SweepSchedule
		}
		if cfg.PurgeSchedule != "" {
			purge = cfg.PurgeSchedule
		}
		if cfg.ViolationRetention > 0 {
			vr = cfg.ViolationRetention
		}
		if cfg.AuditRetention > 0 {
			ar = cfg.AuditRetention
		}
	}
	return &CleanupService{
		sweeper:            sweeper,
		violations:         violations,
		audit:              audit,
		logger:             logger,
		sweepSchedule:      sweep,
		purgeSchedule:      purge,
		violationRetention: vr,
		auditRetention:     ar,
	}
}

// Start registers the jobs and begins the scheduler. Sweeping is skipped
// entirely when the counter store expires windows on its own.
func (s *CleanupService) Start() error {
	s.cron = cron.New()

	if s.sweeper != nil {
		if _, err := s.cron.AddFunc(s.sweepSchedule, s.runSweep); err != nil {
			return err
		}
	}
	if _, err := s.cron.AddFunc(s.purgeSchedule, s.runPurge); err != nil {
		return err
	}

	s.cron.Start()
	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"sweep_schedule": s.sweepSchedule, "purge_schedule": s.purgeSchedule}).Info("cleanup scheduler started")
	}
	return nil
}

// Stop halts the scheduler and waits for running jobs to finish.
func (s *CleanupService) Stop() {
	if s.cron == nil {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	if s.logger != nil {
		s.logger.Info("cleanup scheduler stopped")
	}
}

func (s *CleanupService) runSweep() {
	removed := s.sweeper.Sweep(time.Now())
	if s.logger != nil {
		s.logger.WithField("removed", removed).Debug("window sweep completed")
	}
}

func (s *CleanupService) runPurge() {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupJobTimeout)
	defer cancel()

	if s.violations != nil {
		n, err := s.violations.PurgeOlderThan(ctx, time.Now().Add(-s.violationRetention))
		if err != nil {
			if s.logger != nil {
				s.logger.WithError(err).Error("violation retention purge failed")
			}
		} else if s.logger != nil {
			s.logger.WithField("removed", n).Info("violation retention purge completed")
		}
	}

	if s.audit != nil {
		n, err := s.audit.PurgeOlderThan(ctx, time.Now().Add(-s.auditRetention))
		if err != nil {
			if s.logger != nil {
				s.logger.WithError(err).Error("audit retention purge failed")
			}
		} else if s.logger != nil {
			s.logger.WithField("removed", n).Info("audit retention purge completed")
		}
	}
}
