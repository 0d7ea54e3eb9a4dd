package service

import (
	"context"
	"time"

	"dashbackup/internal/logger"
)

// Scheduler runs periodic backups until its context is cancelled
type Scheduler struct {
	svc      *Service
	interval time.Duration
	log      logger.Logger
}

// NewScheduler creates a scheduler over the given service
func NewScheduler(svc *Service, interval time.Duration, log logger.Logger) *Scheduler {
	return &Scheduler{svc: svc, interval: interval, log: log}
}

// Run takes an immediate backup and then one per interval. A failed
// backup is logged and the loop keeps going; only context cancellation
// stops it.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("Backup scheduler started", "interval", s.interval.String())

	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Backup scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	res, err := s.svc.CreateBackup(ctx)
	if err != nil {
		s.log.Error("Scheduled backup failed", "error", err)
		return
	}
	s.log.Info("Scheduled backup complete", "file", res.Path, "size", res.HumanSize())
}
