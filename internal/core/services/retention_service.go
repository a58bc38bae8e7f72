package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/apache/bigtop-manager-sub000/internal/core/ports"
	"github.com/apache/bigtop-manager-sub000/internal/infrastructure/logger"
)

type RetentionServiceConfig struct {
	Jobs         ports.JobRepository
	TimelineRepo ports.TimelineRepository
	Logger       *logger.Logger
	// Schedule is a cron spec such as "@daily" or "0 3 * * *".
	Schedule  string
	Retention time.Duration
}

// RetentionService prunes finished job records and timeline events on a schedule.
type RetentionService struct {
	jobs         ports.JobRepository
	timelineRepo ports.TimelineRepository
	logger       *logger.Logger
	schedule     string
	retention    time.Duration
	cron         *cron.Cron
	now          func() time.Time
}

func NewRetentionService(cfg RetentionServiceConfig) *RetentionService {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &RetentionService{
		jobs:         cfg.Jobs,
		timelineRepo: cfg.TimelineRepo,
		logger:       log.Named("retention"),
		schedule:     cfg.Schedule,
		retention:    cfg.Retention,
		now:          time.Now,
	}
}

// Start registers the sweep with the cron scheduler. An empty schedule disables it.
func (s *RetentionService) Start() error {
	if s.schedule == "" || s.retention <= 0 {
		s.logger.Infow("retention_disabled")
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Errorw("retention_sweep_failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", s.schedule, err)
	}
	c.Start()
	s.cron = c
	s.logger.Infow("retention_started", "schedule", s.schedule, "retention", s.retention.String())
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (s *RetentionService) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.cron = nil
}

// Sweep deletes everything older than the retention window and reports how many rows went.
func (s *RetentionService) Sweep(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.retention)
	var total int64

	if s.jobs != nil {
		n, err := s.jobs.DeleteFinishedBefore(ctx, cutoff)
		if err != nil {
			return total, fmt.Errorf("prune job records: %w", err)
		}
		total += n
	}
	if s.timelineRepo != nil {
		n, err := s.timelineRepo.DeleteBefore(ctx, cutoff)
		if err != nil {
			return total, fmt.Errorf("prune timeline: %w", err)
		}
		total += n
	}
	s.logger.Infow("retention_sweep_ok", "cutoff", cutoff, "deleted", total)
	return total, nil
}
