package scheduler

import (
	"context"
	"errors"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/aurashield/mentions-bot/internal/config"
	"github.com/aurashield/mentions-bot/internal/poller"
)

// Service runs polling cycles on a schedule
type Service struct {
	config *config.Config
	poller *poller.Service
	cron   *cron.Cron
}

// NewService creates a new scheduler service
func NewService(cfg *config.Config, pollerService *poller.Service) *Service {
	return &Service{
		config: cfg,
		poller: pollerService,
		cron:   cron.New(cron.WithSeconds()),
	}
}

// cronExpression maps the named schedules onto cron specs; anything
// else passed config validation as a raw 6-field expression.
func cronExpression(schedule string) string {
	switch schedule {
	case "hourly":
		return "0 0 * * * *"
	case "daily":
		// Run daily at 9 AM UTC
		return "0 0 9 * * *"
	default:
		return schedule
	}
}

// Start begins the scheduled polling
func (s *Service) Start() error {
	_, err := s.cron.AddFunc(cronExpression(s.config.PollSchedule), func() {
		logrus.Info("Starting scheduled polling cycle")
		_, err := s.poller.RunCycle(context.Background())
		if errors.Is(err, poller.ErrCycleInProgress) {
			logrus.Warn("Skipping scheduled cycle, previous one still running")
			return
		}
		if err != nil {
			logrus.Errorf("Scheduled polling cycle failed: %v", err)
		}
	})

	if err != nil {
		return err
	}

	s.cron.Start()
	logrus.Infof("Scheduler started with %s schedule", s.config.PollSchedule)
	return nil
}

// Stop stops the scheduler
func (s *Service) Stop() {
	if s.cron != nil {
		s.cron.Stop()
		logrus.Info("Scheduler stopped")
	}
}
