package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/medrefill/internal/config"
	"github.com/mamadbah2/medrefill/internal/domain/models"
)

// Runner executes reminder dispatch runs.
type Runner interface {
	RunDaily(ctx context.Context) (models.DispatchReport, error)
	RunWeekly(ctx context.Context) (models.DispatchReport, error)
}

// Scheduler fires the daily and weekly reminder runs.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	cfg    config.ReminderConfig
	logger *zap.Logger
}

// NewScheduler creates a scheduler evaluating cron specs in the reminder timezone.
func NewScheduler(cfg config.ReminderConfig, runner Runner, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	// Standard 5-field specs. Overlapping runs of the same job are skipped.
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	s := &Scheduler{
		cron:   c,
		runner: runner,
		cfg:    cfg,
		logger: logger,
	}

	if _, err := c.AddFunc(cfg.DailySchedule, s.runDaily); err != nil {
		return nil, fmt.Errorf("schedule daily reminders %q: %w", cfg.DailySchedule, err)
	}
	if _, err := c.AddFunc(cfg.WeeklySchedule, s.runWeekly); err != nil {
		return nil, fmt.Errorf("schedule weekly reminders %q: %w", cfg.WeeklySchedule, err)
	}

	return s, nil
}

// Start starts the scheduler.
func (s *Scheduler) Start() {
	s.logger.Info("starting scheduler",
		zap.String("daily", s.cfg.DailySchedule),
		zap.String("weekly", s.cfg.WeeklySchedule),
		zap.String("timezone", s.cron.Location().String()))
	s.cron.Start()
}

// Stop stops the scheduler and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	s.logger.Info("stopping scheduler")
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler stopped before running jobs finished", zap.Error(ctx.Err()))
	}
}

func (s *Scheduler) runDaily() {
	s.run(models.DispatchDaily, s.runner.RunDaily)
}

func (s *Scheduler) runWeekly() {
	s.run(models.DispatchWeekly, s.runner.RunWeekly)
}

func (s *Scheduler) run(mode models.DispatchMode, fn func(context.Context) (models.DispatchReport, error)) {
	timeout := s.cfg.RunTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("reminder job panicked", zap.String("mode", string(mode)), zap.Any("panic", r))
		}
	}()

	report, err := fn(ctx)
	if err != nil {
		s.logger.Error("scheduled reminder run failed", zap.String("mode", string(mode)), zap.Error(err))
		return
	}

	s.logger.Info("scheduled reminder run completed",
		zap.String("mode", string(mode)),
		zap.Int("users_notified", report.UsersNotified),
		zap.Int("emails_sent", report.EmailsSent),
		zap.Int("failures", report.FailureCount()))
}
