package reminders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/medrefill/internal/config"
	"github.com/mamadbah2/medrefill/internal/domain/models"
	"github.com/mamadbah2/medrefill/internal/domain/status"
	"github.com/mamadbah2/medrefill/internal/metrics"
	"github.com/mamadbah2/medrefill/internal/notification"
)

// Store is the persistence the reminder service reads from.
type Store interface {
	DueFinder
	FindMedicineByID(ctx context.Context, id string) (models.Medicine, error)
	FindUserByID(ctx context.Context, id string) (models.User, error)
}

// HistoryStore keeps finished dispatch reports.
type HistoryStore interface {
	SaveDispatchReport(ctx context.Context, report models.DispatchReport) error
	RecentDispatchReports(ctx context.Context, limit int64) ([]models.DispatchReport, error)
}

// ReportExporter publishes dispatch reports outside the database.
type ReportExporter interface {
	ExportDispatchReport(ctx context.Context, report models.DispatchReport) error
}

// ScheduleStatus describes the configured reminder cadence.
type ScheduleStatus struct {
	Status          string `json:"status"`
	DailyReminders  string `json:"dailyReminders"`
	WeeklyReminders string `json:"weeklyReminders"`
	Timezone        string `json:"timezone"`
}

// Service runs daily and weekly reminder dispatches and manual triggers.
type Service struct {
	store      Store
	selector   *Selector
	dispatcher *Dispatcher
	history    HistoryStore
	exporter   ReportExporter
	cfg        config.ReminderConfig
	loc        *time.Location
	now        func() time.Time
	logger     *zap.Logger
}

// NewService wires the reminder service. history and exporter may be nil.
func NewService(cfg config.ReminderConfig, store Store, channel notification.Channel, history HistoryStore, exporter ReportExporter, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	return &Service{
		store:      store,
		selector:   NewSelector(store),
		dispatcher: NewDispatcher(channel, cfg.DispatchWorkers, logger.Named("dispatcher")),
		history:    history,
		exporter:   exporter,
		cfg:        cfg,
		loc:        loc,
		now:        time.Now,
		logger:     logger,
	}, nil
}

// RunDaily reminds about medicines due within the daily horizon.
func (s *Service) RunDaily(ctx context.Context) (models.DispatchReport, error) {
	return s.run(ctx, models.DispatchDaily, s.cfg.DailyHorizonDays)
}

// RunWeekly sends the weekly summary for medicines due within the weekly horizon.
func (s *Service) RunWeekly(ctx context.Context) (models.DispatchReport, error) {
	return s.run(ctx, models.DispatchWeekly, s.cfg.WeeklyHorizonDays)
}

// TriggerReminderCheck runs the daily dispatch on demand.
func (s *Service) TriggerReminderCheck(ctx context.Context) (models.DispatchReport, error) {
	s.logger.Info("manual reminder check triggered")
	return s.RunDaily(ctx)
}

// SendImmediateReminder sends the single-medicine reminder for a medicine
// owned by userID, regardless of its status or notification flags.
func (s *Service) SendImmediateReminder(ctx context.Context, userID, medicineID string) error {
	medicine, err := s.store.FindMedicineByID(ctx, medicineID)
	if err != nil {
		return err
	}
	if medicine.OwnerID != userID {
		return models.ErrNotFound
	}

	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load reminder recipient: %w", err)
	}

	if err := s.dispatcher.SendImmediate(ctx, user, medicine); err != nil {
		s.logger.Warn("immediate reminder failed",
			zap.String("user_id", userID),
			zap.String("medicine_id", medicineID),
			zap.Error(err))
		return err
	}

	s.logger.Info("immediate reminder sent", zap.String("user_id", userID), zap.String("medicine_id", medicineID))
	return nil
}

// Status reports the configured schedule.
func (s *Service) Status() ScheduleStatus {
	state := "active"
	if !s.cfg.SchedulerEnabled {
		state = "disabled"
	}
	return ScheduleStatus{
		Status:          state,
		DailyReminders:  fmt.Sprintf("cron %q, next %d days", s.cfg.DailySchedule, s.cfg.DailyHorizonDays),
		WeeklyReminders: fmt.Sprintf("cron %q, next %d days", s.cfg.WeeklySchedule, s.cfg.WeeklyHorizonDays),
		Timezone:        s.loc.String(),
	}
}

// History returns the most recent dispatch reports, newest first.
func (s *Service) History(ctx context.Context) ([]models.DispatchReport, error) {
	if s.history == nil {
		return []models.DispatchReport{}, nil
	}
	return s.history.RecentDispatchReports(ctx, s.cfg.HistoryLimit)
}

func (s *Service) run(ctx context.Context, mode models.DispatchMode, horizonDays int) (models.DispatchReport, error) {
	started := s.now()
	asOf := status.Today(started, s.loc)

	logger := s.logger.With(zap.String("mode", string(mode)), zap.Time("as_of", asOf))
	logger.Info("reminder run started", zap.Int("horizon_days", horizonDays))

	selected, err := s.selector.SelectDue(ctx, asOf, horizonDays)
	if err != nil {
		metrics.ObserveReminderRun(string(mode), "error", time.Since(started))
		logger.Error("reminder run aborted", zap.Error(err))
		return models.DispatchReport{}, &RunError{Mode: mode, Err: err}
	}

	report := s.dispatcher.Run(ctx, selected, mode)
	report.RunAt = started.UTC()
	report.AsOf = asOf
	report.HorizonDays = horizonDays

	s.record(ctx, report)
	metrics.ObserveReminderRun(string(mode), "ok", time.Since(started))

	logger.Info("reminder run finished",
		zap.Int("selected", report.Selected),
		zap.Int("users_notified", report.UsersNotified),
		zap.Int("emails_sent", report.EmailsSent),
		zap.Int("failures", report.FailureCount()))
	return report, nil
}

// record stores the report. Failures here are logged, the run itself already happened.
func (s *Service) record(ctx context.Context, report models.DispatchReport) {
	var errs []error
	if s.history != nil {
		if err := s.history.SaveDispatchReport(ctx, report); err != nil {
			errs = append(errs, fmt.Errorf("save dispatch report: %w", err))
		}
	}
	if s.exporter != nil {
		if err := s.exporter.ExportDispatchReport(ctx, report); err != nil {
			errs = append(errs, fmt.Errorf("export dispatch report: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		s.logger.Warn("failed to record dispatch report", zap.Error(err))
	}
}
