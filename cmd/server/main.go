package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/medrefill/internal/config"
	"github.com/mamadbah2/medrefill/internal/notification"
	"github.com/mamadbah2/medrefill/internal/repository/mongodb"
	"github.com/mamadbah2/medrefill/internal/repository/sheets"
	"github.com/mamadbah2/medrefill/internal/scheduler"
	"github.com/mamadbah2/medrefill/internal/server/handlers"
	"github.com/mamadbah2/medrefill/internal/server/router"
	medicinesvc "github.com/mamadbah2/medrefill/internal/service/medicines"
	remindersvc "github.com/mamadbah2/medrefill/internal/service/reminders"
	whatsappclient "github.com/mamadbah2/medrefill/pkg/clients/whatsapp"
	"github.com/mamadbah2/medrefill/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Log.Level))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	loc, err := cfg.Reminders.Location()
	if err != nil {
		baseLogger.Fatal("invalid reminder timezone", zap.Error(err))
	}

	mongoRepo, err := mongodb.NewMongoDBRepository(context.Background(), cfg.MongoDB.URI, cfg.MongoDB.DBName)
	if err != nil {
		baseLogger.Fatal("failed to init mongodb repository", zap.Error(err))
	}
	defer func() {
		if err := mongoRepo.Close(context.Background()); err != nil {
			baseLogger.Error("failed to close mongodb connection", zap.Error(err))
		}
	}()

	indexCtx, cancelIndexes := context.WithTimeout(context.Background(), 30*time.Second)
	if err := mongoRepo.EnsureIndexes(indexCtx); err != nil {
		baseLogger.Fatal("failed to ensure mongodb indexes", zap.Error(err))
	}
	cancelIndexes()

	renderer := notification.NewRenderer(cfg.Email.RefillURL, loc)
	channels := notification.Multi{
		notification.NewEmailChannel(cfg.Email, notification.NewSendGridSender(cfg.Email), renderer, cfg.Reminders.SendTimeout, baseLogger.Named("notify.email")),
	}
	if cfg.WhatsApp.Enabled() {
		whatsClient := whatsappclient.NewClient(cfg.WhatsApp, cfg.Reminders.SendTimeout)
		channels = append(channels, notification.NewWhatsAppChannel(whatsClient, loc, baseLogger.Named("notify.whatsapp")))
		baseLogger.Info("whatsapp reminders enabled")
	}

	var exporter remindersvc.ReportExporter
	if cfg.Sheets.Enabled() {
		sheetsExporter, err := sheets.NewReportExporter(context.Background(), cfg.Sheets, baseLogger.Named("repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets exporter", zap.Error(err))
		}
		exporter = sheetsExporter
		baseLogger.Info("dispatch report export to google sheets enabled")
	}

	medicineSvc := medicinesvc.NewService(mongoRepo, loc, baseLogger.Named("svc.medicines"))
	reminderSvc, err := remindersvc.NewService(cfg.Reminders, mongoRepo, channels, mongoRepo, exporter, baseLogger.Named("svc.reminders"))
	if err != nil {
		baseLogger.Fatal("failed to init reminder service", zap.Error(err))
	}

	engine := router.New(
		handlers.NewMedicineHandler(medicineSvc, cfg.Email.RefillURL, baseLogger.Named("handlers.medicines")),
		handlers.NewNotificationHandler(reminderSvc, baseLogger.Named("handlers.notifications")),
		handlers.RequireAuth(cfg.Auth, baseLogger.Named("auth")),
		baseLogger.Named("router"),
	)

	var sched *scheduler.Scheduler
	if cfg.Reminders.SchedulerEnabled {
		sched, err = scheduler.NewScheduler(cfg.Reminders, reminderSvc, baseLogger.Named("scheduler"))
		if err != nil {
			baseLogger.Fatal("failed to init scheduler", zap.Error(err))
		}
		sched.Start()
	} else {
		baseLogger.Warn("reminder scheduler disabled")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Reminders.RunTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if sched != nil {
		sched.Stop(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}
