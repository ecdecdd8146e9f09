package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gradnja/stroski-api/internal/config"
	"github.com/gradnja/stroski-api/internal/database"
	"github.com/gradnja/stroski-api/internal/http/handler"
	"github.com/gradnja/stroski-api/internal/http/middleware"
	"github.com/gradnja/stroski-api/internal/http/router"
	"github.com/gradnja/stroski-api/internal/jobs"
	"github.com/gradnja/stroski-api/internal/logger"
	"github.com/gradnja/stroski-api/internal/reporting"
	"github.com/gradnja/stroski-api/internal/storage"
	"github.com/gradnja/stroski-api/internal/store"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(&cfg.Logging, &cfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting application",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Environment),
		zap.Int("port", cfg.App.Port),
		zap.String("data_root", cfg.Data.Root),
	)

	st := store.New(cfg.Data.Root, logger.WithDataRoot(log, cfg.Data.Root), store.WithLocale(language.Make(cfg.App.Locale)))
	if err := st.Init(ctx); err != nil {
		return fmt.Errorf("failed to open data store: %w", err)
	}

	// The reporting mirror is optional: the app keeps serving without it
	var (
		reportDB *gorm.DB
		mirror   *reporting.Mirror
	)
	if cfg.Reporting.Enabled {
		reportDB, mirror, err = openReporting(ctx, cfg, st, log)
		if err != nil {
			log.Warn("Reporting mirror unavailable, continuing without it", zap.Error(err))
		}
	} else {
		log.Info("Reporting mirror disabled")
	}

	scheduler := jobs.NewScheduler(log)
	var backupRunner handler.JobRunner

	if cfg.Backup.Enabled {
		backupStorage, err := storage.NewBackupStorage(&cfg.Backup, cfg.Data.Root, log)
		if err != nil {
			return fmt.Errorf("failed to initialize backup storage: %w", err)
		}
		job := jobs.NewBackupJob(st, backupStorage, log, cfg.Backup.Retain)
		if err := jobs.RegisterBackupJob(scheduler, job, cfg.Backup.Cron); err != nil {
			return fmt.Errorf("failed to register backup job: %w", err)
		}
		backupRunner = scheduler
		log.Info("Scheduled backups enabled",
			zap.String("mode", cfg.Backup.Mode),
			zap.String("cron_expr", cfg.Backup.Cron),
			zap.Int("retain", cfg.Backup.Retain),
		)
	}

	if mirror != nil {
		refresher := reporting.Refresher{Mirror: mirror, Source: st}
		if err := jobs.RegisterReportingJob(scheduler, refresher, cfg.Reporting.SyncCron); err != nil {
			log.Error("Failed to register reporting sync job", zap.Error(err))
		}
	}

	if len(scheduler.GetJobNames()) > 0 {
		scheduler.Start()
		for _, name := range scheduler.GetJobNames() {
			log.Info("Job scheduled", zap.String("job", name), zap.Time("next_run", scheduler.NextRun(name)))
		}
	}

	// A typed nil must not reach the health handler
	var syncStatus handler.SyncStatus
	if mirror != nil {
		syncStatus = mirror
	}

	maxUploadMB := cfg.Server.MaxUploadSizeMB
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, log)

	rt := router.NewRouter(
		cfg,
		log,
		rateLimiter,
		handler.NewHealthHandler(st, syncStatus, log),
		handler.NewProjectHandler(st, log),
		handler.NewPhaseHandler(st, maxUploadMB, log),
		handler.NewContractorHandler(st, log),
		handler.NewCostHandler(st, maxUploadMB, log),
		handler.NewDocumentHandler(st, maxUploadMB, log),
		handler.NewBackupHandler(st, backupRunner, jobs.BackupJobName, maxUploadMB, log),
		handler.NewReportHandler(mirror, st, log),
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      rt.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		// Running jobs finish before the store goes away
		stopCtx := scheduler.Stop()
		<-stopCtx.Done()
		log.Info("Scheduler stopped")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Failed to shutdown gracefully", zap.Error(err))
			return err
		}

		if reportDB != nil {
			if sqlDB, err := reportDB.DB(); err == nil {
				if err := sqlDB.Close(); err != nil {
					log.Warn("Error closing reporting database", zap.Error(err))
				}
			}
		}

		log.Info("Server stopped gracefully")
	}

	return nil
}

// openReporting opens and migrates the SQLite mirror, then fills it once
func openReporting(ctx context.Context, cfg *config.Config, st *store.Store, log *zap.Logger) (*gorm.DB, *reporting.Mirror, error) {
	db, err := database.NewDatabase(cfg.Reporting.SQLitePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open reporting database: %w", err)
	}
	if err := database.Migrate(db, log); err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		return nil, nil, fmt.Errorf("failed to migrate reporting database: %w", err)
	}

	mirror := reporting.NewMirror(db, log)
	if err := mirror.SyncFrom(ctx, st); err != nil {
		log.Warn("Initial reporting sync failed", zap.Error(err))
	}

	log.Info("Reporting mirror ready", zap.String("path", cfg.Reporting.SQLitePath))
	return db, mirror, nil
}
