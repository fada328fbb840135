package app

import (
	"context"
	"fmt"

	"github.com/semmidev/mudvault/internal/adapter/compressor"
	"github.com/semmidev/mudvault/internal/adapter/notifier"
	"github.com/semmidev/mudvault/internal/adapter/packager"
	"github.com/semmidev/mudvault/internal/adapter/storage"
	"github.com/semmidev/mudvault/internal/config"
	"github.com/semmidev/mudvault/internal/domain"
	"github.com/semmidev/mudvault/internal/infrastructure/logger"
	"github.com/semmidev/mudvault/internal/infrastructure/scheduler"
	"github.com/semmidev/mudvault/internal/naming"
	"github.com/semmidev/mudvault/internal/usecase"
)

type App struct {
	config    *config.Config
	logger    *logger.Logger
	store     domain.RemoteStore
	packager  domain.Packager
	notifier  domain.Notifier
	scheduler *scheduler.Scheduler
}

func New(cfg *config.Config) (*App, error) {
	// Initialize logger
	log, err := logger.NewWithOptions(logger.Options{
		Level:  cfg.App.LogLevel,
		File:   cfg.App.LogFile,
		NoTime: !cfg.App.LogTimestamps,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	// Initialize packager
	format, err := compressor.ParseFormat(cfg.Source.Format)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfig, err)
	}
	pkg, err := packager.NewTar(format, cfg.Source.Excludes, cfg.Source.TempDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfig, err)
	}

	// Initialize remote storage
	store, err := newRemoteStore(context.Background(), cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s storage: %w", cfg.Remote.Type, err)
	}

	return &App{
		config:    cfg,
		logger:    log,
		store:     store,
		packager:  pkg,
		notifier:  newNotifier(cfg, log),
		scheduler: scheduler.New(log),
	}, nil
}

func newRemoteStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (domain.RemoteStore, error) {
	switch cfg.Remote.Type {
	case "gdrive":
		stor, err := storage.NewGDrive(ctx, &cfg.Remote.GDrive)
		if err != nil {
			return nil, err
		}
		log.Infof("✓ Google Drive storage enabled (folder: %s)", cfg.Remote.Folder)
		return stor, nil

	case "s3":
		stor, err := storage.NewS3(ctx, &cfg.Remote.S3)
		if err != nil {
			return nil, err
		}
		log.Infof("✓ AWS S3 storage enabled (bucket: %s)", cfg.Remote.S3.Bucket)
		return stor, nil

	case "local":
		stor, err := storage.NewLocal(cfg.Remote.Local.Path)
		if err != nil {
			return nil, err
		}
		log.Infof("✓ Local storage enabled (path: %s)", cfg.Remote.Local.Path)
		return stor, nil

	default:
		return nil, fmt.Errorf("%w: unknown remote type %q", domain.ErrConfig, cfg.Remote.Type)
	}
}

func newNotifier(cfg *config.Config, log *logger.Logger) domain.Notifier {
	tg := cfg.Notify.Telegram
	if tg.BotToken == "" {
		return nil
	}

	n, err := notifier.NewTelegram(&tg)
	if err != nil {
		log.Errorf("Failed to initialize Telegram: %v", err)
		return nil
	}
	log.Infof("✓ Telegram notifications enabled")
	return n
}

func (a *App) retention() usecase.Retention {
	return usecase.Retention{
		Tiers:    a.config.Retention.Tiers,
		KeepLast: a.config.Retention.KeepLast,
	}
}

func (a *App) namer(target string) *naming.Namer {
	return naming.New(a.config.Prefix(target), a.packager.Extension())
}

func (a *App) backup(target string) *usecase.Backup {
	opts := usecase.BackupOptions{
		Target:    target,
		SourceDir: a.config.SourceDir(target),
		Folder:    a.config.Remote.Folder,
		Retention: a.retention(),
		DryRun:    a.config.DryRun,
	}
	return usecase.NewBackup(opts, a.packager, a.store, a.namer(target), a.notifier, a.logger.ForTarget(target))
}

// RunTarget runs one backup cycle for target.
func (a *App) RunTarget(ctx context.Context, target string) (domain.RunSummary, error) {
	return a.backup(target).Execute(ctx)
}

// Plan reports what pruning would do to target's backups without changing
// anything.
func (a *App) Plan(ctx context.Context, target string) (usecase.Report, error) {
	planner := usecase.NewPlanner(target, a.config.Remote.Folder, a.store, a.namer(target), a.retention(), a.logger.ForTarget(target))
	return planner.Execute(ctx)
}

// Run schedules every configured job and blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if len(a.config.Schedule.Jobs) == 0 {
		return fmt.Errorf("%w: no schedule.jobs configured", domain.ErrConfig)
	}

	var jobs []domain.BackupJob
	for _, jc := range a.config.Schedule.Jobs {
		jobs = append(jobs, domain.BackupJob{
			Target:   jc.Target,
			Schedule: jc.Schedule,
			BackupUC: a.backup(jc.Target),
		})
	}

	for _, job := range jobs {
		backupUC := job.BackupUC
		target := job.Target

		if err := a.scheduler.AddJob(job.Schedule, func(ctx context.Context) error {
			a.logger.Infof("=== Triggered scheduled backup for %s ===", target)
			_, err := backupUC.Execute(ctx)
			return err
		}); err != nil {
			return fmt.Errorf("%w: failed to schedule backup for %s: %w", domain.ErrConfig, target, err)
		}
		a.logger.Infof("✓ Scheduled backup for %s: %s", target, job.Schedule)
	}

	a.scheduler.Start(ctx)
	a.logger.Infof("Scheduler started with %d backup job(s)", len(jobs))

	// Keep running until context is cancelled
	<-ctx.Done()
	return nil
}

func (a *App) Shutdown() {
	a.scheduler.Stop()
	a.logger.Close()
}
