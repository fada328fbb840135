package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/semmidev/mudvault/internal/domain"
	"github.com/semmidev/mudvault/internal/naming"
)

// Backup runs one cycle for a target: package, upload, list, prune.
type Backup struct {
	target    string
	sourceDir string
	folder    string
	packager  domain.Packager
	store     domain.RemoteStore
	notifier  domain.Notifier
	namer     *naming.Namer
	retention Retention
	logger    Logger
	dryRun    bool
	now       func() time.Time
}

type BackupOptions struct {
	Target    string
	SourceDir string
	Folder    string
	Retention Retention
	DryRun    bool
}

// NewBackup wires a backup cycle. notifier may be nil.
func NewBackup(
	opts BackupOptions,
	packager domain.Packager,
	store domain.RemoteStore,
	namer *naming.Namer,
	notifier domain.Notifier,
	logger Logger,
) *Backup {
	return &Backup{
		target:    opts.Target,
		sourceDir: opts.SourceDir,
		folder:    opts.Folder,
		packager:  packager,
		store:     store,
		notifier:  notifier,
		namer:     namer,
		retention: opts.Retention,
		logger:    logger,
		dryRun:    opts.DryRun,
		now:       time.Now,
	}
}

func (uc *Backup) WithClock(now func() time.Time) *Backup {
	uc.now = now
	return uc
}

func (uc *Backup) Execute(ctx context.Context) (domain.RunSummary, error) {
	summary := domain.RunSummary{
		Target:  uc.target,
		DryRun:  uc.dryRun,
		Started: uc.now().UTC(),
	}

	if uc.dryRun {
		uc.logger.Infof("[%s] Starting backup (dry run)...", uc.target)
	} else {
		uc.logger.Infof("[%s] Starting backup...", uc.target)
	}

	err := uc.run(ctx, &summary)
	summary.Finished = uc.now().UTC()
	elapsed := summary.Finished.Sub(summary.Started).Round(time.Second)

	switch {
	case err == nil:
		summary.Stage = domain.StageDone
		uc.logger.Infof("[%s] Backup completed in %s: %s (kept %d, deleted %d)",
			uc.target, elapsed, summary.Uploaded, summary.Kept, summary.Deleted)
	case summary.Stage == domain.StageDone:
		summary.Err = err
		uc.logger.Errorf("[%s] Backup completed in %s with %d failed deletion(s)",
			uc.target, elapsed, len(summary.Failures))
	default:
		summary.FailedStage = summary.Stage
		summary.Stage = domain.StageFailed
		summary.Err = err
		uc.logger.Errorf("[%s] Backup failed during %s: %v", uc.target, summary.FailedStage, err)
	}

	uc.notify(ctx, summary)
	return summary, err
}

func (uc *Backup) run(ctx context.Context, summary *domain.RunSummary) error {
	now := summary.Started
	name := uc.namer.MakeName(now)

	summary.Stage = domain.StagePackaging
	uc.logger.Infof("[%s] Packaging %s", uc.target, uc.sourceDir)
	archive, err := uc.packager.CreateArchive(ctx, uc.sourceDir)
	if err != nil {
		return domain.NewStageError(uc.target, domain.StagePackaging, domain.ErrPackaging, err)
	}
	defer os.Remove(archive)

	if info, err := os.Stat(archive); err == nil {
		uc.logger.Infof("[%s] Archive created, size: %.2f MB", uc.target, float64(info.Size())/(1024*1024))
	}

	uploaded := domain.BackupRecord{Filename: name, Prefix: uc.namer.Prefix}
	uploaded.Timestamp, _ = uc.namer.ParseTimestamp(name)

	if uc.dryRun {
		uc.logger.Infof("[%s] Dry run: skipping upload of %s", uc.target, name)
		summary.Uploaded = name
	} else {
		summary.Stage = domain.StageUploading
		uc.logger.Infof("[%s] Uploading %s to %q...", uc.target, name, uc.folder)
		id, err := uc.store.Upload(ctx, archive, uc.folder, name)
		if err != nil {
			return domain.NewStageError(uc.target, domain.StageUploading, stageKind(domain.ErrUpload, err), err)
		}
		summary.Uploaded, summary.UploadedID = name, id
		uploaded.ID = id
		uc.logger.Infof("[%s] Successfully uploaded %s", uc.target, name)
	}

	summary.Stage = domain.StageListing
	records, err := listRecords(ctx, uc.store, uc.namer, uc.folder, uc.logger)
	if err != nil {
		return domain.NewStageError(uc.target, domain.StageListing, stageKind(domain.ErrList, err), err)
	}

	if uc.dryRun {
		records = append(records, uploaded)
	} else {
		found := false
		for _, rec := range records {
			if sameRecord(rec, uploaded) {
				uploaded, found = rec, true
				break
			}
		}
		if !found {
			return domain.NewStageError(uc.target, domain.StageListing, domain.ErrList,
				fmt.Errorf("listing of %q does not contain %s", uc.folder, name))
		}
	}

	summary.Stage = domain.StagePruning
	plan := protect(uc.retention.Plan(now, records), uploaded)
	summary.Kept = len(plan.Keep)
	uc.logger.Infof("[%s] Retention (%s): %d backup(s), keeping %d, deleting %d",
		uc.target, uc.retention, len(records), len(plan.Keep), len(plan.Delete))

	if uc.dryRun {
		for _, rec := range plan.Delete {
			uc.logger.Infof("[%s] Dry run: would delete %s", uc.target, rec.Filename)
		}
		return nil
	}

	for _, rec := range plan.Delete {
		if err := ctx.Err(); err != nil {
			return domain.NewStageError(uc.target, domain.StagePruning, domain.ErrDelete, err)
		}

		uc.logger.Infof("[%s] Deleting old backup: %s", uc.target, rec.Filename)
		err := uc.store.Delete(ctx, rec.ID)
		switch {
		case err == nil:
			summary.Deleted++
		case errors.Is(err, domain.ErrNotFound):
			uc.logger.Warnf("[%s] %s was already gone", uc.target, rec.Filename)
			summary.Deleted++
		case errors.Is(err, domain.ErrAuth):
			return domain.NewStageError(uc.target, domain.StagePruning, domain.ErrAuth,
				fmt.Errorf("failed to delete %s: %w", rec.Filename, err))
		default:
			uc.logger.Errorf("[%s] Failed to delete %s: %v", uc.target, rec.Filename, err)
			summary.Failures = append(summary.Failures, domain.DeleteFailure{Filename: rec.Filename, Err: err})
		}
	}

	if len(summary.Failures) > 0 {
		errs := make([]error, 0, len(summary.Failures))
		for _, f := range summary.Failures {
			errs = append(errs, fmt.Errorf("%s: %w", f.Filename, f.Err))
		}
		summary.Stage = domain.StageDone
		return domain.NewStageError(uc.target, domain.StagePruning, domain.ErrDelete, errors.Join(errs...))
	}

	return nil
}

func (uc *Backup) notify(ctx context.Context, summary domain.RunSummary) {
	if uc.notifier == nil {
		return
	}
	if err := uc.notifier.Notify(ctx, summary); err != nil {
		uc.logger.Warnf("[%s] Notification failed: %v", uc.target, err)
	}
}
