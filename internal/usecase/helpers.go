package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/semmidev/mudvault/internal/domain"
	"github.com/semmidev/mudvault/internal/naming"
	"github.com/semmidev/mudvault/internal/retention"
)

// ReasonUploaded marks the backup written by the current run.
const ReasonUploaded = "uploaded"

type Logger interface {
	Infof(template string, args ...interface{})
	Errorf(template string, args ...interface{})
	Warnf(template string, args ...interface{})
}

// Retention selects between the tiered policy and a plain keep-last count.
type Retention struct {
	Tiers    domain.RetentionTiers
	KeepLast int
}

func (r Retention) Plan(now time.Time, records []domain.BackupRecord) retention.Plan {
	if r.KeepLast > 0 {
		return retention.KeepLast(records, r.KeepLast)
	}
	return retention.Evaluate(now, records, r.Tiers)
}

func (r Retention) String() string {
	if r.KeepLast > 0 {
		return fmt.Sprintf("keep last %d", r.KeepLast)
	}
	t := r.Tiers
	return fmt.Sprintf("days=%d weeks=%d months=%d years=%d", t.Days, t.Weeks, t.Months, t.Years)
}

func listRecords(ctx context.Context, store domain.RemoteStore, namer *naming.Namer, folder string, log Logger) ([]domain.BackupRecord, error) {
	files, err := store.List(ctx, folder, namer.ListPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to list %q: %w", folder, err)
	}

	records, skipped := namer.Records(files)
	for _, name := range skipped {
		log.Warnf("Ignoring %s: name does not carry a timestamp", name)
	}
	return records, nil
}

// protect moves rec to the keep side of plan. The backup just written must
// survive even when the remote already holds a newer one.
func protect(plan retention.Plan, rec domain.BackupRecord) retention.Plan {
	out := retention.Plan{Decisions: make([]retention.Decision, 0, len(plan.Decisions))}
	for _, d := range plan.Decisions {
		if sameRecord(d.Record, rec) && !d.Keep {
			d.Keep = true
			d.Reasons = append(d.Reasons, ReasonUploaded)
		}
		out.Decisions = append(out.Decisions, d)
		if d.Keep {
			out.Keep = append(out.Keep, d.Record)
		} else {
			out.Delete = append(out.Delete, d.Record)
		}
	}
	return out
}

// sameRecord matches by ID whenever want has one. Names are not unique on
// Drive, so a name match only counts for IDs the store never returned.
func sameRecord(rec, want domain.BackupRecord) bool {
	if want.ID != "" {
		return rec.ID == want.ID
	}
	return rec.Filename == want.Filename
}

// stageKind reports auth failures as such, whatever stage they hit.
func stageKind(kind, err error) error {
	if errors.Is(err, domain.ErrAuth) {
		return domain.ErrAuth
	}
	return kind
}
