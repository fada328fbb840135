package usecase

import (
	"context"
	"time"

	"github.com/semmidev/mudvault/internal/domain"
	"github.com/semmidev/mudvault/internal/naming"
	"github.com/semmidev/mudvault/internal/retention"
)

// Report is what a pruning pass would do to a folder right now.
type Report struct {
	Target    string         `json:"target" yaml:"target"`
	Folder    string         `json:"folder" yaml:"folder"`
	Policy    string         `json:"policy" yaml:"policy"`
	Generated time.Time      `json:"generated" yaml:"generated"`
	Skipped   []string       `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Plan      retention.Plan `json:"plan" yaml:"plan"`
}

// Planner lists a folder and evaluates retention without touching it.
type Planner struct {
	target    string
	folder    string
	store     domain.RemoteStore
	namer     *naming.Namer
	retention Retention
	logger    Logger
	now       func() time.Time
}

func NewPlanner(target, folder string, store domain.RemoteStore, namer *naming.Namer, ret Retention, logger Logger) *Planner {
	return &Planner{
		target:    target,
		folder:    folder,
		store:     store,
		namer:     namer,
		retention: ret,
		logger:    logger,
		now:       time.Now,
	}
}

func (p *Planner) WithClock(now func() time.Time) *Planner {
	p.now = now
	return p
}

func (p *Planner) Execute(ctx context.Context) (Report, error) {
	now := p.now().UTC()
	report := Report{
		Target:    p.target,
		Folder:    p.folder,
		Policy:    p.retention.String(),
		Generated: now,
	}

	files, err := p.store.List(ctx, p.folder, p.namer.ListPrefix())
	if err != nil {
		return report, domain.NewStageError(p.target, domain.StageListing, stageKind(domain.ErrList, err), err)
	}

	records, skipped := p.namer.Records(files)
	report.Skipped = skipped
	report.Plan = p.retention.Plan(now, records)

	p.logger.Infof("[%s] %d backup(s) in %q: %d to keep, %d to delete",
		p.target, len(records), p.folder, len(report.Plan.Keep), len(report.Plan.Delete))

	return report, nil
}
