// Package retention decides which backups survive a pruning pass.
//
// Records are bucketed by calendar day, ISO week, month and year, always in
// UTC. Each tier keeps the newest record of its most recent buckets, and the
// newest record overall is never pruned.
package retention

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/semmidev/mudvault/internal/domain"
)

const ReasonLatest = "latest"

// Decision is the verdict for one record, with every rule that kept it.
type Decision struct {
	Record  domain.BackupRecord `json:"record" yaml:"record"`
	Keep    bool                `json:"keep" yaml:"keep"`
	Reasons []string            `json:"reasons,omitempty" yaml:"reasons,omitempty"`
}

// Plan splits a set of records into the ones to keep and the ones to delete.
// All slices are ordered newest first.
type Plan struct {
	Keep      []domain.BackupRecord `json:"-" yaml:"-"`
	Delete    []domain.BackupRecord `json:"-" yaml:"-"`
	Decisions []Decision            `json:"decisions" yaml:"decisions"`
}

type tier struct {
	limit int
	index func(t time.Time) int64
	label func(t time.Time) string
}

func tiers(limits domain.RetentionTiers) []tier {
	return []tier{
		{
			limit: limits.Days,
			index: dayIndex,
			label: func(t time.Time) string { return "day " + t.Format("2006-01-02") },
		},
		{
			limit: limits.Weeks,
			index: func(t time.Time) int64 { return floorDiv(dayIndex(t)+3, 7) },
			label: func(t time.Time) string {
				y, w := t.ISOWeek()
				return fmt.Sprintf("week %04d-W%02d", y, w)
			},
		},
		{
			limit: limits.Months,
			index: func(t time.Time) int64 { return int64(t.Year())*12 + int64(t.Month()) - 1 },
			label: func(t time.Time) string { return "month " + t.Format("2006-01") },
		},
		{
			limit: limits.Years,
			index: func(t time.Time) int64 { return int64(t.Year()) },
			label: func(t time.Time) string { return "year " + t.Format("2006") },
		},
	}
}

// SelectKeep returns the records that survive under limits at time now.
func SelectKeep(now time.Time, records []domain.BackupRecord, limits domain.RetentionTiers) []domain.BackupRecord {
	return Evaluate(now, records, limits).Keep
}

// Evaluate applies the tiered policy and explains every decision.
func Evaluate(now time.Time, records []domain.BackupRecord, limits domain.RetentionTiers) Plan {
	sorted := NewestFirst(records)
	if len(sorted) == 0 {
		return Plan{}
	}

	now = now.UTC()
	reasons := make([][]string, len(sorted))
	reasons[0] = append(reasons[0], ReasonLatest)

	for _, tr := range tiers(limits) {
		if tr.limit <= 0 {
			continue
		}

		current := tr.index(now)
		seen := make(map[int64]struct{})
		kept := 0

		// Newest first, so buckets come in descending order and the first
		// record met in a bucket is its representative.
		for i, rec := range sorted {
			ts := rec.Timestamp.UTC()
			key := tr.index(ts)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}

			if current-key > int64(tr.limit) {
				break
			}

			reasons[i] = append(reasons[i], tr.label(ts))
			kept++
			if kept == tr.limit {
				break
			}
		}
	}

	return newPlan(sorted, reasons)
}

// KeepLast keeps the n newest records. The newest record is kept even when n
// is zero.
func KeepLast(records []domain.BackupRecord, n int) Plan {
	sorted := NewestFirst(records)
	if len(sorted) == 0 {
		return Plan{}
	}

	reasons := make([][]string, len(sorted))
	reasons[0] = append(reasons[0], ReasonLatest)
	for i := 0; i < n && i < len(sorted); i++ {
		reasons[i] = append(reasons[i], fmt.Sprintf("last %d", n))
	}

	return newPlan(sorted, reasons)
}

// NewestFirst returns a sorted copy of records. Equal timestamps are ordered
// by filename, then ID, both descending, so the order never depends on how
// the remote listed them.
func NewestFirst(records []domain.BackupRecord) []domain.BackupRecord {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b domain.BackupRecord) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		if c := strings.Compare(b.Filename, a.Filename); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return sorted
}

func newPlan(sorted []domain.BackupRecord, reasons [][]string) Plan {
	plan := Plan{Decisions: make([]Decision, 0, len(sorted))}
	for i, rec := range sorted {
		keep := len(reasons[i]) > 0
		plan.Decisions = append(plan.Decisions, Decision{Record: rec, Keep: keep, Reasons: reasons[i]})
		if keep {
			plan.Keep = append(plan.Keep, rec)
		} else {
			plan.Delete = append(plan.Delete, rec)
		}
	}
	return plan
}

func dayIndex(t time.Time) int64 {
	return floorDiv(t.Unix(), 24*60*60)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
