// Package naming builds and parses backup file names of the form
// <prefix>_<timestamp><extension>.
package naming

import (
	"strings"
	"time"

	"github.com/semmidev/mudvault/internal/domain"
)

const (
	// TimestampLayout is ISO 8601 basic format in UTC: fixed width, no colons.
	TimestampLayout = "20060102T150405Z"

	// legacyLayout is the date-only stamp written by older backup scripts.
	legacyLayout = "2006-01-02"

	separator = "_"
)

type Namer struct {
	Prefix    string
	Extension string
}

func New(prefix, extension string) *Namer {
	return &Namer{Prefix: prefix, Extension: extension}
}

// MakeName returns the canonical file name for a backup taken at now.
func (n *Namer) MakeName(now time.Time) string {
	return n.Prefix + separator + now.UTC().Format(TimestampLayout) + n.Extension
}

// ListPrefix is the name prefix shared by every backup of this namer.
func (n *Namer) ListPrefix() string {
	return n.Prefix + separator
}

// ParseTimestamp extracts the timestamp from filename. It reports false for
// any name that is not <prefix>_<timestamp>[.ext].
func (n *Namer) ParseTimestamp(filename string) (time.Time, bool) {
	rest, ok := strings.CutPrefix(filename, n.ListPrefix())
	if !ok {
		return time.Time{}, false
	}

	for _, layout := range []string{TimestampLayout, legacyLayout} {
		if len(rest) < len(layout) {
			continue
		}
		stamp, tail := rest[:len(layout)], rest[len(layout):]
		if tail != "" && !strings.HasPrefix(tail, ".") {
			continue
		}
		ts, err := time.ParseInLocation(layout, stamp, time.UTC)
		if err != nil {
			continue
		}
		return ts, true
	}

	return time.Time{}, false
}

// Record converts a remote listing entry into a BackupRecord.
func (n *Namer) Record(file domain.RemoteFile) (domain.BackupRecord, bool) {
	ts, ok := n.ParseTimestamp(file.Name)
	if !ok {
		return domain.BackupRecord{}, false
	}
	return domain.BackupRecord{
		ID:        file.ID,
		Filename:  file.Name,
		Prefix:    n.Prefix,
		Timestamp: ts,
	}, true
}

// Records parses a listing and returns the backups in it along with the
// names that were skipped.
func (n *Namer) Records(files []domain.RemoteFile) ([]domain.BackupRecord, []string) {
	records := make([]domain.BackupRecord, 0, len(files))
	var skipped []string
	for _, f := range files {
		rec, ok := n.Record(f)
		if !ok {
			skipped = append(skipped, f.Name)
			continue
		}
		records = append(records, rec)
	}
	return records, skipped
}
