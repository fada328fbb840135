package naming

import (
	"sort"
	"testing"
	"time"

	"github.com/semmidev/mudvault/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeName(t *testing.T) {
	n := New("port4000", ".tar.xz")
	now := time.Date(2024, 3, 7, 4, 5, 9, 0, time.UTC)

	assert.Equal(t, "port4000_20240307T040509Z.tar.xz", n.MakeName(now))
}

func TestMakeNameUsesUTC(t *testing.T) {
	n := New("mud", "")
	loc := time.FixedZone("UTC+2", 2*60*60)
	now := time.Date(2024, 1, 1, 1, 0, 0, 0, loc)

	assert.Equal(t, "mud_20231231T230000Z", n.MakeName(now))
}

func TestMakeNameSortsByTime(t *testing.T) {
	n := New("mud", ".tar.xz")
	base := time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC)

	var names []string
	for _, d := range []time.Duration{0, time.Second, 9 * time.Hour, 40 * 24 * time.Hour, 400 * 24 * time.Hour} {
		names = append(names, n.MakeName(base.Add(d)))
	}

	assert.True(t, sort.StringsAreSorted(names), "names should sort by time: %v", names)
}

func TestParseTimestamp(t *testing.T) {
	n := New("mud", ".tar.xz")

	tests := []struct {
		name     string
		filename string
		want     time.Time
		ok       bool
	}{
		{"canonical", "mud_20240307T040509Z.tar.xz", time.Date(2024, 3, 7, 4, 5, 9, 0, time.UTC), true},
		{"other extension", "mud_20240307T040509Z.tar.gz", time.Date(2024, 3, 7, 4, 5, 9, 0, time.UTC), true},
		{"no extension", "mud_20240307T040509Z", time.Date(2024, 3, 7, 4, 5, 9, 0, time.UTC), true},
		{"legacy date", "mud_2019-05-01.tar.xz", time.Date(2019, 5, 1, 0, 0, 0, 0, time.UTC), true},
		{"other prefix", "mudder_20240307T040509Z.tar.xz", time.Time{}, false},
		{"longer prefix", "mud_old_20240307T040509Z.tar.xz", time.Time{}, false},
		{"missing separator", "mud20240307T040509Z.tar.xz", time.Time{}, false},
		{"garbage tail", "mud_20240307T040509Zcopy", time.Time{}, false},
		{"invalid month", "mud_20241307T040509Z.tar.xz", time.Time{}, false},
		{"notes file", "mud_notes.txt", time.Time{}, false},
		{"empty", "", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := n.ParseTimestamp(tt.filename)
			assert.Equal(t, tt.ok, ok)
			assert.True(t, tt.want.Equal(got), "got %v, want %v", got, tt.want)
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	n := New("port 4000", ".tar.zst")
	now := time.Date(2025, 2, 28, 23, 1, 2, 999, time.UTC)

	got, ok := n.ParseTimestamp(n.MakeName(now))
	require.True(t, ok)
	assert.True(t, now.Truncate(time.Second).Equal(got))
}

func TestRecords(t *testing.T) {
	n := New("mud", ".tar.xz")
	files := []domain.RemoteFile{
		{ID: "1", Name: "mud_20240101T000000Z.tar.xz"},
		{ID: "2", Name: "mud_README"},
		{ID: "3", Name: "mud_20240102T000000Z.tar.xz"},
	}

	records, skipped := n.Records(files)

	require.Len(t, records, 2)
	assert.Equal(t, "1", records[0].ID)
	assert.Equal(t, "mud", records[0].Prefix)
	assert.Equal(t, "3", records[1].ID)
	assert.Equal(t, []string{"mud_README"}, skipped)
}
