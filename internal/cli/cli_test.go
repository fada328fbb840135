package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/semmidev/mudvault/internal/domain"
	"github.com/semmidev/mudvault/internal/retention"
	"github.com/semmidev/mudvault/internal/usecase"
)

func execute(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := Execute(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, ExitOK},
		{"config", fmt.Errorf("%w: remote.folder is required", domain.ErrConfig), ExitConfig},
		{"packaging", domain.NewStageError("4000", domain.StagePackaging, domain.ErrPackaging, domain.ErrPathNotFound), ExitFailed},
		{"auth", domain.NewStageError("4000", domain.StageUploading, domain.ErrAuth, nil), ExitFailed},
		{"delete", domain.NewStageError("4000", domain.StagePruning, domain.ErrDelete, errors.New("503")), ExitFailed},
		{"other", errors.New("boom"), ExitFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestUsageErrorsAreConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"missing target", []string{"run"}, "expected exactly one target"},
		{"two targets", []string{"plan", "4000", "5000"}, "expected exactly one target"},
		{"unknown flag", []string{"run", "4000", "--bogus"}, "unknown flag"},
		{"bad flag value", []string{"run", "4000", "--keep-days", "many"}, "invalid argument"},
		{"extra argument", []string{"schedule", "now"}, "unexpected arguments"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := execute(tt.args...)
			assert.Equal(t, ExitConfig, code)
			assert.Contains(t, stderr, tt.wantErr)
		})
	}
}

func TestInvalidConfiguration(t *testing.T) {
	remote := t.TempDir()

	code, _, stderr := execute("run", "4000",
		"--remote", "local", "--local-path", remote,
		"--keep-days", "7", "--keep-last", "3")

	assert.Equal(t, ExitConfig, code)
	assert.Contains(t, stderr, "keep_last cannot be combined")
}

func seedRemote(t *testing.T) (remote, source string) {
	t.Helper()
	root := t.TempDir()
	remote = filepath.Join(root, "remote")
	folder := filepath.Join(remote, "Mud Backups")
	require.NoError(t, os.MkdirAll(folder, 0755))
	for _, name := range []string{"port4000_20240101T000000Z.tar.xz", "port4000_20240102T000000Z.tar.xz"} {
		require.NoError(t, os.WriteFile(filepath.Join(folder, name), []byte("x"), 0644))
	}
	return remote, filepath.Join(root, "port{target}")
}

func TestPlanCommand(t *testing.T) {
	remote, source := seedRemote(t)

	code, stdout, stderr := execute("plan", "4000",
		"--remote", "local", "--local-path", remote, "--source", source,
		"--keep-last", "1", "--log-level", "error", "--output", "json")
	require.Equal(t, ExitOK, code, stderr)

	var report struct {
		Target string `json:"target"`
		Policy string `json:"policy"`
		Plan   struct {
			Decisions []struct {
				Record struct {
					Filename string `json:"filename"`
				} `json:"record"`
				Keep bool `json:"keep"`
			} `json:"decisions"`
		} `json:"plan"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))

	assert.Equal(t, "4000", report.Target)
	assert.Equal(t, "keep last 1", report.Policy)
	require.Len(t, report.Plan.Decisions, 2)
	assert.Equal(t, "port4000_20240102T000000Z.tar.xz", report.Plan.Decisions[0].Record.Filename)
	assert.True(t, report.Plan.Decisions[0].Keep)
	assert.False(t, report.Plan.Decisions[1].Keep)

	entries, err := os.ReadDir(filepath.Join(remote, "Mud Backups"))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestPlanCommandRejectsUnknownOutput(t *testing.T) {
	remote, source := seedRemote(t)

	code, _, stderr := execute("plan", "4000",
		"--remote", "local", "--local-path", remote, "--source", source, "--output", "xml")

	assert.Equal(t, ExitConfig, code)
	assert.Contains(t, stderr, `unknown output format "xml"`)
}

func TestRenderReport(t *testing.T) {
	color.NoColor = true

	kept := domain.BackupRecord{ID: "a", Filename: "port4000_20240614T040000Z.tar.xz", Timestamp: time.Date(2024, 6, 14, 4, 0, 0, 0, time.UTC)}
	old := domain.BackupRecord{ID: "b", Filename: "port4000_20240101T040000Z.tar.xz", Timestamp: time.Date(2024, 1, 1, 4, 0, 0, 0, time.UTC)}
	report := usecase.Report{
		Target:  "4000",
		Folder:  "Mud Backups",
		Policy:  "days=7 weeks=0 months=0 years=0",
		Skipped: []string{"port4000_notes.txt"},
		Plan: retention.Plan{
			Keep:   []domain.BackupRecord{kept},
			Delete: []domain.BackupRecord{old},
			Decisions: []retention.Decision{
				{Record: kept, Keep: true, Reasons: []string{retention.ReasonLatest, "day 2024-06-14"}},
				{Record: old},
			},
		},
	}

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, renderReport(&buf, report, "table"))

		out := buf.String()
		assert.Contains(t, out, `Target 4000, folder "Mud Backups"`)
		assert.Contains(t, out, "port4000_20240614T040000Z.tar.xz")
		assert.Contains(t, out, "latest, day 2024-06-14")
		assert.Contains(t, out, "delete")
		assert.Contains(t, out, "1 to keep, 1 to delete")
		assert.Contains(t, out, "ignored: port4000_notes.txt")
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, renderReport(&buf, report, "yaml"))

		var decoded map[string]any
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, "4000", decoded["target"])
		assert.Equal(t, []any{"port4000_notes.txt"}, decoded["skipped"])
	})
}
