package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/semmidev/mudvault/internal/domain"
	"github.com/semmidev/mudvault/internal/infrastructure/logger"
	"github.com/semmidev/mudvault/internal/naming"
	"github.com/semmidev/mudvault/internal/retention"
)

func TestPlannerExecute(t *testing.T) {
	namer := naming.New("port4000", ".tar.xz")
	clock := func() time.Time { return now }

	t.Run("reports without deleting", func(t *testing.T) {
		files := append(daily(namer, 5), domain.RemoteFile{ID: "x", Name: "port4000_notes.txt"})
		store := &mockStore{}
		store.On("List", mock.Anything, folder, "port4000_").Return(files, nil).Once()

		planner := NewPlanner("4000", folder, store, namer, Retention{Tiers: domain.RetentionTiers{Days: 2}}, logger.Nop()).
			WithClock(clock)
		report, err := planner.Execute(context.Background())
		require.NoError(t, err)

		assert.Equal(t, "days=2 weeks=0 months=0 years=0", report.Policy)
		assert.Equal(t, []string{"port4000_notes.txt"}, report.Skipped)
		require.Len(t, report.Plan.Keep, 2)
		assert.Equal(t, "id-1", report.Plan.Keep[0].ID)
		assert.Equal(t, []string{retention.ReasonLatest, "day 2024-06-13"}, report.Plan.Decisions[0].Reasons)
		assert.Len(t, report.Plan.Delete, 3)
		store.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("classifies listing failures", func(t *testing.T) {
		store := &mockStore{}
		store.On("List", mock.Anything, folder, "port4000_").Return(nil, fmt.Errorf("token expired: %w", domain.ErrAuth)).Once()

		_, err := NewPlanner("4000", folder, store, namer, Retention{}, logger.Nop()).Execute(context.Background())

		assert.True(t, errors.Is(err, domain.ErrAuth))
		var stageErr *domain.StageError
		require.True(t, errors.As(err, &stageErr))
		assert.Equal(t, domain.StageListing, stageErr.Stage)
	})
}

func TestRetentionString(t *testing.T) {
	assert.Equal(t, "keep last 3", Retention{KeepLast: 3}.String())
	assert.Equal(t, "days=7 weeks=4 months=12 years=5",
		Retention{Tiers: domain.RetentionTiers{Days: 7, Weeks: 4, Months: 12, Years: 5}}.String())
}

func TestProtect(t *testing.T) {
	rec := domain.BackupRecord{ID: "new", Filename: "port4000_20240614T040000Z.tar.xz"}
	plan := retention.Plan{
		Decisions: []retention.Decision{{Record: rec}},
		Delete:    []domain.BackupRecord{rec},
	}

	got := protect(plan, rec)

	assert.Empty(t, got.Delete)
	assert.Equal(t, []domain.BackupRecord{rec}, got.Keep)
	assert.Equal(t, []string{ReasonUploaded}, got.Decisions[0].Reasons)
}

func TestProtectMatchesByID(t *testing.T) {
	name := "port4000_20240614T040000Z.tar.xz"
	older := domain.BackupRecord{ID: "old", Filename: name}
	fresh := domain.BackupRecord{ID: "new", Filename: name}
	plan := retention.Plan{
		Decisions: []retention.Decision{{Record: older}, {Record: fresh}},
		Delete:    []domain.BackupRecord{older, fresh},
	}

	got := protect(plan, fresh)

	assert.Equal(t, []domain.BackupRecord{fresh}, got.Keep)
	assert.Equal(t, []domain.BackupRecord{older}, got.Delete)
}
