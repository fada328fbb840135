package domain

import (
	"context"
	"time"
)

// BackupRecord is a remote backup whose name parsed as <prefix>_<timestamp>.
type BackupRecord struct {
	ID        string    `json:"id" yaml:"id"`
	Filename  string    `json:"filename" yaml:"filename"`
	Prefix    string    `json:"prefix" yaml:"prefix"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// RetentionTiers holds how many days, weeks, months and years are represented
// by at least one backup. A zero limit disables the tier.
type RetentionTiers struct {
	Days   int `mapstructure:"days" json:"days" yaml:"days"`
	Weeks  int `mapstructure:"weeks" json:"weeks" yaml:"weeks"`
	Months int `mapstructure:"months" json:"months" yaml:"months"`
	Years  int `mapstructure:"years" json:"years" yaml:"years"`
}

func (t RetentionTiers) IsZero() bool {
	return t.Days == 0 && t.Weeks == 0 && t.Months == 0 && t.Years == 0
}

type Stage string

const (
	StagePackaging Stage = "PACKAGING"
	StageUploading Stage = "UPLOADING"
	StageListing   Stage = "LISTING"
	StagePruning   Stage = "PRUNING"
	StageDone      Stage = "DONE"
	StageFailed    Stage = "FAILED"
)

type DeleteFailure struct {
	Filename string
	Err      error
}

// RunSummary is the report of one backup cycle for a target.
type RunSummary struct {
	Target      string
	Stage       Stage
	FailedStage Stage
	Uploaded    string
	UploadedID  string
	DryRun      bool
	Kept        int
	Deleted     int
	Failures    []DeleteFailure
	Started     time.Time
	Finished    time.Time
	Err         error
}

func (s RunSummary) Succeeded() bool {
	return s.Stage == StageDone && len(s.Failures) == 0 && s.Err == nil
}

type BackupJob struct {
	Target   string
	Schedule string
	BackupUC BackupExecutor
}

type BackupExecutor interface {
	Execute(ctx context.Context) (RunSummary, error)
}
