package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/semmidev/mudvault/internal/domain"
)

const (
	ExitOK     = 0
	ExitFailed = 1
	ExitConfig = 2
)

var defaultCommands = []CommandFactory{
	UseMiddlewareChain(RequireConfig)(NewRunCmd),
	UseMiddlewareChain(RequireConfig)(NewPlanCmd),
	UseMiddlewareChain(RequireConfig)(NewAuthorizeCmd),
	UseMiddlewareChain(RequireConfig)(NewScheduleCmd),
}

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mudvault",
		Short: "Back up MUD servers to cloud storage with tiered retention",
		Long: `mudvault packages a MUD server directory, uploads the archive to Google Drive,
S3 or a local share, and prunes older backups so that a chosen number of days,
weeks, months and years stay represented.`,
		Example:       `mudvault run 4000 --keep-days 7 --keep-weeks 4 --keep-months 12`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringP("config", "c", "", "path to config file")
	cmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-file", "", "also write JSON logs to this file")
	cmd.PersistentFlags().Bool("log-timestamps", true, "prefix log lines with a timestamp")
	cmd.SetFlagErrorFunc(flagError)

	for _, factory := range defaultCommands {
		sub := factory()
		sub.SetFlagErrorFunc(flagError)
		cmd.AddCommand(sub)
	}

	return cmd
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err != nil {
		color.New(color.FgRed).Fprintf(stderr, "Error: %v\n", err)
	}
	return ExitCode(err)
}

func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, domain.ErrConfig):
		return ExitConfig
	default:
		return ExitFailed
	}
}

func flagError(_ *cobra.Command, err error) error {
	return fmt.Errorf("%w: %w", domain.ErrConfig, err)
}

// targetArg accepts exactly one positional target identifier.
func targetArg(_ *cobra.Command, args []string) error {
	if len(args) != 1 || args[0] == "" {
		return fmt.Errorf("%w: expected exactly one target, got %d", domain.ErrConfig, len(args))
	}
	return nil
}

func noArgs(_ *cobra.Command, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("%w: unexpected arguments %v", domain.ErrConfig, args)
	}
	return nil
}

// addBackupFlags registers the flags shared by run and plan. Defaults are
// zero values so that config file and environment settings apply unless a
// flag is given.
func addBackupFlags(fs *pflag.FlagSet) {
	fs.String("source", "", "directory to archive, {target} is replaced (default \"{target}\")")
	fs.String("prefix", "", "backup name prefix, {target} is replaced (default: source directory name)")
	fs.String("format", "", "compression: xz, gz, zst or none (default \"xz\")")
	fs.StringSlice("exclude", nil, "glob of file names to leave out (repeatable)")
	fs.String("temp-dir", "", "where the archive is built before upload")

	fs.String("remote", "", "remote store: gdrive, s3 or local (default \"gdrive\")")
	fs.String("folder", "", "remote folder (default \"Mud Backups\")")
	fs.String("credentials", "", "Drive client secrets or service account key (default \"credentials.json\")")
	fs.String("token-file", "", "Drive OAuth token file (default \"token.json\")")
	fs.Bool("trash", false, "move pruned Drive files to the trash instead of deleting them")
	fs.String("bucket", "", "S3 bucket")
	fs.String("region", "", "S3 region (default \"us-east-1\")")
	fs.String("endpoint", "", "S3 compatible endpoint URL")
	fs.String("local-path", "", "base directory of the local remote")

	fs.Int("keep-days", 0, "number of daily backups to keep")
	fs.Int("keep-weeks", 0, "number of weekly backups to keep")
	fs.Int("keep-months", 0, "number of monthly backups to keep")
	fs.Int("keep-years", 0, "number of yearly backups to keep")
	fs.Int("keep-last", 0, "keep only the N newest backups (default 4 when no other limit is set)")
}
