package cli

import (
	"github.com/spf13/cobra"

	"github.com/semmidev/mudvault/internal/app"
)

func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <target>",
		Short: "Package, upload and prune backups for one target",
		Long: `Run performs one backup cycle: the source directory of the target is archived,
uploaded to the remote folder under a timestamped name, and older backups are
pruned according to the retention limits. Nothing is deleted unless the upload
succeeded and the remote listing shows it.`,
		Example: `mudvault run 4000 --source /home/mud/port{target} --keep-days 7 --keep-weeks 4`,
		Args:    targetArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}

			application, err := app.New(cfg)
			if err != nil {
				return err
			}
			defer application.Shutdown()

			_, err = application.RunTarget(cmd.Context(), args[0])
			return err
		},
	}

	addBackupFlags(cmd.Flags())
	cmd.Flags().Bool("dry-run", false, "package and plan, but neither upload nor delete")
	return cmd
}
