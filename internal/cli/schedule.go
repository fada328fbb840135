package cli

import (
	"github.com/spf13/cobra"

	"github.com/semmidev/mudvault/internal/app"
)

func NewScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "schedule",
		Short:   "Run the backup jobs of the config file on their cron schedules",
		Example: `mudvault schedule --config /etc/mudvault.yaml`,
		Args:    noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}

			application, err := app.New(cfg)
			if err != nil {
				return err
			}
			defer application.Shutdown()

			return application.Run(cmd.Context())
		},
	}

	addBackupFlags(cmd.Flags())
	return cmd
}
