package cli

import (
	"github.com/spf13/cobra"

	"github.com/semmidev/mudvault/internal/app"
)

func NewAuthorizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authorize",
		Short: "Grant access to Google Drive and write the token file",
		Long: `Authorize starts a small web server on --auth-addr. Opening it in a browser
leads through Google's consent screen; the resulting token is written to
--token-file and refreshed automatically by later runs.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			return app.Authorize(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("credentials", "", "OAuth client secrets file (default \"credentials.json\")")
	cmd.Flags().String("token-file", "", "where to write the token (default \"token.json\")")
	cmd.Flags().String("auth-addr", "", "listen address of the consent server (default \"localhost:8085\")")
	return cmd
}
