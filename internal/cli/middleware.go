package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/semmidev/mudvault/internal/config"
)

type contextKey string

const ctxKeyConfig contextKey = "config"

type CommandFactory func() *cobra.Command

type MiddlewareFunc func(cmd *cobra.Command, args []string, next func(cmd *cobra.Command, args []string) error) error

// UseMiddlewareChain wraps the RunE of every command built by a factory.
// Middlewares run in the order given.
func UseMiddlewareChain(mws ...MiddlewareFunc) func(CommandFactory) CommandFactory {
	return func(factory CommandFactory) CommandFactory {
		return func() *cobra.Command {
			cmd := factory()
			run := cmd.RunE
			for i := len(mws) - 1; i >= 0; i-- {
				mw, next := mws[i], run
				run = func(c *cobra.Command, args []string) error {
					return mw(c, args, next)
				}
			}
			cmd.RunE = run
			return cmd
		}
	}
}

// RequireConfig loads the configuration from --config, the environment and
// the command's flags.
func RequireConfig(cmd *cobra.Command, args []string, next func(cmd *cobra.Command, args []string) error) error {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}

	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, ctxKeyConfig, cfg))

	return next(cmd, args)
}

func configFrom(cmd *cobra.Command) (*config.Config, error) {
	cfg, ok := cmd.Context().Value(ctxKeyConfig).(*config.Config)
	if !ok || cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	return cfg, nil
}
