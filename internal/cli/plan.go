package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/semmidev/mudvault/internal/app"
	"github.com/semmidev/mudvault/internal/domain"
	"github.com/semmidev/mudvault/internal/usecase"
)

func NewPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan <target>",
		Short: "Show which backups the retention limits keep and delete",
		Long: `Plan lists the remote folder of the target and evaluates the retention limits
against it without uploading or deleting anything.`,
		Example: `mudvault plan 4000 --keep-days 7 --keep-weeks 4 --output json`,
		Args:    targetArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			output, err := cmd.Flags().GetString("output")
			if err != nil {
				return err
			}
			if output != "table" && output != "json" && output != "yaml" {
				return fmt.Errorf("%w: unknown output format %q", domain.ErrConfig, output)
			}

			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}

			application, err := app.New(cfg)
			if err != nil {
				return err
			}
			defer application.Shutdown()

			report, err := application.Plan(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return renderReport(cmd.OutOrStdout(), report, output)
		},
	}

	addBackupFlags(cmd.Flags())
	cmd.Flags().StringP("output", "o", "table", "output format: table, json or yaml")
	return cmd
}

func renderReport(w io.Writer, report usecase.Report, output string) error {
	switch output {
	case "json":
		b, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode plan: %w", err)
		}
		_, err = fmt.Fprintln(w, string(b))
		return err

	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("failed to encode plan: %w", err)
		}
		return enc.Close()

	default:
		return renderTable(w, report)
	}
}

func renderTable(w io.Writer, report usecase.Report) error {
	keep := color.New(color.FgGreen).SprintFunc()
	drop := color.New(color.FgRed).SprintFunc()

	fmt.Fprintf(w, "Target %s, folder %q, policy %s\n", report.Target, report.Folder, report.Policy)

	table := tablewriter.NewTable(w)
	table.Header([]string{"Backup", "Timestamp", "Action", "Reasons"})

	for _, d := range report.Plan.Decisions {
		action := drop("delete")
		if d.Keep {
			action = keep("keep")
		}
		row := []string{
			d.Record.Filename,
			d.Record.Timestamp.UTC().Format("2006-01-02 15:04:05"),
			action,
			strings.Join(d.Reasons, ", "),
		}
		if err := table.Append(row); err != nil {
			return fmt.Errorf("an error occurred while building the table: %w", err)
		}
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("an error occurred while rendering the table: %w", err)
	}

	fmt.Fprintf(w, "%d to keep, %d to delete\n", len(report.Plan.Keep), len(report.Plan.Delete))
	for _, name := range report.Skipped {
		fmt.Fprintf(w, "ignored: %s\n", name)
	}
	return nil
}
