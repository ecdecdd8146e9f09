package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/gradnja/stroski-api/internal/domain"
	"github.com/spf13/cobra"
)

// NewCostsCommand groups the cost CSV subcommands.
func NewCostsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "costs",
		Short: "Export and import costs as CSV",
	}
	cmd.AddCommand(newCostsExportCommand(rootOpts))
	cmd.AddCommand(newCostsImportCommand(rootOpts))
	return cmd
}

func newCostsExportCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		projectID string
		output    string
		filters   domain.CostFilters
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a project's costs as CSV (stdout by default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := rootOpts.resolveProject(cmd, projectID)
			if err != nil {
				return err
			}

			data, err := rootOpts.store.ExportCostsCSV(cmd.Context(), project, domain.CostListParams{CostFilters: filters})
			if err != nil {
				return WrapExitError(ExitCommandError, "export failed", err)
			}

			if output == "" || output == "-" {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), data)
				return err
			}
			if err := os.WriteFile(output, []byte(data), 0o644); err != nil {
				return WrapExitError(ExitCommandError, "failed to write "+output, err)
			}
			rootOpts.formatter(cmd).VerboseLog("Wrote %s", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&projectID, "project", "p", "", "project id (default: the active project)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringVar(&filters.DateFrom, "from", "", "first invoice date, YYYY-MM-DD")
	cmd.Flags().StringVar(&filters.DateTo, "to", "", "last invoice date, YYYY-MM-DD")
	cmd.Flags().BoolVar(&filters.IncludeArchived, "include-archived", false, "include archived costs")
	return cmd
}

func newCostsImportCommand(rootOpts *RootOptions) *cobra.Command {
	var projectID string

	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Create costs from a CSV file; nothing is created if names do not resolve",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := rootOpts.resolveProject(cmd, projectID)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read "+args[0], err)
			}

			result, err := rootOpts.store.ImportCostsCSV(cmd.Context(), string(data), project)
			if err != nil {
				return WrapExitError(ExitCommandError, "import failed", err)
			}

			text := fmt.Sprintf("Imported %d costs", len(result.Created))
			missing := len(result.MissingPhases) + len(result.MissingContractors)
			if missing > 0 {
				text = fmt.Sprintf("Nothing imported. Missing phases: [%s]. Missing contractors: [%s].",
					strings.Join(result.MissingPhases, ", "), strings.Join(result.MissingContractors, ", "))
			}
			if err := rootOpts.formatter(cmd).Result(result, text); err != nil {
				return err
			}
			if missing > 0 {
				return NewExitError(ExitFailure, "unresolved names in import")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&projectID, "project", "p", "", "project id (default: the active project)")
	return cmd
}

// NewPhasesCommand groups the phase taxonomy subcommands.
func NewPhasesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "phases",
		Short: "Manage a project's phase taxonomy",
	}
	cmd.AddCommand(newPhasesImportCommand(rootOpts))
	return cmd
}

func newPhasesImportCommand(rootOpts *RootOptions) *cobra.Command {
	var projectID string

	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Upsert phases and subphases from a semicolon-separated file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := rootOpts.resolveProject(cmd, projectID)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read "+args[0], err)
			}

			result, err := rootOpts.store.ImportPhasesCSV(cmd.Context(), string(data), project)
			if err != nil {
				return WrapExitError(ExitCommandError, "import failed", err)
			}
			return rootOpts.formatter(cmd).Result(result, fmt.Sprintf("Imported %d phases and %d subphases from %d rows",
				result.MainPhases, result.Subphases, result.ValidRows))
		},
	}

	cmd.Flags().StringVarP(&projectID, "project", "p", "", "project id (default: the active project)")
	return cmd
}
