package cli

import (
	"fmt"

	"github.com/gradnja/stroski-api/internal/database"
	"github.com/gradnja/stroski-api/internal/reporting"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// NewReportCommand groups the reporting mirror subcommands.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Maintain and query the SQLite reporting mirror",
	}
	cmd.AddCommand(newReportSyncCommand(rootOpts))
	cmd.AddCommand(newReportVersionCommand(rootOpts))
	cmd.AddCommand(newReportMonthlyCommand(rootOpts))
	return cmd
}

func newReportSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Rebuild the reporting mirror from the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mirror, closeDB, err := rootOpts.openMirror()
			if err != nil {
				return err
			}
			defer closeDB()

			if err := mirror.SyncFrom(cmd.Context(), rootOpts.store); err != nil {
				return WrapExitError(ExitCommandError, "sync failed", err)
			}
			last, err := mirror.LastSync(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read sync status", err)
			}
			return rootOpts.formatter(cmd).Result(map[string]string{"last_sync": last}, "Reporting mirror synced at "+last)
		},
	}
}

func newReportVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the reporting schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.NewDatabase(rootOpts.cfg.Reporting.SQLitePath)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open reporting database", err)
			}
			defer closeGorm(db)

			version, err := database.Version(db)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read schema version", err)
			}
			return rootOpts.formatter(cmd).Result(map[string]int64{"version": version}, fmt.Sprintf("Schema version %d", version))
		},
	}
}

func newReportMonthlyCommand(rootOpts *RootOptions) *cobra.Command {
	var projectID string

	cmd := &cobra.Command{
		Use:   "monthly",
		Short: "Print a project's cost totals per invoice month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := rootOpts.resolveProject(cmd, projectID)
			if err != nil {
				return err
			}
			mirror, closeDB, err := rootOpts.openMirror()
			if err != nil {
				return err
			}
			defer closeDB()

			totals, err := mirror.MonthlyTotals(cmd.Context(), project)
			if err != nil {
				return WrapExitError(ExitCommandError, "query failed", err)
			}

			f := rootOpts.formatter(cmd)
			if f.Format == "json" {
				return f.Result(totals, "")
			}
			for _, m := range totals {
				fmt.Fprintf(f.Writer, "%s\t%.2f\t%d\n", m.Month, m.Total, m.Count)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&projectID, "project", "p", "", "project id (default: the active project)")
	return cmd
}

// openMirror opens and migrates the configured mirror database
func (o *RootOptions) openMirror() (*reporting.Mirror, func(), error) {
	db, err := database.NewDatabase(o.cfg.Reporting.SQLitePath)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open reporting database", err)
	}
	if err := database.Migrate(db, o.log); err != nil {
		closeGorm(db)
		return nil, nil, WrapExitError(ExitCommandError, "failed to migrate reporting database", err)
	}
	return reporting.NewMirror(db, o.log), func() { closeGorm(db) }, nil
}

func closeGorm(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
