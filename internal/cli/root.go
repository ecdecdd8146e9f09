package cli

import (
	"fmt"
	"path/filepath"

	"github.com/gradnja/stroski-api/internal/config"
	"github.com/gradnja/stroski-api/internal/logger"
	"github.com/gradnja/stroski-api/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DataRoot string
	Verbose  bool
	Format   string // "json" | "text"

	cfg   *config.Config
	log   *zap.Logger
	store *store.Store
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command of the admin CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "stroskictl",
		Short: "Offline administration of the construction cost store",
		Long: `Administer a construction cost data root without the API server:
backups and restores, cost and phase CSV files, and the reporting mirror.

Do not run write commands while the API server uses the same data root.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.log != nil {
				_ = opts.log.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.DataRoot, "data-root", "", "data root (defaults to the configured one)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewBackupCommand(opts))
	cmd.AddCommand(NewCostsCommand(opts))
	cmd.AddCommand(NewPhasesCommand(opts))
	cmd.AddCommand(NewReportCommand(opts))

	return cmd
}

// setup loads configuration and opens the store once per invocation
func (o *RootOptions) setup() error {
	cfg, err := config.Load()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if o.DataRoot != "" {
		if cfg.Reporting.SQLitePath == filepath.Join(cfg.Data.Root, config.ReportingFileName) {
			cfg.Reporting.SQLitePath = filepath.Join(o.DataRoot, config.ReportingFileName)
		}
		cfg.Data.Root = o.DataRoot
	}
	o.cfg = cfg

	level := "warn"
	if o.Verbose {
		level = "debug"
	}
	log, err := logger.NewLogger(&config.LoggingConfig{Level: level, Format: cfg.Logging.Format}, &cfg.App)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create logger", err)
	}
	o.log = logger.WithDataRoot(log, cfg.Data.Root)

	o.store = store.New(cfg.Data.Root, o.log, store.WithLocale(language.Make(cfg.App.Locale)))
	return nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// resolveProject returns the flag value or the store's active project
func (o *RootOptions) resolveProject(cmd *cobra.Command, projectID string) (string, error) {
	if projectID != "" {
		return projectID, nil
	}
	active, err := o.store.GetActiveProject(cmd.Context())
	if err != nil {
		return "", WrapExitError(ExitCommandError, "failed to read active project", err)
	}
	if active == nil {
		return "", NewExitError(ExitCommandError, "no --project given and no active project")
	}
	return *active, nil
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
