package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gradnja/stroski-api/internal/jobs"
	"github.com/gradnja/stroski-api/internal/storage"
	"github.com/spf13/cobra"
)

// NewBackupCommand groups the backup subcommands.
func NewBackupCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create, store and restore zip backups of the data root",
	}

	cmd.AddCommand(newBackupExportCommand(rootOpts))
	cmd.AddCommand(newBackupRestoreCommand(rootOpts))
	cmd.AddCommand(newBackupPushCommand(rootOpts))
	cmd.AddCommand(newBackupListCommand(rootOpts))
	cmd.AddCommand(newBackupPullCommand(rootOpts))

	return cmd
}

func newBackupExportCommand(rootOpts *RootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a backup archive to a local file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = fmt.Sprintf("stroski-%s.zip", time.Now().UTC().Format("20060102-150405"))
			}
			path, err := rootOpts.store.ExportBackup(cmd.Context(), output)
			if err != nil {
				return WrapExitError(ExitCommandError, "backup failed", err)
			}
			return rootOpts.formatter(cmd).Result(map[string]string{"path": path}, "Backup written to "+path)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "archive path (default stroski-<timestamp>.zip)")
	return cmd
}

func newBackupRestoreCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <archive.zip>",
		Short: "Replace the data root with the contents of a backup archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rootOpts.store.ImportBackup(cmd.Context(), args[0]); err != nil {
				return WrapExitError(ExitCommandError, "restore failed", err)
			}
			return rootOpts.formatter(cmd).Result(map[string]string{"restored": args[0]}, "Restored "+args[0])
		},
	}
}

func newBackupPushCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Run the scheduled backup once: export, upload to backup storage, prune",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backups, err := rootOpts.backupStorage()
			if err != nil {
				return err
			}
			job := jobs.NewBackupJob(rootOpts.store, backups, rootOpts.log, rootOpts.cfg.Backup.Retain)
			key, err := job.Run(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "backup failed", err)
			}
			return rootOpts.formatter(cmd).Result(map[string]string{"key": key}, "Stored backup "+key)
		},
	}
}

func newBackupListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List backup copies in backup storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backups, err := rootOpts.backupStorage()
			if err != nil {
				return err
			}
			objects, err := backups.List(cmd.Context(), "")
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to list backups", err)
			}

			f := rootOpts.formatter(cmd)
			if f.Format == "json" {
				return f.Result(objects, "")
			}
			for _, obj := range objects {
				fmt.Fprintf(f.Writer, "%s\t%d\t%s\n", obj.Key, obj.Size, obj.ModTime.UTC().Format(time.RFC3339))
			}
			return nil
		},
	}
}

func newBackupPullCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pull <key>",
		Short: "Download a backup copy from backup storage and restore it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backups, err := rootOpts.backupStorage()
			if err != nil {
				return err
			}

			rc, err := backups.Download(cmd.Context(), args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to download backup", err)
			}
			defer rc.Close()

			tmpDir, err := os.MkdirTemp("", "stroski-pull-")
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to create temp directory", err)
			}
			defer os.RemoveAll(tmpDir)

			archive := filepath.Join(tmpDir, "backup.zip")
			f, err := os.Create(archive)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to create temp file", err)
			}
			if _, err := io.Copy(f, rc); err != nil {
				f.Close()
				return WrapExitError(ExitCommandError, "failed to download backup", err)
			}
			if err := f.Close(); err != nil {
				return WrapExitError(ExitCommandError, "failed to write temp file", err)
			}

			if err := rootOpts.store.ImportBackup(cmd.Context(), archive); err != nil {
				return WrapExitError(ExitCommandError, "restore failed", err)
			}
			return rootOpts.formatter(cmd).Result(map[string]string{"restored": args[0]}, "Restored "+args[0])
		},
	}
}

func (o *RootOptions) backupStorage() (storage.Storage, error) {
	backups, err := storage.NewBackupStorage(&o.cfg.Backup, o.cfg.Data.Root, o.log)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open backup storage", err)
	}
	return backups, nil
}
