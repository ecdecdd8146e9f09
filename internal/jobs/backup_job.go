package jobs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gradnja/stroski-api/internal/storage"
	"go.uber.org/zap"
)

// BackupJobName is the name of the scheduled backup job
const BackupJobName = "backup"

// DefaultBackupTimeout bounds one backup run, upload included
const DefaultBackupTimeout = 30 * time.Minute

const (
	backupKeyPrefix = "stroski-"
	backupKeyLayout = "20060102-150405"
)

// BackupExporter writes a backup archive of the store to a file.
// This interface lets the job run without importing the store package.
type BackupExporter interface {
	ExportBackup(ctx context.Context, targetPath string) (string, error)
}

// BackupJob exports the store, uploads the archive to backup storage and
// prunes copies beyond the retention count.
type BackupJob struct {
	exporter BackupExporter
	storage  storage.Storage
	logger   *zap.Logger
	retain   int
	now      func() time.Time
}

// NewBackupJob creates a backup job. A retain of zero keeps every copy.
func NewBackupJob(exporter BackupExporter, store storage.Storage, logger *zap.Logger, retain int) *BackupJob {
	return &BackupJob{
		exporter: exporter,
		storage:  store,
		logger:   logger,
		retain:   retain,
		now:      time.Now,
	}
}

// Run creates one backup copy. It returns the storage key of the new archive.
func (j *BackupJob) Run(ctx context.Context) (string, error) {
	start := time.Now()

	tmpDir, err := os.MkdirTemp("", "stroski-backup-")
	if err != nil {
		return "", fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	key := backupKeyPrefix + j.now().UTC().Format(backupKeyLayout) + ".zip"
	archive, err := j.exporter.ExportBackup(ctx, filepath.Join(tmpDir, key))
	if err != nil {
		return "", fmt.Errorf("failed to export backup: %w", err)
	}

	f, err := os.Open(archive)
	if err != nil {
		return "", fmt.Errorf("failed to open backup archive: %w", err)
	}
	defer f.Close()

	size, err := j.storage.Upload(ctx, key, "application/zip", f)
	if err != nil {
		return "", fmt.Errorf("failed to upload backup: %w", err)
	}

	pruned, err := j.prune(ctx)
	if err != nil {
		// The new copy is stored; a failed prune is retried on the next run
		j.logger.Warn("failed to prune old backups", zap.Error(err))
	}

	j.logger.Info("backup completed",
		zap.String("key", key),
		zap.Int64("size", size),
		zap.Int("pruned", pruned),
		zap.Duration("duration", time.Since(start)))

	return key, nil
}

// prune deletes the oldest backup copies so that at most retain remain.
// Keys embed a sortable UTC timestamp.
func (j *BackupJob) prune(ctx context.Context) (int, error) {
	if j.retain <= 0 {
		return 0, nil
	}

	objects, err := j.storage.List(ctx, backupKeyPrefix)
	if err != nil {
		return 0, err
	}

	var keys []string
	for _, obj := range objects {
		if strings.HasSuffix(obj.Key, ".zip") && !strings.Contains(obj.Key, "/") {
			keys = append(keys, obj.Key)
		}
	}
	if len(keys) <= j.retain {
		return 0, nil
	}
	sort.Strings(keys)

	pruned := 0
	for _, key := range keys[:len(keys)-j.retain] {
		if err := j.storage.Delete(ctx, key); err != nil {
			return pruned, err
		}
		pruned++
	}
	return pruned, nil
}

// RegisterBackupJob registers the backup job with the scheduler.
// The cronExpr should be a six-field cron expression (e.g., "0 30 2 * * *" for 02:30 every day).
func RegisterBackupJob(scheduler *Scheduler, job *BackupJob, cronExpr string) error {
	return scheduler.AddJob(BackupJobName, cronExpr, DefaultBackupTimeout, func(ctx context.Context) error {
		_, err := job.Run(ctx)
		return err
	})
}
