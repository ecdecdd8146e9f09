package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gradnja/stroski-api/internal/jobs"
	"github.com/gradnja/stroski-api/internal/store"
	"go.uber.org/zap"
)

// JobRunner triggers a registered background job immediately
type JobRunner interface {
	RunNow(name string) error
}

type BackupHandler struct {
	store       *store.Store
	jobs        JobRunner
	jobName     string
	maxUploadMB int64
	logger      *zap.Logger
}

// NewBackupHandler creates the backup handler. jobs may be nil when scheduled
// backups are disabled.
func NewBackupHandler(store *store.Store, jobs JobRunner, jobName string, maxUploadMB int64, logger *zap.Logger) *BackupHandler {
	return &BackupHandler{
		store:       store,
		jobs:        jobs,
		jobName:     jobName,
		maxUploadMB: maxUploadMB,
		logger:      logger,
	}
}

// Export handles GET /backup/export and streams a zip archive of the data root
func (h *BackupHandler) Export(w http.ResponseWriter, r *http.Request) {
	tmpDir, err := os.MkdirTemp("", "stroski-export-")
	if err != nil {
		h.logger.Error("failed to create temp directory", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to create backup")
		return
	}
	defer os.RemoveAll(tmpDir)

	name := fmt.Sprintf("stroski-%s.zip", time.Now().UTC().Format("20060102-150405"))
	archive, err := h.store.ExportBackup(r.Context(), filepath.Join(tmpDir, name))
	if err != nil {
		respondStoreError(w, h.logger, err)
		return
	}

	f, err := os.Open(archive)
	if err != nil {
		h.logger.Error("failed to open backup archive", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to create backup")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", attachmentDisposition(name))
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, f)
}

// Import handles POST /backup/import with the archive in the multipart "file" field
func (h *BackupHandler) Import(w http.ResponseWriter, r *http.Request) {
	if !parseMultipart(w, r, h.maxUploadMB<<20) {
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid file upload: file field is required")
		return
	}
	defer file.Close()

	tmp, err := os.CreateTemp("", "stroski-restore-*.zip")
	if err != nil {
		h.logger.Error("failed to create temp file", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to restore backup")
		return
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		respondWithError(w, http.StatusBadRequest, "Failed to read uploaded file")
		return
	}
	if err := tmp.Close(); err != nil {
		h.logger.Error("failed to write temp file", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to restore backup")
		return
	}

	if err := h.store.ImportBackup(r.Context(), tmp.Name()); err != nil {
		respondStoreError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"restored": true})
}

// RunScheduled handles POST /backup/run. The scheduled backup job runs once
// and the request waits for its result.
func (h *BackupHandler) RunScheduled(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		respondWithError(w, http.StatusServiceUnavailable, "Scheduled backups are disabled")
		return
	}
	if err := h.jobs.RunNow(h.jobName); err != nil {
		if errors.Is(err, jobs.ErrJobRunning) {
			respondWithError(w, http.StatusConflict, "Backup job is already running")
			return
		}
		h.logger.Error("failed to run backup job", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to run backup job")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"job": h.jobName, "status": "done"})
}
