package handler

import (
	"net/http"

	"github.com/gradnja/stroski-api/internal/reporting"
	"go.uber.org/zap"
)

// ReportHandler answers aggregate queries from the SQLite reporting mirror
type ReportHandler struct {
	mirror    *reporting.Mirror
	refresher reporting.Refresher
	logger    *zap.Logger
}

// NewReportHandler creates the report handler. A nil mirror disables every
// report endpoint.
func NewReportHandler(mirror *reporting.Mirror, source reporting.SnapshotSource, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{
		mirror:    mirror,
		refresher: reporting.Refresher{Mirror: mirror, Source: source},
		logger:    logger,
	}
}

func (h *ReportHandler) enabled(w http.ResponseWriter) bool {
	if h.mirror == nil {
		respondWithError(w, http.StatusServiceUnavailable, "Reporting is disabled")
		return false
	}
	return true
}

func requireProjectID(w http.ResponseWriter, r *http.Request) (string, bool) {
	projectID := r.URL.Query().Get("projectId")
	if projectID == "" {
		respondWithError(w, http.StatusBadRequest, "Projekt je obvezen")
		return "", false
	}
	return projectID, true
}

// Monthly handles GET /reports/monthly?projectId=
func (h *ReportHandler) Monthly(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w) {
		return
	}
	projectID, ok := requireProjectID(w, r)
	if !ok {
		return
	}

	totals, err := h.mirror.MonthlyTotals(r.Context(), projectID)
	if err != nil {
		h.logger.Error("failed to query monthly totals", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to query report")
		return
	}
	respondJSON(w, http.StatusOK, totals)
}

// Contractors handles GET /reports/contractors?projectId=
func (h *ReportHandler) Contractors(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w) {
		return
	}
	projectID, ok := requireProjectID(w, r)
	if !ok {
		return
	}

	totals, err := h.mirror.ContractorTotals(r.Context(), projectID)
	if err != nil {
		h.logger.Error("failed to query contractor totals", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to query report")
		return
	}
	respondJSON(w, http.StatusOK, totals)
}

// Sync handles POST /reports/sync and rebuilds the mirror from the store
func (h *ReportHandler) Sync(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w) {
		return
	}
	if err := h.refresher.Sync(r.Context()); err != nil {
		respondStoreError(w, h.logger, err)
		return
	}

	last, err := h.mirror.LastSync(r.Context())
	if err != nil {
		h.logger.Error("failed to read sync status", zap.Error(err))
	}
	respondJSON(w, http.StatusOK, map[string]string{"last_sync": last})
}
