package handler

import (
	"context"
	"net/http"

	"github.com/gradnja/stroski-api/internal/store"
	"go.uber.org/zap"
)

// SyncStatus reports when the reporting mirror was last refreshed
type SyncStatus interface {
	LastSync(ctx context.Context) (string, error)
}

type HealthHandler struct {
	store     *store.Store
	reporting SyncStatus
	logger    *zap.Logger
}

// NewHealthHandler creates the health handler. reporting may be nil.
func NewHealthHandler(store *store.Store, reporting SyncStatus, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		store:     store,
		reporting: reporting,
		logger:    logger,
	}
}

// Live handles GET /health (liveness probe)
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// Ready handles GET /health/ready. The store must load its data file.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]interface{})
	allHealthy := true

	if err := h.store.Init(r.Context()); err != nil {
		h.logger.Error("Store health check failed", zap.Error(err))
		checks["store"] = map[string]interface{}{
			"status": "unhealthy",
			"error":  err.Error(),
		}
		allHealthy = false
	} else {
		checks["store"] = map[string]interface{}{
			"status":    "healthy",
			"data_file": h.store.Paths().DataFile(),
		}
	}

	if h.reporting != nil {
		last, err := h.reporting.LastSync(r.Context())
		if err != nil {
			h.logger.Error("Reporting health check failed", zap.Error(err))
			checks["reporting"] = map[string]interface{}{
				"status": "unhealthy",
				"error":  err.Error(),
			}
			allHealthy = false
		} else {
			checks["reporting"] = map[string]interface{}{
				"status":    "healthy",
				"last_sync": last,
			}
		}
	}

	status := http.StatusOK
	body := map[string]interface{}{"status": "healthy", "checks": checks}
	if !allHealthy {
		status = http.StatusServiceUnavailable
		body["status"] = "unhealthy"
	}
	respondJSON(w, status, body)
}
