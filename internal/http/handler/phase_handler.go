package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gradnja/stroski-api/internal/domain"
	"github.com/gradnja/stroski-api/internal/store"
	"go.uber.org/zap"
)

// PhaseHandler serves phases and their subphases
type PhaseHandler struct {
	store       *store.Store
	maxUploadMB int64
	logger      *zap.Logger
}

func NewPhaseHandler(store *store.Store, maxUploadMB int64, logger *zap.Logger) *PhaseHandler {
	return &PhaseHandler{
		store:       store,
		maxUploadMB: maxUploadMB,
		logger:      logger,
	}
}

// List handles GET /phases?projectId=
func (h *PhaseHandler) List(w http.ResponseWriter, r *http.Request) {
	phases, err := h.store.ListPhases(r.Context(), r.URL.Query().Get("projectId"))
	if err != nil {
		respondStoreError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, phases)
}

// Create handles POST /phases
func (h *PhaseHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreatePhaseRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	phase, err := h.store.CreatePhase(r.Context(), req)
	if err != nil {
		respondStoreError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, phase)
}

// Update handles PUT /phases/{id}
func (h *PhaseHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdatePhaseRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	phase, err := h.store.UpdatePhase(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		respondStoreError(w, h.logger, err)
		return
	}
	if phase == nil {
		respondWithError(w, http.StatusNotFound, "Faza ne obstaja")
		return
	}
	respondJSON(w, http.StatusOK, phase)
}

// Delete handles DELETE /phases/{id}
func (h *PhaseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeletePhase(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondStoreError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reorder handles PUT /phases/reorder
func (h *PhaseHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	var req domain.ReorderPhasesRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	phases, err := h.store.ReorderPhases(r.Context(), req.Order)
	if err != nil {
		respondStoreError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, phases)
}

// ImportCSV handles POST /phases/import?projectId=. Without a project id the
// active project is used.
func (h *PhaseHandler) ImportCSV(w http.ResponseWriter, r *http.Request) {
	data, ok := readCSVBody(w, r, h.maxUploadMB<<20)
	if !ok {
		return
	}

	projectID := r.URL.Query().Get("projectId")
	if projectID == "" {
		active, err := h.store.GetActiveProject(r.Context())
		if err != nil {
			respondStoreError(w, h.logger, err)
			return
		}
		if active != nil {
			projectID = *active
		}
	}

	result, err := h.store.ImportPhasesCSV(r.Context(), data, projectID)
	if err != nil {
		respondStoreError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// ListSubphases handles GET /phases/{id}/subphases
func (h *PhaseHandler) ListSubphases(w http.ResponseWriter, r *http.Request) {
	subphases, err := h.store.ListSubphases(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, subphases)
}

// CreateSubphase handles POST /phases/{id}/subphases
func (h *PhaseHandler) CreateSubphase(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateSubphaseRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sub, err := h.store.CreateSubphase(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		respondStoreError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, sub)
}

// UpdateSubphase handles PUT /subphases/{id}
func (h *PhaseHandler) UpdateSubphase(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateSubphaseRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sub, err := h.store.UpdateSubphase(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		respondStoreError(w, h.logger, err)
		return
	}
	if sub == nil {
		respondWithError(w, http.StatusNotFound, "Podfaza ne obstaja")
		return
	}
	respondJSON(w, http.StatusOK, sub)
}

// DeleteSubphase handles DELETE /subphases/{id}
func (h *PhaseHandler) DeleteSubphase(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteSubphase(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondStoreError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
