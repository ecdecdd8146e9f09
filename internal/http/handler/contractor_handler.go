package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gradnja/stroski-api/internal/domain"
	"github.com/gradnja/stroski-api/internal/store"
	"go.uber.org/zap"
)

type ContractorHandler struct {
	store  *store.Store
	logger *zap.Logger
}

func NewContractorHandler(store *store.Store, logger *zap.Logger) *ContractorHandler {
	return &ContractorHandler{
		store:  store,
		logger: logger,
	}
}

// List handles GET /contractors?projectId=&includeArchived=
func (h *ContractorHandler) List(w http.ResponseWriter, r *http.Request) {
	contractors, err := h.store.ListContractors(r.Context(), domain.ContractorFilters{
		ProjectID:       r.URL.Query().Get("projectId"),
		IncludeArchived: queryBool(r, "includeArchived"),
	})
	if err != nil {
		respondStoreError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, contractors)
}

// Create handles POST /contractors
func (h *ContractorHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateContractorRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	contractor, err := h.store.CreateContractor(r.Context(), req)
	if err != nil {
		respondStoreError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, contractor)
}

// Update handles PUT /contractors/{id}
func (h *ContractorHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateContractorRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	contractor, err := h.store.UpdateContractor(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		respondStoreError(w, h.logger, err)
		return
	}
	if contractor == nil {
		respondWithError(w, http.StatusNotFound, "Izvajalec ne obstaja")
		return
	}
	respondJSON(w, http.StatusOK, contractor)
}

// Delete handles DELETE /contractors/{id}
func (h *ContractorHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteContractor(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondStoreError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Archive handles PUT /contractors/{id}/archive
func (h *ContractorHandler) Archive(w http.ResponseWriter, r *http.Request) {
	var req domain.ArchiveRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	contractor, err := h.store.ArchiveContractor(r.Context(), chi.URLParam(r, "id"), req.Archived)
	if err != nil {
		respondStoreError(w, h.logger, err)
		return
	}
	if contractor == nil {
		respondWithError(w, http.StatusNotFound, "Izvajalec ne obstaja")
		return
	}
	respondJSON(w, http.StatusOK, contractor)
}
