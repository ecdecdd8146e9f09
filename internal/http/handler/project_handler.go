package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gradnja/stroski-api/internal/domain"
	"github.com/gradnja/stroski-api/internal/store"
	"go.uber.org/zap"
)

type ProjectHandler struct {
	store  *store.Store
	logger *zap.Logger
}

func NewProjectHandler(store *store.Store, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{
		store:  store,
		logger: logger,
	}
}

// List handles GET /projects
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	projects, err := h.store.ListProjects(r.Context())
	if err != nil {
		respondStoreError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, projects)
}

// Create handles POST /projects
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	project, err := h.store.CreateProject(r.Context(), req)
	if err != nil {
		respondStoreError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, project)
}

// Update handles PUT /projects/{id}
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req domain.UpdateProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	project, err := h.store.UpdateProject(r.Context(), id, req)
	if err != nil {
		respondStoreError(w, h.logger, err)
		return
	}
	if project == nil {
		respondWithError(w, http.StatusNotFound, "Projekt ne obstaja")
		return
	}

	respondJSON(w, http.StatusOK, project)
}

// Delete handles DELETE /projects/{id}. Projects are archived, not removed.
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteProject(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondStoreError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetActive handles GET /projects/active
func (h *ProjectHandler) GetActive(w http.ResponseWriter, r *http.Request) {
	active, err := h.store.GetActiveProject(r.Context())
	if err != nil {
		respondStoreError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, domain.ActiveProjectResponse{ActiveProjectID: active})
}

// SetActive handles PUT /projects/active. A missing or archived project
// leaves the selection unchanged and answers with a null id.
func (h *ProjectHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	var req domain.SetActiveProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	active, err := h.store.SetActiveProject(r.Context(), req.ID)
	if err != nil {
		respondStoreError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, domain.ActiveProjectResponse{ActiveProjectID: active})
}
