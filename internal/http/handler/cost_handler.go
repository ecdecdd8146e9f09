package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gradnja/stroski-api/internal/domain"
	"github.com/gradnja/stroski-api/internal/store"
	"go.uber.org/zap"
)

const maxPageSize = 500

type CostHandler struct {
	store       *store.Store
	maxUploadMB int64
	logger      *zap.Logger
}

func NewCostHandler(store *store.Store, maxUploadMB int64, logger *zap.Logger) *CostHandler {
	return &CostHandler{
		store:       store,
		maxUploadMB: maxUploadMB,
		logger:      logger,
	}
}

// parseCostFilters reads the listing filters shared by List and ExportCSV
func parseCostFilters(r *http.Request) domain.CostFilters {
	q := r.URL.Query()
	return domain.CostFilters{
		ProjectID:       q.Get("projectId"),
		DateFrom:        q.Get("dateFrom"),
		DateTo:          q.Get("dateTo"),
		PhaseID:         q.Get("phaseId"),
		ContractorID:    q.Get("contractorId"),
		IncludeArchived: queryBool(r, "includeArchived"),
		Search:          q.Get("search"),
	}
}

func parseCostSort(r *http.Request) *domain.CostSort {
	sortBy := r.URL.Query().Get("sortBy")
	sortOrder := r.URL.Query().Get("sortOrder")
	if sortBy == "" && sortOrder == "" {
		return nil
	}
	sort := domain.DefaultCostSort()
	if sortBy != "" {
		sort.Field = sortBy
	}
	if sortOrder != "" {
		sort.Direction = domain.ParseSortDirection(sortOrder)
	}
	return &sort
}

// List handles GET /costs. Without pageSize every match is returned.
func (h *CostHandler) List(w http.ResponseWriter, r *http.Request) {
	params := domain.CostListParams{
		CostFilters: parseCostFilters(r),
		Sort:        parseCostSort(r),
		Page:        queryInt(r, "page"),
		PageSize:    queryInt(r, "pageSize"),
	}
	if params.PageSize < 0 {
		params.PageSize = 0
	}
	if params.PageSize > maxPageSize {
		params.PageSize = maxPageSize
	}

	result, err := h.store.ListCosts(r.Context(), params)
	if err != nil {
		respondStoreError(w, h.logger, err)
		return
	}

	w.Header().Set("X-Total-Count", strconv.Itoa(result.Total))
	respondJSON(w, http.StatusOK, result)
}

// Create handles POST /costs
func (h *CostHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CostInput
	if !decodeJSON(w, r, &req) {
		return
	}

	cost, err := h.store.CreateCost(r.Context(), req)
	if err != nil {
		respondStoreError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, cost)
}

// BulkCreate handles POST /costs/bulk. Either every entry is created or none.
func (h *CostHandler) BulkCreate(w http.ResponseWriter, r *http.Request) {
	var entries []domain.CostInput
	if err := json.NewDecoder(r.Body).Decode(&entries); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	}
	for i := range entries {
		if err := validate.Struct(&entries[i]); err != nil {
			respondValidationError(w, err)
			return
		}
	}

	created, err := h.store.BulkCreateCosts(r.Context(), entries)
	if err != nil {
		respondStoreError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

// Update handles PUT /costs/{id}
func (h *CostHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateCostRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	cost, err := h.store.UpdateCost(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		respondStoreError(w, h.logger, err)
		return
	}
	if cost == nil {
		respondWithError(w, http.StatusNotFound, "Strošek ne obstaja")
		return
	}
	respondJSON(w, http.StatusOK, cost)
}

// Delete handles DELETE /costs/{id}. The first delete archives the cost,
// deleting an archived cost removes it.
func (h *CostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteCost(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondStoreError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Archive handles PUT /costs/{id}/archive
func (h *CostHandler) Archive(w http.ResponseWriter, r *http.Request) {
	var req domain.ArchiveRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	cost, err := h.store.SetCostArchived(r.Context(), chi.URLParam(r, "id"), req.Archived)
	if err != nil {
		respondStoreError(w, h.logger, err)
		return
	}
	if cost == nil {
		respondWithError(w, http.StatusNotFound, "Strošek ne obstaja")
		return
	}
	respondJSON(w, http.StatusOK, cost)
}

// Duplicate handles POST /costs/{id}/duplicate
func (h *CostHandler) Duplicate(w http.ResponseWriter, r *http.Request) {
	cost, err := h.store.DuplicateCost(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, h.logger, err)
		return
	}
	if cost == nil {
		respondWithError(w, http.StatusNotFound, "Strošek ne obstaja")
		return
	}
	respondJSON(w, http.StatusCreated, cost)
}

// PlanVsActual handles GET /costs/plan-vs-actual?projectId=
func (h *CostHandler) PlanVsActual(w http.ResponseWriter, r *http.Request) {
	rows, err := h.store.PhasePlanVsActual(r.Context(), r.URL.Query().Get("projectId"))
	if err != nil {
		respondStoreError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

// AttachPdf handles POST /costs/{id}/pdf with a multipart "file" field
func (h *CostHandler) AttachPdf(w http.ResponseWriter, r *http.Request) {
	if !parseMultipart(w, r, h.maxUploadMB<<20) {
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid file upload: file field is required")
		return
	}
	defer file.Close()

	att, err := h.store.AttachPdfToCost(r.Context(), chi.URLParam(r, "id"), header.Filename, file)
	if err != nil {
		respondStoreError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, att)
}

// ExportCSV handles GET /costs/export. The project defaults to the active one.
func (h *CostHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.resolveProject(w, r)
	if !ok {
		return
	}

	params := domain.CostListParams{
		CostFilters: parseCostFilters(r),
		Sort:        parseCostSort(r),
	}
	data, err := h.store.ExportCostsCSV(r.Context(), projectID, params)
	if err != nil {
		respondStoreError(w, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", attachmentDisposition("stroski.csv"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(data))
}

// ImportCSV handles POST /costs/import. Nothing is created when a phase or
// contractor name cannot be resolved; the missing names are returned instead.
func (h *CostHandler) ImportCSV(w http.ResponseWriter, r *http.Request) {
	data, ok := readCSVBody(w, r, h.maxUploadMB<<20)
	if !ok {
		return
	}

	projectID, ok := h.resolveProject(w, r)
	if !ok {
		return
	}

	result, err := h.store.ImportCostsCSV(r.Context(), data, projectID)
	if err != nil {
		respondStoreError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// resolveProject returns the projectId query value or the active project
func (h *CostHandler) resolveProject(w http.ResponseWriter, r *http.Request) (string, bool) {
	if projectID := r.URL.Query().Get("projectId"); projectID != "" {
		return projectID, true
	}
	active, err := h.store.GetActiveProject(r.Context())
	if err != nil {
		respondStoreError(w, h.logger, err)
		return "", false
	}
	if active == nil {
		respondWithError(w, http.StatusBadRequest, "Projekt je obvezen")
		return "", false
	}
	return *active, true
}
