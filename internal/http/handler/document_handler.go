package handler

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gradnja/stroski-api/internal/domain"
	"github.com/gradnja/stroski-api/internal/store"
	"go.uber.org/zap"
)

type DocumentHandler struct {
	store       *store.Store
	maxUploadMB int64
	logger      *zap.Logger
}

func NewDocumentHandler(store *store.Store, maxUploadMB int64, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{
		store:       store,
		maxUploadMB: maxUploadMB,
		logger:      logger,
	}
}

// List handles GET /documents?projectId=
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	docs, err := h.store.ListDocuments(r.Context(), r.URL.Query().Get("projectId"))
	if err != nil {
		respondStoreError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, docs)
}

// Attach handles POST /documents with multipart fields file, projectId,
// costId (optional) and mime (optional)
func (h *DocumentHandler) Attach(w http.ResponseWriter, r *http.Request) {
	if !parseMultipart(w, r, h.maxUploadMB<<20) {
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid file upload: file field is required")
		return
	}
	defer file.Close()

	req := domain.AttachDocumentRequest{
		ProjectID:    r.FormValue("projectId"),
		CostID:       r.FormValue("costId"),
		OriginalName: header.Filename,
		Mime:         formMime(r, header.Header.Get("Content-Type")),
	}
	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	doc, err := h.store.AttachDocument(r.Context(), req, file)
	if err != nil {
		respondStoreError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, doc)
}

// GetByID handles GET /documents/{id}
func (h *DocumentHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	doc, err := h.store.GetDocument(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, h.logger, err)
		return
	}
	if doc == nil {
		respondWithError(w, http.StatusNotFound, "Dokument ne obstaja")
		return
	}
	respondJSON(w, http.StatusOK, doc)
}

// Download handles GET /documents/{id}/download
func (h *DocumentHandler) Download(w http.ResponseWriter, r *http.Request) {
	doc, reader, err := h.store.OpenDocument(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, h.logger, err)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Disposition", attachmentDisposition(doc.OriginalName))
	w.Header().Set("Content-Type", doc.Mime)
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, reader); err != nil {
		h.logger.Warn("document download interrupted", zap.String("document_id", doc.ID), zap.Error(err))
	}
}

// Update handles PUT /documents/{id}
func (h *DocumentHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateDocumentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	doc, err := h.store.UpdateDocument(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		respondStoreError(w, h.logger, err)
		return
	}
	if doc == nil {
		respondWithError(w, http.StatusNotFound, "Dokument ne obstaja")
		return
	}
	respondJSON(w, http.StatusOK, doc)
}

// Replace handles PUT /documents/{id}/file: the stored file is swapped, the id is kept
func (h *DocumentHandler) Replace(w http.ResponseWriter, r *http.Request) {
	if !parseMultipart(w, r, h.maxUploadMB<<20) {
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid file upload: file field is required")
		return
	}
	defer file.Close()

	mime := formMime(r, header.Header.Get("Content-Type"))
	doc, err := h.store.ReplaceDocument(r.Context(), chi.URLParam(r, "id"), header.Filename, mime, file)
	if err != nil {
		respondStoreError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, doc)
}

// Delete handles DELETE /documents/{id}
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteDocument(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondStoreError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// formMime prefers an explicit "mime" form value over the part's content
// type. The generic octet-stream type is treated as unknown.
func formMime(r *http.Request, partType string) string {
	if m := r.FormValue("mime"); m != "" {
		return m
	}
	if partType == "application/octet-stream" {
		return ""
	}
	return partType
}
