package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gradnja/stroski-api/internal/domain"
	"go.uber.org/zap"
)

// storedFileName keeps the naming scheme of files already present in
// existing uploads directories, including the surrounding spaces.
func (s *Store) storedFileName(originalName string) string {
	return fmt.Sprintf("%d -%s ", s.now().UnixMilli(), originalName)
}

// sanitizeName drops any directory part a client sent along with the file name
func sanitizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	base := path.Base(strings.TrimSpace(name))
	if base == "." || base == "/" {
		return ""
	}
	return base
}

// saveUpload copies r into uploads under key and returns the absolute path and size
func (s *Store) saveUpload(ctx context.Context, key string, contentType string, r io.Reader) (string, int64, error) {
	size, err := s.uploads.Upload(ctx, key, contentType, r)
	if err != nil {
		s.logger.Error("Failed to store uploaded file",
			zap.String("key", key),
			zap.Error(err),
		)
		return "", 0, fmt.Errorf("failed to store file: %w", err)
	}
	return s.uploads.FullPath(key), size, nil
}

// removeStoredFile deletes an attachment file. Files outside the uploads
// directory (legacy absolute paths) are removed directly.
func (s *Store) removeStoredFile(ctx context.Context, storedPath string) {
	if storedPath == "" {
		return
	}
	var err error
	if rel, ok := s.uploadsKey(storedPath); ok {
		err = s.uploads.Delete(ctx, rel)
	} else if err = os.Remove(storedPath); os.IsNotExist(err) {
		err = nil
	}
	if err != nil {
		s.logger.Warn("Failed to remove stored file",
			zap.String("path", storedPath),
			zap.Error(err),
		)
	}
}

// uploadsKey converts an absolute stored path into an uploads storage key
func (s *Store) uploadsKey(storedPath string) (string, bool) {
	rel, err := filepath.Rel(s.uploads.BasePath(), filepath.Clean(storedPath))
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// AttachPdfToCost copies an invoice PDF into the project's uploads folder and
// links it to the cost, replacing any previous attachment reference.
func (s *Store) AttachPdfToCost(ctx context.Context, costID, originalName string, r io.Reader) (*domain.PdfAttachment, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}

	name := sanitizeName(originalName)
	if name == "" {
		return nil, domain.NewValidationError("Naziv datoteke je obvezen")
	}

	var attachment domain.PdfAttachment
	err := s.serialize(func() error {
		cost, ok := findCost(s.state, costID)
		if !ok {
			return &domain.NotFoundError{Reason: "Strošek ne obstaja"}
		}

		storedName := s.storedFileName(name)
		storedPath, _, err := s.saveUpload(ctx, cost.ProjectID+"/"+storedName, domain.DefaultDocumentMime, r)
		if err != nil {
			return err
		}

		attachment = domain.PdfAttachment{
			FileName:     storedName,
			StoredPath:   storedPath,
			OriginalName: name,
		}
		ts := s.timestamp()
		return s.mutate(func(st *domain.State) {
			if c, ok := findCost(st, costID); ok {
				att := attachment
				c.PdfAttachment = &att
				c.UpdatedAt = ts
			}
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("PDF attached to cost",
		zap.String("cost_id", costID),
		zap.String("file_name", attachment.FileName),
	)
	return &attachment, nil
}

// AttachDocument stores a file in the uploads folder and records it as a
// project document
func (s *Store) AttachDocument(ctx context.Context, req domain.AttachDocumentRequest, r io.Reader) (*domain.Document, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}

	name := sanitizeName(req.OriginalName)
	if name == "" {
		return nil, domain.NewValidationError("Naziv datoteke je obvezen")
	}
	if req.ProjectID == "" {
		return nil, domain.NewValidationError("Projekt je obvezen")
	}
	mime := req.Mime
	if mime == "" {
		mime = domain.DefaultDocumentMime
	}

	var doc domain.Document
	err := s.serialize(func() error {
		if err := assertRelations(s.state, relationRefs{ProjectID: req.ProjectID}); err != nil {
			return err
		}
		if req.CostID != "" {
			if _, ok := findCost(s.state, req.CostID); !ok {
				return domain.NewValidationError("Strošek ne obstaja")
			}
		}

		storedName := s.storedFileName(name)
		storedPath, size, err := s.saveUpload(ctx, storedName, mime, r)
		if err != nil {
			return err
		}

		doc = domain.Document{
			ID:           s.newID(),
			ProjectID:    req.ProjectID,
			CostID:       req.CostID,
			OriginalName: name,
			StoredName:   storedName,
			StoredPath:   storedPath,
			Mime:         mime,
			Size:         size,
			CreatedAt:    s.timestamp(),
		}
		return s.mutate(func(st *domain.State) {
			st.Documents = append(st.Documents, doc)
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Document attached",
		zap.String("document_id", doc.ID),
		zap.String("project_id", doc.ProjectID),
		zap.Int64("size", doc.Size),
	)
	return &doc, nil
}

// ListDocuments returns a project's documents, newest first
func (s *Store) ListDocuments(ctx context.Context, projectID string) ([]domain.Document, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}

	var docs []domain.Document
	s.read(func(st *domain.State) {
		for _, d := range st.Documents {
			if d.ProjectID == projectID {
				docs = append(docs, d)
			}
		}
	})
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].CreatedAt > docs[j].CreatedAt })
	if docs == nil {
		docs = []domain.Document{}
	}
	return docs, nil
}

// GetDocument returns a document by id, or nil when it does not exist
func (s *Store) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}

	var doc *domain.Document
	s.read(func(st *domain.State) {
		if d, ok := findDocument(st, id); ok {
			copied := *d
			doc = &copied
		}
	})
	return doc, nil
}

// OpenDocument opens the stored file of a document for reading
func (s *Store) OpenDocument(ctx context.Context, id string) (*domain.Document, io.ReadCloser, error) {
	doc, err := s.GetDocument(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if doc == nil {
		return nil, nil, &domain.NotFoundError{Reason: "Dokument ne obstaja"}
	}

	if key, ok := s.uploadsKey(doc.StoredPath); ok {
		rc, err := s.uploads.Download(ctx, key)
		if err != nil {
			return nil, nil, &domain.NotFoundError{Reason: "Datoteka ne obstaja"}
		}
		return doc, rc, nil
	}
	f, err := os.Open(doc.StoredPath)
	if err != nil {
		return nil, nil, &domain.NotFoundError{Reason: "Datoteka ne obstaja"}
	}
	return doc, f, nil
}

// UpdateDocument renames a document or relinks it to another cost. An empty
// cost id unlinks it. Unknown ids return nil.
func (s *Store) UpdateDocument(ctx context.Context, id string, req domain.UpdateDocumentRequest) (*domain.Document, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}

	var updated *domain.Document
	err := s.serialize(func() error {
		if _, ok := findDocument(s.state, id); !ok {
			return nil
		}
		if req.OriginalName != nil && strings.TrimSpace(*req.OriginalName) == "" {
			return domain.NewValidationError("Naziv datoteke je obvezen")
		}
		if req.CostID != nil && *req.CostID != "" {
			if _, ok := findCost(s.state, *req.CostID); !ok {
				return domain.NewValidationError("Strošek ne obstaja")
			}
		}

		return s.mutate(func(st *domain.State) {
			doc, _ := findDocument(st, id)
			if req.OriginalName != nil {
				doc.OriginalName = strings.TrimSpace(*req.OriginalName)
			}
			if req.CostID != nil {
				doc.CostID = *req.CostID
			}
			copied := *doc
			updated = &copied
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ReplaceDocument swaps the stored file of a document, keeping its id and links
func (s *Store) ReplaceDocument(ctx context.Context, id, originalName, mime string, r io.Reader) (*domain.Document, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}

	name := sanitizeName(originalName)
	if name == "" {
		return nil, domain.NewValidationError("Naziv datoteke je obvezen")
	}
	if mime == "" {
		mime = domain.DefaultDocumentMime
	}

	var updated domain.Document
	err := s.serialize(func() error {
		existing, ok := findDocument(s.state, id)
		if !ok {
			return &domain.NotFoundError{Reason: "Dokument ne obstaja"}
		}
		oldPath := existing.StoredPath

		storedName := s.storedFileName(name)
		storedPath, size, err := s.saveUpload(ctx, storedName, mime, r)
		if err != nil {
			return err
		}
		if oldPath != storedPath {
			s.removeStoredFile(ctx, oldPath)
		}

		return s.mutate(func(st *domain.State) {
			doc, _ := findDocument(st, id)
			doc.OriginalName = name
			doc.StoredName = storedName
			doc.StoredPath = storedPath
			doc.Size = size
			doc.Mime = mime
			updated = *doc
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Document replaced",
		zap.String("document_id", id),
		zap.Int64("size", updated.Size),
	)
	return &updated, nil
}

// DeleteDocument removes a document and its stored file. Unknown ids are a no-op.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	if err := s.Init(ctx); err != nil {
		return err
	}

	return s.serialize(func() error {
		doc, ok := findDocument(s.state, id)
		if !ok {
			return nil
		}
		s.removeStoredFile(ctx, doc.StoredPath)

		return s.mutate(func(st *domain.State) {
			kept := st.Documents[:0]
			for _, d := range st.Documents {
				if d.ID != id {
					kept = append(kept, d)
				}
			}
			st.Documents = kept
		})
	})
}
