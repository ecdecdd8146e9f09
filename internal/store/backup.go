package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gradnja/stroski-api/internal/domain"
	"github.com/gradnja/stroski-api/internal/paths"
	"github.com/gradnja/stroski-api/internal/storage"
	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"
)

// ExportBackup writes a zip archive of data.json and the uploads tree to
// targetPath and returns the path.
func (s *Store) ExportBackup(ctx context.Context, targetPath string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	f, err := os.Create(targetPath)
	if err != nil {
		return "", fmt.Errorf("failed to create backup file: %w", err)
	}

	if err := s.WriteBackup(ctx, f); err != nil {
		f.Close()
		os.Remove(targetPath)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(targetPath)
		return "", fmt.Errorf("failed to close backup file: %w", err)
	}

	s.logger.Info("Backup exported", zap.String("path", targetPath))
	return targetPath, nil
}

// WriteBackup persists the current state and streams the backup archive to w.
// No mutation runs while the archive is written.
func (s *Store) WriteBackup(ctx context.Context, w io.Writer) error {
	if err := s.Init(ctx); err != nil {
		return err
	}

	return s.serialize(func() error {
		if err := s.persist(); err != nil {
			return err
		}

		zw := zip.NewWriter(w)
		if err := addFileToZip(zw, s.paths.DataFile(), paths.DataFileName); err != nil {
			zw.Close()
			return err
		}

		uploads := s.paths.Uploads()
		err := filepath.WalkDir(uploads, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) && path == uploads {
					return filepath.SkipDir
				}
				return err
			}
			if d.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(s.paths.Root, path)
			if err != nil {
				return err
			}
			return addFileToZip(zw, path, filepath.ToSlash(rel))
		})
		if err != nil {
			zw.Close()
			return fmt.Errorf("failed to archive uploads: %w", err)
		}

		if err := zw.Close(); err != nil {
			return fmt.Errorf("failed to finish backup archive: %w", err)
		}
		return nil
	})
}

func addFileToZip(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", name, err)
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Deflate

	entry, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", name, err)
	}
	if _, err := io.Copy(entry, f); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// ImportBackup replaces the dataset and files with the contents of a backup
// archive. The snapshot is decoded and every entry name checked before the
// file tree is touched; extraction itself is not transactional and a failure
// midway can leave a mix of old and new files.
//
// ImportBackup does not require the current data file to be readable, so it
// can recover a root whose data.json is corrupt.
func (s *Store) ImportBackup(ctx context.Context, sourcePath string) error {
	zr, err := zip.OpenReader(sourcePath)
	if err != nil {
		return domain.NewValidationError(fmt.Sprintf("Varnostne kopije ni mogoče odpreti: %v", err))
	}
	defer zr.Close()

	return s.serialize(func() error {
		s.initMu.Lock()
		defer s.initMu.Unlock()

		if err := s.paths.EnsureExists(); err != nil {
			return err
		}
		uploads, err := storage.NewLocalStorage(s.paths.Uploads())
		if err != nil {
			return err
		}

		st, err := s.readBackupState(zr)
		if err != nil {
			return err
		}

		for _, f := range zr.File {
			if _, ok := s.entryTarget(f.Name); !ok {
				return domain.NewValidationError(fmt.Sprintf("Neveljavna pot v arhivu: %s", f.Name))
			}
		}

		extracted := 0
		for _, f := range zr.File {
			target, _ := s.entryTarget(f.Name)
			if f.FileInfo().IsDir() {
				if err := os.MkdirAll(target, 0o755); err != nil {
					return fmt.Errorf("failed to create %s: %w", f.Name, err)
				}
				continue
			}
			// data.json is rewritten from the normalized state below
			if target == s.paths.DataFile() {
				continue
			}
			if err := extractZipFile(f, target); err != nil {
				s.logger.Error("Backup extraction failed",
					zap.String("entry", f.Name),
					zap.Int("extracted", extracted),
					zap.Error(err),
				)
				return err
			}
			extracted++
		}

		rebaseStoredPaths(st, uploads.BasePath())
		seeded := seedPhases(st, s.newID)

		s.mu.Lock()
		s.state = st
		s.uploads = uploads
		s.mu.Unlock()
		s.ready = true

		if err := s.persist(); err != nil {
			return err
		}

		s.logger.Info("Backup restored",
			zap.String("source", sourcePath),
			zap.Int("files", extracted),
			zap.Bool("seeded", seeded),
			zap.Int("projects", len(st.Projects)),
			zap.Int("costs", len(st.Costs)),
		)
		return nil
	})
}

// readBackupState decodes data.json from the archive, or returns an empty
// state when the archive has none
func (s *Store) readBackupState(zr *zip.ReadCloser) (*domain.State, error) {
	for _, f := range zr.File {
		if strings.TrimPrefix(f.Name, "./") != paths.DataFileName {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, domain.NewValidationError(fmt.Sprintf("Neveljavna varnostna kopija: %v", err))
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, domain.NewValidationError(fmt.Sprintf("Neveljavna varnostna kopija: %v", err))
		}
		st, err := decodeState(raw, s.now(), s.newID)
		if err != nil {
			return nil, domain.NewValidationError(fmt.Sprintf("Neveljavna varnostna kopija: %v", err))
		}
		return st, nil
	}
	return domain.NewState(), nil
}

// entryTarget maps an archive entry to its path under the data root
func (s *Store) entryTarget(name string) (string, bool) {
	if name == "" || strings.Contains(name, "\\") || filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", false
	}
	target := filepath.Join(s.paths.Root, filepath.FromSlash(name))
	if target == s.paths.Root || !s.paths.Contains(target) {
		return "", false
	}
	return target, true
}

func extractZipFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", f.Name, err)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", f.Name, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("failed to write %s: %w", f.Name, err)
	}
	return out.Close()
}

// rebaseStoredPaths points attachment paths recorded on another machine at
// the same file under the local uploads directory
func rebaseStoredPaths(st *domain.State, uploadsDir string) {
	for i := range st.Costs {
		if att := st.Costs[i].PdfAttachment; att != nil {
			att.StoredPath = rebasePath(att.StoredPath, uploadsDir)
		}
	}
	for i := range st.Documents {
		st.Documents[i].StoredPath = rebasePath(st.Documents[i].StoredPath, uploadsDir)
	}
}

func rebasePath(stored, uploadsDir string) string {
	if stored == "" {
		return stored
	}
	normalized := strings.ReplaceAll(stored, "\\", "/")
	marker := "/" + paths.UploadsDirName + "/"
	idx := strings.LastIndex(normalized, marker)
	if idx < 0 {
		if !strings.HasPrefix(normalized, paths.UploadsDirName+"/") {
			return stored
		}
		idx = -1
	}
	rel := normalized[idx+len(marker):]
	if rel == "" || strings.Contains("/"+rel+"/", "/../") {
		return stored
	}
	return filepath.Join(uploadsDir, filepath.FromSlash(rel))
}
