package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gradnja/stroski-api/internal/config"
	"go.uber.org/zap"
)

// ErrNotFound is returned by Download when the key does not exist
var ErrNotFound = errors.New("file not found")

// Object describes a stored file
type Object struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// Storage defines the interface for file storage operations.
// Keys are slash-separated paths chosen by the caller.
type Storage interface {
	Upload(ctx context.Context, key string, contentType string, data io.Reader) (int64, error)
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]Object, error)
}

// NewBackupStorage creates the storage that receives scheduled backup copies.
// For local mode, archives are kept in a directory on disk.
// For azure mode, archives are uploaded to Azure Blob Storage.
func NewBackupStorage(cfg *config.BackupConfig, dataRoot string, logger *zap.Logger) (Storage, error) {
	switch cfg.Mode {
	case "", "local":
		dir := cfg.LocalDir
		if dir == "" {
			dir = filepath.Join(dataRoot, "backups")
		}
		return NewLocalStorage(dir)
	case "cloud", "azure":
		if cfg.CloudConnectionString == "" {
			return nil, fmt.Errorf("cloud connection string required for azure storage")
		}
		return NewAzureBlobStorage(cfg.CloudConnectionString, cfg.CloudContainer, logger)
	default:
		return nil, fmt.Errorf("unsupported storage mode: %s", cfg.Mode)
	}
}

// LocalStorage implements Storage interface for local filesystem
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new local storage instance
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalStorage{
		basePath: basePath,
	}, nil
}

// BasePath returns the directory files are stored under
func (s *LocalStorage) BasePath() string {
	return s.basePath
}

// FullPath returns the absolute filesystem path of a key
func (s *LocalStorage) FullPath(key string) string {
	return filepath.Join(s.basePath, filepath.FromSlash(key))
}

// Upload writes data to the given key, replacing any existing file
func (s *LocalStorage) Upload(ctx context.Context, key string, contentType string, data io.Reader) (int64, error) {
	fullPath := s.FullPath(key)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}

	size, err := io.Copy(file, data)
	if err != nil {
		file.Close()
		os.Remove(fullPath) // Cleanup on error
		return 0, fmt.Errorf("failed to write file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(fullPath)
		return 0, fmt.Errorf("failed to close file: %w", err)
	}

	return size, nil
}

// Download opens a file from local storage
func (s *LocalStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	file, err := os.Open(s.FullPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// Delete deletes a file from local storage
func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	if err := os.Remove(s.FullPath(key)); err != nil {
		if os.IsNotExist(err) {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}

// List returns the files whose key starts with prefix, sorted by key
func (s *LocalStorage) List(ctx context.Context, prefix string) ([]Object, error) {
	var objects []Object

	err := filepath.WalkDir(s.basePath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		objects = append(objects, Object{Key: key, Size: info.Size(), ModTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}
