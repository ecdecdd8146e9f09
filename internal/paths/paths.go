// Package paths resolves the on-disk layout of the data root.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DataFileName is the JSON snapshot holding the whole dataset
	DataFileName = "data.json"
	// UploadsDirName holds copied attachment files
	UploadsDirName = "uploads"
)

// Paths is the resolved layout of a data root
type Paths struct {
	Root string
}

// New returns the layout rooted at root. The directories are not created.
func New(root string) Paths {
	return Paths{Root: filepath.Clean(root)}
}

// DataFile returns the path of data.json
func (p Paths) DataFile() string {
	return filepath.Join(p.Root, DataFileName)
}

// TempDataFile returns the staging path used by atomic writes
func (p Paths) TempDataFile() string {
	return p.DataFile() + ".tmp"
}

// Uploads returns the uploads directory
func (p Paths) Uploads() string {
	return filepath.Join(p.Root, UploadsDirName)
}

// EnsureExists creates the data root and the uploads directory
func (p Paths) EnsureExists() error {
	if err := os.MkdirAll(p.Uploads(), 0o755); err != nil {
		return fmt.Errorf("failed to create data directories: %w", err)
	}
	return nil
}

// Contains reports whether target lies inside the data root
func (p Paths) Contains(target string) bool {
	rel, err := filepath.Rel(p.Root, filepath.Clean(target))
	if err != nil {
		return false
	}
	return rel != ".." && !filepath.IsAbs(rel) && !startsWithParent(rel)
}

func startsWithParent(rel string) bool {
	return len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)
}
