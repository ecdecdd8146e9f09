package store

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/gradnja/stroski-api/internal/domain"
	"go.uber.org/zap"
)

// persist writes the full state to a sibling temp file and renames it over
// data.json. The canonical file is either the old or the new snapshot, never a
// partial one. Callers must hold the serializer.
func (s *Store) persist() error {
	s.mu.RLock()
	data, err := json.MarshalIndent(s.state, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return s.persistFailed(err)
	}

	if err := s.paths.EnsureExists(); err != nil {
		return s.persistFailed(err)
	}

	if err := writeFileAtomic(s.paths.DataFile(), s.paths.TempDataFile(), data); err != nil {
		return s.persistFailed(err)
	}
	return nil
}

func (s *Store) persistFailed(cause error) error {
	s.logger.Error("Failed to persist data file",
		zap.String("path", s.paths.DataFile()),
		zap.Error(cause),
	)
	return fmt.Errorf("%w: %v", domain.ErrPersistence, cause)
}

func writeFileAtomic(target, tmp string, data []byte) (err error) {
	defer func() {
		if err != nil {
			os.Remove(tmp)
		}
	}()

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err = f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err = f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, target)
}
