package paths_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gradnja/stroski-api/internal/paths"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaths_Layout(t *testing.T) {
	root := t.TempDir()
	p := paths.New(root)

	assert.Equal(t, filepath.Join(root, "data.json"), p.DataFile())
	assert.Equal(t, filepath.Join(root, "data.json.tmp"), p.TempDataFile())
	assert.Equal(t, filepath.Join(root, "uploads"), p.Uploads())
}

func TestPaths_EnsureExists(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "GradnjaStroski")
	p := paths.New(root)

	require.NoError(t, p.EnsureExists())
	// Idempotent
	require.NoError(t, p.EnsureExists())

	info, err := os.Stat(p.Uploads())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestPaths_Contains(t *testing.T) {
	root := t.TempDir()
	p := paths.New(root)

	tests := []struct {
		name   string
		target string
		want   bool
	}{
		{"data file", filepath.Join(root, "data.json"), true},
		{"nested upload", filepath.Join(root, "uploads", "p1", "a.pdf"), true},
		{"parent", filepath.Dir(root), false},
		{"escape", filepath.Join(root, "..", "evil"), false},
		{"dotdot prefixed name", filepath.Join(root, "..data"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Contains(tt.target))
		})
	}
}
