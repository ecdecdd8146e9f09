package store_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/gradnja/stroski-api/internal/domain"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		entry, err := zw.Create(name)
		require.NoError(t, err)
		_, err = entry.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func zipEntries(t *testing.T, path string) []string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}

func TestBackup_RoundTrip(t *testing.T) {
	w := newWorld(t)
	cost := w.cost(w.costInput(100, "2024-01-15"))
	att, err := w.store.AttachPdfToCost(w.ctx, cost.ID, "racun.pdf", strings.NewReader("pdf"))
	require.NoError(t, err)
	doc, err := w.store.AttachDocument(w.ctx, domain.AttachDocumentRequest{
		ProjectID:    w.project.ID,
		OriginalName: "pogodba.pdf",
	}, strings.NewReader("pogodba"))
	require.NoError(t, err)

	archive := filepath.Join(t.TempDir(), "out", "backup.zip")
	path, err := w.store.ExportBackup(w.ctx, archive)
	require.NoError(t, err)
	assert.Equal(t, archive, path)

	assert.Equal(t, []string{
		"data.json",
		"uploads/" + doc.StoredName,
		"uploads/" + w.project.ID + "/" + att.FileName,
	}, zipEntries(t, archive))

	original, err := w.store.Snapshot(w.ctx)
	require.NoError(t, err)

	// Restore into a fresh root
	target := newTestStoreAt(t, t.TempDir())
	require.NoError(t, target.ImportBackup(w.ctx, archive))

	restored, err := target.Snapshot(w.ctx)
	require.NoError(t, err)
	assert.Equal(t, original.Projects, restored.Projects)
	assert.Equal(t, original.Phases, restored.Phases)
	assert.Equal(t, original.Contractors, restored.Contractors)
	require.Len(t, restored.Costs, 1)
	assert.Equal(t, original.Costs[0].AmountGross, restored.Costs[0].AmountGross)

	// Attachment paths point into the new root
	restoredAtt := restored.Costs[0].PdfAttachment
	require.NotNil(t, restoredAtt)
	assert.Equal(t, filepath.Join(target.Paths().Uploads(), w.project.ID, att.FileName), restoredAtt.StoredPath)
	content, err := os.ReadFile(restoredAtt.StoredPath)
	require.NoError(t, err)
	assert.Equal(t, "pdf", string(content))

	require.Len(t, restored.Documents, 1)
	assert.Equal(t, filepath.Join(target.Paths().Uploads(), doc.StoredName), restored.Documents[0].StoredPath)
	assert.FileExists(t, restored.Documents[0].StoredPath)

	// The restored data is persisted
	reloaded := newTestStoreAt(t, target.Paths().Root)
	costs, err := reloaded.ListCosts(w.ctx, domain.CostListParams{})
	require.NoError(t, err)
	assert.Equal(t, 1, costs.Total)
}

func TestImportBackup_WithoutSnapshotStartsEmpty(t *testing.T) {
	w := newWorld(t)
	archive := filepath.Join(t.TempDir(), "files-only.zip")
	writeZip(t, archive, map[string]string{"uploads/readme.txt": "hello"})

	require.NoError(t, w.store.ImportBackup(w.ctx, archive))

	st, err := w.store.Snapshot(w.ctx)
	require.NoError(t, err)
	assert.Empty(t, st.Projects)
	assert.Len(t, st.Phases, 12, "an empty restored state is reseeded")
	assert.FileExists(t, filepath.Join(w.store.Paths().Uploads(), "readme.txt"))
}

func TestImportBackup_NormalizesLegacySnapshot(t *testing.T) {
	w := newWorld(t)
	archive := filepath.Join(t.TempDir(), "legacy.zip")
	writeZip(t, archive, map[string]string{
		"data.json": `{"projects":[{"id":"p1","name":"Stara"}],"phases":[{"id":"ph1","name":"Temelji"}],
			"costs":[{"id":"k1","project_id":"p1","glavnaFazaId":"ph1","znesekBruto":"99","datumRacuna":"2022-05-05"}]}`,
	})

	require.NoError(t, w.store.ImportBackup(w.ctx, archive))

	st, err := w.store.Snapshot(w.ctx)
	require.NoError(t, err)
	require.Len(t, st.Costs, 1)
	assert.Equal(t, 99.0, st.Costs[0].AmountGross)
	assert.Equal(t, "2022-05", st.Costs[0].InvoiceMonth)
	assert.NotEmpty(t, st.Costs[0].SubphaseID)
	assert.Len(t, st.Phases, 1)
}

func TestImportBackup_RejectsUnsafeArchives(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
	}{
		{"parent traversal", map[string]string{"data.json": `{}`, "../evil.txt": "x"}},
		{"nested traversal", map[string]string{"uploads/../../evil.txt": "x"}},
		{"absolute path", map[string]string{"/tmp/evil.txt": "x"}},
		{"corrupt snapshot", map[string]string{"data.json": "{nope", "uploads/a.txt": "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newWorld(t)
			before, err := w.store.Snapshot(w.ctx)
			require.NoError(t, err)

			archive := filepath.Join(t.TempDir(), "bad.zip")
			writeZip(t, archive, tt.files)

			err = w.store.ImportBackup(w.ctx, archive)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrValidation))

			after, err := w.store.Snapshot(w.ctx)
			require.NoError(t, err)
			assert.Equal(t, before, after)

			root := w.store.Paths().Root
			assert.NoFileExists(t, filepath.Join(filepath.Dir(root), "evil.txt"))
			assert.NoFileExists(t, filepath.Join(root, "uploads", "a.txt"))
		})
	}
}

func TestImportBackup_RecoversCorruptDataFile(t *testing.T) {
	w := newWorld(t)
	archive := filepath.Join(t.TempDir(), "good.zip")
	_, err := w.store.ExportBackup(w.ctx, archive)
	require.NoError(t, err)

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "data.json"), []byte("garbage"), 0o644))

	broken := newUninitializedStore(root)
	require.Error(t, broken.Init(w.ctx))
	require.NoError(t, broken.ImportBackup(w.ctx, archive))
	assert.True(t, broken.Ready())

	projects, err := broken.ListProjects(w.ctx)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, w.project.ID, projects[0].ID)
}

func TestImportBackup_MissingArchive(t *testing.T) {
	w := newWorld(t)
	err := w.store.ImportBackup(w.ctx, filepath.Join(t.TempDir(), "missing.zip"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrValidation))
}
