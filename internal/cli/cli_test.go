package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gradnja/stroski-api/internal/domain"
	"github.com/gradnja/stroski-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// seedRoot creates a data root with one active project, a contractor and a cost
func seedRoot(t *testing.T) (string, *domain.Project) {
	t.Helper()
	ctx := context.Background()
	root := t.TempDir()
	s := store.New(root, zap.NewNop())

	project, err := s.CreateProject(ctx, domain.CreateProjectRequest{Name: "Hiša Novak"})
	require.NoError(t, err)

	phases, err := s.ListPhases(ctx, project.ID)
	require.NoError(t, err)
	subs, err := s.ListSubphases(ctx, phases[0].ID)
	require.NoError(t, err)
	require.NotEmpty(t, subs)

	contractor, err := s.CreateContractor(ctx, domain.CreateContractorRequest{
		Name:        "ACME",
		ProjectID:   project.ID,
		SubphaseIDs: []string{subs[0].ID},
	})
	require.NoError(t, err)

	_, err = s.CreateCost(ctx, domain.CostInput{
		ProjectID:    project.ID,
		PhaseID:      phases[0].ID,
		SubphaseID:   subs[0].ID,
		ContractorID: contractor.ID,
		Description:  "Izkop",
		AmountGross:  500,
		InvoiceDate:  "2024-03-04",
	})
	require.NoError(t, err)
	return root, project
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "stroskictl", cmd.Use)

	for _, path := range [][]string{
		{"backup", "export"}, {"backup", "restore"}, {"backup", "push"}, {"backup", "list"}, {"backup", "pull"},
		{"costs", "export"}, {"costs", "import"},
		{"phases", "import"},
		{"report", "sync"}, {"report", "version"}, {"report", "monthly"},
	} {
		sub, _, err := cmd.Find(path)
		require.NoError(t, err, "command %v should exist", path)
		assert.Equal(t, path[len(path)-1], sub.Name())
	}

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	_, err := runCLI(t, "--data-root", t.TempDir(), "--format", "xml", "costs", "export")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestBackupExportAndRestore(t *testing.T) {
	root, project := seedRoot(t)
	archive := filepath.Join(t.TempDir(), "kopija.zip")

	out, err := runCLI(t, "--data-root", root, "backup", "export", "-o", archive)
	require.NoError(t, err)
	assert.Contains(t, out, archive)
	assert.FileExists(t, archive)

	target := t.TempDir()
	_, err = runCLI(t, "--data-root", target, "backup", "restore", archive)
	require.NoError(t, err)

	restored := store.New(target, zap.NewNop())
	projects, err := restored.ListProjects(context.Background())
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, project.ID, projects[0].ID)
}

func TestBackupPushListPull(t *testing.T) {
	root, _ := seedRoot(t)

	out, err := runCLI(t, "--data-root", root, "--format", "json", "backup", "push")
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	key := resp.Data["key"]
	require.NotEmpty(t, key)
	assert.FileExists(t, filepath.Join(root, "backups", key))

	out, err = runCLI(t, "--data-root", root, "backup", "list")
	require.NoError(t, err)
	assert.Contains(t, out, key)

	_, err = runCLI(t, "--data-root", root, "backup", "pull", key)
	require.NoError(t, err)

	_, err = runCLI(t, "--data-root", root, "backup", "pull", "missing.zip")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCostsExportImport(t *testing.T) {
	root, project := seedRoot(t)

	out, err := runCLI(t, "--data-root", root, "costs", "export")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], `"Izkop",500`)

	file := filepath.Join(t.TempDir(), "stroski.csv")
	require.NoError(t, os.WriteFile(file, []byte(out), 0o644))

	out, err = runCLI(t, "--data-root", root, "costs", "import", file, "--project", project.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 1 costs")

	missing := filepath.Join(t.TempDir(), "napacni.csv")
	require.NoError(t, os.WriteFile(missing, []byte("invoice_date,phase,contractor,amount_gross\n2024-01-01,Ni je,ACME,1\n"), 0o644))
	out, err = runCLI(t, "--data-root", root, "costs", "import", missing)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Ni je")
}

func TestCostsExportRequiresProject(t *testing.T) {
	_, err := runCLI(t, "--data-root", t.TempDir(), "costs", "export")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestPhasesImport(t *testing.T) {
	root, _ := seedRoot(t)
	file := filepath.Join(t.TempDir(), "faze.csv")
	require.NoError(t, os.WriteFile(file, []byte("glavna_faza_id;glavna_faza_naziv;podfaza_id;podfaza_naziv;zaporedje\nA;Priprava;A.1;Zakoličba;1\n"), 0o644))

	out, err := runCLI(t, "--data-root", root, "phases", "import", file)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 1 phases and 1 subphases from 1 rows")
}

func TestReportSyncAndMonthly(t *testing.T) {
	root, _ := seedRoot(t)

	out, err := runCLI(t, "--data-root", root, "report", "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "Reporting mirror synced at")
	assert.FileExists(t, filepath.Join(root, "reporting.db"))

	out, err = runCLI(t, "--data-root", root, "report", "monthly")
	require.NoError(t, err)
	assert.Equal(t, "2024-03\t500.00\t1\n", out)

	out, err = runCLI(t, "--data-root", root, "report", "version")
	require.NoError(t, err)
	assert.Equal(t, "Schema version 2\n", out)
}
