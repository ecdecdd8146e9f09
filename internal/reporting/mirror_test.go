package reporting

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/gradnja/stroski-api/internal/database"
	"github.com/gradnja/stroski-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupTestMirror(t *testing.T) (*Mirror, *gorm.DB) {
	t.Helper()
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "reporting.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, zap.NewNop()))

	m := NewMirror(db, zap.NewNop())
	m.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return m, db
}

func sampleState() *domain.State {
	st := domain.NewState()
	active := "p1"
	st.Meta.ActiveProjectID = &active
	st.Projects = []domain.Project{
		{ID: "p1", Name: "Hiša Novak", CreatedAt: "2024-01-01T00:00:00.000Z", UpdatedAt: "2024-01-01T00:00:00.000Z"},
		{ID: "p2", Name: "Garaža", IsArchived: true, CreatedAt: "2024-01-02T00:00:00.000Z", UpdatedAt: "2024-01-02T00:00:00.000Z"},
	}
	st.Phases = []domain.Phase{
		{ID: "1", Name: "Temelji", OrderNo: 1, BudgetPlanned: 5000},
		{ID: "10", Name: "Streha", OrderNo: 2, ProjectID: "p1"},
	}
	st.Subphases = []domain.Subphase{
		{ID: "s1", MainPhaseID: "1", Name: "Izkop", OrderNo: 1},
		{ID: "s2", MainPhaseID: "10", Name: "Neopredeljeno", OrderNo: 1, ProjectID: "p1"},
	}
	st.Contractors = []domain.Contractor{
		{ID: "c1", Name: "ACME", ProjectID: "p1", SubphaseIDs: []string{"s1", "s2", "s1"}},
		{ID: "c2", Name: "Krovec", ProjectID: "p1", SubphaseIDs: []string{"s2"}},
	}
	st.Costs = []domain.Cost{
		{ID: "k1", ProjectID: "p1", PhaseID: "1", SubphaseID: "s1", ContractorID: "c1", AmountGross: 100, InvoiceDate: "2024-01-10", InvoiceMonth: "2024-01"},
		{ID: "k2", ProjectID: "p1", PhaseID: "1", SubphaseID: "s1", ContractorID: "c1", AmountGross: 50.5, InvoiceDate: "2024-01-20", InvoiceMonth: "2024-01", InvoiceNo: "R-2",
			PdfAttachment: &domain.PdfAttachment{FileName: "r.pdf", StoredPath: "/x/r.pdf", OriginalName: "r.pdf"}},
		{ID: "k3", ProjectID: "p1", PhaseID: "10", SubphaseID: "s2", ContractorID: "c2", AmountGross: 400, InvoiceDate: "2024-02-01", InvoiceMonth: "2024-02"},
		{ID: "k4", ProjectID: "p1", PhaseID: "10", SubphaseID: "s2", ContractorID: "c2", AmountGross: 999, InvoiceDate: "2024-02-02", InvoiceMonth: "2024-02", IsArchived: true},
	}
	st.Documents = []domain.Document{
		{ID: "d1", ProjectID: "p1", CostID: "k1", OriginalName: "pogodba.pdf", Mime: "application/pdf", Size: 12},
	}
	return st
}

func TestSyncMirrorsSnapshot(t *testing.T) {
	m, db := setupTestMirror(t)
	ctx := context.Background()

	require.NoError(t, m.Sync(ctx, sampleState()))

	var projects []projectRow
	require.NoError(t, db.Order("id").Find(&projects).Error)
	require.Len(t, projects, 2)
	assert.True(t, projects[0].IsActive)
	assert.False(t, projects[1].IsActive)
	assert.True(t, projects[1].IsArchived)

	var phase phaseRow
	require.NoError(t, db.First(&phase, "id = ?", "1").Error)
	assert.Empty(t, phase.ProjectID)
	assert.Equal(t, 5000.0, phase.BudgetPlanned)

	var links int64
	require.NoError(t, db.Model(&contractorSubphaseRow{}).Count(&links).Error)
	assert.Equal(t, int64(3), links)

	var cost costRow
	require.NoError(t, db.First(&cost, "id = ?", "k2").Error)
	require.NotNil(t, cost.PdfOriginalName)
	assert.Equal(t, "r.pdf", *cost.PdfOriginalName)
	require.NotNil(t, cost.InvoiceNo)
	assert.Equal(t, "R-2", *cost.InvoiceNo)

	last, err := m.LastSync(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01T12:00:00Z", last)
}

func TestSyncReplacesPreviousContents(t *testing.T) {
	m, db := setupTestMirror(t)
	ctx := context.Background()

	require.NoError(t, m.Sync(ctx, sampleState()))

	smaller := sampleState()
	smaller.Costs = smaller.Costs[:1]
	smaller.Documents = nil
	require.NoError(t, m.Sync(ctx, smaller))

	var costs, documents, runs int64
	require.NoError(t, db.Model(&costRow{}).Count(&costs).Error)
	require.NoError(t, db.Model(&documentRow{}).Count(&documents).Error)
	require.NoError(t, db.Model(&syncRun{}).Count(&runs).Error)
	assert.Equal(t, int64(1), costs)
	assert.Equal(t, int64(0), documents)
	assert.Equal(t, int64(2), runs)
}

func TestSyncKeepsPhaseIDsSharedAcrossProjects(t *testing.T) {
	m, db := setupTestMirror(t)

	st := sampleState()
	st.Phases = append(st.Phases,
		domain.Phase{ID: "1", Name: "Zemeljska dela", OrderNo: 1, ProjectID: "p1"},
		domain.Phase{ID: "1", Name: "Rušenje", OrderNo: 1, ProjectID: "p2"},
		domain.Phase{ID: "10", Name: "Streha B", OrderNo: 2, ProjectID: "p2"},
	)
	st.Subphases = append(st.Subphases,
		domain.Subphase{ID: "1.1", MainPhaseID: "1", Name: "Izkop", OrderNo: 1, ProjectID: "p1"},
		domain.Subphase{ID: "1.1", MainPhaseID: "1", Name: "Odvoz", OrderNo: 1, ProjectID: "p2"},
	)
	require.NoError(t, m.Sync(context.Background(), st))

	var phases []phaseRow
	require.NoError(t, db.Where("id = ?", "1").Order("project_id").Find(&phases).Error)
	require.Len(t, phases, 3)
	assert.Equal(t, "Temelji", phases[0].Name, "global phase")
	assert.Equal(t, "Zemeljska dela", phases[1].Name)
	assert.Equal(t, "Rušenje", phases[2].Name)

	var roofs int64
	require.NoError(t, db.Model(&phaseRow{}).Where("id = ?", "10").Count(&roofs).Error)
	assert.Equal(t, int64(2), roofs)

	var subs []subphaseRow
	require.NoError(t, db.Where("id = ?", "1.1").Order("project_id").Find(&subs).Error)
	require.Len(t, subs, 2)
	assert.Equal(t, "p1", subs[0].ProjectID)
	assert.Equal(t, "Odvoz", subs[1].Name)
}

func TestSyncDropsRepeatedPhaseWithinProject(t *testing.T) {
	m, db := setupTestMirror(t)

	st := sampleState()
	st.Phases = append(st.Phases, domain.Phase{ID: "10", Name: "Streha kopija", OrderNo: 3, ProjectID: "p1"})
	require.NoError(t, m.Sync(context.Background(), st))

	var phases []phaseRow
	require.NoError(t, db.Where("project_id = ? AND id = ?", "p1", "10").Find(&phases).Error)
	require.Len(t, phases, 1)
	assert.Equal(t, "Streha", phases[0].Name)
}

func TestTotals(t *testing.T) {
	m, _ := setupTestMirror(t)
	ctx := context.Background()
	require.NoError(t, m.Sync(ctx, sampleState()))

	months, err := m.MonthlyTotals(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []MonthTotal{
		{Month: "2024-01", Total: 150.5, Count: 2},
		{Month: "2024-02", Total: 400, Count: 1},
	}, months)

	contractors, err := m.ContractorTotals(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []ContractorTotal{
		{ContractorID: "c2", Name: "Krovec", Total: 400, Count: 1},
		{ContractorID: "c1", Name: "ACME", Total: 150.5, Count: 2},
	}, contractors)
}

func TestLastSyncBeforeFirstSync(t *testing.T) {
	m, _ := setupTestMirror(t)
	last, err := m.LastSync(context.Background())
	require.NoError(t, err)
	assert.Empty(t, last)
}

type fakeSource struct {
	st  *domain.State
	err error
}

func (f fakeSource) Snapshot(ctx context.Context) (*domain.State, error) {
	return f.st, f.err
}

func TestSyncFromPropagatesSnapshotError(t *testing.T) {
	m, _ := setupTestMirror(t)
	err := m.SyncFrom(context.Background(), fakeSource{err: assert.AnError})
	require.ErrorIs(t, err, assert.AnError)
}

func TestRefresherSyncsFromSource(t *testing.T) {
	m, db := setupTestMirror(t)

	r := Refresher{Mirror: m, Source: fakeSource{st: sampleState()}}
	require.NoError(t, r.Sync(context.Background()))

	var costs int64
	require.NoError(t, db.Model(&costRow{}).Count(&costs).Error)
	assert.Equal(t, int64(4), costs)
}
