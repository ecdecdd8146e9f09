package store_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gradnja/stroski-api/internal/domain"
	"github.com/gradnja/stroski-api/internal/store"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// testClock advances one second per reading so timestamps are distinct and ordered
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type sequentialIDs struct {
	mu sync.Mutex
	n  int
}

func (g *sequentialIDs) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("id-%04d", g.n)
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	return newTestStoreAt(t, t.TempDir())
}

func newTestStoreAt(t *testing.T, root string) *store.Store {
	t.Helper()
	clock := newTestClock()
	ids := &sequentialIDs{}
	s := store.New(root, zap.NewNop(),
		store.WithClock(clock.Now),
		store.WithIDGenerator(ids.Next),
	)
	require.NoError(t, s.Init(context.Background()))
	return s
}

type fixtures struct {
	t     *testing.T
	ctx   context.Context
	store *store.Store
}

func newFixtures(t *testing.T) *fixtures {
	return &fixtures{t: t, ctx: context.Background(), store: newTestStore(t)}
}

func (f *fixtures) addProject(name string) *domain.Project {
	f.t.Helper()
	p, err := f.store.CreateProject(f.ctx, domain.CreateProjectRequest{Name: name})
	require.NoError(f.t, err)
	return p
}

func (f *fixtures) phaseNamed(name string) domain.Phase {
	f.t.Helper()
	phases, err := f.store.ListPhases(f.ctx, "")
	require.NoError(f.t, err)
	for _, p := range phases {
		if p.Name == name {
			return p
		}
	}
	f.t.Fatalf("phase %q not found", name)
	return domain.Phase{}
}

func (f *fixtures) firstSubphase(phaseID string) domain.Subphase {
	f.t.Helper()
	subs, err := f.store.ListSubphases(f.ctx, phaseID)
	require.NoError(f.t, err)
	require.NotEmpty(f.t, subs)
	return subs[0]
}

func (f *fixtures) addContractor(projectID, name string, subphaseIDs ...string) *domain.Contractor {
	f.t.Helper()
	c, err := f.store.CreateContractor(f.ctx, domain.CreateContractorRequest{
		Name:        name,
		ProjectID:   projectID,
		SubphaseIDs: subphaseIDs,
	})
	require.NoError(f.t, err)
	return c
}

func (f *fixtures) cost(in domain.CostInput) *domain.Cost {
	f.t.Helper()
	c, err := f.store.CreateCost(f.ctx, in)
	require.NoError(f.t, err)
	return c
}

// world is a project with one contractor on the first subphase of "Temelji"
type world struct {
	*fixtures
	project    *domain.Project
	phase      domain.Phase
	subphase   domain.Subphase
	contractor *domain.Contractor
}

func newWorld(t *testing.T) *world {
	f := newFixtures(t)
	p := f.addProject("Hiša Novak")
	phase := f.phaseNamed("Temelji")
	sub := f.firstSubphase(phase.ID)
	c := f.addContractor(p.ID, "ACME", sub.ID)
	return &world{fixtures: f, project: p, phase: phase, subphase: sub, contractor: c}
}

func (w *world) costInput(amount float64, date string) domain.CostInput {
	return domain.CostInput{
		ProjectID:    w.project.ID,
		SubphaseID:   w.subphase.ID,
		ContractorID: w.contractor.ID,
		Description:  "Beton",
		AmountGross:  amount,
		InvoiceDate:  date,
	}
}

func newUninitializedStore(root string) *store.Store {
	clock := newTestClock()
	ids := &sequentialIDs{}
	return store.New(root, zap.NewNop(), store.WithClock(clock.Now), store.WithIDGenerator(ids.Next))
}
