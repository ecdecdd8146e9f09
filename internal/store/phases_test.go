package store_test

import (
	"testing"

	"github.com/gradnja/stroski-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhases_ProjectScope(t *testing.T) {
	f := newFixtures(t)
	a := f.addProject("A")
	b := f.addProject("B")

	scoped, err := f.store.CreatePhase(f.ctx, domain.CreatePhaseRequest{Name: "Bazen", ProjectID: a.ID})
	require.NoError(t, err)
	assert.Equal(t, 13, scoped.OrderNo)

	forA, err := f.store.ListPhases(f.ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, forA, 13)
	assert.Equal(t, "Bazen", forA[12].Name)

	forB, err := f.store.ListPhases(f.ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, forB, 12)

	_, err = f.store.CreatePhase(f.ctx, domain.CreatePhaseRequest{Name: "X", ProjectID: "nope"})
	require.Error(t, err)
	assert.Equal(t, "Projekt ne obstaja", err.Error())
}

func TestCreatePhase_UpsertByID(t *testing.T) {
	f := newFixtures(t)

	created, err := f.store.CreatePhase(f.ctx, domain.CreatePhaseRequest{ID: "custom", Name: "Bazen"})
	require.NoError(t, err)
	assert.Equal(t, "custom", created.ID)

	order := 2
	updated, err := f.store.CreatePhase(f.ctx, domain.CreatePhaseRequest{ID: "custom", Name: "Bazen in savna", OrderNo: &order})
	require.NoError(t, err)
	assert.Equal(t, "Bazen in savna", updated.Name)
	assert.Equal(t, 2, updated.OrderNo)

	phases, err := f.store.ListPhases(f.ctx, "")
	require.NoError(t, err)
	assert.Len(t, phases, 13)
}

func TestUpdatePhase(t *testing.T) {
	f := newFixtures(t)
	phase := f.phaseNamed("Streha")

	got, err := f.store.UpdatePhase(f.ctx, phase.ID, domain.UpdatePhaseRequest{
		Name:          strPtr("Ostrešje"),
		BudgetPlanned: floatPtr(12000),
	})
	require.NoError(t, err)
	assert.Equal(t, "Ostrešje", got.Name)
	assert.Equal(t, 12000.0, got.BudgetPlanned)

	_, err = f.store.UpdatePhase(f.ctx, phase.ID, domain.UpdatePhaseRequest{BudgetPlanned: floatPtr(-1)})
	require.Error(t, err)

	missing, err := f.store.UpdatePhase(f.ctx, "nope", domain.UpdatePhaseRequest{Name: strPtr("X")})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDeletePhase_CascadesOneLevel(t *testing.T) {
	w := newWorld(t)
	cost := w.cost(w.costInput(100, "2024-01-15"))

	require.NoError(t, w.store.DeletePhase(w.ctx, w.phase.ID))

	st, err := w.store.Snapshot(w.ctx)
	require.NoError(t, err)
	for _, p := range st.Phases {
		assert.NotEqual(t, w.phase.ID, p.ID)
	}
	for _, sp := range st.Subphases {
		assert.NotEqual(t, w.phase.ID, sp.MainPhaseID)
	}
	require.Len(t, st.Costs, 1)
	assert.Equal(t, cost.SubphaseID, st.Costs[0].SubphaseID, "costs keep their references")
}

func TestReorderPhases(t *testing.T) {
	f := newFixtures(t)
	streha := f.phaseNamed("Streha")
	fasada := f.phaseNamed("Fasada")

	phases, err := f.store.ReorderPhases(f.ctx, []string{fasada.ID, streha.ID, "unknown"})
	require.NoError(t, err)
	require.NotEmpty(t, phases)

	byID := make(map[string]domain.Phase)
	for _, p := range phases {
		byID[p.ID] = p
	}
	assert.Equal(t, 1, byID[fasada.ID].OrderNo)
	assert.Equal(t, 2, byID[streha.ID].OrderNo)
}

func TestSubphases(t *testing.T) {
	f := newFixtures(t)
	phase := f.phaseNamed("Instalacije")

	created, err := f.store.CreateSubphase(f.ctx, phase.ID, domain.CreateSubphaseRequest{Name: "Prezračevanje"})
	require.NoError(t, err)
	assert.Equal(t, 4, created.OrderNo)

	// Same name, different case, updates instead of duplicating
	again, err := f.store.CreateSubphase(f.ctx, phase.ID, domain.CreateSubphaseRequest{Name: "prezračevanje"})
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)
	assert.Equal(t, 4, again.OrderNo)

	subs, err := f.store.ListSubphases(f.ctx, phase.ID)
	require.NoError(t, err)
	assert.Len(t, subs, 4)

	_, err = f.store.CreateSubphase(f.ctx, "nope", domain.CreateSubphaseRequest{Name: "X"})
	require.Error(t, err)
	assert.Equal(t, "Faza ne obstaja", err.Error())

	streha := f.phaseNamed("Streha")
	moved, err := f.store.UpdateSubphase(f.ctx, created.ID, domain.UpdateSubphaseRequest{MainPhaseID: strPtr(streha.ID)})
	require.NoError(t, err)
	assert.Equal(t, streha.ID, moved.MainPhaseID)

	require.NoError(t, f.store.DeleteSubphase(f.ctx, created.ID))
	subs, err = f.store.ListSubphases(f.ctx, streha.ID)
	require.NoError(t, err)
	for _, sp := range subs {
		assert.NotEqual(t, created.ID, sp.ID)
	}

	missing, err := f.store.UpdateSubphase(f.ctx, "nope", domain.UpdateSubphaseRequest{Name: strPtr("X")})
	require.NoError(t, err)
	assert.Nil(t, missing)
}
