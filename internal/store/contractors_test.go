package store_test

import (
	"errors"
	"testing"

	"github.com/gradnja/stroski-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateContractor_NameUniqueness(t *testing.T) {
	w := newWorld(t)

	_, err := w.store.CreateContractor(w.ctx, domain.CreateContractorRequest{
		Name:        "acme",
		ProjectID:   w.project.ID,
		SubphaseIDs: []string{w.subphase.ID},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConflict))
	assert.True(t, errors.Is(err, domain.ErrValidation))
	assert.Equal(t, "Izvajalec s tem nazivom že obstaja v projektu.", err.Error())

	// The same name is free in another project
	other := w.addProject("Druga hiša")
	w.addContractor(other.ID, "ACME", w.subphase.ID)

	// and again in this project once the first one is archived
	_, err = w.store.ArchiveContractor(w.ctx, w.contractor.ID, true)
	require.NoError(t, err)
	again := w.addContractor(w.project.ID, "Acme", w.subphase.ID)
	assert.Equal(t, "Acme", again.Name)
}

func TestCreateContractor_Validation(t *testing.T) {
	w := newWorld(t)

	scopedPhase, err := w.store.CreatePhase(w.ctx, domain.CreatePhaseRequest{Name: "Bazen", ProjectID: w.project.ID})
	require.NoError(t, err)
	scopedSub, err := w.store.CreateSubphase(w.ctx, scopedPhase.ID, domain.CreateSubphaseRequest{Name: "Izkop bazena"})
	require.NoError(t, err)
	assert.Equal(t, w.project.ID, scopedSub.ProjectID)

	other := w.addProject("Druga hiša")

	tests := []struct {
		name   string
		req    domain.CreateContractorRequest
		reason string
	}{
		{"missing project", domain.CreateContractorRequest{Name: "X", SubphaseIDs: []string{w.subphase.ID}}, "Projekt je obvezen"},
		{"missing name", domain.CreateContractorRequest{Name: "  ", ProjectID: w.project.ID, SubphaseIDs: []string{w.subphase.ID}}, "Naziv je obvezen"},
		{"unknown project", domain.CreateContractorRequest{Name: "X", ProjectID: "nope", SubphaseIDs: []string{w.subphase.ID}}, "Projekt ne obstaja ali je arhiviran"},
		{"no subphases", domain.CreateContractorRequest{Name: "X", ProjectID: w.project.ID}, "Vsaj ena podfaza je obvezna"},
		{"unknown subphase", domain.CreateContractorRequest{Name: "X", ProjectID: w.project.ID, SubphaseIDs: []string{"nope"}}, "Podfaza ne obstaja"},
		{"subphase of another project", domain.CreateContractorRequest{Name: "X", ProjectID: other.ID, SubphaseIDs: []string{scopedSub.ID}}, "Podfaza ne pripada projektu"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := w.store.CreateContractor(w.ctx, tt.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrValidation))
			assert.Equal(t, tt.reason, err.Error())
		})
	}
}

func TestDeleteContractor_Guard(t *testing.T) {
	w := newWorld(t)
	cost := w.cost(w.costInput(100, "2024-01-15"))

	err := w.store.DeleteContractor(w.ctx, w.contractor.ID)
	require.Error(t, err)
	assert.Equal(t, "Izvajalec je uporabljen na stroških. Najprej arhivirajte ali posodobite stroške.", err.Error())

	_, err = w.store.SetCostArchived(w.ctx, cost.ID, true)
	require.NoError(t, err)
	require.NoError(t, w.store.DeleteContractor(w.ctx, w.contractor.ID))

	list, err := w.store.ListContractors(w.ctx, domain.ContractorFilters{ProjectID: w.project.ID, IncludeArchived: true})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestUpdateContractor(t *testing.T) {
	w := newWorld(t)
	second := w.addContractor(w.project.ID, "Beta", w.subphase.ID)

	_, err := w.store.UpdateContractor(w.ctx, second.ID, domain.UpdateContractorRequest{Name: strPtr("ACME")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConflict))

	renamed, err := w.store.UpdateContractor(w.ctx, second.ID, domain.UpdateContractorRequest{Name: strPtr("Beta d.o.o.")})
	require.NoError(t, err)
	assert.Equal(t, "Beta d.o.o.", renamed.Name)

	assert.Equal(t, []string{w.subphase.ID}, renamed.SubphaseIDs, "omitted subphases are kept")

	streha := w.phaseNamed("Streha")
	moved, err := w.store.UpdateContractor(w.ctx, second.ID, domain.UpdateContractorRequest{
		SubphaseIDs: &[]string{w.firstSubphase(streha.ID).ID},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{w.firstSubphase(streha.ID).ID}, moved.SubphaseIDs)

	_, err = w.store.UpdateContractor(w.ctx, second.ID, domain.UpdateContractorRequest{SubphaseIDs: &[]string{}})
	require.Error(t, err)
	assert.Equal(t, "Vsaj ena podfaza je obvezna", err.Error())

	missing, err := w.store.UpdateContractor(w.ctx, "nope", domain.UpdateContractorRequest{Name: strPtr("X")})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestListContractors_Filters(t *testing.T) {
	w := newWorld(t)
	other := w.addProject("Druga hiša")
	w.addContractor(other.ID, "Tuji", w.subphase.ID)
	archived := w.addContractor(w.project.ID, "Arhiviran", w.subphase.ID)
	_, err := w.store.ArchiveContractor(w.ctx, archived.ID, true)
	require.NoError(t, err)

	list, err := w.store.ListContractors(w.ctx, domain.ContractorFilters{ProjectID: w.project.ID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "ACME", list[0].Name)

	list, err = w.store.ListContractors(w.ctx, domain.ContractorFilters{ProjectID: w.project.ID, IncludeArchived: true})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Arhiviran", list[0].Name, "newest first")

	all, err := w.store.ListContractors(w.ctx, domain.ContractorFilters{IncludeArchived: true})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
