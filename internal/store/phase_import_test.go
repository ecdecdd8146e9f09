package store_test

import (
	"errors"
	"sort"
	"testing"

	"github.com/gradnja/stroski-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const phaseCSVHeader = "glavna_faza_id;glavna_faza_naziv;podfaza_id;podfaza_naziv;zaporedje\n"

func projectPhases(t *testing.T, w *world, projectID string) ([]domain.Phase, []domain.Subphase) {
	t.Helper()
	st, err := w.store.Snapshot(w.ctx)
	require.NoError(t, err)

	var phases []domain.Phase
	for _, p := range st.Phases {
		if p.ProjectID == projectID {
			phases = append(phases, p)
		}
	}
	sort.Slice(phases, func(i, j int) bool { return phases[i].OrderNo < phases[j].OrderNo })

	var subs []domain.Subphase
	for _, sp := range st.Subphases {
		if sp.ProjectID == projectID {
			subs = append(subs, sp)
		}
	}
	sort.Slice(subs, func(i, j int) bool {
		if subs[i].MainPhaseID != subs[j].MainPhaseID {
			return subs[i].MainPhaseID < subs[j].MainPhaseID
		}
		return subs[i].OrderNo < subs[j].OrderNo
	})
	return phases, subs
}

func TestImportPhasesCSV(t *testing.T) {
	w := newWorld(t)

	data := phaseCSVHeader +
		"2;Gradnja;2.1;Temelji;\n" +
		"1;Priprava terena;1.2;Zakoličba;2\n" +
		"1;Priprava terena;1.1;Čiščenje;1\n" +
		";;;;\n" +
		"3;Zaključek;;;\n"

	result, err := w.store.ImportPhasesCSV(w.ctx, data, w.project.ID)
	require.NoError(t, err)
	assert.Equal(t, w.project.ID, result.ProjectID)
	assert.Equal(t, 3, result.MainPhases)
	assert.Equal(t, 3, result.Subphases)
	assert.Equal(t, 4, result.ValidRows)

	phases, subs := projectPhases(t, w, w.project.ID)
	require.Len(t, phases, 3)
	assert.Equal(t, "1", phases[0].ID)
	assert.Equal(t, 1, phases[0].OrderNo)
	assert.Equal(t, "2", phases[1].ID)
	assert.Equal(t, 2, phases[1].OrderNo)
	assert.Equal(t, "3", phases[2].ID)

	require.Len(t, subs, 3)
	assert.Equal(t, "1.1", subs[0].ID)
	assert.Equal(t, 1, subs[0].OrderNo)
	assert.Equal(t, "1.2", subs[1].ID)
	assert.Equal(t, 2, subs[1].OrderNo)
	assert.Equal(t, "2.1", subs[2].ID)
	assert.Equal(t, 1, subs[2].OrderNo)

	visible, err := w.store.ListPhases(w.ctx, w.project.ID)
	require.NoError(t, err)
	assert.Len(t, visible, 15)

	t.Run("reimport updates in place", func(t *testing.T) {
		again := phaseCSVHeader + "1;Priprava;1.1;Čiščenje gradbišča;1\n"
		_, err := w.store.ImportPhasesCSV(w.ctx, again, w.project.ID)
		require.NoError(t, err)

		phases, subs := projectPhases(t, w, w.project.ID)
		require.Len(t, phases, 3)
		assert.Equal(t, "Priprava", phases[0].Name)
		require.Len(t, subs, 3)
		assert.Equal(t, "Čiščenje gradbišča", subs[0].Name)
	})

	t.Run("other projects are untouched", func(t *testing.T) {
		other := w.addProject("Druga hiša")
		phases, _ := projectPhases(t, w, other.ID)
		assert.Empty(t, phases)
	})
}

func TestImportPhasesCSV_NonNumericIDsKeepFileOrder(t *testing.T) {
	w := newWorld(t)

	data := phaseCSVHeader +
		"zemlja;Zemeljska dela;;;\n" +
		"beton;Betonska dela;;;\n" +
		"les;Lesena dela;;;\n"

	_, err := w.store.ImportPhasesCSV(w.ctx, data, w.project.ID)
	require.NoError(t, err)

	phases, _ := projectPhases(t, w, w.project.ID)
	require.Len(t, phases, 3)
	assert.Equal(t, []string{"zemlja", "beton", "les"}, []string{phases[0].ID, phases[1].ID, phases[2].ID})
	assert.Equal(t, []int{1, 2, 3}, []int{phases[0].OrderNo, phases[1].OrderNo, phases[2].OrderNo})
}

func TestImportPhasesCSV_Errors(t *testing.T) {
	w := newWorld(t)
	headerError := "CSV ni veljaven. Pričakovani stolpci: glavna_faza_id;glavna_faza_naziv;podfaza_id;podfaza_naziv;zaporedje"

	tests := []struct {
		name      string
		data      string
		projectID string
		reason    string
	}{
		{"no project", phaseCSVHeader + "1;A;;;\n", "", "Ni aktivnega projekta"},
		{"unknown project", phaseCSVHeader + "1;A;;;\n", "nope", "Projekt ne obstaja"},
		{"empty file", "\n\n", w.project.ID, "CSV je prazen."},
		{"missing column", "glavna_faza_id;glavna_faza_naziv;podfaza_id;podfaza_naziv\n1;A;;\n", w.project.ID, headerError},
		{"extra column", "glavna_faza_id;glavna_faza_naziv;podfaza_id;podfaza_naziv;zaporedje;x\n", w.project.ID, headerError},
		{"comma separated", "glavna_faza_id,glavna_faza_naziv,podfaza_id,podfaza_naziv,zaporedje\n", w.project.ID, headerError},
		{"no valid rows", phaseCSVHeader + ";Brez id;;;\n1;;;;\n", w.project.ID, "CSV ni vseboval veljavnih faz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before, err := w.store.Snapshot(w.ctx)
			require.NoError(t, err)

			_, err = w.store.ImportPhasesCSV(w.ctx, tt.data, tt.projectID)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrValidation))
			assert.Equal(t, tt.reason, err.Error())

			after, err := w.store.Snapshot(w.ctx)
			require.NoError(t, err)
			assert.Equal(t, before, after)
		})
	}
}
