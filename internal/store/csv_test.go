package store_test

import (
	"errors"
	"testing"

	"github.com/gradnja/stroski-api/internal/domain"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exportWorld books two costs, one of them on the Streha catch-all subphase
func exportWorld(t *testing.T) *world {
	w := newWorld(t)

	in := w.costInput(1234.5, "2024-01-15")
	in.Description = `Beton "C25/30"`
	in.InvoiceNo = "R-1"
	w.cost(in)

	w.cost(domain.CostInput{
		ProjectID:    w.project.ID,
		PhaseID:      w.phaseNamed("Streha").ID,
		ContractorID: w.contractor.ID,
		Description:  "Kritina, opeka",
		AmountGross:  80,
		InvoiceDate:  "2024-02-03",
		InvoiceMonth: "2024-03",
	})
	return w
}

func TestExportCostsCSV_Golden(t *testing.T) {
	w := exportWorld(t)

	out, err := w.store.ExportCostsCSV(w.ctx, w.project.ID, domain.CostListParams{})
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "cost_export", []byte(out))
}

func TestExportCostsCSV_HonoursFilters(t *testing.T) {
	w := exportWorld(t)

	out, err := w.store.ExportCostsCSV(w.ctx, w.project.ID, domain.CostListParams{
		CostFilters: domain.CostFilters{PhaseID: w.phase.ID},
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Temelji")
	assert.NotContains(t, out, "Streha")

	empty, err := w.store.ExportCostsCSV(w.ctx, "other", domain.CostListParams{})
	require.NoError(t, err)
	assert.Equal(t, "invoice_date,phase,subphase,contractor,description,amount_gross,invoice_month,invoice_no", empty)
}

func TestCostsCSV_RoundTrip(t *testing.T) {
	w := exportWorld(t)

	out, err := w.store.ExportCostsCSV(w.ctx, w.project.ID, domain.CostListParams{})
	require.NoError(t, err)

	target := w.addProject("Kopija")
	w.addContractor(target.ID, "ACME", w.subphase.ID)

	result, err := w.store.ImportCostsCSV(w.ctx, out, target.ID)
	require.NoError(t, err)
	assert.Empty(t, result.MissingPhases)
	assert.Empty(t, result.MissingContractors)
	require.Len(t, result.Created, 2)

	original, err := w.store.ListCosts(w.ctx, domain.CostListParams{CostFilters: domain.CostFilters{ProjectID: w.project.ID}})
	require.NoError(t, err)
	imported, err := w.store.ListCosts(w.ctx, domain.CostListParams{CostFilters: domain.CostFilters{ProjectID: target.ID}})
	require.NoError(t, err)
	require.Len(t, imported.Items, len(original.Items))

	for i := range original.Items {
		want, got := original.Items[i], imported.Items[i]
		assert.NotEqual(t, want.ID, got.ID)
		assert.Equal(t, want.AmountGross, got.AmountGross)
		assert.Equal(t, want.InvoiceDate, got.InvoiceDate)
		assert.Equal(t, want.InvoiceMonth, got.InvoiceMonth)
		assert.Equal(t, want.Description, got.Description)
		assert.Equal(t, want.InvoiceNo, got.InvoiceNo)
		assert.Equal(t, want.PhaseID, got.PhaseID)
		assert.Equal(t, want.SubphaseID, got.SubphaseID)
		assert.Equal(t, target.ID, got.ProjectID)
	}
}

func TestImportCostsCSV_ReportsMissingNames(t *testing.T) {
	w := newWorld(t)

	data := "date,phase,contractor,title,amountGross\n" +
		"2024-01-01,Temelji,ACME,Ok,10\n" +
		"2024-01-02,Neobstoječa,ACME,Ni faze,20\n" +
		"2024-01-03,temelji,,Ni izvajalca,30\n" +
		"2024-01-04,,Nihče,Nič,40\n"

	before, err := w.store.Snapshot(w.ctx)
	require.NoError(t, err)

	result, err := w.store.ImportCostsCSV(w.ctx, data, w.project.ID)
	require.NoError(t, err)
	assert.Empty(t, result.Created)
	assert.Equal(t, []string{"Neobstoječa", "Neznana faza"}, result.MissingPhases)
	assert.Equal(t, []string{"Neznan izvajalec", "Nihče"}, result.MissingContractors)

	after, err := w.store.Snapshot(w.ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestImportCostsCSV_LegacyHeaders(t *testing.T) {
	w := newWorld(t)

	data := "\ufeffDate,Phase,Contractor,Title,unitPrice,invoiceNo\n" +
		"2024-04-10,Temelji,acme,Opaž,\"1500,25\",R-9\n" +
		"\n"

	result, err := w.store.ImportCostsCSV(w.ctx, data, w.project.ID)
	require.NoError(t, err)
	require.Len(t, result.Created, 1)

	c := result.Created[0]
	assert.Equal(t, 1500.25, c.AmountGross)
	assert.Equal(t, "2024-04", c.InvoiceMonth)
	assert.Equal(t, "Opaž", c.Description)
	assert.Equal(t, "R-9", c.InvoiceNo)
	assert.Equal(t, w.phase.ID, c.PhaseID)
	assert.Equal(t, w.contractor.ID, c.ContractorID)
}

func TestImportCostsCSV_Errors(t *testing.T) {
	w := newWorld(t)

	tests := []struct {
		name      string
		data      string
		projectID string
		reason    string
	}{
		{"empty file", "", w.project.ID, "CSV je prazen."},
		{"no project", "phase,contractor\n", "", "Projekt je obvezen"},
		{"bad amount", "phase,contractor,amount_gross\nTemelji,ACME,abc\n", w.project.ID, "Neveljaven znesek v vrstici 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := w.store.ImportCostsCSV(w.ctx, tt.data, tt.projectID)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrValidation))
			assert.Equal(t, tt.reason, err.Error())
		})
	}
}
