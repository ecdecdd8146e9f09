package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/gradnja/stroski-api/internal/domain"
	"go.uber.org/zap"
)

// costCSVHeader is the fixed column order of exported cost files
var costCSVHeader = []string{
	"invoice_date", "phase", "subphase", "contractor",
	"description", "amount_gross", "invoice_month", "invoice_no",
}

// Accepted header names per column on import, lowercase. The first name of
// each list is the one written on export.
var costCSVColumns = map[string][]string{
	"date":        {"invoice_date", "date"},
	"phase":       {"phase"},
	"subphase":    {"subphase"},
	"contractor":  {"contractor"},
	"description": {"description", "title"},
	"amount":      {"amount_gross", "amountgross", "amountnet", "unitprice"},
	"month":       {"invoice_month", "invoicemonth"},
	"invoice_no":  {"invoice_no", "invoiceno"},
}

const (
	unknownPhaseName      = "Neznana faza"
	unknownContractorName = "Neznan izvajalec"
)

// ExportCostsCSV renders the project's costs, filtered and sorted like
// ListCosts but never paginated. Strings are quoted with doubled-quote
// escaping, numbers are written bare, lines are joined with \n.
func (s *Store) ExportCostsCSV(ctx context.Context, projectID string, params domain.CostListParams) (string, error) {
	if err := s.Init(ctx); err != nil {
		return "", err
	}

	params.ProjectID = projectID

	lines := []string{strings.Join(costCSVHeader, ",")}
	s.read(func(st *domain.State) {
		items := s.queryCosts(st, params.CostFilters, params.Sort)
		for _, c := range items {
			phaseName, subphaseName, contractorName := "", "", ""
			if p, ok := findPhase(st, c.PhaseID); ok {
				phaseName = p.Name
			}
			if sp, ok := findSubphase(st, c.SubphaseID); ok {
				subphaseName = sp.Name
			}
			if ctr, ok := findContractor(st, c.ContractorID); ok {
				contractorName = ctr.Name
			}
			row := []string{
				quoteCSV(c.InvoiceDate),
				quoteCSV(phaseName),
				quoteCSV(subphaseName),
				quoteCSV(contractorName),
				quoteCSV(c.Description),
				strconv.FormatFloat(c.AmountGross, 'f', -1, 64),
				quoteCSV(c.InvoiceMonth),
				quoteCSV(c.InvoiceNo),
			}
			lines = append(lines, strings.Join(row, ","))
		}
	})
	return strings.Join(lines, "\n"), nil
}

func quoteCSV(v string) string {
	return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
}

type costRow struct {
	line   int
	values map[string]string
}

// ImportCostsCSV creates costs from a comma-separated file. Phases and
// contractors are matched by case-insensitive name within the project. If any
// name cannot be resolved nothing is created and the missing names are returned.
func (s *Store) ImportCostsCSV(ctx context.Context, data string, projectID string) (*domain.ImportCostsResult, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}

	if projectID == "" {
		return nil, domain.NewValidationError("Projekt je obvezen")
	}

	rows, err := parseCostCSV(data)
	if err != nil {
		return nil, err
	}

	result := &domain.ImportCostsResult{
		Created:            []domain.Cost{},
		MissingPhases:      []string{},
		MissingContractors: []string{},
	}

	err = s.serialize(func() error {
		phases := make(map[string]domain.Phase)
		for _, p := range visiblePhases(s.state, projectID) {
			key := strings.ToLower(p.Name)
			if _, ok := phases[key]; !ok {
				phases[key] = p
			}
		}
		contractors := make(map[string]domain.Contractor)
		for _, c := range s.state.Contractors {
			if c.IsArchived || (c.ProjectID != "" && c.ProjectID != projectID) {
				continue
			}
			key := strings.ToLower(c.Name)
			if _, ok := contractors[key]; !ok {
				contractors[key] = c
			}
		}

		missingPhases := newOrderedSet()
		missingContractors := newOrderedSet()
		pending := make([]domain.CostInput, 0, len(rows))

		for _, row := range rows {
			phaseName := row.values["phase"]
			contractorName := row.values["contractor"]

			phase, phaseOK := phases[strings.ToLower(phaseName)]
			contractor, contractorOK := contractors[strings.ToLower(contractorName)]
			if !phaseOK {
				missingPhases.add(orDefault(phaseName, unknownPhaseName))
			}
			if !contractorOK {
				missingContractors.add(orDefault(contractorName, unknownContractorName))
			}
			if !phaseOK || !contractorOK {
				continue
			}

			amount, err := parseAmount(row.values["amount"])
			if err != nil {
				return domain.NewValidationError(fmt.Sprintf("Neveljaven znesek v vrstici %d", row.line))
			}

			in := domain.CostInput{
				ProjectID:    projectID,
				PhaseID:      phase.ID,
				ContractorID: contractor.ID,
				Description:  row.values["description"],
				AmountGross:  amount,
				InvoiceDate:  row.values["date"],
				InvoiceMonth: row.values["month"],
				InvoiceNo:    row.values["invoice_no"],
			}
			if name := row.values["subphase"]; name != "" {
				if sub, ok := findSubphaseByName(s.state, phase.ID, name); ok {
					in.SubphaseID = sub.ID
				}
			}
			pending = append(pending, in)
		}

		if missingPhases.len() > 0 || missingContractors.len() > 0 {
			result.MissingPhases = missingPhases.items
			result.MissingContractors = missingContractors.items
			return nil
		}

		created, err := s.bulkCreate(pending)
		if err != nil {
			return err
		}
		result.Created = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Cost CSV imported",
		zap.String("project_id", projectID),
		zap.Int("rows", len(rows)),
		zap.Int("created", len(result.Created)),
		zap.Int("missing_phases", len(result.MissingPhases)),
		zap.Int("missing_contractors", len(result.MissingContractors)),
	)
	return result, nil
}

func parseCostCSV(data string) ([]costRow, error) {
	r := csv.NewReader(strings.NewReader(strings.TrimPrefix(data, "\ufeff")))
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, domain.NewValidationError(fmt.Sprintf("CSV ni veljaven: %v", err))
	}
	if len(records) == 0 {
		return nil, domain.NewValidationError("CSV je prazen.")
	}

	headers := make([]string, len(records[0]))
	for idx, h := range records[0] {
		headers[idx] = strings.ToLower(strings.TrimSpace(h))
	}

	// column name -> record index, earlier aliases win
	columns := make(map[string]int)
	for column, aliases := range costCSVColumns {
	aliasLoop:
		for _, alias := range aliases {
			for idx, h := range headers {
				if h == alias {
					columns[column] = idx
					break aliasLoop
				}
			}
		}
	}

	rows := make([]costRow, 0, len(records)-1)
	for i, rec := range records[1:] {
		if blankRecord(rec) {
			continue
		}
		values := make(map[string]string, len(columns))
		for column, idx := range columns {
			if idx < len(rec) {
				values[column] = strings.TrimSpace(rec[idx])
			}
		}
		rows = append(rows, costRow{line: i + 2, values: values})
	}
	return rows, nil
}

// parseAmount accepts "1234.5", "1234,5" and an empty cell (0)
func parseAmount(v string) (float64, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, nil
	}
	if !strings.Contains(v, ".") {
		v = strings.Replace(v, ",", ".", 1)
	}
	return strconv.ParseFloat(v, 64)
}

func findSubphaseByName(st *domain.State, phaseID, name string) (*domain.Subphase, bool) {
	for i := range st.Subphases {
		sub := &st.Subphases[i]
		if sub.MainPhaseID == phaseID && strings.EqualFold(sub.Name, name) {
			return sub, true
		}
	}
	return nil, false
}

func blankRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// orderedSet keeps first-insertion order
type orderedSet struct {
	seen  map[string]struct{}
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{}), items: []string{}}
}

func (o *orderedSet) add(v string) {
	if _, ok := o.seen[v]; ok {
		return
	}
	o.seen[v] = struct{}{}
	o.items = append(o.items, v)
}

func (o *orderedSet) len() int {
	return len(o.items)
}
