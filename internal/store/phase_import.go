package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/gradnja/stroski-api/internal/domain"
	"go.uber.org/zap"
)

var phaseCSVHeader = []string{"glavna_faza_id", "glavna_faza_naziv", "podfaza_id", "podfaza_naziv", "zaporedje"}

type phaseRow struct {
	phaseID, phaseName, subID, subName, order string
}

// ImportPhasesCSV upserts a project's phases and subphases from a
// semicolon-separated file with the exact header
// glavna_faza_id;glavna_faza_naziv;podfaza_id;podfaza_naziv;zaporedje.
//
// Phases are matched by id within the project, falling back to an unscoped
// phase with the same id, which is then claimed by the project. Phases whose
// id is an integer take it as order_no; the others follow in order of first
// appearance. Subphase order is renumbered contiguously per phase.
func (s *Store) ImportPhasesCSV(ctx context.Context, data string, projectID string) (*domain.PhasesImportResult, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}

	if projectID == "" {
		return nil, domain.NewValidationError("Ni aktivnega projekta")
	}

	rows, err := parsePhaseCSV(data)
	if err != nil {
		return nil, err
	}

	validRows := 0
	for _, row := range rows {
		if row.phaseID != "" && row.phaseName != "" {
			validRows++
		}
	}

	result := &domain.PhasesImportResult{ProjectID: projectID, ValidRows: validRows}
	err = s.serialize(func() error {
		if err := assertRelations(s.state, relationRefs{ProjectID: projectID}); err != nil {
			return err
		}
		if validRows == 0 {
			return domain.NewValidationError("CSV ni vseboval veljavnih faz")
		}
		return s.mutate(func(st *domain.State) {
			result.MainPhases, result.Subphases = applyPhaseRows(st, rows, projectID, s.newID)
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Phase CSV imported",
		zap.String("project_id", projectID),
		zap.Int("main_phases", result.MainPhases),
		zap.Int("subphases", result.Subphases),
		zap.Int("valid_rows", result.ValidRows),
	)
	return result, nil
}

func parsePhaseCSV(data string) ([]phaseRow, error) {
	r := csv.NewReader(strings.NewReader(strings.TrimPrefix(data, "\ufeff")))
	r.Comma = ';'
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, domain.NewValidationError(fmt.Sprintf("CSV ni veljaven: %v", err))
	}

	// Drop blank lines
	kept := records[:0]
	for _, rec := range records {
		if !blankRecord(rec) {
			kept = append(kept, rec)
		}
	}
	records = kept
	if len(records) == 0 {
		return nil, domain.NewValidationError("CSV je prazen.")
	}

	headerErr := domain.NewValidationError("CSV ni veljaven. Pričakovani stolpci: " + strings.Join(phaseCSVHeader, ";"))
	if len(records[0]) != len(phaseCSVHeader) {
		return nil, headerErr
	}
	index := make(map[string]int, len(phaseCSVHeader))
	for idx, h := range records[0] {
		name := strings.ToLower(strings.TrimSpace(h))
		if _, dup := index[name]; dup {
			return nil, headerErr
		}
		index[name] = idx
	}
	for _, h := range phaseCSVHeader {
		if _, ok := index[h]; !ok {
			return nil, headerErr
		}
	}

	rows := make([]phaseRow, 0, len(records)-1)
	for _, rec := range records[1:] {
		get := func(field string) string {
			idx := index[field]
			if idx >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[idx])
		}
		rows = append(rows, phaseRow{
			phaseID:   get("glavna_faza_id"),
			phaseName: get("glavna_faza_naziv"),
			subID:     get("podfaza_id"),
			subName:   get("podfaza_naziv"),
			order:     get("zaporedje"),
		})
	}
	return rows, nil
}

// applyPhaseRows upserts the rows into st and normalizes ordering. It returns
// the number of distinct main phases and subphases referenced.
func applyPhaseRows(st *domain.State, rows []phaseRow, projectID string, newID func() string) (int, int) {
	// "<project>::<id>" -> index into st.Phases
	phasesByKey := make(map[string]int, len(st.Phases))
	for i, p := range st.Phases {
		phasesByKey[p.ProjectID+"::"+p.ID] = i
	}

	orderHints := make(map[string]int)
	idHints := make(map[string]int)
	mainKeys := make(map[string]struct{})
	subKeys := make(map[string]struct{})

	for idx, row := range rows {
		if row.phaseID == "" || row.phaseName == "" {
			continue
		}

		key := projectID + "::" + row.phaseID
		fallbackKey := "::" + row.phaseID
		pi, ok := phasesByKey[key]
		if !ok {
			pi, ok = phasesByKey[fallbackKey]
		}
		if !ok {
			st.Phases = append(st.Phases, domain.Phase{
				ID:        row.phaseID,
				Name:      row.phaseName,
				OrderNo:   maxProjectPhaseOrder(st, projectID) + 1,
				ProjectID: projectID,
			})
			pi = len(st.Phases) - 1
			phasesByKey[key] = pi
		} else {
			phase := &st.Phases[pi]
			phase.Name = row.phaseName
			if phase.ProjectID == "" {
				phase.ProjectID = projectID
			}
			phasesByKey[key] = pi
			delete(phasesByKey, fallbackKey)
		}

		mainKeys[key] = struct{}{}
		if _, seen := orderHints[key]; !seen {
			orderHints[key] = idx + 1
			if n, ok := leadingInt(row.phaseID); ok {
				idHints[key] = n
			}
		}

		if row.subID == "" || row.subName == "" {
			continue
		}

		phaseID := st.Phases[pi].ID
		orderNo := 0
		if f, err := strconv.ParseFloat(row.order, 64); err == nil && f > 0 {
			orderNo = int(f)
		}
		if orderNo == 0 {
			orderNo = maxImportSiblingOrder(st, phaseID, projectID) + 1
		}

		updated := false
		for i := range st.Subphases {
			sub := &st.Subphases[i]
			if sub.ProjectID != projectID && sub.ProjectID != "" {
				continue
			}
			if sub.ID != row.subID && !(sub.MainPhaseID == phaseID && strings.EqualFold(sub.Name, row.subName)) {
				continue
			}
			sub.Name = row.subName
			sub.MainPhaseID = phaseID
			sub.OrderNo = orderNo
			sub.ProjectID = projectID
			updated = true
			break
		}
		if !updated {
			st.Subphases = append(st.Subphases, domain.Subphase{
				ID:          row.subID,
				MainPhaseID: phaseID,
				Name:        row.subName,
				OrderNo:     orderNo,
				ProjectID:   projectID,
			})
		}
		subKeys[projectID+"::"+row.subID] = struct{}{}
	}

	renumberProjectPhases(st, projectID, orderHints, idHints)
	renumberProjectSubphases(st, projectID)

	return len(mainKeys), len(subKeys)
}

// renumberProjectPhases orders the project's phases by integer id hints
// first, then by first appearance in the file, then by existing order_no.
func renumberProjectPhases(st *domain.State, projectID string, orderHints, idHints map[string]int) {
	var indices []int
	for i, p := range st.Phases {
		if p.ProjectID == projectID {
			indices = append(indices, i)
		}
	}

	keyOf := func(i int) string { return projectID + "::" + st.Phases[i].ID }
	sort.SliceStable(indices, func(a, b int) bool {
		ka, kb := keyOf(indices[a]), keyOf(indices[b])
		ha, okA := idHints[ka]
		hb, okB := idHints[kb]
		switch {
		case okA && okB:
			return ha < hb
		case okA:
			return true
		case okB:
			return false
		}
		oa, ok := orderHints[ka]
		if !ok {
			oa = st.Phases[indices[a]].OrderNo
		}
		ob, ok := orderHints[kb]
		if !ok {
			ob = st.Phases[indices[b]].OrderNo
		}
		return oa < ob
	})

	for pos, i := range indices {
		if hint, ok := idHints[keyOf(i)]; ok {
			st.Phases[i].OrderNo = hint
		} else {
			st.Phases[i].OrderNo = pos + 1
		}
	}
}

// renumberProjectSubphases makes the project's subphase order contiguous per phase
func renumberProjectSubphases(st *domain.State, projectID string) {
	groups := make(map[string][]int)
	var phaseOrder []string
	for i, sub := range st.Subphases {
		if sub.ProjectID != projectID {
			continue
		}
		if _, ok := groups[sub.MainPhaseID]; !ok {
			phaseOrder = append(phaseOrder, sub.MainPhaseID)
		}
		groups[sub.MainPhaseID] = append(groups[sub.MainPhaseID], i)
	}

	for _, phaseID := range phaseOrder {
		indices := groups[phaseID]
		sort.SliceStable(indices, func(a, b int) bool {
			return st.Subphases[indices[a]].OrderNo < st.Subphases[indices[b]].OrderNo
		})
		for pos, i := range indices {
			st.Subphases[i].OrderNo = pos + 1
		}
	}
}

func maxProjectPhaseOrder(st *domain.State, projectID string) int {
	max := 0
	for _, p := range st.Phases {
		if p.ProjectID == projectID && p.OrderNo > max {
			max = p.OrderNo
		}
	}
	return max
}

// maxImportSiblingOrder considers the phase's subphases of the project and unscoped ones
func maxImportSiblingOrder(st *domain.State, phaseID, projectID string) int {
	max := 0
	for _, s := range st.Subphases {
		if s.MainPhaseID != phaseID || (s.ProjectID != "" && s.ProjectID != projectID) {
			continue
		}
		if s.OrderNo > max {
			max = s.OrderNo
		}
	}
	return max
}

// leadingInt parses an optional sign and leading decimal digits, ignoring the
// rest of the string. "12", "12a" and " -3" parse; "a12" does not.
func leadingInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digitsStart := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digitsStart {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
