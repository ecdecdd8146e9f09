package store

import (
	"strings"

	"github.com/gradnja/stroski-api/internal/domain"
)

func findProject(st *domain.State, id string) (*domain.Project, bool) {
	for i := range st.Projects {
		if st.Projects[i].ID == id {
			return &st.Projects[i], true
		}
	}
	return nil, false
}

func findPhase(st *domain.State, id string) (*domain.Phase, bool) {
	for i := range st.Phases {
		if st.Phases[i].ID == id {
			return &st.Phases[i], true
		}
	}
	return nil, false
}

func findSubphase(st *domain.State, id string) (*domain.Subphase, bool) {
	for i := range st.Subphases {
		if st.Subphases[i].ID == id {
			return &st.Subphases[i], true
		}
	}
	return nil, false
}

func findContractor(st *domain.State, id string) (*domain.Contractor, bool) {
	for i := range st.Contractors {
		if st.Contractors[i].ID == id {
			return &st.Contractors[i], true
		}
	}
	return nil, false
}

func findCost(st *domain.State, id string) (*domain.Cost, bool) {
	for i := range st.Costs {
		if st.Costs[i].ID == id {
			return &st.Costs[i], true
		}
	}
	return nil, false
}

func findDocument(st *domain.State, id string) (*domain.Document, bool) {
	for i := range st.Documents {
		if st.Documents[i].ID == id {
			return &st.Documents[i], true
		}
	}
	return nil, false
}

// findCatchAll returns the "Neopredeljeno" subphase of a phase, matched case-insensitively
func findCatchAll(st *domain.State, phaseID string) (*domain.Subphase, bool) {
	for i := range st.Subphases {
		sub := &st.Subphases[i]
		if sub.MainPhaseID == phaseID && strings.EqualFold(sub.Name, domain.DefaultSubphaseName) {
			return sub, true
		}
	}
	return nil, false
}

// newCatchAll builds, without storing, the catch-all subphase for a phase
func newCatchAll(st *domain.State, phaseID, id string) domain.Subphase {
	sub := domain.Subphase{
		ID:          id,
		MainPhaseID: phaseID,
		Name:        domain.DefaultSubphaseName,
		OrderNo:     maxSubphaseOrder(st, phaseID, "", false) + 1,
	}
	if phase, ok := findPhase(st, phaseID); ok {
		sub.ProjectID = phase.ProjectID
	}
	return sub
}

// ensureCatchAll returns the phase's catch-all subphase, creating it if needed
func ensureCatchAll(st *domain.State, phaseID string, newID func() string) domain.Subphase {
	if sub, ok := findCatchAll(st, phaseID); ok {
		return *sub
	}
	sub := newCatchAll(st, phaseID, newID())
	st.Subphases = append(st.Subphases, sub)
	return sub
}

// maxSubphaseOrder returns the highest order_no under a phase. When scoped is
// set only subphases of projectID are considered.
func maxSubphaseOrder(st *domain.State, phaseID, projectID string, scoped bool) int {
	max := 0
	for _, s := range st.Subphases {
		if s.MainPhaseID != phaseID {
			continue
		}
		if scoped && s.ProjectID != projectID {
			continue
		}
		if s.OrderNo > max {
			max = s.OrderNo
		}
	}
	return max
}

// phasing is a reconciled (phase, subphase) pair
type phasing struct {
	PhaseID    string
	SubphaseID string
	// planned marks a catch-all subphase that does not exist yet; it is
	// created only after every check has passed
	planned bool
}

// catchAllPlans collects catch-all subphases to create once validation passes
type catchAllPlans struct {
	byPhase map[string]string
	order   []string
}

func newCatchAllPlans() *catchAllPlans {
	return &catchAllPlans{byPhase: make(map[string]string)}
}

// resolvePhasing reconciles a phase/subphase pair without mutating state.
// A given subphase must exist and decides the phase. A phase without a
// subphase resolves to its catch-all, reusing pending catch-alls from plans.
func (s *Store) resolvePhasing(st *domain.State, phaseID, subphaseID string, plans *catchAllPlans) (phasing, error) {
	if subphaseID != "" {
		sub, ok := findSubphase(st, subphaseID)
		if !ok {
			return phasing{}, domain.NewValidationError("Podfaza ne obstaja")
		}
		return phasing{PhaseID: sub.MainPhaseID, SubphaseID: sub.ID}, nil
	}

	if phaseID == "" {
		return phasing{}, nil
	}
	if sub, ok := findCatchAll(st, phaseID); ok {
		return phasing{PhaseID: phaseID, SubphaseID: sub.ID}, nil
	}
	if id, ok := plans.byPhase[phaseID]; ok {
		return phasing{PhaseID: phaseID, SubphaseID: id, planned: true}, nil
	}
	id := s.newID()
	plans.byPhase[phaseID] = id
	plans.order = append(plans.order, phaseID)
	return phasing{PhaseID: phaseID, SubphaseID: id, planned: true}, nil
}

// relationRefs are the references a cost write must satisfy. Empty fields are skipped.
type relationRefs struct {
	ProjectID    string
	PhaseID      string
	SubphaseID   string
	ContractorID string
	// SubphasePlanned skips the subphase lookup for a catch-all not yet created
	SubphasePlanned bool
}

// assertRelations checks, in order: project exists and is active, phase
// exists, subphase exists and belongs to the phase, contractor exists and is active.
func assertRelations(st *domain.State, refs relationRefs) error {
	if refs.ProjectID != "" {
		project, ok := findProject(st, refs.ProjectID)
		if !ok {
			return domain.NewValidationError("Projekt ne obstaja")
		}
		if project.IsArchived {
			return domain.NewValidationError("Projekt je arhiviran")
		}
	}

	if refs.PhaseID != "" {
		if _, ok := findPhase(st, refs.PhaseID); !ok {
			return domain.NewValidationError("Faza ne obstaja")
		}
	}

	if refs.SubphaseID != "" && !refs.SubphasePlanned {
		sub, ok := findSubphase(st, refs.SubphaseID)
		if !ok {
			return domain.NewValidationError("Podfaza ne obstaja")
		}
		if refs.PhaseID != "" && refs.PhaseID != sub.MainPhaseID {
			return domain.NewValidationError("Podfaza ne pripada izbrani glavni fazi")
		}
	}

	if refs.ContractorID != "" {
		contractor, ok := findContractor(st, refs.ContractorID)
		if !ok {
			return domain.NewValidationError("Izvajalec ne obstaja")
		}
		if contractor.IsArchived {
			return domain.NewValidationError("Izvajalec je arhiviran")
		}
	}

	return nil
}

// materialize stores the catch-all subphases planned during validation
func materialize(st *domain.State, plans *catchAllPlans) {
	for _, phaseID := range plans.order {
		if _, ok := findCatchAll(st, phaseID); ok {
			continue
		}
		st.Subphases = append(st.Subphases, newCatchAll(st, phaseID, plans.byPhase[phaseID]))
	}
}
