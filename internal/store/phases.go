package store

import (
	"context"
	"sort"
	"strings"

	"github.com/gradnja/stroski-api/internal/domain"
)

// ListPhases returns phases ordered by order_no. With a project id only
// global phases and that project's phases are returned.
func (s *Store) ListPhases(ctx context.Context, projectID string) ([]domain.Phase, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}

	var out []domain.Phase
	s.read(func(st *domain.State) {
		out = visiblePhases(st, projectID)
	})
	return out, nil
}

func visiblePhases(st *domain.State, projectID string) []domain.Phase {
	out := make([]domain.Phase, 0, len(st.Phases))
	for _, p := range st.Phases {
		if projectID == "" || p.ProjectID == "" || p.ProjectID == projectID {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OrderNo < out[j].OrderNo })
	return out
}

// CreatePhase adds a phase. When req.ID names an existing phase that phase is
// updated instead and keeps its order_no unless one is given. A new phase
// defaults to the order_no after the highest existing one.
func (s *Store) CreatePhase(ctx context.Context, req domain.CreatePhaseRequest) (*domain.Phase, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.NewValidationError("Naziv je obvezen")
	}

	var result domain.Phase
	err := s.serialize(func() error {
		if req.ProjectID != "" {
			if err := assertRelations(s.state, relationRefs{ProjectID: req.ProjectID}); err != nil {
				return err
			}
		}

		orderNo := maxPhaseOrder(s.state) + 1
		if req.OrderNo != nil {
			orderNo = *req.OrderNo
		}

		return s.mutate(func(st *domain.State) {
			if req.ID != "" {
				if existing, ok := findPhase(st, req.ID); ok {
					existing.Name = name
					if req.OrderNo != nil {
						existing.OrderNo = *req.OrderNo
					}
					if existing.ProjectID == "" {
						existing.ProjectID = req.ProjectID
					}
					result = *existing
					return
				}
			}

			id := req.ID
			if id == "" {
				id = s.newID()
			}
			result = domain.Phase{ID: id, Name: name, OrderNo: orderNo, ProjectID: req.ProjectID}
			st.Phases = append(st.Phases, result)
		})
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdatePhase changes name, budget and order. It returns nil when the phase does not exist.
func (s *Store) UpdatePhase(ctx context.Context, id string, req domain.UpdatePhaseRequest) (*domain.Phase, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}

	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return nil, domain.NewValidationError("Naziv je obvezen")
	}
	if req.BudgetPlanned != nil && *req.BudgetPlanned < 0 {
		return nil, domain.NewValidationError("Znesek ne sme biti negativen")
	}

	var updated *domain.Phase
	err := s.serialize(func() error {
		if _, ok := findPhase(s.state, id); !ok {
			return nil
		}
		return s.mutate(func(st *domain.State) {
			phase, _ := findPhase(st, id)
			if req.Name != nil {
				phase.Name = strings.TrimSpace(*req.Name)
			}
			if req.BudgetPlanned != nil {
				phase.BudgetPlanned = *req.BudgetPlanned
			}
			if req.OrderNo != nil {
				phase.OrderNo = *req.OrderNo
			}
			out := *phase
			updated = &out
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeletePhase removes a phase and its own subphases. Costs and contractors
// referencing them are left as they are.
func (s *Store) DeletePhase(ctx context.Context, id string) error {
	if err := s.Init(ctx); err != nil {
		return err
	}

	return s.serialize(func() error {
		return s.mutate(func(st *domain.State) {
			phases := st.Phases[:0]
			for _, p := range st.Phases {
				if p.ID != id {
					phases = append(phases, p)
				}
			}
			st.Phases = phases

			subphases := st.Subphases[:0]
			for _, sp := range st.Subphases {
				if sp.MainPhaseID != id {
					subphases = append(subphases, sp)
				}
			}
			st.Subphases = subphases
		})
	})
}

// ReorderPhases sets order_no to position+1 for every listed id and returns
// all phases in their new order. Unlisted phases keep their order_no.
func (s *Store) ReorderPhases(ctx context.Context, order []string) ([]domain.Phase, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}

	err := s.serialize(func() error {
		return s.mutate(func(st *domain.State) {
			for idx, id := range order {
				if phase, ok := findPhase(st, id); ok {
					phase.OrderNo = idx + 1
				}
			}
		})
	})
	if err != nil {
		return nil, err
	}
	return s.ListPhases(ctx, "")
}

func maxPhaseOrder(st *domain.State) int {
	max := 0
	for _, p := range st.Phases {
		if p.OrderNo > max {
			max = p.OrderNo
		}
	}
	return max
}

// ListSubphases returns the subphases of a phase ordered by order_no. For a
// project-scoped phase only subphases of the same project are returned.
func (s *Store) ListSubphases(ctx context.Context, phaseID string) ([]domain.Subphase, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}

	var out []domain.Subphase
	s.read(func(st *domain.State) {
		projectID := ""
		if phase, ok := findPhase(st, phaseID); ok {
			projectID = phase.ProjectID
		}
		out = make([]domain.Subphase, 0)
		for _, sp := range st.Subphases {
			if sp.MainPhaseID != phaseID {
				continue
			}
			if projectID != "" && sp.ProjectID != projectID {
				continue
			}
			out = append(out, sp)
		}
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].OrderNo < out[j].OrderNo })
	return out, nil
}

// CreateSubphase adds a subphase under a phase. A subphase in the same
// project scope with the same id, or with the same name (case-insensitive)
// under this phase, is updated instead.
func (s *Store) CreateSubphase(ctx context.Context, phaseID string, req domain.CreateSubphaseRequest) (*domain.Subphase, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.NewValidationError("Naziv je obvezen")
	}

	var result domain.Subphase
	err := s.serialize(func() error {
		phase, ok := findPhase(s.state, phaseID)
		if !ok {
			return domain.NewValidationError("Faza ne obstaja")
		}
		projectID := phase.ProjectID

		orderNo := maxSubphaseOrder(s.state, phaseID, projectID, projectID != "") + 1
		if req.OrderNo != nil {
			orderNo = *req.OrderNo
		}

		return s.mutate(func(st *domain.State) {
			for i := range st.Subphases {
				existing := &st.Subphases[i]
				if existing.ProjectID != projectID {
					continue
				}
				sameID := req.ID != "" && existing.ID == req.ID
				sameName := existing.MainPhaseID == phaseID && strings.EqualFold(existing.Name, name)
				if !sameID && !sameName {
					continue
				}
				existing.Name = name
				if req.OrderNo != nil {
					existing.OrderNo = *req.OrderNo
				}
				existing.MainPhaseID = phaseID
				result = *existing
				return
			}

			id := req.ID
			if id == "" {
				id = s.newID()
			}
			result = domain.Subphase{
				ID:          id,
				MainPhaseID: phaseID,
				Name:        name,
				OrderNo:     orderNo,
				ProjectID:   projectID,
			}
			st.Subphases = append(st.Subphases, result)
		})
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateSubphase renames, reorders or moves a subphase. Moving re-derives its
// project from the target phase. It returns nil when the subphase does not exist.
func (s *Store) UpdateSubphase(ctx context.Context, id string, req domain.UpdateSubphaseRequest) (*domain.Subphase, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}

	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return nil, domain.NewValidationError("Naziv je obvezen")
	}

	var updated *domain.Subphase
	err := s.serialize(func() error {
		if _, ok := findSubphase(s.state, id); !ok {
			return nil
		}
		var target *domain.Phase
		if req.MainPhaseID != nil && *req.MainPhaseID != "" {
			phase, ok := findPhase(s.state, *req.MainPhaseID)
			if !ok {
				return domain.NewValidationError("Faza ne obstaja")
			}
			target = phase
		}

		return s.mutate(func(st *domain.State) {
			sub, _ := findSubphase(st, id)
			if req.Name != nil {
				sub.Name = strings.TrimSpace(*req.Name)
			}
			if req.OrderNo != nil {
				sub.OrderNo = *req.OrderNo
			}
			if target != nil {
				sub.MainPhaseID = target.ID
				if target.ProjectID != "" {
					sub.ProjectID = target.ProjectID
				}
			}
			out := *sub
			updated = &out
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteSubphase removes a subphase
func (s *Store) DeleteSubphase(ctx context.Context, id string) error {
	if err := s.Init(ctx); err != nil {
		return err
	}

	return s.serialize(func() error {
		return s.mutate(func(st *domain.State) {
			subphases := st.Subphases[:0]
			for _, sp := range st.Subphases {
				if sp.ID != id {
					subphases = append(subphases, sp)
				}
			}
			st.Subphases = subphases
		})
	})
}
