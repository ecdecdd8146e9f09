package store

import (
	"context"
	"sort"
	"strings"

	"github.com/gradnja/stroski-api/internal/domain"
	"go.uber.org/zap"
)

// ListContractors returns contractors newest first. A project filter keeps
// that project's contractors and unscoped legacy ones. Archived contractors
// are excluded unless requested.
func (s *Store) ListContractors(ctx context.Context, filters domain.ContractorFilters) ([]domain.Contractor, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}

	out := make([]domain.Contractor, 0)
	s.read(func(st *domain.State) {
		for _, c := range st.Contractors {
			if filters.ProjectID != "" && c.ProjectID != "" && c.ProjectID != filters.ProjectID {
				continue
			}
			if !filters.IncludeArchived && c.IsArchived {
				continue
			}
			out = append(out, c.Clone())
		}
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out, nil
}

// CreateContractor adds a contractor to an active project. At least one
// subphase is required and every subphase of a project-scoped phase must
// belong to the same project. Active names are unique per project.
func (s *Store) CreateContractor(ctx context.Context, req domain.CreateContractorRequest) (*domain.Contractor, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if req.ProjectID == "" {
		return nil, domain.NewValidationError("Projekt je obvezen")
	}
	if name == "" {
		return nil, domain.NewValidationError("Naziv je obvezen")
	}

	var created domain.Contractor
	err := s.serialize(func() error {
		project, ok := findProject(s.state, req.ProjectID)
		if !ok || project.IsArchived {
			return domain.NewValidationError("Projekt ne obstaja ali je arhiviran")
		}

		subphaseIDs := uniqueIDs(req.SubphaseIDs)
		if len(subphaseIDs) == 0 {
			return domain.NewValidationError("Vsaj ena podfaza je obvezna")
		}
		if err := checkContractorSubphases(s.state, subphaseIDs, req.ProjectID); err != nil {
			return err
		}
		if hasActiveContractorNamed(s.state, req.ProjectID, name, "") {
			return domain.NewConflictError("Izvajalec s tem nazivom že obstaja v projektu.")
		}

		now := s.timestamp()
		created = domain.Contractor{
			ID:          s.newID(),
			Name:        name,
			ProjectID:   req.ProjectID,
			SubphaseIDs: subphaseIDs,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return s.mutate(func(st *domain.State) {
			st.Contractors = append(st.Contractors, created.Clone())
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Contractor created",
		zap.String("contractor_id", created.ID),
		zap.String("project_id", created.ProjectID),
	)
	return &created, nil
}

// UpdateContractor applies a partial update, re-validating subphases and name
// uniqueness. It returns nil when the contractor does not exist.
func (s *Store) UpdateContractor(ctx context.Context, id string, req domain.UpdateContractorRequest) (*domain.Contractor, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}

	var updated *domain.Contractor
	err := s.serialize(func() error {
		existing, ok := findContractor(s.state, id)
		if !ok {
			return nil
		}

		next := existing.Clone()
		if req.Name != nil {
			next.Name = strings.TrimSpace(*req.Name)
		}
		if req.ProjectID != nil {
			next.ProjectID = *req.ProjectID
		}
		if req.SubphaseIDs != nil {
			next.SubphaseIDs = *req.SubphaseIDs
		}
		next.SubphaseIDs = uniqueIDs(next.SubphaseIDs)
		if len(next.SubphaseIDs) == 0 {
			return domain.NewValidationError("Vsaj ena podfaza je obvezna")
		}

		if err := checkContractorSubphases(s.state, next.SubphaseIDs, next.ProjectID); err != nil {
			return err
		}
		if next.ProjectID == "" {
			return domain.NewValidationError("Projekt je obvezen")
		}
		if next.Name == "" {
			return domain.NewValidationError("Naziv je obvezen")
		}
		if hasActiveContractorNamed(s.state, next.ProjectID, next.Name, id) {
			return domain.NewConflictError("Izvajalec s tem nazivom že obstaja v projektu.")
		}
		next.UpdatedAt = s.timestamp()

		err := s.mutate(func(st *domain.State) {
			c, _ := findContractor(st, id)
			*c = next
		})
		if err != nil {
			return err
		}
		out := next.Clone()
		updated = &out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteContractor removes a contractor. It fails while any non-archived cost
// references the contractor.
func (s *Store) DeleteContractor(ctx context.Context, id string) error {
	if err := s.Init(ctx); err != nil {
		return err
	}

	return s.serialize(func() error {
		for _, c := range s.state.Costs {
			if c.ContractorID == id && !c.IsArchived {
				return domain.NewValidationError("Izvajalec je uporabljen na stroških. Najprej arhivirajte ali posodobite stroške.")
			}
		}
		return s.mutate(func(st *domain.State) {
			contractors := st.Contractors[:0]
			for _, c := range st.Contractors {
				if c.ID != id {
					contractors = append(contractors, c)
				}
			}
			st.Contractors = contractors
		})
	})
}

// ArchiveContractor sets the archived flag. It returns nil when the contractor does not exist.
func (s *Store) ArchiveContractor(ctx context.Context, id string, archived bool) (*domain.Contractor, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}

	var updated *domain.Contractor
	err := s.serialize(func() error {
		if _, ok := findContractor(s.state, id); !ok {
			return nil
		}
		return s.mutate(func(st *domain.State) {
			c, _ := findContractor(st, id)
			c.IsArchived = archived
			c.UpdatedAt = s.timestamp()
			out := c.Clone()
			updated = &out
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// checkContractorSubphases verifies every subphase exists and, when its phase
// is project-scoped, belongs to projectID
func checkContractorSubphases(st *domain.State, subphaseIDs []string, projectID string) error {
	for _, subID := range subphaseIDs {
		sub, ok := findSubphase(st, subID)
		if !ok {
			return domain.NewValidationError("Podfaza ne obstaja")
		}
		main, ok := findPhase(st, sub.MainPhaseID)
		if projectID != "" && ok && main.ProjectID != "" && main.ProjectID != projectID {
			return domain.NewValidationError("Podfaza ne pripada projektu")
		}
	}
	return nil
}

// hasActiveContractorNamed reports whether another active contractor of the
// project already uses name, compared case-insensitively
func hasActiveContractorNamed(st *domain.State, projectID, name, exceptID string) bool {
	for _, c := range st.Contractors {
		if c.ID == exceptID || c.IsArchived || c.ProjectID != projectID {
			continue
		}
		if strings.EqualFold(c.Name, name) {
			return true
		}
	}
	return false
}
