package store

import (
	"context"
	"sort"
	"strings"

	"github.com/gradnja/stroski-api/internal/domain"
	"go.uber.org/zap"
)

// ListProjects returns all projects, newest first
func (s *Store) ListProjects(ctx context.Context) ([]domain.Project, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}

	var out []domain.Project
	s.read(func(st *domain.State) {
		out = make([]domain.Project, 0, len(st.Projects))
		for _, p := range st.Projects {
			out = append(out, p.Clone())
		}
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out, nil
}

// CreateProject adds a project. The first project created while none is
// active becomes the active project.
func (s *Store) CreateProject(ctx context.Context, req domain.CreateProjectRequest) (*domain.Project, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.NewValidationError("Naziv je obvezen")
	}

	var created domain.Project
	err := s.serialize(func() error {
		now := s.timestamp()
		created = domain.Project{
			ID:          s.newID(),
			Name:        name,
			Description: req.Description,
			Location:    req.Location,
			NetM2:       req.NetM2,
			GrossM2:     req.GrossM2,
			VolumeM3:    req.VolumeM3,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		created = created.Clone()
		return s.mutate(func(st *domain.State) {
			st.Projects = append(st.Projects, created)
			if st.Meta.ActiveProjectID == nil {
				id := created.ID
				st.Meta.ActiveProjectID = &id
			}
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Project created", zap.String("project_id", created.ID), zap.String("name", created.Name))
	out := created.Clone()
	return &out, nil
}

// UpdateProject applies a partial update. It returns nil when the project does not exist.
func (s *Store) UpdateProject(ctx context.Context, id string, req domain.UpdateProjectRequest) (*domain.Project, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}

	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return nil, domain.NewValidationError("Naziv je obvezen")
	}

	var updated *domain.Project
	err := s.serialize(func() error {
		if _, ok := findProject(s.state, id); !ok {
			return nil
		}
		return s.mutate(func(st *domain.State) {
			p, _ := findProject(st, id)
			if req.Name != nil {
				p.Name = strings.TrimSpace(*req.Name)
			}
			if req.Description != nil {
				p.Description = cloneString(req.Description)
			}
			if req.Location != nil {
				p.Location = cloneString(req.Location)
			}
			if req.NetM2 != nil {
				p.NetM2 = cloneFloat(req.NetM2)
			}
			if req.GrossM2 != nil {
				p.GrossM2 = cloneFloat(req.GrossM2)
			}
			if req.VolumeM3 != nil {
				p.VolumeM3 = cloneFloat(req.VolumeM3)
			}
			p.UpdatedAt = s.timestamp()
			out := p.Clone()
			updated = &out
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteProject archives a project. If it was active, the next non-archived
// project becomes active, or none.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	if err := s.Init(ctx); err != nil {
		return err
	}

	return s.serialize(func() error {
		if _, ok := findProject(s.state, id); !ok {
			return nil
		}
		err := s.mutate(func(st *domain.State) {
			p, _ := findProject(st, id)
			p.IsArchived = true
			p.UpdatedAt = s.timestamp()

			if st.Meta.ActiveProjectID != nil && *st.Meta.ActiveProjectID == id {
				st.Meta.ActiveProjectID = nil
				for _, next := range st.Projects {
					if !next.IsArchived && next.ID != id {
						nextID := next.ID
						st.Meta.ActiveProjectID = &nextID
						break
					}
				}
			}
		})
		if err == nil {
			s.logger.Info("Project archived", zap.String("project_id", id))
		}
		return err
	})
}

// SetActiveProject selects the active project. It returns nil without
// changing anything when the project is missing or archived.
func (s *Store) SetActiveProject(ctx context.Context, id string) (*string, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}

	var active *string
	err := s.serialize(func() error {
		p, ok := findProject(s.state, id)
		if !ok || p.IsArchived {
			return nil
		}
		err := s.mutate(func(st *domain.State) {
			activeID := id
			st.Meta.ActiveProjectID = &activeID
		})
		if err != nil {
			return err
		}
		result := id
		active = &result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return active, nil
}

// GetActiveProject returns the active project id, or nil
func (s *Store) GetActiveProject(ctx context.Context) (*string, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}

	var active *string
	s.read(func(st *domain.State) {
		active = cloneString(st.Meta.ActiveProjectID)
	})
	return active, nil
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
