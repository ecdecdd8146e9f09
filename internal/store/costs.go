package store

import (
	"context"
	"math"

	"github.com/gradnja/stroski-api/internal/domain"
	"go.uber.org/zap"
)

// CreateCost adds a cost. A phase without a subphase is booked on the
// phase's catch-all subphase, which is created when missing.
func (s *Store) CreateCost(ctx context.Context, in domain.CostInput) (*domain.Cost, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}

	var created domain.Cost
	err := s.serialize(func() error {
		plans := newCatchAllPlans()
		cost, err := s.buildCost(s.state, in, plans)
		if err != nil {
			return err
		}
		created = cost
		return s.mutate(func(st *domain.State) {
			materialize(st, plans)
			st.Costs = append(st.Costs, cost.Clone())
		})
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// BulkCreateCosts validates every entry before adding any. Either all entries
// are created with a single write or none is.
func (s *Store) BulkCreateCosts(ctx context.Context, entries []domain.CostInput) ([]domain.Cost, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}

	var created []domain.Cost
	err := s.serialize(func() error {
		var err error
		created, err = s.bulkCreate(entries)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// bulkCreate is BulkCreateCosts for callers already holding the serializer
func (s *Store) bulkCreate(entries []domain.CostInput) ([]domain.Cost, error) {
	created := make([]domain.Cost, 0, len(entries))
	if len(entries) == 0 {
		return created, nil
	}

	plans := newCatchAllPlans()
	for _, in := range entries {
		cost, err := s.buildCost(s.state, in, plans)
		if err != nil {
			return nil, err
		}
		created = append(created, cost)
	}

	err := s.mutate(func(st *domain.State) {
		materialize(st, plans)
		for _, c := range created {
			st.Costs = append(st.Costs, c.Clone())
		}
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Costs created in bulk",
		zap.Int("created", len(created)),
		zap.Int("catch_all_subphases", len(plans.order)),
	)
	return created, nil
}

// buildCost validates a cost input against st and returns the record to
// store. Catch-all subphases it needs are added to plans, not to st.
func (s *Store) buildCost(st *domain.State, in domain.CostInput, plans *catchAllPlans) (domain.Cost, error) {
	if in.ProjectID == "" {
		return domain.Cost{}, domain.NewValidationError("Projekt je obvezen")
	}
	if in.ContractorID == "" {
		return domain.Cost{}, domain.NewValidationError("Izvajalec je obvezen")
	}
	if in.AmountGross < 0 || math.IsNaN(in.AmountGross) {
		return domain.Cost{}, domain.NewValidationError("Znesek ne sme biti negativen")
	}

	ph, err := s.resolvePhasing(st, in.PhaseID, in.SubphaseID, plans)
	if err != nil {
		return domain.Cost{}, err
	}
	if ph.PhaseID == "" || ph.SubphaseID == "" {
		return domain.Cost{}, domain.NewValidationError("Podfaza je obvezna")
	}

	phaseRef := in.PhaseID
	if phaseRef == "" {
		phaseRef = ph.PhaseID
	}
	if err := assertRelations(st, relationRefs{
		ProjectID:       in.ProjectID,
		PhaseID:         phaseRef,
		SubphaseID:      ph.SubphaseID,
		ContractorID:    in.ContractorID,
		SubphasePlanned: ph.planned,
	}); err != nil {
		return domain.Cost{}, err
	}

	now := s.timestamp()
	invoiceDate := in.InvoiceDate
	if invoiceDate == "" {
		invoiceDate = s.today()
	}

	cost := domain.Cost{
		ID:            s.newID(),
		ProjectID:     in.ProjectID,
		PhaseID:       ph.PhaseID,
		SubphaseID:    ph.SubphaseID,
		ContractorID:  in.ContractorID,
		Description:   in.Description,
		AmountGross:   in.AmountGross,
		InvoiceDate:   invoiceDate,
		InvoiceMonth:  invoiceMonth(invoiceDate, in.InvoiceMonth, s.now()),
		InvoiceNo:     in.InvoiceNo,
		PdfAttachment: in.PdfAttachment,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return cost.Clone(), nil
}

// UpdateCost applies a partial update and re-validates the references that
// change. It returns nil when the cost does not exist.
func (s *Store) UpdateCost(ctx context.Context, id string, req domain.UpdateCostRequest) (*domain.Cost, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}

	var updated *domain.Cost
	err := s.serialize(func() error {
		existing, ok := findCost(s.state, id)
		if !ok {
			return nil
		}

		// A new subphase decides the phase; a new phase alone moves the cost
		// to that phase's catch-all subphase
		phaseIn, subIn := existing.PhaseID, existing.SubphaseID
		if req.SubphaseID != nil {
			subIn = *req.SubphaseID
			if req.PhaseID == nil {
				phaseIn = ""
			}
		}
		if req.PhaseID != nil {
			phaseIn = *req.PhaseID
			if req.SubphaseID == nil && phaseIn != existing.PhaseID {
				subIn = ""
			}
		}

		plans := newCatchAllPlans()
		ph, err := s.resolvePhasing(s.state, phaseIn, subIn, plans)
		if err != nil {
			return err
		}

		refs := relationRefs{
			PhaseID:         ph.PhaseID,
			SubphaseID:      ph.SubphaseID,
			SubphasePlanned: ph.planned,
		}
		if req.PhaseID != nil && *req.PhaseID != "" {
			refs.PhaseID = *req.PhaseID
		}
		if req.ProjectID != nil {
			if *req.ProjectID == "" {
				return domain.NewValidationError("Projekt je obvezen")
			}
			refs.ProjectID = *req.ProjectID
		}
		if req.ContractorID != nil {
			refs.ContractorID = *req.ContractorID
		}
		if err := assertRelations(s.state, refs); err != nil {
			return err
		}

		next := existing.Clone()
		if req.ContractorID != nil {
			next.ContractorID = *req.ContractorID
		}
		if ph.SubphaseID == "" {
			return domain.NewValidationError("Podfaza je obvezna")
		}
		if ph.PhaseID == "" || next.ContractorID == "" {
			return domain.NewValidationError("Faza in izvajalec sta obvezna")
		}
		if req.AmountGross != nil {
			if *req.AmountGross < 0 || math.IsNaN(*req.AmountGross) {
				return domain.NewValidationError("Znesek ne sme biti negativen")
			}
			next.AmountGross = *req.AmountGross
		}

		next.PhaseID = ph.PhaseID
		next.SubphaseID = ph.SubphaseID
		if req.ProjectID != nil {
			next.ProjectID = *req.ProjectID
		}
		if req.Description != nil {
			next.Description = *req.Description
		}
		switch {
		case req.InvoiceMonth != nil:
			if req.InvoiceDate != nil {
				next.InvoiceDate = *req.InvoiceDate
			}
			next.InvoiceMonth = invoiceMonth(next.InvoiceDate, *req.InvoiceMonth, s.now())
		case req.InvoiceDate != nil:
			next.InvoiceDate = *req.InvoiceDate
			next.InvoiceMonth = invoiceMonth(next.InvoiceDate, "", s.now())
		}
		if req.InvoiceNo != nil {
			next.InvoiceNo = *req.InvoiceNo
		}
		if req.PdfAttachment != nil {
			att := *req.PdfAttachment
			next.PdfAttachment = &att
		}
		if req.IsArchived != nil {
			next.IsArchived = *req.IsArchived
		}
		next.UpdatedAt = s.timestamp()

		err = s.mutate(func(st *domain.State) {
			materialize(st, plans)
			c, _ := findCost(st, id)
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

// DeleteCost archives an active cost; deleting an archived cost removes it.
func (s *Store) DeleteCost(ctx context.Context, id string) error {
	if err := s.Init(ctx); err != nil {
		return err
	}

	return s.serialize(func() error {
		existing, ok := findCost(s.state, id)
		if !ok {
			return nil
		}
		archived := existing.IsArchived

		return s.mutate(func(st *domain.State) {
			if !archived {
				c, _ := findCost(st, id)
				c.IsArchived = true
				c.UpdatedAt = s.timestamp()
				return
			}
			costs := st.Costs[:0]
			for _, c := range st.Costs {
				if c.ID != id {
					costs = append(costs, c)
				}
			}
			st.Costs = costs
		})
	})
}

// SetCostArchived sets the archived flag. It returns nil when the cost does not exist.
func (s *Store) SetCostArchived(ctx context.Context, id string, archived bool) (*domain.Cost, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}

	var updated *domain.Cost
	err := s.serialize(func() error {
		if _, ok := findCost(s.state, id); !ok {
			return nil
		}
		return s.mutate(func(st *domain.State) {
			c, _ := findCost(st, id)
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

// DuplicateCost copies a cost under a new id with fresh timestamps. Every
// other field, the archived flag included, is kept. It returns nil when the
// cost does not exist.
func (s *Store) DuplicateCost(ctx context.Context, id string) (*domain.Cost, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}

	var copied *domain.Cost
	err := s.serialize(func() error {
		existing, ok := findCost(s.state, id)
		if !ok {
			return nil
		}
		dup := existing.Clone()
		dup.ID = s.newID()
		dup.CreatedAt = s.timestamp()
		dup.UpdatedAt = dup.CreatedAt

		err := s.mutate(func(st *domain.State) {
			st.Costs = append(st.Costs, dup.Clone())
		})
		if err != nil {
			return err
		}
		copied = &dup
		return nil
	})
	if err != nil {
		return nil, err
	}
	return copied, nil
}
