package store

import (
	"context"
	"sort"
	"strings"

	"github.com/gradnja/stroski-api/internal/domain"
	"golang.org/x/text/collate"
)

// ListCosts filters, sorts and paginates costs. Total counts the filtered set
// before pagination. PageSize 0 returns every match.
func (s *Store) ListCosts(ctx context.Context, params domain.CostListParams) (*domain.CostListResult, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}

	var items []domain.Cost
	s.read(func(st *domain.State) {
		items = s.queryCosts(st, params.CostFilters, params.Sort)
	})

	total := len(items)
	if params.PageSize > 0 {
		items = paginate(items, params.Page, params.PageSize)
	}
	return &domain.CostListResult{Items: items, Total: total}, nil
}

// queryCosts returns deep copies of the matching costs in sort order
func (s *Store) queryCosts(st *domain.State, filters domain.CostFilters, sorting *domain.CostSort) []domain.Cost {
	search := strings.ToLower(filters.Search)

	items := make([]domain.Cost, 0)
	for _, c := range st.Costs {
		if filters.ProjectID != "" && c.ProjectID != filters.ProjectID {
			continue
		}
		if filters.DateFrom != "" && c.InvoiceDate < filters.DateFrom {
			continue
		}
		if filters.DateTo != "" && c.InvoiceDate > filters.DateTo {
			continue
		}
		if filters.PhaseID != "" && c.PhaseID != filters.PhaseID {
			continue
		}
		if filters.ContractorID != "" && c.ContractorID != filters.ContractorID {
			continue
		}
		if !filters.IncludeArchived && c.IsArchived {
			continue
		}
		if search != "" {
			haystack := strings.ToLower(c.Description + " " + c.InvoiceNo)
			if !strings.Contains(haystack, search) {
				continue
			}
		}
		items = append(items, c.Clone())
	}

	sortBy := domain.DefaultCostSort()
	if sorting != nil {
		sortBy.Direction = sorting.Direction
		if sorting.Field != "" {
			sortBy.Field = sorting.Field
		}
	}
	asc := sortBy.Direction == domain.SortAsc

	switch sortBy.Field {
	case domain.SortFieldAmountGross:
		sort.SliceStable(items, func(i, j int) bool {
			if asc {
				return items[i].AmountGross < items[j].AmountGross
			}
			return items[i].AmountGross > items[j].AmountGross
		})
	case domain.SortFieldPhase, domain.SortFieldContractor:
		names := make(map[string]string)
		if sortBy.Field == domain.SortFieldPhase {
			for _, p := range st.Phases {
				names[p.ID] = p.Name
			}
		} else {
			for _, c := range st.Contractors {
				names[c.ID] = c.Name
			}
		}
		key := func(c domain.Cost) string {
			if sortBy.Field == domain.SortFieldPhase {
				return names[c.PhaseID]
			}
			return names[c.ContractorID]
		}
		// A Collator is not safe for concurrent use
		col := collate.New(s.locale)
		sort.SliceStable(items, func(i, j int) bool {
			cmp := col.CompareString(key(items[i]), key(items[j]))
			if asc {
				return cmp < 0
			}
			return cmp > 0
		})
	default:
		sort.SliceStable(items, func(i, j int) bool {
			if asc {
				return items[i].InvoiceDate < items[j].InvoiceDate
			}
			return items[i].InvoiceDate > items[j].InvoiceDate
		})
	}

	return items
}

func paginate(items []domain.Cost, page, pageSize int) []domain.Cost {
	if page < 1 {
		page = 1
	}
	start := (page - 1) * pageSize
	if start >= len(items) {
		return []domain.Cost{}
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// PhasePlanVsActual compares each phase's planned budget with the sum of the
// project's non-archived costs booked on it. Phases are those visible to the
// project, in order_no order.
func (s *Store) PhasePlanVsActual(ctx context.Context, projectID string) ([]domain.PhasePlanVsActual, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}

	var out []domain.PhasePlanVsActual
	s.read(func(st *domain.State) {
		actual := make(map[string]float64)
		for _, c := range st.Costs {
			if c.IsArchived || (projectID != "" && c.ProjectID != projectID) {
				continue
			}
			actual[c.PhaseID] += c.AmountGross
		}

		phases := visiblePhases(st, projectID)
		out = make([]domain.PhasePlanVsActual, 0, len(phases))
		for _, p := range phases {
			out = append(out, domain.PhasePlanVsActual{
				PhaseID:   p.ID,
				PhaseName: p.Name,
				Planned:   p.BudgetPlanned,
				Actual:    actual[p.ID],
			})
		}
	})
	return out, nil
}
