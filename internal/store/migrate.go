package store

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gradnja/stroski-api/internal/domain"
)

// The on-disk schema. Version 1 files were written by earlier releases and by
// hand-edited backups; they carry optional fields and several historical names
// per field. decodeState maps every known shape onto domain.State once, at load
// and at restore; nothing else in the package sees these types.

type flexNumber float64

// UnmarshalJSON accepts JSON numbers and numeric strings. Anything else decodes as 0.
func (n *flexNumber) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*n = flexNumber(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			*n = flexNumber(f)
		}
	}
	return nil
}

type diskState struct {
	Version     int              `json:"version"`
	Projects    []diskProject    `json:"projects"`
	Phases      []diskPhase      `json:"phases"`
	Subphases   []diskSubphase   `json:"subphases"`
	Contractors []diskContractor `json:"contractors"`
	Costs       []diskCost       `json:"costs"`
	Documents   []diskDocument   `json:"documents"`
	Meta        struct {
		ActiveProjectID *string `json:"activeProjectId"`
	} `json:"meta"`
}

type diskProject struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description *string     `json:"description"`
	Location    *string     `json:"location"`
	NetM2       *flexNumber `json:"net_m2"`
	GrossM2     *flexNumber `json:"gross_m2"`
	VolumeM3    *flexNumber `json:"volume_m3"`
	CreatedAt   *string     `json:"created_at"`
	UpdatedAt   *string     `json:"updated_at"`
	IsArchived  *bool       `json:"is_archived"`
}

type diskPhase struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	OrderNo       *flexNumber `json:"order_no"`
	BudgetPlanned *flexNumber `json:"budget_planned"`
	ProjectID     *string     `json:"project_id"`
}

type diskSubphase struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	MainPhaseID *string     `json:"main_phase_id"`
	PhaseID     *string     `json:"phase_id"`
	OrderNo     *flexNumber `json:"order_no"`
	ProjectID   *string     `json:"project_id"`
}

type diskContractor struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ProjectID   *string   `json:"project_id"`
	SubphaseIDs *[]string `json:"subphase_ids"`
	SubphaseID  *string   `json:"subphase_id"`
	PhaseID     *string   `json:"phase_id"`
	CreatedAt   *string   `json:"created_at"`
	UpdatedAt   *string   `json:"updated_at"`
	IsArchived  *bool     `json:"is_archived"`
}

type diskCost struct {
	ID        string  `json:"id"`
	ProjectID *string `json:"project_id"`

	SubphaseID       *string `json:"subphase_id"`
	LegacySubphaseID *string `json:"podfazaId"`

	PhaseID       *string `json:"phase_id"`
	LegacyPhaseID *string `json:"glavnaFazaId"`

	ContractorID       *string `json:"contractor_id"`
	LegacyContractorID *string `json:"izvajalecId"`

	Description       *string `json:"description"`
	LegacyDescription *string `json:"opis"`
	LegacyTitle       *string `json:"title"`

	AmountGross       *flexNumber `json:"amount_gross"`
	LegacyAmountGross *flexNumber `json:"znesekBruto"`
	LegacyUnitPrice   *flexNumber `json:"unit_price"`

	InvoiceDate       *string `json:"invoice_date"`
	LegacyInvoiceDate *string `json:"datumRacuna"`
	LegacyDate        *string `json:"date"`

	InvoiceMonth       *string `json:"invoice_month"`
	LegacyInvoiceMonth *string `json:"mesecRacuna"`

	InvoiceNo       *string `json:"invoice_no"`
	LegacyInvoiceNo *string `json:"stevilkaRacuna"`

	PdfAttachment       *domain.PdfAttachment `json:"pdf_attachment"`
	LegacyPdfAttachment *domain.PdfAttachment `json:"pdfAttachment"`

	IsArchived       *bool `json:"is_archived"`
	LegacyIsArchived *bool `json:"isArchived"`

	CreatedAt *string `json:"created_at"`
	UpdatedAt *string `json:"updated_at"`
}

type diskDocument struct {
	ID           string     `json:"id"`
	ProjectID    string     `json:"project_id"`
	CostID       string     `json:"cost_id"`
	OriginalName string     `json:"original_name"`
	StoredName   string     `json:"stored_name"`
	StoredPath   string     `json:"stored_path"`
	Mime         string     `json:"mime"`
	Size         flexNumber `json:"size"`
	CreatedAt    *string    `json:"created_at"`
}

// decodeState parses a data file of any known version into the canonical state.
// Missing catch-all subphases referenced by legacy contractors and costs are created.
func decodeState(raw []byte, now time.Time, newID func() string) (*domain.State, error) {
	var disk diskState
	if err := json.Unmarshal(raw, &disk); err != nil {
		return nil, fmt.Errorf("failed to parse data file: %w", err)
	}
	return migrate(&disk, now, newID), nil
}

func migrate(disk *diskState, now time.Time, newID func() string) *domain.State {
	ts := now.UTC().Format(timestampLayout)
	st := domain.NewState()

	for _, p := range disk.Projects {
		createdAt := first(p.CreatedAt, &ts)
		st.Projects = append(st.Projects, domain.Project{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Location:    p.Location,
			NetM2:       p.NetM2.float(),
			GrossM2:     p.GrossM2.float(),
			VolumeM3:    p.VolumeM3.float(),
			CreatedAt:   *createdAt,
			UpdatedAt:   *first(p.UpdatedAt, createdAt),
			IsArchived:  p.IsArchived != nil && *p.IsArchived,
		})
	}

	for idx, p := range disk.Phases {
		phase := domain.Phase{
			ID:        p.ID,
			Name:      p.Name,
			OrderNo:   idx + 1,
			ProjectID: value(p.ProjectID),
		}
		if p.OrderNo != nil {
			phase.OrderNo = int(*p.OrderNo)
		}
		if p.BudgetPlanned != nil {
			phase.BudgetPlanned = float64(*p.BudgetPlanned)
		}
		st.Phases = append(st.Phases, phase)
	}

	for idx, sp := range disk.Subphases {
		mainPhaseID := value(first(sp.MainPhaseID, sp.PhaseID))
		sub := domain.Subphase{
			ID:          sp.ID,
			MainPhaseID: mainPhaseID,
			Name:        sp.Name,
			OrderNo:     idx + 1,
			ProjectID:   value(sp.ProjectID),
		}
		if sp.ProjectID == nil {
			if phase, ok := findPhase(st, mainPhaseID); ok {
				sub.ProjectID = phase.ProjectID
			}
		}
		if sp.OrderNo != nil {
			sub.OrderNo = int(*sp.OrderNo)
		}
		st.Subphases = append(st.Subphases, sub)
	}

	for _, c := range disk.Contractors {
		var ids []string
		switch {
		case c.SubphaseIDs != nil:
			ids = *c.SubphaseIDs
		case value(c.SubphaseID) != "":
			ids = []string{*c.SubphaseID}
		case value(c.PhaseID) != "":
			ids = []string{ensureCatchAll(st, *c.PhaseID, newID).ID}
		}
		createdAt := first(c.CreatedAt, &ts)
		st.Contractors = append(st.Contractors, domain.Contractor{
			ID:          c.ID,
			Name:        c.Name,
			ProjectID:   value(c.ProjectID),
			SubphaseIDs: uniqueIDs(ids),
			CreatedAt:   *createdAt,
			UpdatedAt:   *first(c.UpdatedAt, createdAt),
			IsArchived:  c.IsArchived != nil && *c.IsArchived,
		})
	}

	for _, c := range disk.Costs {
		st.Costs = append(st.Costs, migrateCost(st, c, ts, now, newID))
	}

	for _, d := range disk.Documents {
		mime := d.Mime
		if mime == "" {
			mime = domain.DefaultDocumentMime
		}
		st.Documents = append(st.Documents, domain.Document{
			ID:           d.ID,
			ProjectID:    d.ProjectID,
			CostID:       d.CostID,
			OriginalName: d.OriginalName,
			StoredName:   d.StoredName,
			StoredPath:   d.StoredPath,
			Mime:         mime,
			Size:         int64(d.Size),
			CreatedAt:    *first(d.CreatedAt, &ts),
		})
	}

	st.Meta.ActiveProjectID = disk.Meta.ActiveProjectID
	return st
}

func migrateCost(st *domain.State, c diskCost, ts string, now time.Time, newID func() string) domain.Cost {
	subphaseID := value(first(c.SubphaseID, c.LegacySubphaseID))
	explicitPhase := value(first(c.PhaseID, c.LegacyPhaseID))

	// A known subphase decides the phase
	phaseID := explicitPhase
	if subphaseID != "" {
		if sub, ok := findSubphase(st, subphaseID); ok {
			phaseID = sub.MainPhaseID
		}
	}
	if subphaseID == "" && phaseID != "" {
		subphaseID = ensureCatchAll(st, phaseID, newID).ID
	}

	createdAt := value(first(c.CreatedAt, &ts))
	invoiceDate := first(c.InvoiceDate, c.LegacyInvoiceDate, c.LegacyDate)
	if invoiceDate == nil {
		d := createdAt
		if len(d) > 10 {
			d = d[:10]
		}
		invoiceDate = &d
	}

	var amount float64
	if n := firstNumber(c.AmountGross, c.LegacyAmountGross, c.LegacyUnitPrice); n != nil {
		amount = float64(*n)
	}

	pdf := c.PdfAttachment
	if pdf == nil {
		pdf = c.LegacyPdfAttachment
	}

	archived := c.IsArchived
	if archived == nil {
		archived = c.LegacyIsArchived
	}

	return domain.Cost{
		ID:            c.ID,
		ProjectID:     value(c.ProjectID),
		PhaseID:       phaseID,
		SubphaseID:    subphaseID,
		ContractorID:  value(first(c.ContractorID, c.LegacyContractorID)),
		Description:   value(first(c.Description, c.LegacyDescription, c.LegacyTitle)),
		AmountGross:   amount,
		InvoiceDate:   *invoiceDate,
		InvoiceMonth:  invoiceMonth(*invoiceDate, value(first(c.InvoiceMonth, c.LegacyInvoiceMonth)), now),
		InvoiceNo:     value(first(c.InvoiceNo, c.LegacyInvoiceNo)),
		PdfAttachment: pdf,
		IsArchived:    archived != nil && *archived,
		CreatedAt:     createdAt,
		UpdatedAt:     value(first(c.UpdatedAt, &createdAt)),
	}
}

// invoiceMonth returns explicit when set, otherwise the YYYY-MM prefix of date.
// An empty or unparsable date yields the current month.
func invoiceMonth(date, explicit string, now time.Time) string {
	if explicit != "" {
		return explicit
	}
	if date == "" {
		return now.UTC().Format(monthLayout)
	}
	if len(date) >= 7 {
		return date[:7]
	}
	for _, layout := range []string{"2006-1", "2006"} {
		if t, err := time.Parse(layout, date); err == nil {
			return t.Format(monthLayout)
		}
	}
	return now.UTC().Format(monthLayout)
}

func (n *flexNumber) float() *float64 {
	if n == nil {
		return nil
	}
	f := float64(*n)
	return &f
}

func first(values ...*string) *string {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func firstNumber(values ...*flexNumber) *flexNumber {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// uniqueIDs drops empty and repeated ids, keeping first-seen order
func uniqueIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
