package domain

// StateVersion is the schema version written to data.json.
// Files without a version field are legacy (version 1) and are migrated on load.
const StateVersion = 2

// DefaultSubphaseName is the catch-all subphase created when a cost or
// contractor references a phase without naming a subphase.
const DefaultSubphaseName = "Neopredeljeno"

// DefaultDocumentMime is used when an attached document does not declare a type
const DefaultDocumentMime = "application/pdf"

// Project is a construction project. Projects are archived, never removed.
type Project struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description *string  `json:"description,omitempty"`
	Location    *string  `json:"location,omitempty"`
	NetM2       *float64 `json:"net_m2,omitempty"`
	GrossM2     *float64 `json:"gross_m2,omitempty"`
	VolumeM3    *float64 `json:"volume_m3,omitempty"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
	IsArchived  bool     `json:"is_archived"`
}

// Phase is a main construction phase. ProjectID is empty for global (legacy) phases.
type Phase struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	OrderNo       int     `json:"order_no"`
	BudgetPlanned float64 `json:"budget_planned"`
	ProjectID     string  `json:"project_id,omitempty"`
}

// Subphase is a step inside a Phase. ProjectID is denormalized from the owning phase.
type Subphase struct {
	ID          string `json:"id"`
	MainPhaseID string `json:"main_phase_id"`
	Name        string `json:"name"`
	OrderNo     int    `json:"order_no"`
	ProjectID   string `json:"project_id,omitempty"`
}

// Contractor is a vendor working on one or more subphases of a project
type Contractor struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	ProjectID   string   `json:"project_id,omitempty"`
	SubphaseIDs []string `json:"subphase_ids"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
	IsArchived  bool     `json:"is_archived"`
}

// PdfAttachment describes an invoice PDF copied into the uploads area
type PdfAttachment struct {
	FileName     string `json:"file_name"`
	StoredPath   string `json:"stored_path"`
	OriginalName string `json:"original_name"`
}

// Cost is a single invoiced expense
type Cost struct {
	ID            string         `json:"id"`
	ProjectID     string         `json:"project_id"`
	PhaseID       string         `json:"phase_id"`
	SubphaseID    string         `json:"subphase_id"`
	ContractorID  string         `json:"contractor_id"`
	Description   string         `json:"description"`
	AmountGross   float64        `json:"amount_gross"`
	InvoiceDate   string         `json:"invoice_date"`
	InvoiceMonth  string         `json:"invoice_month"`
	InvoiceNo     string         `json:"invoice_no,omitempty"`
	PdfAttachment *PdfAttachment `json:"pdf_attachment,omitempty"`
	IsArchived    bool           `json:"is_archived"`
	CreatedAt     string         `json:"created_at"`
	UpdatedAt     string         `json:"updated_at"`
}

// Document is a standalone file attached to a project (and optionally a cost)
type Document struct {
	ID           string `json:"id"`
	ProjectID    string `json:"project_id"`
	CostID       string `json:"cost_id,omitempty"`
	OriginalName string `json:"original_name"`
	StoredName   string `json:"stored_name"`
	StoredPath   string `json:"stored_path"`
	Mime         string `json:"mime"`
	Size         int64  `json:"size"`
	CreatedAt    string `json:"created_at"`
}

// Meta holds process-wide pointers that survive restarts
type Meta struct {
	ActiveProjectID *string `json:"activeProjectId"`
}

// State is the complete persisted dataset
type State struct {
	Version     int          `json:"version"`
	Projects    []Project    `json:"projects"`
	Phases      []Phase      `json:"phases"`
	Subphases   []Subphase   `json:"subphases"`
	Contractors []Contractor `json:"contractors"`
	Costs       []Cost       `json:"costs"`
	Documents   []Document   `json:"documents"`
	Meta        Meta         `json:"meta"`
}

// NewState returns an empty state with all collections initialized
func NewState() *State {
	return &State{
		Version:     StateVersion,
		Projects:    []Project{},
		Phases:      []Phase{},
		Subphases:   []Subphase{},
		Contractors: []Contractor{},
		Costs:       []Cost{},
		Documents:   []Document{},
	}
}

// Clone returns a deep copy of the project
func (p Project) Clone() Project {
	p.Description = cloneString(p.Description)
	p.Location = cloneString(p.Location)
	p.NetM2 = cloneFloat(p.NetM2)
	p.GrossM2 = cloneFloat(p.GrossM2)
	p.VolumeM3 = cloneFloat(p.VolumeM3)
	return p
}

// Clone returns a deep copy of the contractor
func (c Contractor) Clone() Contractor {
	ids := make([]string, len(c.SubphaseIDs))
	copy(ids, c.SubphaseIDs)
	c.SubphaseIDs = ids
	return c
}

// Clone returns a deep copy of the cost
func (c Cost) Clone() Cost {
	if c.PdfAttachment != nil {
		att := *c.PdfAttachment
		c.PdfAttachment = &att
	}
	return c
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
