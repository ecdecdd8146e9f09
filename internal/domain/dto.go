package domain

// ============================================================================
// Projects
// ============================================================================

// CreateProjectRequest carries the fields of a new project
type CreateProjectRequest struct {
	Name        string   `json:"name" validate:"required,max=200"`
	Description *string  `json:"description,omitempty"`
	Location    *string  `json:"location,omitempty"`
	NetM2       *float64 `json:"net_m2,omitempty" validate:"omitempty,gte=0"`
	GrossM2     *float64 `json:"gross_m2,omitempty" validate:"omitempty,gte=0"`
	VolumeM3    *float64 `json:"volume_m3,omitempty" validate:"omitempty,gte=0"`
}

// UpdateProjectRequest is a partial project update; nil fields are left untouched
type UpdateProjectRequest struct {
	Name        *string  `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string  `json:"description,omitempty"`
	Location    *string  `json:"location,omitempty"`
	NetM2       *float64 `json:"net_m2,omitempty" validate:"omitempty,gte=0"`
	GrossM2     *float64 `json:"gross_m2,omitempty" validate:"omitempty,gte=0"`
	VolumeM3    *float64 `json:"volume_m3,omitempty" validate:"omitempty,gte=0"`
}

// SetActiveProjectRequest selects the active project
type SetActiveProjectRequest struct {
	ID string `json:"id" validate:"required"`
}

// ActiveProjectResponse wraps the active project pointer
type ActiveProjectResponse struct {
	ActiveProjectID *string `json:"activeProjectId"`
}

// ============================================================================
// Phases and subphases
// ============================================================================

// CreatePhaseRequest creates a phase, or updates it when ID names an existing phase
type CreatePhaseRequest struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name" validate:"required"`
	OrderNo   *int   `json:"order_no,omitempty" validate:"omitempty,gte=1"`
	ProjectID string `json:"project_id,omitempty"`
}

// UpdatePhaseRequest is a partial phase update
type UpdatePhaseRequest struct {
	Name          *string  `json:"name,omitempty" validate:"omitempty,min=1"`
	BudgetPlanned *float64 `json:"budget_planned,omitempty" validate:"omitempty,gte=0"`
	OrderNo       *int     `json:"order_no,omitempty" validate:"omitempty,gte=1"`
}

// ReorderPhasesRequest lists phase ids in their new order
type ReorderPhasesRequest struct {
	Order []string `json:"order" validate:"required"`
}

// CreateSubphaseRequest creates a subphase, or updates a matching one
type CreateSubphaseRequest struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name" validate:"required"`
	OrderNo *int   `json:"order_no,omitempty" validate:"omitempty,gte=1"`
}

// UpdateSubphaseRequest is a partial subphase update
type UpdateSubphaseRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1"`
	OrderNo     *int    `json:"order_no,omitempty" validate:"omitempty,gte=1"`
	MainPhaseID *string `json:"main_phase_id,omitempty"`
}

// PhasesImportResult summarizes a phase/subphase CSV import
type PhasesImportResult struct {
	ProjectID  string `json:"projectId"`
	MainPhases int    `json:"mainPhases"`
	Subphases  int    `json:"subphases"`
	ValidRows  int    `json:"validRows"`
}

// ============================================================================
// Contractors
// ============================================================================

// ContractorFilters narrows a contractor listing
type ContractorFilters struct {
	ProjectID       string `json:"projectId,omitempty"`
	IncludeArchived bool   `json:"includeArchived,omitempty"`
}

// CreateContractorRequest carries the fields of a new contractor
type CreateContractorRequest struct {
	Name        string   `json:"name" validate:"required,max=200"`
	ProjectID   string   `json:"project_id"`
	SubphaseIDs []string `json:"subphase_ids"`
}

// UpdateContractorRequest is a partial contractor update. A nil SubphaseIDs
// keeps the current list; a present list replaces it and must not be empty.
type UpdateContractorRequest struct {
	Name        *string   `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	ProjectID   *string   `json:"project_id,omitempty"`
	SubphaseIDs *[]string `json:"subphase_ids,omitempty"`
}

// ArchiveRequest toggles the archived flag of an entity
type ArchiveRequest struct {
	Archived bool `json:"archived"`
}

// ============================================================================
// Costs
// ============================================================================

// CostInput is a cost as submitted for creation. PhaseID may be omitted when
// SubphaseID is given; SubphaseID may be omitted when PhaseID is given.
type CostInput struct {
	ProjectID     string         `json:"project_id"`
	PhaseID       string         `json:"phase_id,omitempty"`
	SubphaseID    string         `json:"subphase_id,omitempty"`
	ContractorID  string         `json:"contractor_id"`
	Description   string         `json:"description"`
	AmountGross   float64        `json:"amount_gross" validate:"gte=0"`
	InvoiceDate   string         `json:"invoice_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	InvoiceMonth  string         `json:"invoice_month,omitempty" validate:"omitempty,datetime=2006-01"`
	InvoiceNo     string         `json:"invoice_no,omitempty"`
	PdfAttachment *PdfAttachment `json:"pdf_attachment,omitempty"`
}

// UpdateCostRequest is a partial cost update
type UpdateCostRequest struct {
	ProjectID     *string        `json:"project_id,omitempty"`
	PhaseID       *string        `json:"phase_id,omitempty"`
	SubphaseID    *string        `json:"subphase_id,omitempty"`
	ContractorID  *string        `json:"contractor_id,omitempty"`
	Description   *string        `json:"description,omitempty"`
	AmountGross   *float64       `json:"amount_gross,omitempty" validate:"omitempty,gte=0"`
	InvoiceDate   *string        `json:"invoice_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	InvoiceMonth  *string        `json:"invoice_month,omitempty" validate:"omitempty,datetime=2006-01"`
	InvoiceNo     *string        `json:"invoice_no,omitempty"`
	PdfAttachment *PdfAttachment `json:"pdf_attachment,omitempty"`
	IsArchived    *bool          `json:"is_archived,omitempty"`
}

// SortDirection is asc or desc
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// Sortable cost fields
const (
	SortFieldInvoiceDate = "invoice_date"
	SortFieldAmountGross = "amount_gross"
	SortFieldPhase       = "phase"
	SortFieldContractor  = "contractor"
)

// CostSort selects the ordering of a cost listing
type CostSort struct {
	Field     string        `json:"field"`
	Direction SortDirection `json:"direction"`
}

// DefaultCostSort orders by invoice date, newest first
func DefaultCostSort() CostSort {
	return CostSort{Field: SortFieldInvoiceDate, Direction: SortDesc}
}

// ParseSortDirection parses a string into SortDirection, defaulting to desc
func ParseSortDirection(s string) SortDirection {
	if s == string(SortAsc) {
		return SortAsc
	}
	return SortDesc
}

// CostFilters narrows a cost listing
type CostFilters struct {
	ProjectID       string `json:"projectId,omitempty"`
	DateFrom        string `json:"dateFrom,omitempty"`
	DateTo          string `json:"dateTo,omitempty"`
	PhaseID         string `json:"phaseId,omitempty"`
	ContractorID    string `json:"contractorId,omitempty"`
	IncludeArchived bool   `json:"includeArchived,omitempty"`
	Search          string `json:"search,omitempty"`
}

// CostListParams combines filters, sorting and pagination. PageSize 0 disables paging.
type CostListParams struct {
	CostFilters
	Sort     *CostSort `json:"sort,omitempty"`
	Page     int       `json:"page,omitempty"`
	PageSize int       `json:"pageSize,omitempty"`
}

// CostListResult is one page of costs plus the unpaginated total
type CostListResult struct {
	Items []Cost `json:"items"`
	Total int    `json:"total"`
}

// PhasePlanVsActual compares a phase budget with booked costs
type PhasePlanVsActual struct {
	PhaseID   string  `json:"phase_id"`
	PhaseName string  `json:"phase_name"`
	Planned   float64 `json:"planned"`
	Actual    float64 `json:"actual"`
}

// ImportCostsResult reports a cost CSV import. When any phase or contractor
// could not be resolved, Created is empty and the missing names are listed.
type ImportCostsResult struct {
	Created            []Cost   `json:"created"`
	MissingPhases      []string `json:"missingPhases"`
	MissingContractors []string `json:"missingContractors"`
}

// ============================================================================
// Documents
// ============================================================================

// AttachDocumentRequest describes a file being attached to a project
type AttachDocumentRequest struct {
	ProjectID    string `json:"projectId" validate:"required"`
	CostID       string `json:"costId,omitempty"`
	OriginalName string `json:"originalName" validate:"required"`
	Mime         string `json:"mime,omitempty"`
}

// UpdateDocumentRequest is a partial document update
type UpdateDocumentRequest struct {
	OriginalName *string `json:"original_name,omitempty" validate:"omitempty,min=1"`
	CostID       *string `json:"cost_id,omitempty"`
}
