// Package reporting mirrors store snapshots into SQLite so the dataset can be
// queried with SQL tools. The mirror is rebuilt from scratch on every sync and
// is never read back into the store.
package reporting

import (
	"context"
	"fmt"
	"time"

	"github.com/gradnja/stroski-api/internal/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const batchSize = 200

type projectRow struct {
	ID          string   `gorm:"column:id;primaryKey"`
	Name        string   `gorm:"column:name"`
	Description *string  `gorm:"column:description"`
	Location    *string  `gorm:"column:location"`
	NetM2       *float64 `gorm:"column:net_m2"`
	GrossM2     *float64 `gorm:"column:gross_m2"`
	VolumeM3    *float64 `gorm:"column:volume_m3"`
	IsActive    bool     `gorm:"column:is_active"`
	IsArchived  bool     `gorm:"column:is_archived"`
	CreatedAt   string   `gorm:"column:created_at"`
	UpdatedAt   string   `gorm:"column:updated_at"`
}

func (projectRow) TableName() string { return "projects" }

// phaseRow is keyed by project because imported phase ids repeat across
// projects. Global phases have an empty ProjectID.
type phaseRow struct {
	ProjectID     string  `gorm:"column:project_id;primaryKey"`
	ID            string  `gorm:"column:id;primaryKey"`
	Name          string  `gorm:"column:name"`
	OrderNo       int     `gorm:"column:order_no"`
	BudgetPlanned float64 `gorm:"column:budget_planned"`
}

func (phaseRow) TableName() string { return "phases" }

type subphaseRow struct {
	ProjectID   string `gorm:"column:project_id;primaryKey"`
	ID          string `gorm:"column:id;primaryKey"`
	MainPhaseID string `gorm:"column:main_phase_id"`
	Name        string `gorm:"column:name"`
	OrderNo     int    `gorm:"column:order_no"`
}

func (subphaseRow) TableName() string { return "subphases" }

type contractorRow struct {
	ID         string  `gorm:"column:id;primaryKey"`
	ProjectID  *string `gorm:"column:project_id"`
	Name       string  `gorm:"column:name"`
	IsArchived bool    `gorm:"column:is_archived"`
	CreatedAt  string  `gorm:"column:created_at"`
	UpdatedAt  string  `gorm:"column:updated_at"`
}

func (contractorRow) TableName() string { return "contractors" }

type contractorSubphaseRow struct {
	ContractorID string `gorm:"column:contractor_id;primaryKey"`
	SubphaseID   string `gorm:"column:subphase_id;primaryKey"`
}

func (contractorSubphaseRow) TableName() string { return "contractor_subphases" }

type costRow struct {
	ID              string  `gorm:"column:id;primaryKey"`
	ProjectID       string  `gorm:"column:project_id"`
	PhaseID         string  `gorm:"column:phase_id"`
	SubphaseID      string  `gorm:"column:subphase_id"`
	ContractorID    string  `gorm:"column:contractor_id"`
	Description     string  `gorm:"column:description"`
	AmountGross     float64 `gorm:"column:amount_gross"`
	InvoiceDate     string  `gorm:"column:invoice_date"`
	InvoiceMonth    string  `gorm:"column:invoice_month"`
	InvoiceNo       *string `gorm:"column:invoice_no"`
	PdfOriginalName *string `gorm:"column:pdf_original_name"`
	IsArchived      bool    `gorm:"column:is_archived"`
	CreatedAt       string  `gorm:"column:created_at"`
	UpdatedAt       string  `gorm:"column:updated_at"`
}

func (costRow) TableName() string { return "costs" }

type documentRow struct {
	ID           string  `gorm:"column:id;primaryKey"`
	ProjectID    string  `gorm:"column:project_id"`
	CostID       *string `gorm:"column:cost_id"`
	OriginalName string  `gorm:"column:original_name"`
	Mime         string  `gorm:"column:mime"`
	Size         int64   `gorm:"column:size"`
	CreatedAt    string  `gorm:"column:created_at"`
}

func (documentRow) TableName() string { return "documents" }

type syncRun struct {
	ID       uint   `gorm:"column:id;primaryKey;autoIncrement"`
	SyncedAt string `gorm:"column:synced_at"`
	Costs    int    `gorm:"column:costs"`
}

func (syncRun) TableName() string { return "sync_runs" }

// SnapshotSource yields a consistent copy of the dataset
type SnapshotSource interface {
	Snapshot(ctx context.Context) (*domain.State, error)
}

// Mirror writes snapshots into the reporting database
type Mirror struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewMirror creates a mirror over a migrated database
func NewMirror(db *gorm.DB, logger *zap.Logger) *Mirror {
	return &Mirror{db: db, logger: logger, now: time.Now}
}

// SyncFrom takes a snapshot from source and mirrors it
func (m *Mirror) SyncFrom(ctx context.Context, source SnapshotSource) error {
	st, err := source.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to take snapshot: %w", err)
	}
	return m.Sync(ctx, st)
}

// Sync replaces every mirrored table with the contents of st in one transaction
func (m *Mirror) Sync(ctx context.Context, st *domain.State) error {
	projects, phases, subphases, contractors, links, costs, documents := toRows(st)

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, table := range []string{"contractor_subphases", "documents", "costs", "contractors", "subphases", "phases", "projects"} {
			if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}

		if err := insert(tx, projects); err != nil {
			return err
		}
		if err := insert(tx, phases); err != nil {
			return err
		}
		if err := insert(tx, subphases); err != nil {
			return err
		}
		if err := insert(tx, contractors); err != nil {
			return err
		}
		if err := insert(tx, links); err != nil {
			return err
		}
		if err := insert(tx, costs); err != nil {
			return err
		}
		if err := insert(tx, documents); err != nil {
			return err
		}

		run := syncRun{SyncedAt: m.now().UTC().Format(time.RFC3339), Costs: len(costs)}
		return tx.Create(&run).Error
	})
	if err != nil {
		m.logger.Error("Reporting sync failed", zap.Error(err))
		return err
	}

	m.logger.Info("Reporting mirror synced",
		zap.Int("projects", len(projects)),
		zap.Int("costs", len(costs)),
		zap.Int("documents", len(documents)),
	)
	return nil
}

func insert[T any](tx *gorm.DB, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	if err := tx.CreateInBatches(rows, batchSize).Error; err != nil {
		var zero T
		return fmt.Errorf("failed to insert %T rows: %w", zero, err)
	}
	return nil
}

func toRows(st *domain.State) ([]projectRow, []phaseRow, []subphaseRow, []contractorRow, []contractorSubphaseRow, []costRow, []documentRow) {
	active := ""
	if st.Meta.ActiveProjectID != nil {
		active = *st.Meta.ActiveProjectID
	}

	projects := make([]projectRow, 0, len(st.Projects))
	for _, p := range st.Projects {
		projects = append(projects, projectRow{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Location:    p.Location,
			NetM2:       p.NetM2,
			GrossM2:     p.GrossM2,
			VolumeM3:    p.VolumeM3,
			IsActive:    p.ID == active,
			IsArchived:  p.IsArchived,
			CreatedAt:   p.CreatedAt,
			UpdatedAt:   p.UpdatedAt,
		})
	}

	phases := make([]phaseRow, 0, len(st.Phases))
	for _, p := range st.Phases {
		phases = append(phases, phaseRow{
			ProjectID:     p.ProjectID,
			ID:            p.ID,
			Name:          p.Name,
			OrderNo:       p.OrderNo,
			BudgetPlanned: p.BudgetPlanned,
		})
	}
	phases = dedupe(phases, func(p phaseRow) string { return p.ProjectID + "::" + p.ID })

	subphases := make([]subphaseRow, 0, len(st.Subphases))
	for _, sp := range st.Subphases {
		subphases = append(subphases, subphaseRow{
			ProjectID:   sp.ProjectID,
			ID:          sp.ID,
			MainPhaseID: sp.MainPhaseID,
			Name:        sp.Name,
			OrderNo:     sp.OrderNo,
		})
	}
	subphases = dedupe(subphases, func(sp subphaseRow) string { return sp.ProjectID + "::" + sp.ID })

	contractors := make([]contractorRow, 0, len(st.Contractors))
	links := make([]contractorSubphaseRow, 0)
	for _, c := range st.Contractors {
		contractors = append(contractors, contractorRow{
			ID:         c.ID,
			ProjectID:  nullable(c.ProjectID),
			Name:       c.Name,
			IsArchived: c.IsArchived,
			CreatedAt:  c.CreatedAt,
			UpdatedAt:  c.UpdatedAt,
		})
		for _, subID := range c.SubphaseIDs {
			links = append(links, contractorSubphaseRow{ContractorID: c.ID, SubphaseID: subID})
		}
	}
	links = dedupe(links, func(l contractorSubphaseRow) string { return l.ContractorID + "/" + l.SubphaseID })

	costs := make([]costRow, 0, len(st.Costs))
	for _, c := range st.Costs {
		row := costRow{
			ID:           c.ID,
			ProjectID:    c.ProjectID,
			PhaseID:      c.PhaseID,
			SubphaseID:   c.SubphaseID,
			ContractorID: c.ContractorID,
			Description:  c.Description,
			AmountGross:  c.AmountGross,
			InvoiceDate:  c.InvoiceDate,
			InvoiceMonth: c.InvoiceMonth,
			InvoiceNo:    nullable(c.InvoiceNo),
			IsArchived:   c.IsArchived,
			CreatedAt:    c.CreatedAt,
			UpdatedAt:    c.UpdatedAt,
		}
		if c.PdfAttachment != nil {
			row.PdfOriginalName = nullable(c.PdfAttachment.OriginalName)
		}
		costs = append(costs, row)
	}

	documents := make([]documentRow, 0, len(st.Documents))
	for _, d := range st.Documents {
		documents = append(documents, documentRow{
			ID:           d.ID,
			ProjectID:    d.ProjectID,
			CostID:       nullable(d.CostID),
			OriginalName: d.OriginalName,
			Mime:         d.Mime,
			Size:         d.Size,
			CreatedAt:    d.CreatedAt,
		})
	}

	return projects, phases, subphases, contractors, links, costs, documents
}

func nullable(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func dedupe[T any](rows []T, key func(T) string) []T {
	seen := make(map[string]struct{}, len(rows))
	out := rows[:0]
	for _, r := range rows {
		k := key(r)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

// Refresher syncs a mirror from a fixed snapshot source
type Refresher struct {
	Mirror *Mirror
	Source SnapshotSource
}

// Sync takes a fresh snapshot and mirrors it
func (r Refresher) Sync(ctx context.Context) error {
	return r.Mirror.SyncFrom(ctx, r.Source)
}
