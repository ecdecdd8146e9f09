package reporting

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// MonthTotal is the sum of a project's active costs booked in one invoice month
type MonthTotal struct {
	Month string  `json:"month"`
	Total float64 `json:"total"`
	Count int     `json:"count"`
}

// ContractorTotal is the sum of a project's active costs per contractor
type ContractorTotal struct {
	ContractorID string  `json:"contractor_id"`
	Name         string  `json:"name"`
	Total        float64 `json:"total"`
	Count        int     `json:"count"`
}

// MonthlyTotals groups the project's non-archived costs by invoice month, oldest first
func (m *Mirror) MonthlyTotals(ctx context.Context, projectID string) ([]MonthTotal, error) {
	var out []MonthTotal
	err := m.db.WithContext(ctx).Model(&costRow{}).
		Select("invoice_month AS month, SUM(amount_gross) AS total, COUNT(*) AS count").
		Where("project_id = ? AND is_archived = ?", projectID, false).
		Group("invoice_month").
		Order("invoice_month ASC").
		Scan(&out).Error
	return out, err
}

// ContractorTotals groups the project's non-archived costs by contractor, largest first
func (m *Mirror) ContractorTotals(ctx context.Context, projectID string) ([]ContractorTotal, error) {
	var out []ContractorTotal
	err := m.db.WithContext(ctx).Table("costs").
		Select("costs.contractor_id AS contractor_id, COALESCE(contractors.name, '') AS name, SUM(costs.amount_gross) AS total, COUNT(*) AS count").
		Joins("LEFT JOIN contractors ON contractors.id = costs.contractor_id").
		Where("costs.project_id = ? AND costs.is_archived = ?", projectID, false).
		Group("costs.contractor_id, contractors.name").
		Order("total DESC").
		Scan(&out).Error
	return out, err
}

// LastSync returns the time of the latest sync, or "" before the first one
func (m *Mirror) LastSync(ctx context.Context) (string, error) {
	var run syncRun
	err := m.db.WithContext(ctx).Order("id DESC").First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return run.SyncedAt, nil
}
