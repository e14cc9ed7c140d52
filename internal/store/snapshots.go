package store

import (
	"gorm.io/gorm"

	"github.com/tradingcore/engine/types"
)

// SnapshotRepository persists types.PortfolioSnapshot (spec §3). No component
// in this module creates snapshots on a schedule.
type SnapshotRepository struct {
	db *gorm.DB
}

func NewSnapshotRepository(db *gorm.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

func (r *SnapshotRepository) Insert(s types.PortfolioSnapshot) error {
	row := SnapshotRow{
		SnapshotID:    s.SnapshotID,
		AccountID:     s.AccountID,
		Cash:          s.Cash,
		TotalValue:    s.TotalValue,
		RealizedPnl:   s.RealizedPnl,
		UnrealizedPnl: s.UnrealizedPnl,
		Timestamp:     s.Timestamp,
	}
	return r.db.Create(&row).Error
}

func (r *SnapshotRepository) Latest(accountID string) (*types.PortfolioSnapshot, error) {
	var row SnapshotRow
	err := r.db.Where("account_id = ?", accountID).Order("timestamp desc").First(&row).Error
	if err != nil {
		return nil, err
	}
	s := types.PortfolioSnapshot{
		SnapshotID:    row.SnapshotID,
		AccountID:     row.AccountID,
		Cash:          row.Cash,
		TotalValue:    row.TotalValue,
		RealizedPnl:   row.RealizedPnl,
		UnrealizedPnl: row.UnrealizedPnl,
		Timestamp:     row.Timestamp,
	}
	return &s, nil
}
