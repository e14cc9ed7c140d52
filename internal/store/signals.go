package store

import (
	"time"

	"gorm.io/gorm"

	"github.com/tradingcore/engine/types"
)

// SignalRepository persists types.Signal. HOLD signals are never written
// here — the strategy runner filters them before calling Insert (spec §3).
type SignalRepository struct {
	db *gorm.DB
}

func NewSignalRepository(db *gorm.DB) *SignalRepository {
	return &SignalRepository{db: db}
}

func (r *SignalRepository) Insert(s types.Signal) error {
	row := SignalRow{
		SignalID:          s.SignalID,
		StrategyID:        s.StrategyID,
		StrategyVersionID: s.StrategyVersionID,
		AccountID:         s.AccountID,
		Symbol:            s.Symbol,
		SignalType:        string(s.SignalType),
		TargetType:        s.TargetType,
		TargetValue:       s.TargetValue,
		TTLSeconds:        s.TTLSeconds,
		Reason:            s.Reason,
		CreatedAt:         s.CreatedAt,
	}
	return r.db.Create(&row).Error
}

// RecentForDedup returns signals for (strategyId, symbol, accountId) created
// since `since`, used for the 300-second cooldown-lookback dedup window
// (SPEC_FULL supplement grounded on spec §4.5's cooldown language).
func (r *SignalRepository) RecentForDedup(strategyID, symbol, accountID string, since time.Time) ([]types.Signal, error) {
	var rows []SignalRow
	err := r.db.Where("strategy_id = ? AND symbol = ? AND account_id = ? AND created_at >= ?",
		strategyID, symbol, accountID, since).
		Order("created_at desc").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]types.Signal, len(rows))
	for i, row := range rows {
		out[i] = types.Signal{
			SignalID:          row.SignalID,
			StrategyID:        row.StrategyID,
			StrategyVersionID: row.StrategyVersionID,
			AccountID:         row.AccountID,
			Symbol:            row.Symbol,
			SignalType:        types.SignalType(row.SignalType),
			TargetType:        row.TargetType,
			TargetValue:       row.TargetValue,
			TTLSeconds:        row.TTLSeconds,
			Reason:            row.Reason,
			CreatedAt:         row.CreatedAt,
		}
	}
	return out, nil
}
