package store

import (
	"gorm.io/gorm"

	"github.com/tradingcore/engine/types"
)

// LedgerRepository appends to the immutable pnl_ledger table (spec §3, §4.4).
type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Append writes a ledger entry within tx (always called as part of the same
// transaction as the position update, spec §4.4).
func Append(tx *gorm.DB, e types.PnlLedgerEntry) error {
	row := LedgerRow{
		LedgerID:       e.LedgerID,
		AccountID:      e.AccountID,
		Symbol:         e.Symbol,
		EventType:      string(e.EventType),
		Amount:         e.Amount,
		RefID:          e.RefID,
		EventTimestamp: e.EventTimestamp,
	}
	return tx.Create(&row).Error
}

func (r *LedgerRepository) ListByAccountSymbol(accountID, symbol string, limit int) ([]types.PnlLedgerEntry, error) {
	var rows []LedgerRow
	q := r.db.Where("account_id = ? AND symbol = ?", accountID, symbol).Order("event_timestamp desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]types.PnlLedgerEntry, len(rows))
	for i, row := range rows {
		out[i] = types.PnlLedgerEntry{
			LedgerID:       row.LedgerID,
			AccountID:      row.AccountID,
			Symbol:         row.Symbol,
			EventType:      types.LedgerEventType(row.EventType),
			Amount:         row.Amount,
			RefID:          row.RefID,
			EventTimestamp: row.EventTimestamp,
		}
	}
	return out, nil
}
