package store

import (
	"errors"

	"gorm.io/gorm"

	"github.com/tradingcore/engine/types"
)

// PositionRepository persists types.Position, one row per (account, symbol)
// (spec §3 I1, §6 positions table).
type PositionRepository struct {
	db *gorm.DB
}

func NewPositionRepository(db *gorm.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

func toPositionRow(p types.Position, version int64) PositionRow {
	return PositionRow{
		PositionID:  p.PositionID,
		AccountID:   p.AccountID,
		Symbol:      p.Symbol,
		Qty:         p.Qty,
		AvgPrice:    p.AvgPrice,
		RealizedPnl: p.RealizedPnl,
		Version:     version,
	}
}

func fromPositionRow(r PositionRow) types.Position {
	return types.Position{
		PositionID:  r.PositionID,
		AccountID:   r.AccountID,
		Symbol:      r.Symbol,
		Qty:         r.Qty,
		AvgPrice:    r.AvgPrice,
		RealizedPnl: r.RealizedPnl,
	}
}

// GetForUpdate loads a position row within an existing transaction with a
// row lock, mirroring the teacher's SELECT ... FOR UPDATE style reconciler
// writes (spec §5: "row-level locking for position mutation"). Returns
// (nil, 0, nil) when no row exists yet — callers create one on first fill.
func GetForUpdate(tx *gorm.DB, accountID, symbol string) (*types.Position, int64, error) {
	var row PositionRow
	err := tx.Clauses(lockingClause()).
		Where("account_id = ? AND symbol = ?", accountID, symbol).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	p := fromPositionRow(row)
	return &p, row.Version, nil
}

// UpsertWithVersion writes p back with optimistic-concurrency-style version
// bump, to be called inside the same transaction GetForUpdate ran in.
func UpsertWithVersion(tx *gorm.DB, p types.Position, expectedVersion int64) error {
	if expectedVersion == 0 {
		row := toPositionRow(p, 1)
		return tx.Create(&row).Error
	}
	result := tx.Model(&PositionRow{}).
		Where("account_id = ? AND symbol = ? AND version = ?", p.AccountID, p.Symbol, expectedVersion).
		Updates(map[string]interface{}{
			"qty":          p.Qty,
			"avg_price":    p.AvgPrice,
			"realized_pnl": p.RealizedPnl,
			"version":      expectedVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPositionVersionConflict
	}
	return nil
}

func (r *PositionRepository) Get(accountID, symbol string) (*types.Position, error) {
	var row PositionRow
	err := r.db.Where("account_id = ? AND symbol = ?", accountID, symbol).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p := fromPositionRow(row)
	return &p, nil
}

// ListOpenByAccount returns every non-flat position for an account.
func (r *PositionRepository) ListOpenByAccount(accountID string) ([]types.Position, error) {
	var rows []PositionRow
	if err := r.db.Where("account_id = ? AND qty != 0", accountID).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]types.Position, len(rows))
	for i, row := range rows {
		out[i] = fromPositionRow(row)
	}
	return out, nil
}

var ErrPositionVersionConflict = errors.New("store: position version conflict, retry")
