package store

import (
	"errors"

	"gorm.io/gorm"

	"github.com/tradingcore/engine/types"
)

// FillRepository persists types.Fill (spec §3, §6 fills table).
type FillRepository struct {
	db *gorm.DB
}

func NewFillRepository(db *gorm.DB) *FillRepository {
	return &FillRepository{db: db}
}

func toFillRow(f types.Fill) FillRow {
	return FillRow{
		FillID:        f.FillID,
		OrderID:       f.OrderID,
		AccountID:     f.AccountID,
		Symbol:        f.Symbol,
		Side:          string(f.Side),
		FillPrice:     f.FillPrice,
		FillQty:       f.FillQty,
		Fee:           f.Fee,
		Tax:           f.Tax,
		FillTimestamp: f.FillTimestamp,
		BrokerOrderNo: f.BrokerOrderNo,
	}
}

func fromFillRow(r FillRow) types.Fill {
	return types.Fill{
		FillID:        r.FillID,
		OrderID:       r.OrderID,
		AccountID:     r.AccountID,
		Symbol:        r.Symbol,
		Side:          types.Side(r.Side),
		FillPrice:     r.FillPrice,
		FillQty:       r.FillQty,
		Fee:           r.Fee,
		Tax:           r.Tax,
		FillTimestamp: r.FillTimestamp,
		BrokerOrderNo: r.BrokerOrderNo,
	}
}

// Insert writes a fill row. Callers are expected to have already checked
// ExistsByNaturalKey for dedup (spec §4.3/§4.6).
func (r *FillRepository) Insert(f types.Fill) error {
	row := toFillRow(f)
	return r.db.Create(&row).Error
}

// InsertFillInTx writes a fill row within an existing transaction, for
// callers that dedup-check, insert, and mutate the position in that one
// transaction (spec §4.3).
func InsertFillInTx(tx *gorm.DB, f types.Fill) error {
	row := toFillRow(f)
	return tx.Create(&row).Error
}

// ExistsByNaturalKey checks the (orderId, fillTimestamp, fillPrice,
// fillQty) dedup key the fill applier (C8) must honor.
func (r *FillRepository) ExistsByNaturalKey(key types.FillNaturalKey) (bool, error) {
	var count int64
	err := r.db.Model(&FillRow{}).
		Where("order_id = ? AND fill_timestamp = ? AND fill_price = ? AND fill_qty = ?",
			key.OrderID, key.FillTimestamp, key.FillPrice, key.FillQty).
		Count(&count).Error
	return count > 0, err
}

func (r *FillRepository) ListByOrderID(orderID string) ([]types.Fill, error) {
	var rows []FillRow
	if err := r.db.Where("order_id = ?", orderID).Order("fill_timestamp asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]types.Fill, len(rows))
	for i, row := range rows {
		out[i] = fromFillRow(row)
	}
	return out, nil
}

var ErrFillNotFound = errors.New("store: fill not found")
