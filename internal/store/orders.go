package store

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tradingcore/engine/types"
)

// OrderRepository persists types.Order (spec §3, §6 orders table).
type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func toOrderRow(o types.Order) OrderRow {
	return OrderRow{
		OrderID:        o.OrderID,
		AccountID:      o.AccountID,
		StrategyID:     o.StrategyID,
		SignalID:       o.SignalID,
		Symbol:         o.Symbol,
		Side:           string(o.Side),
		OrderType:      string(o.OrderType),
		Qty:            o.Qty,
		Price:          o.Price,
		Status:         string(o.Status),
		IdempotencyKey: o.IdempotencyKey,
		BrokerOrderNo:  o.BrokerOrderNo,
		RejectCode:     o.RejectCode,
		RejectMessage:  o.RejectMessage,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

func fromOrderRow(r OrderRow) types.Order {
	return types.Order{
		OrderID:        r.OrderID,
		AccountID:      r.AccountID,
		StrategyID:     r.StrategyID,
		SignalID:       r.SignalID,
		Symbol:         r.Symbol,
		Side:           types.Side(r.Side),
		OrderType:      types.OrderType(r.OrderType),
		Qty:            r.Qty,
		Price:          r.Price,
		Status:         types.OrderStatus(r.Status),
		IdempotencyKey: r.IdempotencyKey,
		BrokerOrderNo:  r.BrokerOrderNo,
		RejectCode:     r.RejectCode,
		RejectMessage:  r.RejectMessage,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

// Insert writes a brand new order row.
func (r *OrderRepository) Insert(o types.Order) error {
	row := toOrderRow(o)
	return r.db.Create(&row).Error
}

// InsertOrderInTx writes a brand new order row within an existing transaction —
// used when the insert must share a transaction with a risk-state mutation
// (spec §9 Open Question 2).
func InsertOrderInTx(tx *gorm.DB, o types.Order) error {
	row := toOrderRow(o)
	return tx.Create(&row).Error
}

// FindByIdempotencyKey supports C7's idempotency-key dedup on submission
// (spec §4.2: "resubmission with the same idempotencyKey returns the
// existing order rather than creating a new one").
func (r *OrderRepository) FindByIdempotencyKey(accountID, key string) (*types.Order, error) {
	var row OrderRow
	err := r.db.Where("account_id = ? AND idempotency_key = ?", accountID, key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	o := fromOrderRow(row)
	return &o, nil
}

func (r *OrderRepository) FindByID(orderID string) (*types.Order, error) {
	var row OrderRow
	err := r.db.Where("order_id = ?", orderID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	o := fromOrderRow(row)
	return &o, nil
}

func (r *OrderRepository) FindByBrokerOrderNo(brokerOrderNo string) (*types.Order, error) {
	var row OrderRow
	err := r.db.Where("broker_order_no = ?", brokerOrderNo).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	o := fromOrderRow(row)
	return &o, nil
}

// ListOpenByAccount returns non-terminal orders for an account. The risk
// engine's open-order-count rule reads RiskState.OpenOrderCount, not this.
func (r *OrderRepository) ListOpenByAccount(accountID string) ([]types.Order, error) {
	var rows []OrderRow
	terminal := []string{
		string(types.OrderStatusFilled),
		string(types.OrderStatusCancelled),
		string(types.OrderStatusRejected),
		string(types.OrderStatusError),
	}
	err := r.db.Where("account_id = ? AND status NOT IN ?", accountID, terminal).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]types.Order, len(rows))
	for i, row := range rows {
		out[i] = fromOrderRow(row)
	}
	return out, nil
}

// CountOrdersSince counts an account's orders created at or after since. The
// risk engine's order-frequency rule uses RiskState.OrderFrequencyTracker
// instead of this count.
func (r *OrderRepository) CountOrdersSince(accountID string, since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&OrderRow{}).
		Where("account_id = ? AND created_at >= ?", accountID, since).
		Count(&count).Error
	return count, err
}

// UpdateStatus applies a state-machine transition (spec §4.2) and persists
// broker/reject metadata alongside it.
func (r *OrderRepository) UpdateStatus(orderID string, status types.OrderStatus, brokerOrderNo, rejectCode, rejectMessage string, updatedAt time.Time) error {
	updates := map[string]interface{}{
		"status":     string(status),
		"updated_at": updatedAt,
	}
	if brokerOrderNo != "" {
		updates["broker_order_no"] = brokerOrderNo
	}
	if rejectCode != "" {
		updates["reject_code"] = rejectCode
	}
	if rejectMessage != "" {
		updates["reject_message"] = rejectMessage
	}
	return r.db.Model(&OrderRow{}).Where("order_id = ?", orderID).Updates(updates).Error
}
