package broker

import (
	"github.com/shopspring/decimal"

	"github.com/tradingcore/engine/internal/errs"
	"github.com/tradingcore/engine/internal/idgen"
	"github.com/tradingcore/engine/internal/store"
	"github.com/tradingcore/engine/types"
)

// FillReconciler validates inbound FillMessages against the order they
// claim to belong to before they're allowed anywhere near position/PnL
// accounting (spec §4.6). Grounded on the teacher's execution/reconciler.go
// RecoverPositions/PersistPosition validate-then-apply shape.
type FillReconciler struct {
	orders *store.OrderRepository
	ids    *idgen.Generator

	// priceTolerance bounds how far a fill price may sit outside the
	// order's own price for LIMIT orders (MARKET orders have no bound).
	priceTolerance decimal.Decimal
}

func NewFillReconciler(orders *store.OrderRepository, ids *idgen.Generator, priceTolerance decimal.Decimal) *FillReconciler {
	return &FillReconciler{orders: orders, ids: ids, priceTolerance: priceTolerance}
}

// Reconcile matches msg to its order by BrokerOrderNo, validates it, and
// returns the resulting types.Fill. Validation rules (spec §4.6):
//   - the brokerOrderNo must match a known order
//   - the fill's symbol must match the order's symbol
//   - fillQty must be positive and not exceed the order's qty (earlier
//     fills against the same order are not subtracted)
//   - fillPrice must be positive, and for LIMIT orders within priceTolerance
//     of the order's limit price
//   - fillTimestamp must not be before the order's CreatedAt
func (r *FillReconciler) Reconcile(msg FillMessage) (types.Fill, error) {
	order, err := r.orders.FindByBrokerOrderNo(msg.BrokerOrderNo)
	if err != nil {
		return types.Fill{}, err
	}
	if order == nil {
		return types.Fill{}, &errs.FillValidation{Reason: "no order found for brokerOrderNo " + msg.BrokerOrderNo}
	}
	if order.Symbol != msg.Symbol {
		return types.Fill{}, &errs.FillValidation{Reason: "symbol mismatch for order " + order.OrderID}
	}
	if msg.FillQty <= 0 {
		return types.Fill{}, &errs.FillValidation{Reason: "non-positive fillQty"}
	}
	if msg.FillQty > order.Qty {
		return types.Fill{}, &errs.FillValidation{Reason: "fillQty exceeds order qty"}
	}
	if !msg.FillPrice.IsPositive() {
		return types.Fill{}, &errs.FillValidation{Reason: "non-positive fillPrice"}
	}
	if order.OrderType == types.OrderTypeLimit {
		diff := msg.FillPrice.Sub(order.Price).Abs()
		if diff.GreaterThan(r.priceTolerance) {
			return types.Fill{}, &errs.FillValidation{Reason: "fillPrice outside tolerance of limit price"}
		}
	}
	if msg.FillTimestamp.Before(order.CreatedAt) {
		return types.Fill{}, &errs.FillValidation{Reason: "fillTimestamp precedes order creation"}
	}

	return types.Fill{
		FillID:        r.ids.New26(),
		OrderID:       order.OrderID,
		AccountID:     order.AccountID,
		Symbol:        msg.Symbol,
		Side:          order.Side,
		FillPrice:     msg.FillPrice,
		FillQty:       msg.FillQty,
		FillTimestamp: msg.FillTimestamp,
		BrokerOrderNo: msg.BrokerOrderNo,
	}, nil
}
