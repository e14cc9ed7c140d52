// Package orders implements the order manager (spec §2 C7, §4.2): idempotent
// placement, the order state machine, and cancel/modify against the broker
// with its retry policy. Grounded on the teacher's execution.Executor
// (SubmitOrder/simulateFill/executeLive), adapted from Polymarket CLOB
// orders to the brokerage order lifecycle spec §4.2 describes.
package orders

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tradingcore/engine/internal/broker"
	"github.com/tradingcore/engine/internal/clock"
	"github.com/tradingcore/engine/internal/errs"
	"github.com/tradingcore/engine/internal/idgen"
	"github.com/tradingcore/engine/internal/risk"
	"github.com/tradingcore/engine/internal/store"
	"github.com/tradingcore/engine/types"
)

// PlaceCommand is the caller's request to place a new order.
type PlaceCommand struct {
	AccountID      string
	StrategyID     string
	SignalID       string
	Symbol         string
	Side           types.Side
	OrderType      types.OrderType
	Qty            int64
	Price          decimal.Decimal
	IdempotencyKey string
}

// Manager coordinates risk approval, persistence, and broker submission for
// the full order lifecycle (spec §4.2).
type Manager struct {
	db       *gorm.DB
	orders   *store.OrderRepository
	positions *store.PositionRepository
	risk     *risk.Engine
	client   broker.BrokerClient
	ids      *idgen.Generator
	clk      clock.Clock
	failureLimit int
}

func New(db *gorm.DB, orders *store.OrderRepository, positions *store.PositionRepository, riskEngine *risk.Engine, client broker.BrokerClient, ids *idgen.Generator, c clock.Clock, consecutiveFailureLimit int) *Manager {
	return &Manager{
		db:           db,
		orders:       orders,
		positions:    positions,
		risk:         riskEngine,
		client:       client,
		ids:          ids,
		clk:          c,
		failureLimit: consecutiveFailureLimit,
	}
}

// Place runs the full placement pipeline: idempotency-key dedup, risk
// approval, persistence (NEW), broker submission, persistence (SENT or
// REJECTED/ERROR). Risk approval and the NEW-order insert happen in one
// transaction so a later persistence failure rolls back the risk state's
// order-frequency append too (spec §9 Open Question 2).
func (m *Manager) Place(ctx context.Context, cmd PlaceCommand) (types.Order, error) {
	if cmd.IdempotencyKey != "" {
		existing, err := m.orders.FindByIdempotencyKey(cmd.AccountID, cmd.IdempotencyKey)
		if err != nil {
			return types.Order{}, err
		}
		if existing != nil {
			return *existing, nil
		}
	}

	var currentValue decimal.Decimal
	if pos, err := m.positions.Get(cmd.AccountID, cmd.Symbol); err != nil {
		return types.Order{}, err
	} else if pos != nil {
		currentValue = pos.AvgPrice.Mul(decimal.NewFromInt(absInt64(pos.Qty)))
	}

	isReducing, err := m.isReducingExposure(cmd)
	if err != nil {
		return types.Order{}, err
	}

	now := m.clk.Now()
	order := types.Order{
		OrderID:        m.ids.New26(),
		AccountID:      cmd.AccountID,
		StrategyID:     cmd.StrategyID,
		SignalID:       cmd.SignalID,
		Symbol:         cmd.Symbol,
		Side:           cmd.Side,
		OrderType:      cmd.OrderType,
		Qty:            cmd.Qty,
		Price:          cmd.Price,
		Status:         types.OrderStatusNew,
		IdempotencyKey: cmd.IdempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	var decision risk.Decision
	err = m.db.Transaction(func(tx *gorm.DB) error {
		d, err := m.risk.Evaluate(tx, risk.OrderIntent{
			AccountID:             cmd.AccountID,
			Symbol:                cmd.Symbol,
			Side:                  cmd.Side,
			Qty:                   cmd.Qty,
			Price:                 cmd.Price,
			CurrentPositionValue:  currentValue,
		}, isReducing)
		if err != nil {
			return err
		}
		decision = d
		if !d.Approved {
			return nil
		}
		if err := m.risk.RecordApprovedOrder(tx, cmd.AccountID); err != nil {
			return err
		}
		return store.InsertOrderInTx(tx, order)
	})
	if err != nil {
		return types.Order{}, err
	}
	if !decision.Approved {
		return types.Order{}, &errs.RiskLimitExceeded{RuleViolated: decision.Reason}
	}

	return m.submit(ctx, order)
}

func (m *Manager) submit(ctx context.Context, order types.Order) (types.Order, error) {
	var result broker.PlaceResult
	err := broker.OrderRetryPolicy.Do(ctx, isTransportError, func(ctx context.Context) error {
		r, err := m.client.PlaceOrder(ctx, broker.PlaceRequest{
			AccountID: order.AccountID,
			Symbol:    order.Symbol,
			Side:      order.Side,
			OrderType: order.OrderType,
			Qty:       order.Qty,
			Price:     order.Price,
		})
		if err != nil {
			return err
		}
		result = r
		return nil
	})

	now := m.clk.Now()
	if err != nil {
		status, rejectCode, rejectMessage := classifyFailure(err)
		if uErr := m.orders.UpdateStatus(order.OrderID, status, "", rejectCode, rejectMessage, now); uErr != nil {
			return types.Order{}, uErr
		}
		_ = m.db.Transaction(func(tx *gorm.DB) error {
			return m.risk.RecordOrderOutcome(tx, order.AccountID, false, m.failureLimit)
		})
		order.Status = status
		order.RejectCode = rejectCode
		order.RejectMessage = rejectMessage
		order.UpdatedAt = now
		return order, err
	}

	if uErr := m.orders.UpdateStatus(order.OrderID, types.OrderStatusSent, result.BrokerOrderNo, "", "", now); uErr != nil {
		return types.Order{}, uErr
	}
	_ = m.db.Transaction(func(tx *gorm.DB) error {
		return m.risk.RecordOrderOutcome(tx, order.AccountID, true, m.failureLimit)
	})
	order.Status = types.OrderStatusSent
	order.BrokerOrderNo = result.BrokerOrderNo
	order.UpdatedAt = now
	return order, nil
}

// Cancel asks the broker to cancel an order still eligible for cancellation
// (anything non-terminal), updating status to CANCELLED on success.
func (m *Manager) Cancel(ctx context.Context, orderID string) error {
	order, err := m.orders.FindByID(orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return &errs.OrderCancellation{OrderID: orderID, Reason: "order not found"}
	}
	if order.IsTerminal() {
		return &errs.OrderCancellation{OrderID: orderID, Reason: fmt.Sprintf("order already terminal (%s)", order.Status)}
	}

	err = broker.OrderRetryPolicy.Do(ctx, isTransportError, func(ctx context.Context) error {
		return m.client.CancelOrder(ctx, order.AccountID, order.BrokerOrderNo)
	})
	if err != nil {
		return &errs.OrderCancellation{OrderID: orderID, Reason: err.Error()}
	}
	return m.orders.UpdateStatus(orderID, types.OrderStatusCancelled, "", "", "", m.clk.Now())
}

// Modify asks the broker to change qty/price on an order still eligible for
// modification (ACCEPTED or PARTIALLY_FILLED only — spec §4.2). On success
// only the local row's UpdatedAt is refreshed: its Qty and Price keep their
// old values, and no ORDER_MODIFIED outbox event is written.
func (m *Manager) Modify(ctx context.Context, orderID string, newQty int64, newPrice decimal.Decimal) error {
	order, err := m.orders.FindByID(orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return &errs.OrderModification{OrderID: orderID, Reason: "order not found"}
	}
	if order.Status != types.OrderStatusAccepted && order.Status != types.OrderStatusPartiallyFilled {
		return &errs.OrderModification{OrderID: orderID, Reason: fmt.Sprintf("cannot modify order in status %s", order.Status)}
	}

	err = broker.OrderRetryPolicy.Do(ctx, isTransportError, func(ctx context.Context) error {
		return m.client.ModifyOrder(ctx, order.AccountID, order.BrokerOrderNo, newQty, newPrice)
	})
	if err != nil {
		return &errs.OrderModification{OrderID: orderID, Reason: err.Error()}
	}
	return m.orders.UpdateStatus(orderID, order.Status, "", "", "", m.clk.Now())
}

func (m *Manager) isReducingExposure(cmd PlaceCommand) (bool, error) {
	pos, err := m.positions.Get(cmd.AccountID, cmd.Symbol)
	if err != nil {
		return false, err
	}
	if pos == nil || pos.Qty == 0 {
		return false, nil
	}
	if pos.Qty > 0 {
		return cmd.Side == types.SideSell, nil
	}
	return cmd.Side == types.SideBuy, nil
}

func isTransportError(err error) bool {
	var transport *errs.BrokerTransport
	return asBrokerTransport(err, &transport)
}

func asBrokerTransport(err error, target **errs.BrokerTransport) bool {
	for err != nil {
		if t, ok := err.(*errs.BrokerTransport); ok {
			*target = t
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}

func classifyFailure(err error) (types.OrderStatus, string, string) {
	if reject, ok := err.(*errs.BrokerBusinessReject); ok {
		return types.OrderStatusRejected, reject.Code, reject.Message
	}
	return types.OrderStatusError, "", err.Error()
}

func absInt64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

