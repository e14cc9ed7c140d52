package orders

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tradingcore/engine/internal/broker"
	"github.com/tradingcore/engine/internal/clock"
	"github.com/tradingcore/engine/internal/errs"
	"github.com/tradingcore/engine/internal/idgen"
	"github.com/tradingcore/engine/internal/risk"
	"github.com/tradingcore/engine/internal/store"
	"github.com/tradingcore/engine/types"
)

type stubBrokerClient struct {
	placeErr error
	brokerNo string
}

func (s *stubBrokerClient) PlaceOrder(ctx context.Context, req broker.PlaceRequest) (broker.PlaceResult, error) {
	if s.placeErr != nil {
		return broker.PlaceResult{}, s.placeErr
	}
	return broker.PlaceResult{BrokerOrderNo: s.brokerNo}, nil
}

func (s *stubBrokerClient) CancelOrder(ctx context.Context, accountID, brokerOrderNo string) error {
	return nil
}

func (s *stubBrokerClient) ModifyOrder(ctx context.Context, accountID, brokerOrderNo string, newQty int64, newPrice decimal.Decimal) error {
	return nil
}

func (s *stubBrokerClient) GetCash(ctx context.Context, accountID string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func newTestManager(t *testing.T, client broker.BrokerClient) (*Manager, *gorm.DB) {
	t.Helper()
	db, err := store.Open(":memory:")
	require.NoError(t, err)

	c := clock.NewFrozen(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))
	mgr := New(
		db,
		store.NewOrderRepository(db),
		store.NewPositionRepository(db),
		risk.New(db, store.NewRiskRuleRepository(db), c),
		client,
		idgen.New(c),
		c,
		5,
	)
	return mgr, db
}

func TestPlaceSucceedsAndTransitionsToSent(t *testing.T) {
	mgr, _ := newTestManager(t, &stubBrokerClient{brokerNo: "broker-1"})

	order, err := mgr.Place(context.Background(), PlaceCommand{
		AccountID:      "acct-1",
		Symbol:         "005930",
		Side:           types.SideBuy,
		OrderType:      types.OrderTypeLimit,
		Qty:            10,
		Price:          decimal.NewFromInt(70000),
		IdempotencyKey: "idem-1",
	})
	require.NoError(t, err)
	require.Equal(t, types.OrderStatusSent, order.Status)
	require.Equal(t, "broker-1", order.BrokerOrderNo)
}

func TestPlaceIsIdempotent(t *testing.T) {
	mgr, _ := newTestManager(t, &stubBrokerClient{brokerNo: "broker-1"})

	cmd := PlaceCommand{
		AccountID:      "acct-1",
		Symbol:         "005930",
		Side:           types.SideBuy,
		OrderType:      types.OrderTypeLimit,
		Qty:            10,
		Price:          decimal.NewFromInt(70000),
		IdempotencyKey: "idem-dup",
	}
	first, err := mgr.Place(context.Background(), cmd)
	require.NoError(t, err)

	second, err := mgr.Place(context.Background(), cmd)
	require.NoError(t, err)
	require.Equal(t, first.OrderID, second.OrderID)
}

func TestPlaceRejectedByRiskEngineReturnsTypedError(t *testing.T) {
	mgr, db := newTestManager(t, &stubBrokerClient{brokerNo: "broker-1"})

	one := 1
	require.NoError(t, store.NewRiskRuleRepository(db).Upsert(types.RiskRule{
		RuleID:        "rule-1",
		Scope:         types.RiskScopePerAccount,
		AccountID:     "acct-1",
		MaxOpenOrders: &one,
	}))
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return store.SaveRiskStateWithVersion(tx, types.RiskState{AccountID: "acct-1", OpenOrderCount: 1}, 0)
	}))

	_, err := mgr.Place(context.Background(), PlaceCommand{
		AccountID: "acct-1",
		Symbol:    "005930",
		Side:      types.SideBuy,
		OrderType: types.OrderTypeLimit,
		Qty:       10,
		Price:     decimal.NewFromInt(70000),
	})
	require.Error(t, err)
	var riskErr *errs.RiskLimitExceeded
	require.ErrorAs(t, err, &riskErr)
}

func TestCancelRejectsTerminalOrder(t *testing.T) {
	mgr, db := newTestManager(t, &stubBrokerClient{brokerNo: "broker-1"})

	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	orderRepo := store.NewOrderRepository(db)
	require.NoError(t, orderRepo.Insert(types.Order{
		OrderID:   "ord-done",
		AccountID: "acct-1",
		Symbol:    "005930",
		Side:      types.SideBuy,
		OrderType: types.OrderTypeLimit,
		Qty:       10,
		Status:    types.OrderStatusFilled,
		CreatedAt: now,
		UpdatedAt: now,
	}))

	err := mgr.Cancel(context.Background(), "ord-done")
	require.Error(t, err)
	var cancelErr *errs.OrderCancellation
	require.ErrorAs(t, err, &cancelErr)
}
