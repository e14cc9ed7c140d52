package broker

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/tradingcore/engine/internal/idgen"
	"github.com/tradingcore/engine/internal/store"
	"github.com/tradingcore/engine/types"
)

func TestFillReconcilerRejectsUnknownBrokerOrderNo(t *testing.T) {
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	orders := store.NewOrderRepository(db)
	r := NewFillReconciler(orders, idgen.NewDefault(), decimal.NewFromInt(100))

	_, err = r.Reconcile(FillMessage{BrokerOrderNo: "ghost", Symbol: "005930", FillPrice: decimal.NewFromInt(70000), FillQty: 10, FillTimestamp: time.Now()})
	require.Error(t, err)
}

func TestFillReconcilerAcceptsValidFill(t *testing.T) {
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	orders := store.NewOrderRepository(db)
	r := NewFillReconciler(orders, idgen.NewDefault(), decimal.NewFromInt(100))

	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, orders.Insert(types.Order{
		OrderID:       "ord-1",
		AccountID:     "acct-1",
		Symbol:        "005930",
		Side:          types.SideBuy,
		OrderType:     types.OrderTypeLimit,
		Qty:           10,
		Price:         decimal.NewFromInt(70000),
		Status:        types.OrderStatusSent,
		BrokerOrderNo: "broker-1",
		CreatedAt:     now,
		UpdatedAt:     now,
	}))

	fill, err := r.Reconcile(FillMessage{
		BrokerOrderNo: "broker-1",
		Symbol:        "005930",
		FillPrice:     decimal.NewFromInt(70010),
		FillQty:       10,
		FillTimestamp: now.Add(time.Second),
	})
	require.NoError(t, err)
	require.Equal(t, "ord-1", fill.OrderID)
}

func TestFillReconcilerRejectsPriceOutsideTolerance(t *testing.T) {
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	orders := store.NewOrderRepository(db)
	r := NewFillReconciler(orders, idgen.NewDefault(), decimal.NewFromInt(10))

	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, orders.Insert(types.Order{
		OrderID:       "ord-2",
		AccountID:     "acct-1",
		Symbol:        "005930",
		Side:          types.SideBuy,
		OrderType:     types.OrderTypeLimit,
		Qty:           10,
		Price:         decimal.NewFromInt(70000),
		Status:        types.OrderStatusSent,
		BrokerOrderNo: "broker-2",
		CreatedAt:     now,
		UpdatedAt:     now,
	}))

	_, err = r.Reconcile(FillMessage{
		BrokerOrderNo: "broker-2",
		Symbol:        "005930",
		FillPrice:     decimal.NewFromInt(75000),
		FillQty:       10,
		FillTimestamp: now.Add(time.Second),
	})
	require.Error(t, err)
}
