package store

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tradingcore/engine/types"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	return db
}

func TestOrderRepositoryIdempotencyKeyDedup(t *testing.T) {
	db := openTestDB(t)
	repo := NewOrderRepository(db)

	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	order := types.Order{
		OrderID:        "ord-1",
		AccountID:      "acct-1",
		Symbol:         "005930",
		Side:           types.SideBuy,
		OrderType:      types.OrderTypeLimit,
		Qty:            10,
		Price:          decimal.NewFromInt(70000),
		Status:         types.OrderStatusNew,
		IdempotencyKey: "idem-1",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, repo.Insert(order))

	found, err := repo.FindByIdempotencyKey("acct-1", "idem-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, "ord-1", found.OrderID)

	missing, err := repo.FindByIdempotencyKey("acct-1", "no-such-key")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestOrderRepositoryUpdateStatus(t *testing.T) {
	db := openTestDB(t)
	repo := NewOrderRepository(db)

	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	order := types.Order{
		OrderID:   "ord-2",
		AccountID: "acct-1",
		Symbol:    "005930",
		Side:      types.SideBuy,
		OrderType: types.OrderTypeMarket,
		Qty:       5,
		Status:    types.OrderStatusNew,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, repo.Insert(order))

	require.NoError(t, repo.UpdateStatus("ord-2", types.OrderStatusSent, "broker-123", "", "", now.Add(time.Second)))

	updated, err := repo.FindByID("ord-2")
	require.NoError(t, err)
	require.Equal(t, types.OrderStatusSent, updated.Status)
	require.Equal(t, "broker-123", updated.BrokerOrderNo)
}

func TestPositionRepositoryUpsertWithVersionConflict(t *testing.T) {
	db := openTestDB(t)

	pos := types.Position{
		PositionID: "pos-1",
		AccountID:  "acct-1",
		Symbol:     "005930",
		Qty:        10,
		AvgPrice:   decimal.NewFromInt(70000),
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		return UpsertWithVersion(tx, pos, 0)
	})
	require.NoError(t, err)

	pos.Qty = 20
	err = db.Transaction(func(tx *gorm.DB) error {
		return UpsertWithVersion(tx, pos, 1)
	})
	require.NoError(t, err)

	// Stale version now fails.
	err = db.Transaction(func(tx *gorm.DB) error {
		return UpsertWithVersion(tx, pos, 1)
	})
	require.ErrorIs(t, err, ErrPositionVersionConflict)

	repo := NewPositionRepository(db)
	got, err := repo.Get("acct-1", "005930")
	require.NoError(t, err)
	require.Equal(t, int64(20), got.Qty)
}

func TestFillRepositoryDedupByNaturalKey(t *testing.T) {
	db := openTestDB(t)
	repo := NewFillRepository(db)

	ts := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	fill := types.Fill{
		FillID:        "fill-1",
		OrderID:       "ord-1",
		AccountID:     "acct-1",
		Symbol:        "005930",
		Side:          types.SideBuy,
		FillPrice:     decimal.NewFromInt(70000),
		FillQty:       10,
		FillTimestamp: ts,
	}
	require.NoError(t, repo.Insert(fill))

	exists, err := repo.ExistsByNaturalKey(fill.NaturalKey())
	require.NoError(t, err)
	require.True(t, exists)

	notExists, err := repo.ExistsByNaturalKey(types.FillNaturalKey{OrderID: "ord-1", FillTimestamp: ts, FillPrice: decimal.NewFromInt(70001), FillQty: 10})
	require.NoError(t, err)
	require.False(t, notExists)
}

func TestOutboxRepositoryPublishAndRetryLifecycle(t *testing.T) {
	db := openTestDB(t)
	repo := NewOutboxRepository(db)

	ev := types.OutboxEvent{
		OutboxID:   "ob-1",
		EventID:    "ev-1",
		EventType:  types.EventFillReceived,
		OccurredAt: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
		Payload:    map[string]string{"orderId": "ord-1"},
		Status:     types.OutboxPending,
	}
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return AppendOutboxInTx(tx, ev)
	}))

	pending, err := repo.ListUnpublished(10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "ord-1", pending[0].Payload["orderId"])

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.MarkRetry("ob-1", 3, "timeout"))
	}

	exists, err := repo.ExistsByEventID("ev-1")
	require.NoError(t, err)
	require.True(t, exists)

	stillPending, err := repo.ListUnpublished(10)
	require.NoError(t, err)
	require.Len(t, stillPending, 0) // dead-lettered after hitting retryLimit
}
