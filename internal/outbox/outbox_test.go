package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tradingcore/engine/internal/clock"
	"github.com/tradingcore/engine/internal/store"
	"github.com/tradingcore/engine/types"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	return db
}

type recordingSink struct {
	fail    bool
	events  []types.OutboxEvent
}

func (s *recordingSink) Publish(_ context.Context, e types.OutboxEvent) error {
	if s.fail {
		return errors.New("sink unavailable")
	}
	s.events = append(s.events, e)
	return nil
}

func TestPublisherMarksPublishedOnSuccess(t *testing.T) {
	db := openTestDB(t)
	repo := store.NewOutboxRepository(db)
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return store.AppendOutboxInTx(tx, types.OutboxEvent{
			OutboxID:   "ob-1",
			EventID:    "ev-1",
			EventType:  types.EventFillReceived,
			OccurredAt: now,
			Payload:    map[string]string{"orderId": "ord-1"},
			Status:     types.OutboxPending,
		})
	}))

	sink := &recordingSink{}
	pub := New(repo, Config{BatchSize: 10, RetryLimit: 3}, clock.NewFrozen(now), zerolog.Nop(), sink)

	require.NoError(t, pub.drainOnce(context.Background()))
	require.Len(t, sink.events, 1)

	remaining, err := repo.ListUnpublished(10)
	require.NoError(t, err)
	require.Len(t, remaining, 0)
}

func TestPublisherDeadLettersAfterRetryLimit(t *testing.T) {
	db := openTestDB(t)
	repo := store.NewOutboxRepository(db)
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return store.AppendOutboxInTx(tx, types.OutboxEvent{
			OutboxID:   "ob-2",
			EventID:    "ev-2",
			EventType:  types.EventFillReceived,
			OccurredAt: now,
			Payload:    map[string]string{},
			Status:     types.OutboxPending,
		})
	}))

	sink := &recordingSink{fail: true}
	pub := New(repo, Config{BatchSize: 10, RetryLimit: 2}, clock.NewFrozen(now), zerolog.Nop(), sink)

	_ = pub.drainOnce(context.Background())
	_ = pub.drainOnce(context.Background())

	remaining, err := repo.ListUnpublished(10)
	require.NoError(t, err)
	require.Len(t, remaining, 0) // dead-lettered, no longer PENDING
}
