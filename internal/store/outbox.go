package store

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"github.com/tradingcore/engine/types"
)

// OutboxRepository persists types.OutboxEvent (spec §4.7 transactional
// outbox, with SPEC_FULL's dead-letter accounting supplement).
type OutboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func toOutboxRow(e types.OutboxEvent) (OutboxRow, error) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return OutboxRow{}, err
	}
	return OutboxRow{
		OutboxID:    e.OutboxID,
		EventID:     e.EventID,
		EventType:   e.EventType,
		OccurredAt:  e.OccurredAt,
		PayloadJSON: string(payload),
		PublishedAt: e.PublishedAt,
		RetryCount:  e.RetryCount,
		LastError:   e.LastError,
		Status:      string(e.Status),
	}, nil
}

func fromOutboxRow(row OutboxRow) (types.OutboxEvent, error) {
	var payload map[string]string
	if row.PayloadJSON != "" {
		if err := json.Unmarshal([]byte(row.PayloadJSON), &payload); err != nil {
			return types.OutboxEvent{}, err
		}
	}
	return types.OutboxEvent{
		OutboxID:    row.OutboxID,
		EventID:     row.EventID,
		EventType:   row.EventType,
		OccurredAt:  row.OccurredAt,
		Payload:     payload,
		PublishedAt: row.PublishedAt,
		RetryCount:  row.RetryCount,
		LastError:   row.LastError,
		Status:      types.OutboxStatus(row.Status),
	}, nil
}

// AppendOutboxInTx writes an outbox row in the same transaction as the state
// change that produced it (spec §4.7: "write to the outbox in the same
// transaction as the state change").
func AppendOutboxInTx(tx *gorm.DB, e types.OutboxEvent) error {
	row, err := toOutboxRow(e)
	if err != nil {
		return err
	}
	return tx.Create(&row).Error
}

// ListUnpublished returns up to batchSize PENDING events, oldest first, for
// the publisher's poll loop (spec §4.7, §6 outbox.batchSize).
func (r *OutboxRepository) ListUnpublished(batchSize int) ([]types.OutboxEvent, error) {
	var rows []OutboxRow
	err := r.db.Where("status = ?", string(types.OutboxPending)).
		Order("occurred_at asc").
		Limit(batchSize).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]types.OutboxEvent, 0, len(rows))
	for _, row := range rows {
		e, err := fromOutboxRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// MarkPublished transitions an event to PUBLISHED.
func (r *OutboxRepository) MarkPublished(outboxID string, publishedAt time.Time) error {
	return r.db.Model(&OutboxRow{}).Where("outbox_id = ?", outboxID).Updates(map[string]interface{}{
		"status":       string(types.OutboxPublished),
		"published_at": publishedAt,
	}).Error
}

// MarkRetry increments the retry count and records the failure, dead-
// lettering once the retry count reaches retryLimit (SPEC_FULL supplement).
func (r *OutboxRepository) MarkRetry(outboxID string, retryLimit int, lastErr string) error {
	var row OutboxRow
	if err := r.db.Where("outbox_id = ?", outboxID).First(&row).Error; err != nil {
		return err
	}
	newCount := row.RetryCount + 1
	status := string(types.OutboxPending)
	if newCount >= retryLimit {
		status = string(types.OutboxDeadLettered)
	}
	return r.db.Model(&OutboxRow{}).Where("outbox_id = ?", outboxID).Updates(map[string]interface{}{
		"retry_count": newCount,
		"last_error":  lastErr,
		"status":      status,
	}).Error
}

// ExistsByEventID supports dedup on the eventId (spec §4.7).
func (r *OutboxRepository) ExistsByEventID(eventID string) (bool, error) {
	var count int64
	err := r.db.Model(&OutboxRow{}).Where("event_id = ?", eventID).Count(&count).Error
	return count > 0, err
}
