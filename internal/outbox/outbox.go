// Package outbox implements the transactional outbox publisher (spec §4.7,
// C5): a polling loop that reads PENDING rows written in-transaction by
// other components and hands them to a Sink, retrying with dead-letter
// accounting after the configured retry limit. A failed event is retried on
// the next poll; there is no per-event backoff. Loop shape is
// grounded on the teacher's reconciler polling pattern in
// execution/reconciler.go.
package outbox

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tradingcore/engine/internal/clock"
	"github.com/tradingcore/engine/internal/store"
	"github.com/tradingcore/engine/types"
)

// Sink delivers a published event somewhere outside the database — a
// websocket broadcast, a Telegram notification, a metrics counter. Sinks
// must be idempotent: MarkPublished only happens after Publish succeeds,
// but a process crash between the two can redeliver.
type Sink interface {
	Publish(ctx context.Context, event types.OutboxEvent) error
}

// Config controls polling cadence and dead-letter accounting.
type Config struct {
	BatchSize    int
	RetryLimit   int
	PollInterval time.Duration
}

// Publisher drains the outbox on a fixed interval.
type Publisher struct {
	repo   *store.OutboxRepository
	sinks  []Sink
	cfg    Config
	clock  clock.Clock
	log    zerolog.Logger
}

func New(repo *store.OutboxRepository, cfg Config, c clock.Clock, log zerolog.Logger, sinks ...Sink) *Publisher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	return &Publisher{repo: repo, sinks: sinks, cfg: cfg, clock: c, log: log.With().Str("component", "outbox").Logger()}
}

// Run blocks, polling until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.drainOnce(ctx); err != nil {
				p.log.Error().Err(err).Msg("outbox drain failed")
			}
		}
	}
}

// drainOnce publishes one batch and reports the last error encountered, if
// any, without aborting the batch — each event's failure is independent.
func (p *Publisher) drainOnce(ctx context.Context) error {
	events, err := p.repo.ListUnpublished(p.cfg.BatchSize)
	if err != nil {
		return err
	}

	var lastErr error
	for _, event := range events {
		if err := p.publishOne(ctx, event); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func (p *Publisher) publishOne(ctx context.Context, event types.OutboxEvent) error {
	for _, sink := range p.sinks {
		if err := sink.Publish(ctx, event); err != nil {
			p.log.Warn().Str("eventId", event.EventID).Str("eventType", event.EventType).Err(err).Msg("sink publish failed")
			if retryErr := p.repo.MarkRetry(event.OutboxID, p.cfg.RetryLimit, err.Error()); retryErr != nil {
				return retryErr
			}
			return err
		}
	}
	return p.repo.MarkPublished(event.OutboxID, p.clock.Now())
}
