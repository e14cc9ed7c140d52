package broker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// ReconnectPolicy configures the stream's reconnect backoff (spec §5, §6).
type ReconnectPolicy struct {
	Max               int
	InitialDelay      time.Duration
	BackoffMultiplier float64
}

// HeartbeatPolicy configures the periodic ping (spec §6). PongTimeout bounds
// the context handed to BrokerStream.Ping; pongs are not tracked.
type HeartbeatPolicy struct {
	PingInterval time.Duration
	PongTimeout  time.Duration
}

// StreamRunner keeps a BrokerStream connected, reconnecting with backoff on
// drop and forwarding messages to handle. Grounded on the teacher's
// core.Engine main loop style (a supervising loop around a fallible
// subsystem) generalized with explicit backoff state instead of a fixed
// retry sleep.
type StreamRunner struct {
	stream    BrokerStream
	symbols   []string
	reconnect ReconnectPolicy
	heartbeat HeartbeatPolicy
	log       zerolog.Logger
}

func NewStreamRunner(stream BrokerStream, symbols []string, reconnect ReconnectPolicy, heartbeat HeartbeatPolicy, log zerolog.Logger) *StreamRunner {
	return &StreamRunner{
		stream:    stream,
		symbols:   symbols,
		reconnect: reconnect,
		heartbeat: heartbeat,
		log:       log.With().Str("component", "broker.stream").Logger(),
	}
}

// Run blocks until ctx is cancelled, reconnecting on disconnect up to
// reconnect.Max consecutive failures before giving up.
func (r *StreamRunner) Run(ctx context.Context, handle func(StreamMessage)) error {
	attempt := 0
	delay := r.reconnect.InitialDelay

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		messages, err := r.stream.Connect(ctx)
		if err != nil {
			attempt++
			if r.reconnect.Max > 0 && attempt > r.reconnect.Max {
				return err
			}
			r.log.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("stream connect failed, backing off")
			if !sleep(ctx, delay) {
				return ctx.Err()
			}
			delay = nextDelay(delay, r.reconnect.BackoffMultiplier)
			continue
		}

		if err := r.stream.Subscribe(ctx, r.symbols); err != nil {
			r.log.Warn().Err(err).Msg("stream subscribe failed")
		}

		attempt = 0
		delay = r.reconnect.InitialDelay
		if err := r.consume(ctx, messages, handle); err != nil {
			r.log.Warn().Err(err).Msg("stream dropped, reconnecting")
			continue
		}
		return nil
	}
}

func (r *StreamRunner) consume(ctx context.Context, messages <-chan StreamMessage, handle func(StreamMessage)) error {
	pingTicker := time.NewTicker(r.heartbeat.PingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pingTicker.C:
			pingCtx, cancel := context.WithTimeout(ctx, r.heartbeat.PongTimeout)
			err := r.stream.Ping(pingCtx)
			cancel()
			if err != nil {
				return err
			}
		case msg, ok := <-messages:
			if !ok {
				return errStreamClosed
			}
			handle(msg)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func nextDelay(d time.Duration, multiplier float64) time.Duration {
	return time.Duration(float64(d) * multiplier)
}

type streamClosedError struct{}

func (streamClosedError) Error() string { return "broker stream channel closed" }

var errStreamClosed = streamClosedError{}
