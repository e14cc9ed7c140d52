// Package broker defines the external brokerage interfaces (spec §6) and
// the retry/backoff policy around them: BrokerClient for order placement,
// AuthClient for token issuance/refresh (C12), and BrokerStream for the
// real-time fill/tick feed with reconnect handling (C11). Concrete
// implementations live behind these interfaces so the rest of the engine
// never imports a specific brokerage SDK, mirroring the teacher's
// execution.Executor, which only ever calls through a narrow interface.
package broker

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradingcore/engine/types"
)

// PlaceRequest is what the order manager sends to place a new order.
type PlaceRequest struct {
	AccountID string
	Symbol    string
	Side      types.Side
	OrderType types.OrderType
	Qty       int64
	Price     decimal.Decimal
}

// PlaceResult is the broker's synchronous acknowledgement.
type PlaceResult struct {
	BrokerOrderNo string
}

// BrokerClient is the synchronous order-management surface (spec §6).
type BrokerClient interface {
	PlaceOrder(ctx context.Context, req PlaceRequest) (PlaceResult, error)
	CancelOrder(ctx context.Context, accountID, brokerOrderNo string) error
	ModifyOrder(ctx context.Context, accountID, brokerOrderNo string, newQty int64, newPrice decimal.Decimal) error
	GetCash(ctx context.Context, accountID string) (decimal.Decimal, error)
}

// TokenSet is what AuthClient.IssueToken/RefreshToken returns.
type TokenSet struct {
	AccessToken string
	TokenType   string
	ApprovalKey string
	ExpiresIn   time.Duration
}

// AuthClient issues and refreshes broker API tokens (spec §6, C12).
type AuthClient interface {
	IssueToken(ctx context.Context, appKey, appSecret string) (TokenSet, error)
	RefreshToken(ctx context.Context, appKey, appSecret, currentToken string) (TokenSet, error)
}

// StreamMessage is one message off the real-time feed: either a fill report
// or a tick update, never both.
type StreamMessage struct {
	Fill *FillMessage
	Tick *TickMessage
}

// FillMessage is a raw execution report from the broker stream, validated
// by the reconciliation listener before becoming a types.Fill (spec §4.6).
type FillMessage struct {
	BrokerOrderNo string
	Symbol        string
	Side          types.Side
	FillPrice     decimal.Decimal
	FillQty       int64
	FillTimestamp time.Time
}

// TickMessage is a raw price update from the broker stream.
type TickMessage struct {
	Symbol    string
	Price     decimal.Decimal
	Timestamp time.Time
}

// BrokerStream is the real-time feed (spec §6, C11). Connect returns once
// the connection is established; messages then arrive on the returned
// channel until the connection drops.
type BrokerStream interface {
	Connect(ctx context.Context) (<-chan StreamMessage, error)
	Subscribe(ctx context.Context, symbols []string) error
	Ping(ctx context.Context) error
}

// RetryPolicy is the exponential backoff the order manager applies to
// BrokerClient calls (spec §4.2): order placement gets one policy, read-only
// queries another, looser one.
type RetryPolicy struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	MaxAttempts  int
}

// OrderRetryPolicy matches spec §4.2's order-submission retry table.
var OrderRetryPolicy = RetryPolicy{
	InitialDelay: 1000 * time.Millisecond,
	Multiplier:   2.0,
	MaxDelay:     10000 * time.Millisecond,
	MaxAttempts:  3,
}

// QueryRetryPolicy matches spec §4.2's read-only query retry table.
var QueryRetryPolicy = RetryPolicy{
	InitialDelay: 500 * time.Millisecond,
	Multiplier:   1.5,
	MaxDelay:     5000 * time.Millisecond,
	MaxAttempts:  5,
}

// Retryable reports whether err should be retried under this policy. Only
// transport-level failures are retried; business rejections are not (spec
// §4.2, §7).
type Retryable func(err error) bool

// Do runs fn up to p.MaxAttempts times, sleeping with exponential backoff
// between attempts, stopping early if shouldRetry(err) is false.
func (p RetryPolicy) Do(ctx context.Context, shouldRetry Retryable, fn func(ctx context.Context) error) error {
	delay := p.InitialDelay
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !shouldRetry(err) || attempt == p.MaxAttempts {
			return err
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay = time.Duration(float64(delay) * p.Multiplier)
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return lastErr
}
