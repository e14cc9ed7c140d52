// Package types holds the domain model shared across the trading core.
// Keeping these in one leaf package (mirroring the teacher's types package)
// avoids import cycles between risk, orders, fills, position and strategy.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order or fill.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderType distinguishes market vs limit orders.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// OrderStatus is a node in the state machine from spec §4.2.
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusSent            OrderStatus = "SENT"
	OrderStatusAccepted        OrderStatus = "ACCEPTED"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
	OrderStatusRejected        OrderStatus = "REJECTED"
	OrderStatusError           OrderStatus = "ERROR"
)

// Order is the persisted order record (spec §3).
type Order struct {
	OrderID        string
	AccountID      string
	StrategyID     string // optional
	SignalID       string // optional
	Symbol         string
	Side           Side
	OrderType      OrderType
	Qty            int64
	Price          decimal.Decimal
	Status         OrderStatus
	IdempotencyKey string // optional
	BrokerOrderNo  string // optional
	RejectCode     string
	RejectMessage  string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsTerminal reports whether the order can never transition again.
func (o *Order) IsTerminal() bool {
	switch o.Status {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected, OrderStatusError:
		return true
	}
	return false
}

// Fill is an immutable execution report (spec §3). Natural dedup key is
// (OrderID, FillTimestamp, FillPrice, FillQty).
type Fill struct {
	FillID         string
	OrderID        string
	AccountID      string
	Symbol         string
	Side           Side
	FillPrice      decimal.Decimal
	FillQty        int64
	Fee            decimal.Decimal
	Tax            decimal.Decimal
	FillTimestamp  time.Time
	BrokerOrderNo  string
}

// NaturalKey returns the dedup key described in spec §3.
func (f *Fill) NaturalKey() FillNaturalKey {
	return FillNaturalKey{
		OrderID:       f.OrderID,
		FillTimestamp: f.FillTimestamp,
		FillPrice:     f.FillPrice,
		FillQty:       f.FillQty,
	}
}

// FillNaturalKey is a comparable dedup key for fills.
type FillNaturalKey struct {
	OrderID       string
	FillTimestamp time.Time
	FillPrice     decimal.Decimal
	FillQty       int64
}

// Position is the net holding of a symbol in an account (spec §3, I1).
type Position struct {
	PositionID  string
	AccountID   string
	Symbol      string
	Qty         int64 // positive=long, negative=short, 0=flat
	AvgPrice    decimal.Decimal
	RealizedPnl decimal.Decimal
}

// IsFlat reports whether the position is closed.
func (p *Position) IsFlat() bool {
	return p.Qty == 0
}

// LedgerEventType enumerates the PnlLedger entry kinds.
type LedgerEventType string

const (
	LedgerEventFill   LedgerEventType = "FILL"
	LedgerEventFee    LedgerEventType = "FEE"
	LedgerEventTax    LedgerEventType = "TAX"
	LedgerEventAdjust LedgerEventType = "ADJUST"
)

// PnlLedgerEntry is an append-only ledger row (spec §3).
type PnlLedgerEntry struct {
	LedgerID       string
	AccountID      string
	Symbol         string
	EventType      LedgerEventType
	Amount         decimal.Decimal // signed; FEE/TAX stored negative
	RefID          string
	EventTimestamp time.Time
}

// PortfolioSnapshot is a point-in-time accounting snapshot (spec §3).
type PortfolioSnapshot struct {
	SnapshotID    string
	AccountID     string
	Cash          decimal.Decimal
	TotalValue    decimal.Decimal
	RealizedPnl   decimal.Decimal
	UnrealizedPnl decimal.Decimal
	Timestamp     time.Time
}

// RiskRuleScope is the applicability scope of a RiskRule.
type RiskRuleScope string

const (
	RiskScopeGlobal     RiskRuleScope = "GLOBAL"
	RiskScopePerAccount RiskRuleScope = "PER_ACCOUNT"
	RiskScopePerSymbol  RiskRuleScope = "PER_SYMBOL"
)

// RiskRule is a configured limit set (spec §3). Optional fields are nil
// pointers so "unset" vs "zero" is distinguishable, matching the spec's "if
// set" language throughout §4.1.
type RiskRule struct {
	RuleID                       string
	Scope                        RiskRuleScope
	AccountID                    string // required if Scope == PER_ACCOUNT or PER_SYMBOL
	Symbol                       string // required if Scope == PER_SYMBOL
	MaxPositionValuePerSymbol    *decimal.Decimal
	MaxOpenOrders                *int
	MaxOrdersPerMinute           *int
	DailyLossLimit               *decimal.Decimal
	ConsecutiveOrderFailuresLimit *int
}

// KillSwitchState is the tri-state kill switch (spec §3).
type KillSwitchState string

const (
	KillSwitchOff    KillSwitchState = "OFF"
	KillSwitchArmed  KillSwitchState = "ARMED"
	KillSwitchOn     KillSwitchState = "ON"
)

// RiskState is the mutable, persisted per-account (plus one GLOBAL) risk
// state (spec §3).
type RiskState struct {
	AccountID               string // empty for the GLOBAL row
	Scope                   RiskRuleScope
	KillSwitch              KillSwitchState
	KillSwitchReason        string
	DailyPnl                decimal.Decimal
	Exposure                decimal.Decimal
	ConsecutiveOrderFailures int
	OpenOrderCount           int
	OrderFrequencyTracker    []time.Time
	Version                  int64 // optimistic concurrency column
}

// SignalType enumerates strategy output.
type SignalType string

const (
	SignalBuy  SignalType = "BUY"
	SignalSell SignalType = "SELL"
	SignalHold SignalType = "HOLD"
)

// Signal is a strategy's trading intent (spec §3). HOLD signals are never
// persisted — see strategy.Runner.
type Signal struct {
	SignalID          string
	StrategyID        string
	StrategyVersionID string
	AccountID         string
	Symbol            string
	SignalType        SignalType
	TargetType        string // optional
	TargetValue       decimal.Decimal
	TTLSeconds        int
	Reason            string
	CreatedAt         time.Time
}

// ExpiresAt returns when the signal's TTL lapses. Consumption of this value
// (e.g. refusing to act on an expired signal) is left to the downstream
// order generator per spec §9's open question — this type only exposes it.
func (s *Signal) ExpiresAt() time.Time {
	return s.CreatedAt.Add(time.Duration(s.TTLSeconds) * time.Second)
}

// OutboxEvent is a row in the transactional outbox (spec §3, §4.7).
type OutboxEvent struct {
	OutboxID    string
	EventID     string
	EventType   string
	OccurredAt  time.Time
	Payload     map[string]string
	PublishedAt *time.Time
	RetryCount  int
	LastError   string
	Status      OutboxStatus
}

// OutboxStatus tracks dead-letter accounting (SPEC_FULL supplement).
type OutboxStatus string

const (
	OutboxPending      OutboxStatus = "PENDING"
	OutboxPublished    OutboxStatus = "PUBLISHED"
	OutboxDeadLettered OutboxStatus = "DEAD_LETTERED"
)

// Canonical event types (spec §6).
const (
	EventOrderSent        = "ORDER_SENT"
	EventOrderRejected    = "ORDER_REJECTED"
	EventOrderError       = "ORDER_ERROR"
	EventOrderCancelled   = "ORDER_CANCELLED"
	EventOrderModified    = "ORDER_MODIFIED"
	EventFillReceived     = "FillReceived"
	EventPositionUpdated  = "PositionUpdated"
	EventPnlUpdated       = "PnlUpdated"
	EventSignalGenerated  = "SignalGenerated"
	EventTokenRefreshed   = "TokenRefreshed"
	EventKillSwitchToggled = "KillSwitchToggled"
)
