// Package store is the gorm-backed persistence layer for every table named
// in spec §6: orders, fills, positions, pnl_ledger, portfolio_snapshots,
// risk_rules, risk_states, strategies, strategy_versions, strategy_symbols,
// signals, broker_tokens, event_outbox. Model style (gorm struct tags,
// TableName overrides, postgres/sqlite dual driver) is grounded on the
// teacher's internal/database/database.go.
package store

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderRow persists types.Order.
type OrderRow struct {
	OrderID        string `gorm:"column:order_id;primaryKey"`
	AccountID      string `gorm:"column:account_id;index:idx_orders_account_status"`
	StrategyID     string `gorm:"column:strategy_id"`
	SignalID       string `gorm:"column:signal_id"`
	Symbol         string `gorm:"column:symbol"`
	Side           string `gorm:"column:side"`
	OrderType      string `gorm:"column:order_type"`
	Qty            int64  `gorm:"column:qty"`
	Price          decimal.Decimal `gorm:"column:price;type:decimal(18,4)"`
	Status         string `gorm:"column:status;index:idx_orders_account_status"`
	IdempotencyKey string `gorm:"column:idempotency_key;uniqueIndex:idx_orders_idempotency_key"`
	BrokerOrderNo  string `gorm:"column:broker_order_no"`
	RejectCode     string `gorm:"column:reject_code"`
	RejectMessage  string `gorm:"column:reject_message"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (OrderRow) TableName() string { return "orders" }

// FillRow persists types.Fill.
type FillRow struct {
	FillID        string `gorm:"column:fill_id;primaryKey"`
	OrderID       string `gorm:"column:order_id;index:idx_fills_order_id"`
	AccountID     string `gorm:"column:account_id"`
	Symbol        string `gorm:"column:symbol"`
	Side          string `gorm:"column:side"`
	FillPrice     decimal.Decimal `gorm:"column:fill_price;type:decimal(18,4)"`
	FillQty       int64           `gorm:"column:fill_qty"`
	Fee           decimal.Decimal `gorm:"column:fee;type:decimal(18,0)"`
	Tax           decimal.Decimal `gorm:"column:tax;type:decimal(18,0)"`
	FillTimestamp time.Time       `gorm:"column:fill_timestamp;index:idx_fills_natural_key"`
	BrokerOrderNo string          `gorm:"column:broker_order_no"`
}

func (FillRow) TableName() string { return "fills" }

// PositionRow persists types.Position, unique by (account_id, symbol).
type PositionRow struct {
	PositionID  string          `gorm:"column:position_id;primaryKey"`
	AccountID   string          `gorm:"column:account_id;uniqueIndex:idx_positions_account_symbol"`
	Symbol      string          `gorm:"column:symbol;uniqueIndex:idx_positions_account_symbol"`
	Qty         int64           `gorm:"column:qty"`
	AvgPrice    decimal.Decimal `gorm:"column:avg_price;type:decimal(18,4)"`
	RealizedPnl decimal.Decimal `gorm:"column:realized_pnl;type:decimal(20,4)"`
	Version     int64           `gorm:"column:version"`
}

func (PositionRow) TableName() string { return "positions" }

// LedgerRow persists types.PnlLedgerEntry (append-only).
type LedgerRow struct {
	LedgerID       string          `gorm:"column:ledger_id;primaryKey"`
	AccountID      string          `gorm:"column:account_id;index:idx_ledger_account_symbol"`
	Symbol         string          `gorm:"column:symbol;index:idx_ledger_account_symbol"`
	EventType      string          `gorm:"column:event_type"`
	Amount         decimal.Decimal `gorm:"column:amount;type:decimal(20,4)"`
	RefID          string          `gorm:"column:ref_id"`
	EventTimestamp time.Time       `gorm:"column:event_timestamp"`
}

func (LedgerRow) TableName() string { return "pnl_ledger" }

// SnapshotRow persists types.PortfolioSnapshot.
type SnapshotRow struct {
	SnapshotID    string          `gorm:"column:snapshot_id;primaryKey"`
	AccountID     string          `gorm:"column:account_id;index"`
	Cash          decimal.Decimal `gorm:"column:cash;type:decimal(20,4)"`
	TotalValue    decimal.Decimal `gorm:"column:total_value;type:decimal(20,4)"`
	RealizedPnl   decimal.Decimal `gorm:"column:realized_pnl;type:decimal(20,4)"`
	UnrealizedPnl decimal.Decimal `gorm:"column:unrealized_pnl;type:decimal(20,4)"`
	Timestamp     time.Time       `gorm:"column:timestamp"`
}

func (SnapshotRow) TableName() string { return "portfolio_snapshots" }

// RiskRuleRow persists types.RiskRule.
type RiskRuleRow struct {
	RuleID                        string           `gorm:"column:rule_id;primaryKey"`
	Scope                         string           `gorm:"column:scope"`
	AccountID                     string           `gorm:"column:account_id"`
	Symbol                        string           `gorm:"column:symbol"`
	MaxPositionValuePerSymbol     *decimal.Decimal `gorm:"column:max_position_value_per_symbol;type:decimal(20,4)"`
	MaxOpenOrders                 *int             `gorm:"column:max_open_orders"`
	MaxOrdersPerMinute            *int             `gorm:"column:max_orders_per_minute"`
	DailyLossLimit                *decimal.Decimal `gorm:"column:daily_loss_limit;type:decimal(20,4)"`
	ConsecutiveOrderFailuresLimit *int             `gorm:"column:consecutive_order_failures_limit"`
}

func (RiskRuleRow) TableName() string { return "risk_rules" }

// RiskStateRow persists types.RiskState. orderFrequencyTracker is stored as
// a comma-joined list of Unix-nanosecond integers — simple enough to avoid a
// JSON column type that differs between postgres and sqlite.
type RiskStateRow struct {
	AccountID                string `gorm:"column:account_id;primaryKey"`
	Scope                    string `gorm:"column:scope"`
	KillSwitch               string `gorm:"column:kill_switch"`
	KillSwitchReason         string `gorm:"column:kill_switch_reason"`
	DailyPnl                 decimal.Decimal `gorm:"column:daily_pnl;type:decimal(20,4)"`
	Exposure                 decimal.Decimal `gorm:"column:exposure;type:decimal(20,4)"`
	ConsecutiveOrderFailures int    `gorm:"column:consecutive_order_failures"`
	OpenOrderCount           int    `gorm:"column:open_order_count"`
	OrderFrequencyTrackerCSV string `gorm:"column:order_frequency_tracker_csv"`
	Version                  int64  `gorm:"column:version"`
}

func (RiskStateRow) TableName() string { return "risk_states" }

// GlobalRiskAccountID is the sentinel account_id used for the one GLOBAL
// risk state row (spec §3: "per account, plus one GLOBAL").
const GlobalRiskAccountID = "__GLOBAL__"

// StrategyRow persists a strategy definition.
type StrategyRow struct {
	StrategyID       string `gorm:"column:strategy_id;primaryKey"`
	Name             string `gorm:"column:name"`
	Type             string `gorm:"column:type"` // MA_CROSSOVER, RSI, BOLLINGER, MACD, CUSTOM
	Active           bool   `gorm:"column:active"`
	ActiveVersionID  string `gorm:"column:active_version_id"`
	CreatedAt        time.Time `gorm:"column:created_at"`
	UpdatedAt        time.Time `gorm:"column:updated_at"`
}

func (StrategyRow) TableName() string { return "strategies" }

// StrategyVersionRow persists one versioned parameter set for a strategy.
// ParamsCSV is a "key=value,key2=value2" encoding of the opaque key/value
// parameter map spec §4.5 describes.
type StrategyVersionRow struct {
	VersionID  string    `gorm:"column:version_id;primaryKey"`
	StrategyID string    `gorm:"column:strategy_id;index"`
	ParamsCSV  string    `gorm:"column:params_csv"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (StrategyVersionRow) TableName() string { return "strategy_versions" }

// StrategySymbolRow maps a strategy to a (symbol, account) it trades.
type StrategySymbolRow struct {
	ID         uint   `gorm:"column:id;primaryKey;autoIncrement"`
	StrategyID string `gorm:"column:strategy_id;index"`
	Symbol     string `gorm:"column:symbol"`
	AccountID  string `gorm:"column:account_id"`
}

func (StrategySymbolRow) TableName() string { return "strategy_symbols" }

// SignalRow persists types.Signal (HOLD signals are never written — spec §3).
type SignalRow struct {
	SignalID          string          `gorm:"column:signal_id;primaryKey"`
	StrategyID        string          `gorm:"column:strategy_id;index:idx_signals_strategy_symbol_created"`
	StrategyVersionID string          `gorm:"column:strategy_version_id"`
	AccountID         string          `gorm:"column:account_id"`
	Symbol            string          `gorm:"column:symbol;index:idx_signals_strategy_symbol_created"`
	SignalType        string          `gorm:"column:signal_type"`
	TargetType        string          `gorm:"column:target_type"`
	TargetValue       decimal.Decimal `gorm:"column:target_value;type:decimal(18,4)"`
	TTLSeconds        int             `gorm:"column:ttl_seconds"`
	Reason            string          `gorm:"column:reason"`
	CreatedAt         time.Time       `gorm:"column:created_at;index:idx_signals_strategy_symbol_created"`
}

func (SignalRow) TableName() string { return "signals" }

// BrokerTokenRow persists the C12 token lifecycle state.
type BrokerTokenRow struct {
	AccountID     string    `gorm:"column:account_id;primaryKey"`
	AccessToken   string    `gorm:"column:access_token"`
	TokenType     string    `gorm:"column:token_type"`
	ApprovalKey   string    `gorm:"column:approval_key"`
	IssuedAt      time.Time `gorm:"column:issued_at"`
	ExpiresAt     time.Time `gorm:"column:expires_at"`
}

func (BrokerTokenRow) TableName() string { return "broker_tokens" }

// OutboxRow persists types.OutboxEvent. PayloadJSON stores the opaque
// key/value payload as a JSON-encoded string.
type OutboxRow struct {
	OutboxID    string     `gorm:"column:outbox_id;primaryKey"`
	EventID     string     `gorm:"column:event_id;uniqueIndex"`
	EventType   string     `gorm:"column:event_type"`
	OccurredAt  time.Time  `gorm:"column:occurred_at"`
	PayloadJSON string     `gorm:"column:payload_json"`
	PublishedAt *time.Time `gorm:"column:published_at;index:idx_outbox_published_at"`
	RetryCount  int        `gorm:"column:retry_count"`
	LastError   string     `gorm:"column:last_error"`
	Status      string     `gorm:"column:status"`
}

func (OutboxRow) TableName() string { return "event_outbox" }

// AllModels lists every model for AutoMigrate.
func AllModels() []interface{} {
	return []interface{}{
		&OrderRow{}, &FillRow{}, &PositionRow{}, &LedgerRow{}, &SnapshotRow{},
		&RiskRuleRow{}, &RiskStateRow{},
		&StrategyRow{}, &StrategyVersionRow{}, &StrategySymbolRow{}, &SignalRow{},
		&BrokerTokenRow{}, &OutboxRow{},
	}
}
