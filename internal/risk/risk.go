// Package risk implements the pre-trade risk engine (spec §2 C6, §4.1): rule
// resolution (PER_SYMBOL > PER_ACCOUNT > GLOBAL), the short-circuit
// evaluation chain, the tri-state kill switch, and the order-frequency
// sliding window. Gate shape (TradeRequest/TradeApproval, ordered checks,
// circuit-trip side effect) is grounded on the teacher's risk/gate.go
// RiskGate, the richest risk-evaluation reference in the pack.
package risk

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tradingcore/engine/internal/clock"
	"github.com/tradingcore/engine/internal/errs"
	"github.com/tradingcore/engine/internal/store"
	"github.com/tradingcore/engine/types"
)

// OrderIntent is what the order manager asks the risk engine to approve
// before submitting to the broker (spec §4.1).
type OrderIntent struct {
	AccountID        string
	Symbol           string
	Side             types.Side
	Qty              int64
	Price            decimal.Decimal
	CurrentPositionValue decimal.Decimal
}

// Decision is the risk engine's verdict.
type Decision struct {
	Approved bool
	Reason   string
}

// Engine evaluates order intents against resolved RiskRules and mutates
// RiskState (open order count, order-frequency tracker, kill switch) inside
// the same transaction as the caller's order persistence (spec §9 Open
// Question 2).
type Engine struct {
	db    *gorm.DB
	rules *store.RiskRuleRepository
	clk   clock.Clock
}

func New(db *gorm.DB, rules *store.RiskRuleRepository, c clock.Clock) *Engine {
	return &Engine{db: db, rules: rules, clk: c}
}

// resolveRule implements the PER_SYMBOL > PER_ACCOUNT > GLOBAL precedence
// from spec §4.1: the most specific rule present wins in full, not merged
// field-by-field with a less specific one.
func (e *Engine) resolveRule(accountID, symbol string) (*types.RiskRule, error) {
	if rule, err := e.rules.FindPerSymbol(accountID, symbol); err != nil {
		return nil, err
	} else if rule != nil {
		return rule, nil
	}
	if rule, err := e.rules.FindPerAccount(accountID); err != nil {
		return nil, err
	} else if rule != nil {
		return rule, nil
	}
	return e.rules.FindGlobal()
}

// Evaluate runs the short-circuit chain within tx, which must be the same
// transaction the caller uses to persist the resulting order (spec §9 Open
// Question 2: risk-state mutation and order persistence are one unit).
//
// Order of checks (spec §4.1):
//  1. kill switch ON blocks everything immediately.
//  2. kill switch ARMED blocks new orders but allows closing exposure
//     (Side reducing an existing position is still allowed through).
//  3. rule resolution — no rule at all is an approval (no limits configured).
//  4. max open orders.
//  5. max orders per minute (sliding window over OrderFrequencyTracker).
//  6. max position value per symbol.
//  7. daily loss limit.
//
// Any failing step short-circuits and returns immediately; consecutive
// order failures are tracked by the caller via RecordOrderOutcome, which can
// trip the kill switch independently of this evaluation.
func (e *Engine) Evaluate(tx *gorm.DB, intent OrderIntent, isReducingExposure bool) (Decision, error) {
	state, _, err := store.GetRiskStateForUpdate(tx, intent.AccountID)
	if err != nil {
		return Decision{}, err
	}
	if state == nil {
		state = &types.RiskState{AccountID: intent.AccountID, Scope: types.RiskScopePerAccount, KillSwitch: types.KillSwitchOff}
	}

	if state.KillSwitch == types.KillSwitchOn {
		return Decision{Approved: false, Reason: "kill switch ON"}, nil
	}
	if state.KillSwitch == types.KillSwitchArmed && !isReducingExposure {
		return Decision{Approved: false, Reason: "kill switch ARMED: only exposure-reducing orders allowed"}, nil
	}

	rule, err := e.resolveRule(intent.AccountID, intent.Symbol)
	if err != nil {
		return Decision{}, err
	}
	if rule == nil {
		return Decision{Approved: true}, nil
	}

	if rule.MaxOpenOrders != nil && state.OpenOrderCount >= *rule.MaxOpenOrders {
		return Decision{Approved: false, Reason: fmt.Sprintf("max open orders exceeded (%d)", *rule.MaxOpenOrders)}, nil
	}

	if rule.MaxOrdersPerMinute != nil {
		now := e.clk.Now()
		windowStart := now.Add(-time.Minute)
		count := countSince(state.OrderFrequencyTracker, windowStart)
		if count >= *rule.MaxOrdersPerMinute {
			return Decision{Approved: false, Reason: fmt.Sprintf("order frequency exceeded (%d/min)", *rule.MaxOrdersPerMinute)}, nil
		}
	}

	if rule.MaxPositionValuePerSymbol != nil {
		orderValue := intent.Price.Mul(decimal.NewFromInt(intent.Qty))
		projected := intent.CurrentPositionValue.Add(orderValue)
		if projected.GreaterThan(*rule.MaxPositionValuePerSymbol) {
			return Decision{Approved: false, Reason: "max position value per symbol exceeded"}, nil
		}
	}

	if rule.DailyLossLimit != nil && state.DailyPnl.Neg().GreaterThan(*rule.DailyLossLimit) {
		return Decision{Approved: false, Reason: "daily loss limit exceeded"}, nil
	}

	return Decision{Approved: true}, nil
}

// RecordApprovedOrder appends the current time to the order-frequency
// tracker and bumps the open order count, persisting within tx (same
// transaction as Evaluate and the caller's order insert).
func (e *Engine) RecordApprovedOrder(tx *gorm.DB, accountID string) error {
	state, version, err := e.loadStateWithVersion(tx, accountID)
	if err != nil {
		return err
	}
	now := e.clk.Now()
	state.OrderFrequencyTracker = append(pruneOlderThan(state.OrderFrequencyTracker, now.Add(-time.Minute)), now)
	state.OpenOrderCount++
	return store.SaveRiskStateWithVersion(tx, *state, version)
}

// RecordOrderOutcome updates consecutive-failure accounting and trips the
// kill switch to ARMED once the configured threshold is reached (spec §4.1:
// consecutive broker rejections/errors escalate the kill switch rather than
// only blocking one order).
func (e *Engine) RecordOrderOutcome(tx *gorm.DB, accountID string, succeeded bool, failureLimit int) error {
	state, version, err := e.loadStateWithVersion(tx, accountID)
	if err != nil {
		return err
	}
	if succeeded {
		state.ConsecutiveOrderFailures = 0
		if state.OpenOrderCount > 0 {
			state.OpenOrderCount--
		}
	} else {
		state.ConsecutiveOrderFailures++
		if failureLimit > 0 && state.ConsecutiveOrderFailures >= failureLimit && state.KillSwitch == types.KillSwitchOff {
			state.KillSwitch = types.KillSwitchArmed
			state.KillSwitchReason = "consecutive order failure limit reached"
		}
	}
	return store.SaveRiskStateWithVersion(tx, *state, version)
}

// ToggleKillSwitch is the admin-initiated kill switch change (SPEC_FULL
// supplement); reason is mandatory and is stored as KillSwitchReason. No
// outbox event is written here.
func (e *Engine) ToggleKillSwitch(tx *gorm.DB, accountID string, target types.KillSwitchState, reason string) error {
	if reason == "" {
		return &errs.RiskLimitExceeded{RuleViolated: "kill_switch_toggle requires a reason"}
	}
	state, version, err := e.loadStateWithVersion(tx, accountID)
	if err != nil {
		return err
	}
	state.KillSwitch = target
	state.KillSwitchReason = reason
	return store.SaveRiskStateWithVersion(tx, *state, version)
}

func (e *Engine) loadStateWithVersion(tx *gorm.DB, accountID string) (*types.RiskState, int64, error) {
	state, version, err := store.GetRiskStateForUpdate(tx, accountID)
	if err != nil {
		return nil, 0, err
	}
	if state == nil {
		return &types.RiskState{AccountID: accountID, Scope: types.RiskScopePerAccount, KillSwitch: types.KillSwitchOff}, 0, nil
	}
	return state, version, nil
}

func countSince(ts []time.Time, since time.Time) int {
	n := 0
	for _, t := range ts {
		if t.After(since) {
			n++
		}
	}
	return n
}

func pruneOlderThan(ts []time.Time, cutoff time.Time) []time.Time {
	out := ts[:0:0]
	for _, t := range ts {
		if t.After(cutoff) {
			out = append(out, t)
		}
	}
	return out
}

// NewGlobalState builds the canonical GLOBAL risk state row (spec §9 Open
// Question 1: explicit Scope rather than the zero value).
func NewGlobalState() types.RiskState {
	return types.RiskState{
		AccountID:  "",
		Scope:      types.RiskScopeGlobal,
		KillSwitch: types.KillSwitchOff,
	}
}
