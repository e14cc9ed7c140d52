// Package strategy implements the strategy runner (spec §4.5): pluggable
// signal-generation engines evaluated on a schedule against recent bars,
// gated by cooldown/dedup and a per-(strategy,symbol,account) reentrancy
// lock. The Engine interface and registry replace this package's original
// single hard-coded Polymarket crypto strategy with the spec's pluggable
// MA_CROSSOVER/RSI/BOLLINGER/MACD engine set, but keep the teacher's
// separation between a "Strategy" (what decides) and a "Signal" (what it
// outputs) and its BaseStrategy-style shared scaffolding.
package strategy

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradingcore/engine/internal/marketdata"
	"github.com/tradingcore/engine/types"
)

// Context is what an Engine sees when evaluating one (strategy, symbol,
// account) triple: recent closed bars, oldest first, and the timeframe
// they were aggregated at.
type Context struct {
	AccountID string
	Symbol    string
	Timeframe time.Duration
	Bars      []marketdata.Bar
	Params    map[string]string
}

// Closes extracts close prices from the context's bars, oldest first, for
// engines built on the indicator math in indicators.go.
func (c Context) Closes() []decimal.Decimal {
	out := make([]decimal.Decimal, len(c.Bars))
	for i, b := range c.Bars {
		out[i] = b.Close
	}
	return out
}

func (c Context) LastClose() decimal.Decimal {
	if len(c.Bars) == 0 {
		return decimal.Zero
	}
	return c.Bars[len(c.Bars)-1].Close
}

// Decision is an Engine's verdict: the zero value (SignalType "") means
// HOLD and is never persisted (spec §3).
type Decision struct {
	SignalType  types.SignalType
	TargetType  string
	TargetValue decimal.Decimal
	Reason      string
}

func (d Decision) IsActionable() bool {
	return d.SignalType == types.SignalBuy || d.SignalType == types.SignalSell
}

// Engine is one pluggable strategy implementation (spec §4.5).
type Engine interface {
	Name() string
	ValidateParams(params map[string]string) error
	Evaluate(ctx Context) (Decision, error)
	// RequiredBars reports how many closed bars this engine needs, given
	// its params, sized as its longest lookback+10+1 (slowPeriod+signalPeriod
	// for MACD) and capped at 200 by clampBars (spec §4.5); the runner loads
	// exactly that many bars.
	RequiredBars(params map[string]string) int
}

// Constructor builds a fresh, stateless Engine instance for a strategy
// type name.
type Constructor func() Engine

// Registry maps strategy type names to constructors (spec §4.5).
type Registry struct {
	constructors map[string]Constructor
}

// NewRegistry builds a Registry seeded with the four built-in engine types
// spec §4.5 names.
func NewRegistry() *Registry {
	r := &Registry{constructors: make(map[string]Constructor)}
	r.Register("MA_CROSSOVER", func() Engine { return &MACrossoverEngine{} })
	r.Register("RSI", func() Engine { return &RSIEngine{} })
	r.Register("BOLLINGER", func() Engine { return &BollingerEngine{} })
	r.Register("MACD", func() Engine { return &MACDEngine{} })
	return r
}

func (r *Registry) Register(typeName string, ctor Constructor) {
	r.constructors[typeName] = ctor
}

func (r *Registry) Build(typeName string) (Engine, error) {
	ctor, ok := r.constructors[typeName]
	if !ok {
		return nil, fmt.Errorf("strategy: unknown engine type %q", typeName)
	}
	return ctor(), nil
}

// maxContextBars is the spec §4.5 cap on RequiredBars: N = max(periods)+10+1,
// capped at 200.
const maxContextBars = 200

func clampBars(n int) int {
	if n > maxContextBars {
		return maxContextBars
	}
	if n < 1 {
		return 1
	}
	return n
}
