package strategy

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/tradingcore/engine/types"
)

// MACrossoverEngine signals BUY when a fast SMA crosses above a slow SMA
// and SELL on the reverse cross. Param-driven construction (fastPeriod/
// slowPeriod read from strings, defaulted, validated before use) follows
// the teacher's NewCrypto15mStrategyWithWeights: a strategy's tunables
// arrive as a flat config map rather than hard-coded constants.
type MACrossoverEngine struct{}

func (e *MACrossoverEngine) Name() string { return "MA_CROSSOVER" }

func (e *MACrossoverEngine) ValidateParams(params map[string]string) error {
	fast, slow, err := maPeriods(params)
	if err != nil {
		return err
	}
	if fast >= slow {
		return fmt.Errorf("strategy: MA_CROSSOVER fastPeriod (%d) must be less than slowPeriod (%d)", fast, slow)
	}
	return nil
}

func (e *MACrossoverEngine) RequiredBars(params map[string]string) int {
	_, slow, err := maPeriods(params)
	if err != nil {
		slow = 26
	}
	return clampBars(slow + 10 + 1)
}

func (e *MACrossoverEngine) Evaluate(ctx Context) (Decision, error) {
	fast, slow, err := maPeriods(ctx.Params)
	if err != nil {
		return Decision{}, err
	}
	closes := ctx.Closes()
	if len(closes) < slow+1 {
		return Decision{}, nil // HOLD: not enough history yet
	}

	fastPrev := SMA(closes[:len(closes)-1], fast)
	slowPrev := SMA(closes[:len(closes)-1], slow)
	fastNow := SMA(closes, fast)
	slowNow := SMA(closes, slow)

	crossedUp := fastPrev.LessThanOrEqual(slowPrev) && fastNow.GreaterThan(slowNow)
	crossedDown := fastPrev.GreaterThanOrEqual(slowPrev) && fastNow.LessThan(slowNow)

	switch {
	case crossedUp:
		return Decision{
			SignalType:  types.SignalBuy,
			TargetType:  "PRICE",
			TargetValue: ctx.LastClose(),
			Reason:      fmt.Sprintf("fast SMA(%d)=%s crossed above slow SMA(%d)=%s", fast, fastNow.StringFixed(4), slow, slowNow.StringFixed(4)),
		}, nil
	case crossedDown:
		return Decision{
			SignalType:  types.SignalSell,
			TargetType:  "PRICE",
			TargetValue: ctx.LastClose(),
			Reason:      fmt.Sprintf("fast SMA(%d)=%s crossed below slow SMA(%d)=%s", fast, fastNow.StringFixed(4), slow, slowNow.StringFixed(4)),
		}, nil
	default:
		return Decision{}, nil
	}
}

func maPeriods(params map[string]string) (fast, slow int, err error) {
	fast, err = paramInt(params, "fastPeriod", 12)
	if err != nil {
		return 0, 0, err
	}
	slow, err = paramInt(params, "slowPeriod", 26)
	if err != nil {
		return 0, 0, err
	}
	return fast, slow, nil
}

func paramInt(params map[string]string, key string, def int) (int, error) {
	raw, ok := params[key]
	if !ok || raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("strategy: param %q must be an integer, got %q", key, raw)
	}
	if n <= 0 {
		return 0, fmt.Errorf("strategy: param %q must be positive, got %d", key, n)
	}
	return n, nil
}

func paramDecimal(params map[string]string, key string, def decimal.Decimal) (decimal.Decimal, error) {
	raw, ok := params[key]
	if !ok || raw == "" {
		return def, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("strategy: param %q must be a decimal, got %q", key, raw)
	}
	return d, nil
}
