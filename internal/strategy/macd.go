package strategy

import (
	"fmt"

	"github.com/tradingcore/engine/types"
)

// MACDEngine signals BUY when the MACD line crosses above its signal line
// and SELL on the reverse cross — the standard MACD crossover, computed
// with a true EMA-of-MACD signal line (indicators.go's MACD) rather than
// the teacher's "macdLine * 0.9" approximation.
type MACDEngine struct{}

func (e *MACDEngine) Name() string { return "MACD" }

func (e *MACDEngine) ValidateParams(params map[string]string) error {
	_, err := macdParams(params)
	return err
}

func (e *MACDEngine) RequiredBars(params map[string]string) int {
	p, err := macdParams(params)
	if err != nil {
		return clampBars(26 + 9 + 10 + 1)
	}
	return clampBars(p.slow + p.signal + 10 + 1)
}

type macdParamSet struct {
	fast, slow, signal int
}

func macdParams(params map[string]string) (macdParamSet, error) {
	fast, err := paramInt(params, "fastPeriod", 12)
	if err != nil {
		return macdParamSet{}, err
	}
	slow, err := paramInt(params, "slowPeriod", 26)
	if err != nil {
		return macdParamSet{}, err
	}
	signal, err := paramInt(params, "signalPeriod", 9)
	if err != nil {
		return macdParamSet{}, err
	}
	if fast >= slow {
		return macdParamSet{}, fmt.Errorf("strategy: MACD fastPeriod (%d) must be less than slowPeriod (%d)", fast, slow)
	}
	return macdParamSet{fast: fast, slow: slow, signal: signal}, nil
}

func (e *MACDEngine) Evaluate(ctx Context) (Decision, error) {
	p, err := macdParams(ctx.Params)
	if err != nil {
		return Decision{}, err
	}
	closes := ctx.Closes()
	minLen := p.slow + p.signal + 1
	if len(closes) < minLen {
		return Decision{}, nil
	}

	linePrev, signalPrev, _ := MACD(closes[:len(closes)-1], p.fast, p.slow, p.signal)
	lineNow, signalNow, _ := MACD(closes, p.fast, p.slow, p.signal)

	crossedUp := linePrev.LessThanOrEqual(signalPrev) && lineNow.GreaterThan(signalNow)
	crossedDown := linePrev.GreaterThanOrEqual(signalPrev) && lineNow.LessThan(signalNow)

	switch {
	case crossedUp:
		return Decision{
			SignalType:  types.SignalBuy,
			TargetType:  "PRICE",
			TargetValue: ctx.LastClose(),
			Reason:      fmt.Sprintf("MACD line crossed above signal line: %s -> %s", linePrev.StringFixed(4), lineNow.StringFixed(4)),
		}, nil
	case crossedDown:
		return Decision{
			SignalType:  types.SignalSell,
			TargetType:  "PRICE",
			TargetValue: ctx.LastClose(),
			Reason:      fmt.Sprintf("MACD line crossed below signal line: %s -> %s", linePrev.StringFixed(4), lineNow.StringFixed(4)),
		}, nil
	default:
		return Decision{}, nil
	}
}
