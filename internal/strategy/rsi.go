package strategy

import (
	"fmt"

	"github.com/tradingcore/engine/types"
)

// RSIEngine signals BUY when RSI crosses up out of oversold territory and
// SELL when it crosses down out of overbought territory, rather than
// firing continuously while RSI sits in either zone — matching the
// teacher's indicators.RSIScore threshold bands (30/70) but emitting a
// discrete signal on the crossing edge instead of a continuous score.
type RSIEngine struct{}

func (e *RSIEngine) Name() string { return "RSI" }

func (e *RSIEngine) ValidateParams(params map[string]string) error {
	_, err := rsiParams(params)
	return err
}

func (e *RSIEngine) RequiredBars(params map[string]string) int {
	p, err := rsiParams(params)
	if err != nil {
		return clampBars(14 + 10 + 1)
	}
	return clampBars(p.period + 10 + 1)
}

type rsiParamSet struct {
	period     int
	oversold   int
	overbought int
}

func rsiParams(params map[string]string) (rsiParamSet, error) {
	period, err := paramInt(params, "period", 14)
	if err != nil {
		return rsiParamSet{}, err
	}
	oversold, err := paramInt(params, "oversold", 30)
	if err != nil {
		return rsiParamSet{}, err
	}
	overbought, err := paramInt(params, "overbought", 70)
	if err != nil {
		return rsiParamSet{}, err
	}
	if oversold >= overbought {
		return rsiParamSet{}, fmt.Errorf("strategy: RSI oversold (%d) must be less than overbought (%d)", oversold, overbought)
	}
	return rsiParamSet{period: period, oversold: oversold, overbought: overbought}, nil
}

func (e *RSIEngine) Evaluate(ctx Context) (Decision, error) {
	p, err := rsiParams(ctx.Params)
	if err != nil {
		return Decision{}, err
	}
	closes := ctx.Closes()
	if len(closes) < p.period+2 {
		return Decision{}, nil
	}

	rsiPrev := RSI(closes[:len(closes)-1], p.period)
	rsiNow := RSI(closes, p.period)
	oversold := decimalFromInt(p.oversold)
	overbought := decimalFromInt(p.overbought)

	switch {
	case rsiPrev.LessThanOrEqual(oversold) && rsiNow.GreaterThan(oversold):
		return Decision{
			SignalType:  types.SignalBuy,
			TargetType:  "PRICE",
			TargetValue: ctx.LastClose(),
			Reason:      fmt.Sprintf("RSI(%d) crossed up out of oversold: %s -> %s", p.period, rsiPrev.StringFixed(2), rsiNow.StringFixed(2)),
		}, nil
	case rsiPrev.GreaterThanOrEqual(overbought) && rsiNow.LessThan(overbought):
		return Decision{
			SignalType:  types.SignalSell,
			TargetType:  "PRICE",
			TargetValue: ctx.LastClose(),
			Reason:      fmt.Sprintf("RSI(%d) crossed down out of overbought: %s -> %s", p.period, rsiPrev.StringFixed(2), rsiNow.StringFixed(2)),
		}, nil
	default:
		return Decision{}, nil
	}
}
