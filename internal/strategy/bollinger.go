package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tradingcore/engine/types"
)

// BollingerEngine signals BUY when price closes back inside the lower
// band after trading through it (mean-reversion entry) and SELL on the
// symmetric upper-band re-entry.
type BollingerEngine struct{}

func (e *BollingerEngine) Name() string { return "BOLLINGER" }

func (e *BollingerEngine) ValidateParams(params map[string]string) error {
	_, err := bollingerParams(params)
	return err
}

func (e *BollingerEngine) RequiredBars(params map[string]string) int {
	p, err := bollingerParams(params)
	if err != nil {
		return clampBars(20 + 10 + 1)
	}
	return clampBars(p.period + 10 + 1)
}

type bollingerParamSet struct {
	period    int
	numStdDev decimal.Decimal
}

func bollingerParams(params map[string]string) (bollingerParamSet, error) {
	period, err := paramInt(params, "period", 20)
	if err != nil {
		return bollingerParamSet{}, err
	}
	numStdDev, err := paramDecimal(params, "numStdDev", decimal.NewFromInt(2))
	if err != nil {
		return bollingerParamSet{}, err
	}
	if !numStdDev.IsPositive() {
		return bollingerParamSet{}, fmt.Errorf("strategy: BOLLINGER numStdDev must be positive, got %s", numStdDev)
	}
	return bollingerParamSet{period: period, numStdDev: numStdDev}, nil
}

func (e *BollingerEngine) Evaluate(ctx Context) (Decision, error) {
	p, err := bollingerParams(ctx.Params)
	if err != nil {
		return Decision{}, err
	}
	closes := ctx.Closes()
	if len(closes) < p.period+2 {
		return Decision{}, nil
	}

	prevClose := closes[len(closes)-2]
	_, prevUpper, prevLower := BollingerBands(closes[:len(closes)-1], p.period, p.numStdDev)
	_, upper, lower := BollingerBands(closes, p.period, p.numStdDev)
	nowClose := closes[len(closes)-1]

	switch {
	case prevClose.LessThan(prevLower) && nowClose.GreaterThanOrEqual(lower):
		return Decision{
			SignalType:  types.SignalBuy,
			TargetType:  "PRICE",
			TargetValue: ctx.LastClose(),
			Reason:      fmt.Sprintf("price re-entered lower Bollinger band(%d): %s -> %s", p.period, prevClose.StringFixed(2), nowClose.StringFixed(2)),
		}, nil
	case prevClose.GreaterThan(prevUpper) && nowClose.LessThanOrEqual(upper):
		return Decision{
			SignalType:  types.SignalSell,
			TargetType:  "PRICE",
			TargetValue: ctx.LastClose(),
			Reason:      fmt.Sprintf("price re-entered upper Bollinger band(%d): %s -> %s", p.period, prevClose.StringFixed(2), nowClose.StringFixed(2)),
		}, nil
	default:
		return Decision{}, nil
	}
}
