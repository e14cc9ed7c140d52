package strategy

import (
	"github.com/shopspring/decimal"
)

// SMA is the simple moving average of the last period closes, adapted from
// the teacher's indicators.SMA into decimal arithmetic (spec §9: "all
// monetary/quantity math uses shopspring/decimal, never float64").
func SMA(prices []decimal.Decimal, period int) decimal.Decimal {
	if len(prices) == 0 {
		return decimal.Zero
	}
	if len(prices) < period {
		return average(prices)
	}
	return average(prices[len(prices)-period:])
}

// EMA is the exponential moving average, seeded with the SMA of the first
// period prices then smoothed forward — same shape as the teacher's
// indicators.EMA.
func EMA(prices []decimal.Decimal, period int) decimal.Decimal {
	if len(prices) == 0 {
		return decimal.Zero
	}
	if len(prices) < period {
		return average(prices)
	}

	multiplier := decimal.NewFromInt(2).Div(decimal.NewFromInt(int64(period + 1)))
	ema := average(prices[:period])
	for i := period; i < len(prices); i++ {
		ema = prices[i].Sub(ema).Mul(multiplier).Add(ema)
	}
	return ema
}

// EMASeries returns the EMA value at every index from period-1 onward
// (index < period-1 is the zero value), needed to compute a true MACD
// signal line (EMA of the MACD line) rather than the teacher's simplified
// "macdLine * 0.9" placeholder.
func EMASeries(prices []decimal.Decimal, period int) []decimal.Decimal {
	out := make([]decimal.Decimal, len(prices))
	if len(prices) < period {
		return out
	}
	multiplier := decimal.NewFromInt(2).Div(decimal.NewFromInt(int64(period + 1)))
	ema := average(prices[:period])
	out[period-1] = ema
	for i := period; i < len(prices); i++ {
		ema = prices[i].Sub(ema).Mul(multiplier).Add(ema)
		out[i] = ema
	}
	return out
}

// RSI is the Relative Strength Index over the whole price slice: seeded with
// the average gain/loss of the first period changes, then Wilder-smoothed
// through the rest — same structure as the teacher's indicators.RSI,
// converted to decimal and returning a neutral 50 when there isn't enough
// history yet.
func RSI(prices []decimal.Decimal, period int) decimal.Decimal {
	neutral := decimal.NewFromInt(50)
	if len(prices) < period+1 {
		return neutral
	}

	gains := make([]decimal.Decimal, 0, len(prices)-1)
	losses := make([]decimal.Decimal, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		change := prices[i].Sub(prices[i-1])
		if change.IsPositive() {
			gains = append(gains, change)
			losses = append(losses, decimal.Zero)
		} else {
			gains = append(gains, decimal.Zero)
			losses = append(losses, change.Neg())
		}
	}
	if len(gains) < period {
		return neutral
	}

	avgGain := average(gains[:period])
	avgLoss := average(losses[:period])
	periodDec := decimal.NewFromInt(int64(period))
	periodMinus1 := decimal.NewFromInt(int64(period - 1))

	for i := period; i < len(gains); i++ {
		avgGain = avgGain.Mul(periodMinus1).Add(gains[i]).Div(periodDec)
		avgLoss = avgLoss.Mul(periodMinus1).Add(losses[i]).Div(periodDec)
	}

	if avgLoss.IsZero() {
		return decimal.NewFromInt(100)
	}
	rs := avgGain.Div(avgLoss)
	return decimal.NewFromInt(100).Sub(decimal.NewFromInt(100).Div(decimal.NewFromInt(1).Add(rs)))
}

// MACD returns the MACD line, its signal line (EMA of the MACD-line
// series, computed properly rather than approximated), and the histogram.
func MACD(prices []decimal.Decimal, fastPeriod, slowPeriod, signalPeriod int) (line, signal, histogram decimal.Decimal) {
	if len(prices) < slowPeriod {
		return decimal.Zero, decimal.Zero, decimal.Zero
	}

	fastSeries := EMASeries(prices, fastPeriod)
	slowSeries := EMASeries(prices, slowPeriod)
	macdSeries := make([]decimal.Decimal, len(prices))
	for i := range prices {
		if i < slowPeriod-1 {
			continue
		}
		macdSeries[i] = fastSeries[i].Sub(slowSeries[i])
	}

	line = macdSeries[len(macdSeries)-1]
	signalSeries := EMASeries(macdSeries[slowPeriod-1:], signalPeriod)
	if len(signalSeries) > 0 {
		signal = signalSeries[len(signalSeries)-1]
	}
	histogram = line.Sub(signal)
	return line, signal, histogram
}

// BollingerBands returns the middle SMA band and the upper/lower bands at
// numStdDev standard deviations, grounded on the same running-average
// style as SMA above (the teacher's pack has no Bollinger implementation,
// so this follows standard-library-free decimal variance math instead of
// importing a stats package the rest of the pack never reaches for).
func BollingerBands(prices []decimal.Decimal, period int, numStdDev decimal.Decimal) (mid, upper, lower decimal.Decimal) {
	if len(prices) < period {
		mid = average(prices)
		return mid, mid, mid
	}
	window := prices[len(prices)-period:]
	mid = average(window)

	variance := decimal.Zero
	for _, p := range window {
		diff := p.Sub(mid)
		variance = variance.Add(diff.Mul(diff))
	}
	variance = variance.Div(decimal.NewFromInt(int64(period)))
	stdDev := decimalSqrt(variance)

	band := stdDev.Mul(numStdDev)
	upper = mid.Add(band)
	lower = mid.Sub(band)
	return mid, upper, lower
}

func decimalFromInt(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}

func average(prices []decimal.Decimal) decimal.Decimal {
	if len(prices) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, p := range prices {
		sum = sum.Add(p)
	}
	return sum.Div(decimal.NewFromInt(int64(len(prices))))
}

// decimalSqrt computes sqrt via Newton's method to 8 decimal digits.
// decimal.Decimal has no native Sqrt; this keeps Bollinger band math
// entirely in fixed-point rather than round-tripping through float64.
func decimalSqrt(d decimal.Decimal) decimal.Decimal {
	if d.Sign() <= 0 {
		return decimal.Zero
	}
	guess := d
	two := decimal.NewFromInt(2)
	for i := 0; i < 40; i++ {
		next := guess.Add(d.Div(guess)).Div(two)
		if next.Sub(guess).Abs().LessThan(decimal.New(1, -10)) {
			guess = next
			break
		}
		guess = next
	}
	return guess.Round(8)
}
