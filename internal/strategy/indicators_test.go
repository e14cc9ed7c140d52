package strategy

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func decimals(vals ...float64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(vals))
	for i, v := range vals {
		out[i] = decimal.NewFromFloat(v)
	}
	return out
}

func TestSMAAveragesLastPeriod(t *testing.T) {
	prices := decimals(1, 2, 3, 4, 5)
	got := SMA(prices, 3)
	assert.True(t, got.Equal(decimal.NewFromInt(4)), "got %s", got) // (3+4+5)/3
}

func TestSMAFallsBackToFullAverageWhenShort(t *testing.T) {
	prices := decimals(2, 4)
	got := SMA(prices, 5)
	assert.True(t, got.Equal(decimal.NewFromInt(3)))
}

func TestEMASeedsWithSMAThenSmooths(t *testing.T) {
	prices := decimals(1, 2, 3, 4, 5, 6)
	got := EMA(prices, 3)
	assert.True(t, got.GreaterThan(decimal.NewFromInt(4)), "got %s", got)
}

func TestRSIReturnsNeutralWithoutEnoughHistory(t *testing.T) {
	prices := decimals(1, 2, 3)
	got := RSI(prices, 14)
	assert.True(t, got.Equal(decimal.NewFromInt(50)))
}

func TestRSIReturns100WhenNoLosses(t *testing.T) {
	prices := decimals(1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15)
	got := RSI(prices, 14)
	assert.True(t, got.Equal(decimal.NewFromInt(100)), "got %s", got)
}

func TestMACDZeroBeforeSlowPeriod(t *testing.T) {
	prices := decimals(1, 2, 3)
	line, signal, hist := MACD(prices, 12, 26, 9)
	assert.True(t, line.IsZero())
	assert.True(t, signal.IsZero())
	assert.True(t, hist.IsZero())
}

func TestBollingerBandsWidenWithVolatility(t *testing.T) {
	flat := decimals(10, 10, 10, 10, 10)
	_, upperFlat, lowerFlat := BollingerBands(flat, 5, decimal.NewFromInt(2))
	assert.True(t, upperFlat.Equal(lowerFlat), "zero variance collapses the bands")

	volatile := decimals(5, 15, 5, 15, 10)
	mid, upperVol, lowerVol := BollingerBands(volatile, 5, decimal.NewFromInt(2))
	assert.True(t, upperVol.GreaterThan(mid))
	assert.True(t, lowerVol.LessThan(mid))
}

func TestDecimalSqrtMatchesKnownSquares(t *testing.T) {
	got := decimalSqrt(decimal.NewFromInt(16))
	assert.True(t, got.Sub(decimal.NewFromInt(4)).Abs().LessThan(decimal.New(1, -6)), "got %s", got)
}
