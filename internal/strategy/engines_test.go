package strategy

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradingcore/engine/internal/marketdata"
	"github.com/tradingcore/engine/types"
)

func barsFromCloses(closes ...float64) []marketdata.Bar {
	out := make([]marketdata.Bar, len(closes))
	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	for i, c := range closes {
		d := decimal.NewFromFloat(c)
		out[i] = marketdata.Bar{
			Symbol:    "005930",
			Timeframe: time.Minute,
			Open:      d,
			High:      d,
			Low:       d,
			Close:     d,
			StartTime: start.Add(time.Duration(i) * time.Minute),
			EndTime:   start.Add(time.Duration(i+1) * time.Minute),
		}
	}
	return out
}

func TestMACrossoverEngineSignalsBuyOnGoldenCross(t *testing.T) {
	e := &MACrossoverEngine{}
	params := map[string]string{"fastPeriod": "2", "slowPeriod": "4"}
	require.NoError(t, e.ValidateParams(params))

	ctx := Context{Bars: barsFromCloses(10, 10, 10, 10, 5, 5, 30), Params: params}
	decision, err := e.Evaluate(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.SignalBuy, decision.SignalType)
}

func TestMACrossoverEngineRejectsInvalidPeriods(t *testing.T) {
	e := &MACrossoverEngine{}
	err := e.ValidateParams(map[string]string{"fastPeriod": "10", "slowPeriod": "5"})
	assert.Error(t, err)
}

func TestMACrossoverEngineHoldsWithInsufficientHistory(t *testing.T) {
	e := &MACrossoverEngine{}
	params := map[string]string{"fastPeriod": "2", "slowPeriod": "4"}
	decision, err := e.Evaluate(Context{Bars: barsFromCloses(1, 2), Params: params})
	require.NoError(t, err)
	assert.False(t, decision.IsActionable())
}

func TestRSIEngineSignalsBuyOnOversoldCrossUp(t *testing.T) {
	e := &RSIEngine{}
	params := map[string]string{"period": "2", "oversold": "30", "overbought": "70"}
	require.NoError(t, e.ValidateParams(params))

	ctx := Context{Bars: barsFromCloses(100, 90, 80, 70, 95), Params: params}
	decision, err := e.Evaluate(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.SignalBuy, decision.SignalType)
}

func TestRSIEngineRejectsInvertedThresholds(t *testing.T) {
	e := &RSIEngine{}
	err := e.ValidateParams(map[string]string{"oversold": "80", "overbought": "20"})
	assert.Error(t, err)
}

func TestBollingerEngineSignalsBuyOnLowerBandReentry(t *testing.T) {
	e := &BollingerEngine{}
	params := map[string]string{"period": "10", "numStdDev": "2"}
	require.NoError(t, e.ValidateParams(params))

	closes := []float64{10, 10, 10, 10, 10, 10, 10, 10, 10, 10, -50, 10}
	decision, err := e.Evaluate(Context{Bars: barsFromCloses(closes...), Params: params})
	require.NoError(t, err)
	assert.Equal(t, types.SignalBuy, decision.SignalType)
}

func TestBollingerEngineRejectsNonPositiveStdDev(t *testing.T) {
	e := &BollingerEngine{}
	err := e.ValidateParams(map[string]string{"numStdDev": "0"})
	assert.Error(t, err)
}

func TestMACDEngineSignalsBuyOnCrossoverAboveSignalLine(t *testing.T) {
	e := &MACDEngine{}
	params := map[string]string{"fastPeriod": "2", "slowPeriod": "3", "signalPeriod": "2"}
	require.NoError(t, e.ValidateParams(params))

	closes := []float64{4, 16, 1, 29, 27, 13, 14, 20}
	decision, err := e.Evaluate(Context{Bars: barsFromCloses(closes...), Params: params})
	require.NoError(t, err)
	assert.Equal(t, types.SignalBuy, decision.SignalType)
}

func TestMACDEngineRejectsFastNotLessThanSlow(t *testing.T) {
	e := &MACDEngine{}
	err := e.ValidateParams(map[string]string{"fastPeriod": "26", "slowPeriod": "12"})
	assert.Error(t, err)
}

func TestRegistryBuildsKnownTypesAndRejectsUnknown(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"MA_CROSSOVER", "RSI", "BOLLINGER", "MACD"} {
		engine, err := r.Build(name)
		require.NoError(t, err)
		assert.Equal(t, name, engine.Name())
	}
	_, err := r.Build("NOT_A_REAL_ENGINE")
	assert.Error(t, err)
}
