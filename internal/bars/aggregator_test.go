package bars

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradingcore/engine/internal/marketdata"
)

func TestAggregatorClosesBarOnBoundaryCross(t *testing.T) {
	cache := marketdata.NewCache(10)
	agg := New(cache, []time.Duration{time.Minute})

	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

	agg.OnTick(marketdata.Tick{Symbol: "005930", Price: decimal.NewFromInt(70000), Timestamp: base})
	agg.OnTick(marketdata.Tick{Symbol: "005930", Price: decimal.NewFromInt(70500), Timestamp: base.Add(10 * time.Second)})
	agg.OnTick(marketdata.Tick{Symbol: "005930", Price: decimal.NewFromInt(69800), Timestamp: base.Add(20 * time.Second)})

	// No bar closed yet — still in the same minute bucket.
	bars := cache.RecentBars("005930", time.Minute, 0)
	assert.Len(t, bars, 0)

	// Cross into the next minute: the first bucket closes.
	agg.OnTick(marketdata.Tick{Symbol: "005930", Price: decimal.NewFromInt(70200), Timestamp: base.Add(65 * time.Second)})

	bars = cache.RecentBars("005930", time.Minute, 0)
	require.Len(t, bars, 1)
	assert.True(t, bars[0].Open.Equal(decimal.NewFromInt(70000)))
	assert.True(t, bars[0].High.Equal(decimal.NewFromInt(70500)))
	assert.True(t, bars[0].Low.Equal(decimal.NewFromInt(69800)))
	assert.True(t, bars[0].Close.Equal(decimal.NewFromInt(69800)))
	assert.Equal(t, int64(3), bars[0].Volume)
}

func TestFlushAllClosesInProgressBar(t *testing.T) {
	cache := marketdata.NewCache(10)
	agg := New(cache, []time.Duration{time.Minute})

	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	agg.OnTick(marketdata.Tick{Symbol: "005930", Price: decimal.NewFromInt(70000), Timestamp: base})

	agg.FlushAll()

	bars := cache.RecentBars("005930", time.Minute, 0)
	require.Len(t, bars, 1)
	assert.True(t, bars[0].Close.Equal(decimal.NewFromInt(70000)))
}
