// Package bars converts ticks into closed bars on timeframe boundaries
// (spec §2 C4). Grounded on the teacher's feeds.WindowScanner bucketing
// pattern (time-window tracking keyed by a derived window ID), adapted from
// Polymarket 15-minute betting windows to OHLC candle boundaries.
package bars

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradingcore/engine/internal/marketdata"
)

// inProgress accumulates a bar that hasn't closed yet.
type inProgress struct {
	open      decimal.Decimal
	high      decimal.Decimal
	low       decimal.Decimal
	close     decimal.Decimal
	volume    int64
	startTime time.Time
	endTime   time.Time
}

type key struct {
	symbol    string
	timeframe time.Duration
}

// Aggregator closes a bar each time a tick crosses a timeframe boundary and
// appends it to the market data cache.
type Aggregator struct {
	mu         sync.Mutex
	cache      *marketdata.Cache
	timeframes []time.Duration
	current    map[key]*inProgress
}

// New builds an Aggregator that maintains bars for each of the given
// timeframes, writing closed bars into cache.
func New(cache *marketdata.Cache, timeframes []time.Duration) *Aggregator {
	return &Aggregator{
		cache:      cache,
		timeframes: timeframes,
		current:    make(map[key]*inProgress),
	}
}

// boundary returns the start of the timeframe bucket containing t.
func boundary(t time.Time, timeframe time.Duration) time.Time {
	return t.Truncate(timeframe)
}

// OnTick feeds one tick into every tracked timeframe, closing and emitting
// bars whose boundary has elapsed.
func (a *Aggregator) OnTick(tick marketdata.Tick) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, tf := range a.timeframes {
		k := key{symbol: tick.Symbol, timeframe: tf}
		bucketStart := boundary(tick.Timestamp, tf)

		cur, ok := a.current[k]
		if !ok || bucketStart.After(cur.startTime) {
			if ok {
				a.emit(tick.Symbol, tf, cur)
			}
			a.current[k] = &inProgress{
				open:      tick.Price,
				high:      tick.Price,
				low:       tick.Price,
				close:     tick.Price,
				volume:    1,
				startTime: bucketStart,
				endTime:   bucketStart.Add(tf),
			}
			continue
		}

		if tick.Price.GreaterThan(cur.high) {
			cur.high = tick.Price
		}
		if tick.Price.LessThan(cur.low) {
			cur.low = tick.Price
		}
		cur.close = tick.Price
		cur.volume++
	}
}

func (a *Aggregator) emit(symbol string, tf time.Duration, ip *inProgress) {
	a.cache.AppendBar(marketdata.Bar{
		Symbol:    symbol,
		Timeframe: tf,
		Open:      ip.open,
		High:      ip.high,
		Low:       ip.low,
		Close:     ip.close,
		Volume:    ip.volume,
		StartTime: ip.startTime,
		EndTime:   ip.endTime,
	})
}

// FlushAll force-closes every in-progress bar, e.g. on shutdown.
func (a *Aggregator) FlushAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for k, ip := range a.current {
		a.emit(k.symbol, k.timeframe, ip)
		delete(a.current, k)
	}
}
