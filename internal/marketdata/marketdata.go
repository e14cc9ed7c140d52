// Package marketdata implements the last-tick-per-symbol cache and a ring
// of recent closed bars per (symbol, timeframe) — spec §2 C3. Concurrency
// shape (RWMutex-guarded map, subscriber fan-out channels) is grounded on
// the teacher's feeds.BinanceFeed price cache.
package marketdata

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Tick is a single trade/quote update for a symbol.
type Tick struct {
	Symbol    string
	Price     decimal.Decimal
	Timestamp time.Time
}

// Bar is a closed OHLC bar for a (symbol, timeframe).
type Bar struct {
	Symbol    string
	Timeframe time.Duration
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    int64
	StartTime time.Time
	EndTime   time.Time
}

type barKey struct {
	symbol    string
	timeframe time.Duration
}

// Cache is the concurrent-readable, per-symbol-serialized market data cache
// (spec §5: "concurrent-readable; writes are per-symbol and serialized").
type Cache struct {
	mu           sync.RWMutex
	lastTick     map[string]Tick
	bars         map[barKey][]Bar // ring, newest last, capped at maxBars
	maxBars      int
	subscribers  []chan Tick
}

// NewCache builds a Cache capping the bar ring at maxBarsPerSymbol
// (spec §6: marketdata.maxBarsPerSymbol).
func NewCache(maxBarsPerSymbol int) *Cache {
	if maxBarsPerSymbol <= 0 {
		maxBarsPerSymbol = 200
	}
	return &Cache{
		lastTick: make(map[string]Tick),
		bars:     make(map[barKey][]Bar),
		maxBars:  maxBarsPerSymbol,
	}
}

// PutTick records the latest tick for a symbol and fans it out to every
// channel returned by Subscribe.
func (c *Cache) PutTick(t Tick) {
	c.mu.Lock()
	c.lastTick[t.Symbol] = t
	subs := append([]chan Tick(nil), c.subscribers...)
	c.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- t:
		default:
			// Slow subscriber: drop rather than block the tick writer.
		}
	}
}

// LastTick returns the most recent tick for a symbol, if any.
func (c *Cache) LastTick(symbol string) (Tick, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.lastTick[symbol]
	return t, ok
}

// Subscribe returns a channel that receives every tick PutTick records.
func (c *Cache) Subscribe() <-chan Tick {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan Tick, 256)
	c.subscribers = append(c.subscribers, ch)
	return ch
}

// AppendBar pushes a newly closed bar into the ring for (symbol, timeframe),
// evicting the oldest once the ring exceeds maxBars.
func (c *Cache) AppendBar(b Bar) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := barKey{symbol: b.Symbol, timeframe: b.Timeframe}
	ring := c.bars[key]
	ring = append(ring, b)
	if len(ring) > c.maxBars {
		ring = ring[len(ring)-c.maxBars:]
	}
	c.bars[key] = ring
}

// RecentBars returns up to n of the most recent closed bars for
// (symbol, timeframe), oldest first.
func (c *Cache) RecentBars(symbol string, timeframe time.Duration, n int) []Bar {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ring := c.bars[barKey{symbol: symbol, timeframe: timeframe}]
	if n <= 0 || n >= len(ring) {
		out := make([]Bar, len(ring))
		copy(out, ring)
		return out
	}
	out := make([]Bar, n)
	copy(out, ring[len(ring)-n:])
	return out
}
