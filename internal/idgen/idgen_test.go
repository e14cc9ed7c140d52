package idgen

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tradingcore/engine/internal/clock"
)

func TestNew26Length(t *testing.T) {
	g := NewDefault()
	id := g.New26()
	assert.Len(t, id, 26)
}

func TestNew26MonotonicWithinSameMillisecond(t *testing.T) {
	fc := clock.NewFrozen(time.Unix(0, 0))
	g := New(fc)

	first := g.New26()
	second := g.New26()

	assert.NotEqual(t, first, second)
	assert.Less(t, first, second)
}

func TestNew26SortsAcrossTime(t *testing.T) {
	fc := clock.NewFrozen(time.Unix(1_700_000_000, 0))
	g := New(fc)

	earlier := g.New26()
	fc.Advance(time.Second)
	later := g.New26()

	assert.Less(t, earlier, later)
}
