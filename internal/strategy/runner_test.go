package strategy

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradingcore/engine/internal/clock"
	"github.com/tradingcore/engine/internal/idgen"
	"github.com/tradingcore/engine/internal/marketdata"
	"github.com/tradingcore/engine/internal/orders"
	"github.com/tradingcore/engine/internal/store"
	"github.com/tradingcore/engine/types"
)

type recordingPlacer struct {
	mu    sync.Mutex
	calls []orders.PlaceCommand
}

func (p *recordingPlacer) Place(ctx context.Context, cmd orders.PlaceCommand) (types.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, cmd)
	return types.Order{OrderID: "ord-1", Status: types.OrderStatusSent}, nil
}

func (p *recordingPlacer) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func newTestRunner(t *testing.T, placer OrderPlacer, c clock.Clock) (*Runner, *store.StrategyRepository, *marketdata.Cache) {
	t.Helper()
	db, err := store.Open(":memory:")
	require.NoError(t, err)

	strategies := store.NewStrategyRepository(db)
	signals := store.NewSignalRepository(db)
	cache := marketdata.NewCache(200)

	require.NoError(t, strategies.CreateVersion("strat-1", "v1", map[string]string{
		"fastPeriod": "2", "slowPeriod": "4",
	}, c.Now()))
	require.NoError(t, strategies.Upsert("strat-1", "golden-cross", "MA_CROSSOVER", "v1", true, c.Now()))
	require.NoError(t, strategies.BindSymbol("strat-1", "005930", "acct-1"))

	runner := New(NewRegistry(), strategies, signals, cache, placer, idgen.New(c), c, 4, time.Minute, zerolog.Nop())
	return runner, strategies, cache
}

func pushBars(cache *marketdata.Cache, symbol string, closes ...float64) {
	bars := barsFromCloses(closes...)
	for _, b := range bars {
		b.Symbol = symbol
		cache.AppendBar(b)
	}
}

// goldenCrossCloses pads the crossover sequence with leading flat bars so
// the loaded history meets RequiredBars' N=max(periods)+10+1 floor
// (fastPeriod=2/slowPeriod=4 here, so RequiredBars==15); the padding
// repeats the sequence's own opening price, so it doesn't affect the
// trailing SMA windows the crossover actually evaluates.
func goldenCrossCloses() []float64 {
	padding := make([]float64, 8)
	for i := range padding {
		padding[i] = 10
	}
	return append(padding, 10, 10, 10, 10, 5, 5, 30)
}

func TestRunnerPersistsSignalAndPlacesOrderOnGoldenCross(t *testing.T) {
	c := clock.NewFrozen(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))
	placer := &recordingPlacer{}
	runner, _, cache := newTestRunner(t, placer, c)

	pushBars(cache, "005930", goldenCrossCloses()...)

	require.NoError(t, runner.RunOnce(context.Background()))
	assert.Equal(t, 1, placer.callCount())
}

func TestRunnerCooldownBlocksImmediateReevaluation(t *testing.T) {
	c := clock.NewFrozen(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))
	placer := &recordingPlacer{}
	runner, _, cache := newTestRunner(t, placer, c)

	pushBars(cache, "005930", goldenCrossCloses()...)

	require.NoError(t, runner.RunOnce(context.Background()))
	require.Equal(t, 1, placer.callCount())

	// Same frozen instant: cooldown window (60s) has not elapsed, so a
	// second tick must not place a second order even though the bar data
	// still satisfies the crossover condition.
	require.NoError(t, runner.RunOnce(context.Background()))
	assert.Equal(t, 1, placer.callCount())
}

func TestRunnerHoldsWhenNotEnoughBarsLoaded(t *testing.T) {
	c := clock.NewFrozen(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))
	placer := &recordingPlacer{}
	runner, _, cache := newTestRunner(t, placer, c)

	pushBars(cache, "005930", 10, 10)

	require.NoError(t, runner.RunOnce(context.Background()))
	assert.Equal(t, 0, placer.callCount())
}
