package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/tradingcore/engine/internal/clock"
	"github.com/tradingcore/engine/internal/idgen"
	"github.com/tradingcore/engine/internal/marketdata"
	"github.com/tradingcore/engine/internal/orders"
	"github.com/tradingcore/engine/internal/store"
	"github.com/tradingcore/engine/types"
)

// dedupLookback is the spec §4.5 "cooldown lookback" window: how far back
// the runner looks for a prior same-direction signal before evaluating a
// new one.
const dedupLookback = 300 * time.Second

// cooldownWindow is the spec §4.5 minimum spacing between two actionable
// signals for the same (strategy, symbol, account), regardless of
// direction.
const cooldownWindow = 60 * time.Second

// OrderPlacer is the subset of orders.Manager the runner needs to turn an
// actionable signal into a placed order. Defined here (rather than
// depending on the concrete *orders.Manager type) so tests can substitute a
// stub; production wiring passes the real manager, which satisfies it.
type OrderPlacer interface {
	Place(ctx context.Context, cmd orders.PlaceCommand) (types.Order, error)
}

// Binding is one (strategy, symbol, account) evaluation target, as loaded
// from store.StrategyDefinition.Symbols.
type Binding struct {
	StrategyID string
	Type       string
	Params     map[string]string
	Symbol     string
	AccountID  string
}

// Runner evaluates every active strategy binding on a schedule, using a
// bounded worker pool (errgroup.Group.SetLimit, spec §4.5/§6:
// scheduler.workerPoolSize) and a per-binding reentrancy lock
// (singleflight.Group) so a slow evaluation can never overlap itself.
// Grounded on the teacher's bot package's periodic-scan loop, generalized
// from a single hard-coded strategy scan to a registry of pluggable
// engines over an arbitrary strategy/symbol/account binding set.
type Runner struct {
	registry    *Registry
	strategies  *store.StrategyRepository
	signals     *store.SignalRepository
	cache       *marketdata.Cache
	placer      OrderPlacer
	ids         *idgen.Generator
	clk         clock.Clock
	log         zerolog.Logger
	workerLimit int
	timeframe   time.Duration

	inflight singleflight.Group
}

func New(
	registry *Registry,
	strategies *store.StrategyRepository,
	signals *store.SignalRepository,
	cache *marketdata.Cache,
	placer OrderPlacer,
	ids *idgen.Generator,
	c clock.Clock,
	workerPoolSize int,
	timeframe time.Duration,
	log zerolog.Logger,
) *Runner {
	if workerPoolSize <= 0 {
		workerPoolSize = 8
	}
	return &Runner{
		registry:    registry,
		strategies:  strategies,
		signals:     signals,
		cache:       cache,
		placer:      placer,
		ids:         ids,
		clk:         c,
		log:         log.With().Str("component", "strategy.Runner").Logger(),
		workerLimit: workerPoolSize,
		timeframe:   timeframe,
	}
}

// RunOnce loads every active strategy's bindings and evaluates each one,
// bounded to r.workerLimit concurrent evaluations.
func (r *Runner) RunOnce(ctx context.Context) error {
	defs, err := r.strategies.ListActive()
	if err != nil {
		return fmt.Errorf("strategy: list active strategies: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workerLimit)

	for _, def := range defs {
		for _, sym := range def.Symbols {
			binding := Binding{
				StrategyID: def.StrategyID,
				Type:       def.Type,
				Params:     def.Params,
				Symbol:     sym.Symbol,
				AccountID:  sym.AccountID,
			}
			g.Go(func() error {
				if err := r.evaluateBinding(ctx, binding); err != nil {
					r.log.Error().Err(err).
						Str("strategy_id", binding.StrategyID).
						Str("symbol", binding.Symbol).
						Str("account_id", binding.AccountID).
						Msg("strategy evaluation failed")
				}
				return nil // one binding's failure never aborts the batch
			})
		}
	}
	return g.Wait()
}

// Run ticks RunOnce every interval until ctx is cancelled.
func (r *Runner) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.RunOnce(ctx); err != nil {
				r.log.Error().Err(err).Msg("strategy run failed")
			}
		}
	}
}

func bindingKey(b Binding) string {
	return b.StrategyID + "|" + b.Symbol + "|" + b.AccountID
}

// evaluateBinding is the reentrancy-locked unit of work: singleflight
// collapses concurrent calls for the same key into one in-flight
// evaluation, so a slow previous tick can never race a new one for the
// same (strategy, symbol, account).
func (r *Runner) evaluateBinding(ctx context.Context, b Binding) error {
	_, err, _ := r.inflight.Do(bindingKey(b), func() (interface{}, error) {
		return nil, r.doEvaluate(ctx, b)
	})
	return err
}

func (r *Runner) doEvaluate(ctx context.Context, b Binding) error {
	engine, err := r.registry.Build(b.Type)
	if err != nil {
		return err
	}
	if err := engine.ValidateParams(b.Params); err != nil {
		return fmt.Errorf("strategy: invalid params for %s/%s: %w", b.StrategyID, b.Symbol, err)
	}

	n := engine.RequiredBars(b.Params)
	bars := r.cache.RecentBars(b.Symbol, r.timeframe, n)
	if len(bars) < n {
		return nil // not enough history yet; try again next tick
	}

	decision, err := engine.Evaluate(Context{
		AccountID: b.AccountID,
		Symbol:    b.Symbol,
		Timeframe: r.timeframe,
		Bars:      bars,
		Params:    b.Params,
	})
	if err != nil {
		return fmt.Errorf("strategy: evaluate %s/%s: %w", b.StrategyID, b.Symbol, err)
	}
	if !decision.IsActionable() {
		return nil // HOLD: never persisted (spec §3)
	}

	now := r.clk.Now()
	allowed, err := r.passesCooldownAndDedup(b, decision, now)
	if err != nil {
		return err
	}
	if !allowed {
		return nil
	}

	signal := types.Signal{
		SignalID:    r.ids.New26(),
		StrategyID:  b.StrategyID,
		AccountID:   b.AccountID,
		Symbol:      b.Symbol,
		SignalType:  decision.SignalType,
		TargetType:  decision.TargetType,
		TargetValue: decision.TargetValue,
		TTLSeconds:  int(cooldownWindow.Seconds()),
		Reason:      decision.Reason,
		CreatedAt:   now,
	}
	if err := r.signals.Insert(signal); err != nil {
		return fmt.Errorf("strategy: insert signal: %w", err)
	}

	if r.placer == nil {
		return nil
	}
	_, err = r.placer.Place(ctx, orders.PlaceCommand{
		AccountID:      b.AccountID,
		StrategyID:     b.StrategyID,
		SignalID:       signal.SignalID,
		Symbol:         b.Symbol,
		Side:           sideFor(decision.SignalType),
		OrderType:      types.OrderTypeMarket,
		Qty:            1,
		Price:          decision.TargetValue,
		IdempotencyKey: signal.SignalID,
	})
	return err
}

// passesCooldownAndDedup enforces two SPEC_FULL rules: no two actionable
// signals for the same (strategy, symbol, account) within cooldownWindow
// regardless of direction, and no repeat of the exact same direction
// within dedupLookback.
func (r *Runner) passesCooldownAndDedup(b Binding, decision Decision, now time.Time) (bool, error) {
	recent, err := r.signals.RecentForDedup(b.StrategyID, b.Symbol, b.AccountID, now.Add(-dedupLookback))
	if err != nil {
		return false, fmt.Errorf("strategy: load recent signals: %w", err)
	}
	for _, s := range recent {
		if now.Sub(s.CreatedAt) < cooldownWindow {
			return false, nil
		}
		if s.SignalType == decision.SignalType {
			return false, nil
		}
	}
	return true, nil
}

func sideFor(t types.SignalType) types.Side {
	if t == types.SignalSell {
		return types.SideSell
	}
	return types.SideBuy
}
