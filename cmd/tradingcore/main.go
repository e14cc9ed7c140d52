// Command tradingcore is the engine's composition root: it loads
// configuration, opens the store, wires every component package together,
// and runs the broker stream, strategy runner, and outbox publisher until
// signalled to stop. Layered bootstrap style (config -> store -> domain
// services -> background loops -> graceful shutdown on SIGINT/SIGTERM) is
// grounded on the teacher's cmd/main.go.
package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/tradingcore/engine/internal/bars"
	"github.com/tradingcore/engine/internal/broker"
	"github.com/tradingcore/engine/internal/clock"
	"github.com/tradingcore/engine/internal/config"
	"github.com/tradingcore/engine/internal/fills"
	"github.com/tradingcore/engine/internal/idgen"
	"github.com/tradingcore/engine/internal/marketdata"
	"github.com/tradingcore/engine/internal/notify"
	"github.com/tradingcore/engine/internal/orders"
	"github.com/tradingcore/engine/internal/outbox"
	"github.com/tradingcore/engine/internal/risk"
	"github.com/tradingcore/engine/internal/store"
	"github.com/tradingcore/engine/internal/strategy"
	"github.com/tradingcore/engine/types"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logLevel := zerolog.InfoLevel
	if cfg.Debug {
		logLevel = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		Level(logLevel).
		With().Timestamp().Logger()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("tradingcore exited")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}

	clk := clock.New()
	ids := idgen.New(clk)

	orderRepo := store.NewOrderRepository(db)
	fillRepo := store.NewFillRepository(db)
	positionRepo := store.NewPositionRepository(db)
	riskRuleRepo := store.NewRiskRuleRepository(db)
	strategyRepo := store.NewStrategyRepository(db)
	signalRepo := store.NewSignalRepository(db)
	outboxRepo := store.NewOutboxRepository(db)
	tokenRepo := store.NewTokenRepository(db)

	accountID := envOr("ACCOUNT_ID", "default")
	symbols := splitCSV(envOr("SYMBOLS", ""))

	if err := seedGlobalRiskRule(riskRuleRepo, cfg.Risk, ids); err != nil {
		return err
	}

	riskEngine := risk.New(db, riskRuleRepo, clk)

	restClient := broker.NewRESTClient(broker.RESTConfig{
		BaseURL: brokerBaseURL(cfg),
		Timeout: cfg.Broker.QueryDeadline,
	}, log)

	tokenMgr := broker.NewTokenManager(restClient, tokenRepo, clk, cfg.Broker.AppKey, cfg.Broker.AppSecret, log)

	sinks := buildSinks(cfg, log)
	publisher := outbox.New(outboxRepo, outbox.Config{BatchSize: cfg.Outbox.BatchSize, RetryLimit: cfg.Outbox.RetryLimit}, clk, log, sinks...)
	tokenMgr.OnRefresh(func(acct string) {
		if err := store.AppendOutboxInTx(db, broker.RefreshEvent(acct, clk.Now())); err != nil {
			log.Warn().Err(err).Msg("failed to append token-refreshed outbox event")
		}
	})

	orderMgr := orders.New(db, orderRepo, positionRepo, riskEngine, restClient, ids, clk, cfg.Risk.ConsecutiveOrderFailuresLimit)
	fillApplier := fills.New(db, fillRepo, ids, clk)
	reconciler := broker.NewFillReconciler(orderRepo, ids, decimal.NewFromFloat(0.001))

	cache := marketdata.NewCache(cfg.MarketData.MaxBarsPerSymbol)
	timeframe := time.Minute
	aggregator := bars.New(cache, []time.Duration{timeframe})

	registry := strategy.NewRegistry()
	runner := strategy.New(registry, strategyRepo, signalRepo, cache, orderMgr, ids, clk,
		cfg.Scheduler.WorkerPoolSize, timeframe, log)

	if err := ensureBootstrapStrategy(strategyRepo, accountID, symbols, clk); err != nil {
		return err
	}

	stream := broker.NewWSStream(brokerStreamURL(cfg), "")
	streamRunner := broker.NewStreamRunner(stream, symbols, broker.ReconnectPolicy{
		Max:               cfg.Reconnect.Max,
		InitialDelay:      time.Duration(cfg.Reconnect.InitialDelayMs) * time.Millisecond,
		BackoffMultiplier: cfg.Reconnect.BackoffMultiplier,
	}, broker.HeartbeatPolicy{
		PingInterval: time.Duration(cfg.Heartbeat.PingIntervalMs) * time.Millisecond,
		PongTimeout:  time.Duration(cfg.Heartbeat.PongTimeoutMs) * time.Millisecond,
	}, log)

	go publisher.Run(ctx)
	go runner.Run(ctx, time.Duration(cfg.Scheduler.StrategyIntervalMs)*time.Millisecond)
	go runStream(ctx, streamRunner, cache, aggregator, reconciler, fillApplier, log)

	log.Info().Str("accountId", accountID).Strs("symbols", symbols).Msg("tradingcore started")
	<-ctx.Done()
	log.Info().Msg("tradingcore shutting down")
	return nil
}

// runStream consumes the broker stream, routing ticks into the market-data
// cache/bar aggregator and fills through reconciliation into the fill
// applier (spec §4.6: validate before it touches position/PnL state).
func runStream(ctx context.Context, sr *broker.StreamRunner, cache *marketdata.Cache, agg *bars.Aggregator, reconciler *broker.FillReconciler, applier *fills.Applier, log zerolog.Logger) {
	err := sr.Run(ctx, func(msg broker.StreamMessage) {
		switch {
		case msg.Tick != nil:
			tick := marketdata.Tick{Symbol: msg.Tick.Symbol, Price: msg.Tick.Price, Timestamp: msg.Tick.Timestamp}
			cache.PutTick(tick)
			agg.OnTick(tick)
		case msg.Fill != nil:
			fill, err := reconciler.Reconcile(*msg.Fill)
			if err != nil {
				log.Warn().Err(err).Msg("dropped invalid fill message")
				return
			}
			if err := applier.Apply(fill); err != nil {
				log.Error().Err(err).Str("orderId", fill.OrderID).Msg("failed to apply fill")
			}
		}
	})
	if err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("broker stream runner exited")
	}
}

// buildSinks wires the configured outbox.Sink delivery channels. Telegram is
// optional: without a token the engine still runs, just without
// notifications, matching the teacher's bot.TelegramBot being nil-safe when
// unconfigured.
func buildSinks(cfg *config.Config, log zerolog.Logger) []outbox.Sink {
	var sinks []outbox.Sink
	if cfg.TelegramToken == "" {
		return sinks
	}
	sink, err := notify.NewTelegramSink(cfg.TelegramToken, cfg.TelegramChatID, log)
	if err != nil {
		log.Warn().Err(err).Msg("telegram sink disabled: failed to initialize")
		return sinks
	}
	return append(sinks, sink)
}

// seedGlobalRiskRule ensures a GLOBAL risk rule exists on first boot so the
// risk engine has something to resolve to before an operator configures
// per-account/per-symbol overrides (spec §3, §6 risk.* defaults).
func seedGlobalRiskRule(repo *store.RiskRuleRepository, defaults config.RiskDefaults, ids *idgen.Generator) error {
	existing, err := repo.FindGlobal()
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	maxPos := defaults.MaxPositionValuePerSymbol
	maxOpen := defaults.MaxOpenOrders
	maxPerMin := defaults.MaxOrdersPerMinute
	dailyLoss := defaults.DailyLossLimit
	failLimit := defaults.ConsecutiveOrderFailuresLimit
	return repo.Upsert(types.RiskRule{
		RuleID:                        ids.New26(),
		Scope:                         types.RiskScopeGlobal,
		MaxPositionValuePerSymbol:     &maxPos,
		MaxOpenOrders:                 &maxOpen,
		MaxOrdersPerMinute:            &maxPerMin,
		DailyLossLimit:                &dailyLoss,
		ConsecutiveOrderFailuresLimit: &failLimit,
	})
}

// ensureBootstrapStrategy registers a default MA_CROSSOVER strategy bound
// to every configured symbol on first boot, so a fresh deployment has
// something for the runner to evaluate without an operator pre-seeding the
// strategies table by hand. Later boots find it among the active strategies
// and leave it as it is.
func ensureBootstrapStrategy(repo *store.StrategyRepository, accountID string, symbols []string, clk clock.Clock) error {
	if len(symbols) == 0 {
		return nil
	}
	const strategyID = "bootstrap-ma-crossover"
	const versionID = "v1"
	defs, err := repo.ListActive()
	if err != nil {
		return err
	}
	for _, def := range defs {
		if def.StrategyID == strategyID {
			return nil
		}
	}
	now := clk.Now()
	if err := repo.CreateVersion(strategyID, versionID, map[string]string{
		"fastPeriod": "12",
		"slowPeriod": "26",
	}, now); err != nil {
		return err
	}
	if err := repo.Upsert(strategyID, "Bootstrap MA Crossover", "MA_CROSSOVER", versionID, true, now); err != nil {
		return err
	}
	for _, sym := range symbols {
		if err := repo.BindSymbol(strategyID, sym, accountID); err != nil {
			return err
		}
	}
	return nil
}

func brokerBaseURL(cfg *config.Config) string {
	if cfg.Broker.Paper {
		return cfg.Broker.PaperBaseURL
	}
	return cfg.Broker.LiveBaseURL
}

func brokerStreamURL(cfg *config.Config) string {
	base := brokerBaseURL(cfg)
	base = strings.Replace(base, "https://", "wss://", 1)
	base = strings.Replace(base, "http://", "ws://", 1)
	return base + "/stream"
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitCSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
