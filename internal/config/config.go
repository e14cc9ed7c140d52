// Package config loads the engine's configuration knobs from the
// environment (spec §6). Structure and helper-function style are carried
// directly from the teacher's internal/config/config.go: one root Config
// struct composed of per-concern sub-structs, each field defaulted through
// getEnv*/getEnvDuration/getEnvDecimal helpers, loaded via godotenv at
// process start.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// BrokerConfig configures the broker adapter (spec §6: broker.*).
type BrokerConfig struct {
	PaperBaseURL      string
	LiveBaseURL       string
	AppKey            string
	AppSecret         string
	CommissionRate    decimal.Decimal
	MinimumCommission decimal.Decimal
	Paper             bool
	OrderDeadline     time.Duration
	QueryDeadline     time.Duration
}

// RiskDefaults seeds the GLOBAL risk rule when none is configured yet
// (spec §3 RiskRule, resolved most-specific-first in §4.1).
type RiskDefaults struct {
	MaxPositionValuePerSymbol     decimal.Decimal
	MaxOpenOrders                 int
	MaxOrdersPerMinute            int
	DailyLossLimit                decimal.Decimal
	ConsecutiveOrderFailuresLimit int
}

// SchedulerConfig configures the strategy runner's worker pool (spec §5, §6).
type SchedulerConfig struct {
	StrategyIntervalMs int
	WorkerPoolSize     int
}

// OutboxConfig configures the outbox publisher (spec §4.7, §6).
type OutboxConfig struct {
	BatchSize  int
	RetryLimit int
}

// MarketDataConfig configures the in-memory tick/bar cache (spec §2 C3, §6).
type MarketDataConfig struct {
	MaxBarsPerSymbol int
}

// ReconnectConfig configures broker stream reconnect backoff (spec §5, §6).
type ReconnectConfig struct {
	Max               int
	InitialDelayMs    int
	BackoffMultiplier float64
}

// HeartbeatConfig configures the broker stream heartbeat (spec §6).
type HeartbeatConfig struct {
	PingIntervalMs int
	PongTimeoutMs  int
}

// Config is the root configuration object, loaded once at startup and
// threaded through constructors (spec §9: "no global singletons").
type Config struct {
	Debug bool

	Broker     BrokerConfig
	Risk       RiskDefaults
	Scheduler  SchedulerConfig
	Outbox     OutboxConfig
	MarketData MarketDataConfig
	Reconnect  ReconnectConfig
	Heartbeat  HeartbeatConfig

	DatabaseURL      string
	TelegramToken    string
	TelegramChatID   int64
}

// Load reads the environment into a Config, applying the spec §6 defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Debug: getEnvBool("DEBUG", false),

		Broker: BrokerConfig{
			PaperBaseURL:      getEnv("BROKER_PAPER_BASE_URL", "https://paper.broker.example"),
			LiveBaseURL:       getEnv("BROKER_LIVE_BASE_URL", "https://live.broker.example"),
			AppKey:            os.Getenv("BROKER_APP_KEY"),
			AppSecret:         os.Getenv("BROKER_APP_SECRET"),
			CommissionRate:    getEnvDecimal("BROKER_COMMISSION_RATE", decimal.NewFromFloat(0.00015)),
			MinimumCommission: getEnvDecimal("BROKER_MINIMUM_COMMISSION", decimal.NewFromInt(0)),
			Paper:             getEnvBool("BROKER_PAPER_MODE", true),
			OrderDeadline:     getEnvDuration("BROKER_ORDER_DEADLINE", 5*time.Second),
			QueryDeadline:     getEnvDuration("BROKER_QUERY_DEADLINE", 3*time.Second),
		},

		Risk: RiskDefaults{
			MaxPositionValuePerSymbol:     getEnvDecimal("RISK_MAX_POSITION_VALUE_PER_SYMBOL", decimal.NewFromInt(50_000_000)),
			MaxOpenOrders:                 getEnvInt("RISK_MAX_OPEN_ORDERS", 20),
			MaxOrdersPerMinute:            getEnvInt("RISK_MAX_ORDERS_PER_MINUTE", 30),
			DailyLossLimit:                getEnvDecimal("RISK_DAILY_LOSS_LIMIT", decimal.NewFromInt(5_000_000)),
			ConsecutiveOrderFailuresLimit: getEnvInt("RISK_CONSECUTIVE_ORDER_FAILURES_LIMIT", 5),
		},

		Scheduler: SchedulerConfig{
			StrategyIntervalMs: getEnvInt("SCHEDULER_STRATEGY_INTERVAL_MS", 1000),
			WorkerPoolSize:     getEnvInt("SCHEDULER_WORKER_POOL_SIZE", 8),
		},

		Outbox: OutboxConfig{
			BatchSize:  getEnvInt("OUTBOX_BATCH_SIZE", 100),
			RetryLimit: getEnvInt("OUTBOX_RETRY_LIMIT", 50),
		},

		MarketData: MarketDataConfig{
			MaxBarsPerSymbol: getEnvInt("MARKETDATA_MAX_BARS_PER_SYMBOL", 200),
		},

		Reconnect: ReconnectConfig{
			Max:               getEnvInt("RECONNECT_MAX", 10),
			InitialDelayMs:    getEnvInt("RECONNECT_INITIAL_DELAY_MS", 1000),
			BackoffMultiplier: getEnvFloat("RECONNECT_BACKOFF_MULTIPLIER", 2.0),
		},

		Heartbeat: HeartbeatConfig{
			PingIntervalMs: getEnvInt("HEARTBEAT_PING_INTERVAL_MS", 15000),
			PongTimeoutMs:  getEnvInt("HEARTBEAT_PONG_TIMEOUT_MS", 5000),
		},

		DatabaseURL:    os.Getenv("DATABASE_URL"),
		TelegramToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
	}

	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
