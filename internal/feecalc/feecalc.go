// Package feecalc computes commission and transaction tax per fill (spec
// §4.8, C2). Grounded on the teacher's env-configurable rate pattern
// (risk.Manager's envDecimalRM/envIntRM helpers) generalized into a
// constructor-injected, runtime-replaceable plug-in per spec §9 ("no global
// singletons ... thread FeeCalculator through constructors").
package feecalc

import (
	"github.com/shopspring/decimal"

	"github.com/tradingcore/engine/types"
)

// InstrumentClass is the tax-relevant classification of a symbol.
type InstrumentClass string

const (
	InstrumentKOSPI  InstrumentClass = "KOSPI"
	InstrumentKOSDAQ InstrumentClass = "KOSDAQ"
	InstrumentETF    InstrumentClass = "ETF"
	InstrumentKONEX  InstrumentClass = "KONEX"
)

// Classifier maps a symbol to its instrument class. Runtime-replaceable:
// callers can substitute a classifier backed by a reference-data service
// instead of the default exact-symbol lookup.
type Classifier interface {
	Classify(symbol string) InstrumentClass
}

// TaxRule returns the sell-side transaction tax rate for an instrument
// class. Swappable without touching the engine (spec §4.8).
type TaxRule interface {
	Rate(class InstrumentClass) decimal.Decimal
}

// DefaultTaxRule implements the spec's §4.8 default rates: KOSPI/KOSDAQ
// 0.23%, ETF 0%, KONEX 0.10%.
type DefaultTaxRule struct{}

func (DefaultTaxRule) Rate(class InstrumentClass) decimal.Decimal {
	switch class {
	case InstrumentKOSPI, InstrumentKOSDAQ:
		return decimal.NewFromFloat(0.0023)
	case InstrumentETF:
		return decimal.Zero
	case InstrumentKONEX:
		return decimal.NewFromFloat(0.0010)
	default:
		return decimal.Zero
	}
}

// PrefixClassifier resolves instrument class by exact symbol from its
// override map, else returns the fallback class. It does no prefix, suffix
// or rule-based matching on the symbol text. This is a minimal, swappable
// reference-data stand-in; production deployments wire a real master-data
// lookup behind the same Classifier interface.
type PrefixClassifier struct {
	overrides map[string]InstrumentClass
	fallback  InstrumentClass
}

// NewPrefixClassifier builds a classifier with explicit per-symbol
// overrides and a fallback class for everything else.
func NewPrefixClassifier(overrides map[string]InstrumentClass, fallback InstrumentClass) *PrefixClassifier {
	if overrides == nil {
		overrides = map[string]InstrumentClass{}
	}
	return &PrefixClassifier{overrides: overrides, fallback: fallback}
}

func (c *PrefixClassifier) Classify(symbol string) InstrumentClass {
	if class, ok := c.overrides[symbol]; ok {
		return class
	}
	return c.fallback
}

// Config holds the commission parameters (spec §6: broker.commissionRate,
// broker.minimumCommission).
type Config struct {
	CommissionRate    decimal.Decimal
	MinimumCommission decimal.Decimal
}

// Calculator implements C2: calculateFee / calculateTax.
type Calculator struct {
	cfg        Config
	classifier Classifier
	taxRule    TaxRule
}

// New builds a Calculator. classifier/taxRule may be swapped for custom
// implementations; nil falls back to the spec defaults.
func New(cfg Config, classifier Classifier, taxRule TaxRule) *Calculator {
	if classifier == nil {
		classifier = NewPrefixClassifier(nil, InstrumentKOSPI)
	}
	if taxRule == nil {
		taxRule = DefaultTaxRule{}
	}
	return &Calculator{cfg: cfg, classifier: classifier, taxRule: taxRule}
}

// CalculateFee returns the broker commission, rounded HALF_UP to integer
// KRW, never below the configured minimum (spec §4.8).
func (c *Calculator) CalculateFee(symbol string, price decimal.Decimal, qty int64, side types.Side) decimal.Decimal {
	notional := price.Mul(decimal.NewFromInt(qty))
	fee := notional.Mul(c.cfg.CommissionRate).Round(0)
	if fee.LessThan(c.cfg.MinimumCommission) {
		return c.cfg.MinimumCommission
	}
	return fee
}

// CalculateTax returns the transaction tax: zero on BUY, instrument-class
// rate on SELL (spec §4.8).
func (c *Calculator) CalculateTax(symbol string, price decimal.Decimal, qty int64, side types.Side) decimal.Decimal {
	if side == types.SideBuy {
		return decimal.Zero
	}
	notional := price.Mul(decimal.NewFromInt(qty))
	class := c.classifier.Classify(symbol)
	rate := c.taxRule.Rate(class)
	return notional.Mul(rate).Round(0)
}
