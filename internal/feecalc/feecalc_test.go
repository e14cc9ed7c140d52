package feecalc

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/tradingcore/engine/types"
)

func TestCalculateFeeRespectsMinimum(t *testing.T) {
	c := New(Config{
		CommissionRate:    decimal.NewFromFloat(0.00015),
		MinimumCommission: decimal.NewFromInt(100),
	}, nil, nil)

	// Tiny notional would compute below the minimum.
	fee := c.CalculateFee("005930", decimal.NewFromInt(1000), 1, types.SideBuy)
	assert.True(t, fee.Equal(decimal.NewFromInt(100)))
}

func TestCalculateFeeAboveMinimum(t *testing.T) {
	c := New(Config{
		CommissionRate:    decimal.NewFromFloat(0.00015),
		MinimumCommission: decimal.NewFromInt(100),
	}, nil, nil)

	fee := c.CalculateFee("005930", decimal.NewFromInt(70000), 100, types.SideBuy)
	// 70000*100*0.00015 = 1050
	assert.True(t, fee.Equal(decimal.NewFromInt(1050)))
}

func TestCalculateTaxZeroOnBuy(t *testing.T) {
	c := New(Config{}, nil, nil)
	tax := c.CalculateTax("005930", decimal.NewFromInt(70000), 10, types.SideBuy)
	assert.True(t, tax.IsZero())
}

func TestCalculateTaxKospiSell(t *testing.T) {
	c := New(Config{}, NewPrefixClassifier(nil, InstrumentKOSPI), DefaultTaxRule{})
	tax := c.CalculateTax("005930", decimal.NewFromInt(71000), 10, types.SideSell)
	// 710000 * 0.0023 = 1633
	assert.True(t, tax.Equal(decimal.NewFromInt(1633)))
}

func TestCalculateTaxETFIsZero(t *testing.T) {
	classifier := NewPrefixClassifier(map[string]InstrumentClass{"069500": InstrumentETF}, InstrumentKOSPI)
	c := New(Config{}, classifier, DefaultTaxRule{})
	tax := c.CalculateTax("069500", decimal.NewFromInt(50000), 10, types.SideSell)
	assert.True(t, tax.IsZero())
}
