package fills

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/tradingcore/engine/types"
)

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func buyFill(qty int64, price string) types.Fill {
	return types.Fill{Side: types.SideBuy, FillQty: qty, FillPrice: mustDecimal(price), FillTimestamp: time.Now()}
}

func sellFill(qty int64, price string) types.Fill {
	return types.Fill{Side: types.SideSell, FillQty: qty, FillPrice: mustDecimal(price), FillTimestamp: time.Now()}
}

func TestApplyFillToPositionOpensFlatPosition(t *testing.T) {
	pos := ApplyFillToPosition(types.Position{}, buyFill(10, "70000"))
	assert.Equal(t, int64(10), pos.Qty)
	assert.True(t, pos.AvgPrice.Equal(mustDecimal("70000")))
}

func TestApplyFillToPositionBlendsAveragePriceOnAdd(t *testing.T) {
	pos := types.Position{Qty: 10, AvgPrice: mustDecimal("70000")}
	pos = ApplyFillToPosition(pos, buyFill(10, "72000"))
	assert.Equal(t, int64(20), pos.Qty)
	assert.True(t, pos.AvgPrice.Equal(mustDecimal("71000")), "got %s", pos.AvgPrice)
}

func TestApplyFillToPositionPartiallyReducesLong(t *testing.T) {
	pos := types.Position{Qty: 10, AvgPrice: mustDecimal("70000")}
	pos = ApplyFillToPosition(pos, sellFill(4, "72000"))
	assert.Equal(t, int64(6), pos.Qty)
	assert.True(t, pos.AvgPrice.Equal(mustDecimal("70000")), "avgPrice unchanged on partial close")
	assert.True(t, pos.RealizedPnl.Equal(mustDecimal("8000")), "got %s", pos.RealizedPnl)
}

func TestApplyFillToPositionFullyClosesLongToFlat(t *testing.T) {
	pos := types.Position{Qty: 10, AvgPrice: mustDecimal("70000")}
	pos = ApplyFillToPosition(pos, sellFill(10, "72000"))
	assert.Equal(t, int64(0), pos.Qty)
	assert.True(t, pos.AvgPrice.IsZero())
	assert.True(t, pos.RealizedPnl.Equal(mustDecimal("20000")))
}

func TestApplyFillToPositionFlipsLongToShort(t *testing.T) {
	pos := types.Position{Qty: 10, AvgPrice: mustDecimal("70000")}
	pos = ApplyFillToPosition(pos, sellFill(15, "72000"))
	assert.Equal(t, int64(-5), pos.Qty)
	assert.True(t, pos.AvgPrice.Equal(mustDecimal("72000")))
	assert.True(t, pos.RealizedPnl.Equal(mustDecimal("20000")), "realized only on the closed 10 shares")
}

func TestApplyFillToPositionPartiallyCoversShort(t *testing.T) {
	pos := types.Position{Qty: -10, AvgPrice: mustDecimal("70000")}
	pos = ApplyFillToPosition(pos, buyFill(4, "68000"))
	assert.Equal(t, int64(-6), pos.Qty)
	assert.True(t, pos.AvgPrice.Equal(mustDecimal("70000")))
	assert.True(t, pos.RealizedPnl.Equal(mustDecimal("8000")), "short covered below cost is a gain")
}

func TestApplyFillToPositionFlipsShortToLong(t *testing.T) {
	pos := types.Position{Qty: -10, AvgPrice: mustDecimal("70000")}
	pos = ApplyFillToPosition(pos, buyFill(15, "68000"))
	assert.Equal(t, int64(5), pos.Qty)
	assert.True(t, pos.AvgPrice.Equal(mustDecimal("68000")))
	assert.True(t, pos.RealizedPnl.Equal(mustDecimal("20000")))
}

func TestUnrealizedPnlForLongAndShort(t *testing.T) {
	long := types.Position{Qty: 10, AvgPrice: mustDecimal("70000")}
	assert.True(t, UnrealizedPnl(long, mustDecimal("72000")).Equal(mustDecimal("20000")))

	short := types.Position{Qty: -10, AvgPrice: mustDecimal("70000")}
	assert.True(t, UnrealizedPnl(short, mustDecimal("68000")).Equal(mustDecimal("20000")))
}
