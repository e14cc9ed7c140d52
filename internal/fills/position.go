package fills

import (
	"github.com/shopspring/decimal"

	"github.com/tradingcore/engine/types"
)

// avgPriceDecimalPlaces matches spec §4.4's "avgPrice rounds to 4 decimal
// places, HALF_UP".
const avgPriceDecimalPlaces = 4

// ApplyFillToPosition applies one fill to a position using average-cost
// accounting (spec §4.4). The fill is turned into a signed quantity and
// dispatched to four helpers (open from flat, add in the same direction,
// reduce, flip), which together cover the six cases below for both sides:
//
//   - BUY into long or flat: new shares blend into the average price.
//   - BUY reducing a short position (partial cover): qty moves toward zero,
//     avgPrice is unchanged (short basis doesn't change on a partial cover),
//     and the covered portion realizes PnL against the short's avgPrice.
//   - BUY that flips short to long: the short is fully closed (realizing
//     PnL on the whole short), and the excess becomes a new long position at
//     the fill price.
//   - SELL into short or flat: symmetric to the BUY-into-long case.
//   - SELL reducing a long position (partial close): symmetric to the
//     BUY-reducing-a-short case.
//   - SELL that flips long to short: symmetric to the BUY-flip case.
func ApplyFillToPosition(pos types.Position, fill types.Fill) types.Position {
	signedQty := fill.FillQty
	if fill.Side == types.SideSell {
		signedQty = -signedQty
	}

	switch {
	case pos.Qty == 0:
		return openFlat(pos, signedQty, fill.FillPrice)
	case sameSign(pos.Qty, signedQty):
		return addToPosition(pos, signedQty, fill.FillPrice)
	case absInt64(signedQty) <= absInt64(pos.Qty):
		return reduce(pos, signedQty, fill.FillPrice)
	default:
		return flip(pos, signedQty, fill.FillPrice)
	}
}

func openFlat(pos types.Position, signedQty int64, price decimal.Decimal) types.Position {
	pos.Qty = signedQty
	pos.AvgPrice = price.Round(avgPriceDecimalPlaces)
	return pos
}

// addToPosition blends a same-direction fill into the running average price:
// newAvg = (oldQty*oldAvg + fillQty*fillPrice) / (oldQty + fillQty).
func addToPosition(pos types.Position, signedQty int64, price decimal.Decimal) types.Position {
	oldQtyAbs := decimal.NewFromInt(absInt64(pos.Qty))
	fillQtyAbs := decimal.NewFromInt(absInt64(signedQty))
	totalQtyAbs := oldQtyAbs.Add(fillQtyAbs)

	notional := pos.AvgPrice.Mul(oldQtyAbs).Add(price.Mul(fillQtyAbs))
	pos.AvgPrice = notional.Div(totalQtyAbs).Round(avgPriceDecimalPlaces)
	pos.Qty += signedQty
	return pos
}

// reduce partially (or fully, to exactly zero) closes a position in the
// opposite direction, realizing PnL on the closed portion at the existing
// avgPrice; avgPrice itself does not change on a partial close.
func reduce(pos types.Position, signedQty int64, price decimal.Decimal) types.Position {
	closedQty := decimal.NewFromInt(absInt64(signedQty))
	realized := realizedPnlForClose(pos, closedQty, price)
	pos.RealizedPnl = pos.RealizedPnl.Add(realized)
	pos.Qty += signedQty
	if pos.Qty == 0 {
		pos.AvgPrice = decimal.Zero
	}
	return pos
}

// flip fully closes the existing position (realizing PnL on all of it) and
// opens a new position in the opposite direction at the fill price for the
// remainder.
func flip(pos types.Position, signedQty int64, price decimal.Decimal) types.Position {
	closedQty := decimal.NewFromInt(absInt64(pos.Qty))
	realized := realizedPnlForClose(pos, closedQty, price)

	remaining := signedQty + pos.Qty // pos.Qty fully offsets; leftover keeps its sign from signedQty
	pos.RealizedPnl = pos.RealizedPnl.Add(realized)
	pos.Qty = remaining
	pos.AvgPrice = price.Round(avgPriceDecimalPlaces)
	return pos
}

// realizedPnlForClose computes the PnL realized by closing closedQty shares
// of pos at price, signed so a long closed by a sell above cost (or a short
// closed by a buy below cost) is positive.
func realizedPnlForClose(pos types.Position, closedQty, price decimal.Decimal) decimal.Decimal {
	diff := price.Sub(pos.AvgPrice)
	if pos.Qty < 0 {
		diff = diff.Neg()
	}
	return diff.Mul(closedQty)
}

// UnrealizedPnl computes mark-to-market PnL for a position at the given
// market price (spec §4.4): (markPrice - avgPrice) * qty for a long,
// (avgPrice - markPrice) * |qty| for a short.
func UnrealizedPnl(pos types.Position, markPrice decimal.Decimal) decimal.Decimal {
	if pos.Qty == 0 {
		return decimal.Zero
	}
	diff := markPrice.Sub(pos.AvgPrice)
	if pos.Qty < 0 {
		diff = diff.Neg()
	}
	return diff.Mul(decimal.NewFromInt(absInt64(pos.Qty)))
}

func sameSign(a, b int64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

func absInt64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
