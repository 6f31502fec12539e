package bot

import (
	"github.com/shopspring/decimal"

	"short_bot/models"
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)

	// Clamp targets when the configured percentages round onto the wrong
	// side of the entry price.
	stopLossClamp   = decimal.RequireFromString("1.01")
	takeProfitClamp = decimal.RequireFromString("0.99")
)

// ProtectivePrices are the trigger prices for a short opened at Entry.
type ProtectivePrices struct {
	Entry             float64
	StopLoss          float64
	TakeProfit        float64
	StopLossClamped   bool
	TakeProfitClamped bool
}

func pct(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Div(hundred)
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// ComputeProtectivePrices derives stop-loss above and take-profit below the
// entry of a short, rounded to decimals. A value that rounds onto or past the
// entry is replaced by entry×1.01 (ceil) or entry×0.99 (floor), which always
// lands strictly on the correct side.
func ComputeProtectivePrices(entry, stopLossPercent, takeProfitPercent float64, decimals int) ProtectivePrices {
	places := int32(decimals)
	e := decimal.NewFromFloat(entry)

	sl := e.Mul(one.Add(pct(stopLossPercent))).Round(places)
	tp := e.Mul(one.Sub(pct(takeProfitPercent))).Round(places)

	out := ProtectivePrices{Entry: entry}
	if sl.LessThanOrEqual(e) {
		sl = e.Mul(stopLossClamp).RoundCeil(places)
		out.StopLossClamped = true
	}
	if tp.GreaterThanOrEqual(e) {
		tp = e.Mul(takeProfitClamp).RoundFloor(places)
		out.TakeProfitClamped = true
	}
	out.StopLoss = toFloat(sl)
	out.TakeProfit = toFloat(tp)
	return out
}

// ShiftedStopLoss moves the stop shiftPercent above the higher of entry and
// the latest market price.
func ShiftedStopLoss(entry, market, shiftPercent float64, decimals int) float64 {
	anchor := decimal.NewFromFloat(entry)
	if models.ValidPrice(market) {
		if m := decimal.NewFromFloat(market); m.GreaterThan(anchor) {
			anchor = m
		}
	}
	return toFloat(anchor.Mul(one.Add(pct(shiftPercent))).RoundCeil(int32(decimals)))
}

// ShiftedTakeProfit moves the target shiftPercent below the lower of entry
// and the latest market price. The result never drops below one tick.
func ShiftedTakeProfit(entry, market, shiftPercent float64, decimals int) float64 {
	anchor := decimal.NewFromFloat(entry)
	if models.ValidPrice(market) {
		if m := decimal.NewFromFloat(market); m.LessThan(anchor) {
			anchor = m
		}
	}
	tp := anchor.Mul(one.Sub(pct(shiftPercent))).RoundFloor(int32(decimals))
	if tick := decimal.New(1, -int32(decimals)); tp.LessThan(tick) {
		tp = tick
	}
	return toFloat(tp)
}
