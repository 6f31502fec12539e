package models

import "fmt"

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the side that closes a position opened with s.
func (s Side) Opposite() Side {
	if s == SideSell {
		return SideBuy
	}
	return SideSell
}

type PositionSide string

const (
	PositionSideShort PositionSide = "SHORT"
	PositionSideLong  PositionSide = "LONG"
)

type MarginMode string

const (
	MarginModeCross    MarginMode = "CROSSED"
	MarginModeIsolated MarginMode = "ISOLATED"
)

// ConditionalKind selects the trigger order type of a protective leg.
type ConditionalKind string

const (
	ConditionalStop       ConditionalKind = "STOP_MARKET"
	ConditionalTakeProfit ConditionalKind = "TAKE_PROFIT_MARKET"
)

// Leg is the short name used in logs and metrics.
func (k ConditionalKind) Leg() string {
	if k == ConditionalTakeProfit {
		return "take_profit"
	}
	return "stop_loss"
}

// MarketOrder requests an immediate fill of Quantity.
// Quantity and the precision it is formatted with travel together so the
// gateway never re-rounds a value the sizer already truncated.
type MarketOrder struct {
	Symbol            string
	Side              Side
	PositionSide      PositionSide
	Quantity          float64
	QuantityPrecision int
}

// ConditionalOrder is a close-position trigger order (stop or take profit).
type ConditionalOrder struct {
	Symbol         string
	Side           Side
	PositionSide   PositionSide
	Kind           ConditionalKind
	TriggerPrice   float64
	PricePrecision int
}

// OrderRef identifies an order accepted by the exchange.
type OrderRef struct {
	Symbol        string
	OrderID       int64
	ClientOrderID string
}

func (r OrderRef) String() string {
	return fmt.Sprintf("%s#%d(%s)", r.Symbol, r.OrderID, r.ClientOrderID)
}
