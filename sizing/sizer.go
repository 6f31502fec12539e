package sizing

import (
	"context"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"short_bot/interfaces"
	"short_bot/models"
)

// Sizer turns a capital allocation into an order quantity.
type Sizer struct {
	precision interfaces.PrecisionResolver
}

func NewSizer(precision interfaces.PrecisionResolver) *Sizer {
	return &Sizer{precision: precision}
}

// Size returns (capital × leverage) / price truncated to the symbol's
// quantity precision. Truncation keeps the margin requirement within the
// allocation. A non-positive or non-finite price yields zero and
// models.ErrInvalidPrice.
func (s *Sizer) Size(ctx context.Context, symbol string, capital float64, leverage int, price float64) (float64, error) {
	if !models.ValidPrice(price) {
		return 0, fmt.Errorf("size %s at price %v: %w", symbol, price, models.ErrInvalidPrice)
	}

	p, err := s.precision.Resolve(ctx, symbol)
	if err != nil {
		return 0, fmt.Errorf("size %s: %w", symbol, err)
	}
	return Quantity(capital, leverage, price, p.Quantity), nil
}

// Quantity is the pure sizing formula.
func Quantity(capital float64, leverage int, price float64, decimals int) float64 {
	if !models.ValidPrice(price) || math.IsNaN(capital) || math.IsInf(capital, 0) {
		return 0
	}
	notional := decimal.NewFromFloat(capital).Mul(decimal.NewFromInt(int64(leverage)))
	raw := notional.DivRound(decimal.NewFromFloat(price), 16)
	q, _ := raw.Truncate(int32(decimals)).Float64()
	return q
}
