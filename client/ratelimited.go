package client

import (
	"context"

	"golang.org/x/time/rate"

	"short_bot/interfaces"
	"short_bot/models"
)

var (
	_ interfaces.ExchangeGateway = (*RateLimitedGateway)(nil)
	_ interfaces.ExchangeGateway = (*BinanceFuturesClient)(nil)
	_ interfaces.MarketData      = (*BinanceFuturesClient)(nil)
)

// RateLimitedGateway caps the request rate of every gateway call, shared
// across all symbols of a run.
type RateLimitedGateway struct {
	next    interfaces.ExchangeGateway
	limiter *rate.Limiter
}

// NewRateLimitedGateway wraps next. A non-positive rps disables the cap.
func NewRateLimitedGateway(next interfaces.ExchangeGateway, rps float64, burst int) *RateLimitedGateway {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedGateway{next: next, limiter: rate.NewLimiter(limit, burst)}
}

func (g *RateLimitedGateway) wait(ctx context.Context, op, symbol string) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return translateError(op, symbol, err)
	}
	return nil
}

func (g *RateLimitedGateway) InstrumentMetadata(ctx context.Context) ([]models.Instrument, error) {
	if err := g.wait(ctx, "exchange info", ""); err != nil {
		return nil, err
	}
	return g.next.InstrumentMetadata(ctx)
}

func (g *RateLimitedGateway) LivePrice(ctx context.Context, symbol string) (float64, error) {
	if err := g.wait(ctx, "price", symbol); err != nil {
		return 0, err
	}
	return g.next.LivePrice(ctx, symbol)
}

func (g *RateLimitedGateway) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	if err := g.wait(ctx, "leverage", symbol); err != nil {
		return err
	}
	return g.next.SetLeverage(ctx, symbol, leverage)
}

func (g *RateLimitedGateway) SetMarginMode(ctx context.Context, symbol string, mode models.MarginMode) error {
	if err := g.wait(ctx, "margin mode", symbol); err != nil {
		return err
	}
	return g.next.SetMarginMode(ctx, symbol, mode)
}

func (g *RateLimitedGateway) SetPositionMode(ctx context.Context, dualSide bool) error {
	if err := g.wait(ctx, "position mode", ""); err != nil {
		return err
	}
	return g.next.SetPositionMode(ctx, dualSide)
}

func (g *RateLimitedGateway) SubmitMarketOrder(ctx context.Context, order models.MarketOrder) (models.OrderRef, error) {
	if err := g.wait(ctx, "market "+string(order.Side), order.Symbol); err != nil {
		return models.OrderRef{}, err
	}
	return g.next.SubmitMarketOrder(ctx, order)
}

func (g *RateLimitedGateway) SubmitConditionalCloseOrder(ctx context.Context, order models.ConditionalOrder) (models.OrderRef, error) {
	if err := g.wait(ctx, order.Kind.Leg(), order.Symbol); err != nil {
		return models.OrderRef{}, err
	}
	return g.next.SubmitConditionalCloseOrder(ctx, order)
}

func (g *RateLimitedGateway) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	if err := g.wait(ctx, "cancel", symbol); err != nil {
		return err
	}
	return g.next.CancelOrder(ctx, symbol, orderID)
}

func (g *RateLimitedGateway) AvailableBalance(ctx context.Context) (float64, error) {
	if err := g.wait(ctx, "account", ""); err != nil {
		return 0, err
	}
	return g.next.AvailableBalance(ctx)
}
