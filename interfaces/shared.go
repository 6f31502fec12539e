package interfaces

import (
	"context"

	"short_bot/models"
)

// ExchangeGateway is everything the execution engine needs from a venue.
// Implementations translate vendor failures into *models.GatewayError.
type ExchangeGateway interface {
	InstrumentMetadata(ctx context.Context) ([]models.Instrument, error)
	LivePrice(ctx context.Context, symbol string) (float64, error)
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	SetMarginMode(ctx context.Context, symbol string, mode models.MarginMode) error
	SetPositionMode(ctx context.Context, dualSide bool) error
	SubmitMarketOrder(ctx context.Context, order models.MarketOrder) (models.OrderRef, error)
	SubmitConditionalCloseOrder(ctx context.Context, order models.ConditionalOrder) (models.OrderRef, error)
	CancelOrder(ctx context.Context, symbol string, orderID int64) error
	AvailableBalance(ctx context.Context) (float64, error)
}

// MarketData is the read-only surface used to rank the basket.
type MarketData interface {
	InstrumentMetadata(ctx context.Context) ([]models.Instrument, error)
	Tickers(ctx context.Context) ([]models.Ticker, error)
	MaxLeverage(ctx context.Context, symbol string) (int, error)
}

// InstrumentSource is the subset of the gateway the precision resolver needs.
type InstrumentSource interface {
	InstrumentMetadata(ctx context.Context) ([]models.Instrument, error)
}

// PrecisionResolver yields decimal places for order quantities and prices.
type PrecisionResolver interface {
	Resolve(ctx context.Context, symbol string) (models.Precision, error)
	Instrument(ctx context.Context, symbol string) (models.Instrument, bool, error)
}
