package client

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"short_bot/logger"
	"short_bot/models"
)

const (
	readRetries    = 3
	readRetryDelay = time.Second
)

// BinanceFuturesClient implements interfaces.ExchangeGateway and
// interfaces.MarketData against USDⓈ-M futures.
type BinanceFuturesClient struct {
	client *futures.Client
}

// NewBinanceFuturesClient creates a futures client. Keys may be empty for
// the public market data calls used in rank mode.
func NewBinanceFuturesClient(apiKey, apiSecret string, testnet bool) *BinanceFuturesClient {
	futures.UseTestnet = testnet
	client := binance.NewFuturesClient(apiKey, apiSecret)
	if testnet {
		logger.Info("Started trading using Binance futures testnet")
	} else {
		logger.Info("Started trading using Binance futures")
	}
	return &BinanceFuturesClient{client: client}
}

// InstrumentMetadata lists every futures symbol with its LOT_SIZE step and
// PRICE_FILTER tick.
func (b *BinanceFuturesClient) InstrumentMetadata(ctx context.Context) ([]models.Instrument, error) {
	var info *futures.ExchangeInfo
	err := retry(ctx, func() error {
		var err error
		info, err = b.client.NewExchangeInfoService().Do(ctx)
		return err
	}, readRetries, readRetryDelay)
	if err != nil {
		return nil, translateError("exchange info", "", err)
	}

	instruments := make([]models.Instrument, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		inst := models.Instrument{
			Symbol:     s.Symbol,
			BaseAsset:  s.BaseAsset,
			QuoteAsset: s.QuoteAsset,
			Status:     s.Status,
		}
		for _, filter := range s.Filters {
			switch filter["filterType"] {
			case "LOT_SIZE":
				inst.StepSize = filterFloat(filter, "stepSize")
			case "PRICE_FILTER":
				inst.TickSize = filterFloat(filter, "tickSize")
			}
		}
		instruments = append(instruments, inst)
	}
	logger.Debugf("Loaded metadata for %d futures symbols", len(instruments))
	return instruments, nil
}

// LivePrice fetches the last traded price for symbol.
func (b *BinanceFuturesClient) LivePrice(ctx context.Context, symbol string) (float64, error) {
	prices, err := b.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, translateError("price", symbol, err)
	}
	if len(prices) == 0 {
		return 0, translateError("price", symbol, fmt.Errorf("no price data returned"))
	}

	price, err := strconv.ParseFloat(prices[0].Price, 64)
	if err != nil {
		return 0, translateError("price", symbol, fmt.Errorf("failed to parse price %q: %w", prices[0].Price, err))
	}
	logger.Debugf("Current price for %s: %.8f", symbol, price)
	return price, nil
}

func (b *BinanceFuturesClient) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	_, err := b.client.NewChangeLeverageService().Symbol(symbol).Leverage(leverage).Do(ctx)
	return translateError("leverage", symbol, err)
}

func (b *BinanceFuturesClient) SetMarginMode(ctx context.Context, symbol string, mode models.MarginMode) error {
	err := b.client.NewChangeMarginTypeService().Symbol(symbol).MarginType(futures.MarginType(mode)).Do(ctx)
	return translateError("margin mode", symbol, err)
}

// SetPositionMode switches the account between one-way and hedge mode.
func (b *BinanceFuturesClient) SetPositionMode(ctx context.Context, dualSide bool) error {
	err := b.client.NewChangePositionModeService().DualSide(dualSide).Do(ctx)
	return translateError("position mode", "", err)
}

func (b *BinanceFuturesClient) SubmitMarketOrder(ctx context.Context, order models.MarketOrder) (models.OrderRef, error) {
	clientID := uuid.NewString()
	res, err := b.client.NewCreateOrderService().
		Symbol(order.Symbol).
		Side(futures.SideType(order.Side)).
		PositionSide(futures.PositionSideType(order.PositionSide)).
		Type(futures.OrderTypeMarket).
		Quantity(formatFixed(order.Quantity, order.QuantityPrecision)).
		NewClientOrderID(clientID).
		Do(ctx)
	if err != nil {
		return models.OrderRef{}, translateError("market "+string(order.Side), order.Symbol, err)
	}

	logger.Infof("Placed MARKET %s %s order for %s: OrderID=%d", order.Side, order.PositionSide, order.Symbol, res.OrderID)
	return models.OrderRef{Symbol: order.Symbol, OrderID: res.OrderID, ClientOrderID: res.ClientOrderID}, nil
}

// SubmitConditionalCloseOrder places a mark-price trigger that closes the
// whole position on order.PositionSide when hit.
func (b *BinanceFuturesClient) SubmitConditionalCloseOrder(ctx context.Context, order models.ConditionalOrder) (models.OrderRef, error) {
	clientID := uuid.NewString()
	res, err := b.client.NewCreateOrderService().
		Symbol(order.Symbol).
		Side(futures.SideType(order.Side)).
		PositionSide(futures.PositionSideType(order.PositionSide)).
		Type(futures.OrderType(order.Kind)).
		StopPrice(formatFixed(order.TriggerPrice, order.PricePrecision)).
		ClosePosition(true).
		WorkingType(futures.WorkingTypeMarkPrice).
		NewClientOrderID(clientID).
		Do(ctx)
	if err != nil {
		return models.OrderRef{}, translateError(order.Kind.Leg(), order.Symbol, err)
	}

	logger.Infof("Placed %s for %s at %s: OrderID=%d", order.Kind, order.Symbol,
		formatFixed(order.TriggerPrice, order.PricePrecision), res.OrderID)
	return models.OrderRef{Symbol: order.Symbol, OrderID: res.OrderID, ClientOrderID: res.ClientOrderID}, nil
}

func (b *BinanceFuturesClient) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	_, err := b.client.NewCancelOrderService().Symbol(symbol).OrderID(orderID).Do(ctx)
	return translateError("cancel", symbol, err)
}

// AvailableBalance is the futures wallet balance free for new margin.
func (b *BinanceFuturesClient) AvailableBalance(ctx context.Context) (float64, error) {
	account, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return 0, translateError("account", "", err)
	}
	balance, err := strconv.ParseFloat(account.AvailableBalance, 64)
	if err != nil {
		return 0, translateError("account", "", fmt.Errorf("failed to parse available balance %q: %w", account.AvailableBalance, err))
	}
	return balance, nil
}

// Tickers returns 24h statistics for every futures symbol.
func (b *BinanceFuturesClient) Tickers(ctx context.Context) ([]models.Ticker, error) {
	var stats []*futures.PriceChangeStats
	err := retry(ctx, func() error {
		var err error
		stats, err = b.client.NewListPriceChangeStatsService().Do(ctx)
		return err
	}, readRetries, readRetryDelay)
	if err != nil {
		return nil, translateError("tickers", "", err)
	}

	tickers := make([]models.Ticker, 0, len(stats))
	for _, s := range stats {
		last, err := strconv.ParseFloat(s.LastPrice, 64)
		if err != nil {
			logger.Debugf("Skipping ticker %s: bad last price %q", s.Symbol, s.LastPrice)
			continue
		}
		volume, _ := strconv.ParseFloat(s.Volume, 64)
		tickers = append(tickers, models.Ticker{Symbol: s.Symbol, LastPrice: last, Volume: volume})
	}
	return tickers, nil
}

// MaxLeverage is the highest initial leverage across the symbol's brackets.
// It needs signed credentials.
func (b *BinanceFuturesClient) MaxLeverage(ctx context.Context, symbol string) (int, error) {
	brackets, err := b.client.NewGetLeverageBracketService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, translateError("leverage bracket", symbol, err)
	}
	best := 0
	for _, lb := range brackets {
		if lb.Symbol != symbol {
			continue
		}
		for _, br := range lb.Brackets {
			if br.InitialLeverage > best {
				best = br.InitialLeverage
			}
		}
	}
	if best > 0 {
		return best, nil
	}
	return 0, translateError("leverage bracket", symbol, fmt.Errorf("no brackets returned"))
}

func filterFloat(filter map[string]interface{}, key string) float64 {
	s, ok := filter[key].(string)
	if !ok {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// formatFixed renders v with exactly places decimals. Values reaching the
// gateway are already rounded, so this never moves them across a tick.
func formatFixed(v float64, places int) string {
	if places < 0 {
		places = 0
	}
	return decimal.NewFromFloat(v).StringFixed(int32(places))
}

// retry repeats a read-only call. Order placement never goes through it.
func retry(ctx context.Context, fn func() error, retries int, delay time.Duration) error {
	var err error
	for i := 0; i < retries; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == retries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("operation failed after %d retries: %w", retries, err)
}
