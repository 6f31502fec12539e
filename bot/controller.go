package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"short_bot/config"
	"short_bot/interfaces"
	"short_bot/logger"
	"short_bot/metrics"
	"short_bot/models"
)

// Controller opens one protected short per call:
//
//	ENTERING -> ENTERED -> PROTECTING -> PROTECTED
//	                                  -> UNPROTECTED -> ROLLING_BACK -> ROLLED_BACK | ROLLBACK_FAILED
//
// Once the entry order is on its way the controller ignores cancellation,
// so protection or rollback always runs to completion.
type Controller struct {
	gateway    interfaces.ExchangeGateway
	precision  interfaces.PrecisionResolver
	trading    config.TradingConfig
	policy     RetryPolicy
	marginMode models.MarginMode
	metrics    *metrics.Recorder
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewController(
	gateway interfaces.ExchangeGateway,
	precision interfaces.PrecisionResolver,
	trading config.TradingConfig,
	policy RetryPolicy,
	marginMode models.MarginMode,
	rec *metrics.Recorder,
) *Controller {
	return &Controller{
		gateway:    gateway,
		precision:  precision,
		trading:    trading,
		policy:     policy,
		marginMode: marginMode,
		metrics:    rec,
		sleep:      sleepContext,
	}
}

func rejected(symbol string, err error) models.OrderOutcome {
	return models.OrderOutcome{Symbol: symbol, Status: models.OutcomeRejected, Err: err}
}

// Execute runs the full entry/protect/rollback sequence for target with the
// already sized quantity.
func (c *Controller) Execute(ctx context.Context, target models.SymbolTarget, quantity float64) models.OrderOutcome {
	symbol := target.Symbol

	if err := ctx.Err(); err != nil {
		return rejected(symbol, fmt.Errorf("cancelled before entry: %w", err))
	}
	if !models.ValidPrice(target.ReferencePrice) {
		return models.OrderOutcome{
			Symbol: symbol,
			Status: models.OutcomeSkippedInvalidPrice,
			Err:    fmt.Errorf("reference price %v: %w", target.ReferencePrice, models.ErrInvalidPrice),
		}
	}
	if quantity <= 0 {
		return rejected(symbol, fmt.Errorf("quantity %v is not tradable", quantity))
	}

	inst, found, err := c.precision.Instrument(ctx, symbol)
	if err != nil {
		return rejected(symbol, err)
	}
	if found && !inst.Tradable() {
		return rejected(symbol, fmt.Errorf("instrument status is %s", inst.Status))
	}
	prec, err := c.precision.Resolve(ctx, symbol)
	if err != nil {
		return rejected(symbol, err)
	}

	if err := c.configureSymbol(ctx, symbol); err != nil {
		return rejected(symbol, err)
	}

	price, err := c.gateway.LivePrice(ctx, symbol)
	if err != nil {
		logger.Errorf("Failed to refresh price for %s: %v", symbol, err)
		return rejected(symbol, fmt.Errorf("refresh price: %w", err))
	}
	if !models.ValidPrice(price) {
		return models.OrderOutcome{
			Symbol: symbol,
			Status: models.OutcomeSkippedInvalidPrice,
			Err:    fmt.Errorf("live price %v: %w", price, models.ErrInvalidPrice),
		}
	}
	logger.Infof("%s current price: %v", symbol, price)

	prices := ComputeProtectivePrices(price, c.trading.StopLossPercent, c.trading.TakeProfitPercent, prec.Price)
	if prices.StopLossClamped {
		logger.Warnf("%s stop-loss did not clear entry %v, clamped to %v", symbol, price, prices.StopLoss)
	}
	if prices.TakeProfitClamped {
		logger.Warnf("%s take-profit did not clear entry %v, clamped to %v", symbol, price, prices.TakeProfit)
	}
	// Entry is too close to zero for the price precision to hold a target.
	if !models.ValidPrice(prices.TakeProfit) {
		return rejected(symbol, fmt.Errorf("take-profit %v at %d decimals for entry %v: %w",
			prices.TakeProfit, prec.Price, price, models.ErrInvalidPrice))
	}

	intent := models.PositionIntent{
		Symbol:            symbol,
		Quantity:          quantity,
		ReferencePrice:    price,
		StopLossPrice:     prices.StopLoss,
		TakeProfitPrice:   prices.TakeProfit,
		QuantityPrecision: prec.Quantity,
		PricePrecision:    prec.Price,
	}

	// Last point at which cancellation is honoured.
	if err := ctx.Err(); err != nil {
		return rejected(symbol, fmt.Errorf("cancelled before entry: %w", err))
	}
	return c.open(context.WithoutCancel(ctx), intent)
}

func (c *Controller) configureSymbol(ctx context.Context, symbol string) error {
	if err := c.gateway.SetLeverage(ctx, symbol, c.trading.Leverage); err != nil {
		return fmt.Errorf("set leverage %dx: %w", c.trading.Leverage, err)
	}
	err := c.gateway.SetMarginMode(ctx, symbol, c.marginMode)
	if err != nil && !errors.Is(err, models.ErrConfigurationRejected) {
		return fmt.Errorf("set margin mode %s: %w", c.marginMode, err)
	}
	logger.Debugf("%s configured: leverage=%dx margin=%s", symbol, c.trading.Leverage, c.marginMode)
	return nil
}

func (c *Controller) open(ctx context.Context, intent models.PositionIntent) models.OrderOutcome {
	symbol := intent.Symbol
	out := models.OrderOutcome{
		Symbol:     symbol,
		Quantity:   intent.Quantity,
		EntryPrice: intent.ReferencePrice,
	}

	entry, err := c.gateway.SubmitMarketOrder(ctx, models.MarketOrder{
		Symbol:            symbol,
		Side:              models.SideSell,
		PositionSide:      models.PositionSideShort,
		Quantity:          intent.Quantity,
		QuantityPrecision: intent.QuantityPrecision,
	})
	if err != nil {
		logger.Errorf("Entry order for %s failed: %v", symbol, err)
		out.Status = models.OutcomeRejected
		out.Err = fmt.Errorf("entry order: %w", err)
		return out
	}
	out.Entry = &entry
	logger.Infof("Opened short %s qty=%v entry=%v (%s)", symbol, intent.Quantity, intent.ReferencePrice, entry)

	stop := c.protect(ctx, &intent, models.ConditionalStop)
	take := c.protect(ctx, &intent, models.ConditionalTakeProfit)
	out.StopLoss = stop.result()
	out.TakeProfit = take.result()

	if out.Protected() {
		out.Status = models.OutcomeOpenedProtected
		logger.Infof("%s protected: stop-loss=%v (%v%%) take-profit=%v (%v%%)",
			symbol, intent.StopLossPrice, c.trading.StopLossPercent, intent.TakeProfitPrice, c.trading.TakeProfitPercent)
		return out
	}

	logger.Warnf("%s opened but protection is incomplete (stop-loss placed=%v, take-profit placed=%v), rolling back",
		symbol, out.StopLoss.Placed, out.TakeProfit.Placed)
	return c.rollback(ctx, intent, out)
}

// protect drives one leg through the retry state machine.
func (c *Controller) protect(ctx context.Context, intent *models.PositionIntent, kind models.ConditionalKind) *legAttempt {
	symbol := intent.Symbol
	leg := newLegAttempt(kind, c.policy, c.legPrice(intent, kind))

	for !leg.finished {
		ref, err := c.gateway.SubmitConditionalCloseOrder(ctx, models.ConditionalOrder{
			Symbol:         symbol,
			Side:           models.SideBuy,
			PositionSide:   models.PositionSideShort,
			Kind:           kind,
			TriggerPrice:   leg.price,
			PricePrecision: intent.PricePrecision,
		})
		action := leg.record(ref, err)
		c.metrics.ObserveLegAttempt(kind.Leg(), err)

		switch action {
		case actionDone:
			logger.Infof("%s %s set at %v (%s)", symbol, kind.Leg(), leg.price, ref)
		case actionShiftPrice:
			market := c.refreshMarket(ctx, symbol)
			shift := c.policy.ShiftPercent(leg.failures)
			if kind == models.ConditionalStop {
				leg.price = ShiftedStopLoss(intent.ReferencePrice, market, shift, intent.PricePrecision)
			} else {
				leg.price = ShiftedTakeProfit(intent.ReferencePrice, market, shift, intent.PricePrecision)
			}
			logger.Warnf("%s %s would trigger immediately, retrying at %v (attempt %d/%d)",
				symbol, kind.Leg(), leg.price, leg.failures+1, c.policy.MaxAttempts)
		case actionWait:
			logger.Errorf("%s %s failed (attempt %d/%d): %v", symbol, kind.Leg(), leg.failures, c.policy.MaxAttempts, err)
			_ = c.sleep(ctx, c.policy.Delay)
		case actionExhausted:
			logger.Errorf("%s %s gave up after %d attempts: %v", symbol, kind.Leg(), leg.failures, err)
		}
	}

	if kind == models.ConditionalStop {
		intent.StopLossPrice = leg.price
	} else {
		intent.TakeProfitPrice = leg.price
	}
	return leg
}

func (c *Controller) legPrice(intent *models.PositionIntent, kind models.ConditionalKind) float64 {
	if kind == models.ConditionalStop {
		return intent.StopLossPrice
	}
	return intent.TakeProfitPrice
}

// refreshMarket returns the latest price, or 0 when it cannot be fetched so
// the shift anchors on the entry price alone.
func (c *Controller) refreshMarket(ctx context.Context, symbol string) float64 {
	price, err := c.gateway.LivePrice(ctx, symbol)
	if err != nil {
		logger.Warnf("Could not refresh %s price for repricing, anchoring on entry: %v", symbol, err)
		return 0
	}
	if !models.ValidPrice(price) {
		logger.Warnf("Refreshed %s price %v is unusable, anchoring on entry", symbol, price)
		return 0
	}
	return price
}

func (c *Controller) rollback(ctx context.Context, intent models.PositionIntent, out models.OrderOutcome) models.OrderOutcome {
	symbol := intent.Symbol
	ref, err := c.gateway.SubmitMarketOrder(ctx, models.MarketOrder{
		Symbol:            symbol,
		Side:              models.SideBuy,
		PositionSide:      models.PositionSideShort,
		Quantity:          intent.Quantity,
		QuantityPrecision: intent.QuantityPrecision,
	})
	c.metrics.ObserveRollback(err == nil)

	if err != nil {
		out.Status = models.OutcomeOpenedUnprotectedRollbackFailed
		out.Err = &models.GatewayError{
			Op:     "rollback",
			Symbol: symbol,
			Kind:   models.KindRollbackFailure,
			Err:    err,
		}
		logger.Criticalf("UNPROTECTED SHORT OPEN on %s qty=%v: rollback failed: %v. Manual intervention required.",
			symbol, intent.Quantity, err)
		return out
	}

	out.Rollback = &ref
	out.Status = models.OutcomeOpenedUnprotectedRolledBack
	out.Err = protectionError(out)
	logger.Warnf("Rolled back %s after failed protection (%s)", symbol, ref)

	// A leg that did get placed would otherwise stay resting on a flat position.
	for _, leg := range []models.LegResult{out.StopLoss, out.TakeProfit} {
		if !leg.Placed {
			continue
		}
		if err := c.gateway.CancelOrder(ctx, symbol, leg.Order.OrderID); err != nil {
			logger.Warnf("Failed to cancel orphaned %s order %s: %v", leg.Kind.Leg(), leg.Order, err)
		}
	}
	return out
}

func protectionError(out models.OrderOutcome) error {
	var errs []error
	if !out.StopLoss.Placed {
		errs = append(errs, fmt.Errorf("stop-loss not placed after %d attempts: %w", out.StopLoss.Attempts, out.StopLoss.Err))
	}
	if !out.TakeProfit.Placed {
		errs = append(errs, fmt.Errorf("take-profit not placed after %d attempts: %w", out.TakeProfit.Attempts, out.TakeProfit.Err))
	}
	return errors.Join(errs...)
}
