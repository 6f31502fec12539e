package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"short_bot/config"
	"short_bot/interfaces"
	"short_bot/logger"
	"short_bot/metrics"
	"short_bot/models"
)

// PreflightError aborts a run before any order is placed.
type PreflightError struct {
	Reason string
	Err    error
}

func (e *PreflightError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("preflight abort: %s: %v", e.Reason, e.Err)
	}
	return "preflight abort: " + e.Reason
}

func (e *PreflightError) Unwrap() error { return e.Err }

func (e *PreflightError) Is(target error) bool {
	return target == models.ErrPreflightAbort
}

// Sizer is the quantity calculator used per basket member.
type Sizer interface {
	Size(ctx context.Context, symbol string, capital float64, leverage int, price float64) (float64, error)
}

// Executor opens and protects a single short.
type Executor interface {
	Execute(ctx context.Context, target models.SymbolTarget, quantity float64) models.OrderOutcome
}

// Metadata is the part of the precision resolver loaded during preflight.
type Metadata interface {
	Load(ctx context.Context) error
}

// Orchestrator runs a basket through sizing and execution.
type Orchestrator struct {
	gateway     interfaces.ExchangeGateway
	metadata    Metadata
	sizer       Sizer
	executor    Executor
	trading     config.TradingConfig
	pacer       *rate.Limiter
	concurrency int
	metrics     *metrics.Recorder
}

// NewPacer spaces symbol starts by interval. Zero disables pacing.
func NewPacer(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

func NewOrchestrator(
	gateway interfaces.ExchangeGateway,
	metadata Metadata,
	sizer Sizer,
	executor Executor,
	trading config.TradingConfig,
	pacer *rate.Limiter,
	concurrency int,
	rec *metrics.Recorder,
) *Orchestrator {
	if pacer == nil {
		pacer = NewPacer(0)
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Orchestrator{
		gateway:     gateway,
		metadata:    metadata,
		sizer:       sizer,
		executor:    executor,
		trading:     trading,
		pacer:       pacer,
		concurrency: concurrency,
		metrics:     rec,
	}
}

// Run executes every basket member and returns one outcome per symbol in
// basket order. The only error is a *PreflightError, in which case no
// order was placed and no outcomes are returned.
func (o *Orchestrator) Run(ctx context.Context, basket []models.SymbolTarget) ([]models.OrderOutcome, error) {
	started := time.Now()
	if err := o.preflight(ctx); err != nil {
		logger.Errorf("%v", err)
		o.metrics.ObserveRun(time.Since(started), true)
		return nil, err
	}

	logger.Infof("Trading %d symbols: capital/symbol=%v leverage=%dx stop-loss=%v%% take-profit=%v%%",
		len(basket), o.trading.CapitalPerSymbol, o.trading.Leverage, o.trading.StopLossPercent, o.trading.TakeProfitPercent)

	outcomes := make([]models.OrderOutcome, len(basket))
	if o.concurrency == 1 {
		for i, target := range basket {
			outcomes[i] = o.runSymbol(ctx, target)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(o.concurrency)
		for i, target := range basket {
			i, target := i, target
			g.Go(func() error {
				outcomes[i] = o.runSymbol(ctx, target)
				return nil
			})
		}
		_ = g.Wait()
	}

	o.summarize(outcomes)
	o.metrics.ObserveRun(time.Since(started), false)
	return outcomes, nil
}

func (o *Orchestrator) preflight(ctx context.Context) error {
	if !o.trading.EnableAutoTrade {
		return &PreflightError{Reason: "auto trading is disabled (enable_auto_trade=false)"}
	}
	if !o.trading.EnableShort {
		return &PreflightError{Reason: "short trading is disabled (enable_short=false)"}
	}

	balance, err := o.gateway.AvailableBalance(ctx)
	if err != nil {
		return &PreflightError{Reason: "could not read available balance", Err: err}
	}
	o.metrics.SetAvailableBalance(balance)
	logger.Infof("Available futures balance: %.2f", balance)
	if balance < o.trading.MinimumRequiredCapital {
		return &PreflightError{Reason: fmt.Sprintf("available balance %.2f is below required %.2f",
			balance, o.trading.MinimumRequiredCapital)}
	}

	// Every order carries positionSide=SHORT, which needs hedge mode.
	if err := o.gateway.SetPositionMode(ctx, true); err != nil && !errors.Is(err, models.ErrConfigurationRejected) {
		return &PreflightError{Reason: "could not enable hedge position mode", Err: err}
	}

	if err := o.metadata.Load(ctx); err != nil {
		return &PreflightError{Reason: "could not load instrument metadata", Err: err}
	}
	return nil
}

func (o *Orchestrator) runSymbol(ctx context.Context, target models.SymbolTarget) models.OrderOutcome {
	out := o.execute(ctx, target)
	o.metrics.ObserveOutcome(out.Status)
	return out
}

func (o *Orchestrator) execute(ctx context.Context, target models.SymbolTarget) models.OrderOutcome {
	if err := o.pacer.Wait(ctx); err != nil {
		return rejected(target.Symbol, fmt.Errorf("cancelled before entry: %w", err))
	}

	qty, err := o.sizer.Size(ctx, target.Symbol, o.trading.CapitalPerSymbol, o.trading.Leverage, target.ReferencePrice)
	if errors.Is(err, models.ErrInvalidPrice) {
		logger.Warnf("Skipping %s: invalid price %v", target.Symbol, target.ReferencePrice)
		return models.OrderOutcome{Symbol: target.Symbol, Status: models.OutcomeSkippedInvalidPrice, Err: err}
	}
	if err != nil {
		return rejected(target.Symbol, err)
	}
	return o.executor.Execute(ctx, target, qty)
}

func (o *Orchestrator) summarize(outcomes []models.OrderOutcome) {
	counts := make(map[models.OutcomeStatus]int)
	for _, out := range outcomes {
		counts[out.Status]++
		switch out.Status.Severity() {
		case models.SeverityCritical:
			logger.Criticalf("%s: %s: %s", out.Symbol, out.Status, out.Reason())
		case models.SeverityWarning:
			logger.Warnf("%s: %s: %s", out.Symbol, out.Status, out.Reason())
		}
	}
	logger.Infof("Run finished: %d protected, %d rolled back, %d rollback failed, %d skipped, %d rejected",
		counts[models.OutcomeOpenedProtected],
		counts[models.OutcomeOpenedUnprotectedRolledBack],
		counts[models.OutcomeOpenedUnprotectedRollbackFailed],
		counts[models.OutcomeSkippedInvalidPrice],
		counts[models.OutcomeRejected])
}
