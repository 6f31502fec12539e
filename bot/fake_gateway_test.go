package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"short_bot/models"
)

// fakeGateway is a scriptable in-memory exchange. Queued errors are consumed
// one per call; an empty queue means success.
type fakeGateway struct {
	mu sync.Mutex

	instruments  []models.Instrument
	metadataErr  error
	prices       map[string][]float64 // consumed in order, the last value repeats
	defaultPrice float64
	priceErr     map[string]error

	balance         float64
	balanceErr      error
	leverageErr     error
	marginErr       error
	positionModeErr error

	entryErr    map[string]error
	rollbackErr error
	stopErrs    map[string][]error
	takeErrs    map[string][]error
	cancelErr   error

	// honourCtx makes order calls fail with ctx.Err() once ctx is done,
	// as the real client does.
	honourCtx bool
	onEntry   func()

	nextID      int64
	calls       []string
	market      []models.MarketOrder
	conditional []models.ConditionalOrder
	cancelled   []int64
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		prices:       make(map[string][]float64),
		defaultPrice: 100,
		priceErr:     make(map[string]error),
		balance:      5000,
		entryErr:     make(map[string]error),
		stopErrs:     make(map[string][]error),
		takeErrs:     make(map[string][]error),
	}
}

func (f *fakeGateway) record(op string) {
	f.calls = append(f.calls, op)
}

func (f *fakeGateway) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeGateway) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == op {
			n++
		}
	}
	return n
}

func (f *fakeGateway) marketOrders(side models.Side) []models.MarketOrder {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.MarketOrder
	for _, o := range f.market {
		if o.Side == side {
			out = append(out, o)
		}
	}
	return out
}

func (f *fakeGateway) conditionalOrders(kind models.ConditionalKind) []models.ConditionalOrder {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ConditionalOrder
	for _, o := range f.conditional {
		if o.Kind == kind {
			out = append(out, o)
		}
	}
	return out
}

func (f *fakeGateway) InstrumentMetadata(ctx context.Context) ([]models.Instrument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("metadata")
	return f.instruments, f.metadataErr
}

func (f *fakeGateway) LivePrice(ctx context.Context, symbol string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("price")
	if f.honourCtx && ctx.Err() != nil {
		return 0, ctx.Err()
	}
	if err := f.priceErr[symbol]; err != nil {
		return 0, err
	}
	q := f.prices[symbol]
	if len(q) == 0 {
		return f.defaultPrice, nil
	}
	p := q[0]
	if len(q) > 1 {
		f.prices[symbol] = q[1:]
	}
	return p, nil
}

func (f *fakeGateway) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("leverage")
	return f.leverageErr
}

func (f *fakeGateway) SetMarginMode(ctx context.Context, symbol string, mode models.MarginMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("margin")
	return f.marginErr
}

func (f *fakeGateway) SetPositionMode(ctx context.Context, dualSide bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("position_mode")
	return f.positionModeErr
}

func (f *fakeGateway) SubmitMarketOrder(ctx context.Context, order models.MarketOrder) (models.OrderRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("market")
	f.market = append(f.market, order)
	if f.honourCtx && ctx.Err() != nil {
		return models.OrderRef{}, ctx.Err()
	}
	if order.Side == models.SideSell && f.onEntry != nil {
		f.onEntry()
	}

	err := f.rollbackErr
	if order.Side == models.SideSell {
		err = f.entryErr[order.Symbol]
	}
	if err != nil {
		return models.OrderRef{}, err
	}
	id := f.id()
	return models.OrderRef{Symbol: order.Symbol, OrderID: id, ClientOrderID: fmt.Sprintf("c-%d", id)}, nil
}

func (f *fakeGateway) SubmitConditionalCloseOrder(ctx context.Context, order models.ConditionalOrder) (models.OrderRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("conditional")
	f.conditional = append(f.conditional, order)
	if f.honourCtx && ctx.Err() != nil {
		return models.OrderRef{}, ctx.Err()
	}

	queues := f.stopErrs
	if order.Kind == models.ConditionalTakeProfit {
		queues = f.takeErrs
	}
	if q := queues[order.Symbol]; len(q) > 0 {
		queues[order.Symbol] = q[1:]
		if q[0] != nil {
			return models.OrderRef{}, q[0]
		}
	}
	id := f.id()
	return models.OrderRef{Symbol: order.Symbol, OrderID: id, ClientOrderID: fmt.Sprintf("c-%d", id)}, nil
}

func (f *fakeGateway) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("cancel")
	f.cancelled = append(f.cancelled, orderID)
	if f.honourCtx && ctx.Err() != nil {
		return ctx.Err()
	}
	return f.cancelErr
}

func (f *fakeGateway) AvailableBalance(ctx context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("balance")
	return f.balance, f.balanceErr
}

func triggerErr() error {
	return &models.GatewayError{
		Op:   "conditional order",
		Code: -2021,
		Kind: models.KindTriggerConflict,
		Err:  errors.New("<APIError> code=-2021, msg=Order would immediately trigger."),
	}
}

func transientErr(msg string) error {
	return &models.GatewayError{Op: "order", Kind: models.KindTransientGateway, Err: errors.New(msg)}
}

func alreadySetErr() error {
	return &models.GatewayError{
		Op:   "margin mode",
		Code: -4046,
		Kind: models.KindConfigurationRejected,
		Err:  errors.New("<APIError> code=-4046, msg=No need to change margin type."),
	}
}
