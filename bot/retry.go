package bot

import (
	"context"
	"time"

	"short_bot/models"
)

// RetryPolicy bounds the attempts made for one protective leg.
type RetryPolicy struct {
	MaxAttempts      int
	Delay            time.Duration // pause after a non-trigger rejection
	ShiftBasePercent float64
	ShiftStepPercent float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:      3,
		Delay:            time.Second,
		ShiftBasePercent: 0.5,
		ShiftStepPercent: 0.5,
	}
}

// ShiftPercent is the distance from market used after the n-th trigger
// conflict (n starts at 1).
func (p RetryPolicy) ShiftPercent(n int) float64 {
	return p.ShiftBasePercent + p.ShiftStepPercent*float64(n)
}

type retryAction int

const (
	actionDone retryAction = iota
	actionShiftPrice
	actionWait
	actionExhausted
)

func (a retryAction) String() string {
	switch a {
	case actionDone:
		return "done"
	case actionShiftPrice:
		return "shift_price"
	case actionWait:
		return "wait"
	case actionExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Next decides what follows the failed attempt number `failed` (1-based).
func (p RetryPolicy) Next(failed int, err error) retryAction {
	if err == nil {
		return actionDone
	}
	if failed >= p.MaxAttempts {
		return actionExhausted
	}
	if models.KindOf(err) == models.KindTriggerConflict {
		return actionShiftPrice
	}
	return actionWait
}

// legAttempt is the mutable state of one protective leg while it retries.
type legAttempt struct {
	kind     models.ConditionalKind
	policy   RetryPolicy
	price    float64
	initial  float64
	failures int
	order    models.OrderRef
	lastErr  error
	placed   bool
	finished bool
}

func newLegAttempt(kind models.ConditionalKind, policy RetryPolicy, price float64) *legAttempt {
	return &legAttempt{kind: kind, policy: policy, price: price, initial: price}
}

// record feeds the result of the latest submission into the state machine.
func (l *legAttempt) record(ref models.OrderRef, err error) retryAction {
	if err == nil {
		l.placed, l.finished, l.order, l.lastErr = true, true, ref, nil
		return actionDone
	}
	l.failures++
	l.lastErr = err
	action := l.policy.Next(l.failures, err)
	if action == actionExhausted {
		l.finished = true
	}
	return action
}

func (l *legAttempt) attempts() int {
	if l.placed {
		return l.failures + 1
	}
	return l.failures
}

func (l *legAttempt) result() models.LegResult {
	return models.LegResult{
		Kind:         l.kind,
		Placed:       l.placed,
		Attempts:     l.attempts(),
		InitialPrice: l.initial,
		FinalPrice:   l.price,
		Order:        l.order,
		Err:          l.lastErr,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
