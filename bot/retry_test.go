package bot

import (
	"errors"
	"testing"

	"short_bot/models"
)

func TestRetryPolicy_Next(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, ShiftBasePercent: 0.5, ShiftStepPercent: 0.5}

	cases := []struct {
		name   string
		failed int
		err    error
		want   retryAction
	}{
		{"success", 1, nil, actionDone},
		{"trigger conflict shifts", 1, triggerErr(), actionShiftPrice},
		{"other error waits", 2, transientErr("timeout"), actionWait},
		{"plain error waits", 1, errors.New("connection reset"), actionWait},
		{"cap reached", 3, triggerErr(), actionExhausted},
		{"cap reached on transient", 3, transientErr("timeout"), actionExhausted},
	}
	for _, c := range cases {
		if got := p.Next(c.failed, c.err); got != c.want {
			t.Errorf("%s: Next(%d) = %s, want %s", c.name, c.failed, got, c.want)
		}
	}
}

func TestRetryPolicy_ShiftPercentGrows(t *testing.T) {
	p := DefaultRetryPolicy()
	want := []float64{1.0, 1.5, 2.0}
	for i, w := range want {
		if got := p.ShiftPercent(i + 1); got != w {
			t.Errorf("ShiftPercent(%d) = %v, want %v", i+1, got, w)
		}
	}
}

func TestLegAttempt_StateMachine(t *testing.T) {
	leg := newLegAttempt(models.ConditionalTakeProfit, DefaultRetryPolicy(), 99)

	if a := leg.record(models.OrderRef{}, triggerErr()); a != actionShiftPrice || leg.finished {
		t.Fatalf("first failure: action=%s finished=%v", a, leg.finished)
	}
	leg.price = 98.5
	if a := leg.record(models.OrderRef{OrderID: 7}, nil); a != actionDone {
		t.Fatalf("success: action=%s", a)
	}

	res := leg.result()
	if !res.Placed || res.Attempts != 2 || res.InitialPrice != 99 || res.FinalPrice != 98.5 || res.Order.OrderID != 7 {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.Err != nil {
		t.Errorf("placed leg should not carry an error, got %v", res.Err)
	}
}

func TestLegAttempt_Exhausts(t *testing.T) {
	leg := newLegAttempt(models.ConditionalStop, RetryPolicy{MaxAttempts: 2}, 105)
	leg.record(models.OrderRef{}, transientErr("a"))
	if a := leg.record(models.OrderRef{}, transientErr("b")); a != actionExhausted {
		t.Fatalf("action = %s, want exhausted", a)
	}
	res := leg.result()
	if res.Placed || res.Attempts != 2 || res.Err == nil {
		t.Errorf("unexpected result: %+v", res)
	}
}
