package db

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"short_bot/models"
)

func openTemp(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "data", "runs.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournal_RecordRun(t *testing.T) {
	j := openTemp(t)
	started := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

	outcomes := []models.OrderOutcome{
		{
			Symbol:     "ETHUSDT",
			Status:     models.OutcomeOpenedProtected,
			Quantity:   1,
			EntryPrice: 100,
			Entry:      &models.OrderRef{Symbol: "ETHUSDT", OrderID: 11},
			StopLoss:   models.LegResult{Kind: models.ConditionalStop, Placed: true, Attempts: 1, FinalPrice: 105},
			TakeProfit: models.LegResult{Kind: models.ConditionalTakeProfit, Placed: true, Attempts: 2, FinalPrice: 98.5},
		},
		{Symbol: "DEADUSDT", Status: models.OutcomeSkippedInvalidPrice},
		{
			Symbol:   "SOLUSDT",
			Status:   models.OutcomeOpenedUnprotectedRollbackFailed,
			Quantity: 2,
			Entry:    &models.OrderRef{Symbol: "SOLUSDT", OrderID: 12},
			Err:      errors.New("rollback failed"),
		},
	}

	if err := j.RecordRun("run-1", started, outcomes, nil); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}

	run, err := j.Run("run-1")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if run.Aborted || run.Symbols != 3 || run.Protected != 1 || run.Critical != 1 {
		t.Errorf("unexpected summary: %+v", run)
	}
	if !run.StartedAt.Equal(started) {
		t.Errorf("started_at = %v, want %v", run.StartedAt, started)
	}

	statuses, err := j.OutcomeStatuses("run-1")
	if err != nil {
		t.Fatalf("OutcomeStatuses failed: %v", err)
	}
	want := [][2]string{
		{"ETHUSDT", string(models.OutcomeOpenedProtected)},
		{"DEADUSDT", string(models.OutcomeSkippedInvalidPrice)},
		{"SOLUSDT", string(models.OutcomeOpenedUnprotectedRollbackFailed)},
	}
	if len(statuses) != len(want) {
		t.Fatalf("got %d outcomes, want %d", len(statuses), len(want))
	}
	for i := range want {
		if statuses[i] != want[i] {
			t.Errorf("outcome %d = %v, want %v", i, statuses[i], want[i])
		}
	}

	var slPrice float64
	if err := j.DB.QueryRow(`SELECT stop_loss_price FROM outcomes WHERE symbol = 'ETHUSDT'`).Scan(&slPrice); err != nil || slPrice != 105 {
		t.Errorf("stop_loss_price = %v (%v), want 105", slPrice, err)
	}
}

func TestJournal_AbortedRun(t *testing.T) {
	j := openTemp(t)
	if err := j.RecordRun("run-2", time.Now(), nil, errors.New("preflight abort: balance too low")); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}
	run, err := j.Run("run-2")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !run.Aborted || run.Reason != "preflight abort: balance too low" || run.Symbols != 0 {
		t.Errorf("unexpected summary: %+v", run)
	}
}

func TestJournal_DuplicateRunRollsBack(t *testing.T) {
	j := openTemp(t)
	outcomes := []models.OrderOutcome{{Symbol: "ETHUSDT", Status: models.OutcomeRejected}}
	if err := j.RecordRun("dup", time.Now(), outcomes, nil); err != nil {
		t.Fatalf("first RecordRun failed: %v", err)
	}
	if err := j.RecordRun("dup", time.Now(), outcomes, nil); err == nil {
		t.Fatal("expected duplicate run id to fail")
	}
	statuses, err := j.OutcomeStatuses("dup")
	if err != nil {
		t.Fatal(err)
	}
	if len(statuses) != 1 {
		t.Errorf("got %d outcomes after failed insert, want 1", len(statuses))
	}
}

func TestJournal_UnknownRun(t *testing.T) {
	j := openTemp(t)
	if _, err := j.Run("nope"); err == nil {
		t.Fatal("expected an error for an unknown run")
	}
}
