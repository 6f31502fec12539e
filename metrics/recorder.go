// Package metrics counts execution outcomes with Prometheus collectors.
//
// The engine has no listener, so a run ends by writing the registry to a
// node_exporter textfile instead of serving /metrics:
//   - shortbot_outcomes_total{status}             outcomes per terminal status
//   - shortbot_protective_attempts_total{leg,result} every stop-loss/take-profit submission
//   - shortbot_rollbacks_total{result}            rollback market orders (ok|failed)
//   - shortbot_available_balance                  balance seen during preflight
//   - shortbot_runs_total{result}                 runs (completed|aborted)
//   - shortbot_run_duration_seconds               duration of the last run
package metrics

import (
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"short_bot/models"
)

// Recorder owns its registry so tests and repeated runs never collide on the
// global default registerer. A nil *Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	outcomes    *prometheus.CounterVec
	attempts    *prometheus.CounterVec
	rollbacks   *prometheus.CounterVec
	runs        *prometheus.CounterVec
	balance     prometheus.Gauge
	runDuration prometheus.Gauge
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shortbot_outcomes_total",
				Help: "Symbol outcomes by terminal status",
			},
			[]string{"status"},
		),
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shortbot_protective_attempts_total",
				Help: "Protective order submissions by leg and result",
			},
			[]string{"leg", "result"}, // result: placed|trigger_conflict|rejected
		),
		rollbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shortbot_rollbacks_total",
				Help: "Rollback market orders by result",
			},
			[]string{"result"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shortbot_runs_total",
				Help: "Basket runs by result",
			},
			[]string{"result"},
		),
		balance: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shortbot_available_balance",
			Help: "Available futures balance read during preflight",
		}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shortbot_run_duration_seconds",
			Help: "Wall time of the most recent run",
		}),
	}
	r.registry.MustRegister(r.outcomes, r.attempts, r.rollbacks, r.runs, r.balance, r.runDuration)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) ObserveOutcome(status models.OutcomeStatus) {
	if r == nil {
		return
	}
	r.outcomes.WithLabelValues(string(status)).Inc()
}

func (r *Recorder) ObserveLegAttempt(leg string, err error) {
	if r == nil {
		return
	}
	result := "placed"
	switch {
	case err == nil:
	case models.KindOf(err) == models.KindTriggerConflict:
		result = "trigger_conflict"
	default:
		result = "rejected"
	}
	r.attempts.WithLabelValues(leg, result).Inc()
}

func (r *Recorder) ObserveRollback(ok bool) {
	if r == nil {
		return
	}
	if ok {
		r.rollbacks.WithLabelValues("ok").Inc()
		return
	}
	r.rollbacks.WithLabelValues("failed").Inc()
}

func (r *Recorder) SetAvailableBalance(v float64) {
	if r == nil {
		return
	}
	r.balance.Set(v)
}

func (r *Recorder) ObserveRun(d time.Duration, aborted bool) {
	if r == nil {
		return
	}
	result := "completed"
	if aborted {
		result = "aborted"
	}
	r.runs.WithLabelValues(result).Inc()
	r.runDuration.Set(d.Seconds())
}

// WriteTextfile writes the registry in text exposition format. An empty
// path is a no-op.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
