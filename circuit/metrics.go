package circuit

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects scheduler and edit history figures. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	ticks        prometheus.Counter
	overruns     prometheus.Counter
	evalErrors   prometheus.Counter
	tickDuration prometheus.Histogram
	historySize  prometheus.Gauge
}

// NewMetrics creates the metrics and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ticks: f.NewCounter(prometheus.CounterOpts{
			Name: "gatesim_ticks_total",
			Help: "Total number of simulation ticks run",
		}),
		overruns: f.NewCounter(prometheus.CounterOpts{
			Name: "gatesim_tick_overruns_total",
			Help: "Ticks whose evaluation took longer than the tick interval",
		}),
		evalErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "gatesim_eval_errors_total",
			Help: "Plot evaluations aborted by an error",
		}),
		tickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "gatesim_tick_duration_seconds",
			Help:    "Time spent evaluating one tick, lock held",
			Buckets: []float64{0.00001, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		historySize: f.NewGauge(prometheus.GaugeOpts{
			Name: "gatesim_history_size",
			Help: "Number of actions in the last updated undo history",
		}),
	}
}

func (m *Metrics) observeTick(elapsed, budget time.Duration, errs int) {
	if m == nil {
		return
	}
	m.ticks.Inc()
	m.tickDuration.Observe(elapsed.Seconds())
	if elapsed > budget {
		m.overruns.Inc()
	}
	if errs > 0 {
		m.evalErrors.Add(float64(errs))
	}
}

func (m *Metrics) observeHistory(n int) {
	if m == nil {
		return
	}
	m.historySize.Set(float64(n))
}
