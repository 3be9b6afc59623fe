package observability

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rainbow-me/platform-shutdown/shutdown"
)

const (
	metricsNamespace = "platform"
	metricsSubsystem = "shutdown"
)

// MetricsObserver exposes shutdown progress as Prometheus metrics.
type MetricsObserver struct {
	shutdown.NopObserver

	triggers *prometheus.CounterVec
	state    prometheus.Gauge
	drain    *prometheus.HistogramVec
	teardown *prometheus.HistogramVec
	exitCode prometheus.Gauge
}

var _ shutdown.Observer = (*MetricsObserver)(nil)

// NewMetricsObserver creates the shutdown metrics and registers them with reg.
func NewMetricsObserver(reg prometheus.Registerer) (*MetricsObserver, error) {
	buckets := []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60}
	m := &MetricsObserver{
		triggers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "triggers_total",
			Help:      "Termination events that started the shutdown sequence.",
		}, []string{"event"}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "state",
			Help:      "Current shutdown phase: 0 idle, 1 draining, 2 closing, 3 tearing down, 4 terminated.",
		}),
		drain: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "drain_duration_seconds",
			Help:      "Time from the start of the drain until connections were closed.",
			Buckets:   buckets,
		}, []string{"mode"}),
		teardown: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "teardown_duration_seconds",
			Help:      "Duration of the teardown callback.",
			Buckets:   buckets,
		}, []string{"result"}),
		exitCode: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "exit_code",
			Help:      "Exit code the shutdown sequence terminated with, -1 before termination.",
		}),
	}
	m.exitCode.Set(-1)

	for _, c := range []prometheus.Collector{m.triggers, m.state, m.drain, m.teardown, m.exitCode} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "register shutdown metrics")
		}
	}
	return m, nil
}

func (m *MetricsObserver) Triggered(event string) {
	m.triggers.WithLabelValues(event).Inc()
}

func (m *MetricsObserver) StateChanged(_, to shutdown.State) {
	m.state.Set(float64(to))
}

func (m *MetricsObserver) Drained(forced bool, elapsed time.Duration) {
	mode := "graceful"
	if forced {
		mode = "forced"
	}
	m.drain.WithLabelValues(mode).Observe(elapsed.Seconds())
}

func (m *MetricsObserver) TornDown(err error, elapsed time.Duration) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.teardown.WithLabelValues(result).Observe(elapsed.Seconds())
}

func (m *MetricsObserver) Exited(code int) {
	m.exitCode.Set(float64(code))
}
