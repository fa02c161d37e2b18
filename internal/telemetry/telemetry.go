package telemetry

import (
	"net/http"
	"time"

	"codeberg.org/mutker/ecodanctl/internal/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is a Recorder backed by a private Prometheus registry.
type Metrics struct {
	registry       *prometheus.Registry
	cycles         *prometheus.CounterVec
	cycleDuration  prometheus.Histogram
	lastCycle      prometheus.Gauge
	energyDecision *prometheus.CounterVec
	sinkErrors     prometheus.Counter
	targetWrites   *prometheus.CounterVec
}

func New(cfg Config) (*Metrics, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	ns := cfg.Namespace
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "cycles_total",
			Help:      "Poll cycles by result.",
		}, []string{"result"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of poll cycles.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
		}),
		lastCycle: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Unix time of the last successful poll cycle.",
		}),
		energyDecision: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "energy_decisions_total",
			Help:      "Energy counter reconciliation decisions by stream.",
		}, []string{"stream", "decision"}),
		sinkErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "sink_errors_total",
			Help:      "Failed batch writes to the time-series sink.",
		}),
		targetWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "target_writes_total",
			Help:      "Setpoint writes by target and result.",
		}, []string{"target", "result"}),
	}

	for _, c := range []prometheus.Collector{
		m.cycles,
		m.cycleDuration,
		m.lastCycle,
		m.energyDecision,
		m.sinkErrors,
		m.targetWrites,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := m.registry.Register(c); err != nil {
			return nil, errFactory.Wrap(ErrRegisterFailed, err)
		}
	}

	m.initLabels(cfg)

	return m, nil
}

// initLabels creates every known series so scrapes see them before the
// first cycle or setpoint write.
func (m *Metrics) initLabels(cfg Config) {
	for _, r := range []CycleResult{CycleOK, CycleAborted} {
		m.cycles.WithLabelValues(string(r))
	}
	for _, target := range cfg.Targets {
		for _, r := range []WriteResult{WriteOK, WriteInvalid, WriteTransport} {
			m.targetWrites.WithLabelValues(target, string(r))
		}
	}
	for _, stream := range cfg.Streams {
		for _, d := range Decisions {
			m.energyDecision.WithLabelValues(stream, d)
		}
	}
}

func (m *Metrics) CycleFinished(result CycleResult, started time.Time, duration time.Duration) {
	m.cycles.WithLabelValues(string(result)).Inc()
	m.cycleDuration.Observe(duration.Seconds())
	if result == CycleOK {
		m.lastCycle.Set(float64(started.Unix()))
	}
}

func (m *Metrics) EnergyDecision(stream, decision string) {
	m.energyDecision.WithLabelValues(stream, decision).Inc()
}

func (m *Metrics) SinkError() {
	m.sinkErrors.Inc()
}

func (m *Metrics) TargetWrite(target string, result WriteResult) {
	m.targetWrites.WithLabelValues(target, string(result)).Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
