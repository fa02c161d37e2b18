package poller

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/ecodanctl/internal/ecodan"
	"codeberg.org/mutker/ecodanctl/internal/energy"
	"codeberg.org/mutker/ecodanctl/internal/errors"
	"codeberg.org/mutker/ecodanctl/internal/logger"
	"codeberg.org/mutker/ecodanctl/internal/sink"
	"codeberg.org/mutker/ecodanctl/internal/telemetry"
	"github.com/google/uuid"
)

// Snapshot holds everything read from the device in one cycle, stamped with
// a single wall-clock time.
type Snapshot struct {
	Time         time.Time
	Measurements map[ecodan.Quantity]ecodan.Measurement
	Statuses     map[ecodan.StatusKind]ecodan.CodedStatus
	Energy       map[ecodan.Stream]ecodan.EnergySnapshot
}

// EnergyResult is the reconciliation outcome of one stream in a cycle.
type EnergyResult struct {
	Stream   string         `json:"stream"`
	Reading  energy.Reading `json:"reading"`
	Accepted bool           `json:"accepted"`
	Reason   energy.Reason  `json:"reason,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// Report summarizes a completed cycle.
type Report struct {
	CycleID         string                        `json:"cycle_id"`
	Time            time.Time                     `json:"time"`
	DurationSeconds float64                       `json:"duration_seconds"`
	Measurements    map[string]ecodan.Measurement `json:"measurements"`
	Statuses        map[string]ecodan.CodedStatus `json:"statuses"`
	Energy          []EnergyResult                `json:"energy"`
	Points          int                           `json:"points"`
	SinkError       string                        `json:"sink_error,omitempty"`
}

// Poller runs acquisition cycles: read the device, derive thermal power,
// reconcile energy counters and hand one batch to the sink.
type Poller struct {
	device     ecodan.Reader
	reconciler *energy.Reconciler
	sink       sink.Writer
	recorder   telemetry.Recorder
	names      Names
	now        func() time.Time
	logger     logger.Logger

	mu     sync.RWMutex
	latest *Report
}

type Option func(*Poller)

func WithClock(now func() time.Time) Option {
	return func(p *Poller) { p.now = now }
}

func WithRecorder(r telemetry.Recorder) Option {
	return func(p *Poller) { p.recorder = r }
}

// WithPrefix sets the measurement name prefix (default "ecodan2").
func WithPrefix(prefix string) Option {
	return func(p *Poller) { p.names = Names{Prefix: prefix} }
}

func WithLogger(log logger.Logger) Option {
	return func(p *Poller) { p.logger = log }
}

func New(device ecodan.Reader, reconciler *energy.Reconciler, w sink.Writer, opts ...Option) *Poller {
	p := &Poller{
		device:     device,
		reconciler: reconciler,
		sink:       w,
		recorder:   telemetry.Nop{},
		names:      Names{Prefix: DefaultPrefix},
		now:        time.Now,
		logger:     logger.With("poller"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Snapshot reads every value from the device. The first failing read aborts
// the whole snapshot.
func (p *Poller) Snapshot(ctx context.Context) (*Snapshot, error) {
	errFactory := errors.New()

	s := &Snapshot{
		Time:         p.now(),
		Measurements: make(map[ecodan.Quantity]ecodan.Measurement, len(ecodan.Quantities)),
		Statuses:     make(map[ecodan.StatusKind]ecodan.CodedStatus, len(ecodan.StatusKinds)),
		Energy:       make(map[ecodan.Stream]ecodan.EnergySnapshot, len(ecodan.Streams)),
	}

	for _, q := range ecodan.Quantities {
		m, err := p.device.Read(ctx, q)
		if err != nil {
			return nil, errFactory.Wrap(ErrCycleAborted, err)
		}
		s.Measurements[q] = m
	}

	for _, k := range ecodan.StatusKinds {
		st, err := p.device.Status(ctx, k)
		if err != nil {
			return nil, errFactory.Wrap(ErrCycleAborted, err)
		}
		s.Statuses[k] = st
	}

	for _, stream := range ecodan.Streams {
		e, err := p.device.Energy(ctx, stream)
		if err != nil {
			return nil, errFactory.Wrap(ErrCycleAborted, err)
		}
		s.Energy[stream] = e
	}

	return s, nil
}

// Cycle performs one poll. A device error aborts the cycle before any state
// is touched. Store errors drop only the affected stream. A sink error is
// recorded in the Report but does not fail the cycle.
func (p *Poller) Cycle(ctx context.Context) (*Report, error) {
	id := uuid.NewString()
	log := p.logger
	started := time.Now()

	snap, err := p.Snapshot(ctx)
	if err != nil {
		p.recorder.CycleFinished(telemetry.CycleAborted, started, time.Since(started))
		log.Error().
			Str("cycle_id", id).
			Err(err).
			Msg("Poll cycle aborted")
		return nil, err
	}

	// points carry whole seconds
	ts := snap.Time.Truncate(time.Second)

	report := &Report{
		CycleID:      id,
		Time:         ts,
		Measurements: make(map[string]ecodan.Measurement, len(snap.Measurements)+1),
		Statuses:     make(map[string]ecodan.CodedStatus, len(snap.Statuses)),
	}

	points := make([]sink.Point, 0, len(snap.Measurements)+len(snap.Statuses)+len(snap.Energy)+1)

	for _, q := range ecodan.Quantities {
		m := snap.Measurements[q]
		name := p.names.Quantity(q)
		report.Measurements[name] = m
		points = append(points, measurementPoint(ts, name, m))
	}

	if power, ok := ThermalPower(
		snap.Measurements[ecodan.Flow],
		snap.Measurements[ecodan.SupplyTemp],
		snap.Measurements[ecodan.ReturnTemp],
	); ok {
		name := p.names.Power()
		report.Measurements[name] = power
		points = append(points, measurementPoint(ts, name, power))
	}

	for _, k := range ecodan.StatusKinds {
		st := snap.Statuses[k]
		name := p.names.Status(k)
		report.Statuses[name] = st
		points = append(points, sink.Point{
			Time:        ts.UnixNano(),
			Measurement: name,
			Fields:      map[string]interface{}{"value": st.Code},
			Tags:        map[string]string{"description": st.Description},
		})
	}

	for _, stream := range ecodan.Streams {
		e := snap.Energy[stream]
		name := p.names.Stream(stream)
		reading := energy.Reading{Date: e.Date, Value: e.Value}

		result := EnergyResult{Stream: name, Reading: reading}
		d, err := p.reconciler.Reconcile(ctx, name, reading)
		if err != nil {
			result.Error = err.Error()
			report.Energy = append(report.Energy, result)
			p.recorder.EnergyDecision(name, telemetry.DecisionError)
			log.Warn().
				Str("cycle_id", id).
				Str("stream", name).
				Err(err).
				Msg("Energy stream skipped")
			continue
		}

		result.Accepted = d.Accepted
		result.Reason = d.Reason
		report.Energy = append(report.Energy, result)
		p.recorder.EnergyDecision(name, string(d.Reason))

		if d.Accepted {
			points = append(points, measurementPoint(e.Date.At(ts), name,
				ecodan.Measurement{Value: e.Value, Unit: e.Unit}))
		}
	}

	report.Points = len(points)

	if err := p.sink.Write(ctx, points); err != nil {
		report.SinkError = err.Error()
		p.recorder.SinkError()
		log.Error().
			Str("cycle_id", id).
			Int("points", len(points)).
			Err(err).
			Msg("Failed to write points")
	}

	duration := time.Since(started)
	report.DurationSeconds = duration.Seconds()
	p.recorder.CycleFinished(telemetry.CycleOK, snap.Time, duration)

	p.mu.Lock()
	p.latest = report
	p.mu.Unlock()

	log.Debug().
		Str("cycle_id", id).
		Int("points", report.Points).
		Dur("duration", duration).
		Msg("Poll cycle completed")

	return report, nil
}

// Run is Cycle for callers that only care about completion; failures are
// already logged and counted.
func (p *Poller) Run(ctx context.Context) {
	_, _ = p.Cycle(ctx)
}

// Latest returns the report of the most recent successful cycle.
func (p *Poller) Latest() (*Report, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.latest == nil {
		return nil, errors.New().New(ErrNoReport)
	}
	return p.latest, nil
}

func measurementPoint(t time.Time, name string, m ecodan.Measurement) sink.Point {
	return sink.Point{
		Time:        t.UnixNano(),
		Measurement: name,
		Fields:      map[string]interface{}{"value": m.Value},
		Tags:        map[string]string{"unit": m.Unit},
	}
}
