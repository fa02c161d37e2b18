package poller_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/ecodanctl/internal/ecodan"
	"codeberg.org/mutker/ecodanctl/internal/energy"
	"codeberg.org/mutker/ecodanctl/internal/errors"
	"codeberg.org/mutker/ecodanctl/internal/poller"
	"codeberg.org/mutker/ecodanctl/internal/sink"
	"codeberg.org/mutker/ecodanctl/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	mu      sync.Mutex
	batches [][]sink.Point
	err     error
}

func (s *captureSink) Write(_ context.Context, points []sink.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, points)
	return s.err
}

func (s *captureSink) Close() error { return nil }

func (s *captureSink) last() []sink.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.batches) == 0 {
		return nil
	}
	return s.batches[len(s.batches)-1]
}

// flakyStore fails every operation on one stream.
type flakyStore struct {
	energy.Store
	stream string
}

func (s flakyStore) Get(ctx context.Context, stream string) (energy.State, error) {
	if stream == s.stream {
		return energy.State{}, fmt.Errorf("database is locked")
	}
	return s.Store.Get(ctx, stream)
}

type fixture struct {
	sim    *ecodan.Simulator
	repo   energy.Repository
	sink   *captureSink
	poller *poller.Poller
}

var pollTime = time.Date(2023, 9, 1, 12, 0, 30, 250_000_000, time.Local)

func newFixture(t *testing.T, wrap func(energy.Store) energy.Store) *fixture {
	t.Helper()

	repo, err := state.Open(state.Config{
		Driver: state.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "state.db"),
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	var store energy.Store = repo
	if wrap != nil {
		store = wrap(repo)
	}

	sim := ecodan.NewSimulator()
	out := &captureSink{}
	p := poller.New(
		ecodan.NewDevice(sim, nil),
		energy.NewReconciler(store),
		out,
		poller.WithClock(func() time.Time { return pollTime }),
	)

	return &fixture{sim: sim, repo: repo, sink: out, poller: p}
}

func byMeasurement(points []sink.Point) map[string]sink.Point {
	m := make(map[string]sink.Point, len(points))
	for _, p := range points {
		m[p.Measurement] = p
	}
	return m
}

func TestCycleWithUnseenStreams(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	report, err := f.poller.Cycle(ctx)
	require.NoError(t, err)

	points := f.sink.last()
	require.Len(t, points, 18)
	assert.Equal(t, 18, report.Points)

	got := byMeasurement(points)
	for _, name := range []string{
		"ecodan2_tank_set_temp", "ecodan2_tank_temp", "ecodan2_house_set_temp", "ecodan2_house_temp",
		"ecodan2_outdoor_temp", "ecodan2_pump_freq", "ecodan2_flow", "ecodan2_t_flow", "ecodan2_t_return",
		"ecodan2_thermal_output_power",
		"ecodan2_operating_mode", "ecodan2_heat_source", "ecodan2_defrost_status", "ecodan2_dhw_enabled",
		"ecodan2_nrg_cons_house", "ecodan2_nrg_cons_tank", "ecodan2_nrg_prod_house", "ecodan2_nrg_prod_tank",
	} {
		assert.Contains(t, got, name)
	}

	tank := got["ecodan2_tank_temp"]
	assert.Equal(t, 42.0, tank.Fields["value"])
	assert.Equal(t, "°C", tank.Tags["unit"])
	assert.Equal(t, pollTime.Truncate(time.Second).UnixNano(), tank.Time)

	mode := got["ecodan2_operating_mode"]
	assert.Equal(t, 0, mode.Fields["value"])
	assert.Equal(t, "Stop", mode.Tags["description"])

	// (50 - 45) * 19/60 * 4.2 * 1000
	assert.InDelta(t, 6650.0, got["ecodan2_thermal_output_power"].Fields["value"], 1e-6)
	assert.Equal(t, "W", got["ecodan2_thermal_output_power"].Tags["unit"])

	cons := got["ecodan2_nrg_cons_tank"]
	assert.InDelta(t, 3.26, cons.Fields["value"], 1e-9)
	assert.Equal(t, "kWh", cons.Tags["unit"])

	states, err := f.repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, states, 4)
	for _, st := range states {
		assert.Equal(t, energy.Date{Year: 2023, Month: time.September, Day: 1}, st.LastDate)
	}

	for _, e := range report.Energy {
		assert.True(t, e.Accepted, e.Stream)
		assert.Equal(t, energy.ReasonFirstSeen, e.Reason)
	}
}

func TestRepeatedCycleEmitsNoEnergy(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.poller.Cycle(ctx)
	require.NoError(t, err)
	report, err := f.poller.Cycle(ctx)
	require.NoError(t, err)

	assert.Len(t, f.sink.last(), 14)
	for _, e := range report.Energy {
		assert.False(t, e.Accepted)
		assert.Equal(t, energy.ReasonUnchanged, e.Reason)
	}

	// counter grows
	f.sim.Set(287, 40)
	_, err = f.poller.Cycle(ctx)
	require.NoError(t, err)

	got := byMeasurement(f.sink.last())
	assert.Len(t, got, 15)
	assert.InDelta(t, 3.4, got["ecodan2_nrg_cons_tank"].Fields["value"], 1e-9)
}

func TestEnergyPointUsesSnapshotDate(t *testing.T) {
	f := newFixture(t, nil)

	// the controller still reports yesterday's counters shortly after midnight
	f.sim.Set(281, 31)
	f.sim.Set(280, 8)

	_, err := f.poller.Cycle(context.Background())
	require.NoError(t, err)

	got := byMeasurement(f.sink.last())
	want := time.Date(2023, 8, 31, 12, 0, 30, 0, time.Local)
	assert.Equal(t, want.UnixNano(), got["ecodan2_nrg_cons_house"].Time)
	assert.Equal(t, pollTime.Truncate(time.Second).UnixNano(), got["ecodan2_tank_temp"].Time)
}

func TestTransportErrorAbortsCycle(t *testing.T) {
	f := newFixture(t, nil)
	f.sim.Fail(297, fmt.Errorf("crc mismatch"))

	report, err := f.poller.Cycle(context.Background())
	require.Error(t, err)
	assert.Nil(t, report)
	assert.True(t, errors.HasCode(err, poller.ErrCycleAborted))
	assert.True(t, errors.HasCode(err, ecodan.ErrTransport))

	assert.Empty(t, f.sink.batches)
	states, err := f.repo.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, states)

	_, err = f.poller.Latest()
	assert.True(t, errors.HasCode(err, poller.ErrNoReport))
}

func TestMalformedEnergyDateAbortsCycle(t *testing.T) {
	f := newFixture(t, nil)
	f.sim.Set(290, 0)

	_, err := f.poller.Cycle(context.Background())
	assert.True(t, errors.HasCode(err, ecodan.ErrMalformed))
	assert.Empty(t, f.sink.batches)
}

func TestStoreErrorSkipsOnlyThatStream(t *testing.T) {
	f := newFixture(t, func(s energy.Store) energy.Store {
		return flakyStore{Store: s, stream: "ecodan2_nrg_prod_house"}
	})

	report, err := f.poller.Cycle(context.Background())
	require.NoError(t, err)

	got := byMeasurement(f.sink.last())
	assert.Len(t, got, 17)
	assert.NotContains(t, got, "ecodan2_nrg_prod_house")
	assert.Contains(t, got, "ecodan2_nrg_prod_tank")

	var failed int
	for _, e := range report.Energy {
		if e.Error != "" {
			failed++
			assert.Equal(t, "ecodan2_nrg_prod_house", e.Stream)
		}
	}
	assert.Equal(t, 1, failed)
}

func TestSinkErrorDoesNotFailCycle(t *testing.T) {
	f := newFixture(t, nil)
	f.sink.err = fmt.Errorf("influx unreachable")

	report, err := f.poller.Cycle(context.Background())
	require.NoError(t, err)
	assert.Contains(t, report.SinkError, "influx unreachable")

	// state is kept, so the next cycle does not resend the counters
	states, err := f.repo.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, states, 4)

	latest, err := f.poller.Latest()
	require.NoError(t, err)
	assert.Equal(t, report.CycleID, latest.CycleID)
}

func TestNoFlowOmitsPower(t *testing.T) {
	f := newFixture(t, nil)
	f.sim.Set(299, 0)

	report, err := f.poller.Cycle(context.Background())
	require.NoError(t, err)

	got := byMeasurement(f.sink.last())
	assert.NotContains(t, got, "ecodan2_thermal_output_power")
	assert.NotContains(t, report.Measurements, "ecodan2_thermal_output_power")
	assert.Len(t, got, 17)
}

func TestCustomPrefix(t *testing.T) {
	repo, err := state.Open(state.Config{Driver: state.DriverSQLite, Path: filepath.Join(t.TempDir(), "s.db")}, nil)
	require.NoError(t, err)
	defer repo.Close()

	out := &captureSink{}
	p := poller.New(ecodan.NewDevice(ecodan.NewSimulator(), nil), energy.NewReconciler(repo), out,
		poller.WithPrefix("hp"))

	_, err = p.Cycle(context.Background())
	require.NoError(t, err)
	assert.Contains(t, byMeasurement(out.last()), "hp_nrg_cons_tank")
}
