package main

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/signalsfoundry/orbitlink-sim/core"
	"github.com/signalsfoundry/orbitlink-sim/internal/config"
	"github.com/signalsfoundry/orbitlink-sim/internal/observability"
	"github.com/signalsfoundry/orbitlink-sim/internal/stream"
	"github.com/signalsfoundry/orbitlink-sim/kb"
	"github.com/signalsfoundry/orbitlink-sim/model"
)

type recordingBroadcaster struct {
	msgs [][]byte
}

func (b *recordingBroadcaster) Broadcast(msg []byte) {
	b.msgs = append(b.msgs, msg)
}

func testConfig() config.Config {
	return config.Config{
		Speed:            1,
		OrbitRadius:      core.DefaultOrbitRadius,
		PlanetSpinRate:   core.PlanetSpinRate,
		HorizonThreshold: core.DefaultHorizonThreshold,
		CoverageWindow:   core.DefaultCoverageWindow,
		BroadcastEvery:   3,
		Satellites:       config.DefaultSatellites(),
		Stations:         config.DefaultStations(),
	}
}

func newTestRunner(t *testing.T) (*runner, chan stream.Command, *recordingBroadcaster) {
	t.Helper()
	cfg := testConfig()
	store := kb.NewKnowledgeBase()
	sats, err := cfg.SatelliteDefinitions()
	if err != nil {
		t.Fatalf("SatelliteDefinitions error: %v", err)
	}
	for _, s := range sats {
		if err := store.AddSatellite(s); err != nil {
			t.Fatalf("AddSatellite error: %v", err)
		}
	}
	for _, st := range cfg.GroundStations() {
		if err := store.AddStation(st); err != nil {
			t.Fatalf("AddStation error: %v", err)
		}
	}
	sim := core.NewSimulation(store, cfg.SimulationConfig())

	cmds := make(chan stream.Command, 8)
	out := &recordingBroadcaster{}
	r := newRunner(sim, cfg, nil)
	r.commands = cmds
	r.out = out
	return r, cmds, out
}

func ptr[T any](v T) *T { return &v }

func TestRunnerAppliesCommandsBeforeStep(t *testing.T) {
	r, cmds, _ := newTestRunner(t)

	cmds <- stream.Command{Type: stream.CmdPause, Paused: ptr(true)}
	r.onFrame(0.5)
	if got := r.sim.Time(); got != 0 {
		t.Fatalf("t after paused frame = %v, want 0", got)
	}

	cmds <- stream.Command{Type: stream.CmdTogglePause}
	cmds <- stream.Command{Type: stream.CmdSpeed, Value: ptr(2.0)}
	r.onFrame(0.5)
	if got := r.sim.Time(); got != 1.0 {
		t.Fatalf("t = %v, want 1.0 (0.5s at 2x)", got)
	}
}

func TestRunnerClampsControls(t *testing.T) {
	r, cmds, _ := newTestRunner(t)

	cmds <- stream.Command{Type: stream.CmdSpeed, Value: ptr(50.0)}
	cmds <- stream.Command{Type: stream.CmdOrbitRadius, Value: ptr(0.5)}
	r.onFrame(0.1)

	if r.speed != config.MaxSpeed {
		t.Fatalf("speed = %v, want %v", r.speed, config.MaxSpeed)
	}
	if got := r.sim.OrbitRadius(); got != config.MinOrbitRadius {
		t.Fatalf("orbit radius = %v, want %v", got, config.MinOrbitRadius)
	}
}

func TestRunnerToggleAndReset(t *testing.T) {
	r, cmds, _ := newTestRunner(t)

	cmds <- stream.Command{Type: stream.CmdToggleState, Satellite: "sat2"}
	cmds <- stream.Command{Type: stream.CmdToggleState, Satellite: "sat2"}
	r.onFrame(0.1)
	if got := r.sim.KB.GetSatellite("sat2").State; got != model.StateFailed {
		t.Fatalf("sat2 state = %v, want FAILED", got)
	}

	cmds <- stream.Command{Type: stream.CmdReset}
	r.drainCommands()
	if got := r.sim.KB.GetSatellite("sat2").State; got != model.StateActive {
		t.Fatalf("sat2 state after reset = %v, want ACTIVE", got)
	}
	if r.sim.Time() != 0 {
		t.Fatalf("t after reset = %v, want 0", r.sim.Time())
	}
}

func TestRunnerCountsRejectedCommands(t *testing.T) {
	reg := prometheus.NewRegistry()
	sm, err := observability.NewStreamCollector(reg)
	if err != nil {
		t.Fatalf("NewStreamCollector error: %v", err)
	}
	r, cmds, _ := newTestRunner(t)
	r.streamMetrics = sm

	cmds <- stream.Command{Type: stream.CmdToggleState, Satellite: "ghost"}
	cmds <- stream.Command{Type: stream.CmdReset}
	r.drainCommands()

	if got := testutil.ToFloat64(sm.Commands.WithLabelValues("toggle_state", "rejected")); got != 1 {
		t.Fatalf("rejected toggle_state = %v, want 1", got)
	}
	if got := testutil.ToFloat64(sm.Commands.WithLabelValues("reset", "applied")); got != 1 {
		t.Fatalf("applied reset = %v, want 1", got)
	}
}

func TestRunnerBroadcastsEveryNthStep(t *testing.T) {
	r, _, out := newTestRunner(t)
	r.dirty = false

	for range 6 {
		r.onFrame(0.016)
	}
	if len(out.msgs) != 2 {
		t.Fatalf("broadcasts = %d, want 2", len(out.msgs))
	}

	var decoded map[string]any
	if err := json.Unmarshal(out.msgs[1], &decoded); err != nil {
		t.Fatalf("broadcast is not JSON: %v", err)
	}
	if decoded["step"] != float64(6) {
		t.Fatalf("step = %v, want 6", decoded["step"])
	}
}

func TestRunnerBroadcastsAfterCommand(t *testing.T) {
	r, cmds, out := newTestRunner(t)
	r.dirty = false

	r.onFrame(0.016)
	if len(out.msgs) != 0 {
		t.Fatalf("broadcasts = %d, want 0", len(out.msgs))
	}
	cmds <- stream.Command{Type: stream.CmdTogglePause}
	r.onFrame(0.016)
	if len(out.msgs) != 1 {
		t.Fatalf("broadcasts after command = %d, want 1", len(out.msgs))
	}
}

func TestRunnerLogsAtInterval(t *testing.T) {
	r, _, _ := newTestRunner(t)
	now := time.Unix(0, 0)
	r.now = func() time.Time { return now }
	r.logEvery = time.Second

	r.onFrame(0.1)
	first := r.lastLog
	now = now.Add(500 * time.Millisecond)
	r.onFrame(0.1)
	if !r.lastLog.Equal(first) {
		t.Fatalf("logged again before interval elapsed")
	}
	now = now.Add(time.Second)
	r.onFrame(0.1)
	if !r.lastLog.Equal(now) {
		t.Fatalf("lastLog = %v, want %v", r.lastLog, now)
	}
}
