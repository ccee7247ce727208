package core

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"

	"github.com/signalsfoundry/orbitlink-sim/internal/logging"
	"github.com/signalsfoundry/orbitlink-sim/kb"
	"github.com/signalsfoundry/orbitlink-sim/model"
)

func newTestSimulation(t *testing.T, sat1State model.SatelliteState) *Simulation {
	t.Helper()
	store := kb.NewKnowledgeBase()
	sats := []*model.SatelliteDefinition{
		{ID: "sat1", Name: "Sat 1", Mode: model.OrbitEquatorial, Phase: 0, BaseRate: 1, State: sat1State},
		{ID: "sat2", Name: "Sat 2", Mode: model.OrbitInclined, Phase: 1, BaseRate: 0.8, Inclination: model.DefaultInclination},
	}
	for _, s := range sats {
		if err := store.AddSatellite(s); err != nil {
			t.Fatalf("AddSatellite error: %v", err)
		}
	}
	if err := store.AddStation(&model.GroundStation{ID: "gs1", Name: "GS", Local: model.Motion{X: PlanetRadius}}); err != nil {
		t.Fatalf("AddStation error: %v", err)
	}
	return NewSimulation(store, DefaultConfig())
}

func TestNewSimulationInitialSnapshot(t *testing.T) {
	sim := newTestSimulation(t, model.StateActive)
	snap := sim.Snapshot()

	if snap.T != 0 || snap.Step != 0 || snap.CoverageSamples != 0 {
		t.Fatalf("initial snapshot = t %v step %d samples %d", snap.T, snap.Step, snap.CoverageSamples)
	}
	s1, ok := snap.Satellite("sat1")
	if !ok {
		t.Fatalf("sat1 missing from snapshot")
	}
	if !vecNear(s1.Position, Vec3{X: DefaultOrbitRadius}) {
		t.Fatalf("sat1 position = %+v, want (2.5,0,0)", s1.Position)
	}
	if !s1.Contact || !snap.NetworkReachable {
		t.Fatalf("sat1 overhead at t=0 should give contact and reachability")
	}
	if _, ok := snap.ISL("sat1", "sat2"); !ok {
		t.Fatalf("ISL sat1-sat2 missing")
	}
}

func TestFailedAtStartIsPlacedOnRing(t *testing.T) {
	sim := newTestSimulation(t, model.StateFailed)
	s1, _ := sim.Snapshot().Satellite("sat1")
	if !vecNear(s1.Position, Vec3{X: DefaultOrbitRadius}) {
		t.Fatalf("FAILED sat1 position = %+v, want (2.5,0,0)", s1.Position)
	}
	if s1.Contact {
		t.Fatalf("FAILED sat1 should not have contact")
	}
}

func TestStepAdvancesTimeAndPlanet(t *testing.T) {
	sim := newTestSimulation(t, model.StateActive)
	snap := sim.Step(1, 2, DefaultOrbitRadius)

	if !scalar.EqualWithinAbs(snap.T, 2, tol) {
		t.Fatalf("t = %v, want 2", snap.T)
	}
	if !scalar.EqualWithinAbs(snap.PlanetRotation, PlanetSpinRate, tol) {
		t.Fatalf("planet rotation = %v, want %v (frame time, unscaled)", snap.PlanetRotation, PlanetSpinRate)
	}
	s1, _ := snap.Satellite("sat1")
	want := Vec3{X: 2.5 * math.Cos(2), Z: 2.5 * math.Sin(2)}
	if !vecNear(s1.Position, want) {
		t.Fatalf("sat1 = %+v, want %+v", s1.Position, want)
	}
	if snap.CoverageSamples != 1 || !scalar.EqualWithinAbs(snap.CoverageSeconds, 1, tol) {
		t.Fatalf("coverage samples %d / %vs, want 1 / 1s of frame time", snap.CoverageSamples, snap.CoverageSeconds)
	}
	gs := snap.Stations[0].Position
	if !vecNear(gs, StationWorldPosition(Vec3{X: PlanetRadius}, PlanetSpinRate)) {
		t.Fatalf("station = %+v not rotated with planet", gs)
	}
}

func TestZeroSpeedStillRecordsCoverage(t *testing.T) {
	sim := newTestSimulation(t, model.StateActive)
	snap := sim.Step(0.5, 0, DefaultOrbitRadius)
	if snap.T != 0 {
		t.Fatalf("t = %v, want 0 at speed 0", snap.T)
	}
	if snap.CoverageSamples != 1 {
		t.Fatalf("coverage samples = %d, want 1", snap.CoverageSamples)
	}
}

func TestPauseFreezesTimeAndCoverage(t *testing.T) {
	sim := newTestSimulation(t, model.StateActive)
	sim.Step(0.1, 1, DefaultOrbitRadius)
	before := sim.Snapshot()

	sim.SetPaused(true)
	snap := sim.Step(0.5, 1, DefaultOrbitRadius)

	if snap.T != before.T {
		t.Fatalf("t moved while paused: %v -> %v", before.T, snap.T)
	}
	if snap.CoverageSamples != before.CoverageSamples {
		t.Fatalf("coverage recorded while paused")
	}
	if !snap.Paused {
		t.Fatalf("snapshot not marked paused")
	}
	if !scalar.EqualWithinAbs(snap.PlanetRotation-before.PlanetRotation, 0.5*PlanetSpinRate, tol) {
		t.Fatalf("planet should keep spinning while paused")
	}
}

func TestFailedPrimaryFreezesCoverage(t *testing.T) {
	sim := newTestSimulation(t, model.StateActive)
	sim.Step(1, 1, DefaultOrbitRadius)
	before := sim.Step(0.5, 1, DefaultOrbitRadius)

	for range 2 {
		if _, err := sim.ToggleSatelliteState("sat1"); err != nil {
			t.Fatalf("ToggleSatelliteState error: %v", err)
		}
	}
	frozen, _ := sim.Step(0.7, 1, DefaultOrbitRadius).Satellite("sat1")
	snap := sim.Step(2.3, 1, DefaultOrbitRadius)

	if snap.CoveragePercent != 0 {
		t.Fatalf("coverage = %v with FAILED primary, want 0", snap.CoveragePercent)
	}
	if snap.CoverageSamples != 2 || snap.CoverageSeconds != before.CoverageSeconds {
		t.Fatalf("coverage history = %d samples / %vs, want frozen at 2 / %vs",
			snap.CoverageSamples, snap.CoverageSeconds, before.CoverageSeconds)
	}
	s1, _ := snap.Satellite("sat1")
	if s1.Position != frozen.Position {
		t.Fatalf("FAILED sat1 moved: %+v -> %+v", frozen.Position, s1.Position)
	}
	if isl, _ := snap.ISL("sat1", "sat2"); isl.Up {
		t.Fatalf("ISL with FAILED sat1 should be down")
	}

	// FAILED -> ACTIVE resumes recording on top of the frozen history.
	if _, err := sim.ToggleSatelliteState("sat1"); err != nil {
		t.Fatalf("ToggleSatelliteState error: %v", err)
	}
	resumed := sim.Step(0.4, 1, DefaultOrbitRadius)
	if resumed.CoverageSamples != 3 {
		t.Fatalf("coverage samples after recovery = %d, want 3", resumed.CoverageSamples)
	}
	if !scalar.EqualWithinAbs(resumed.CoverageSeconds, before.CoverageSeconds+0.4, tol) {
		t.Fatalf("coverage seconds = %v, want %v", resumed.CoverageSeconds, before.CoverageSeconds+0.4)
	}
	contactSeconds := before.CoveragePercent / 100 * before.CoverageSeconds
	if resumed.NetworkReachable {
		contactSeconds += 0.4
	}
	want := 100 * contactSeconds / resumed.CoverageSeconds
	if !scalar.EqualWithinAbs(resumed.CoveragePercent, want, 1e-6) {
		t.Fatalf("coverage after recovery = %v, want %v", resumed.CoveragePercent, want)
	}
}

func TestZeroHorizonThresholdIsHonoured(t *testing.T) {
	phase := math.Acos(0.1)
	newSim := func(threshold float64) *Simulation {
		store := kb.NewKnowledgeBase()
		if err := store.AddSatellite(&model.SatelliteDefinition{ID: "sat1", BaseRate: 1, Phase: phase}); err != nil {
			t.Fatalf("AddSatellite error: %v", err)
		}
		if err := store.AddStation(&model.GroundStation{ID: "gs1", Local: model.Motion{X: PlanetRadius}}); err != nil {
			t.Fatalf("AddStation error: %v", err)
		}
		cfg := DefaultConfig()
		cfg.HorizonThreshold = threshold
		return NewSimulation(store, cfg)
	}

	sim := newSim(0)
	if sim.Links.HorizonThreshold != 0 {
		t.Fatalf("evaluator threshold = %v, want 0", sim.Links.HorizonThreshold)
	}
	if s1, _ := sim.Snapshot().Satellite("sat1"); !s1.Contact {
		t.Fatalf("threshold 0: satellite at cos=0.1 should have contact")
	}

	if s1, _ := newSim(DefaultHorizonThreshold).Snapshot().Satellite("sat1"); s1.Contact {
		t.Fatalf("threshold %v: satellite at cos=0.1 should not have contact", DefaultHorizonThreshold)
	}
}

func TestDegradedMovesSlower(t *testing.T) {
	sim := newTestSimulation(t, model.StateDegraded)
	s1, _ := sim.Step(1, 1, DefaultOrbitRadius).Satellite("sat1")
	want := Vec3{X: 2.5 * math.Cos(0.3), Z: 2.5 * math.Sin(0.3)}
	if !vecNear(s1.Position, want) {
		t.Fatalf("DEGRADED sat1 = %+v, want %+v", s1.Position, want)
	}
}

func TestOrbitRadiusChange(t *testing.T) {
	sim := newTestSimulation(t, model.StateActive)
	snap := sim.Step(0, 1, 4)
	s1, _ := snap.Satellite("sat1")
	if !scalar.EqualWithinAbs(s1.Position.Norm(), 4, tol) || snap.OrbitRadius != 4 {
		t.Fatalf("|sat1| = %v radius %v, want 4", s1.Position.Norm(), snap.OrbitRadius)
	}
	// Non-positive keeps the previous radius.
	if got := sim.Step(0, 1, 0).OrbitRadius; got != 4 {
		t.Fatalf("radius = %v, want 4", got)
	}
}

func TestToggleUnknownSatellite(t *testing.T) {
	sim := newTestSimulation(t, model.StateActive)
	if _, err := sim.ToggleSatelliteState("ghost"); err == nil {
		t.Fatalf("expected error for unknown satellite")
	}
}

func TestReset(t *testing.T) {
	sim := newTestSimulation(t, model.StateActive)
	sim.Step(1, 1, 3)
	sim.Step(1, 1, 3)
	if _, err := sim.ToggleSatelliteState("sat2"); err != nil {
		t.Fatalf("ToggleSatelliteState error: %v", err)
	}
	sim.SetPaused(true)
	rotation := sim.Snapshot().PlanetRotation

	sim.Reset()
	snap := sim.Snapshot()

	if snap.T != 0 || snap.Paused || snap.CoverageSamples != 0 {
		t.Fatalf("after reset t=%v paused=%v samples=%d", snap.T, snap.Paused, snap.CoverageSamples)
	}
	for _, s := range snap.Satellites {
		if s.State != model.StateActive {
			t.Fatalf("%s state = %v after reset", s.ID, s.State)
		}
	}
	s1, _ := snap.Satellite("sat1")
	if !vecNear(s1.Position, Vec3{X: 3}) {
		t.Fatalf("sat1 after reset = %+v, want (3,0,0)", s1.Position)
	}
	if snap.PlanetRotation != rotation {
		t.Fatalf("planet rotation reset to %v, want %v", snap.PlanetRotation, rotation)
	}
}

func TestResetStartsNewRun(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(logging.Config{Level: "info", Format: "json", Output: &buf})
	ctx, runID := logging.NewRun(context.Background())

	store := kb.NewKnowledgeBase()
	_ = store.AddSatellite(&model.SatelliteDefinition{ID: "sat1", BaseRate: 1})
	sim := NewSimulation(store, DefaultConfig(), WithContext(ctx), WithLogger(log))

	if got := logging.RunIDFromContext(sim.Context()); got != runID {
		t.Fatalf("run id = %q, want %q", got, runID)
	}

	sim.Reset()
	next := logging.RunIDFromContext(sim.Context())
	if next == "" || next == runID {
		t.Fatalf("run id after reset = %q, want a new id", next)
	}

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("decode reset log line %q: %v", buf.String(), err)
	}
	if line["run_id"] != next || line["previous_run_id"] != runID {
		t.Fatalf("reset log = %v, want run_id %q previous_run_id %q", line, next, runID)
	}
}

type fixedMotion struct{ pos Vec3 }

func (f fixedMotion) UpdatePosition(_, _ float64, sat *model.SatelliteDefinition) {
	sat.Position = f.pos.Motion()
}

func TestWithMotionModel(t *testing.T) {
	store := kb.NewKnowledgeBase()
	_ = store.AddSatellite(&model.SatelliteDefinition{ID: "sat1", BaseRate: 1})
	sim := NewSimulation(store, DefaultConfig(), WithMotionModel(fixedMotion{pos: Vec3{Y: 9}}))
	s1, _ := sim.Step(1, 1, 2.5).Satellite("sat1")
	if !vecNear(s1.Position, Vec3{Y: 9}) {
		t.Fatalf("custom motion ignored: %+v", s1.Position)
	}
}
