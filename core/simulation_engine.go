package core

import (
	"context"
	"fmt"

	"github.com/signalsfoundry/orbitlink-sim/internal/logging"
	"github.com/signalsfoundry/orbitlink-sim/kb"
	"github.com/signalsfoundry/orbitlink-sim/model"
	"github.com/signalsfoundry/orbitlink-sim/timectrl"
)

// DefaultOrbitRadius is the shared orbit radius used until the first Step
// supplies one.
const DefaultOrbitRadius = 2.5

// Config holds the fixed parameters of a simulation. Zero fields take the
// values from DefaultConfig, except PlanetSpinRate where zero means a
// non-rotating planet and HorizonThreshold where zero is the plain
// same-hemisphere test.
type Config struct {
	PlanetRadius     float64
	PlanetSpinRate   float64 // rad per frame second
	HorizonThreshold float64
	ISLMaxDistance   float64
	CoverageWindow   float64 // seconds
	OrbitRadius      float64 // initial shared orbit radius

	// PrimaryID is the satellite whose state gates coverage recording and
	// whose ground link carries relayed traffic. Empty means the first
	// satellite in the knowledge base.
	PrimaryID string
}

// DefaultConfig returns the default scene parameters.
func DefaultConfig() Config {
	return Config{
		PlanetRadius:     PlanetRadius,
		PlanetSpinRate:   PlanetSpinRate,
		HorizonThreshold: DefaultHorizonThreshold,
		ISLMaxDistance:   DefaultISLMaxDistance,
		CoverageWindow:   DefaultCoverageWindow,
		OrbitRadius:      DefaultOrbitRadius,
	}
}

// SatelliteSnapshot is the per-satellite part of a Snapshot.
type SatelliteSnapshot struct {
	ID       string
	Name     string
	State    model.SatelliteState
	Mode     model.OrbitMode
	Position Vec3
	Contact  bool
	// ContactStations lists the stations currently in view.
	ContactStations []string
	// Elevations maps station ID to the satellite's elevation in degrees.
	Elevations map[string]float64
}

// Snapshot is everything the presentation layer needs after one step.
type Snapshot struct {
	Step           uint64
	T              float64
	Paused         bool
	OrbitRadius    float64
	PlanetRotation float64

	Satellites []SatelliteSnapshot
	Stations   []StationView
	ISLs       []ISLStatus

	NetworkReachable bool
	CoveragePercent  float64
	CoverageSamples  int
	CoverageSeconds  float64
}

// Satellite looks up a satellite by ID.
func (s Snapshot) Satellite(id string) (SatelliteSnapshot, bool) {
	for _, sat := range s.Satellites {
		if sat.ID == id {
			return sat, true
		}
	}
	return SatelliteSnapshot{}, false
}

// ISL looks up the link between a and b in either order.
func (s Snapshot) ISL(a, b string) (ISLStatus, bool) {
	for _, l := range s.ISLs {
		if (l.A == a && l.B == b) || (l.A == b && l.B == a) {
			return l, true
		}
	}
	return ISLStatus{}, false
}

// Option customises a Simulation.
type Option func(*Simulation)

// WithMotionModel replaces the default ring orbit model.
func WithMotionModel(m MotionModel) Option {
	return func(s *Simulation) {
		if m != nil {
			s.Motion = m
		}
	}
}

// WithContext sets the run context carried on log lines. A context without
// a run ID gets one.
func WithContext(ctx context.Context) Option {
	return func(s *Simulation) {
		if ctx != nil {
			s.ctx, _ = logging.EnsureRunID(ctx)
		}
	}
}

// WithLogger attaches a logger for lifecycle events.
func WithLogger(l logging.Logger) Option {
	return func(s *Simulation) {
		if l != nil {
			s.log = l
		}
	}
}

// Simulation owns the whole simulation state: clock, planet rotation,
// coverage history and, through the knowledge base, the satellites and
// stations. It is not safe for concurrent use; callers serialise Step,
// ToggleSatelliteState, Reset and SetPaused onto one goroutine.
type Simulation struct {
	KB       *kb.KnowledgeBase
	Motion   MotionModel
	Links    *LinkEvaluator
	Coverage *CoverageWindow

	clock          timectrl.SimClock
	spinRate       float64
	planetRotation float64
	orbitRadius    float64
	steps          uint64
	last           Snapshot

	ctx context.Context
	log logging.Logger
}

// NewSimulation builds a simulation over the entities in store and places
// every satellite at its t=0 position.
func NewSimulation(store *kb.KnowledgeBase, cfg Config, opts ...Option) *Simulation {
	def := DefaultConfig()
	if cfg.PlanetRadius <= 0 {
		cfg.PlanetRadius = def.PlanetRadius
	}
	if cfg.ISLMaxDistance <= 0 {
		cfg.ISLMaxDistance = def.ISLMaxDistance
	}
	if cfg.OrbitRadius <= 0 {
		cfg.OrbitRadius = def.OrbitRadius
	}
	if cfg.CoverageWindow <= 0 {
		cfg.CoverageWindow = def.CoverageWindow
	}
	if cfg.PrimaryID == "" {
		if sats := store.ListSatellites(); len(sats) > 0 {
			cfg.PrimaryID = sats[0].ID
		}
	}

	s := &Simulation{
		KB:     store,
		Motion: &RingOrbitModel{},
		Links: &LinkEvaluator{
			PlanetRadius:     cfg.PlanetRadius,
			HorizonThreshold: cfg.HorizonThreshold,
			ISLMaxDistance:   cfg.ISLMaxDistance,
			PrimaryID:        cfg.PrimaryID,
		},
		Coverage:    NewCoverageWindow(cfg.CoverageWindow),
		spinRate:    cfg.PlanetSpinRate,
		orbitRadius: cfg.OrbitRadius,
		log:         logging.Noop(),
	}
	s.ctx, _ = logging.EnsureRunID(context.Background())
	for _, opt := range opts {
		opt(s)
	}

	s.placeAll()
	s.last = s.evaluate(0, false)
	return s
}

// Step advances the simulation by one frame. frameDt is the frame's wall
// time in seconds, speed scales simulation time and orbitRadius sets the
// shared ring radius (non-positive values keep the previous radius).
//
// Order: clock, planet spin, satellite propagation, station positions,
// link evaluation, coverage.
func (s *Simulation) Step(frameDt, speed, orbitRadius float64) Snapshot {
	if frameDt < 0 {
		frameDt = 0
	}
	if orbitRadius > 0 {
		s.orbitRadius = orbitRadius
	}

	s.clock.Advance(frameDt, speed)
	s.planetRotation += frameDt * s.spinRate
	s.propagateAll()
	s.steps++

	s.last = s.evaluate(frameDt, !s.clock.Paused())
	return s.last
}

// ToggleSatelliteState advances a satellite along its lifecycle cycle.
func (s *Simulation) ToggleSatelliteState(id string) (model.SatelliteState, error) {
	state, err := s.KB.ToggleSatelliteState(id)
	if err != nil {
		return state, fmt.Errorf("toggle satellite state: %w", err)
	}
	s.log.Info(s.ctx, "satellite state toggled",
		logging.String("satellite", id),
		logging.String("state", state.String()),
	)
	return state, nil
}

// SetPaused pauses or resumes simulation time and coverage recording.
func (s *Simulation) SetPaused(paused bool) {
	s.clock.SetPaused(paused)
}

// Paused reports whether the simulation is paused.
func (s *Simulation) Paused() bool {
	return s.clock.Paused()
}

// Time returns the simulation time in seconds.
func (s *Simulation) Time() float64 {
	return s.clock.Now()
}

// OrbitRadius returns the current shared orbit radius.
func (s *Simulation) OrbitRadius() float64 {
	return s.orbitRadius
}

// Reset returns to initial conditions: unpaused, t=0, empty coverage
// history and every satellite ACTIVE at its t=0 position. The planet's
// rotation is left alone. Each reset starts a new run ID.
func (s *Simulation) Reset() {
	prev := logging.RunIDFromContext(s.ctx)
	s.ctx, _ = logging.NewRun(s.ctx)

	s.clock.Reset()
	s.Coverage.Reset()
	s.KB.ResetSatelliteStates()
	s.propagateAll()
	s.last = s.evaluate(0, false)

	s.log.Info(s.ctx, "simulation reset", logging.String("previous_run_id", prev))
}

// Context returns the current run context.
func (s *Simulation) Context() context.Context {
	return s.ctx
}

// Snapshot returns the result of the most recent step.
func (s *Simulation) Snapshot() Snapshot {
	return s.last
}

func (s *Simulation) propagateAll() {
	t := s.clock.Now()
	for _, sat := range s.KB.ListSatellites() {
		s.Motion.UpdatePosition(t, s.orbitRadius, sat)
	}
}

// placeAll puts every satellite at its current-time position regardless of
// lifecycle state, so a satellite configured as FAILED still starts on
// its ring rather than at the origin.
func (s *Simulation) placeAll() {
	t := s.clock.Now()
	for _, sat := range s.KB.ListSatellites() {
		probe := *sat
		probe.State = model.StateActive
		s.Motion.UpdatePosition(t, s.orbitRadius, &probe)
		sat.Position = probe.Position
	}
}

func (s *Simulation) stationViews() []StationView {
	stations := s.KB.ListStations()
	views := make([]StationView, 0, len(stations))
	for _, st := range stations {
		views = append(views, StationView{
			ID:       st.ID,
			Name:     st.Name,
			Position: StationWorldPosition(VecFromMotion(st.Local), s.planetRotation),
		})
	}
	return views
}

func (s *Simulation) evaluate(frameDt float64, record bool) Snapshot {
	sats := s.KB.ListSatellites()
	stations := s.stationViews()
	report := s.Links.Evaluate(sats, stations)

	primary := s.KB.GetSatellite(s.Links.PrimaryID)
	primaryUp := primary != nil && primary.State != model.StateFailed

	// A FAILED primary freezes the history and reports zero coverage.
	if record && primaryUp {
		s.Coverage.Record(frameDt, report.NetworkReachable)
	}
	coverage := 0.0
	if primaryUp {
		coverage = s.Coverage.Percentage()
	}

	snap := Snapshot{
		Step:             s.steps,
		T:                s.clock.Now(),
		Paused:           s.clock.Paused(),
		OrbitRadius:      s.orbitRadius,
		PlanetRotation:   s.planetRotation,
		Stations:         stations,
		ISLs:             report.ISLs,
		NetworkReachable: report.NetworkReachable,
		CoveragePercent:  coverage,
		CoverageSamples:  s.Coverage.Len(),
		CoverageSeconds:  s.Coverage.Duration(),
	}
	for _, sat := range sats {
		pos := VecFromMotion(sat.Position)
		elev := make(map[string]float64, len(stations))
		for _, st := range stations {
			elev[st.ID] = ElevationDegrees(st.Position, pos)
		}
		snap.Satellites = append(snap.Satellites, SatelliteSnapshot{
			ID:              sat.ID,
			Name:            sat.Name,
			State:           sat.State,
			Mode:            sat.Mode,
			Position:        pos,
			Contact:         report.Contact[sat.ID],
			ContactStations: report.ContactStations[sat.ID],
			Elevations:      elev,
		})
	}
	return snap
}
