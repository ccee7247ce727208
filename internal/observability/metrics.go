package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signalsfoundry/orbitlink-sim/core"
)

// SimCollector bundles Prometheus metrics describing the simulation and
// exposes them over HTTP.
type SimCollector struct {
	gatherer prometheus.Gatherer

	Steps         prometheus.Counter
	StepDurations prometheus.Histogram

	SimTime          prometheus.Gauge
	OrbitRadius      prometheus.Gauge
	CoveragePercent  prometheus.Gauge
	NetworkReachable prometheus.Gauge

	SatelliteContact *prometheus.GaugeVec
	SatelliteState   *prometheus.GaugeVec
	ISLUp            *prometheus.GaugeVec
	ISLDistance      *prometheus.GaugeVec
}

// NewSimCollector registers simulation metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	steps, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_steps_total",
		Help: "Total number of simulation steps executed.",
	}), "sim_steps_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sim_step_duration_seconds",
		Help:    "Wall-clock time spent computing one simulation step.",
		Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
	}), "sim_step_duration_seconds")
	if err != nil {
		return nil, err
	}

	simTime, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_time_seconds",
		Help: "Current simulation time.",
	}), "sim_time_seconds")
	if err != nil {
		return nil, err
	}
	radius, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_orbit_radius",
		Help: "Shared orbit radius in planet-scene units.",
	}), "sim_orbit_radius")
	if err != nil {
		return nil, err
	}
	coverage, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_coverage_percent",
		Help: "Rolling network coverage over the coverage window.",
	}), "sim_coverage_percent")
	if err != nil {
		return nil, err
	}
	reachable, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_network_reachable",
		Help: "1 when the ground network can reach the constellation.",
	}), "sim_network_reachable")
	if err != nil {
		return nil, err
	}

	contact, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sim_satellite_contact",
		Help: "1 when the satellite has ground-station contact.",
	}, []string{"satellite"}), "sim_satellite_contact")
	if err != nil {
		return nil, err
	}
	state, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sim_satellite_state",
		Help: "Satellite lifecycle state (0=ACTIVE, 1=DEGRADED, 2=FAILED).",
	}, []string{"satellite"}), "sim_satellite_state")
	if err != nil {
		return nil, err
	}
	islUp, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sim_isl_up",
		Help: "1 when the inter-satellite link is up.",
	}, []string{"a", "b"}), "sim_isl_up")
	if err != nil {
		return nil, err
	}
	islDistance, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sim_isl_distance",
		Help: "Distance between the two ends of an inter-satellite link.",
	}, []string{"a", "b"}), "sim_isl_distance")
	if err != nil {
		return nil, err
	}

	return &SimCollector{
		gatherer:         gatherer,
		Steps:            steps,
		StepDurations:    durations,
		SimTime:          simTime,
		OrbitRadius:      radius,
		CoveragePercent:  coverage,
		NetworkReachable: reachable,
		SatelliteContact: contact,
		SatelliteState:   state,
		ISLUp:            islUp,
		ISLDistance:      islDistance,
	}, nil
}

// ObserveStep records one step's snapshot and how long it took to compute.
func (c *SimCollector) ObserveStep(snap core.Snapshot, took time.Duration) {
	if c == nil {
		return
	}
	c.Steps.Inc()
	c.StepDurations.Observe(took.Seconds())
	c.ObserveSnapshot(snap)
}

// ObserveSnapshot updates the gauges from a snapshot without counting a step.
func (c *SimCollector) ObserveSnapshot(snap core.Snapshot) {
	if c == nil {
		return
	}
	c.SimTime.Set(snap.T)
	c.OrbitRadius.Set(snap.OrbitRadius)
	c.CoveragePercent.Set(snap.CoveragePercent)
	c.NetworkReachable.Set(boolGauge(snap.NetworkReachable))

	for _, sat := range snap.Satellites {
		c.SatelliteContact.WithLabelValues(sat.ID).Set(boolGauge(sat.Contact))
		c.SatelliteState.WithLabelValues(sat.ID).Set(float64(sat.State))
	}
	for _, l := range snap.ISLs {
		c.ISLUp.WithLabelValues(l.A, l.B).Set(boolGauge(l.Up))
		c.ISLDistance.WithLabelValues(l.A, l.B).Set(l.Distance)
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
