package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/signalsfoundry/orbitlink-sim/core"
	"github.com/signalsfoundry/orbitlink-sim/internal/config"
	"github.com/signalsfoundry/orbitlink-sim/internal/export"
	"github.com/signalsfoundry/orbitlink-sim/internal/health"
	"github.com/signalsfoundry/orbitlink-sim/internal/logging"
	"github.com/signalsfoundry/orbitlink-sim/internal/observability"
	"github.com/signalsfoundry/orbitlink-sim/internal/stream"
)

// broadcaster receives encoded snapshots.
type broadcaster interface {
	Broadcast(msg []byte)
}

// runner owns the simulation. Every method runs on the frame driver's
// goroutine; commands reach it through the hub's channel only.
type runner struct {
	sim *core.Simulation
	log logging.Logger

	commands <-chan stream.Command
	out      broadcaster

	metrics       *observability.SimCollector
	streamMetrics *observability.StreamCollector
	health        *health.Reporter

	speed       float64
	orbitRadius float64

	broadcastEvery int
	dirty          bool

	logEvery time.Duration
	lastLog  time.Time
	now      func() time.Time
}

func newRunner(sim *core.Simulation, cfg config.Config, log logging.Logger) *runner {
	if log == nil {
		log = logging.Noop()
	}
	every := cfg.BroadcastEvery
	if every <= 0 {
		every = 1
	}
	return &runner{
		sim:            sim,
		log:            log,
		speed:          config.ClampSpeed(cfg.Speed),
		orbitRadius:    config.ClampOrbitRadius(cfg.OrbitRadius),
		broadcastEvery: every,
		dirty:          true,
		logEvery:       cfg.LogEvery,
		now:            time.Now,
	}
}

// onFrame is the frame driver listener.
func (r *runner) onFrame(frameDt float64) {
	r.drainCommands()

	_, span := observability.StartStep(r.sim.Context(), frameDt, r.speed)
	start := time.Now()
	snap := r.sim.Step(frameDt, r.speed, r.orbitRadius)
	took := time.Since(start)
	observability.EndStep(span, snap)

	r.metrics.ObserveStep(snap, took)
	if r.health != nil {
		r.health.Update(snap)
	}

	if r.dirty || snap.Step%uint64(r.broadcastEvery) == 0 {
		r.publish(snap)
	}
	r.maybeLog(snap)
}

func (r *runner) drainCommands() {
	if r.commands == nil {
		return
	}
	for {
		select {
		case cmd, ok := <-r.commands:
			if !ok {
				r.commands = nil
				return
			}
			result := "applied"
			if err := r.apply(cmd); err != nil {
				result = "rejected"
				r.log.Warn(r.sim.Context(), "control command rejected",
					logging.String("command", string(cmd.Type)),
					logging.String("client", cmd.ClientID),
					logging.Err(err),
				)
			}
			r.streamMetrics.CommandHandled(string(cmd.Type), result)
		default:
			return
		}
	}
}

var errMissingValue = errors.New("missing value")

// apply executes one control command against the simulation.
func (r *runner) apply(cmd stream.Command) error {
	switch cmd.Type {
	case stream.CmdPause:
		if cmd.Paused == nil {
			return fmt.Errorf("pause: %w", errMissingValue)
		}
		r.sim.SetPaused(*cmd.Paused)
	case stream.CmdTogglePause:
		r.sim.SetPaused(!r.sim.Paused())
	case stream.CmdToggleState:
		if _, err := r.sim.ToggleSatelliteState(cmd.Satellite); err != nil {
			return err
		}
	case stream.CmdReset:
		r.sim.Reset()
	case stream.CmdSpeed:
		if cmd.Value == nil {
			return fmt.Errorf("speed: %w", errMissingValue)
		}
		r.speed = config.ClampSpeed(*cmd.Value)
	case stream.CmdOrbitRadius:
		if cmd.Value == nil {
			return fmt.Errorf("orbit_radius: %w", errMissingValue)
		}
		r.orbitRadius = config.ClampOrbitRadius(*cmd.Value)
	default:
		return fmt.Errorf("unknown command %q", cmd.Type)
	}
	r.dirty = true
	return nil
}

func (r *runner) publish(snap core.Snapshot) {
	r.dirty = false
	if r.out == nil {
		return
	}
	msg, err := export.MarshalJSON(snap)
	if err != nil {
		r.log.Warn(r.sim.Context(), "snapshot encode failed", logging.Err(err))
		return
	}
	r.out.Broadcast(msg)
}

func (r *runner) maybeLog(snap core.Snapshot) {
	if r.logEvery <= 0 {
		return
	}
	now := r.now()
	if !r.lastLog.IsZero() && now.Sub(r.lastLog) < r.logEvery {
		return
	}
	r.lastLog = now
	r.log.Info(r.sim.Context(), "simulation status",
		logging.Uint64("step", snap.Step),
		logging.Float("t", snap.T),
		logging.Bool("paused", snap.Paused),
		logging.Float("speed", r.speed),
		logging.Float("orbit_radius", snap.OrbitRadius),
		logging.Bool("network_reachable", snap.NetworkReachable),
		logging.Float("coverage_percent", snap.CoveragePercent),
	)
}
