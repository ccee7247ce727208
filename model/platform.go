package model

import (
	"fmt"
	"strings"
)

// Motion represents a position in planet-centred scene units.
type Motion struct {
	X float64
	Y float64
	Z float64
}

// SatelliteState is the lifecycle state of a satellite.
type SatelliteState int

const (
	StateActive SatelliteState = iota
	StateDegraded
	StateFailed
)

// Next returns the state that follows s in the fixed toggle cycle
// ACTIVE -> DEGRADED -> FAILED -> ACTIVE.
func (s SatelliteState) Next() SatelliteState {
	switch s {
	case StateActive:
		return StateDegraded
	case StateDegraded:
		return StateFailed
	default:
		return StateActive
	}
}

// SpeedFactor scales a satellite's base angular rate.
func (s SatelliteState) SpeedFactor() float64 {
	switch s {
	case StateDegraded:
		return 0.3
	case StateFailed:
		return 0.0
	default:
		return 1.0
	}
}

func (s SatelliteState) String() string {
	switch s {
	case StateActive:
		return "ACTIVE"
	case StateDegraded:
		return "DEGRADED"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("SatelliteState(%d)", int(s))
	}
}

// ParseSatelliteState accepts the names returned by String, case-insensitively.
// An empty string maps to StateActive.
func ParseSatelliteState(raw string) (SatelliteState, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "", "ACTIVE":
		return StateActive, nil
	case "DEGRADED":
		return StateDegraded, nil
	case "FAILED":
		return StateFailed, nil
	default:
		return StateActive, fmt.Errorf("unknown satellite state %q", raw)
	}
}

// OrbitMode selects the orbital plane of a ring orbit.
type OrbitMode int

const (
	OrbitEquatorial OrbitMode = iota
	OrbitInclined
)

func (m OrbitMode) String() string {
	switch m {
	case OrbitInclined:
		return "inclined"
	default:
		return "equatorial"
	}
}

// ParseOrbitMode maps "equatorial" / "inclined" to an OrbitMode.
func ParseOrbitMode(raw string) (OrbitMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "equatorial":
		return OrbitEquatorial, nil
	case "inclined":
		return OrbitInclined, nil
	default:
		return OrbitEquatorial, fmt.Errorf("unknown orbit mode %q", raw)
	}
}

// DefaultInclination is the orbital-plane tilt (radians) applied to inclined
// satellites that do not specify one.
const DefaultInclination = 0.6

// SatelliteDefinition describes one satellite on the shared orbit ring.
// Position is derived: it is overwritten by the motion model on every step
// and must not be edited elsewhere.
type SatelliteDefinition struct {
	ID   string
	Name string

	Mode        OrbitMode
	Phase       float64 // radians
	BaseRate    float64 // radians per simulated second
	Inclination float64 // radians, used by OrbitInclined only

	State    SatelliteState
	Position Motion
}
