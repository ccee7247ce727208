package core

import (
	"math"

	"github.com/signalsfoundry/orbitlink-sim/model"
)

// PlanetSpinRate is the planet's rotation rate in radians per second of
// frame time. The planet keeps spinning while the simulation is paused.
const PlanetSpinRate = 0.15

// MotionModel updates a satellite's position for a given simulation time
// and shared orbit radius.
type MotionModel interface {
	UpdatePosition(simTime, orbitRadius float64, sat *model.SatelliteDefinition)
}

// RingOrbitModel places satellites on a circular ring of the shared orbit
// radius. The position is a pure function of simulation time, radius and
// the satellite's orbit parameters; nothing is integrated.
type RingOrbitModel struct{}

// UpdatePosition recomputes sat.Position. A satellite whose state has a
// zero speed factor (FAILED) keeps its last position.
func (m *RingOrbitModel) UpdatePosition(simTime, orbitRadius float64, sat *model.SatelliteDefinition) {
	factor := sat.State.SpeedFactor()
	if factor == 0 {
		return
	}
	sat.Position = RingPosition(simTime, orbitRadius, sat.BaseRate*factor, sat.Phase, sat.Mode, sat.Inclination).Motion()
}

// RingPosition evaluates the ring orbit at angle theta = t*rate + phase.
// Equatorial orbits lie in the XZ plane; inclined orbits tilt that plane
// by inc radians about the X axis.
func RingPosition(t, r, rate, phase float64, mode model.OrbitMode, inc float64) Vec3 {
	theta := t*rate + phase
	cos, sin := math.Cos(theta), math.Sin(theta)

	if mode == model.OrbitInclined {
		return Vec3{
			X: r * cos,
			Y: r * sin * math.Sin(inc),
			Z: r * sin * math.Cos(inc),
		}
	}
	return Vec3{X: r * cos, Y: 0, Z: r * sin}
}

// StationWorldPosition rotates a body-frame position about +Y by the
// planet's current rotation angle.
func StationWorldPosition(local Vec3, rotation float64) Vec3 {
	cos, sin := math.Cos(rotation), math.Sin(rotation)
	return Vec3{
		X: local.X*cos + local.Z*sin,
		Y: local.Y,
		Z: -local.X*sin + local.Z*cos,
	}
}

// SurfacePoint returns the body-frame position of a point at the given
// latitude and longitude (radians). Latitude 0, longitude 0 is +X; positive
// longitude follows the planet's spin direction.
func SurfacePoint(radius, lat, lon float64) Vec3 {
	return StationWorldPosition(Vec3{
		X: radius * math.Cos(lat),
		Y: radius * math.Sin(lat),
	}, lon)
}
