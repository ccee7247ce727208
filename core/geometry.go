package core

import (
	"math"

	"github.com/signalsfoundry/orbitlink-sim/model"
)

// PlanetRadius is the fixed planet radius in scene units. Orbit radii and
// ISL ranges are expressed relative to it.
const PlanetRadius = 1.5

// DefaultHorizonThreshold is the minimum cosine of the angle between a
// satellite and a station (seen from the planet centre) for ground contact.
const DefaultHorizonThreshold = 0.15

// Vec3 is a planet-centred vector in scene units.
type Vec3 struct {
	X, Y, Z float64
}

// VecFromMotion converts a model position into a Vec3.
func VecFromMotion(m model.Motion) Vec3 {
	return Vec3{X: m.X, Y: m.Y, Z: m.Z}
}

// Motion converts v into a model position.
func (v Vec3) Motion() model.Motion {
	return model.Motion{X: v.X, Y: v.Y, Z: v.Z}
}

// Add returns v + other.
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Scale returns v * k.
func (v Vec3) Scale(k float64) Vec3 {
	return Vec3{X: v.X * k, Y: v.Y * k, Z: v.Z * k}
}

// Dot returns the dot product of two vectors.
func (v Vec3) Dot(other Vec3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// NormSq returns the squared Euclidean norm.
func (v Vec3) NormSq() float64 {
	return v.Dot(v)
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.NormSq())
}

// Normalize returns the unit vector along v. For a zero vector it returns
// the zero vector and false.
func (v Vec3) Normalize() (Vec3, bool) {
	n := v.Norm()
	if n == 0 {
		return Vec3{}, false
	}
	return v.Scale(1 / n), true
}

// DistanceTo returns the straight-line distance between two points.
func (v Vec3) DistanceTo(other Vec3) float64 {
	return v.Sub(other).Norm()
}

// LineOfSight reports whether a satellite is above a station's horizon,
// approximated by the angular separation of both positions as seen from
// the planet centre: the dot product of the two unit vectors must exceed
// horizonThreshold. A zero-length input never has contact.
func LineOfSight(satPos, stationPos Vec3, horizonThreshold float64) bool {
	toSat, ok := satPos.Normalize()
	if !ok {
		return false
	}
	toStation, ok := stationPos.Normalize()
	if !ok {
		return false
	}
	return toSat.Dot(toStation) > horizonThreshold
}

// EarthClearLine reports whether the segment a->b stays outside the sphere
// of the given radius centred on the origin. A zero-length segment is
// always clear.
func EarthClearLine(a, b Vec3, planetRadius float64) bool {
	ab := b.Sub(a)
	abLen2 := ab.NormSq()
	if abLen2 == 0 {
		return true
	}

	// Closest approach of the origin to a + u*ab, clamped to the segment.
	u := -a.Dot(ab) / abLen2
	if u < 0 {
		u = 0
	} else if u > 1 {
		u = 1
	}
	closest := a.Add(ab.Scale(u))

	return closest.Norm() > planetRadius
}

// ElevationDegrees returns the elevation angle of the target as seen from
// the observer, in degrees. 0° = geometric horizon, 90° = overhead.
func ElevationDegrees(observer, target Vec3) float64 {
	v := target.Sub(observer)
	vNorm := v.Norm()
	if vNorm == 0 {
		return 90
	}

	zenith, ok := observer.Normalize()
	if !ok {
		return 90
	}

	cosGamma := v.Dot(zenith) / vNorm
	if cosGamma > 1 {
		cosGamma = 1
	} else if cosGamma < -1 {
		cosGamma = -1
	}
	gammaDeg := math.Acos(cosGamma) * 180.0 / math.Pi

	// Elevation is measured from local horizon (90° − zenith angle).
	return 90.0 - gammaDeg
}
