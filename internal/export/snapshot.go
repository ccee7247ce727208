// Package export encodes simulation snapshots for the presentation layer.
package export

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/orbitlink-sim/core"
)

// MessageType tags every payload sent to clients.
const MessageType = "snapshot"

func vec(v core.Vec3) []any {
	return []any{v.X, v.Y, v.Z}
}

// ToStruct converts a snapshot into a protobuf Struct. Positions are
// [x, y, z] lists; lifecycle states use their string names.
func ToStruct(snap core.Snapshot) (*structpb.Struct, error) {
	sats := make([]any, 0, len(snap.Satellites))
	for _, s := range snap.Satellites {
		stations := make([]any, 0, len(s.ContactStations))
		for _, id := range s.ContactStations {
			stations = append(stations, id)
		}
		elev := make(map[string]any, len(s.Elevations))
		for id, e := range s.Elevations {
			elev[id] = e
		}
		sats = append(sats, map[string]any{
			"id":               s.ID,
			"name":             s.Name,
			"state":            s.State.String(),
			"mode":             s.Mode.String(),
			"position":         vec(s.Position),
			"contact":          s.Contact,
			"contact_stations": stations,
			"elevation_deg":    elev,
		})
	}

	stations := make([]any, 0, len(snap.Stations))
	for _, st := range snap.Stations {
		stations = append(stations, map[string]any{
			"id":       st.ID,
			"name":     st.Name,
			"position": vec(st.Position),
		})
	}

	isls := make([]any, 0, len(snap.ISLs))
	for _, l := range snap.ISLs {
		isls = append(isls, map[string]any{
			"a":        l.A,
			"b":        l.B,
			"up":       l.Up,
			"distance": l.Distance,
		})
	}

	st, err := structpb.NewStruct(map[string]any{
		"type":              MessageType,
		"step":              float64(snap.Step),
		"t":                 snap.T,
		"paused":            snap.Paused,
		"orbit_radius":      snap.OrbitRadius,
		"planet_rotation":   snap.PlanetRotation,
		"satellites":        sats,
		"stations":          stations,
		"isls":              isls,
		"network_reachable": snap.NetworkReachable,
		"coverage_percent":  snap.CoveragePercent,
		"coverage_samples":  float64(snap.CoverageSamples),
		"coverage_seconds":  snap.CoverageSeconds,
	})
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return st, nil
}

// MarshalJSON renders a snapshot as compact protojson.
func MarshalJSON(snap core.Snapshot) ([]byte, error) {
	st, err := ToStruct(snap)
	if err != nil {
		return nil, err
	}
	b, err := protojson.MarshalOptions{UseProtoNames: true}.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return b, nil
}
