package core

import "github.com/signalsfoundry/orbitlink-sim/model"

// DefaultISLMaxDistance is the maximum range of an inter-satellite link.
const DefaultISLMaxDistance = 6.0

// ISLStatus is the state of the inter-satellite link between A and B.
type ISLStatus struct {
	A, B     string
	Up       bool
	Distance float64
}

// StationView is the world-space position of a ground station for one step.
type StationView struct {
	ID       string
	Name     string
	Position Vec3
}

// LinkReport is the link evaluator's output for one step.
type LinkReport struct {
	// Contact is keyed by satellite ID.
	Contact map[string]bool
	// ContactStations lists, per satellite, the stations in view.
	ContactStations map[string][]string
	ISLs            []ISLStatus
	// NetworkReachable is true when the ground network can reach the
	// constellation; see LinkEvaluator.Evaluate.
	NetworkReachable bool
}

// LinkEvaluator decides ground contact, ISL feasibility and network
// reachability from positions and lifecycle states.
type LinkEvaluator struct {
	PlanetRadius     float64
	HorizonThreshold float64
	ISLMaxDistance   float64

	// PrimaryID names the satellite whose ground link carries relayed
	// traffic.
	PrimaryID string
}

// NewLinkEvaluator returns an evaluator with the default thresholds.
func NewLinkEvaluator(primaryID string) *LinkEvaluator {
	return &LinkEvaluator{
		PlanetRadius:     PlanetRadius,
		HorizonThreshold: DefaultHorizonThreshold,
		ISLMaxDistance:   DefaultISLMaxDistance,
		PrimaryID:        primaryID,
	}
}

// Contact reports whether sat can see station. FAILED satellites never have
// contact.
func (e *LinkEvaluator) Contact(sat *model.SatelliteDefinition, station Vec3) bool {
	if sat.State == model.StateFailed {
		return false
	}
	return LineOfSight(VecFromMotion(sat.Position), station, e.HorizonThreshold)
}

// ISL evaluates the link between a and b. The distance is reported even
// when the link is down.
func (e *LinkEvaluator) ISL(a, b *model.SatelliteDefinition) ISLStatus {
	pa, pb := VecFromMotion(a.Position), VecFromMotion(b.Position)
	d := pa.DistanceTo(pb)
	up := a.State != model.StateFailed &&
		b.State != model.StateFailed &&
		d <= e.ISLMaxDistance &&
		EarthClearLine(pa, pb, e.PlanetRadius)
	return ISLStatus{A: a.ID, B: b.ID, Up: up, Distance: d}
}

// Evaluate computes contact for every satellite against every station, the
// ISL for every satellite pair, and network reachability.
//
// The network is reachable when any satellite has ground contact, or when
// an ISL touching the primary satellite is up and the primary itself has
// ground contact. The relay term never adds reachability beyond the
// direct-contact terms.
func (e *LinkEvaluator) Evaluate(sats []*model.SatelliteDefinition, stations []StationView) LinkReport {
	report := LinkReport{
		Contact:         make(map[string]bool, len(sats)),
		ContactStations: make(map[string][]string, len(sats)),
	}

	anyContact := false
	for _, sat := range sats {
		inView := false
		for _, st := range stations {
			if e.Contact(sat, st.Position) {
				inView = true
				report.ContactStations[sat.ID] = append(report.ContactStations[sat.ID], st.ID)
			}
		}
		report.Contact[sat.ID] = inView
		anyContact = anyContact || inView
	}

	relay := false
	for i := 0; i < len(sats); i++ {
		for j := i + 1; j < len(sats); j++ {
			isl := e.ISL(sats[i], sats[j])
			report.ISLs = append(report.ISLs, isl)
			if isl.Up && (isl.A == e.PrimaryID || isl.B == e.PrimaryID) && report.Contact[e.PrimaryID] {
				relay = true
			}
		}
	}

	report.NetworkReachable = anyContact || relay
	return report
}
