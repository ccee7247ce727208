package kb

import (
	"fmt"
	"sync"

	"github.com/signalsfoundry/orbitlink-sim/model"
)

// EventType indicates what kind of change happened in the KB.
type EventType int

const (
	EventSatelliteAdded EventType = iota
	EventStationAdded
	EventSatelliteStateChanged
)

func (e EventType) String() string {
	switch e {
	case EventSatelliteAdded:
		return "satellite_added"
	case EventStationAdded:
		return "station_added"
	case EventSatelliteStateChanged:
		return "satellite_state_changed"
	default:
		return "unknown"
	}
}

// Event is emitted to subscribers when something interesting happens.
type Event struct {
	Type      EventType
	Satellite model.SatelliteDefinition
	Station   model.GroundStation

	// PreviousState is set for EventSatelliteStateChanged.
	PreviousState model.SatelliteState
}

// KnowledgeBase is an in-memory, thread-safe registry of satellites and
// ground stations. Entities keep their insertion order so that iteration,
// and therefore every derived result, is deterministic.
type KnowledgeBase struct {
	mu sync.RWMutex

	satellites   map[string]*model.SatelliteDefinition
	satOrder     []string
	stations     map[string]*model.GroundStation
	stationOrder []string

	subs []func(Event)
}

// NewKnowledgeBase constructs an empty KB.
func NewKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{
		satellites: make(map[string]*model.SatelliteDefinition),
		stations:   make(map[string]*model.GroundStation),
	}
}

// AddSatellite adds a new satellite. It returns an error if the ID is empty
// or already exists.
func (kb *KnowledgeBase) AddSatellite(s *model.SatelliteDefinition) error {
	if s == nil || s.ID == "" {
		return fmt.Errorf("satellite must have a non-empty ID")
	}

	kb.mu.Lock()
	if _, exists := kb.satellites[s.ID]; exists {
		kb.mu.Unlock()
		return fmt.Errorf("satellite with ID %q already exists", s.ID)
	}
	// store pointer so that the motion model can update in-place
	kb.satellites[s.ID] = s
	kb.satOrder = append(kb.satOrder, s.ID)
	subs := kb.subscribers()
	event := Event{Type: EventSatelliteAdded, Satellite: *s}
	kb.mu.Unlock()

	notify(subs, event)
	return nil
}

// AddStation adds a new ground station. It returns an error if the ID is
// empty or already exists.
func (kb *KnowledgeBase) AddStation(st *model.GroundStation) error {
	if st == nil || st.ID == "" {
		return fmt.Errorf("station must have a non-empty ID")
	}

	kb.mu.Lock()
	if _, exists := kb.stations[st.ID]; exists {
		kb.mu.Unlock()
		return fmt.Errorf("station with ID %q already exists", st.ID)
	}
	kb.stations[st.ID] = st
	kb.stationOrder = append(kb.stationOrder, st.ID)
	subs := kb.subscribers()
	event := Event{Type: EventStationAdded, Station: *st}
	kb.mu.Unlock()

	notify(subs, event)
	return nil
}

// GetSatellite returns the satellite with the given ID, or nil if not found.
func (kb *KnowledgeBase) GetSatellite(id string) *model.SatelliteDefinition {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.satellites[id]
}

// GetStation returns the station with the given ID, or nil if not found.
func (kb *KnowledgeBase) GetStation(id string) *model.GroundStation {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.stations[id]
}

// ListSatellites returns the satellites in insertion order. The returned
// pointers are live; only the simulation step may write through them.
func (kb *KnowledgeBase) ListSatellites() []*model.SatelliteDefinition {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	res := make([]*model.SatelliteDefinition, 0, len(kb.satOrder))
	for _, id := range kb.satOrder {
		res = append(res, kb.satellites[id])
	}
	return res
}

// ListStations returns the ground stations in insertion order.
func (kb *KnowledgeBase) ListStations() []*model.GroundStation {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	res := make([]*model.GroundStation, 0, len(kb.stationOrder))
	for _, id := range kb.stationOrder {
		res = append(res, kb.stations[id])
	}
	return res
}

// SetSatelliteState sets a satellite's lifecycle state and notifies
// subscribers when it changed.
func (kb *KnowledgeBase) SetSatelliteState(id string, state model.SatelliteState) error {
	_, err := kb.updateState(id, func(model.SatelliteState) model.SatelliteState { return state })
	return err
}

// ToggleSatelliteState advances a satellite to the next state in its cycle
// and returns the new state.
func (kb *KnowledgeBase) ToggleSatelliteState(id string) (model.SatelliteState, error) {
	return kb.updateState(id, model.SatelliteState.Next)
}

// ResetSatelliteStates sets every satellite back to ACTIVE.
func (kb *KnowledgeBase) ResetSatelliteStates() {
	kb.mu.RLock()
	ids := append([]string(nil), kb.satOrder...)
	kb.mu.RUnlock()

	for _, id := range ids {
		_ = kb.SetSatelliteState(id, model.StateActive)
	}
}

func (kb *KnowledgeBase) updateState(id string, next func(model.SatelliteState) model.SatelliteState) (model.SatelliteState, error) {
	kb.mu.Lock()
	s, ok := kb.satellites[id]
	if !ok {
		kb.mu.Unlock()
		return model.StateActive, fmt.Errorf("satellite with ID %q not found", id)
	}
	prev := s.State
	s.State = next(prev)
	if s.State == prev {
		kb.mu.Unlock()
		return s.State, nil
	}
	event := Event{
		Type:          EventSatelliteStateChanged,
		Satellite:     *s, // copy for safety
		PreviousState: prev,
	}
	subs := kb.subscribers()
	kb.mu.Unlock()

	// Notify subscribers outside the lock to avoid deadlocks.
	notify(subs, event)
	return event.Satellite.State, nil
}

// Subscribe registers a callback for KB events. It returns an unsubscribe function.
func (kb *KnowledgeBase) Subscribe(fn func(Event)) (unsubscribe func()) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	kb.subs = append(kb.subs, fn)
	idx := len(kb.subs) - 1

	return func() {
		kb.mu.Lock()
		defer kb.mu.Unlock()
		if idx < 0 || idx >= len(kb.subs) {
			return
		}
		kb.subs[idx] = nil
		idx = -1
	}
}

// subscribers must be called with kb.mu held.
func (kb *KnowledgeBase) subscribers() []func(Event) {
	subs := make([]func(Event), 0, len(kb.subs))
	for _, fn := range kb.subs {
		if fn != nil {
			subs = append(subs, fn)
		}
	}
	return subs
}

func notify(subs []func(Event), e Event) {
	for _, sub := range subs {
		sub(e)
	}
}
