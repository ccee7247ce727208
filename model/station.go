package model

// GroundStation is a fixed point on the planet surface. Local is expressed
// in the planet body frame and co-rotates with the planet; the world-space
// position is recomputed from the planet rotation on every step.
type GroundStation struct {
	ID    string
	Name  string
	Local Motion
}
