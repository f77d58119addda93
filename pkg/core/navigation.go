// pkg/core/navigation.go
package core

// NeighborCandidate is a nearby panorama positioned relative to the current one.
type NeighborCandidate struct {
	Panorama Panorama
	Position Spherical
	Scale    float64
}

// MarkerState is the single navigation indicator drawn by the host.
// Candidate is nil when the marker is hidden.
type MarkerState struct {
	Position  Spherical
	Visible   bool
	Candidate *NeighborCandidate
}

// Bound reports whether the marker currently points at a candidate.
func (m MarkerState) Bound() bool {
	return m.Candidate != nil
}
