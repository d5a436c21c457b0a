// Package physics provides the gravitational models the propagator integrates.
//
// Each model implements the [dynamo.System] interface, defining the
// differential equations governing the state's evolution:
//
//   - [TwoBody]: point mass attractor, unperturbed Keplerian motion
//
// [TwoBody] also implements [dynamo.Hamiltonian] so that energy drift can be
// monitored over a trajectory.
//
// # Energy Conservation
//
//	dyn := physics.NewTwoBody(physics.MuSun)
//	if h, ok := dyn.(dynamo.Hamiltonian); ok {
//	    energy := h.Energy(state)
//	}
package physics
