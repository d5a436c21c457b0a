// Package dynamo provides the core primitives shared by the propagator.
//
// The package defines the fundamental types for integrating the two-body
// equations of motion:
//
//   - [StateVector]: position and velocity, a six component value type
//   - [Sample]: a state tagged with its epoch
//   - [System]: interface for first order ODE systems (dy/dt = f(t, y))
//   - [Hamiltonian]: systems with a conserved energy
//
// # Errors
//
// Every failure of a propagation unwraps to one of the sentinel errors
// declared in this package, so callers can branch with [errors.Is]:
//
//	traj, err := sim.Propagate(y0, mu, 0, 86400, 10, 1e-6, 1e-8, 100000)
//	if errors.Is(err, dynamo.ErrSingularState) {
//	    // near-collision trajectory
//	}
//
// # Thread Safety
//
// [StateVector] and [Sample] are plain values and are safe to share. A
// [System] implementation must not carry mutable state; the propagator
// calls it from a single goroutine per propagation, but batch runs share
// one System value across goroutines.
package dynamo
