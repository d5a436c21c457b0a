package dynamo

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// StateDim is the number of components of a StateVector.
const StateDim = 6

// StateVector holds position (x, y, z) followed by velocity (vx, vy, vz).
// Units are whatever the caller uses consistently, e.g. km and km/s.
type StateVector [StateDim]float64

// NewStateVector builds a state from position and velocity vectors.
func NewStateVector(r, v r3.Vec) StateVector {
	return StateVector{r.X, r.Y, r.Z, v.X, v.Y, v.Z}
}

// Position returns the position part of the state.
func (s StateVector) Position() r3.Vec {
	return r3.Vec{X: s[0], Y: s[1], Z: s[2]}
}

// Velocity returns the velocity part of the state.
func (s StateVector) Velocity() r3.Vec {
	return r3.Vec{X: s[3], Y: s[4], Z: s[5]}
}

func (s StateVector) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s StateVector) Add(other StateVector) StateVector {
	var result StateVector
	for i := range s {
		result[i] = s[i] + other[i]
	}
	return result
}

func (s StateVector) Sub(other StateVector) StateVector {
	var result StateVector
	for i := range s {
		result[i] = s[i] - other[i]
	}
	return result
}

func (s StateVector) Scale(factor float64) StateVector {
	var result StateVector
	for i := range s {
		result[i] = s[i] * factor
	}
	return result
}

// Slice returns the components as a fresh slice.
func (s StateVector) Slice() []float64 {
	out := make([]float64, StateDim)
	copy(out, s[:])
	return out
}

func (s StateVector) String() string {
	return fmt.Sprintf("r=[%.6f %.6f %.6f] v=[%.9f %.9f %.9f]", s[0], s[1], s[2], s[3], s[4], s[5])
}

// Sample is a state tagged with the time it holds at.
type Sample struct {
	T     float64
	State StateVector
}

// System is a first order ODE right hand side. Derive must be pure.
type System interface {
	Derive(t float64, y StateVector) (StateVector, error)
}

// Hamiltonian systems expose a conserved scalar.
type Hamiltonian interface {
	Energy(y StateVector) float64
}

// SystemFunc adapts a plain function to the System interface.
type SystemFunc func(t float64, y StateVector) (StateVector, error)

func (f SystemFunc) Derive(t float64, y StateVector) (StateVector, error) {
	return f(t, y)
}
