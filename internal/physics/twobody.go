package physics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/connor-mcnaboe/state-propogator/internal/dynamo"
)

// Standard gravitational parameters in km^3/s^2.
const (
	MuSun   = 1.327e11
	MuEarth = 3.986004418e5
)

// DefaultSingularityEpsilon is the position magnitude below which the
// acceleration is considered singular.
const DefaultSingularityEpsilon = 1e-9

// TwoBody is the unperturbed two-body model.
// State: [x, y, z, vx, vy, vz]
type TwoBody struct {
	mu      float64 // Gravitational parameter
	epsilon float64 // Singularity guard on |r|
}

func NewTwoBody(mu float64) TwoBody {
	return TwoBody{mu: mu, epsilon: DefaultSingularityEpsilon}
}

// WithEpsilon returns a copy of the model using eps as singularity guard.
func (tb TwoBody) WithEpsilon(eps float64) TwoBody {
	tb.epsilon = eps
	return tb
}

func (tb TwoBody) Mu() float64      { return tb.mu }
func (tb TwoBody) Epsilon() float64 { return tb.epsilon }

// Validate reports whether the parameters can be integrated at all.
func (tb TwoBody) Validate() error {
	if !(tb.mu > 0) || math.IsInf(tb.mu, 0) {
		return dynamo.InvalidConfigf("mu must be positive and finite, got %g", tb.mu)
	}
	if !(tb.epsilon >= 0) || math.IsInf(tb.epsilon, 0) {
		return dynamo.InvalidConfigf("singularity epsilon must be finite and not negative, got %g", tb.epsilon)
	}
	return nil
}

func (tb TwoBody) Derive(_ float64, y dynamo.StateVector) (dynamo.StateVector, error) {
	r := math.Sqrt(y[0]*y[0] + y[1]*y[1] + y[2]*y[2])
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return dynamo.StateVector{}, fmt.Errorf("%w: position %v", dynamo.ErrNonFiniteResult, y.Position())
	}
	if r < tb.epsilon || r == 0 {
		return dynamo.StateVector{}, fmt.Errorf("%w: |r|=%g below %g", dynamo.ErrSingularState, r, tb.epsilon)
	}

	k := -tb.mu / (r * r * r)
	return dynamo.StateVector{
		y[3], y[4], y[5],
		k * y[0], k * y[1], k * y[2],
	}, nil
}

// Energy returns the specific orbital energy v²/2 − mu/r.
func (tb TwoBody) Energy(y dynamo.StateVector) float64 {
	v := r3.Norm(y.Velocity())
	return 0.5*v*v - tb.mu/r3.Norm(y.Position())
}

// AngularMomentum returns the specific angular momentum r × v.
func (tb TwoBody) AngularMomentum(y dynamo.StateVector) r3.Vec {
	return r3.Cross(y.Position(), y.Velocity())
}
