package metrics

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/connor-mcnaboe/state-propogator/internal/dynamo"
)

// AngularMomentumDrift tracks max |h - h0| / |h0| with h = r × v, which
// bounds both the magnitude and the direction change of the orbit normal.
type AngularMomentumDrift struct {
	name     string
	initial  r3.Vec
	maxDrift float64
	samples  int
}

func NewAngularMomentumDrift() *AngularMomentumDrift {
	return &AngularMomentumDrift{name: "angular_momentum_drift"}
}

func (a *AngularMomentumDrift) Name() string { return a.name }

func (a *AngularMomentumDrift) Observe(s dynamo.Sample) {
	h := r3.Cross(s.State.Position(), s.State.Velocity())
	if a.samples == 0 {
		a.initial = h
	}
	a.samples++

	if n := r3.Norm(a.initial); n != 0 {
		a.maxDrift = math.Max(a.maxDrift, r3.Norm(r3.Sub(h, a.initial))/n)
	}
}

func (a *AngularMomentumDrift) Value() float64 { return a.maxDrift }

func (a *AngularMomentumDrift) Reset() {
	a.initial = r3.Vec{}
	a.maxDrift = 0
	a.samples = 0
}
