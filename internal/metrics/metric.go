package metrics

import (
	"github.com/connor-mcnaboe/state-propogator/internal/dynamo"
	"github.com/connor-mcnaboe/state-propogator/internal/trajectory"
)

// Metric accumulates a scalar over the samples of a trajectory.
type Metric interface {
	Name() string
	Observe(s dynamo.Sample)
	Value() float64
	Reset()
}

// Evaluate resets every metric, feeds it the whole trajectory and collects
// the values by name.
func Evaluate(traj trajectory.Trajectory, ms ...Metric) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		m.Reset()
		for _, s := range traj.Samples {
			m.Observe(s)
		}
		out[m.Name()] = m.Value()
	}
	return out
}

// Orbital returns the conservation metrics that apply to an unperturbed
// two-body trajectory.
func Orbital(dyn dynamo.Hamiltonian) []Metric {
	return []Metric{
		NewEnergyDrift(dyn),
		NewAngularMomentumDrift(),
		NewMinRadius(),
	}
}
