package metrics

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/connor-mcnaboe/state-propogator/internal/dynamo"
)

// MinRadius reports the closest sampled approach to the attractor.
type MinRadius struct {
	name    string
	min     float64
	samples int
}

func NewMinRadius() *MinRadius {
	return &MinRadius{name: "min_radius", min: math.Inf(1)}
}

func (m *MinRadius) Name() string { return m.name }

func (m *MinRadius) Observe(s dynamo.Sample) {
	m.samples++
	m.min = math.Min(m.min, r3.Norm(s.State.Position()))
}

func (m *MinRadius) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return m.min
}

func (m *MinRadius) Reset() {
	m.min = math.Inf(1)
	m.samples = 0
}
