// Package trajectory records the accepted samples of a propagation.
package trajectory

import (
	"errors"
	"fmt"

	"github.com/connor-mcnaboe/state-propogator/internal/dynamo"
)

// ErrNonMonotonic is returned when a sample does not move time forward in
// the direction of integration.
var ErrNonMonotonic = errors.New("trajectory: sample time not strictly monotonic")

// Trajectory is an ordered sequence of samples. Times are strictly
// increasing, or strictly decreasing for a backward propagation.
type Trajectory struct {
	Samples []dynamo.Sample
}

func (t Trajectory) Len() int { return len(t.Samples) }

// First returns the initial sample. The zero Sample is returned for an
// empty trajectory.
func (t Trajectory) First() dynamo.Sample {
	if len(t.Samples) == 0 {
		return dynamo.Sample{}
	}
	return t.Samples[0]
}

// Last returns the final sample.
func (t Trajectory) Last() dynamo.Sample {
	if len(t.Samples) == 0 {
		return dynamo.Sample{}
	}
	return t.Samples[len(t.Samples)-1]
}

// FinalState is shorthand for Last().State.
func (t Trajectory) FinalState() dynamo.StateVector {
	return t.Last().State
}

func (t Trajectory) Times() []float64 {
	out := make([]float64, len(t.Samples))
	for i, s := range t.Samples {
		out[i] = s.T
	}
	return out
}

func (t Trajectory) States() []dynamo.StateVector {
	out := make([]dynamo.StateVector, len(t.Samples))
	for i, s := range t.Samples {
		out[i] = s.State
	}
	return out
}

// Component extracts one state component across all samples.
func (t Trajectory) Component(idx int) []float64 {
	out := make([]float64, len(t.Samples))
	for i, s := range t.Samples {
		out[i] = s.State[idx]
	}
	return out
}

// Recorder is the append-only buffer filled during one propagation.
type Recorder struct {
	samples    []dynamo.Sample
	maxSamples int
	dir        float64
}

type Option func(*Recorder)

// WithCapacity pre-allocates room for n samples.
func WithCapacity(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.samples = make([]dynamo.Sample, 0, n)
		}
	}
}

// WithMaxSamples bounds memory. Once the buffer would exceed n samples,
// every other interior sample is dropped; the first and the newest are
// always kept. Values below 3 disable the bound.
func WithMaxSamples(n int) Option {
	return func(r *Recorder) {
		if n >= 3 {
			r.maxSamples = n
		}
	}
}

// SetMaxSamples changes the bound of a recorder, with the same rules as
// WithMaxSamples. It applies from the next Append on.
func (r *Recorder) SetMaxSamples(n int) {
	r.maxSamples = 0
	WithMaxSamples(n)(r)
}

func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Append adds s after the current last sample.
func (r *Recorder) Append(s dynamo.Sample) error {
	if !s.State.IsValid() {
		return fmt.Errorf("%w: sample at t=%g", dynamo.ErrNonFiniteResult, s.T)
	}

	if n := len(r.samples); n > 0 {
		dt := s.T - r.samples[n-1].T
		if r.dir == 0 {
			if dt == 0 {
				return fmt.Errorf("%w: repeated t=%g", ErrNonMonotonic, s.T)
			}
			if dt > 0 {
				r.dir = 1
			} else {
				r.dir = -1
			}
		} else if dt*r.dir <= 0 {
			return fmt.Errorf("%w: t=%g after t=%g", ErrNonMonotonic, s.T, r.samples[n-1].T)
		}
	}

	r.samples = append(r.samples, s)
	if r.maxSamples > 0 && len(r.samples) > r.maxSamples {
		r.thin()
	}
	return nil
}

func (r *Recorder) thin() {
	n := len(r.samples)
	newest := r.samples[n-1]
	kept := r.samples[:1]
	for i := 2; i < n-1; i += 2 {
		kept = append(kept, r.samples[i])
	}
	r.samples = append(kept, newest)
}

func (r *Recorder) Len() int { return len(r.samples) }

// Reset empties the recorder, keeping its buffer and options.
func (r *Recorder) Reset() {
	r.samples = r.samples[:0]
	r.dir = 0
}

// Last returns the newest sample, false when nothing was recorded.
func (r *Recorder) Last() (dynamo.Sample, bool) {
	if len(r.samples) == 0 {
		return dynamo.Sample{}, false
	}
	return r.samples[len(r.samples)-1], true
}

// Samples returns a copy of the recorded sequence.
func (r *Recorder) Samples() []dynamo.Sample {
	out := make([]dynamo.Sample, len(r.samples))
	copy(out, r.samples)
	return out
}

// Trajectory hands the recorded samples over to the caller.
func (r *Recorder) Trajectory() Trajectory {
	return Trajectory{Samples: r.Samples()}
}
