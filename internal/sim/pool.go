package sim

import (
	"sync"

	"github.com/connor-mcnaboe/state-propogator/internal/trajectory"
)

// RecorderPool recycles trajectory buffers between batch jobs. Recorders
// hand out copies of their samples, so a buffer can be reused as soon as
// the job that filled it has built its Result.
type RecorderPool struct {
	pool       sync.Pool
	maxSamples int
}

func NewRecorderPool(maxSamples int) *RecorderPool {
	return &RecorderPool{
		maxSamples: maxSamples,
		pool: sync.Pool{
			New: func() interface{} {
				return trajectory.NewRecorder(trajectory.WithMaxSamples(maxSamples))
			},
		},
	}
}

// Get returns an empty recorder bounded to maxSamples, or to the pool's
// default bound when maxSamples is 0.
func (p *RecorderPool) Get(maxSamples int) *trajectory.Recorder {
	if maxSamples == 0 {
		maxSamples = p.maxSamples
	}
	r := p.pool.Get().(*trajectory.Recorder)
	r.SetMaxSamples(maxSamples)
	return r
}

func (p *RecorderPool) Put(r *trajectory.Recorder) {
	r.Reset()
	p.pool.Put(r)
}
