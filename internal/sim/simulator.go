package sim

import (
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/connor-mcnaboe/state-propogator/internal/dynamo"
	"github.com/connor-mcnaboe/state-propogator/internal/integrators"
	"github.com/connor-mcnaboe/state-propogator/internal/metrics"
	"github.com/connor-mcnaboe/state-propogator/internal/physics"
	"github.com/connor-mcnaboe/state-propogator/internal/trajectory"
)

// Propagator runs propagations of one dynamics model. Metrics are stateful,
// so a Propagator must not be used from several goroutines at once; use
// Batch for parallel work.
type Propagator struct {
	dyn     dynamo.System
	logger  log.Logger
	metrics []metrics.Metric
	pool    *RecorderPool
}

type Option func(*Propagator)

func WithLogger(l log.Logger) Option {
	return func(p *Propagator) {
		if l != nil {
			p.logger = l
		}
	}
}

func WithMetrics(ms ...metrics.Metric) Option {
	return func(p *Propagator) { p.metrics = append(p.metrics, ms...) }
}

func withPool(pool *RecorderPool) Option {
	return func(p *Propagator) { p.pool = pool }
}

func New(dyn dynamo.System, opts ...Option) *Propagator {
	p := &Propagator{
		dyn:    dyn,
		logger: log.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type validator interface {
	Validate() error
}

// Run propagates y0 over cfg's span. The returned Result is never nil: when
// err != nil it carries the partial trajectory and statistics up to the
// failing step, for diagnostics.
func (p *Propagator) Run(y0 dynamo.StateVector, cfg Config) (*Result, error) {
	result := &Result{Metrics: make(map[string]float64)}

	if v, ok := p.dyn.(validator); ok {
		if err := v.Validate(); err != nil {
			return result, err
		}
	}

	var rec *trajectory.Recorder
	if p.pool != nil {
		rec = p.pool.Get(cfg.MaxSamples)
		defer p.pool.Put(rec)
	} else {
		rec = trajectory.NewRecorder(trajectory.WithMaxSamples(cfg.MaxSamples))
	}

	for _, m := range p.metrics {
		m.Reset()
	}

	sink := func(s dynamo.Sample) error {
		if err := rec.Append(s); err != nil {
			return err
		}
		for _, m := range p.metrics {
			m.Observe(s)
		}
		return nil
	}

	integ := integrators.NewDOPRI5(cfg.Integration,
		integrators.WithLogger(p.logger),
		integrators.WithPhaseFunc(func(ph integrators.Phase, t, h float64) {
			if ph.Terminal() {
				level.Debug(p.logger).Log("msg", "integration finished", "phase", ph, "t", t, "h", h)
			}
		}),
	)

	start := time.Now()
	stats, err := integ.Integrate(p.dyn, cfg.TStart, y0, cfg.TEnd, sink)
	result.Elapsed = time.Since(start)
	result.Stats = stats
	result.Trajectory = rec.Trajectory()

	for _, m := range p.metrics {
		result.Metrics[m.Name()] = m.Value()
	}

	if err != nil {
		level.Warn(p.logger).Log("msg", "propagation failed", "t_start", cfg.TStart, "t_end", cfg.TEnd, "err", err)
		return result, err
	}

	level.Info(p.logger).Log(
		"msg", "propagation converged",
		"t_end", cfg.TEnd,
		"accepted", stats.Accepted,
		"rejected", stats.Rejected,
		"evaluations", stats.Evaluations,
		"elapsed", result.Elapsed,
	)
	return result, nil
}

// Propagate integrates the two-body problem for initialState around an
// attractor of gravitational parameter mu from tStart to tEnd.
//
// The first sample is (tStart, initialState) and the last sample lies
// exactly at tEnd. On failure the partial trajectory accepted so far is
// returned alongside the error; callers that only want complete results
// should discard it. The error unwraps to one of the dynamo sentinels.
func Propagate(initialState dynamo.StateVector, mu, tStart, tEnd, initialStep, rtol, atol float64, maxSteps uint32) (trajectory.Trajectory, error) {
	cfg := Config{
		TStart: tStart,
		TEnd:   tEnd,
		Integration: integrators.Config{
			RTol:        rtol,
			ATol:        atol,
			InitialStep: initialStep,
			MaxSteps:    int(maxSteps),
		},
	}

	res, err := New(physics.NewTwoBody(mu)).Run(initialState, cfg)
	return res.Trajectory, err
}
