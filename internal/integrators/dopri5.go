package integrators

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"gonum.org/v1/gonum/floats"

	"github.com/connor-mcnaboe/state-propogator/internal/dynamo"
)

// Dormand-Prince coefficients (RK45)
var (
	a2 = 1.0 / 5.0
	a3 = 3.0 / 10.0
	a4 = 4.0 / 5.0
	a5 = 8.0 / 9.0

	b2 = []float64{1.0 / 5.0}
	b3 = []float64{3.0 / 40.0, 9.0 / 40.0}
	b4 = []float64{44.0 / 45.0, -56.0 / 15.0, 32.0 / 9.0}
	b5 = []float64{19372.0 / 6561.0, -25360.0 / 2187.0, 64448.0 / 6561.0, -212.0 / 729.0}
	b6 = []float64{9017.0 / 3168.0, -355.0 / 33.0, 46732.0 / 5247.0, 49.0 / 176.0, -5103.0 / 18656.0}

	stages = [...]struct {
		a float64
		b []float64
	}{
		{a2, b2}, {a3, b3}, {a4, b4}, {a5, b5}, {1, b6},
	}

	// 5th order weights; stage 7 carries no weight (FSAL).
	c5 = []float64{35.0 / 384.0, 0, 500.0 / 1113.0, 125.0 / 192.0, -2187.0 / 6784.0, 11.0 / 84.0}

	// y5 - y4 weights
	dc = []float64{
		35.0/384.0 - 5179.0/57600.0,
		0,
		500.0/1113.0 - 7571.0/16695.0,
		125.0/192.0 - 393.0/640.0,
		-2187.0/6784.0 + 92097.0/339200.0,
		11.0/84.0 - 187.0/2100.0,
		-1.0 / 40.0,
	}
)

// Sink receives every accepted sample, starting with the initial one.
type Sink func(s dynamo.Sample) error

// PhaseFunc is notified of every state machine transition.
type PhaseFunc func(p Phase, t, h float64)

// Stats summarises one integration run.
type Stats struct {
	Accepted    int
	Rejected    int
	Evaluations int
	LastStep    float64
	NextStep    float64
}

// TrialStep is the outcome of a single Dormand-Prince step attempt.
type TrialStep struct {
	Y5      dynamo.StateVector
	K7      dynamo.StateVector // derivative at (t+h, Y5), reused as next k1
	ErrNorm float64
}

// DOPRI5 is an adaptive Dormand-Prince 5(4) integrator.
type DOPRI5 struct {
	cfg     Config
	ctrl    StepController
	logger  log.Logger
	onPhase PhaseFunc

	k     [7]dynamo.StateVector
	stage dynamo.StateVector
}

type Option func(*DOPRI5)

func WithLogger(l log.Logger) Option {
	return func(d *DOPRI5) {
		if l != nil {
			d.logger = l
		}
	}
}

func WithPhaseFunc(fn PhaseFunc) Option {
	return func(d *DOPRI5) { d.onPhase = fn }
}

func NewDOPRI5(cfg Config, opts ...Option) *DOPRI5 {
	d := &DOPRI5{
		cfg:    cfg,
		ctrl:   NewStepController(cfg.MinStep, cfg.MaxStep),
		logger: log.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = log.With(d.logger, "component", "dopri5")
	return d
}

// Config returns the integrator configuration.
func (d *DOPRI5) Config() Config { return d.cfg }

// Step attempts one step of size h from (t, y) given k1 = f(t, y).
// It does not decide acceptance.
func (d *DOPRI5) Step(sys dynamo.System, t float64, y, k1 dynamo.StateVector, h float64) (TrialStep, error) {
	d.k[0] = k1

	for i, st := range stages {
		d.combine(&d.stage, y, h, st.b)
		k, err := d.derive(sys, t+st.a*h, d.stage)
		if err != nil {
			return TrialStep{}, err
		}
		d.k[i+1] = k
	}

	var out TrialStep
	d.combine(&out.Y5, y, h, c5)
	if !out.Y5.IsValid() {
		return TrialStep{}, fmt.Errorf("%w: 5th order solution", dynamo.ErrNonFiniteResult)
	}

	k7, err := d.derive(sys, t+h, out.Y5)
	if err != nil {
		return TrialStep{}, err
	}
	d.k[6] = k7
	out.K7 = k7

	var e dynamo.StateVector
	for i, w := range dc {
		if w != 0 {
			floats.AddScaled(e[:], h*w, d.k[i][:])
		}
	}
	if !e.IsValid() {
		return TrialStep{}, fmt.Errorf("%w: embedded error estimate", dynamo.ErrNonFiniteResult)
	}

	out.ErrNorm = d.errorNorm(e, y, out.Y5)
	return out, nil
}

// combine writes y + h*Σ w_i k_i into dst.
func (d *DOPRI5) combine(dst *dynamo.StateVector, y dynamo.StateVector, h float64, w []float64) {
	*dst = y
	for i, wi := range w {
		if wi != 0 {
			floats.AddScaled(dst[:], h*wi, d.k[i][:])
		}
	}
}

func (d *DOPRI5) derive(sys dynamo.System, t float64, y dynamo.StateVector) (dynamo.StateVector, error) {
	k, err := sys.Derive(t, y)
	if err != nil {
		return k, err
	}
	if !k.IsValid() {
		return k, fmt.Errorf("%w: stage derivative at t=%g", dynamo.ErrNonFiniteResult, t)
	}
	return k, nil
}

// errorNorm is the RMS of e_i / (atol + rtol*max(|y_i|, |y5_i|)).
func (d *DOPRI5) errorNorm(e, y, y5 dynamo.StateVector) float64 {
	var ratio dynamo.StateVector
	for i := range e {
		sc := d.cfg.ATol + d.cfg.RTol*math.Max(math.Abs(y[i]), math.Abs(y5[i]))
		ratio[i] = e[i] / sc
	}
	return floats.Norm(ratio[:], 2) / math.Sqrt(dynamo.StateDim)
}

// Integrate advances y0 from t0 to tEnd, handing every accepted sample to
// sink. tEnd may be before t0. On failure the returned error is an
// *dynamo.IntegrationError; samples already handed to sink stay valid.
func (d *DOPRI5) Integrate(sys dynamo.System, t0 float64, y0 dynamo.StateVector, tEnd float64, sink Sink) (Stats, error) {
	var stats Stats
	d.transition(Initializing, t0, 0)

	span := tEnd - t0
	if span == 0 || math.IsNaN(span) || math.IsInf(span, 0) {
		d.transition(Failed, t0, 0)
		return stats, dynamo.InvalidConfigf("time span must be finite and non-zero, got [%g, %g]", t0, tEnd)
	}
	cfg := d.cfg.ForSpan(span)
	if err := cfg.Validate(); err != nil {
		d.transition(Failed, t0, 0)
		return stats, err
	}
	if !y0.IsValid() {
		return stats, d.fail(&stats, 0, t0, 0, y0, fmt.Errorf("%w: initial state", dynamo.ErrNonFiniteResult))
	}

	run := *d
	run.cfg = cfg
	run.ctrl.MinStep = cfg.MinStep
	run.ctrl.MaxStep = cfg.MaxStep
	return run.loop(sys, t0, y0, tEnd, sink)
}

func (d *DOPRI5) loop(sys dynamo.System, t0 float64, y0 dynamo.StateVector, tEnd float64, sink Sink) (Stats, error) {
	var stats Stats
	dir := math.Copysign(1, tEnd-t0)
	t, y := t0, y0

	h := dir * math.Min(d.cfg.InitialStep, math.Abs(tEnd-t0))
	if d.cfg.MaxStep > 0 && math.Abs(h) > d.cfg.MaxStep {
		h = dir * d.cfg.MaxStep
	}

	k1, err := d.derive(sys, t, y)
	stats.Evaluations++
	if err != nil {
		return stats, d.fail(&stats, 0, t, h, y, err)
	}
	if err := sink(dynamo.Sample{T: t, State: y}); err != nil {
		return stats, d.fail(&stats, 0, t, h, y, err)
	}

	rejectedLast := false
	for {
		if stats.Accepted >= d.cfg.MaxSteps {
			return stats, d.fail(&stats, stats.Accepted, t, h, y,
				fmt.Errorf("%w: %d accepted steps", dynamo.ErrMaxStepsExceeded, stats.Accepted))
		}
		d.transition(Stepping, t, h)

		last := dir*(t+h-tEnd) >= 0
		if last {
			h = tEnd - t
		} else if t+h == t {
			return stats, d.fail(&stats, stats.Accepted, t, h, y,
				fmt.Errorf("%w: step %g does not advance t=%g", dynamo.ErrStepSizeUnderflow, h, t))
		}

		trial, err := d.Step(sys, t, y, k1, h)
		stats.Evaluations += 6
		if err != nil {
			return stats, d.fail(&stats, stats.Accepted, t, h, y, err)
		}

		ctrl := d.ctrl
		if rejectedLast {
			ctrl = ctrl.Damped()
		}
		accept, next := ctrl.Evaluate(trial.ErrNorm, h)

		if !accept {
			stats.Rejected++
			rejectedLast = true
			d.transition(Rejected, t, h)
			level.Debug(d.logger).Log("msg", "step rejected", "t", t, "h", h, "err_norm", trial.ErrNorm, "next", next)
			if ctrl.Underflow(next) {
				return stats, d.fail(&stats, stats.Accepted, t, next, y,
					fmt.Errorf("%w: %g < %g", dynamo.ErrStepSizeUnderflow, math.Abs(next), d.cfg.MinStep))
			}
			h = next
			continue
		}

		if last {
			t = tEnd
		} else {
			t += h
		}
		y, k1 = trial.Y5, trial.K7
		stats.Accepted++
		stats.LastStep = h
		rejectedLast = false
		d.transition(Accepted, t, h)

		if err := sink(dynamo.Sample{T: t, State: y}); err != nil {
			return stats, d.fail(&stats, stats.Accepted, t, h, y, err)
		}

		if ctrl.Underflow(next) {
			next = dir * d.cfg.MinStep
		}
		stats.NextStep = next

		if last {
			d.transition(Converged, t, h)
			level.Debug(d.logger).Log("msg", "converged", "t", t, "accepted", stats.Accepted, "rejected", stats.Rejected)
			return stats, nil
		}
		h = next
	}
}

func (d *DOPRI5) fail(stats *Stats, step int, t, h float64, y dynamo.StateVector, err error) error {
	d.transition(Failed, t, h)
	stats.NextStep = h

	var ie *dynamo.IntegrationError
	if errors.As(err, &ie) {
		return err
	}
	ie = &dynamo.IntegrationError{Step: step, Time: t, StepSize: h, State: y, Wrapped: err}
	level.Error(d.logger).Log("msg", "integration failed", "step", step, "t", t, "h", h, "err", err)
	return ie
}

func (d *DOPRI5) transition(p Phase, t, h float64) {
	if d.onPhase != nil {
		d.onPhase(p, t, h)
	}
}
