package integrators

import "math"

// Default step size control constants.
const (
	DefaultSafety = 0.9
	DefaultFacMin = 0.2
	DefaultFacMax = 10.0

	// errExponent is -1/(q+1) with q=4 the order of the embedded estimate.
	errExponent = -1.0 / 5.0
)

// StepController decides whether a trial step is accepted and how large the
// next one should be. It holds no state between calls.
type StepController struct {
	Safety  float64
	FacMin  float64
	FacMax  float64
	MinStep float64
	MaxStep float64 // 0 means unbounded
}

func NewStepController(minStep, maxStep float64) StepController {
	return StepController{
		Safety:  DefaultSafety,
		FacMin:  DefaultFacMin,
		FacMax:  DefaultFacMax,
		MinStep: minStep,
		MaxStep: maxStep,
	}
}

// Damped returns a copy that may not grow the step. Used for the step
// following a rejection.
func (c StepController) Damped() StepController {
	c.FacMax = math.Min(c.FacMax, 1.0)
	return c
}

// Evaluate accepts the step when errNorm <= 1 and proposes the next step
// size. The sign of h is preserved so backward integration works unchanged.
func (c StepController) Evaluate(errNorm, h float64) (bool, float64) {
	accept := errNorm <= 1

	var factor float64
	switch {
	case errNorm == 0:
		factor = c.FacMax
	case math.IsNaN(errNorm) || math.IsInf(errNorm, 1):
		accept = false
		factor = c.FacMin
	default:
		factor = c.Safety * math.Pow(errNorm, errExponent)
		factor = math.Max(c.FacMin, math.Min(c.FacMax, factor))
	}
	if !accept {
		// a rejected step never grows
		factor = math.Min(factor, 1.0)
	}

	next := h * factor
	if c.MaxStep > 0 && math.Abs(next) > c.MaxStep {
		next = math.Copysign(c.MaxStep, h)
	}
	return accept, next
}

// Underflow reports whether h is below the configured floor.
func (c StepController) Underflow(h float64) bool {
	return math.Abs(h) < c.MinStep
}
