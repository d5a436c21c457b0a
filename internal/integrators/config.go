package integrators

import (
	"math"

	"github.com/connor-mcnaboe/state-propogator/internal/dynamo"
)

const (
	DefaultRTol        = 1e-6
	DefaultATol        = 1e-8
	DefaultInitialStep = 10.0
	DefaultMaxSteps    = 100000

	// DefaultMinStepRatio sizes the step floor relative to the span when no
	// explicit MinStep is given.
	DefaultMinStepRatio = 1e-12
)

// Config holds the tolerances and step bounds of one propagation.
type Config struct {
	RTol        float64
	ATol        float64
	InitialStep float64
	MaxSteps    int
	MinStep     float64
	MaxStep     float64 // 0 means bounded only by the span
}

func DefaultConfig() Config {
	return Config{
		RTol:        DefaultRTol,
		ATol:        DefaultATol,
		InitialStep: DefaultInitialStep,
		MaxSteps:    DefaultMaxSteps,
	}
}

// ForSpan fills the step bounds left at zero for a span of the given length.
func (c Config) ForSpan(span float64) Config {
	span = math.Abs(span)
	if c.MinStep == 0 {
		c.MinStep = span * DefaultMinStepRatio
	}
	if c.MaxStep == 0 {
		c.MaxStep = span
	}
	return c
}

func (c Config) Validate() error {
	if !(c.RTol > 0) || math.IsInf(c.RTol, 0) {
		return dynamo.InvalidConfigf("rtol must be positive, got %g", c.RTol)
	}
	if !(c.ATol > 0) || math.IsInf(c.ATol, 0) {
		return dynamo.InvalidConfigf("atol must be positive, got %g", c.ATol)
	}
	if !(c.InitialStep > 0) || math.IsInf(c.InitialStep, 0) {
		return dynamo.InvalidConfigf("initial step must be positive, got %g", c.InitialStep)
	}
	if c.MaxSteps <= 0 {
		return dynamo.InvalidConfigf("max steps must be positive, got %d", c.MaxSteps)
	}
	if !(c.MinStep > 0) {
		return dynamo.InvalidConfigf("min step must be positive, got %g", c.MinStep)
	}
	if c.MaxStep < 0 || math.IsNaN(c.MaxStep) {
		return dynamo.InvalidConfigf("max step must not be negative, got %g", c.MaxStep)
	}
	if c.MaxStep > 0 && c.MaxStep < c.MinStep {
		return dynamo.InvalidConfigf("max step %g below min step %g", c.MaxStep, c.MinStep)
	}
	return nil
}
