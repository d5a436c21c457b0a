package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for propagation operations.
var (
	// ErrInvalidConfig indicates a non-positive tolerance, step bound or step
	// count, detected before integration starts.
	ErrInvalidConfig = errors.New("dynamo: invalid integration config")

	// ErrSingularState indicates the position magnitude collapsed below the
	// safe epsilon during a derivative evaluation.
	ErrSingularState = errors.New("dynamo: singular state (position magnitude near zero)")

	// ErrNonFiniteResult indicates a stage or solution component became NaN or Inf.
	ErrNonFiniteResult = errors.New("dynamo: non-finite result (NaN or Inf detected)")

	// ErrStepSizeUnderflow indicates adaptive timestep became too small.
	ErrStepSizeUnderflow = errors.New("dynamo: adaptive timestep below minimum")

	// ErrMaxStepsExceeded indicates the accepted step ceiling was hit before t_end.
	ErrMaxStepsExceeded = errors.New("dynamo: maximum step count exceeded")
)

// IntegrationError wraps an error with the context of the step that failed.
type IntegrationError struct {
	Step     int
	Time     float64
	StepSize float64
	State    StateVector
	Wrapped  error
}

func (e *IntegrationError) Error() string {
	return fmt.Sprintf("step %d (t=%.6f, h=%.3e): %s", e.Step, e.Time, e.StepSize, e.Wrapped)
}

func (e *IntegrationError) Unwrap() error {
	return e.Wrapped
}

// InvalidConfigf returns an error wrapping ErrInvalidConfig.
func InvalidConfigf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
