package sim

import (
	"time"

	"github.com/connor-mcnaboe/state-propogator/internal/integrators"
	"github.com/connor-mcnaboe/state-propogator/internal/trajectory"
)

// Config describes one propagation: the time span and the integration
// settings.
type Config struct {
	TStart      float64
	TEnd        float64
	Integration integrators.Config
	MaxSamples  int // 0 keeps every accepted sample
}

func DefaultConfig() Config {
	return Config{
		TStart:      0,
		TEnd:        86400,
		Integration: integrators.DefaultConfig(),
	}
}

// Result is what a propagation hands back. On failure Trajectory holds the
// samples accepted before the error.
type Result struct {
	Trajectory trajectory.Trajectory
	Stats      integrators.Stats
	Metrics    map[string]float64
	Elapsed    time.Duration
}
