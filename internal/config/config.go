// Package config loads propagation scenarios from YAML.
package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/connor-mcnaboe/state-propogator/internal/dynamo"
	"github.com/connor-mcnaboe/state-propogator/internal/integrators"
	"github.com/connor-mcnaboe/state-propogator/internal/physics"
	"github.com/connor-mcnaboe/state-propogator/internal/sim"
)

const (
	DefaultTStart = 0.0
	DefaultTEnd   = 86400.0
)

// Scenario is one initial state plus everything needed to propagate it.
// Position is in km, velocity in km/s, times in seconds.
type Scenario struct {
	Name        string     `yaml:"name"`
	Mu          float64    `yaml:"mu"`
	State       [6]float64 `yaml:"state,flow"`
	TStart      float64    `yaml:"t_start"`
	TEnd        float64    `yaml:"t_end"`
	InitialStep float64    `yaml:"initial_step"`
	RTol        float64    `yaml:"rtol"`
	ATol        float64    `yaml:"atol"`
	MaxSteps    int        `yaml:"max_steps"`
	MinStep     float64    `yaml:"min_step,omitempty"`
	MaxStep     float64    `yaml:"max_step,omitempty"`
	MaxSamples  int        `yaml:"max_samples,omitempty"`
}

// BatchFile lists scenarios that share one gravitational parameter.
type BatchFile struct {
	Mu        float64    `yaml:"mu"`
	Workers   int        `yaml:"workers,omitempty"`
	Scenarios []Scenario `yaml:"scenarios"`
}

func DefaultScenario() *Scenario {
	return &Scenario{
		Name:        "default",
		Mu:          physics.MuSun,
		TStart:      DefaultTStart,
		TEnd:        DefaultTEnd,
		InitialStep: integrators.DefaultInitialStep,
		RTol:        integrators.DefaultRTol,
		ATol:        integrators.DefaultATol,
		MaxSteps:    integrators.DefaultMaxSteps,
	}
}

func Load(path string) (*Scenario, error) {
	return LoadOver(path, DefaultScenario())
}

// LoadOver reads a scenario file on top of a copy of base, so keys missing
// from the file keep base's values.
func LoadOver(path string, base *Scenario) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sc := *base
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &sc, nil
}

func Save(path string, sc *Scenario) error {
	data, err := yaml.Marshal(sc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LoadBatch reads a BatchFile. Scenario fields left out fall back to the
// defaults, and a scenario without mu inherits the file's.
func LoadBatch(path string) (*BatchFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw struct {
		Mu        float64     `yaml:"mu"`
		Workers   int         `yaml:"workers"`
		Scenarios []yaml.Node `yaml:"scenarios"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	bf := &BatchFile{Mu: raw.Mu, Workers: raw.Workers}
	if bf.Mu == 0 {
		bf.Mu = physics.MuSun
	}
	for i := range raw.Scenarios {
		sc := DefaultScenario()
		sc.Mu = 0
		sc.Name = fmt.Sprintf("scenario-%d", i)
		if err := raw.Scenarios[i].Decode(sc); err != nil {
			return nil, fmt.Errorf("config: scenario %d: %w", i, err)
		}
		if sc.Mu == 0 {
			sc.Mu = bf.Mu
		}
		if sc.Mu != bf.Mu {
			return nil, dynamo.InvalidConfigf("scenario %q: mu %g differs from batch mu %g", sc.Name, sc.Mu, bf.Mu)
		}
		bf.Scenarios = append(bf.Scenarios, *sc)
	}
	return bf, nil
}

// Validate checks what the integrator cannot: the dynamics parameters and
// the initial state. Tolerances are checked by the integrator itself.
func (s *Scenario) Validate() error {
	if err := physics.NewTwoBody(s.Mu).Validate(); err != nil {
		return err
	}
	if !dynamo.StateVector(s.State).IsValid() {
		return dynamo.InvalidConfigf("scenario %q: initial state is not finite", s.Name)
	}
	if s.TStart == s.TEnd || math.IsNaN(s.TEnd-s.TStart) {
		return dynamo.InvalidConfigf("scenario %q: empty time span [%g, %g]", s.Name, s.TStart, s.TEnd)
	}
	return s.SimConfig().Integration.ForSpan(s.TEnd - s.TStart).Validate()
}

func (s *Scenario) InitialState() dynamo.StateVector {
	return dynamo.StateVector(s.State)
}

func (s *Scenario) Dynamics() physics.TwoBody {
	return physics.NewTwoBody(s.Mu)
}

func (s *Scenario) SimConfig() sim.Config {
	return sim.Config{
		TStart: s.TStart,
		TEnd:   s.TEnd,
		Integration: integrators.Config{
			RTol:        s.RTol,
			ATol:        s.ATol,
			InitialStep: s.InitialStep,
			MaxSteps:    s.MaxSteps,
			MinStep:     s.MinStep,
			MaxStep:     s.MaxStep,
		},
		MaxSamples: s.MaxSamples,
	}
}

// Jobs turns the batch into jobs for sim.Batch.
func (b *BatchFile) Jobs() []sim.Job {
	jobs := make([]sim.Job, len(b.Scenarios))
	for i := range b.Scenarios {
		sc := &b.Scenarios[i]
		jobs[i] = sim.Job{ID: sc.Name, State: sc.InitialState(), Config: sc.SimConfig()}
	}
	return jobs
}
