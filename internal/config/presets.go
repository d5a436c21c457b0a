package config

import (
	"sort"

	"github.com/connor-mcnaboe/state-propogator/internal/physics"
)

const day = 86400.0

var heliocentric = [6]float64{
	-1.236327193104345e+08, -1.683146780978357e+08, -1.716864100448400e+07,
	1.732704689147723e+01, -1.411175177586654e+01, -1.496047022540958e+00,
}

// Presets are the reference scenarios: heliocentric cruise states in km and
// km/s, plus a low Earth orbit.
var Presets = map[string]*Scenario{
	"helio-1d": {
		Name: "helio-1d", Mu: physics.MuSun,
		State: heliocentric,
		TEnd: day, InitialStep: 10, RTol: 1e-6, ATol: 1e-8, MaxSteps: 100000,
	},
	"helio-2d": {
		Name: "helio-2d", Mu: physics.MuSun,
		State: heliocentric,
		TEnd: 2 * day, InitialStep: 10, RTol: 1e-6, ATol: 1e-8, MaxSteps: 100000,
	},
	"cruise": {
		Name: "cruise", Mu: physics.MuSun,
		State: [6]float64{-131386230.977293, 69971484.9501445, -718889.822774674, -17.45306, -28.43202, -0.6151334},
		TEnd: 6.1894 * day, InitialStep: 10, RTol: 1e-6, ATol: 1e-8, MaxSteps: 100000,
	},
	"leo": {
		Name: "leo", Mu: physics.MuEarth,
		State: [6]float64{7000, 0, 0, 0, 7.546053, 0},
		TEnd: 5828.5, InitialStep: 10, RTol: 1e-9, ATol: 1e-9, MaxSteps: 100000,
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Scenario {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	sc := *p
	return &sc
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
