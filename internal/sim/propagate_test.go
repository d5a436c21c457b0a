package sim

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/connor-mcnaboe/state-propogator/internal/dynamo"
	"github.com/connor-mcnaboe/state-propogator/internal/metrics"
	"github.com/connor-mcnaboe/state-propogator/internal/physics"
)

// leo is an eccentric low Earth orbit starting at periapsis, period ≈ 7170 s.
var leo = dynamo.StateVector{7000, 0, 0, 0, 8.0, 0.5}

const leoPeriod = 7170.0

var _ = Describe("Propagate", func() {
	Context("heliocentric cruise", func() {
		initial := dynamo.StateVector{
			-1.236327193104345e+08, -1.683146780978357e+08, -1.716864100448400e+07,
			1.732704689147723e+01, -1.411175177586654e+01, -1.496047022540958e+00,
		}

		cruise := dynamo.StateVector{
			-131386230.977293, 69971484.9501445, -718889.822774674,
			-1.745306e+01, -2.843202e+01, -6.151334e-01,
		}

		DescribeTable("matches the reference ephemeris",
			func(y0 dynamo.StateVector, tEnd float64, expected dynamo.StateVector, epsPos, epsVel float64) {
				traj, err := Propagate(y0, physics.MuSun, 0, tEnd, 10, 1e-6, 1e-8, 100000)
				Expect(err).NotTo(HaveOccurred())

				final := traj.FinalState()
				for i := 0; i < 3; i++ {
					Expect(final[i]).To(BeNumerically("~", expected[i], epsPos))
					Expect(final[i+3]).To(BeNumerically("~", expected[i+3], epsVel))
				}
			},
			Entry("one day", initial, 1440.0*60.0,
				dynamo.StateVector{-122129028.2, -169524748.1, -17296960.3, 17.480, -13.899, -1.474}, 200.0, 0.5),
			Entry("two days", initial, 2.0*1440.0*60.0,
				dynamo.StateVector{
					-1.206121920408666e+08, -1.707163797188062e+08, -1.742339387827656e+07,
					1.763133062266370e+01, -1.368493924400783e+01, -1.452397742856931e+00,
				}, 500.0, 0.5),
			Entry("cruise over 6.1894 days", cruise, 6.1894*86400.0,
				dynamo.StateVector{
					-139952726.88639712, 54397052.70895448, -1043117.4394616715,
					-14.567781976116068, -29.755390699878056, -0.5964095238080424,
				}, 250.0, 1e-3),
		)

		It("starts at the initial state and ends exactly at t_end", func() {
			traj, err := Propagate(initial, physics.MuSun, 0, 86400, 10, 1e-6, 1e-8, 100000)
			Expect(err).NotTo(HaveOccurred())

			Expect(traj.First().T).To(Equal(0.0))
			Expect(traj.First().State).To(Equal(initial))
			Expect(traj.Last().T).To(Equal(86400.0))
		})
	})

	Context("conservation over several orbits", func() {
		var (
			dyn     physics.TwoBody
			samples []dynamo.Sample
		)

		BeforeEach(func() {
			dyn = physics.NewTwoBody(physics.MuEarth)
			traj, err := Propagate(leo, physics.MuEarth, 0, 3*leoPeriod, 10, 1e-9, 1e-9, 100000)
			Expect(err).NotTo(HaveOccurred())
			samples = traj.Samples
			Expect(len(samples)).To(BeNumerically(">", 10))
		})

		It("keeps the specific orbital energy constant", func() {
			e0 := dyn.Energy(leo)
			for _, s := range samples {
				Expect(math.Abs(dyn.Energy(s.State)-e0) / math.Abs(e0)).To(BeNumerically("<", 1e-6))
			}
		})

		It("keeps the angular momentum vector constant", func() {
			h0 := dyn.AngularMomentum(leo)
			for _, s := range samples {
				h := dyn.AngularMomentum(s.State)
				Expect(r3.Norm(r3.Sub(h, h0)) / r3.Norm(h0)).To(BeNumerically("<", 1e-6))
			}
		})

		It("moves time strictly forward", func() {
			for i := 1; i < len(samples); i++ {
				Expect(samples[i].T).To(BeNumerically(">", samples[i-1].T))
			}
			Expect(samples[len(samples)-1].T).To(Equal(3 * leoPeriod))
		})

		It("never records a non-finite component", func() {
			for _, s := range samples {
				Expect(s.State.IsValid()).To(BeTrue())
			}
		})
	})

	It("takes at least as many steps when tolerances tighten", func() {
		prev := 0
		for _, tol := range []float64{1e-4, 1e-6, 1e-8, 1e-10} {
			traj, err := Propagate(leo, physics.MuEarth, 0, leoPeriod, 10, tol, tol, 100000)
			Expect(err).NotTo(HaveOccurred())
			Expect(traj.Len()).To(BeNumerically(">=", prev), "rtol=%g", tol)
			prev = traj.Len()
		}
	})

	It("returns to the initial state when run forward then backward", func() {
		const rtol = 1e-10
		fwd, err := Propagate(leo, physics.MuEarth, 0, leoPeriod/2, 10, rtol, rtol, 100000)
		Expect(err).NotTo(HaveOccurred())

		back, err := Propagate(fwd.FinalState(), physics.MuEarth, leoPeriod/2, 0, 10, rtol, rtol, 100000)
		Expect(err).NotTo(HaveOccurred())
		Expect(back.Last().T).To(Equal(0.0))

		diff := back.FinalState().Sub(leo)
		Expect(r3.Norm(diff.Position())).To(BeNumerically("<", 1e-2))
		Expect(r3.Norm(diff.Velocity())).To(BeNumerically("<", 1e-5))
	})

	It("reports a singular state instead of propagating NaN", func() {
		traj, err := Propagate(dynamo.StateVector{0, 0, 0, 1, 0, 0}, physics.MuEarth, 0, 100, 1, 1e-6, 1e-8, 1000)
		Expect(err).To(MatchError(dynamo.ErrSingularState))
		Expect(traj.Len()).To(Equal(0))
	})

	It("reports a singular state for a radial plunge", func() {
		traj, err := Propagate(dynamo.StateVector{7000, 0, 0, -1e3, 0, 0}, physics.MuEarth, 0, 100, 1, 1e-6, 1e-8, 100000)
		Expect(err).To(HaveOccurred())
		Expect(err).To(Or(
			MatchError(dynamo.ErrSingularState),
			MatchError(dynamo.ErrStepSizeUnderflow),
			MatchError(dynamo.ErrNonFiniteResult),
		))
		for _, s := range traj.Samples {
			Expect(s.State.IsValid()).To(BeTrue())
		}
	})

	DescribeTable("rejects invalid configuration before stepping",
		func(mu, initialStep, rtol, atol float64, maxSteps uint32, tEnd float64) {
			traj, err := Propagate(leo, mu, 0, tEnd, initialStep, rtol, atol, maxSteps)
			Expect(err).To(MatchError(dynamo.ErrInvalidConfig))
			Expect(traj.Len()).To(Equal(0))
		},
		Entry("zero rtol", physics.MuEarth, 10.0, 0.0, 1e-8, uint32(100), 100.0),
		Entry("negative atol", physics.MuEarth, 10.0, 1e-6, -1e-8, uint32(100), 100.0),
		Entry("zero initial step", physics.MuEarth, 0.0, 1e-6, 1e-8, uint32(100), 100.0),
		Entry("negative initial step", physics.MuEarth, -1.0, 1e-6, 1e-8, uint32(100), 100.0),
		Entry("zero max steps", physics.MuEarth, 10.0, 1e-6, 1e-8, uint32(0), 100.0),
		Entry("zero mu", 0.0, 10.0, 1e-6, 1e-8, uint32(100), 100.0),
		Entry("empty span", physics.MuEarth, 10.0, 1e-6, 1e-8, uint32(100), 0.0),
	)

	It("stops with MaxStepsExceeded and keeps the partial trajectory", func() {
		traj, err := Propagate(leo, physics.MuEarth, 0, 10*leoPeriod, 1, 1e-10, 1e-10, 2)
		Expect(err).To(MatchError(dynamo.ErrMaxStepsExceeded))

		var ie *dynamo.IntegrationError
		Expect(err).To(BeAssignableToTypeOf(ie))
		Expect(traj.Len()).To(Equal(3))
		Expect(traj.First().State).To(Equal(leo))
	})
})

var _ = Describe("Propagator", func() {
	It("streams every accepted sample through its metrics", func() {
		dyn := physics.NewTwoBody(physics.MuEarth)
		p := New(dyn, WithMetrics(metrics.Orbital(dyn)...))

		cfg := DefaultConfig()
		cfg.TEnd = leoPeriod
		cfg.Integration.RTol, cfg.Integration.ATol = 1e-9, 1e-9

		res, err := p.Run(leo, cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Metrics).To(HaveKey("energy_drift"))
		Expect(res.Metrics["energy_drift"]).To(BeNumerically("<", 1e-6))
		Expect(res.Metrics["angular_momentum_drift"]).To(BeNumerically("<", 1e-6))
		Expect(res.Metrics["min_radius"]).To(BeNumerically("~", 7000, 1e-2))
		Expect(res.Stats.Accepted).To(Equal(res.Trajectory.Len() - 1))
		Expect(res.Stats.Evaluations).To(Equal(1 + 6*(res.Stats.Accepted+res.Stats.Rejected)))
	})

	It("bounds the trajectory buffer when asked to", func() {
		cfg := DefaultConfig()
		cfg.TEnd = 5 * leoPeriod
		cfg.Integration.RTol, cfg.Integration.ATol = 1e-10, 1e-10
		cfg.MaxSamples = 16

		res, err := New(physics.NewTwoBody(physics.MuEarth)).Run(leo, cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Trajectory.Len()).To(BeNumerically("<=", 16))
		Expect(res.Stats.Accepted).To(BeNumerically(">", 16))
		Expect(res.Trajectory.First().State).To(Equal(leo))
		Expect(res.Trajectory.Last().T).To(Equal(5 * leoPeriod))
	})
})
