package sim

import (
	"bytes"
	"context"
	"fmt"

	"github.com/go-kit/log"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/connor-mcnaboe/state-propogator/internal/dynamo"
	"github.com/connor-mcnaboe/state-propogator/internal/metrics"
	"github.com/connor-mcnaboe/state-propogator/internal/physics"
)

var _ = Describe("Batch", func() {
	var (
		dyn  physics.TwoBody
		jobs []Job
	)

	BeforeEach(func() {
		dyn = physics.NewTwoBody(physics.MuEarth)

		cfg := DefaultConfig()
		cfg.TEnd = leoPeriod / 4
		cfg.Integration.RTol, cfg.Integration.ATol = 1e-9, 1e-9

		jobs = nil
		for i := 0; i < 8; i++ {
			y := leo
			y[4] += 0.01 * float64(i)
			jobs = append(jobs, Job{ID: fmt.Sprintf("sat-%d", i), State: y, Config: cfg})
		}
		// a single bad job in the middle
		jobs[3].State = dynamo.StateVector{0, 0, 0, 1, 0, 0}
	})

	It("isolates per-job failures and keeps job order", func() {
		results, err := NewBatch(dyn, 3).Run(context.Background(), jobs)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(len(jobs)))

		for i, r := range results {
			Expect(r.Job.ID).To(Equal(jobs[i].ID))
			if i == 3 {
				Expect(r.Err).To(MatchError(dynamo.ErrSingularState))
				continue
			}
			Expect(r.Err).NotTo(HaveOccurred(), "job %s", r.Job.ID)
			Expect(r.Result.Trajectory.Last().T).To(Equal(leoPeriod / 4))
		}
	})

	It("matches a sequential propagation", func() {
		results, err := NewBatch(dyn, 0).Run(context.Background(), jobs)
		Expect(err).NotTo(HaveOccurred())

		for i, job := range jobs {
			if i == 3 {
				continue
			}
			res, err := New(dyn).Run(job.State, job.Config)
			Expect(err).NotTo(HaveOccurred())
			Expect(results[i].Result.Trajectory.FinalState()).To(Equal(res.Trajectory.FinalState()))
			Expect(results[i].Result.Trajectory.Len()).To(Equal(res.Trajectory.Len()))
		}
	})

	It("gives every job its own metrics", func() {
		b := NewBatch(dyn, 4, WithMetricFactory(func() []metrics.Metric {
			return metrics.Orbital(dyn)
		}))

		results, err := b.Run(context.Background(), jobs)
		Expect(err).NotTo(HaveOccurred())
		for i, r := range results {
			if i == 3 {
				continue
			}
			Expect(r.Result.Metrics["energy_drift"]).To(BeNumerically("<", 1e-5))
			Expect(r.Result.Metrics["min_radius"]).To(BeNumerically("~", 7000, 1e-2))
		}
	})

	Context("with bounded trajectories", func() {
		BeforeEach(func() {
			for i := range jobs {
				jobs[i].Config.TEnd = 5 * leoPeriod
			}
			jobs = append(jobs[:3], jobs[4:6]...)
		})

		It("honours each job's MaxSamples", func() {
			for i := range jobs {
				jobs[i].Config.MaxSamples = 16
			}

			results, err := NewBatch(dyn, 1).Run(context.Background(), jobs)
			Expect(err).NotTo(HaveOccurred())
			for i, r := range results {
				Expect(r.Err).NotTo(HaveOccurred())
				Expect(r.Result.Trajectory.Len()).To(BeNumerically("<=", 16))
				Expect(r.Result.Trajectory.Last().T).To(Equal(5 * leoPeriod))

				single, err := New(dyn).Run(jobs[i].State, jobs[i].Config)
				Expect(err).NotTo(HaveOccurred())
				Expect(r.Result.Trajectory.Len()).To(Equal(single.Trajectory.Len()))
			}
		})

		It("falls back to the batch bound and lets a job override it", func() {
			jobs[1].Config.MaxSamples = 40

			results, err := NewBatch(dyn, 2, WithBatchMaxSamples(10)).Run(context.Background(), jobs)
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].Result.Trajectory.Len()).To(BeNumerically("<=", 10))
			Expect(results[1].Result.Trajectory.Len()).To(BeNumerically(">", 10))
			Expect(results[1].Result.Trajectory.Len()).To(BeNumerically("<=", 40))
			Expect(results[2].Result.Trajectory.Len()).To(BeNumerically("<=", 10))
		})
	})

	It("stops scheduling once the context is cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		results, err := NewBatch(dyn, 2).Run(ctx, jobs)
		Expect(err).To(MatchError(context.Canceled))
		for _, r := range results {
			Expect(r.Err).To(MatchError(context.Canceled))
			Expect(r.Result).To(BeNil())
		}
	})

	It("does not report a cancellation that came after every job ran", func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// the only job cancels the context while it runs, after it was scheduled
		b := NewBatch(dyn, 1, WithMetricFactory(func() []metrics.Metric {
			return []metrics.Metric{cancelOnObserve{cancel}}
		}))
		results, err := b.Run(ctx, jobs[:1])
		Expect(ctx.Err()).To(MatchError(context.Canceled))
		Expect(err).NotTo(HaveOccurred())
		Expect(results[0].Err).NotTo(HaveOccurred())
		Expect(results[0].Result.Trajectory.Last().T).To(Equal(leoPeriod / 4))
	})

	It("tags log lines with the job id", func() {
		var buf bytes.Buffer
		logger := log.NewLogfmtLogger(log.NewSyncWriter(&buf))

		_, err := NewBatch(dyn, 1, WithBatchLogger(logger)).Run(context.Background(), jobs[:2])
		Expect(err).NotTo(HaveOccurred())
		Expect(buf.String()).To(ContainSubstring("job=sat-0"))
		Expect(buf.String()).To(ContainSubstring(`msg="propagation converged"`))
	})
})

type cancelOnObserve struct{ cancel context.CancelFunc }

func (c cancelOnObserve) Name() string          { return "cancel" }
func (c cancelOnObserve) Observe(dynamo.Sample) { c.cancel() }
func (c cancelOnObserve) Value() float64        { return 0 }
func (c cancelOnObserve) Reset()                {}
