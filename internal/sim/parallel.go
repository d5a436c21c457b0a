package sim

import (
	"context"
	"runtime"

	"github.com/go-kit/log"
	"golang.org/x/sync/errgroup"

	"github.com/connor-mcnaboe/state-propogator/internal/dynamo"
	"github.com/connor-mcnaboe/state-propogator/internal/metrics"
)

// Job is one independent propagation of a batch.
type Job struct {
	ID     string
	State  dynamo.StateVector
	Config Config
}

// JobResult pairs a job with its outcome. Result is set even when Err is
// not nil (partial trajectory), unless the job never started.
type JobResult struct {
	Job    Job
	Result *Result
	Err    error
}

// Batch propagates many initial states in parallel. A failing job never
// affects its siblings.
type Batch struct {
	dyn        dynamo.System
	workers    int
	logger     log.Logger
	newMetrics func() []metrics.Metric
	pool       *RecorderPool
}

type BatchOption func(*Batch)

func WithBatchLogger(l log.Logger) BatchOption {
	return func(b *Batch) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithMetricFactory installs a constructor called once per job, since
// metrics accumulate state.
func WithMetricFactory(fn func() []metrics.Metric) BatchOption {
	return func(b *Batch) { b.newMetrics = fn }
}

// WithBatchMaxSamples bounds the trajectory length of every job that does
// not set Config.MaxSamples itself.
func WithBatchMaxSamples(n int) BatchOption {
	return func(b *Batch) { b.pool = NewRecorderPool(n) }
}

// NewBatch returns a batch runner with at most workers concurrent jobs;
// workers <= 0 means GOMAXPROCS.
func NewBatch(dyn dynamo.System, workers int, opts ...BatchOption) *Batch {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	b := &Batch{
		dyn:     dyn,
		workers: workers,
		logger:  log.NewNopLogger(),
		pool:    NewRecorderPool(0),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run executes every job and returns results in job order. Cancelling ctx
// stops scheduling further jobs; those get ctx.Err() as their error, and Run
// returns the first such error when at least one job was skipped. Per-job
// failures are reported only in JobResult.
func (b *Batch) Run(ctx context.Context, jobs []Job) ([]JobResult, error) {
	results := make([]JobResult, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)

	var skipped error
	for i, job := range jobs {
		results[i].Job = job
		if err := gctx.Err(); err != nil {
			results[i].Err = err
			if skipped == nil {
				skipped = err
			}
			continue
		}

		i, job := i, job
		g.Go(func() error {
			opts := []Option{
				WithLogger(log.With(b.logger, "job", job.ID)),
				withPool(b.pool),
			}
			if b.newMetrics != nil {
				opts = append(opts, WithMetrics(b.newMetrics()...))
			}

			res, err := New(b.dyn, opts...).Run(job.State, job.Config)
			results[i].Result = res
			results[i].Err = err
			return nil
		})
	}

	_ = g.Wait()
	return results, skipped
}
