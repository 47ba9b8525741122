// Package parallel runs independent search jobs concurrently and reduces
// their results to a single winner.
package parallel

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/copyleftdev/hypersearch/internal/dataset"
	xerrors "github.com/copyleftdev/hypersearch/internal/errors"
	"github.com/copyleftdev/hypersearch/internal/optimization"
	"github.com/copyleftdev/hypersearch/internal/optimization/memory"
	"github.com/copyleftdev/hypersearch/internal/optimization/search"
	"github.com/copyleftdev/hypersearch/internal/optimization/space"
	"github.com/copyleftdev/hypersearch/internal/optimization/strategy"
)

// Model is one model choice: a scorer with its own search space.
type Model struct {
	Name      string
	Scorer    optimization.Scorer
	Schema    space.Schema
	WarmStart optimization.Configuration
}

// Request describes a parallel search.
type Request struct {
	Models []Model
	// Jobs is the number of concurrent search jobs, at least 1.
	Jobs int
	// Iterations is the total budget split across jobs.
	Iterations int
	Seed       *int64
	Data       *dataset.Dataset
	Strategy   strategy.Factory

	// BestEffort reduces the successful jobs instead of failing the search
	// when some jobs fail.
	BestEffort    bool
	DisableMemory bool
	// SharedMemory gives all jobs searching the same model one cache.
	SharedMemory bool
	ScatterInit  int

	Progress optimization.ProgressSink
}

// Outcome is the reduced result of a parallel search.
type Outcome struct {
	Best *optimization.SearchResult
	// Ranked holds every successful result, best first.
	Ranked   []*optimization.SearchResult
	Failures []*optimization.JobFailure
	// Dropped lists model choices that did not fit in the job slots.
	Dropped []string
	Budgets []int
}

// Coordinator dispatches search jobs.
type Coordinator struct {
	logger   *zap.Logger
	observer optimization.Observer
}

// New creates a coordinator. A nil logger or observer discards output.
func New(logger *zap.Logger, observer optimization.Observer) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if observer == nil {
		observer = optimization.NopObserver{}
	}
	return &Coordinator{logger: logger.Named("coordinator"), observer: observer}
}

// Apportion splits total into n budgets: floor(total/n) each, plus one for
// the first total%n jobs.
func Apportion(total, n int) []int {
	if n <= 0 {
		return nil
	}
	if total < 0 {
		total = 0
	}
	budgets := make([]int, n)
	for i := range budgets {
		budgets[i] = total / n
		if i < total%n {
			budgets[i]++
		}
	}
	return budgets
}

func coordError(op, format string, args ...interface{}) error {
	return optimization.NewErrorf(format, args...).WithComponent("parallel").WithOperation(op)
}

// Run executes the request. Schema and warm-start problems of the assigned
// models are reported before any job starts. With more than one job the jobs
// run concurrently and the coordinator waits for all of them before reducing.
func (c *Coordinator) Run(ctx context.Context, req Request) (*Outcome, error) {
	const op = "Run"

	if req.Jobs < 1 {
		return nil, coordError(op, "at least one job is required, got %d", req.Jobs)
	}
	if len(req.Models) == 0 {
		return nil, coordError(op, "at least one model is required")
	}
	if req.Iterations < 0 {
		return nil, coordError(op, "negative iteration budget %d", req.Iterations)
	}

	budgets := Apportion(req.Iterations, req.Jobs)
	rngs := make([]*rand.Rand, req.Jobs)
	for i := range rngs {
		rngs[i] = search.JobRand(req.Seed, i)
	}
	assignment, dropped := assign(len(req.Models), rngs)

	out := &Outcome{Budgets: budgets}
	for _, idx := range dropped {
		out.Dropped = append(out.Dropped, req.Models[idx].Name)
	}
	if len(out.Dropped) > 0 {
		c.logger.Warn("More model choices than jobs, dropping the remainder",
			zap.Int("jobs", req.Jobs),
			zap.Strings("dropped", out.Dropped),
		)
	}

	if err := validate(req.Models, assignment); err != nil {
		return nil, err
	}

	var shared map[int]memory.Cache
	if req.SharedMemory && !req.DisableMemory {
		shared = make(map[int]memory.Cache)
		for _, m := range assignment {
			if _, ok := shared[m]; !ok {
				shared[m] = memory.NewShared()
			}
		}
	}

	configs := make([]search.Config, req.Jobs)
	for i := range configs {
		m := req.Models[assignment[i]]
		configs[i] = search.Config{
			JobID:         i,
			Model:         m.Name,
			Schema:        m.Schema,
			Scorer:        m.Scorer,
			Data:          req.Data,
			Budget:        budgets[i],
			BaseSeed:      req.Seed,
			Rand:          rngs[i],
			WarmStart:     m.WarmStart,
			ScatterInit:   req.ScatterInit,
			Strategy:      req.Strategy,
			Cache:         shared[assignment[i]],
			DisableMemory: req.DisableMemory,
			Progress:      req.Progress,
			Observer:      c.observer,
			Logger:        c.logger,
		}
	}

	c.logger.Info("Starting parallel search",
		zap.Int("jobs", req.Jobs),
		zap.Ints("budgets", budgets),
		zap.Int("models", len(req.Models)),
	)

	results := make([]*optimization.SearchResult, req.Jobs)
	errs := make([]error, req.Jobs)
	if req.Jobs == 1 {
		results[0], errs[0] = c.runJob(ctx, configs[0])
	} else {
		p := pool.New().WithMaxGoroutines(req.Jobs)
		for i := range configs {
			i := i
			p.Go(func() {
				results[i], errs[i] = c.runJob(ctx, configs[i])
			})
		}
		p.Wait()
	}

	for i, err := range errs {
		if err != nil {
			out.Failures = append(out.Failures, &optimization.JobFailure{JobID: i, Cause: err})
			continue
		}
		out.Ranked = append(out.Ranked, results[i])
	}

	if len(out.Failures) > 0 {
		if !req.BestEffort {
			return nil, joinFailures(out.Failures)
		}
		if len(out.Ranked) == 0 {
			return nil, optimization.WrapError(joinFailures(out.Failures), "all search jobs failed").
				WithComponent("parallel").WithOperation(op)
		}
		for _, f := range out.Failures {
			c.logger.Warn("Excluding failed job", zap.Int("job_id", f.JobID), zap.Error(f.Cause))
		}
	}

	Rank(out.Ranked)
	out.Best = out.Ranked[0]
	c.logger.Info("Parallel search finished",
		zap.Int("best_job", out.Best.JobID),
		zap.String("best_model", out.Best.Model),
		zap.Float64("best_score", out.Best.BestScore),
		zap.Int("failed_jobs", len(out.Failures)),
	)
	return out, nil
}

// joinFailures reports every failed job, lowest job id first, so errors.As
// on the result finds that job's failure.
func joinFailures(failures []*optimization.JobFailure) error {
	if len(failures) == 1 {
		return failures[0]
	}
	errs := make([]error, len(failures))
	for i, f := range failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// runJob runs one job and converts a panic into an error so a crashing job
// is reported under its id.
func (c *Coordinator) runJob(ctx context.Context, cfg search.Config) (res *optimization.SearchResult, err error) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			crash := xerrors.FromPanic(rec).
				WithOperation("search.Run").
				WithComponent("parallel")
			res, err = nil, crash
			c.logger.Error("Search job panicked",
				zap.Int("job_id", cfg.JobID),
				zap.Error(crash),
				zap.String("origin", crash.Origin()),
			)
		}
		status, best := optimization.JobCompleted, 0.0
		if err != nil {
			status = optimization.JobFailed
		} else {
			best = res.BestScore
		}
		c.observer.JobFinished(cfg.Model, status, time.Since(start), best)
	}()
	return search.Run(ctx, cfg)
}

// validate builds every assigned space and encodes its warm start so that
// configuration errors surface before any evaluation.
func validate(models []Model, assignment []int) error {
	checked := make(map[int]bool)
	for _, m := range assignment {
		if checked[m] {
			continue
		}
		checked[m] = true
		sp, err := space.New(models[m].Schema)
		if err != nil {
			return err
		}
		if models[m].WarmStart != nil {
			if _, err := sp.Encode(models[m].WarmStart); err != nil {
				return err
			}
		}
		if models[m].Scorer == nil {
			return coordError("Run", "model %q has no scorer", models[m].Name)
		}
	}
	return nil
}

// Reduce picks the winner: highest best score, ties to the lowest job id.
// The input order does not matter.
func Reduce(results []*optimization.SearchResult) *optimization.SearchResult {
	var best *optimization.SearchResult
	for _, r := range results {
		if r != nil && r.Better(best) {
			best = r
		}
	}
	return best
}

// Rank sorts results best first in place.
func Rank(results []*optimization.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Better(results[j])
	})
}
