package search

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/copyleftdev/hypersearch/internal/dataset"
	"github.com/copyleftdev/hypersearch/internal/optimization"
	"github.com/copyleftdev/hypersearch/internal/optimization/memory"
	"github.com/copyleftdev/hypersearch/internal/optimization/space"
	"github.com/copyleftdev/hypersearch/internal/optimization/strategy"
)

// Config describes one search job.
type Config struct {
	JobID  int
	Model  string
	Schema space.Schema
	Scorer optimization.Scorer
	Data   *dataset.Dataset
	// Budget is the number of proposals after the initial evaluation.
	Budget int

	// BaseSeed seeds the job with BaseSeed+JobID. Nil seeds from the clock.
	BaseSeed *int64
	// Rand overrides the seeded source when the caller has already drawn
	// from it.
	Rand *rand.Rand

	// WarmStart seeds the first evaluated position.
	WarmStart optimization.Configuration
	// ScatterInit, when at least 2 and no warm start is given, scores that
	// many random positions on a slice of the data and starts from the best.
	ScatterInit int

	// Strategy creates the move strategy; nil selects random search.
	Strategy strategy.Factory
	// Cache overrides the per-job memory, e.g. with a memory.Shared.
	Cache memory.Cache
	// DisableMemory evaluates every visit, even repeated ones.
	DisableMemory bool

	Progress optimization.ProgressSink
	Observer optimization.Observer
	Logger   *zap.Logger
}

// JobRand returns the random source of a job: base+jobID when a base seed
// is given, otherwise a clock-seeded source.
func JobRand(base *int64, jobID int) *rand.Rand {
	if base == nil {
		return rand.New(rand.NewSource(time.Now().UnixNano() + int64(jobID)))
	}
	return rand.New(rand.NewSource(*base + int64(jobID)))
}

// Run executes one job. Schema and warm-start errors are returned before any
// evaluation. A scorer failure aborts the job with an
// *optimization.EvaluationError; the result committed up to that point is
// returned alongside it. Cancellation is checked between iterations.
func Run(ctx context.Context, cfg Config) (*optimization.SearchResult, error) {
	start := time.Now()
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.Int("job_id", cfg.JobID), zap.String("model", cfg.Model))

	if cfg.Scorer == nil {
		return nil, optimization.NewError("scorer is required").
			WithComponent("search").WithOperation("Run")
	}
	if cfg.Budget < 0 {
		return nil, optimization.NewErrorf("negative iteration budget %d", cfg.Budget).
			WithComponent("search").WithOperation("Run")
	}

	sp, err := space.New(cfg.Schema)
	if err != nil {
		return nil, err
	}

	rng := cfg.Rand
	if rng == nil {
		rng = JobRand(cfg.BaseSeed, cfg.JobID)
	}

	cache := cfg.Cache
	switch {
	case cache != nil:
	case cfg.DisableMemory:
		cache = memory.Disabled{}
	default:
		cache = memory.New()
	}

	factory := cfg.Strategy
	if factory == nil {
		factory = strategy.NewRandom
	}
	move := factory()

	cand := NewCandidate(cfg.JobID, cfg.Model, sp, cache, cfg.Scorer, cfg.Data, rng, cfg.Observer)
	cand.budget = cfg.Budget

	var initial optimization.Position
	switch {
	case cfg.WarmStart != nil:
		if initial, err = sp.Encode(cfg.WarmStart); err != nil {
			return nil, err
		}
	case cfg.ScatterInit >= 2:
		if initial, err = scatter(ctx, cand, cfg.ScatterInit); err != nil {
			return nil, err
		}
	default:
		initial = sp.RandomPosition(rng)
	}

	logger.Info("Starting search job",
		zap.String("strategy", move.Name()),
		zap.Int("budget", cfg.Budget),
		zap.Stringer("initial", initial),
		zap.Float64("grid_size", sp.Cardinality()),
	)

	report := func() {
		if cfg.Progress != nil {
			cfg.Progress.Report(optimization.ProgressUpdate{
				JobID:     cfg.JobID,
				Model:     cfg.Model,
				Completed: cand.iteration,
				Budget:    cfg.Budget,
				BestScore: cand.bestScore,
			})
		}
	}

	fail := func(err error) (*optimization.SearchResult, error) {
		res, rerr := cand.Result(move.Name(), time.Since(start))
		if rerr != nil {
			res = nil
		}
		logger.Warn("Search job aborted", zap.Int("iteration", cand.iteration), zap.Error(err))
		return res, err
	}

	if _, err := cand.Evaluate(ctx, initial); err != nil {
		return fail(err)
	}
	cand.CommitIfBetter()
	report()

	for cand.iteration < cfg.Budget {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		pos := move.Propose(cand)
		cand.iteration++
		score, err := cand.Evaluate(ctx, pos)
		if err != nil {
			return fail(err)
		}
		if cand.CommitIfBetter() {
			logger.Debug("New best",
				zap.Int("iteration", cand.iteration),
				zap.Stringer("position", pos),
				zap.Float64("score", score),
			)
		}
		move.Observe(cand, pos, score)
		report()
	}

	res, err := cand.Result(move.Name(), time.Since(start))
	if err != nil {
		return nil, err
	}
	logger.Info("Search job finished",
		zap.Float64("best_score", res.BestScore),
		zap.Stringer("best_position", res.BestPosition),
		zap.Int("evaluations", res.Evaluations),
		zap.Int("cache_hits", res.CacheHits),
		zap.Duration("elapsed", res.Duration),
	)
	return res, nil
}

// scatter scores n random positions on the first rows/n rows of the data and
// returns the best. These scores bypass the cache and never become the best.
func scatter(ctx context.Context, c *Candidate, n int) (optimization.Position, error) {
	data := c.data
	if data != nil {
		data = data.Head(data.Rows() / n)
	}

	var (
		best      optimization.Position
		bestScore float64
	)
	for i := 0; i < n; i++ {
		pos := c.space.RandomPosition(c.rng)
		cfg, err := c.space.Decode(pos)
		if err != nil {
			return nil, err
		}
		score, err := c.score(ctx, cfg, data)
		if err != nil {
			return nil, &optimization.EvaluationError{Position: pos, Cause: err}
		}
		c.evaluations++
		if best == nil || score > bestScore {
			best, bestScore = pos, score
		}
	}
	return best, nil
}
