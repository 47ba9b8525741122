// Package search drives one search job: a Candidate advanced through an
// iteration budget by a move strategy.
package search

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/copyleftdev/hypersearch/internal/dataset"
	"github.com/copyleftdev/hypersearch/internal/optimization"
	"github.com/copyleftdev/hypersearch/internal/optimization/memory"
	"github.com/copyleftdev/hypersearch/internal/optimization/space"
	"github.com/copyleftdev/hypersearch/internal/optimization/strategy"
)

// ErrNaNScore is the cause of an EvaluationError raised for a scorer that
// returned NaN. NaN has no order, so it can never take part in the best.
var ErrNaNScore = errors.New("score is NaN")

// Candidate owns the mutable state of one job. It is not safe for concurrent
// use; each job has exactly one.
type Candidate struct {
	jobID    int
	model    string
	space    *space.SearchSpace
	cache    memory.Cache
	scorer   optimization.Scorer
	data     *dataset.Dataset
	rng      *rand.Rand
	observer optimization.Observer

	budget    int
	iteration int

	current      optimization.Position
	currentScore float64
	best         optimization.Position
	bestScore    float64
	hasBest      bool

	history     []optimization.Evaluation
	evaluations int
	cacheHits   int
}

var _ strategy.State = (*Candidate)(nil)

// NewCandidate returns a candidate with no evaluations. A nil observer
// discards events.
func NewCandidate(jobID int, model string, sp *space.SearchSpace, cache memory.Cache,
	scorer optimization.Scorer, data *dataset.Dataset, rng *rand.Rand, observer optimization.Observer) *Candidate {
	if observer == nil {
		observer = optimization.NopObserver{}
	}
	return &Candidate{
		jobID:    jobID,
		model:    model,
		space:    sp,
		cache:    cache,
		scorer:   scorer,
		data:     data,
		rng:      rng,
		observer: observer,
	}
}

// Evaluate scores pos through the cache and makes it the current position.
// Scorer failures are returned as *optimization.EvaluationError and leave
// the current and best positions untouched.
func (c *Candidate) Evaluate(ctx context.Context, pos optimization.Position) (float64, error) {
	start := time.Now()
	score, cached, err := c.cache.GetOrEvaluate(pos, func(p optimization.Position) (float64, error) {
		cfg, err := c.space.Decode(p)
		if err != nil {
			return 0, err
		}
		return c.score(ctx, cfg, c.data)
	})
	if err != nil {
		return 0, &optimization.EvaluationError{Position: pos.Clone(), Cause: err}
	}

	if cached {
		c.cacheHits++
	} else {
		c.evaluations++
	}
	c.observer.EvaluationObserved(c.model, cached, time.Since(start))

	c.current = pos.Clone()
	c.currentScore = score
	c.history = append(c.history, optimization.Evaluation{
		Iteration: c.iteration,
		Position:  c.current,
		Score:     score,
		Cached:    cached,
	})
	return score, nil
}

// score calls the scorer and rejects NaN.
func (c *Candidate) score(ctx context.Context, cfg optimization.Configuration, data *dataset.Dataset) (float64, error) {
	v, err := c.scorer.Score(ctx, cfg, data)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) {
		return 0, ErrNaNScore
	}
	return v, nil
}

// CommitIfBetter promotes the current position to best on a strict
// improvement. The first evaluation always becomes the best. Ties keep the
// earlier position.
func (c *Candidate) CommitIfBetter() bool {
	if c.current == nil {
		return false
	}
	if c.hasBest && c.currentScore <= c.bestScore {
		return false
	}
	c.best = c.current
	c.bestScore = c.currentScore
	c.hasBest = true
	return true
}

// Space implements strategy.State.
func (c *Candidate) Space() *space.SearchSpace { return c.space }

// Rand implements strategy.State.
func (c *Candidate) Rand() *rand.Rand { return c.rng }

func (c *Candidate) CurrentPosition() optimization.Position { return c.current }
func (c *Candidate) CurrentScore() float64 { return c.currentScore }
func (c *Candidate) BestPosition() optimization.Position { return c.best }
func (c *Candidate) BestScore() float64 { return c.bestScore }
func (c *Candidate) Iteration() int { return c.iteration }
func (c *Candidate) Budget() int { return c.budget }

// History returns the evaluations so far. Callers must not modify it.
func (c *Candidate) History() []optimization.Evaluation { return c.history }

// JobID returns the id of the job owning the candidate.
func (c *Candidate) JobID() int { return c.jobID }

// Result snapshots the candidate into a SearchResult.
func (c *Candidate) Result(strategyName string, elapsed time.Duration) (*optimization.SearchResult, error) {
	res := &optimization.SearchResult{
		JobID:       c.jobID,
		Model:       c.model,
		Strategy:    strategyName,
		Iterations:  c.iteration,
		Evaluations: c.evaluations,
		CacheHits:   c.cacheHits,
		History:     append([]optimization.Evaluation(nil), c.history...),
		Duration:    elapsed,
	}
	if !c.hasBest {
		return res, nil
	}
	cfg, err := c.space.Decode(c.best)
	if err != nil {
		return nil, err
	}
	res.BestPosition = c.best.Clone()
	res.BestScore = c.bestScore
	res.BestConfiguration = cfg
	return res, nil
}
