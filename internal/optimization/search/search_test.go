package search

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/hypersearch/internal/dataset"
	"github.com/copyleftdev/hypersearch/internal/optimization"
	"github.com/copyleftdev/hypersearch/internal/optimization/memory"
	"github.com/copyleftdev/hypersearch/internal/optimization/space"
)

func scenarioSchema() space.Schema {
	return space.Schema{
		space.Discrete("x", 0, 1, 2, 3),
		space.Continuous("y", 0.0, 1.0, 0.25),
	}
}

// sumScorer scores x+y and counts its invocations.
type sumScorer struct {
	calls atomic.Int64
	fail  func(cfg optimization.Configuration) error
}

func (s *sumScorer) Score(_ context.Context, cfg optimization.Configuration, _ *dataset.Dataset) (float64, error) {
	s.calls.Add(1)
	if s.fail != nil {
		if err := s.fail(cfg); err != nil {
			return 0, err
		}
	}
	x, _ := optimization.ToFloat(cfg["x"])
	y, _ := optimization.ToFloat(cfg["y"])
	return x + y, nil
}

func seed(v int64) *int64 { return &v }

func TestRunScenarioWarmStartAtMaximum(t *testing.T) {
	res, err := Run(context.Background(), Config{
		Model:     "sum",
		Schema:    scenarioSchema(),
		Scorer:    &sumScorer{},
		Budget:    20,
		BaseSeed:  seed(42),
		WarmStart: optimization.Configuration{"x": 3, "y": 1.0},
	})
	require.NoError(t, err)

	assert.Equal(t, optimization.Position{3, 4}, res.BestPosition)
	assert.Equal(t, 4.0, res.BestScore)
	assert.Equal(t, optimization.Configuration{"x": 3, "y": 1.0}, res.BestConfiguration)
	assert.Equal(t, 20, res.Iterations)
	assert.Len(t, res.History, 21)
}

func TestRunScenarioRandomSearch(t *testing.T) {
	// Plain random search reaches the grid maximum only with high
	// probability; a budget of 200 over 20 points makes a miss negligible.
	res, err := Run(context.Background(), Config{
		Schema:   scenarioSchema(),
		Scorer:   &sumScorer{},
		Budget:   200,
		BaseSeed: seed(42),
	})
	require.NoError(t, err)
	assert.Equal(t, optimization.Position{3, 4}, res.BestPosition)
	assert.Equal(t, 4.0, res.BestScore)
	assert.Equal(t, "random", res.Strategy)
}

func TestRunMonotonicBest(t *testing.T) {
	var updates []optimization.ProgressUpdate
	res, err := Run(context.Background(), Config{
		Schema:   scenarioSchema(),
		Scorer:   &sumScorer{},
		Budget:   20,
		BaseSeed: seed(42),
		Progress: optimization.ProgressFunc(func(u optimization.ProgressUpdate) {
			updates = append(updates, u)
		}),
	})
	require.NoError(t, err)
	require.Len(t, updates, 21)

	running := res.History[0].Score
	for i, u := range updates {
		running = max(running, res.History[i].Score)
		assert.Equal(t, i, u.Completed)
		assert.Equal(t, 20, u.Budget)
		assert.Equal(t, running, u.BestScore, "best must equal the running maximum")
	}
	assert.Equal(t, running, res.BestScore)
}

func TestRunTiesKeepFirstPosition(t *testing.T) {
	flat := optimization.ScorerFunc(func(context.Context, optimization.Configuration, *dataset.Dataset) (float64, error) {
		return 1, nil
	})
	res, err := Run(context.Background(), Config{
		Schema:   scenarioSchema(),
		Scorer:   flat,
		Budget:   30,
		BaseSeed: seed(1),
	})
	require.NoError(t, err)
	assert.Equal(t, res.History[0].Position, res.BestPosition)
}

func TestRunMemoization(t *testing.T) {
	scorer := &sumScorer{}
	res, err := Run(context.Background(), Config{
		Schema:   space.Schema{space.Discrete("x", 0, 1)},
		Scorer:   scorer,
		Budget:   50,
		BaseSeed: seed(7),
	})
	require.NoError(t, err)

	assert.LessOrEqual(t, scorer.calls.Load(), int64(2))
	assert.Equal(t, int(scorer.calls.Load()), res.Evaluations)
	assert.Equal(t, 51, res.Evaluations+res.CacheHits)
}

func TestRunDisableMemory(t *testing.T) {
	scorer := &sumScorer{}
	res, err := Run(context.Background(), Config{
		Schema:        space.Schema{space.Discrete("x", 0, 1)},
		Scorer:        scorer,
		Budget:        50,
		BaseSeed:      seed(7),
		DisableMemory: true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(51), scorer.calls.Load())
	assert.Equal(t, 0, res.CacheHits)
}

func TestRunSharedCache(t *testing.T) {
	shared := memory.NewShared()
	scorer := &sumScorer{}
	for job := 0; job < 2; job++ {
		_, err := Run(context.Background(), Config{
			JobID:    job,
			Schema:   space.Schema{space.Discrete("x", 0, 1, 2)},
			Scorer:   scorer,
			Budget:   40,
			BaseSeed: seed(3),
			Cache:    shared,
		})
		require.NoError(t, err)
	}
	assert.LessOrEqual(t, scorer.calls.Load(), int64(3))
	assert.Equal(t, int(scorer.calls.Load()), shared.Len())
}

func TestRunSeedReproducibility(t *testing.T) {
	run := func() *optimization.SearchResult {
		res, err := Run(context.Background(), Config{
			JobID:    2,
			Schema:   scenarioSchema(),
			Scorer:   &sumScorer{},
			Budget:   15,
			BaseSeed: seed(42),
		})
		require.NoError(t, err)
		res.Duration = 0
		return res
	}
	assert.Equal(t, run(), run())
}

func TestJobRandOffsetsByJobID(t *testing.T) {
	a := JobRand(seed(42), 1).Int63()
	b := rand.New(rand.NewSource(43)).Int63()
	assert.Equal(t, b, a)
	assert.NotEqual(t, JobRand(seed(42), 0).Int63(), a)
}

func TestRunEvaluationError(t *testing.T) {
	cause := errors.New("unsupported configuration")
	scorer := &sumScorer{fail: func(cfg optimization.Configuration) error {
		if cfg["x"] == 2 {
			return cause
		}
		return nil
	}}

	t.Run("initial position", func(t *testing.T) {
		_, err := Run(context.Background(), Config{
			Schema:    scenarioSchema(),
			Scorer:    scorer,
			Budget:    10,
			WarmStart: optimization.Configuration{"x": 2, "y": 0.5},
		})
		var evalErr *optimization.EvaluationError
		require.ErrorAs(t, err, &evalErr)
		assert.Equal(t, optimization.Position{2, 2}, evalErr.Position)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("keeps committed progress", func(t *testing.T) {
		res, err := Run(context.Background(), Config{
			Schema:    scenarioSchema(),
			Scorer:    scorer,
			Budget:    500,
			BaseSeed:  seed(5),
			WarmStart: optimization.Configuration{"x": 1, "y": 0.25},
		})
		var evalErr *optimization.EvaluationError
		require.ErrorAs(t, err, &evalErr)
		assert.Equal(t, 2, evalErr.Position[0])
		require.NotNil(t, res)
		assert.GreaterOrEqual(t, res.BestScore, 1.25)
		assert.Less(t, res.Iterations, 500)
	})
}

func TestRunRejectsNaNScore(t *testing.T) {
	schema := space.Schema{space.Discrete("x", 0, 1, 2, 3)}

	t.Run("after a finite best", func(t *testing.T) {
		var calls int
		scorer := optimization.ScorerFunc(func(_ context.Context, cfg optimization.Configuration, _ *dataset.Dataset) (float64, error) {
			calls++
			if calls > 1 {
				return math.NaN(), nil
			}
			x, _ := optimization.ToFloat(cfg["x"])
			return 10 + x, nil
		})
		res, err := Run(context.Background(), Config{
			Schema:    schema,
			Scorer:    scorer,
			Budget:    50,
			BaseSeed:  seed(1),
			WarmStart: optimization.Configuration{"x": 1},
		})

		var evalErr *optimization.EvaluationError
		require.ErrorAs(t, err, &evalErr)
		assert.ErrorIs(t, err, ErrNaNScore)
		require.NotNil(t, res)
		assert.Equal(t, 11.0, res.BestScore)
		assert.Equal(t, optimization.Position{1}, res.BestPosition)
		for _, h := range res.History {
			assert.False(t, math.IsNaN(h.Score))
		}
	})

	t.Run("during scatter init", func(t *testing.T) {
		scorer := optimization.ScorerFunc(func(context.Context, optimization.Configuration, *dataset.Dataset) (float64, error) {
			return math.NaN(), nil
		})
		_, err := Run(context.Background(), Config{
			Schema:      schema,
			Scorer:      scorer,
			Budget:      5,
			BaseSeed:    seed(1),
			ScatterInit: 3,
		})
		assert.ErrorIs(t, err, ErrNaNScore)
	})
}

func TestRunSetupErrors(t *testing.T) {
	_, err := Run(context.Background(), Config{
		Schema: space.Schema{space.Discrete("x")},
		Scorer: &sumScorer{},
	})
	var dimErr *optimization.InvalidDimensionError
	assert.ErrorAs(t, err, &dimErr)

	scorer := &sumScorer{}
	_, err = Run(context.Background(), Config{
		Schema:    scenarioSchema(),
		Scorer:    scorer,
		WarmStart: optimization.Configuration{"x": 3, "y": 0.3},
	})
	var wsErr *optimization.InvalidWarmStartError
	assert.ErrorAs(t, err, &wsErr)
	assert.Zero(t, scorer.calls.Load(), "no evaluation before the warm start is validated")

	_, err = Run(context.Background(), Config{Schema: scenarioSchema()})
	assert.Error(t, err)

	_, err = Run(context.Background(), Config{Schema: scenarioSchema(), Scorer: scorer, Budget: -1})
	assert.Error(t, err)
}

func TestRunZeroBudget(t *testing.T) {
	scorer := &sumScorer{}
	res, err := Run(context.Background(), Config{
		Schema:   scenarioSchema(),
		Scorer:   scorer,
		BaseSeed: seed(1),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Iterations)
	assert.Equal(t, int64(1), scorer.calls.Load())
	assert.NotNil(t, res.BestPosition)
}

func TestRunCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scorer := &sumScorer{}
	scorer.fail = func(optimization.Configuration) error {
		if scorer.calls.Load() == 3 {
			cancel()
		}
		return nil
	}
	res, err := Run(ctx, Config{
		Schema:        scenarioSchema(),
		Scorer:        scorer,
		Budget:        100,
		BaseSeed:      seed(1),
		DisableMemory: true,
	})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Equal(t, 2, res.Iterations)
}

func TestRunScatterInit(t *testing.T) {
	rows := make([][]float64, 100)
	y := make([]float64, 100)
	for i := range rows {
		rows[i] = []float64{float64(i)}
	}
	data, err := dataset.FromRows(rows, y)
	require.NoError(t, err)

	var seen []int
	scorer := optimization.ScorerFunc(func(_ context.Context, cfg optimization.Configuration, d *dataset.Dataset) (float64, error) {
		seen = append(seen, d.Rows())
		x, _ := optimization.ToFloat(cfg["x"])
		return x, nil
	})

	res, err := Run(context.Background(), Config{
		Schema:      scenarioSchema(),
		Scorer:      scorer,
		Data:        data,
		Budget:      3,
		BaseSeed:    seed(11),
		ScatterInit: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, []int{25, 25, 25, 25}, seen[:4])
	for _, n := range seen[4:] {
		assert.Equal(t, 100, n)
	}
	assert.Len(t, res.History, 4, "scatter evaluations are not part of the history")
}

func TestRunStrategies(t *testing.T) {
	for _, name := range StrategyNames() {
		t.Run(name, func(t *testing.T) {
			factory, err := NewStrategy(name, nil)
			require.NoError(t, err)

			res, err := Run(context.Background(), Config{
				Schema:   scenarioSchema(),
				Scorer:   &sumScorer{},
				Budget:   25,
				BaseSeed: seed(42),
				Strategy: factory,
			})
			require.NoError(t, err)
			assert.Equal(t, name, res.Strategy)
			assert.Equal(t, 25, res.Iterations)
			for _, ev := range res.History {
				assert.LessOrEqual(t, ev.Score, res.BestScore)
			}
		})
	}

	_, err := NewStrategy("genetic", nil)
	assert.Error(t, err)
}

func TestCandidateCommitIfBetter(t *testing.T) {
	sp, err := space.New(scenarioSchema())
	require.NoError(t, err)
	c := NewCandidate(0, "sum", sp, memory.New(), &sumScorer{}, nil, rand.New(rand.NewSource(1)), nil)

	assert.False(t, c.CommitIfBetter(), "nothing evaluated yet")

	_, err = c.Evaluate(context.Background(), optimization.Position{1, 0})
	require.NoError(t, err)
	assert.True(t, c.CommitIfBetter())

	_, err = c.Evaluate(context.Background(), optimization.Position{0, 4})
	require.NoError(t, err)
	assert.False(t, c.CommitIfBetter(), "equal score keeps the first position")
	assert.Equal(t, optimization.Position{1, 0}, c.BestPosition())

	score, err := c.Evaluate(context.Background(), optimization.Position{3, 1})
	require.NoError(t, err)
	assert.Equal(t, 3.25, score)
	assert.True(t, c.CommitIfBetter())
	assert.Equal(t, 3.25, c.BestScore())

	_, err = c.Evaluate(context.Background(), optimization.Position{3, 1})
	require.NoError(t, err)
	assert.True(t, c.History()[3].Cached)
}
