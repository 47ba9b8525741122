package study

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/copyleftdev/hypersearch/internal/config"
	"github.com/copyleftdev/hypersearch/internal/optimization/parallel"
	"github.com/copyleftdev/hypersearch/internal/optimization/search"
	"github.com/copyleftdev/hypersearch/internal/optimization/space"
	"github.com/copyleftdev/hypersearch/internal/scoring"
)

// Limits bound and default compiled studies. Zero caps are unlimited.
type Limits struct {
	MaxJobs         int
	MaxIterations   int
	DefaultSeed     *int64
	DefaultStrategy string
	BestEffort      bool
	SharedMemory    bool
}

// LimitsFromConfig derives limits from the service configuration.
func LimitsFromConfig(c config.SearchConfig) (Limits, error) {
	seed, err := c.Seed()
	if err != nil {
		return Limits{}, err
	}
	return Limits{
		MaxJobs:         c.MaxJobs,
		MaxIterations:   c.MaxIterations,
		DefaultSeed:     seed,
		DefaultStrategy: c.DefaultStrategy,
		BestEffort:      c.BestEffort,
		SharedMemory:    c.SharedMemory,
	}, nil
}

// Compiler turns definitions into coordinator requests.
type Compiler struct {
	Registry *scoring.Registry
	Limits   Limits
	Logger   *zap.Logger
}

// Compile resolves scorers, strategy and data for def. The returned request
// has no progress sink.
func (c *Compiler) Compile(def *Definition) (*parallel.Request, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	registry := c.Registry
	if registry == nil {
		registry = scoring.Default()
	}

	jobs := def.Jobs
	if jobs == 0 {
		jobs = 1
	}
	if c.Limits.MaxJobs > 0 && jobs > c.Limits.MaxJobs {
		return nil, fmt.Errorf("jobs %d exceeds the limit of %d", jobs, c.Limits.MaxJobs)
	}
	if c.Limits.MaxIterations > 0 && def.Iterations > c.Limits.MaxIterations {
		return nil, fmt.Errorf("iterations %d exceeds the limit of %d", def.Iterations, c.Limits.MaxIterations)
	}

	strategyName := def.Strategy
	if strategyName == "" {
		strategyName = c.Limits.DefaultStrategy
	}
	factory, err := search.NewStrategy(strategyName, c.Logger)
	if err != nil {
		return nil, err
	}

	models := make([]parallel.Model, len(def.Models))
	for i, m := range def.Models {
		opts := scoring.Options{Metric: def.Metric, Folds: def.CV}
		if m.Metric != "" {
			opts.Metric = m.Metric
		}
		scorer, err := registry.Lookup(m.scorerName(), opts)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", m.label(), err)
		}
		sp, err := space.New(m.Space)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", m.label(), err)
		}
		if m.WarmStart != nil {
			if _, err := sp.Encode(m.WarmStart); err != nil {
				return nil, fmt.Errorf("model %s: %w", m.label(), err)
			}
		}
		models[i] = parallel.Model{
			Name:      m.label(),
			Scorer:    scorer,
			Schema:    m.Space,
			WarmStart: m.WarmStart,
		}
	}

	req := &parallel.Request{
		Models:        models,
		Jobs:          jobs,
		Iterations:    def.Iterations,
		Seed:          def.Seed,
		Strategy:      factory,
		BestEffort:    c.Limits.BestEffort,
		SharedMemory:  c.Limits.SharedMemory,
		DisableMemory: def.Memory != nil && !*def.Memory,
		ScatterInit:   def.ScatterInit,
	}
	if req.Seed == nil && c.Limits.DefaultSeed != nil {
		seed := *c.Limits.DefaultSeed
		req.Seed = &seed
	}
	if def.BestEffort != nil {
		req.BestEffort = *def.BestEffort
	}
	if def.SharedMemory != nil {
		req.SharedMemory = *def.SharedMemory
	}
	if def.Dataset != nil {
		data, err := def.Dataset.Generate()
		if err != nil {
			return nil, err
		}
		req.Data = data
		if err := checkFolds(def, data.Rows()); err != nil {
			return nil, err
		}
	}
	return req, nil
}

// checkFolds rejects datasets too small to split into the cross-validation
// folds, including the slice each scatter evaluation is scored on.
func checkFolds(def *Definition, rows int) error {
	folds := def.CV
	if folds == 0 {
		folds = scoring.DefaultFolds
	}
	if rows < folds {
		return fmt.Errorf("dataset has %d rows, fewer than the %d cv folds", rows, folds)
	}
	if def.ScatterInit < 2 {
		return nil
	}
	for _, m := range def.Models {
		if m.WarmStart != nil {
			continue
		}
		if per := rows / def.ScatterInit; per < folds {
			return fmt.Errorf("scatter_init %d leaves %d of %d rows per evaluation, fewer than the %d cv folds",
				def.ScatterInit, per, rows, folds)
		}
		break
	}
	return nil
}
