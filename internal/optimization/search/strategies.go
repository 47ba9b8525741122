package search

import (
	"sort"

	"go.uber.org/zap"

	"github.com/copyleftdev/hypersearch/internal/optimization"
	"github.com/copyleftdev/hypersearch/internal/optimization/bayesian"
	"github.com/copyleftdev/hypersearch/internal/optimization/strategy"
)

// StrategyNames lists the strategies accepted by NewStrategy.
func StrategyNames() []string {
	names := []string{
		strategy.NameRandom,
		strategy.NameHillClimbing,
		strategy.NameSimulatedAnnealing,
		bayesian.Name,
	}
	sort.Strings(names)
	return names
}

// NewStrategy resolves a strategy name to a factory. The empty name selects
// random search.
func NewStrategy(name string, logger *zap.Logger) (strategy.Factory, error) {
	switch name {
	case "", strategy.NameRandom:
		return strategy.NewRandom, nil
	case strategy.NameHillClimbing:
		return func() strategy.MoveStrategy { return strategy.NewHillClimbing(0) }, nil
	case strategy.NameSimulatedAnnealing:
		return func() strategy.MoveStrategy { return strategy.NewSimulatedAnnealing(0, nil) }, nil
	case bayesian.Name:
		return bayesian.Factory(bayesian.Config{}, logger), nil
	default:
		return nil, optimization.NewErrorf("unknown strategy %q", name).
			WithComponent("search").WithOperation("NewStrategy")
	}
}
