package scoring

import (
	"context"
	"fmt"

	"github.com/copyleftdev/hypersearch/internal/dataset"
	"github.com/copyleftdev/hypersearch/internal/optimization"
)

// NameSum is the registry name of the sum scorer.
const NameSum = "sum"

// Sum scores a configuration by adding up its values. It is a data-free
// benchmark for exercising the search engine.
type Sum struct{}

func newSum(opts Options) (optimization.Scorer, error) {
	if opts.Metric != "" && opts.Metric != NameSum {
		return nil, fmt.Errorf("unsupported metric %q", opts.Metric)
	}
	return Sum{}, nil
}

// Score implements optimization.Scorer.
func (Sum) Score(_ context.Context, cfg optimization.Configuration, _ *dataset.Dataset) (float64, error) {
	total := 0.0
	for _, name := range cfg.Names() {
		switch v := cfg[name].(type) {
		case bool:
			if v {
				total++
			}
		default:
			f, ok := optimization.ToFloat(v)
			if !ok {
				return 0, fmt.Errorf("parameter %q: %v (%T) is not numeric", name, v, v)
			}
			total += f
		}
	}
	return total, nil
}
