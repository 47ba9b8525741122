package scoring

import (
	"context"
	"fmt"
	"math"

	"github.com/copyleftdev/hypersearch/internal/dataset"
	"github.com/copyleftdev/hypersearch/internal/optimization"
)

// Metric names.
const (
	MetricR2       = "r2"
	MetricNegMSE   = "neg_mse"
	MetricAccuracy = "accuracy"
)

// foldScorer fits on train and returns the metric on test.
type foldScorer func(train, test *dataset.Dataset) (float64, error)

// crossValidate returns the mean fold score. The context is checked between
// folds.
func crossValidate(ctx context.Context, data *dataset.Dataset, folds int, score foldScorer) (float64, error) {
	if data == nil {
		return 0, fmt.Errorf("training data is required")
	}
	splits, err := data.KFold(folds)
	if err != nil {
		return 0, err
	}
	total := 0.0
	for _, f := range splits {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		s, err := score(data.Subset(f.Train), data.Subset(f.Test))
		if err != nil {
			return 0, err
		}
		total += s
	}
	mean := total / float64(len(splits))
	if math.IsNaN(mean) || math.IsInf(mean, 0) {
		return 0, fmt.Errorf("metric is undefined on this data")
	}
	return mean, nil
}

func floatParam(cfg optimization.Configuration, name string, def float64) (float64, error) {
	if _, ok := cfg[name]; !ok {
		return def, nil
	}
	return cfg.Float(name)
}

func intParam(cfg optimization.Configuration, name string, def int) (int, error) {
	if _, ok := cfg[name]; !ok {
		return def, nil
	}
	return cfg.Int(name)
}

func boolParam(cfg optimization.Configuration, name string, def bool) (bool, error) {
	if _, ok := cfg[name]; !ok {
		return def, nil
	}
	return cfg.Bool(name)
}

func stringParam(cfg optimization.Configuration, name, def string) (string, error) {
	if _, ok := cfg[name]; !ok {
		return def, nil
	}
	return cfg.String(name)
}
