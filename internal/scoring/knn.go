package scoring

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/copyleftdev/hypersearch/internal/dataset"
	"github.com/copyleftdev/hypersearch/internal/optimization"
)

// NameKNN is the registry name of the k-nearest-neighbours scorer.
const NameKNN = "knn"

// KNN cross-validates a k-nearest-neighbours classifier. Targets are class
// labels rounded to the nearest integer.
type KNN struct {
	folds int
}

func newKNN(opts Options) (optimization.Scorer, error) {
	if opts.Metric != "" && opts.Metric != MetricAccuracy {
		return nil, fmt.Errorf("unsupported metric %q", opts.Metric)
	}
	if opts.folds() < 2 {
		return nil, fmt.Errorf("at least 2 folds are required, got %d", opts.Folds)
	}
	return &KNN{folds: opts.folds()}, nil
}

type knnParams struct {
	k        int
	distance bool
	p        int
}

// Score implements optimization.Scorer. Parameters: n_neighbors (default 5),
// weights uniform|distance (default uniform), p 1|2 (default 2).
func (s *KNN) Score(ctx context.Context, cfg optimization.Configuration, data *dataset.Dataset) (float64, error) {
	var (
		params knnParams
		err    error
	)
	if params.k, err = intParam(cfg, "n_neighbors", 5); err != nil {
		return 0, err
	}
	if params.k < 1 {
		return 0, fmt.Errorf("n_neighbors must be positive, got %d", params.k)
	}
	weights, err := stringParam(cfg, "weights", "uniform")
	if err != nil {
		return 0, err
	}
	switch weights {
	case "uniform":
	case "distance":
		params.distance = true
	default:
		return 0, fmt.Errorf("unknown weights %q", weights)
	}
	if params.p, err = intParam(cfg, "p", 2); err != nil {
		return 0, err
	}
	if params.p != 1 && params.p != 2 {
		return 0, fmt.Errorf("p must be 1 or 2, got %d", params.p)
	}

	return crossValidate(ctx, data, s.folds, func(train, test *dataset.Dataset) (float64, error) {
		correct := 0
		for i := 0; i < test.Rows(); i++ {
			if classify(train, test.Row(i), params) == label(test.Y[i]) {
				correct++
			}
		}
		return float64(correct) / float64(test.Rows()), nil
	})
}

func label(y float64) int { return int(math.Round(y)) }

func minkowski(a, b []float64, p int) float64 {
	sum := 0.0
	for i := range a {
		d := math.Abs(a[i] - b[i])
		if p == 1 {
			sum += d
		} else {
			sum += d * d
		}
	}
	if p == 1 {
		return sum
	}
	return math.Sqrt(sum)
}

// classify votes among the k nearest training rows. With distance weights an
// exact match outvotes everything else. Vote ties go to the smallest label.
func classify(train *dataset.Dataset, x []float64, params knnParams) int {
	n := train.Rows()
	type neighbour struct {
		idx  int
		dist float64
	}
	all := make([]neighbour, n)
	for i := 0; i < n; i++ {
		all[i] = neighbour{idx: i, dist: minkowski(train.Row(i), x, params.p)}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].dist < all[j].dist })

	k := min(params.k, n)
	nearest := all[:k]
	exact := params.distance && nearest[0].dist == 0

	votes := make(map[int]float64)
	for _, nb := range nearest {
		w := 1.0
		switch {
		case exact && nb.dist != 0:
			continue
		case params.distance && !exact:
			w = 1 / nb.dist
		}
		votes[label(train.Y[nb.idx])] += w
	}

	best, bestVotes := 0, math.Inf(-1)
	labels := make([]int, 0, len(votes))
	for l := range votes {
		labels = append(labels, l)
	}
	sort.Ints(labels)
	for _, l := range labels {
		if votes[l] > bestVotes {
			best, bestVotes = l, votes[l]
		}
	}
	return best
}
