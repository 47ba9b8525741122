package scoring

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/copyleftdev/hypersearch/internal/dataset"
	"github.com/copyleftdev/hypersearch/internal/optimization"
)

// NameRidge is the registry name of the ridge scorer.
const NameRidge = "ridge"

// Ridge cross-validates an L2 regularised linear regression.
type Ridge struct {
	metric string
	folds  int
}

func newRidge(opts Options) (optimization.Scorer, error) {
	metric := opts.Metric
	if metric == "" {
		metric = MetricR2
	}
	if metric != MetricR2 && metric != MetricNegMSE {
		return nil, fmt.Errorf("unsupported metric %q", metric)
	}
	if opts.folds() < 2 {
		return nil, fmt.Errorf("at least 2 folds are required, got %d", opts.Folds)
	}
	return &Ridge{metric: metric, folds: opts.folds()}, nil
}

// Score implements optimization.Scorer. Parameters: alpha (default 1) and
// fit_intercept (default true).
func (r *Ridge) Score(ctx context.Context, cfg optimization.Configuration, data *dataset.Dataset) (float64, error) {
	alpha, err := floatParam(cfg, "alpha", 1.0)
	if err != nil {
		return 0, err
	}
	if alpha < 0 {
		return 0, fmt.Errorf("alpha must be non-negative, got %v", alpha)
	}
	intercept, err := boolParam(cfg, "fit_intercept", true)
	if err != nil {
		return 0, err
	}

	return crossValidate(ctx, data, r.folds, func(train, test *dataset.Dataset) (float64, error) {
		model, err := fitRidge(train, alpha, intercept)
		if err != nil {
			return 0, err
		}
		pred := model.predict(test)
		if r.metric == MetricNegMSE {
			return -meanSquaredError(pred, test.Y), nil
		}
		return stat.RSquaredFrom(pred, test.Y, nil), nil
	})
}

type linearModel struct {
	coef      *mat.VecDense
	xMean     []float64
	intercept float64
}

// fitRidge solves (XcᵀXc + αI) w = Xcᵀyc where Xc and yc are centred when an
// intercept is fitted.
func fitRidge(d *dataset.Dataset, alpha float64, intercept bool) (*linearModel, error) {
	n, p := d.X.Dims()
	xMean := make([]float64, p)
	yMean := 0.0
	if intercept {
		for j := 0; j < p; j++ {
			xMean[j] = stat.Mean(mat.Col(nil, j, d.X), nil)
		}
		yMean = stat.Mean(d.Y, nil)
	}

	Xc := mat.NewDense(n, p, nil)
	Xc.Apply(func(i, j int, v float64) float64 { return v - xMean[j] }, d.X)
	yc := mat.NewVecDense(n, nil)
	for i, v := range d.Y {
		yc.SetVec(i, v-yMean)
	}

	var A mat.Dense
	A.Mul(Xc.T(), Xc)
	for j := 0; j < p; j++ {
		A.Set(j, j, A.At(j, j)+alpha)
	}
	var b mat.VecDense
	b.MulVec(Xc.T(), yc)

	var w mat.VecDense
	if err := w.SolveVec(&A, &b); err != nil {
		return nil, fmt.Errorf("ridge system is singular: %w", err)
	}

	b0 := yMean
	for j := 0; j < p; j++ {
		b0 -= xMean[j] * w.AtVec(j)
	}
	return &linearModel{coef: &w, xMean: xMean, intercept: b0}, nil
}

func (m *linearModel) predict(d *dataset.Dataset) []float64 {
	n := d.Rows()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = mat.Dot(d.X.RowView(i), m.coef) + m.intercept
	}
	return out
}

func meanSquaredError(pred, y []float64) float64 {
	sum := 0.0
	for i := range y {
		d := pred[i] - y[i]
		sum += d * d
	}
	return sum / float64(len(y))
}
