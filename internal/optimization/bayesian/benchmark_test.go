package bayesian

import (
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/hypersearch/internal/optimization/kernels"
	"github.com/copyleftdev/hypersearch/internal/optimization/space"
)

func benchData(n, features int) (*mat.Dense, []float64) {
	rng := rand.New(rand.NewSource(42))
	X := mat.NewDense(n, features, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < features; j++ {
			X.Set(i, j, rng.Float64())
		}
		y[i] = rng.NormFloat64()
	}
	return X, y
}

// BenchmarkGPFit measures the performance of fitting a Gaussian Process model
func BenchmarkGPFit(b *testing.B) {
	X, y := benchData(100, 5)
	kernel, _ := kernels.NewMatern52Kernel(0.25, 1.0)
	gp := NewGP(kernel, 1e-6, nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = gp.Fit(X, y)
	}
}

func BenchmarkGPPredict(b *testing.B) {
	X, y := benchData(100, 5)
	test, _ := benchData(256, 5)
	kernel, _ := kernels.NewMatern52Kernel(0.25, 1.0)
	gp := NewGP(kernel, 1e-6, nil)
	if err := gp.Fit(X, y); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = gp.Predict(test)
	}
}

func BenchmarkStrategyPropose(b *testing.B) {
	sp, err := space.New(space.Schema{
		space.Integer("a", 0, 99, 1),
		space.Continuous("b", 0, 1, 0.01),
	})
	if err != nil {
		b.Fatal(err)
	}
	w := &walk{sp: sp, rng: rand.New(rand.NewSource(1)), budget: 50}
	for i := 0; i < 50; i++ {
		pos := sp.RandomPosition(w.rng)
		w.record(pos, float64(pos[0]+pos[1]))
	}
	s := New(Config{}, nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = s.Propose(w)
	}
}

