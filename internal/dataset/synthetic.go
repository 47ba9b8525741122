package dataset

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Kinds of synthetic data.
const (
	KindRegression     = "regression"
	KindClassification = "classification"
)

// Spec describes a reproducible synthetic dataset.
type Spec struct {
	Kind     string  `yaml:"kind" json:"kind"`
	Rows     int     `yaml:"rows" json:"rows"`
	Features int     `yaml:"features" json:"features"`
	Classes  int     `yaml:"classes,omitempty" json:"classes,omitempty"`
	Noise    float64 `yaml:"noise,omitempty" json:"noise,omitempty"`
	Seed     int64   `yaml:"seed,omitempty" json:"seed,omitempty"`
}

// Generate builds the dataset described by s.
func (s Spec) Generate() (*Dataset, error) {
	if s.Rows < 2 {
		return nil, fmt.Errorf("dataset: rows must be at least 2, got %d", s.Rows)
	}
	if s.Features < 1 {
		return nil, fmt.Errorf("dataset: features must be positive, got %d", s.Features)
	}
	rng := rand.New(rand.NewSource(s.Seed))
	switch s.Kind {
	case KindRegression, "":
		return regression(rng, s.Rows, s.Features, s.Noise), nil
	case KindClassification:
		classes := s.Classes
		if classes == 0 {
			classes = 2
		}
		if classes < 2 {
			return nil, fmt.Errorf("dataset: classification needs at least 2 classes, got %d", classes)
		}
		return classification(rng, s.Rows, s.Features, classes, s.Noise), nil
	default:
		return nil, fmt.Errorf("dataset: unknown kind %q", s.Kind)
	}
}

// regression draws X ~ N(0,1) and y = X·w + noise with w ~ U(-2,2).
func regression(rng *rand.Rand, rows, features int, noise float64) *Dataset {
	w := make([]float64, features)
	for j := range w {
		w[j] = rng.Float64()*4 - 2
	}
	X := mat.NewDense(rows, features, nil)
	y := make([]float64, rows)
	for i := 0; i < rows; i++ {
		var sum float64
		for j := 0; j < features; j++ {
			v := rng.NormFloat64()
			X.Set(i, j, v)
			sum += v * w[j]
		}
		y[i] = sum + noise*rng.NormFloat64()
	}
	return &Dataset{X: X, Y: y}
}

// classification draws gaussian blobs around one random centre per class.
// Labels cycle through the classes so every class is represented.
func classification(rng *rand.Rand, rows, features, classes int, noise float64) *Dataset {
	if noise <= 0 {
		noise = 1
	}
	centres := make([][]float64, classes)
	for c := range centres {
		centres[c] = make([]float64, features)
		for j := range centres[c] {
			centres[c][j] = rng.Float64()*10 - 5
		}
	}
	X := mat.NewDense(rows, features, nil)
	y := make([]float64, rows)
	for i := 0; i < rows; i++ {
		c := i % classes
		for j := 0; j < features; j++ {
			X.Set(i, j, centres[c][j]+noise*rng.NormFloat64())
		}
		y[i] = float64(c)
	}
	return &Dataset{X: X, Y: y}
}
