// Package dataset holds the numeric training data handed to scorers.
package dataset

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Dataset is a shape-stable design matrix with one target per row.
type Dataset struct {
	X *mat.Dense
	Y []float64
}

// Fold is one train/test split of row indices.
type Fold struct {
	Train []int
	Test  []int
}

// New validates that X and y agree on the number of rows.
func New(X *mat.Dense, y []float64) (*Dataset, error) {
	if X == nil {
		return nil, fmt.Errorf("dataset: design matrix is nil")
	}
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return nil, fmt.Errorf("dataset: design matrix is empty")
	}
	if r != len(y) {
		return nil, fmt.Errorf("dataset: X has %d rows but y has %d values", r, len(y))
	}
	return &Dataset{X: X, Y: y}, nil
}

// FromRows builds a dataset from row slices. All rows must have equal width.
func FromRows(rows [][]float64, y []float64) (*Dataset, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("dataset: no rows")
	}
	width := len(rows[0])
	data := make([]float64, 0, len(rows)*width)
	for i, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("dataset: row %d has %d columns, want %d", i, len(row), width)
		}
		data = append(data, row...)
	}
	if width == 0 {
		return nil, fmt.Errorf("dataset: rows have no columns")
	}
	return New(mat.NewDense(len(rows), width, data), y)
}

// Rows returns the number of samples.
func (d *Dataset) Rows() int {
	if d == nil || d.X == nil {
		return 0
	}
	r, _ := d.X.Dims()
	return r
}

// Features returns the number of columns.
func (d *Dataset) Features() int {
	if d == nil || d.X == nil {
		return 0
	}
	_, c := d.X.Dims()
	return c
}

// Row returns a view of row i.
func (d *Dataset) Row(i int) []float64 {
	return d.X.RawRowView(i)
}

// Subset copies the given rows into a new dataset.
func (d *Dataset) Subset(rows []int) *Dataset {
	c := d.Features()
	X := mat.NewDense(len(rows), c, nil)
	y := make([]float64, len(rows))
	for i, r := range rows {
		X.SetRow(i, d.X.RawRowView(r))
		y[i] = d.Y[r]
	}
	return &Dataset{X: X, Y: y}
}

// Head returns the first n rows. n is clamped to [1, Rows()].
func (d *Dataset) Head(n int) *Dataset {
	total := d.Rows()
	if n >= total {
		return d
	}
	if n < 1 {
		n = 1
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return d.Subset(idx)
}

// KFold splits the rows into k contiguous folds. The first Rows()%k folds
// receive one extra test row.
func (d *Dataset) KFold(k int) ([]Fold, error) {
	n := d.Rows()
	if k < 2 {
		return nil, fmt.Errorf("dataset: need at least 2 folds, got %d", k)
	}
	if k > n {
		return nil, fmt.Errorf("dataset: cannot split %d rows into %d folds", n, k)
	}

	folds := make([]Fold, k)
	start := 0
	for f := 0; f < k; f++ {
		size := n / k
		if f < n%k {
			size++
		}
		end := start + size
		test := make([]int, 0, size)
		train := make([]int, 0, n-size)
		for i := 0; i < n; i++ {
			if i >= start && i < end {
				test = append(test, i)
			} else {
				train = append(train, i)
			}
		}
		folds[f] = Fold{Train: train, Test: test}
		start = end
	}
	return folds, nil
}
