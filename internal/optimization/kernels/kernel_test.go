package kernels

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKernelEval(t *testing.T) {
	tests := []struct {
		name     string
		kernel   string
		ls, sv   float64
		x1, x2   []float64
		expected float64
	}{
		{
			name:     "rbf same point",
			kernel:   NameRBF,
			ls:       1.0,
			sv:       1.0,
			x1:       []float64{1.0, 2.0},
			x2:       []float64{1.0, 2.0},
			expected: 1.0,
		},
		{
			name:     "rbf different points",
			kernel:   NameRBF,
			ls:       1.0,
			sv:       1.0,
			x1:       []float64{0.0, 0.0},
			x2:       []float64{1.0, 1.0},
			expected: math.Exp(-1.0), // exp(-0.5 * (1+1) / 1^2)
		},
		{
			name:     "rbf length scale",
			kernel:   NameRBF,
			ls:       2.0,
			sv:       3.0,
			x1:       []float64{0.0, 0.0},
			x2:       []float64{2.0, 2.0},
			expected: 3 * math.Exp(-1.0),
		},
		{
			name:     "matern same point",
			kernel:   NameMatern52,
			ls:       1.0,
			sv:       1.0,
			x1:       []float64{1.0, 2.0},
			x2:       []float64{1.0, 2.0},
			expected: 1.0,
		},
		{
			name:     "matern different points",
			kernel:   NameMatern52,
			ls:       1.0,
			sv:       1.0,
			x1:       []float64{0.0, 0.0},
			x2:       []float64{1.0, 1.0},
			expected: (1.0 + math.Sqrt(5)*math.Sqrt(2) + (5.0/3.0)*2) * math.Exp(-math.Sqrt(5)*math.Sqrt(2)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, err := New(tt.kernel, tt.ls, tt.sv)
			require.NoError(t, err)

			got := k.Eval(tt.x1, tt.x2)
			assert.InDelta(t, tt.expected, got, 1e-10)
			assert.InDelta(t, got, k.Eval(tt.x2, tt.x1), 1e-12, "kernel is not symmetric")
		})
	}
}

func TestNewKernelValidation(t *testing.T) {
	_, err := New("linear", 1, 1)
	assert.Error(t, err)

	_, err = NewRBFKernel(0, 1)
	assert.EqualError(t, err, "lengthScale must be positive, got 0")

	_, err = NewMatern52Kernel(1, math.NaN())
	assert.Error(t, err)

	k, err := New("", 1, 1)
	require.NoError(t, err)
	assert.IsType(t, &Matern52Kernel{}, k)
}

func TestKernelHyperparameters(t *testing.T) {
	tests := []struct {
		name     string
		kernel   string
		params   []float64
		errorMsg string
	}{
		{name: "rbf valid params", kernel: NameRBF, params: []float64{2.0, 3.0}},
		{name: "rbf invalid count", kernel: NameRBF, params: []float64{1.0}, errorMsg: "expected 2 hyperparameters, got 1"},
		{name: "rbf invalid value", kernel: NameRBF, params: []float64{-1.0, 1.0}, errorMsg: "lengthScale must be positive, got -1"},
		{name: "matern valid params", kernel: NameMatern52, params: []float64{2.0, 3.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, err := New(tt.kernel, 1.0, 1.0)
			require.NoError(t, err)

			err = k.SetHyperparameters(tt.params)
			if tt.errorMsg != "" {
				assert.EqualError(t, err, tt.errorMsg)
				assert.Equal(t, []float64{1.0, 1.0}, k.Hyperparameters())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.params, k.Hyperparameters())
		})
	}
}
