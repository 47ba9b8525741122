package acquisition

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpectedImprovement(t *testing.T) {
	tests := []struct {
		name         string
		goal         Goal
		bestObserved float64
		xi           float64
		mu           float64
		sigma        float64
		expected     float64
	}{
		{
			name:         "minimize no improvement",
			goal:         Minimize,
			bestObserved: 1.0,
			xi:           0.01,
			mu:           1.5,
			sigma:        0.0,
			expected:     0.0,
		},
		{
			name:         "minimize definite improvement",
			goal:         Minimize,
			bestObserved: 1.0,
			xi:           0.01,
			mu:           0.5,
			sigma:        0.2,
			expected:     0.4905,
		},
		{
			name:         "minimize zero sigma",
			goal:         Minimize,
			bestObserved: 1.0,
			mu:           0.5,
			expected:     0.5,
		},
		{
			name:         "maximize zero sigma",
			goal:         Maximize,
			bestObserved: 1.0,
			mu:           1.75,
			expected:     0.75,
		},
		{
			name:         "maximize mirrors minimize",
			goal:         Maximize,
			bestObserved: -1.0,
			xi:           0.01,
			mu:           -0.5,
			sigma:        0.2,
			expected:     0.4905,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ei := NewExpectedImprovement(tt.goal, tt.bestObserved, tt.xi)
			assert.InDelta(t, tt.expected, ei.Compute(tt.mu, tt.sigma), 1e-4)
		})
	}
}

func TestExpectedImprovementUncertaintyHelps(t *testing.T) {
	ei := NewExpectedImprovement(Maximize, 1.0, 0)
	// equal means: the more uncertain prediction has more upside
	assert.Greater(t, ei.Compute(0.8, 0.5), ei.Compute(0.8, 0.1))
	assert.GreaterOrEqual(t, ei.Compute(-10, 0.01), 0.0)
}

func TestExpectedImprovementUpdate(t *testing.T) {
	ei := NewExpectedImprovement(Maximize, math.NaN(), 0.01)
	assert.Equal(t, 0.0, ei.Compute(5, 1))

	ei.UpdateBest(0.5)
	assert.Equal(t, 0.5, ei.BestObserved())
	assert.Greater(t, ei.Compute(0.6, 0.1), 0.0)
}

func TestUpperConfidenceBound(t *testing.T) {
	u := NewUpperConfidenceBound(Maximize, 0)
	assert.Equal(t, 2.0, u.kappa)
	assert.Equal(t, 2.0, u.Compute(1, 0.5))

	m := NewUpperConfidenceBound(Minimize, 1)
	assert.Equal(t, -0.5, m.Compute(1, 0.5))
}

func TestNew(t *testing.T) {
	f, err := New("", Maximize, 0.01)
	require.NoError(t, err)
	assert.IsType(t, &ExpectedImprovement{}, f)

	f, err = New("ucb", Maximize, 1)
	require.NoError(t, err)
	assert.IsType(t, &UpperConfidenceBound{}, f)

	_, err = New("pi", Maximize, 0)
	assert.Error(t, err)
}
