// Package acquisition scores surrogate predictions so the bayesian strategy
// can pick the next position to evaluate.
package acquisition

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Goal selects whether higher or lower objective values are better.
type Goal int

const (
	Maximize Goal = iota
	Minimize
)

// Function is an acquisition function over a gaussian posterior.
type Function interface {
	// Compute returns the acquisition value for a prediction with mean mu
	// and standard deviation sigma. Larger is more attractive.
	Compute(mu, sigma float64) float64
	// UpdateBest records the best objective value observed so far.
	UpdateBest(best float64)
}

// New returns an acquisition function by name; "" selects expected
// improvement. param is xi for "ei" and kappa for "ucb".
func New(name string, goal Goal, param float64) (Function, error) {
	switch name {
	case "", "ei":
		return NewExpectedImprovement(goal, math.NaN(), param), nil
	case "ucb":
		return NewUpperConfidenceBound(goal, param), nil
	default:
		return nil, fmt.Errorf("unknown acquisition function %q", name)
	}
}

// ExpectedImprovement implements the Expected Improvement acquisition function
type ExpectedImprovement struct {
	// Best observed value so far
	bestObserved float64
	// Exploration-exploitation trade-off parameter (xi)
	xi   float64
	goal Goal
}

// NewExpectedImprovement creates a new ExpectedImprovement acquisition function
func NewExpectedImprovement(goal Goal, bestObserved, xi float64) *ExpectedImprovement {
	return &ExpectedImprovement{bestObserved: bestObserved, xi: xi, goal: goal}
}

// Compute computes the Expected Improvement at a point. The result is never
// negative. Before any best value is known every point is equally attractive.
func (ei *ExpectedImprovement) Compute(mu, sigma float64) float64 {
	if math.IsNaN(ei.bestObserved) {
		return 0
	}

	improvement := mu - ei.bestObserved - ei.xi
	if ei.goal == Minimize {
		improvement = ei.bestObserved - mu - ei.xi
	}

	if sigma <= 1e-10 {
		return math.Max(0, improvement)
	}

	// EI = improvement * Φ(z) + sigma * φ(z)
	z := improvement / sigma
	value := improvement*distuv.UnitNormal.CDF(z) + sigma*distuv.UnitNormal.Prob(z)
	return math.Max(0, value)
}

// UpdateBest updates the best observed value
func (ei *ExpectedImprovement) UpdateBest(best float64) {
	ei.bestObserved = best
}

// BestObserved returns the best observed value
func (ei *ExpectedImprovement) BestObserved() float64 {
	return ei.bestObserved
}

// UpperConfidenceBound is mu + kappa*sigma (mu - kappa*sigma negated when
// minimizing).
type UpperConfidenceBound struct {
	kappa float64
	goal  Goal
}

// NewUpperConfidenceBound returns a UCB function; non-positive kappa selects 2.
func NewUpperConfidenceBound(goal Goal, kappa float64) *UpperConfidenceBound {
	if kappa <= 0 {
		kappa = 2
	}
	return &UpperConfidenceBound{kappa: kappa, goal: goal}
}

func (u *UpperConfidenceBound) Compute(mu, sigma float64) float64 {
	if u.goal == Minimize {
		return -(mu - u.kappa*sigma)
	}
	return mu + u.kappa*sigma
}

// UpdateBest is a no-op; the bound does not depend on the incumbent.
func (u *UpperConfidenceBound) UpdateBest(float64) {}
