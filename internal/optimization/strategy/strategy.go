// Package strategy contains the move strategies that propose the next
// position of a search job.
package strategy

import (
	"math"
	"math/rand"

	"github.com/copyleftdev/hypersearch/internal/optimization"
	"github.com/copyleftdev/hypersearch/internal/optimization/space"
)

// Strategy names.
const (
	NameRandom             = "random"
	NameHillClimbing       = "hill_climbing"
	NameSimulatedAnnealing = "simulated_annealing"
)

// State is the read-only view of a job's candidate that strategies work on.
type State interface {
	Space() *space.SearchSpace
	Rand() *rand.Rand
	CurrentPosition() optimization.Position
	CurrentScore() float64
	BestPosition() optimization.Position
	BestScore() float64
	// Iteration is the number of budgeted iterations already completed.
	Iteration() int
	Budget() int
	History() []optimization.Evaluation
}

// MoveStrategy proposes positions. A job calls Propose, evaluates the result,
// commits it, then calls Observe with the score before the next Propose.
// Instances hold per-job state and must not be shared between jobs.
type MoveStrategy interface {
	Name() string
	Propose(s State) optimization.Position
	Observe(s State, pos optimization.Position, score float64)
}

// Factory creates a fresh strategy for one job.
type Factory func() MoveStrategy

// Random is the baseline strategy: every proposal is an independent uniform
// draw from the grid, with no bias toward the current position.
type Random struct{}

// NewRandom returns the random search strategy.
func NewRandom() MoveStrategy { return Random{} }

func (Random) Name() string { return NameRandom }

// Propose draws a uniformly random position.
func (Random) Propose(s State) optimization.Position {
	return s.Space().RandomPosition(s.Rand())
}

func (Random) Observe(State, optimization.Position, float64) {}

// HillClimbing proposes gaussian perturbations of the best position found so
// far. Epsilon scales the spread relative to each axis size.
type HillClimbing struct {
	Epsilon float64
}

// NewHillClimbing returns a hill climber with the given spread; non-positive
// values select 0.05.
func NewHillClimbing(epsilon float64) *HillClimbing {
	if epsilon <= 0 {
		epsilon = 0.05
	}
	return &HillClimbing{Epsilon: epsilon}
}

func (h *HillClimbing) Name() string { return NameHillClimbing }

// Propose perturbs the best position.
func (h *HillClimbing) Propose(s State) optimization.Position {
	return Neighbor(s.Space(), s.Rand(), s.BestPosition(), h.Epsilon)
}

func (h *HillClimbing) Observe(State, optimization.Position, float64) {}

// Neighbor draws a position near anchor: each index moves by a rounded
// normal step with standard deviation max(1, epsilon*size) and is clamped
// to the axis. If every index stays put, one movable axis is nudged by one.
func Neighbor(sp *space.SearchSpace, rng *rand.Rand, anchor optimization.Position, epsilon float64) optimization.Position {
	if !sp.Valid(anchor) {
		return sp.RandomPosition(rng)
	}
	pos := anchor.Clone()
	moved := false
	for i := range pos {
		size := sp.Size(i)
		if size < 2 {
			continue
		}
		sigma := math.Max(1, epsilon*float64(size))
		next := clamp(pos[i]+int(math.Round(rng.NormFloat64()*sigma)), 0, size-1)
		if next != pos[i] {
			moved = true
		}
		pos[i] = next
	}
	if moved {
		return pos
	}

	movable := make([]int, 0, len(pos))
	for i := range pos {
		if sp.Size(i) > 1 {
			movable = append(movable, i)
		}
	}
	if len(movable) == 0 {
		return pos
	}
	i := movable[rng.Intn(len(movable))]
	switch {
	case pos[i] == 0:
		pos[i]++
	case pos[i] == sp.Size(i)-1:
		pos[i]--
	case rng.Intn(2) == 0:
		pos[i]++
	default:
		pos[i]--
	}
	return pos
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
