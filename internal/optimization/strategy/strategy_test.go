package strategy

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/hypersearch/internal/optimization"
	"github.com/copyleftdev/hypersearch/internal/optimization/space"
)

type fakeState struct {
	sp        *space.SearchSpace
	rng       *rand.Rand
	current   optimization.Position
	score     float64
	best      optimization.Position
	bestScore float64
	iter      int
	budget    int
}

func (f *fakeState) Space() *space.SearchSpace { return f.sp }
func (f *fakeState) Rand() *rand.Rand { return f.rng }
func (f *fakeState) CurrentPosition() optimization.Position { return f.current }
func (f *fakeState) CurrentScore() float64 { return f.score }
func (f *fakeState) BestPosition() optimization.Position { return f.best }
func (f *fakeState) BestScore() float64 { return f.bestScore }
func (f *fakeState) Iteration() int { return f.iter }
func (f *fakeState) Budget() int { return f.budget }
func (f *fakeState) History() []optimization.Evaluation { return nil }

func newState(t *testing.T, seed int64) *fakeState {
	t.Helper()
	sp, err := space.New(space.Schema{
		space.Integer("a", 0, 99, 1),
		space.Discrete("b", "x", "y", "z"),
	})
	require.NoError(t, err)
	start := optimization.Position{50, 1}
	return &fakeState{
		sp:      sp,
		rng:     rand.New(rand.NewSource(seed)),
		current: start,
		best:    start,
		budget:  100,
	}
}

func TestRandomProposesValidPositions(t *testing.T) {
	st := newState(t, 1)
	s := NewRandom()
	assert.Equal(t, NameRandom, s.Name())

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		pos := s.Propose(st)
		require.True(t, st.sp.Valid(pos), "invalid position %v", pos)
		seen[pos.Key()] = true
	}
	// independent of the current position
	assert.Greater(t, len(seen), 100)
}

func TestRandomIsReproducible(t *testing.T) {
	a, b := newState(t, 7), newState(t, 7)
	for i := 0; i < 20; i++ {
		assert.Equal(t, NewRandom().Propose(a), NewRandom().Propose(b))
	}
}

func TestNeighborStaysNearAnchor(t *testing.T) {
	st := newState(t, 3)
	anchor := optimization.Position{50, 1}
	for i := 0; i < 200; i++ {
		pos := Neighbor(st.sp, st.rng, anchor, 0.05)
		require.True(t, st.sp.Valid(pos))
		assert.False(t, pos.Equal(anchor), "neighbor must differ from anchor")
		assert.LessOrEqual(t, math.Abs(float64(pos[0]-anchor[0])), 30.0)
	}
}

func TestNeighborClampsAtEdges(t *testing.T) {
	st := newState(t, 5)
	anchor := optimization.Position{99, 2}
	for i := 0; i < 100; i++ {
		pos := Neighbor(st.sp, st.rng, anchor, 0.5)
		require.True(t, st.sp.Valid(pos))
	}
}

func TestNeighborSinglePoint(t *testing.T) {
	sp, err := space.New(space.Schema{space.Discrete("only", 1)})
	require.NoError(t, err)
	pos := Neighbor(sp, rand.New(rand.NewSource(1)), optimization.Position{0}, 0.1)
	assert.Equal(t, optimization.Position{0}, pos)
}

func TestHillClimbingFollowsBest(t *testing.T) {
	st := newState(t, 11)
	st.best = optimization.Position{10, 0}
	h := NewHillClimbing(0)
	assert.Equal(t, 0.05, h.Epsilon)
	for i := 0; i < 50; i++ {
		pos := h.Propose(st)
		assert.Less(t, pos[0], 40)
	}
}

func TestExponentialSchedule(t *testing.T) {
	s := ExponentialSchedule{Start: 1, End: 0.01}
	assert.InDelta(t, 1.0, s.Temperature(0, 11), 1e-12)
	assert.InDelta(t, 0.1, s.Temperature(5, 11), 1e-12)
	assert.InDelta(t, 0.01, s.Temperature(10, 11), 1e-12)
	assert.Equal(t, 0.01, s.Temperature(0, 1))
}

func TestSimulatedAnnealingAcceptance(t *testing.T) {
	st := newState(t, 13)
	st.bestScore = 1.0
	a := NewSimulatedAnnealing(0.05, ExponentialSchedule{Start: 1e-9, End: 1e-9})
	assert.Equal(t, NameSimulatedAnnealing, a.Name())

	a.Propose(st)
	assert.Equal(t, optimization.Position{50, 1}, a.anchor)

	// improvements are always accepted
	a.Observe(st, optimization.Position{51, 1}, 2.0)
	assert.Equal(t, optimization.Position{51, 1}, a.anchor)
	assert.Equal(t, 2.0, a.anchorScore)

	// near-zero temperature rejects worse moves
	a.Observe(st, optimization.Position{52, 1}, 1.5)
	assert.Equal(t, optimization.Position{51, 1}, a.anchor)
}

func TestSimulatedAnnealingHotAcceptsWorse(t *testing.T) {
	st := newState(t, 17)
	a := NewSimulatedAnnealing(0.05, ExponentialSchedule{Start: 1e9, End: 1e9})
	a.Propose(st)
	a.Observe(st, optimization.Position{40, 0}, -1.0)
	assert.Equal(t, optimization.Position{40, 0}, a.anchor)
}
