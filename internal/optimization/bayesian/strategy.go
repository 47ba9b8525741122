// Package bayesian implements a gaussian process guided move strategy.
package bayesian

import (
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/hypersearch/internal/optimization"
	"github.com/copyleftdev/hypersearch/internal/optimization/acquisition"
	"github.com/copyleftdev/hypersearch/internal/optimization/kernels"
	"github.com/copyleftdev/hypersearch/internal/optimization/strategy"
)

// Name is the registry name of the strategy.
const Name = "bayesian"

// Config tunes the bayesian strategy. Zero values select defaults.
type Config struct {
	// InitialPoints is the number of distinct evaluated positions required
	// before the surrogate is used. Earlier proposals are random.
	InitialPoints int
	// Candidates is the number of random positions scored by the
	// acquisition function per proposal.
	Candidates int
	// Kernel is a kernels name; "" selects matern52.
	Kernel      string
	LengthScale float64
	NoiseVar    float64
	// Acquisition is an acquisition name; "" selects expected improvement.
	Acquisition string
	Xi          float64
}

func (c Config) withDefaults() Config {
	if c.InitialPoints < 1 {
		c.InitialPoints = 5
	}
	if c.Candidates < 1 {
		c.Candidates = 256
	}
	if c.LengthScale <= 0 {
		c.LengthScale = 0.25
	}
	if c.NoiseVar <= 0 {
		c.NoiseVar = 1e-6
	}
	if c.Xi == 0 {
		c.Xi = 0.01
	}
	return c
}

// Strategy proposes the unvisited candidate with the highest acquisition
// value under a GP fitted to the job's history. It falls back to a random
// proposal whenever the surrogate cannot be used.
type Strategy struct {
	cfg    Config
	logger *zap.Logger
}

var _ strategy.MoveStrategy = (*Strategy)(nil)

// New returns a bayesian strategy.
func New(cfg Config, logger *zap.Logger) *Strategy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Strategy{cfg: cfg.withDefaults(), logger: logger.Named("bayesian")}
}

// Factory returns a strategy.Factory producing independent instances.
func Factory(cfg Config, logger *zap.Logger) strategy.Factory {
	return func() strategy.MoveStrategy { return New(cfg, logger) }
}

func (s *Strategy) Name() string { return Name }

func (s *Strategy) Observe(strategy.State, optimization.Position, float64) {}

// Propose implements strategy.MoveStrategy.
func (s *Strategy) Propose(st strategy.State) optimization.Position {
	sp, rng := st.Space(), st.Rand()

	visited, X, y := s.trainingSet(st)
	if len(y) < s.cfg.InitialPoints {
		return sp.RandomPosition(rng)
	}

	kernel, err := kernels.New(s.cfg.Kernel, s.cfg.LengthScale, 1.0)
	if err != nil {
		s.logger.Warn("Invalid kernel, proposing randomly", zap.Error(err))
		return sp.RandomPosition(rng)
	}
	gp := NewGP(kernel, s.cfg.NoiseVar, s.logger)
	if err := gp.Fit(X, y); err != nil {
		s.logger.Debug("GP fit failed, proposing randomly", zap.Error(err))
		return sp.RandomPosition(rng)
	}

	acq, err := acquisition.New(s.cfg.Acquisition, acquisition.Maximize, s.cfg.Xi)
	if err != nil {
		s.logger.Warn("Invalid acquisition function, proposing randomly", zap.Error(err))
		return sp.RandomPosition(rng)
	}
	acq.UpdateBest(st.BestScore())

	candidates := s.candidates(st, visited)
	if len(candidates) == 0 {
		return sp.RandomPosition(rng)
	}

	dims := sp.Dimensions()
	C := mat.NewDense(len(candidates), dims, nil)
	for i, pos := range candidates {
		C.SetRow(i, sp.Normalize(pos))
	}
	mu, sigma, err := gp.Predict(C)
	if err != nil {
		s.logger.Debug("GP prediction failed, proposing randomly", zap.Error(err))
		return sp.RandomPosition(rng)
	}

	best, bestValue := 0, math.Inf(-1)
	for i := range candidates {
		if v := acq.Compute(mu[i], sigma[i]); v > bestValue {
			best, bestValue = i, v
		}
	}
	return candidates[best]
}

// trainingSet collapses the history to one row per distinct position.
func (s *Strategy) trainingSet(st strategy.State) (map[string]bool, *mat.Dense, []float64) {
	sp := st.Space()
	history := st.History()
	visited := make(map[string]bool, len(history))
	rows := make([]float64, 0, len(history)*sp.Dimensions())
	y := make([]float64, 0, len(history))
	for _, ev := range history {
		key := ev.Position.Key()
		if visited[key] {
			continue
		}
		visited[key] = true
		rows = append(rows, sp.Normalize(ev.Position)...)
		y = append(y, ev.Score)
	}
	if len(y) == 0 {
		return visited, nil, nil
	}
	return visited, mat.NewDense(len(y), sp.Dimensions(), rows), y
}

// candidates draws random unvisited positions plus neighbours of the best.
func (s *Strategy) candidates(st strategy.State, visited map[string]bool) []optimization.Position {
	sp, rng := st.Space(), st.Rand()
	seen := make(map[string]bool, s.cfg.Candidates)
	out := make([]optimization.Position, 0, s.cfg.Candidates)
	add := func(pos optimization.Position) {
		key := pos.Key()
		if visited[key] || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, pos)
	}

	local := s.cfg.Candidates / 4
	for i := 0; i < local; i++ {
		add(strategy.Neighbor(sp, rng, st.BestPosition(), 0.05))
	}
	for i := local; i < s.cfg.Candidates; i++ {
		add(sp.RandomPosition(rng))
	}
	return out
}
