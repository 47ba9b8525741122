package strategy

import (
	"math"

	"github.com/copyleftdev/hypersearch/internal/optimization"
)

// Schedule provides the temperature for an iteration of a finite run.
type Schedule interface {
	Temperature(iter, total int) float64
}

// ExponentialSchedule cools geometrically from Start to End.
type ExponentialSchedule struct {
	Start float64
	End   float64
}

// Temperature implements Schedule.
func (e ExponentialSchedule) Temperature(iter, total int) float64 {
	if total <= 1 {
		return e.End
	}
	if e.Start <= 0 || e.End <= 0 {
		return 1e-9
	}
	frac := float64(iter) / float64(total-1)
	return e.Start * math.Pow(e.End/e.Start, frac)
}

// SimulatedAnnealing walks from an accepted position to its neighbours and
// accepts worse scores with probability exp((new-current)/T).
type SimulatedAnnealing struct {
	Epsilon  float64
	Schedule Schedule

	anchor      optimization.Position
	anchorScore float64
}

// NewSimulatedAnnealing returns an annealer with the default schedule
// (1.0 down to 0.001) when schedule is nil.
func NewSimulatedAnnealing(epsilon float64, schedule Schedule) *SimulatedAnnealing {
	if epsilon <= 0 {
		epsilon = 0.05
	}
	if schedule == nil {
		schedule = ExponentialSchedule{Start: 1.0, End: 1e-3}
	}
	return &SimulatedAnnealing{Epsilon: epsilon, Schedule: schedule}
}

func (a *SimulatedAnnealing) Name() string { return NameSimulatedAnnealing }

// Propose returns a neighbour of the accepted position.
func (a *SimulatedAnnealing) Propose(s State) optimization.Position {
	if a.anchor == nil {
		a.anchor = s.BestPosition().Clone()
		a.anchorScore = s.BestScore()
	}
	return Neighbor(s.Space(), s.Rand(), a.anchor, a.Epsilon)
}

// Observe applies the acceptance rule to the evaluated proposal.
func (a *SimulatedAnnealing) Observe(s State, pos optimization.Position, score float64) {
	if a.anchor == nil || score >= a.anchorScore {
		a.anchor, a.anchorScore = pos.Clone(), score
		return
	}
	temp := a.Schedule.Temperature(s.Iteration(), s.Budget())
	if temp <= 0 {
		return
	}
	if s.Rand().Float64() < math.Exp((score-a.anchorScore)/temp) {
		a.anchor, a.anchorScore = pos.Clone(), score
	}
}
