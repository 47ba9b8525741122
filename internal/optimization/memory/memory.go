// Package memory memoizes scores by position so that no position is evaluated
// more than once within the memory's scope.
package memory

import (
	"sync"

	"github.com/copyleftdev/hypersearch/internal/optimization"
)

// Evaluator computes the score of a position on a cache miss.
type Evaluator func(pos optimization.Position) (float64, error)

// Cache is the single chokepoint through which all scoring passes.
type Cache interface {
	// GetOrEvaluate returns the stored score for pos, or calls evaluate,
	// stores a successful result and returns it. cached reports a hit.
	GetOrEvaluate(pos optimization.Position, evaluate Evaluator) (score float64, cached bool, err error)
	// Len returns the number of stored positions.
	Len() int
}

// Memory is the per-job cache. It is owned by exactly one job and is not safe
// for concurrent use.
type Memory struct {
	scores map[string]float64
}

// New returns an empty per-job memory.
func New() *Memory {
	return &Memory{scores: make(map[string]float64)}
}

// GetOrEvaluate implements Cache. Failed evaluations are not stored.
func (m *Memory) GetOrEvaluate(pos optimization.Position, evaluate Evaluator) (float64, bool, error) {
	key := pos.Key()
	if score, ok := m.scores[key]; ok {
		return score, true, nil
	}
	score, err := evaluate(pos)
	if err != nil {
		return 0, false, err
	}
	m.scores[key] = score
	return score, false, nil
}

// Lookup returns the stored score for pos without evaluating.
func (m *Memory) Lookup(pos optimization.Position) (float64, bool) {
	score, ok := m.scores[pos.Key()]
	return score, ok
}

// Len implements Cache.
func (m *Memory) Len() int { return len(m.scores) }

// Shared is a cache that several jobs searching the same space may use at
// once. Concurrent requests for a position that is being evaluated wait for
// that evaluation instead of starting their own.
type Shared struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	done     chan struct{}
	score    float64
	err      error
	panicked bool
}

// NewShared returns an empty shared cache.
func NewShared() *Shared {
	return &Shared{entries: make(map[string]*entry)}
}

// GetOrEvaluate implements Cache. A failed evaluation is reported to every
// waiter and then forgotten. If the evaluating job panics, its waiters
// evaluate the position themselves.
func (s *Shared) GetOrEvaluate(pos optimization.Position, evaluate Evaluator) (float64, bool, error) {
	key := pos.Key()

	for {
		s.mu.Lock()
		e, ok := s.entries[key]
		if !ok {
			e = &entry{done: make(chan struct{})}
			s.entries[key] = e
			s.mu.Unlock()
			return s.evaluate(key, e, pos, evaluate)
		}
		s.mu.Unlock()

		<-e.done
		if e.panicked {
			continue
		}
		if e.err != nil {
			return 0, false, e.err
		}
		return e.score, true, nil
	}
}

// evaluate fills e, which the caller has just published under key.
func (s *Shared) evaluate(key string, e *entry, pos optimization.Position, evaluate Evaluator) (float64, bool, error) {
	completed := false
	defer func() {
		e.panicked = !completed
		if e.panicked || e.err != nil {
			s.mu.Lock()
			delete(s.entries, key)
			s.mu.Unlock()
		}
		close(e.done)
	}()
	e.score, e.err = evaluate(pos)
	completed = true

	if e.err != nil {
		return 0, false, e.err
	}
	return e.score, false, nil
}

// Len implements Cache. Positions still being evaluated are counted.
func (s *Shared) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Disabled evaluates on every call. It backs searches that turn memoization off.
type Disabled struct{}

// GetOrEvaluate implements Cache by always calling evaluate.
func (Disabled) GetOrEvaluate(pos optimization.Position, evaluate Evaluator) (float64, bool, error) {
	score, err := evaluate(pos)
	return score, false, err
}

// Len implements Cache.
func (Disabled) Len() int { return 0 }
