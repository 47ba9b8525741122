package optimization

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/copyleftdev/hypersearch/internal/dataset"
)

// Position is a fixed-length tuple of grid indices, one per search dimension.
type Position []int

// Key returns a stable string form of the position usable as a map key.
func (p Position) Key() string {
	var b strings.Builder
	for i, idx := range p {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(idx))
	}
	return b.String()
}

// Clone returns a copy that does not share storage with p.
func (p Position) Clone() Position {
	if p == nil {
		return nil
	}
	return append(Position(nil), p...)
}

// Equal reports whether both positions address the same grid point.
func (p Position) Equal(o Position) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

func (p Position) String() string {
	return "(" + p.Key() + ")"
}

// Configuration is the decoded, human-meaningful hyperparameter assignment
// corresponding to a position.
type Configuration map[string]interface{}

// Clone returns a shallow copy of the configuration.
func (c Configuration) Clone() Configuration {
	out := make(Configuration, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Names returns the parameter names in lexical order.
func (c Configuration) Names() []string {
	names := make([]string, 0, len(c))
	for k := range c {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Float returns a numeric parameter as float64.
func (c Configuration) Float(name string) (float64, error) {
	v, ok := c[name]
	if !ok {
		return 0, fmt.Errorf("parameter %q is not set", name)
	}
	if f, ok := ToFloat(v); ok {
		return f, nil
	}
	return 0, fmt.Errorf("parameter %q: %v (%T) is not numeric", name, v, v)
}

// Int returns an integral parameter. Floats with a fractional part are rejected.
func (c Configuration) Int(name string) (int, error) {
	f, err := c.Float(name)
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("parameter %q: %v is not an integer", name, f)
	}
	return int(f), nil
}

// Bool returns a boolean parameter.
func (c Configuration) Bool(name string) (bool, error) {
	v, ok := c[name]
	if !ok {
		return false, fmt.Errorf("parameter %q is not set", name)
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("parameter %q: %v (%T) is not a boolean", name, v, v)
	}
	return b, nil
}

// String returns a string parameter.
func (c Configuration) String(name string) (string, error) {
	v, ok := c[name]
	if !ok {
		return "", fmt.Errorf("parameter %q is not set", name)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("parameter %q: %v (%T) is not a string", name, v, v)
	}
	return s, nil
}

// ToFloat converts any Go numeric value to float64.
func ToFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// Scorer is the external evaluation collaborator: it fits and validates a
// model for one configuration and returns a score where higher is better.
// It must be deterministic for the same configuration and data.
type Scorer interface {
	Score(ctx context.Context, cfg Configuration, data *dataset.Dataset) (float64, error)
}

// ScorerFunc adapts a plain function to the Scorer interface.
type ScorerFunc func(ctx context.Context, cfg Configuration, data *dataset.Dataset) (float64, error)

// Score calls f(ctx, cfg, data).
func (f ScorerFunc) Score(ctx context.Context, cfg Configuration, data *dataset.Dataset) (float64, error) {
	return f(ctx, cfg, data)
}

// Evaluation is a single scored visit of a search job.
type Evaluation struct {
	Iteration int
	Position  Position
	Score     float64
	Cached    bool
}

// SearchResult is the immutable outcome of one search job.
type SearchResult struct {
	JobID             int
	Model             string
	Strategy          string
	BestPosition      Position
	BestScore         float64
	BestConfiguration Configuration
	Iterations        int
	Evaluations       int
	CacheHits         int
	History           []Evaluation
	Duration          time.Duration
}

// WarmStart returns the best configuration in a form that can seed a later
// search of the same space.
func (r *SearchResult) WarmStart() Configuration {
	if r == nil || r.BestConfiguration == nil {
		return nil
	}
	return r.BestConfiguration.Clone()
}

// Better reports whether r should win a reduction against o: higher score,
// ties broken toward the lower job id.
func (r *SearchResult) Better(o *SearchResult) bool {
	if o == nil {
		return true
	}
	if r.BestScore != o.BestScore {
		return r.BestScore > o.BestScore
	}
	return r.JobID < o.JobID
}

// JobStatus is the terminal state of a search job.
type JobStatus string

const (
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Observer receives engine events for instrumentation.
type Observer interface {
	EvaluationObserved(model string, cached bool, elapsed time.Duration)
	JobFinished(model string, status JobStatus, elapsed time.Duration, bestScore float64)
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) EvaluationObserved(string, bool, time.Duration) {}
func (NopObserver) JobFinished(string, JobStatus, time.Duration, float64) {}
