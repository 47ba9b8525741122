// Package space maps a configuration schema onto integer grid positions.
package space

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/copyleftdev/hypersearch/internal/optimization"
)

type axisKind int

const (
	axisDiscrete axisKind = iota
	axisFloat
	axisInt
)

type axis struct {
	name   string
	kind   axisKind
	values []interface{}
	low    float64
	step   float64
}

// SearchSpace is an immutable, discretized view of a configuration schema.
// Encoding is stable for the lifetime of the instance.
type SearchSpace struct {
	axes  []axis
	index map[string]int
}

// New validates the schema and builds its grid. It fails with
// *optimization.InvalidDimensionError on any malformed dimension.
func New(schema Schema) (*SearchSpace, error) {
	if len(schema) == 0 {
		return nil, &optimization.InvalidDimensionError{Reason: "schema has no dimensions"}
	}

	s := &SearchSpace{
		axes:  make([]axis, 0, len(schema)),
		index: make(map[string]int, len(schema)),
	}
	for _, d := range schema {
		values, err := d.Domain()
		if err != nil {
			return nil, err
		}
		if _, dup := s.index[d.Name]; dup {
			return nil, &optimization.InvalidDimensionError{Dimension: d.Name, Reason: "duplicate dimension name"}
		}

		a := axis{name: d.Name, values: values, kind: axisDiscrete}
		if d.IsRange() {
			a.low, a.step = *d.Low, *d.Step
			a.kind = axisFloat
			if d.Kind == KindInt {
				a.kind = axisInt
			}
		}
		s.index[d.Name] = len(s.axes)
		s.axes = append(s.axes, a)
	}
	return s, nil
}

// Dimensions returns the number of axes.
func (s *SearchSpace) Dimensions() int { return len(s.axes) }

// Names returns the dimension names in schema order.
func (s *SearchSpace) Names() []string {
	names := make([]string, len(s.axes))
	for i, a := range s.axes {
		names[i] = a.name
	}
	return names
}

// Size returns the number of grid points of dimension i.
func (s *SearchSpace) Size(i int) int { return len(s.axes[i].values) }

// Values returns a copy of the admissible values of the named dimension.
func (s *SearchSpace) Values(name string) ([]interface{}, bool) {
	i, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return append([]interface{}(nil), s.axes[i].values...), true
}

// Cardinality returns the number of grid points of the whole space.
func (s *SearchSpace) Cardinality() float64 {
	n := 1.0
	for _, a := range s.axes {
		n *= float64(len(a.values))
	}
	return n
}

// Valid reports whether pos addresses a grid point of this space.
func (s *SearchSpace) Valid(pos optimization.Position) bool {
	if len(pos) != len(s.axes) {
		return false
	}
	for i, idx := range pos {
		if idx < 0 || idx >= len(s.axes[i].values) {
			return false
		}
	}
	return true
}

// Decode maps a position to its configuration.
func (s *SearchSpace) Decode(pos optimization.Position) (optimization.Configuration, error) {
	if !s.Valid(pos) {
		return nil, optimization.NewErrorf("position %s is outside the grid", pos).
			WithComponent("space").WithOperation("Decode")
	}
	cfg := make(optimization.Configuration, len(s.axes))
	for i, a := range s.axes {
		cfg[a.name] = a.values[pos[i]]
	}
	return cfg, nil
}

// Encode maps a configuration to its position. The configuration must name
// exactly the schema's dimensions and every value must lie on the grid;
// otherwise *optimization.InvalidWarmStartError is returned.
func (s *SearchSpace) Encode(cfg optimization.Configuration) (optimization.Position, error) {
	for name, v := range cfg {
		if _, ok := s.index[name]; !ok {
			return nil, &optimization.InvalidWarmStartError{Parameter: name, Value: v, Reason: "not a dimension of the search space"}
		}
	}

	pos := make(optimization.Position, len(s.axes))
	for i, a := range s.axes {
		v, ok := cfg[a.name]
		if !ok {
			return nil, &optimization.InvalidWarmStartError{Parameter: a.name, Reason: "missing value"}
		}
		idx, err := a.indexOf(v)
		if err != nil {
			return nil, &optimization.InvalidWarmStartError{Parameter: a.name, Value: v, Reason: err.Error()}
		}
		pos[i] = idx
	}
	return pos, nil
}

// RandomPosition draws one index per dimension, independently uniform.
func (s *SearchSpace) RandomPosition(rng *rand.Rand) optimization.Position {
	pos := make(optimization.Position, len(s.axes))
	for i, a := range s.axes {
		pos[i] = rng.Intn(len(a.values))
	}
	return pos
}

// Normalize maps a position into [0,1]^d. Single-point axes map to 0.
func (s *SearchSpace) Normalize(pos optimization.Position) []float64 {
	out := make([]float64, len(pos))
	for i, idx := range pos {
		if n := len(s.axes[i].values); n > 1 {
			out[i] = float64(idx) / float64(n-1)
		}
	}
	return out
}

func (a axis) indexOf(v interface{}) (int, error) {
	if a.kind == axisDiscrete {
		for i, candidate := range a.values {
			if equalValues(candidate, v) {
				return i, nil
			}
		}
		return 0, fmt.Errorf("value is not in the discrete domain")
	}

	f, ok := optimization.ToFloat(v)
	if !ok {
		return 0, fmt.Errorf("range dimension needs a numeric value, got %T", v)
	}
	idx := int(math.Round((f - a.low) / a.step))
	if idx < 0 || idx >= len(a.values) {
		return 0, fmt.Errorf("value is outside the range")
	}
	grid, _ := optimization.ToFloat(a.values[idx])
	if math.Abs(grid-f) > 1e-9*math.Max(1, math.Abs(f)) {
		return 0, fmt.Errorf("value is not on the grid (nearest point %v)", a.values[idx])
	}
	return idx, nil
}
