package space

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/exp/constraints"
	"gopkg.in/yaml.v3"

	"github.com/copyleftdev/hypersearch/internal/optimization"
)

// MaxDomainSize bounds the number of grid points a single dimension may have.
const MaxDomainSize = 1 << 20

// Value kinds for range dimensions.
const (
	KindFloat = "float"
	KindInt   = "int"
)

// Dimension is one named axis of the configuration schema: either an explicit
// discrete set of values or a {low, high, step} range that is quantized into a
// grid including both ends.
type Dimension struct {
	Name   string        `yaml:"name" json:"name"`
	Values []interface{} `yaml:"values,omitempty" json:"values,omitempty"`
	Low    *float64      `yaml:"low,omitempty" json:"low,omitempty"`
	High   *float64      `yaml:"high,omitempty" json:"high,omitempty"`
	Step   *float64      `yaml:"step,omitempty" json:"step,omitempty"`
	Kind   string        `yaml:"kind,omitempty" json:"kind,omitempty"`
}

// Discrete returns a dimension over an explicit value set.
func Discrete(name string, values ...interface{}) Dimension {
	return Dimension{Name: name, Values: values}
}

// Continuous returns a float range dimension quantized at step.
func Continuous(name string, low, high, step float64) Dimension {
	return Dimension{Name: name, Low: &low, High: &high, Step: &step}
}

// Integer returns an integer range dimension quantized at step.
func Integer(name string, low, high, step int) Dimension {
	l, h, s := float64(low), float64(high), float64(step)
	return Dimension{Name: name, Low: &l, High: &h, Step: &s, Kind: KindInt}
}

// IsRange reports whether the dimension is described by a range.
func (d Dimension) IsRange() bool {
	return d.Low != nil || d.High != nil || d.Step != nil
}

// Domain validates the descriptor and returns the ordered admissible values.
func (d Dimension) Domain() ([]interface{}, error) {
	invalid := func(format string, args ...interface{}) error {
		return &optimization.InvalidDimensionError{Dimension: d.Name, Reason: fmt.Sprintf(format, args...)}
	}

	if strings.TrimSpace(d.Name) == "" {
		return nil, invalid("name is required")
	}

	if !d.IsRange() {
		if d.Kind != "" {
			return nil, invalid("kind %q only applies to ranges", d.Kind)
		}
		if len(d.Values) == 0 {
			return nil, invalid("domain is empty")
		}
		if len(d.Values) > MaxDomainSize {
			return nil, invalid("domain has %d values, limit is %d", len(d.Values), MaxDomainSize)
		}
		for i := range d.Values {
			for j := 0; j < i; j++ {
				if equalValues(d.Values[i], d.Values[j]) {
					return nil, invalid("duplicate value %v", d.Values[i])
				}
			}
		}
		return append([]interface{}(nil), d.Values...), nil
	}

	if len(d.Values) > 0 {
		return nil, invalid("values and range are mutually exclusive")
	}
	if d.Low == nil || d.High == nil || d.Step == nil {
		return nil, invalid("range needs low, high and step")
	}
	low, high, step := *d.Low, *d.High, *d.Step
	for _, v := range []float64{low, high, step} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, invalid("range bounds must be finite")
		}
	}
	if step <= 0 {
		return nil, invalid("step must be positive, got %v", step)
	}
	if high < low {
		return nil, invalid("high %v is below low %v", high, low)
	}
	if n := math.Floor((high-low)/step+1e-9) + 1; n > MaxDomainSize {
		return nil, invalid("range has %.0f grid points, limit is %d", n, MaxDomainSize)
	}

	switch d.Kind {
	case KindFloat, "":
		grid := Quantize(low, high, step)
		for i := 1; i < len(grid); i++ {
			if grid[i] <= grid[i-1] {
				return nil, invalid("step %v is too fine: grid points %d and %d coincide at %v", step, i-1, i, grid[i])
			}
		}
		return boxed(grid), nil
	case KindInt:
		if low != math.Trunc(low) || high != math.Trunc(high) || step != math.Trunc(step) {
			return nil, invalid("integer range needs integral low, high and step")
		}
		grid := Quantize(int(low), int(high), int(step))
		return boxed(grid), nil
	default:
		return nil, invalid("unknown kind %q", d.Kind)
	}
}

// Quantize returns low, low+step, ... up to and including the last grid point
// not above high. Floating point grids are rounded to the precision of low and
// step so values round-trip through text unchanged.
func Quantize[T constraints.Integer | constraints.Float](low, high, step T) []T {
	if step <= 0 || high < low {
		return nil
	}
	n := int(math.Floor(float64(high-low)/float64(step)+1e-9)) + 1
	prec := decimals(float64(step))
	if p := decimals(float64(low)); p > prec {
		prec = p
	}
	out := make([]T, n)
	for i := range out {
		out[i] = T(roundTo(float64(low)+float64(i)*float64(step), prec))
	}
	return out
}

func boxed[T any](in []T) []interface{} {
	out := make([]interface{}, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

// decimals returns the number of fractional digits in the shortest decimal
// representation of v, capped at 12.
func decimals(v float64) int {
	s := strconv.FormatFloat(math.Abs(v), 'f', -1, 64)
	i := strings.IndexByte(s, '.')
	if i < 0 {
		return 0
	}
	if n := len(s) - i - 1; n < 12 {
		return n
	}
	return 12
}

func roundTo(v float64, prec int) float64 {
	p := math.Pow(10, float64(prec))
	return math.Round(v*p) / p
}

// equalValues compares schema values, treating all numeric types alike.
func equalValues(a, b interface{}) bool {
	fa, okA := optimization.ToFloat(a)
	fb, okB := optimization.ToFloat(b)
	if okA || okB {
		return okA && okB && fa == fb
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	default:
		return fmt.Sprintf("%#v", a) == fmt.Sprintf("%#v", b)
	}
}

// Schema is the ordered list of dimensions of a search space.
type Schema []Dimension

// ParseSchemaYAML decodes a YAML list of dimensions.
func ParseSchemaYAML(data []byte) (Schema, error) {
	var schema Schema
	if err := yaml.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("failed to parse schema YAML: %w", err)
	}
	return schema, nil
}
