// Package scoring maps scorer names to constructors so that studies can name
// the model they search instead of loading code dynamically.
package scoring

import (
	"fmt"
	"sort"
	"sync"

	"github.com/copyleftdev/hypersearch/internal/optimization"
)

// DefaultFolds is the cross-validation fold count used when Options.Folds is 0.
const DefaultFolds = 3

// Options configure a scorer at construction.
type Options struct {
	// Metric selects the validation metric; "" selects the scorer default.
	Metric string
	// Folds is the number of cross-validation folds; 0 selects DefaultFolds.
	Folds int
}

func (o Options) folds() int {
	if o.Folds == 0 {
		return DefaultFolds
	}
	return o.Folds
}

// Constructor builds a scorer from options.
type Constructor func(opts Options) (optimization.Scorer, error)

// Info describes a registered scorer.
type Info struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Parameters  []string `json:"parameters"`
	Metrics     []string `json:"metrics,omitempty"`
}

type registration struct {
	info        Info
	constructor Constructor
}

// Registry is a concurrency-safe name to constructor mapping.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]registration
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]registration)}
}

// Register adds a scorer. Names must be unique.
func (r *Registry) Register(info Info, c Constructor) error {
	if info.Name == "" {
		return fmt.Errorf("scorer name is required")
	}
	if c == nil {
		return fmt.Errorf("scorer %q: constructor is nil", info.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[info.Name]; ok {
		return fmt.Errorf("scorer %q is already registered", info.Name)
	}
	r.entries[info.Name] = registration{info: info, constructor: c}
	return nil
}

// MustRegister is Register that panics on error.
func (r *Registry) MustRegister(info Info, c Constructor) {
	if err := r.Register(info, c); err != nil {
		panic(err)
	}
}

// Lookup constructs the named scorer.
func (r *Registry) Lookup(name string, opts Options) (optimization.Scorer, error) {
	r.mu.RLock()
	reg, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, optimization.NewErrorf("unknown scorer %q", name).
			WithComponent("scoring").WithOperation("Lookup")
	}
	s, err := reg.constructor(opts)
	if err != nil {
		return nil, optimization.WrapErrorf(err, "scorer %q", name).
			WithComponent("scoring").WithOperation("Lookup")
	}
	return s, nil
}

// Names returns the registered names in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns the descriptions of all scorers sorted by name.
func (r *Registry) List() []Info {
	names := r.Names()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Info, 0, len(names))
	for _, name := range names {
		out = append(out, r.entries[name].info)
	}
	return out
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the registry holding the built-in scorers.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
		RegisterBuiltins(defaultRegistry)
	})
	return defaultRegistry
}

// RegisterBuiltins adds the sum, ridge and knn scorers to r.
func RegisterBuiltins(r *Registry) {
	r.MustRegister(Info{
		Name:        NameSum,
		Description: "Sum of all numeric parameters; booleans count as 0 or 1. Ignores the data.",
		Parameters:  []string{"any numeric or boolean"},
	}, newSum)
	r.MustRegister(Info{
		Name:        NameRidge,
		Description: "Ridge regression scored by k-fold cross-validation.",
		Parameters:  []string{"alpha", "fit_intercept"},
		Metrics:     []string{MetricR2, MetricNegMSE},
	}, newRidge)
	r.MustRegister(Info{
		Name:        NameKNN,
		Description: "k-nearest-neighbours classifier scored by k-fold cross-validation.",
		Parameters:  []string{"n_neighbors", "weights", "p"},
		Metrics:     []string{MetricAccuracy},
	}, newKNN)
}
