// Package study describes one hyperparameter search (the models to try, their
// search spaces, the data and the run settings) and compiles it into a
// parallel.Request.
package study

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/copyleftdev/hypersearch/internal/dataset"
	"github.com/copyleftdev/hypersearch/internal/optimization"
	"github.com/copyleftdev/hypersearch/internal/optimization/space"
)

// Model is one model choice of a study.
type Model struct {
	// Name labels the model in results; it defaults to Scorer.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
	// Scorer names a registered scorer; it defaults to Name.
	Scorer    string                     `yaml:"scorer,omitempty" json:"scorer,omitempty"`
	Space     space.Schema               `yaml:"space" json:"space"`
	WarmStart optimization.Configuration `yaml:"warm_start,omitempty" json:"warm_start,omitempty"`
	// Metric overrides the study metric for this model.
	Metric string `yaml:"metric,omitempty" json:"metric,omitempty"`
}

// Definition is the serialized form of a study.
type Definition struct {
	Name    string        `yaml:"name,omitempty" json:"name,omitempty"`
	Models  []Model       `yaml:"models" json:"models"`
	Dataset *dataset.Spec `yaml:"dataset,omitempty" json:"dataset,omitempty"`

	Iterations int    `yaml:"iterations" json:"iterations"`
	Jobs       int    `yaml:"jobs,omitempty" json:"jobs,omitempty"`
	Seed       *int64 `yaml:"seed,omitempty" json:"seed,omitempty"`
	Strategy   string `yaml:"strategy,omitempty" json:"strategy,omitempty"`

	BestEffort   *bool `yaml:"best_effort,omitempty" json:"best_effort,omitempty"`
	Memory       *bool `yaml:"memory,omitempty" json:"memory,omitempty"`
	SharedMemory *bool `yaml:"shared_memory,omitempty" json:"shared_memory,omitempty"`
	ScatterInit  int   `yaml:"scatter_init,omitempty" json:"scatter_init,omitempty"`

	Metric string `yaml:"metric,omitempty" json:"metric,omitempty"`
	CV     int    `yaml:"cv,omitempty" json:"cv,omitempty"`
}

// Parse decodes a YAML study and validates it.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse study yaml: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("invalid study: %w", err)
	}
	return &def, nil
}

// Load reads and parses a study file.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read study file %s: %w", path, err)
	}
	def, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load study file %s: %w", path, err)
	}
	return def, nil
}

// Validate checks the structure of the definition. Search spaces are checked
// when the study is compiled.
func (d *Definition) Validate() error {
	if len(d.Models) == 0 {
		return fmt.Errorf("at least one model must be defined")
	}
	names := make(map[string]bool, len(d.Models))
	for i, m := range d.Models {
		name := m.label()
		if name == "" {
			return fmt.Errorf("model %d: name or scorer is required", i)
		}
		if names[name] {
			return fmt.Errorf("duplicate model name: %s", name)
		}
		names[name] = true
		if len(m.Space) == 0 {
			return fmt.Errorf("model %s: space must have at least one dimension", name)
		}
	}
	if d.Iterations < 0 {
		return fmt.Errorf("iterations cannot be negative")
	}
	if d.Jobs < 0 {
		return fmt.Errorf("jobs cannot be negative")
	}
	if d.ScatterInit < 0 {
		return fmt.Errorf("scatter_init cannot be negative")
	}
	if d.CV != 0 && d.CV < 2 {
		return fmt.Errorf("cv must be at least 2, got %d", d.CV)
	}
	return nil
}

func (m Model) label() string {
	if name := strings.TrimSpace(m.Name); name != "" {
		return name
	}
	return strings.TrimSpace(m.Scorer)
}

func (m Model) scorerName() string {
	if s := strings.TrimSpace(m.Scorer); s != "" {
		return s
	}
	return strings.TrimSpace(m.Name)
}
