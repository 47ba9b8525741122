// Package kernels provides covariance functions for the gaussian process
// surrogate used by the bayesian strategy.
package kernels

import (
	"fmt"
	"math"
)

// Kernel names accepted by New.
const (
	NameRBF      = "rbf"
	NameMatern52 = "matern52"
)

// Kernel represents a kernel function for Gaussian Processes
type Kernel interface {
	// Eval computes the kernel value between two points x1 and x2
	Eval(x1, x2 []float64) float64

	// Hyperparameters returns the current hyperparameters
	Hyperparameters() []float64

	// SetHyperparameters sets the kernel's hyperparameters
	SetHyperparameters(params []float64) error
}

// New builds a kernel by name.
func New(name string, lengthScale, signalVar float64) (Kernel, error) {
	switch name {
	case NameRBF:
		return NewRBFKernel(lengthScale, signalVar)
	case NameMatern52, "":
		return NewMatern52Kernel(lengthScale, signalVar)
	default:
		return nil, fmt.Errorf("unknown kernel %q", name)
	}
}

// stationary holds the parameters shared by the distance based kernels.
type stationary struct {
	lengthScale float64
	signalVar   float64
}

func newStationary(lengthScale, signalVar float64) (stationary, error) {
	if err := validate(lengthScale, signalVar); err != nil {
		return stationary{}, err
	}
	return stationary{lengthScale: lengthScale, signalVar: signalVar}, nil
}

func validate(lengthScale, signalVar float64) error {
	if !(lengthScale > 0) || math.IsInf(lengthScale, 0) {
		return fmt.Errorf("lengthScale must be positive, got %v", lengthScale)
	}
	if !(signalVar > 0) || math.IsInf(signalVar, 0) {
		return fmt.Errorf("signalVar must be positive, got %v", signalVar)
	}
	return nil
}

// Hyperparameters returns length scale and signal variance.
func (s *stationary) Hyperparameters() []float64 {
	return []float64{s.lengthScale, s.signalVar}
}

// SetHyperparameters sets length scale and signal variance.
func (s *stationary) SetHyperparameters(params []float64) error {
	if len(params) != 2 {
		return fmt.Errorf("expected 2 hyperparameters, got %d", len(params))
	}
	if err := validate(params[0], params[1]); err != nil {
		return err
	}
	s.lengthScale, s.signalVar = params[0], params[1]
	return nil
}

func squaredDistance(x1, x2 []float64) float64 {
	sum := 0.0
	for i := range x1 {
		d := x1[i] - x2[i]
		sum += d * d
	}
	return sum
}

// RBFKernel implements the Radial Basis Function (squared exponential) kernel
type RBFKernel struct {
	stationary
}

// NewRBFKernel creates a new RBF kernel with the given parameters
func NewRBFKernel(lengthScale, signalVar float64) (*RBFKernel, error) {
	s, err := newStationary(lengthScale, signalVar)
	if err != nil {
		return nil, err
	}
	return &RBFKernel{s}, nil
}

// Eval computes the RBF kernel value between x1 and x2
func (k *RBFKernel) Eval(x1, x2 []float64) float64 {
	r2 := squaredDistance(x1, x2) / (2.0 * k.lengthScale * k.lengthScale)
	return k.signalVar * math.Exp(-r2)
}

// Matern52Kernel implements the Matérn 5/2 kernel. It is the default for
// the bayesian strategy since score surfaces over grids are rarely smooth.
type Matern52Kernel struct {
	stationary
}

// NewMatern52Kernel creates a new Matérn 5/2 kernel with the given parameters
func NewMatern52Kernel(lengthScale, signalVar float64) (*Matern52Kernel, error) {
	s, err := newStationary(lengthScale, signalVar)
	if err != nil {
		return nil, err
	}
	return &Matern52Kernel{s}, nil
}

// Eval computes the Matérn 5/2 kernel value between x1 and x2
func (k *Matern52Kernel) Eval(x1, x2 []float64) float64 {
	r := math.Sqrt(squaredDistance(x1, x2)) / k.lengthScale
	poly := 1.0 + math.Sqrt(5)*r + (5.0/3.0)*r*r
	return k.signalVar * poly * math.Exp(-math.Sqrt(5)*r)
}
