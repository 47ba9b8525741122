package bayesian

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/copyleftdev/hypersearch/internal/optimization"
	"github.com/copyleftdev/hypersearch/internal/optimization/kernels"
)

const maxJitterAttempts = 8

// GP implements a Gaussian Process regression model over normalized
// positions. Targets are standardized before fitting and predictions are
// returned on the original scale.
type GP struct {
	kernel   kernels.Kernel
	noiseVar float64

	X     *mat.Dense
	yMean float64
	yStd  float64

	alpha *mat.VecDense
	chol  *mat.Cholesky

	logger *zap.Logger
}

// NewGP creates a new Gaussian Process model
func NewGP(kernel kernels.Kernel, noiseVar float64, logger *zap.Logger) *GP {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GP{
		kernel:   kernel,
		noiseVar: noiseVar,
		logger:   logger.Named("gaussian_process"),
	}
}

func gpError(op string, err error) error {
	return optimization.WrapError(err, "gaussian process").
		WithComponent("bayesian").
		WithOperation(op)
}

// Fit fits the GP model to the training data
func (gp *GP) Fit(X *mat.Dense, y []float64) error {
	const op = "GP.Fit"

	if X == nil {
		return gpError(op, errors.New("input matrix must not be nil"))
	}
	n, features := X.Dims()
	if n == 0 || features == 0 {
		return gpError(op, errors.New("input matrix X must not be empty"))
	}
	if n != len(y) {
		return gpError(op, fmt.Errorf("dimension mismatch: X has %d samples but y has length %d", n, len(y)))
	}

	mean, std := stat.MeanStdDev(y, nil)
	if math.IsNaN(std) || std < 1e-12 {
		std = 1
	}
	target := mat.NewVecDense(n, nil)
	for i, v := range y {
		target.SetVec(i, (v-mean)/std)
	}

	K := gp.kernelMatrix(X)
	chol, jitter, err := factorize(K, gp.noiseVar)
	if err != nil {
		return gpError(op, err)
	}

	alpha := mat.NewVecDense(n, nil)
	if err := chol.SolveVecTo(alpha, target); err != nil {
		return gpError(op, fmt.Errorf("failed to solve linear system: %w", err))
	}

	gp.X = mat.DenseCopyOf(X)
	gp.yMean, gp.yStd = mean, std
	gp.alpha, gp.chol = alpha, chol

	gp.logger.Debug("Fitted GP model",
		zap.Int("samples", n),
		zap.Int("features", features),
		zap.Float64("jitter", jitter),
	)
	return nil
}

func (gp *GP) kernelMatrix(X *mat.Dense) *mat.SymDense {
	n, _ := X.Dims()
	K := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		xi := X.RawRowView(i)
		for j := i; j < n; j++ {
			K.SetSym(i, j, gp.kernel.Eval(xi, X.RawRowView(j)))
		}
	}
	return K
}

// factorize adds noise to the diagonal and retries with growing jitter until
// the matrix is positive definite. Duplicate training points make the plain
// kernel matrix singular.
func factorize(K *mat.SymDense, noiseVar float64) (*mat.Cholesky, float64, error) {
	n := K.SymmetricDim()
	jitter := 1e-10
	for attempt := 0; attempt < maxJitterAttempts; attempt++ {
		A := mat.NewSymDense(n, nil)
		A.CopySym(K)
		for i := 0; i < n; i++ {
			A.SetSym(i, i, A.At(i, i)+noiseVar+jitter)
		}
		var chol mat.Cholesky
		if chol.Factorize(A) {
			return &chol, jitter, nil
		}
		jitter *= 100
	}
	return nil, jitter, errors.New("kernel matrix is not positive definite")
}

// Predict returns the posterior mean and standard deviation at each row of X.
func (gp *GP) Predict(X *mat.Dense) ([]float64, []float64, error) {
	const op = "GP.Predict"

	if gp.alpha == nil {
		return nil, nil, gpError(op, errors.New("model not trained"))
	}
	if X == nil {
		return nil, nil, gpError(op, errors.New("input matrix X is nil"))
	}
	nTest, features := X.Dims()
	nTrain, trained := gp.X.Dims()
	if features != trained {
		return nil, nil, gpError(op, fmt.Errorf("expected %d features, got %d", trained, features))
	}

	Kstar := mat.NewDense(nTest, nTrain, nil)
	for i := 0; i < nTest; i++ {
		x := X.RawRowView(i)
		for j := 0; j < nTrain; j++ {
			Kstar.Set(i, j, gp.kernel.Eval(x, gp.X.RawRowView(j)))
		}
	}

	var mu mat.VecDense
	mu.MulVec(Kstar, gp.alpha)

	// var = k(x,x) - k*^T K^-1 k*
	var v mat.Dense
	if err := gp.chol.SolveTo(&v, Kstar.T()); err != nil {
		return nil, nil, gpError(op, fmt.Errorf("failed to solve linear system: %w", err))
	}

	means := make([]float64, nTest)
	stds := make([]float64, nTest)
	for i := 0; i < nTest; i++ {
		x := X.RawRowView(i)
		reduction := 0.0
		for j := 0; j < nTrain; j++ {
			reduction += Kstar.At(i, j) * v.At(j, i)
		}
		variance := math.Max(0, gp.kernel.Eval(x, x)-reduction)
		means[i] = mu.AtVec(i)*gp.yStd + gp.yMean
		stds[i] = math.Sqrt(variance) * gp.yStd
	}
	return means, stds, nil
}
