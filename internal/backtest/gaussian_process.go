package backtest

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// gaussianProcess is a zero-mean GP surrogate with a Matérn 5/2 kernel and
// fixed hyperparameters. Targets are standardized before fitting.
type gaussianProcess struct {
	lengthScale float64
	noise       float64

	x     [][]float64
	alpha *mat.VecDense
	chol  mat.Cholesky
	yMean float64
	yStd  float64
}

func newGaussianProcess(lengthScale, noise float64) *gaussianProcess {
	return &gaussianProcess{lengthScale: lengthScale, noise: noise}
}

var errKernelNotPositive = errors.New("kernel matrix is not positive definite")

// Fit conditions the process on observations. The diagonal jitter is
// raised tenfold up to five times if the factorization fails.
func (gp *gaussianProcess) Fit(x [][]float64, y []float64) error {
	n := len(x)
	if n == 0 || n != len(y) {
		return errors.New("gaussian process needs matching, non-empty observations")
	}

	gp.yMean, gp.yStd = stat.PopMeanStdDev(y, nil)
	if gp.yStd < 1e-12 || math.IsNaN(gp.yStd) {
		gp.yStd = 1
	}
	scaled := make([]float64, n)
	for i, v := range y {
		scaled[i] = (v - gp.yMean) / gp.yStd
	}

	jitter := gp.noise
	for attempt := 0; attempt < 5; attempt++ {
		k := mat.NewSymDense(n, nil)
		for i := 0; i < n; i++ {
			for j := i; j < n; j++ {
				v := matern52(x[i], x[j], gp.lengthScale)
				if i == j {
					v += jitter
				}
				k.SetSym(i, j, v)
			}
		}
		if gp.chol.Factorize(k) {
			gp.alpha = mat.NewVecDense(n, nil)
			if err := gp.chol.SolveVecTo(gp.alpha, mat.NewVecDense(n, scaled)); err != nil {
				return err
			}
			gp.x = x
			return nil
		}
		jitter *= 10
	}
	return errKernelNotPositive
}

// Predict returns the posterior mean and standard deviation at p
func (gp *gaussianProcess) Predict(p []float64) (mean, std float64) {
	n := len(gp.x)
	kStar := mat.NewVecDense(n, nil)
	for i, xi := range gp.x {
		kStar.SetVec(i, matern52(p, xi, gp.lengthScale))
	}

	mean = mat.Dot(kStar, gp.alpha)*gp.yStd + gp.yMean

	var v mat.VecDense
	if err := gp.chol.SolveVecTo(&v, kStar); err != nil {
		return mean, 0
	}
	variance := 1 - mat.Dot(kStar, &v)
	if variance < 0 {
		variance = 0
	}
	return mean, math.Sqrt(variance) * gp.yStd
}

// matern52 is the Matérn kernel with ν = 5/2 and unit signal variance
func matern52(a, b []float64, lengthScale float64) float64 {
	d2 := 0.0
	for i := range a {
		diff := a[i] - b[i]
		d2 += diff * diff
	}
	r := math.Sqrt(5*d2) / lengthScale
	return (1 + r + r*r/3) * math.Exp(-r)
}

// expectedImprovement for maximization over the best observed value
func expectedImprovement(mean, std, best, xi float64) float64 {
	if std < 1e-12 {
		return 0
	}
	improvement := mean - best - xi
	z := improvement / std
	return improvement*distuv.UnitNormal.CDF(z) + std*distuv.UnitNormal.Prob(z)
}
