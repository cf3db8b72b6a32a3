package sexp

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// scaledSqDist returns the matrix of scaled squared distances
// Σ_k (x_ik − x2_jk)²/ℓ_k², clamped to exact zero below machine epsilon
// to keep self-distances from producing exp values fractionally above 1.
// s holds 1/ℓ² per dimension. A nil x2 means x2 = x.
func scaledSqDist(x, x2 mat.Matrix, s []float64) *mat.Dense {
	n1, m := x.Dims()
	if x2 == nil {
		x2 = x
	}
	n2, _ := x2.Dims()
	d2 := mat.NewDense(n1, n2, nil)
	for i := 0; i < n1; i++ {
		for j := 0; j < n2; j++ {
			sum := 0.0
			for kk := 0; kk < m; kk++ {
				d := x.At(i, kk) - x2.At(j, kk)
				sum += s[kk] * d * d
			}
			if sum < macheps {
				sum = 0
			}
			d2.Set(i, j, sum)
		}
	}
	return d2
}

// perDimSqDist returns, for dimension dim, the matrix of scaled squared
// coordinate differences s·(x_i − x2_j)². A nil x2 means x2 = x.
func perDimSqDist(x, x2 mat.Matrix, dim int, s float64) *mat.Dense {
	n1, _ := x.Dims()
	if x2 == nil {
		x2 = x
	}
	n2, _ := x2.Dims()
	e := mat.NewDense(n1, n2, nil)
	for i := 0; i < n1; i++ {
		for j := 0; j < n2; j++ {
			d := x.At(i, dim) - x2.At(j, dim)
			e.Set(i, j, s*d*d)
		}
	}
	return e
}

// Cov computes the n1×n2 cross-covariance matrix between two input sets
// with the same number of columns.
func (k *Kernel) Cov(x1, x2 mat.Matrix) (*mat.Dense, error) {
	_, _, _, err := k.checkCols(x1, x2)
	if err != nil {
		return nil, err
	}
	return k.cov(x1, x2)
}

// cov is Cov without revalidation; a nil x2 selects the self-covariance.
func (k *Kernel) cov(x1, x2 mat.Matrix) (*mat.Dense, error) {
	if k.metric != nil {
		dist, err := k.metric.Distance(x1, x2)
		if err != nil {
			return nil, err
		}
		dist.Apply(func(_, _ int, r float64) float64 {
			return k.magnSigma2 * math.Exp(-r*r/2)
		}, dist)
		return dist, nil
	}
	_, m := x1.Dims()
	d2 := scaledSqDist(x1, x2, k.invL2(m))
	d2.Apply(func(_, _ int, v float64) float64 {
		return k.magnSigma2 * math.Exp(-v/2)
	}, d2)
	return d2, nil
}

// Trcov computes the symmetric training covariance of a single input
// set. Only the lower triangle is evaluated; the diagonal is exactly
// magnSigma2.
func (k *Kernel) Trcov(x mat.Matrix) (*mat.SymDense, error) {
	n, m, err := k.trDims(x)
	if err != nil {
		return nil, err
	}
	C := mat.NewSymDense(n, nil)
	if k.metric != nil {
		dist, err := k.metric.Distance(x, nil)
		if err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			C.SetSym(i, i, k.magnSigma2)
			for j := 0; j < i; j++ {
				r := dist.At(i, j)
				C.SetSym(i, j, k.magnSigma2*math.Exp(-r*r/2))
			}
		}
		return C, nil
	}
	s := k.invL2(m)
	for i := 0; i < n; i++ {
		C.SetSym(i, i, k.magnSigma2)
		for j := 0; j < i; j++ {
			sum := 0.0
			for kk := 0; kk < m; kk++ {
				d := x.At(i, kk) - x.At(j, kk)
				sum += s[kk] * d * d
			}
			if sum < macheps {
				sum = 0
			}
			C.SetSym(i, j, k.magnSigma2*math.Exp(-sum/2))
		}
	}
	return C, nil
}

// Trvar returns the training variance diag(Trcov(x)): magnSigma2 at
// every point, clamped at zero from below.
func (k *Kernel) Trvar(x mat.Matrix) (*mat.VecDense, error) {
	n, _, err := k.trDims(x)
	if err != nil {
		return nil, err
	}
	v := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		v.SetVec(i, math.Max(0, k.magnSigma2))
	}
	return v, nil
}

// trDims validates a single input set against an ARD length-scale.
func (k *Kernel) trDims(x mat.Matrix) (n, m int, err error) {
	n, _, m, err = k.checkCols(x, nil)
	return n, m, err
}

// trcovDense is Trcov materialized as a dense matrix, the form the
// gradient engines build on.
func (k *Kernel) trcovDense(x mat.Matrix) (*mat.Dense, error) {
	C, err := k.Trcov(x)
	if err != nil {
		return nil, err
	}
	n := C.SymmetricDim()
	D := mat.NewDense(n, n, nil)
	D.Copy(C)
	return D, nil
}
