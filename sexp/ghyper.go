package sexp

import (
	"gonum.org/v1/gonum/mat"
)

// Ghyper returns the derivative of the covariance matrix with respect to
// each packed (log-transformed) hyperparameter, in Pak order, together
// with the gradient of the log-prior energy. A nil x2 differentiates the
// training covariance Trcov(x), otherwise the cross-covariance
// Cov(x,x2). Packed scalars that the covariance does not depend on (a
// prior's own hyperparameters) yield zero matrices, keeping the
// collection positionally aligned with the packed vector.
func (k *Kernel) Ghyper(x, x2 mat.Matrix) ([]*mat.Dense, []float64, error) {
	n1, n2, m, err := k.checkCols(x, x2)
	if err != nil {
		return nil, nil, err
	}
	var C *mat.Dense
	if x2 == nil {
		C, err = k.trcovDense(x)
	} else {
		C, err = k.cov(x, x2)
	}
	if err != nil {
		return nil, nil, err
	}

	var dk []*mat.Dense
	zeros := func(count int) {
		for i := 0; i < count; i++ {
			dk = append(dk, mat.NewDense(n1, n2, nil))
		}
	}

	if k.magnSigma2Prior != nil {
		// d/d log(σ²) of σ²·exp(·) is the covariance itself.
		D := mat.NewDense(n1, n2, nil)
		D.Copy(C)
		dk = append(dk, D)
		pw, _ := k.magnSigma2Prior.Pak()
		zeros(len(pw))
	}

	switch {
	case k.metric != nil:
		np := k.metric.NumParams()
		if np > 0 {
			dist, err := k.metric.Distance(x, x2)
			if err != nil {
				return nil, nil, err
			}
			gdist, err := k.metric.DistanceGradParams(x, x2)
			if err != nil {
				return nil, nil, err
			}
			for _, g := range gdist {
				D := mat.NewDense(n1, n2, nil)
				D.MulElem(C, dist)
				D.MulElem(D, g)
				D.Scale(-1, D)
				dk = append(dk, D)
			}
			zeros(np - len(gdist))
		}

	case k.ls.prior != nil:
		s := k.invL2(m)
		if k.isotropic() {
			// d/d log(ℓ): K · Σ_k d_k²/ℓ².
			D := mat.NewDense(n1, n2, nil)
			D.MulElem(C, scaledSqDist(x, x2, s))
			dk = append(dk, D)
		} else {
			// ARD: one matrix per dimension, each driven by that
			// dimension's squared differences alone.
			for dim := 0; dim < m; dim++ {
				D := mat.NewDense(n1, n2, nil)
				D.MulElem(C, perDimSqDist(x, x2, dim, s[dim]))
				dk = append(dk, D)
			}
		}
		pw, _ := k.ls.prior.Pak()
		zeros(len(pw))
	}

	return dk, k.priorGradient(), nil
}

// GhyperDiag is the masked, diagonal-only mode used by sparse
// approximations: derivatives of the training variance Trvar(x). The
// magnitude derivative is the variance vector itself; all length-scale
// derivatives are identically zero because the distance of a point to
// itself stays zero under any length-scale. This is a deliberate
// simplification for the sparse bookkeeping, not a full masked Jacobian.
func (k *Kernel) GhyperDiag(x mat.Matrix) ([]*mat.VecDense, []float64, error) {
	n, _, err := k.trDims(x)
	if err != nil {
		return nil, nil, err
	}
	var dk []*mat.VecDense
	zeros := func(count int) {
		for i := 0; i < count; i++ {
			dk = append(dk, mat.NewVecDense(n, nil))
		}
	}
	if k.magnSigma2Prior != nil {
		v, err := k.Trvar(x)
		if err != nil {
			return nil, nil, err
		}
		dk = append(dk, v)
		pw, _ := k.magnSigma2Prior.Pak()
		zeros(len(pw))
	}
	if k.metric != nil {
		zeros(k.metric.NumParams())
	} else if k.ls.prior != nil {
		pw, _ := k.ls.prior.Pak()
		zeros(len(k.ls.values) + len(pw))
	}
	return dk, k.priorGradient(), nil
}
