package sexp

import (
	"fmt"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/AstroH-Peng/gpstuff/gp"
)

// mulShift returns a ∘ (b + shift) elementwise.
func mulShift(a, b *mat.Dense, shift float64) *mat.Dense {
	r, c := a.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, a.At(i, j)*(b.At(i, j)+shift))
		}
	}
	return out
}

// Ghypergrad returns the derivative, with respect to each packed
// hyperparameter, of the once-input-differentiated kernel dk(x,x)/dx —
// the observation–derivative cross blocks of a model with derivative
// observations. Per hyperparameter it produces one block per input
// dimension, in dimension order; packed scalars the blocks do not depend
// on yield zero blocks. Not available under a metric delegate.
func (k *Kernel) Ghypergrad(x mat.Matrix) ([]*mat.Dense, error) {
	if k.metric != nil {
		return nil, fmt.Errorf("%w: derivative observations", gp.ErrMetricUnsupported)
	}
	n, _, m, err := k.checkCols(x, nil)
	if err != nil {
		return nil, err
	}
	cdm, err := k.Ginput4(x, nil)
	if err != nil {
		return nil, err
	}

	var dk []*mat.Dense
	zeros := func(scalars int) {
		for i := 0; i < scalars*m; i++ {
			dk = append(dk, mat.NewDense(n, n, nil))
		}
	}

	if k.magnSigma2Prior != nil {
		// The once-differentiated kernel is linear in σ², so the log-σ²
		// derivative reproduces its blocks unchanged.
		dk = append(dk, cdm...)
		pw, _ := k.magnSigma2Prior.Pak()
		zeros(len(pw))
	}

	if k.ls.prior != nil {
		s := k.invL2(m)
		if k.isotropic() {
			d2 := scaledSqDist(x, nil, s)
			for i := 0; i < m; i++ {
				dk = append(dk, mulShift(cdm[i], d2, -2))
			}
		} else {
			ek := make([]*mat.Dense, m)
			for dim := 0; dim < m; dim++ {
				ek[dim] = perDimSqDist(x, nil, dim, s[dim])
			}
			for dim := 0; dim < m; dim++ { // length-scale being differentiated
				for i := 0; i < m; i++ { // input dimension of the block
					shift := 0.0
					if dim == i {
						// The 1/ℓ_i² prefactor of the block contributes an
						// extra −2 under d/d log ℓ_i.
						shift = -2
					}
					dk = append(dk, mulShift(cdm[i], ek[dim], shift))
				}
			}
		}
		pw, _ := k.ls.prior.Pak()
		zeros(len(pw))
	}

	return dk, nil
}

// Ghypergrad2 returns the derivative, with respect to each packed
// hyperparameter, of the twice-input-differentiated kernel
// d²k(x1,x2)/dx1 dx2 — the derivative–derivative blocks. Each result is
// an (m·n)×(m·n) block matrix: diagonal blocks differentiate the same
// dimension in both arguments, off-diagonal blocks two distinct
// dimensions, placed per the dimPairs enumeration and mirrored. Requires
// a prior on magnSigma2 and the built-in distance.
func (k *Kernel) Ghypergrad2(x mat.Matrix) ([]*mat.Dense, error) {
	if k.metric != nil {
		return nil, fmt.Errorf("%w: derivative observations", gp.ErrMetricUnsupported)
	}
	if k.magnSigma2Prior == nil {
		return nil, gp.ErrNoPrior
	}
	n, _, m, err := k.checkCols(x, nil)
	if err != nil {
		return nil, err
	}
	sum, pos, neg, err := k.Ginput2(x, nil)
	if err != nil {
		return nil, err
	}
	g3, err := k.Ginput3(x, nil)
	if err != nil {
		return nil, err
	}
	pairs := dimPairs(m)

	assemble := func(diag, off []*mat.Dense) *mat.Dense {
		big := mat.NewDense(m*n, m*n, nil)
		for i := 0; i < m; i++ {
			big.Slice(i*n, (i+1)*n, i*n, (i+1)*n).(*mat.Dense).Copy(diag[i])
		}
		for pi, p := range pairs {
			i, j := p[0], p[1]
			big.Slice(i*n, (i+1)*n, j*n, (j+1)*n).(*mat.Dense).Copy(off[pi])
			big.Slice(j*n, (j+1)*n, i*n, (i+1)*n).(*mat.Dense).Copy(off[pi])
		}
		return big
	}

	var dk []*mat.Dense
	zeros := func(scalars int) {
		for i := 0; i < scalars; i++ {
			dk = append(dk, mat.NewDense(m*n, m*n, nil))
		}
	}

	// log σ²: the blocks are linear in σ².
	dk = append(dk, assemble(sum, g3))
	pw, _ := k.magnSigma2Prior.Pak()
	zeros(len(pw))

	if k.ls.prior != nil {
		s := k.invL2(m)
		if k.isotropic() {
			d2 := scaledSqDist(x, nil, s)
			diag := make([]*mat.Dense, m)
			for i := 0; i < m; i++ {
				// pos scales as 1/ℓ², neg as 1/ℓ⁴, hence the −2 vs −4.
				d := mulShift(pos[i], d2, -2)
				d.Sub(d, mulShift(neg[i], d2, -4))
				diag[i] = d
			}
			off := make([]*mat.Dense, len(pairs))
			for pi := range pairs {
				off[pi] = mulShift(g3[pi], d2, -4)
			}
			dk = append(dk, assemble(diag, off))
		} else {
			ek := make([]*mat.Dense, m)
			for dim := 0; dim < m; dim++ {
				ek[dim] = perDimSqDist(x, nil, dim, s[dim])
			}
			bigs := make([]*mat.Dense, m)
			var eg errgroup.Group
			for dim := 0; dim < m; dim++ {
				dim := dim
				// Each length-scale's block matrix is independent of the
				// others; assemble them in parallel.
				eg.Go(func() error {
					diag := make([]*mat.Dense, m)
					for i := 0; i < m; i++ {
						shift1, shift2 := 0.0, 0.0
						if dim == i {
							shift1, shift2 = -2, -4
						}
						d := mulShift(pos[i], ek[dim], shift1)
						d.Sub(d, mulShift(neg[i], ek[dim], shift2))
						diag[i] = d
					}
					off := make([]*mat.Dense, len(pairs))
					for pi, p := range pairs {
						shift := 0.0
						if dim == p[0] || dim == p[1] {
							shift = -2
						}
						off[pi] = mulShift(g3[pi], ek[dim], shift)
					}
					bigs[dim] = assemble(diag, off)
					return nil
				})
			}
			if err := eg.Wait(); err != nil {
				return nil, err
			}
			dk = append(dk, bigs...)
		}
		pw, _ := k.ls.prior.Pak()
		zeros(len(pw))
	}

	return dk, nil
}
