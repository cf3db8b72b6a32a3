package sexp

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/AstroH-Peng/gpstuff/gp"
)

// dimPairs enumerates the unordered dimension pairs (i,j), i<j, of the
// upper triangle flattened column-wise: (0,1),(0,2),(1,2),(0,3),...
// Ginput3 and Ghypergrad2 consume the pairs positionally in this order.
func dimPairs(m int) [][2]int {
	pairs := make([][2]int, 0, m*(m-1)/2)
	for j := 1; j < m; j++ {
		for i := 0; i < j; i++ {
			pairs = append(pairs, [2]int{i, j})
		}
	}
	return pairs
}

// aliases reports whether two matrices share backing storage.
func aliases(a, b mat.Matrix) bool {
	ra, ok := a.(mat.RawMatrixer)
	if !ok {
		return false
	}
	rb, ok := b.(mat.RawMatrixer)
	if !ok {
		return false
	}
	da, db := ra.RawMatrix().Data, rb.RawMatrix().Data
	return len(da) > 0 && len(db) > 0 && &da[0] == &db[0]
}

// inputDerivInputs validates the argument pair shared by the input-space
// derivative family, which is defined only for the built-in
// scaled-Euclidean distance.
func (k *Kernel) inputDerivInputs(x, x2 mat.Matrix) (n1, n2, m int, err error) {
	if k.metric != nil {
		return 0, 0, 0, fmt.Errorf("%w: input derivatives", gp.ErrMetricUnsupported)
	}
	return k.checkCols(x, x2)
}

// Ginput returns the derivative of the covariance with respect to every
// scalar input coordinate: n·m matrices in dimension-major order (for
// each dimension, all observations). In the self-covariance form (nil
// x2) perturbing coordinate j changes both row j and column j, so each
// matrix is the symmetrized sum of the two contributions.
func (k *Kernel) Ginput(x, x2 mat.Matrix) ([]*mat.Dense, error) {
	n1, n2, m, err := k.inputDerivInputs(x, x2)
	if err != nil {
		return nil, err
	}
	var K *mat.Dense
	if x2 == nil {
		K, err = k.trcovDense(x)
	} else {
		K, err = k.cov(x, x2)
	}
	if err != nil {
		return nil, err
	}
	s := k.invL2(m)
	xc := x2
	if xc == nil {
		xc = x
	}
	out := make([]*mat.Dense, 0, n1*m)
	for dim := 0; dim < m; dim++ {
		for j := 0; j < n1; j++ {
			D := mat.NewDense(n1, n2, nil)
			for b := 0; b < n2; b++ {
				D.Set(j, b, -s[dim]*(x.At(j, dim)-xc.At(b, dim))*K.At(j, b))
			}
			if x2 == nil {
				// Mirror the row contribution onto column j. The (j,j)
				// entry is zero, so no double counting happens there.
				for a := 0; a < n1; a++ {
					D.Set(a, j, D.At(a, j)+D.At(j, a))
				}
			}
			out = append(out, D)
		}
	}
	return out, nil
}

// Ginput2 returns the second derivative of the covariance with respect
// to the same dimension of both arguments, one matrix per dimension,
// together with its two additive constituents:
//
//	sum_i = pos_i − neg_i,  pos_i = K/ℓ_i²,  neg_i = d_i²/ℓ_i⁴ · K
//
// The constituents scale differently under the length-scale, which is
// why Ghypergrad2 needs them separately. A nil x2 selects x2 = x.
func (k *Kernel) Ginput2(x, x2 mat.Matrix) (sum, pos, neg []*mat.Dense, err error) {
	n1, n2, m, err := k.inputDerivInputs(x, x2)
	if err != nil {
		return nil, nil, nil, err
	}
	K, err := k.cov(x, x2)
	if err != nil {
		return nil, nil, nil, err
	}
	s := k.invL2(m)
	sum = make([]*mat.Dense, m)
	pos = make([]*mat.Dense, m)
	neg = make([]*mat.Dense, m)
	for dim := 0; dim < m; dim++ {
		p := mat.NewDense(n1, n2, nil)
		p.Scale(s[dim], K)
		q := mat.NewDense(n1, n2, nil)
		q.MulElem(perDimSqDist(x, x2, dim, s[dim]*s[dim]), K)
		t := mat.NewDense(n1, n2, nil)
		t.Sub(p, q)
		pos[dim], neg[dim], sum[dim] = p, q, t
	}
	return sum, pos, neg, nil
}

// Ginput3 returns the second derivative of the covariance with respect
// to two distinct dimensions, one in each argument: one matrix per pair
// (i,j), i<j, in dimPairs order,
//
//	−(d_i/ℓ_i²)·(d_j/ℓ_j²)·K.
//
// A nil x2 selects x2 = x.
func (k *Kernel) Ginput3(x, x2 mat.Matrix) ([]*mat.Dense, error) {
	n1, n2, m, err := k.inputDerivInputs(x, x2)
	if err != nil {
		return nil, err
	}
	K, err := k.cov(x, x2)
	if err != nil {
		return nil, err
	}
	s := k.invL2(m)
	xc := x2
	if xc == nil {
		xc = x
	}
	pairs := dimPairs(m)
	out := make([]*mat.Dense, len(pairs))
	for pi, p := range pairs {
		i, j := p[0], p[1]
		D := mat.NewDense(n1, n2, nil)
		for a := 0; a < n1; a++ {
			for b := 0; b < n2; b++ {
				di := x.At(a, i) - xc.At(b, i)
				dj := x.At(a, j) - xc.At(b, j)
				D.Set(a, b, -s[i]*di*s[j]*dj*K.At(a, b))
			}
		}
		out[pi] = D
	}
	return out, nil
}

// Ginput4 is the dense primitive behind the derivative-observation
// engines: the derivative of the covariance with respect to the first
// argument, one full matrix per input dimension,
//
//	−(d_i/ℓ_i²)·K.
//
// A nil x2 selects the self-covariance form; passing x itself as x2 is
// an error, the self form must go through the nil path.
func (k *Kernel) Ginput4(x, x2 mat.Matrix) ([]*mat.Dense, error) {
	if x2 != nil && aliases(x, x2) {
		return nil, gp.ErrAliasedInput
	}
	n1, n2, m, err := k.inputDerivInputs(x, x2)
	if err != nil {
		return nil, err
	}
	var K *mat.Dense
	if x2 == nil {
		K, err = k.trcovDense(x)
	} else {
		K, err = k.cov(x, x2)
	}
	if err != nil {
		return nil, err
	}
	s := k.invL2(m)
	xc := x2
	if xc == nil {
		xc = x
	}
	out := make([]*mat.Dense, m)
	for dim := 0; dim < m; dim++ {
		D := mat.NewDense(n1, n2, nil)
		for a := 0; a < n1; a++ {
			for b := 0; b < n2; b++ {
				D.Set(a, b, -s[dim]*(x.At(a, dim)-xc.At(b, dim))*K.At(a, b))
			}
		}
		out[dim] = D
	}
	return out, nil
}
