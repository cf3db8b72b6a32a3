package sexp

import (
	"fmt"
	"math"

	"github.com/AstroH-Peng/gpstuff/gp"
)

// Pak flattens the free hyperparameters into a real vector suitable for
// unconstrained optimization: log(magnSigma2) followed by its prior's
// own parameters, then the log length-scales followed by theirs (or the
// metric delegate's packed parameters). Fixed hyperparameters are
// skipped entirely. The returned labels parallel the vector and are
// meant for diagnostics only.
func (k *Kernel) Pak() ([]float64, []string) {
	var w []float64
	var labels []string
	if k.magnSigma2Prior != nil {
		w = append(w, math.Log(k.magnSigma2))
		labels = append(labels, "log(sexp.magnSigma2)")
		pw, pl := k.magnSigma2Prior.Pak()
		w = append(w, pw...)
		labels = append(labels, pl...)
	}
	if k.metric != nil {
		mw, ml := k.metric.Pak()
		w = append(w, mw...)
		labels = append(labels, ml...)
	} else if k.ls.prior != nil {
		for _, l := range k.ls.values {
			w = append(w, math.Log(l))
			labels = append(labels, "log(sexp.lengthScale)")
		}
		pw, pl := k.ls.prior.Pak()
		w = append(w, pw...)
		labels = append(labels, pl...)
	}
	return w, labels
}

// NumParams returns the number of packed free hyperparameters.
func (k *Kernel) NumParams() int {
	w, _ := k.Pak()
	return len(w)
}

// Unpak consumes a prefix of w in Pak order, undoing the log-transform,
// and returns the updated kernel together with the unconsumed remainder
// so several components can share one concatenated vector.
func (k *Kernel) Unpak(w []float64) (gp.Covariance, []float64, error) {
	c := k.shallowCopy()
	if c.magnSigma2Prior != nil {
		if len(w) < 1 {
			return nil, nil, fmt.Errorf("%w: magnSigma2 missing", gp.ErrShortVector)
		}
		v := math.Exp(w[0])
		if !(v > 0) || math.IsInf(v, 0) || math.IsNaN(v) {
			return nil, nil, fmt.Errorf("%w: magnSigma2 %v", gp.ErrInvalidParameter, v)
		}
		c.magnSigma2 = v
		p, rest, err := c.magnSigma2Prior.Unpak(w[1:])
		if err != nil {
			return nil, nil, err
		}
		c.magnSigma2Prior = p
		w = rest
	}
	if c.metric != nil {
		m, rest, err := c.metric.Unpak(w)
		if err != nil {
			return nil, nil, err
		}
		c.metric = m
		w = rest
	} else if c.ls.prior != nil {
		d := len(c.ls.values)
		if len(w) < d {
			return nil, nil, fmt.Errorf("%w: length-scale needs %d values, got %d", gp.ErrShortVector, d, len(w))
		}
		for i := 0; i < d; i++ {
			l := math.Exp(w[i])
			if !(l > 0) || math.IsInf(l, 0) || math.IsNaN(l) {
				return nil, nil, fmt.Errorf("%w: length-scale %v at index %d", gp.ErrInvalidParameter, l, i)
			}
			c.ls.values[i] = l
		}
		p, rest, err := c.ls.prior.Unpak(w[d:])
		if err != nil {
			return nil, nil, err
		}
		c.ls.prior = p
		w = rest
	}
	return c, w, nil
}

// Energy returns the negative log prior of the free hyperparameters.
// Priors are specified in the untransformed space while optimization
// runs in log-space, so each log-transformed scalar contributes the
// log-Jacobian term −log(θ). A metric delegate does its own transform
// bookkeeping, so its contribution is taken as-is.
func (k *Kernel) Energy() float64 {
	e := 0.0
	if k.magnSigma2Prior != nil {
		e += -k.magnSigma2Prior.LogDensity(k.magnSigma2) - math.Log(k.magnSigma2)
	}
	if k.metric != nil {
		e -= k.metric.LogPrior()
	} else if k.ls.prior != nil {
		for _, l := range k.ls.values {
			e += -k.ls.prior.LogDensity(l) - math.Log(l)
		}
	}
	return e
}

// priorGradient returns dEnergy/dw for the packed vector w, in Pak
// order. For each log-transformed scalar θ the chain rule gives
// −dlogp/dθ·θ − 1, the trailing −1 being the Jacobian correction.
func (k *Kernel) priorGradient() []float64 {
	var g []float64
	if k.magnSigma2Prior != nil {
		g = append(g, -k.magnSigma2Prior.LogDensityGradient(k.magnSigma2)*k.magnSigma2-1)
		for _, d := range k.magnSigma2Prior.LogDensityGradientParams(k.magnSigma2) {
			g = append(g, -d)
		}
	}
	if k.metric != nil {
		g = append(g, k.metric.LogPriorGradient()...)
	} else if k.ls.prior != nil {
		for _, l := range k.ls.values {
			g = append(g, -k.ls.prior.LogDensityGradient(l)*l-1)
		}
		if pw, _ := k.ls.prior.Pak(); len(pw) > 0 {
			sub := make([]float64, len(pw))
			for _, l := range k.ls.values {
				for i, d := range k.ls.prior.LogDensityGradientParams(l) {
					sub[i] -= d
				}
			}
			g = append(g, sub...)
		}
	}
	return g
}
