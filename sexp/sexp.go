// Package sexp implements the squared-exponential (RBF) covariance
// function
//
//	k(x1,x2) = σ² · exp(−½ Σ_j (x1_j − x2_j)² / ℓ_j²)
//
// together with its exact analytic derivatives: with respect to the
// log-transformed hyperparameters, and with respect to the input
// coordinates up to second order, as needed by models that observe
// derivatives of the latent function.
//
// The length-scale is either a single shared value (isotropic) or one
// value per input dimension (ARD). Alternatively a metric delegate can
// replace the built-in scaled-Euclidean distance, in which case the
// delegate owns the length-scale parameterization entirely; the
// input-derivative routines are defined only for the built-in distance.
package sexp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/AstroH-Peng/gpstuff/gp"
	"github.com/AstroH-Peng/gpstuff/prior"
)

var _ gp.Covariance = (*Kernel)(nil)

const (
	defaultMagnSigma2  = 0.1
	defaultLengthScale = 1.0

	// Machine epsilon; squared distances below it are clamped to exact
	// zero so the diagonal of a self-covariance is exactly magnSigma2.
	macheps = 0x1p-52
)

// lengthScale holds the locally-owned length-scale parameterization.
// A single value is broadcast across all input dimensions (isotropic);
// several values mean one per dimension (ARD). A nil prior fixes the
// values: they are excluded from packing, gradients and records.
type lengthScale struct {
	values []float64
	prior  gp.Prior
}

// Kernel is one squared-exponential covariance function instance. The
// zero value is not usable; construct with New. All methods are pure:
// they never mutate the receiver or their matrix arguments.
type Kernel struct {
	magnSigma2      float64
	magnSigma2Prior gp.Prior // nil: fixed

	// Exactly one of ls, metric is non-nil: the length-scale lives either
	// on the kernel or inside the metric delegate, never both.
	ls     *lengthScale
	metric gp.Metric
}

// Option configures a Kernel during New or Clone.
type Option func(*Kernel)

// WithMagnSigma2 sets the signal variance.
func WithMagnSigma2(v float64) Option {
	return func(k *Kernel) { k.magnSigma2 = v }
}

// WithMagnSigma2Prior sets the prior of the signal variance. A nil prior
// fixes the parameter.
func WithMagnSigma2Prior(p gp.Prior) Option {
	return func(k *Kernel) { k.magnSigma2Prior = p }
}

// WithLengthScale sets the length-scale: one value for an isotropic
// kernel, one per input dimension for ARD. Clears any metric delegate.
func WithLengthScale(values ...float64) Option {
	return func(k *Kernel) {
		vs := make([]float64, len(values))
		copy(vs, values)
		if k.ls == nil {
			k.ls = &lengthScale{prior: prior.LogUniform{}}
		}
		k.ls.values = vs
		k.metric = nil
	}
}

// WithLengthScalePrior sets the prior shared by all length-scale
// entries. A nil prior fixes them. Clears any metric delegate.
func WithLengthScalePrior(p gp.Prior) Option {
	return func(k *Kernel) {
		if k.ls == nil {
			k.ls = &lengthScale{values: []float64{defaultLengthScale}}
		}
		k.ls.prior = p
		k.metric = nil
	}
}

// WithMetric hands distance computation, and length-scale ownership, to
// a metric delegate.
func WithMetric(m gp.Metric) Option {
	return func(k *Kernel) {
		k.metric = m
		k.ls = nil
	}
}

// New constructs a squared-exponential kernel. The defaults are an
// isotropic unit length-scale, magnSigma2 = 0.1 and uninformative
// log-uniform priors on both hyperparameters.
func New(opts ...Option) (*Kernel, error) {
	k := &Kernel{
		magnSigma2:      defaultMagnSigma2,
		magnSigma2Prior: prior.LogUniform{},
		ls: &lengthScale{
			values: []float64{defaultLengthScale},
			prior:  prior.LogUniform{},
		},
	}
	for _, opt := range opts {
		opt(k)
	}
	if err := k.validate(); err != nil {
		return nil, err
	}
	return k, nil
}

// Clone returns a copy of k with the given options applied, leaving the
// receiver untouched.
func (k *Kernel) Clone(opts ...Option) (*Kernel, error) {
	c := k.shallowCopy()
	for _, opt := range opts {
		opt(c)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// shallowCopy copies the kernel and its length-scale slice. Priors and
// metrics are immutable by contract and are shared.
func (k *Kernel) shallowCopy() *Kernel {
	c := &Kernel{
		magnSigma2:      k.magnSigma2,
		magnSigma2Prior: k.magnSigma2Prior,
		metric:          k.metric,
	}
	if k.ls != nil {
		vs := make([]float64, len(k.ls.values))
		copy(vs, k.ls.values)
		c.ls = &lengthScale{values: vs, prior: k.ls.prior}
	}
	return c
}

func (k *Kernel) validate() error {
	if !(k.magnSigma2 > 0) || math.IsInf(k.magnSigma2, 0) {
		return fmt.Errorf("%w: magnSigma2 %v", gp.ErrInvalidParameter, k.magnSigma2)
	}
	if (k.ls == nil) == (k.metric == nil) {
		return fmt.Errorf("%w: exactly one of length-scale and metric must be set", gp.ErrInvalidParameter)
	}
	if k.ls != nil {
		if len(k.ls.values) == 0 {
			return fmt.Errorf("%w: empty length-scale", gp.ErrInvalidParameter)
		}
		for i, l := range k.ls.values {
			if !(l > 0) || math.IsInf(l, 0) {
				return fmt.Errorf("%w: length-scale %v at index %d", gp.ErrInvalidParameter, l, i)
			}
		}
	}
	return nil
}

// MagnSigma2 returns the signal variance.
func (k *Kernel) MagnSigma2() float64 { return k.magnSigma2 }

// LengthScale returns a copy of the length-scale values, or nil when a
// metric delegate owns them.
func (k *Kernel) LengthScale() []float64 {
	if k.ls == nil {
		return nil
	}
	out := make([]float64, len(k.ls.values))
	copy(out, k.ls.values)
	return out
}

// Metric returns the metric delegate, or nil when the kernel uses its
// built-in scaled-Euclidean distance.
func (k *Kernel) Metric() gp.Metric { return k.metric }

// isotropic reports whether a single length-scale is shared by all
// input dimensions.
func (k *Kernel) isotropic() bool {
	return k.ls != nil && len(k.ls.values) == 1
}

// checkCols validates the column counts of x and, if non-nil, x2 against
// each other and against an ARD length-scale.
func (k *Kernel) checkCols(x, x2 mat.Matrix) (n1, n2, m int, err error) {
	n1, m = x.Dims()
	n2 = n1
	if x2 != nil {
		var m2 int
		n2, m2 = x2.Dims()
		if m2 != m {
			return 0, 0, 0, fmt.Errorf("%w: %d vs %d", gp.ErrDimensionMismatch, m, m2)
		}
	}
	if k.ls != nil && len(k.ls.values) > 1 && len(k.ls.values) != m {
		return 0, 0, 0, fmt.Errorf("%w: %d ARD length-scales for %d input dimensions",
			gp.ErrDimensionMismatch, len(k.ls.values), m)
	}
	return n1, n2, m, nil
}

// invL2 returns 1/ℓ² per input dimension, broadcasting an isotropic
// length-scale. Only valid for the built-in distance.
func (k *Kernel) invL2(m int) []float64 {
	s := make([]float64, m)
	if k.isotropic() {
		v := 1 / (k.ls.values[0] * k.ls.values[0])
		for i := range s {
			s[i] = v
		}
		return s
	}
	for i, l := range k.ls.values {
		s[i] = 1 / (l * l)
	}
	return s
}
