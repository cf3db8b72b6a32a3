// Package metric provides distance-computation delegates for covariance
// functions. A metric owns the length-scale parameterization of the
// kernel it is attached to, including priors and transform bookkeeping.
package metric

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/AstroH-Peng/gpstuff/gp"
)

// Machine epsilon; squared distances below it are treated as exact zero.
const macheps = 0x1p-52

var _ gp.Metric = (*Euclidean)(nil)

// Euclidean is the scaled-Euclidean distance
//
//	dist(x1,x2) = sqrt(Σ_k (x1_k − x2_k)² / ℓ_k²)
//
// with one length-scale per input dimension. Configured identically to a
// kernel's built-in ARD length-scales it reproduces the built-in
// covariance path exactly.
type Euclidean struct {
	lengthScale []float64
	prior       gp.Prior // nil: length-scales fixed
}

// NewEuclidean returns a scaled-Euclidean metric. prior may be nil, in
// which case the length-scales are fixed and nothing is packed.
func NewEuclidean(lengthScale []float64, prior gp.Prior) (*Euclidean, error) {
	if len(lengthScale) == 0 {
		return nil, fmt.Errorf("%w: metric needs at least one length-scale", gp.ErrInvalidParameter)
	}
	ls := make([]float64, len(lengthScale))
	for i, l := range lengthScale {
		if !(l > 0) || math.IsInf(l, 0) {
			return nil, fmt.Errorf("%w: length-scale %v at index %d", gp.ErrInvalidParameter, l, i)
		}
		ls[i] = l
	}
	return &Euclidean{lengthScale: ls, prior: prior}, nil
}

// LengthScale returns a copy of the per-dimension length-scales.
func (m *Euclidean) LengthScale() []float64 {
	out := make([]float64, len(m.lengthScale))
	copy(out, m.lengthScale)
	return out
}

func (m *Euclidean) dims(x, x2 mat.Matrix) (n1, n2, d int, err error) {
	n1, d = x.Dims()
	if d != len(m.lengthScale) {
		return 0, 0, 0, fmt.Errorf("%w: input has %d columns, metric has %d length-scales",
			gp.ErrDimensionMismatch, d, len(m.lengthScale))
	}
	if x2 == nil {
		return n1, n1, d, nil
	}
	n2, d2 := x2.Dims()
	if d2 != d {
		return 0, 0, 0, fmt.Errorf("%w: %d vs %d", gp.ErrDimensionMismatch, d, d2)
	}
	return n1, n2, d, nil
}

// sqDist returns the matrix of scaled squared distances, clamped to zero
// below machine epsilon.
func (m *Euclidean) sqDist(x, x2 mat.Matrix) (*mat.Dense, error) {
	n1, n2, d, err := m.dims(x, x2)
	if err != nil {
		return nil, err
	}
	if x2 == nil {
		x2 = x
	}
	s2 := mat.NewDense(n1, n2, nil)
	for i := 0; i < n1; i++ {
		for j := 0; j < n2; j++ {
			sum := 0.0
			for k := 0; k < d; k++ {
				dk := (x.At(i, k) - x2.At(j, k)) / m.lengthScale[k]
				sum += dk * dk
			}
			if sum < macheps {
				sum = 0
			}
			s2.Set(i, j, sum)
		}
	}
	return s2, nil
}

// Distance implements gp.Metric.
func (m *Euclidean) Distance(x, x2 mat.Matrix) (*mat.Dense, error) {
	s2, err := m.sqDist(x, x2)
	if err != nil {
		return nil, err
	}
	s2.Apply(func(_, _ int, v float64) float64 { return math.Sqrt(v) }, s2)
	return s2, nil
}

// DistanceGradParams implements gp.Metric: the derivative of the
// distance with respect to each packed log(ℓ_k), zero wherever the
// distance itself is zero.
func (m *Euclidean) DistanceGradParams(x, x2 mat.Matrix) ([]*mat.Dense, error) {
	if m.prior == nil {
		return nil, nil
	}
	n1, n2, d, err := m.dims(x, x2)
	if err != nil {
		return nil, err
	}
	dist, err := m.Distance(x, x2)
	if err != nil {
		return nil, err
	}
	if x2 == nil {
		x2 = x
	}
	grads := make([]*mat.Dense, d)
	for k := 0; k < d; k++ {
		g := mat.NewDense(n1, n2, nil)
		s := 1 / (m.lengthScale[k] * m.lengthScale[k])
		for i := 0; i < n1; i++ {
			for j := 0; j < n2; j++ {
				r := dist.At(i, j)
				if r == 0 {
					continue
				}
				dk := x.At(i, k) - x2.At(j, k)
				g.Set(i, j, -s*dk*dk/r)
			}
		}
		grads[k] = g
	}
	return grads, nil
}

// DistanceGradInput implements gp.Metric: the derivative of the distance
// with respect to each input dimension of the first argument.
func (m *Euclidean) DistanceGradInput(x, x2 mat.Matrix) ([]*mat.Dense, error) {
	n1, n2, d, err := m.dims(x, x2)
	if err != nil {
		return nil, err
	}
	dist, err := m.Distance(x, x2)
	if err != nil {
		return nil, err
	}
	if x2 == nil {
		x2 = x
	}
	grads := make([]*mat.Dense, d)
	for k := 0; k < d; k++ {
		g := mat.NewDense(n1, n2, nil)
		s := 1 / (m.lengthScale[k] * m.lengthScale[k])
		for i := 0; i < n1; i++ {
			for j := 0; j < n2; j++ {
				r := dist.At(i, j)
				if r == 0 {
					continue
				}
				g.Set(i, j, s*(x.At(i, k)-x2.At(j, k))/r)
			}
		}
		grads[k] = g
	}
	return grads, nil
}

// LogPrior implements gp.Metric. The metric packs its length-scales in
// log-space, so the log-Jacobian terms are included here rather than in
// the owning kernel.
func (m *Euclidean) LogPrior() float64 {
	if m.prior == nil {
		return 0
	}
	lp := 0.0
	for _, l := range m.lengthScale {
		lp += m.prior.LogDensity(l) + math.Log(l)
	}
	return lp
}

// LogPriorGradient implements gp.Metric: the gradient of the negative
// log prior with respect to the packed parameters, in Pak order.
func (m *Euclidean) LogPriorGradient() []float64 {
	if m.prior == nil {
		return nil
	}
	g := make([]float64, 0, m.NumParams())
	for _, l := range m.lengthScale {
		g = append(g, -m.prior.LogDensityGradient(l)*l-1)
	}
	if pw, _ := m.prior.Pak(); len(pw) > 0 {
		sub := make([]float64, len(pw))
		for _, l := range m.lengthScale {
			for i, d := range m.prior.LogDensityGradientParams(l) {
				sub[i] -= d
			}
		}
		g = append(g, sub...)
	}
	return g
}

// Pak implements gp.Metric.
func (m *Euclidean) Pak() ([]float64, []string) {
	if m.prior == nil {
		return nil, nil
	}
	w := make([]float64, 0, m.NumParams())
	labels := make([]string, 0, m.NumParams())
	for _, l := range m.lengthScale {
		w = append(w, math.Log(l))
		labels = append(labels, "log(euclidean.lengthScale)")
	}
	pw, pl := m.prior.Pak()
	return append(w, pw...), append(labels, pl...)
}

// Unpak implements gp.Metric.
func (m *Euclidean) Unpak(w []float64) (gp.Metric, []float64, error) {
	if m.prior == nil {
		return m, w, nil
	}
	d := len(m.lengthScale)
	if len(w) < d {
		return nil, nil, fmt.Errorf("%w: metric needs %d values, got %d", gp.ErrShortVector, d, len(w))
	}
	ls := make([]float64, d)
	for i := 0; i < d; i++ {
		l := math.Exp(w[i])
		if !(l > 0) || math.IsInf(l, 0) || math.IsNaN(l) {
			return nil, nil, fmt.Errorf("%w: length-scale %v at index %d", gp.ErrInvalidParameter, l, i)
		}
		ls[i] = l
	}
	p, rest, err := m.prior.Unpak(w[d:])
	if err != nil {
		return nil, nil, err
	}
	return &Euclidean{lengthScale: ls, prior: p}, rest, nil
}

// NumParams implements gp.Metric.
func (m *Euclidean) NumParams() int {
	if m.prior == nil {
		return 0
	}
	pw, _ := m.prior.Pak()
	return len(m.lengthScale) + len(pw)
}
