// Package prior provides the prior delegates attached to covariance
// function hyperparameters. Each delegate supplies the log density and
// its gradient in the untransformed parameter space; the covariance
// function owns the Jacobian correction for its own log-transform.
package prior

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/AstroH-Peng/gpstuff/gp"
)

var (
	_ gp.Prior = Gaussian{}
	_ gp.Prior = LogUniform{}
	_ gp.Prior = StudentT{}
	_ gp.Prior = Gamma{}
)

// Gaussian is a normal prior with mean Mu and variance Sigma2.
//
// When Sigma2Prior is set, Sigma2 becomes a free hyperparameter of the
// prior itself: it is packed in log-space and its hyperprior energy is
// folded into LogDensity, so the recursive pak/unpak/gradient chain of
// the covariance function covers it without special cases.
type Gaussian struct {
	Mu          float64
	Sigma2      float64
	Sigma2Prior gp.Prior
}

// NewGaussian returns a Gaussian prior with fixed hyperparameters.
func NewGaussian(mu, sigma2 float64) (Gaussian, error) {
	if !(sigma2 > 0) || math.IsInf(sigma2, 0) {
		return Gaussian{}, fmt.Errorf("%w: gaussian prior variance %v", gp.ErrInvalidParameter, sigma2)
	}
	return Gaussian{Mu: mu, Sigma2: sigma2}, nil
}

func (p Gaussian) LogDensity(v float64) float64 {
	lp := distuv.Normal{Mu: p.Mu, Sigma: math.Sqrt(p.Sigma2)}.LogProb(v)
	if p.Sigma2Prior != nil {
		// Hyperprior on the (log-transformed) variance, Jacobian included.
		lp += p.Sigma2Prior.LogDensity(p.Sigma2) + math.Log(p.Sigma2)
	}
	return lp
}

func (p Gaussian) LogDensityGradient(v float64) float64 {
	return -(v - p.Mu) / p.Sigma2
}

func (p Gaussian) Pak() ([]float64, []string) {
	if p.Sigma2Prior == nil {
		return nil, nil
	}
	return []float64{math.Log(p.Sigma2)}, []string{"log(gaussian.s2)"}
}

func (p Gaussian) Unpak(w []float64) (gp.Prior, []float64, error) {
	if p.Sigma2Prior == nil {
		return p, w, nil
	}
	if len(w) < 1 {
		return nil, nil, fmt.Errorf("%w: gaussian prior needs 1 value", gp.ErrShortVector)
	}
	s2 := math.Exp(w[0])
	if !(s2 > 0) || math.IsInf(s2, 0) || math.IsNaN(s2) {
		return nil, nil, fmt.Errorf("%w: gaussian prior variance %v", gp.ErrInvalidParameter, s2)
	}
	q := p
	q.Sigma2 = s2
	return q, w[1:], nil
}

func (p Gaussian) LogDensityGradientParams(v float64) []float64 {
	if p.Sigma2Prior == nil {
		return nil
	}
	d := v - p.Mu
	// d logN(v)/d log s2, plus the hyperprior and Jacobian terms.
	g := -0.5 + d*d/(2*p.Sigma2)
	g += p.Sigma2Prior.LogDensityGradient(p.Sigma2)*p.Sigma2 + 1
	return []float64{g}
}

// LogUniform is the improper prior p(v) ∝ 1/v, uniform in log(v).
type LogUniform struct{}

func (LogUniform) LogDensity(v float64) float64         { return -math.Log(v) }
func (LogUniform) LogDensityGradient(v float64) float64 { return -1 / v }
func (LogUniform) Pak() ([]float64, []string)           { return nil, nil }
func (p LogUniform) Unpak(w []float64) (gp.Prior, []float64, error) {
	return p, w, nil
}
func (LogUniform) LogDensityGradientParams(float64) []float64 { return nil }

// StudentT is a Student-t prior with location Mu, scale² Sigma2 and Nu
// degrees of freedom.
type StudentT struct {
	Mu     float64
	Sigma2 float64
	Nu     float64
}

// NewStudentT returns a Student-t prior with fixed hyperparameters.
func NewStudentT(mu, sigma2, nu float64) (StudentT, error) {
	if !(sigma2 > 0) || !(nu > 0) {
		return StudentT{}, fmt.Errorf("%w: student-t prior scale %v, dof %v", gp.ErrInvalidParameter, sigma2, nu)
	}
	return StudentT{Mu: mu, Sigma2: sigma2, Nu: nu}, nil
}

func (p StudentT) LogDensity(v float64) float64 {
	return distuv.StudentsT{Mu: p.Mu, Sigma: math.Sqrt(p.Sigma2), Nu: p.Nu}.LogProb(v)
}

func (p StudentT) LogDensityGradient(v float64) float64 {
	d := v - p.Mu
	return -(p.Nu + 1) * d / (p.Nu*p.Sigma2 + d*d)
}

func (p StudentT) Pak() ([]float64, []string) { return nil, nil }
func (p StudentT) Unpak(w []float64) (gp.Prior, []float64, error) {
	return p, w, nil
}
func (StudentT) LogDensityGradientParams(float64) []float64 { return nil }

// Gamma is a gamma prior with shape Shape and inverse scale (rate)
// InvScale.
type Gamma struct {
	Shape    float64
	InvScale float64
}

// NewGamma returns a Gamma prior with fixed hyperparameters.
func NewGamma(shape, invScale float64) (Gamma, error) {
	if !(shape > 0) || !(invScale > 0) {
		return Gamma{}, fmt.Errorf("%w: gamma prior shape %v, rate %v", gp.ErrInvalidParameter, shape, invScale)
	}
	return Gamma{Shape: shape, InvScale: invScale}, nil
}

func (p Gamma) LogDensity(v float64) float64 {
	return distuv.Gamma{Alpha: p.Shape, Beta: p.InvScale}.LogProb(v)
}

func (p Gamma) LogDensityGradient(v float64) float64 {
	return (p.Shape-1)/v - p.InvScale
}

func (p Gamma) Pak() ([]float64, []string) { return nil, nil }
func (p Gamma) Unpak(w []float64) (gp.Prior, []float64, error) {
	return p, w, nil
}
func (Gamma) LogDensityGradientParams(float64) []float64 { return nil }
