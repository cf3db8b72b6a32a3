// Package gp defines the contracts shared by the covariance functions,
// metric delegates and prior delegates of the Gaussian-process toolbox.
//
// A generic inference or optimization engine depends only on the
// Covariance interface: it packs the free hyperparameters into a flat
// real vector, hands the vector to an optimizer or sampler, unpacks the
// result, and asks for covariance matrices and their gradients. Any
// kernel family implementing Covariance is interchangeable.
//
// All implementations are required to be pure: no method mutates its
// receiver or its matrix arguments, and updated state is always returned
// as a fresh value. This keeps repeated unpack/gradient cycles, and any
// caller-side parallelism across gradient blocks, free of shared state.
package gp

import "gonum.org/v1/gonum/mat"

// Covariance is the capability set of one covariance function instance.
//
// Free hyperparameters are the ones carrying a prior; fixed ones keep
// their value but never appear in packed vectors, gradients or records.
// Packed vectors are in log-space for positivity-constrained scalars;
// values held by the implementation stay untransformed.
type Covariance interface {
	// Pak flattens the free hyperparameters, recursing into prior and
	// metric delegates, and returns the vector together with parallel
	// human-readable labels (diagnostics only).
	Pak() (w []float64, labels []string)

	// Unpak consumes a prefix of w, restoring the free hyperparameters,
	// and returns the updated instance plus the unconsumed remainder.
	Unpak(w []float64) (Covariance, []float64, error)

	// Energy returns the negative log prior of the free hyperparameters,
	// including the log-Jacobian correction for log-transformed scalars.
	Energy() float64

	// Cov computes the n1×n2 cross-covariance between two input sets.
	Cov(x1, x2 mat.Matrix) (*mat.Dense, error)

	// Trcov computes the symmetric training covariance of one input set.
	Trcov(x mat.Matrix) (*mat.SymDense, error)

	// Trvar returns the training variance, diag(Trcov(x)).
	Trvar(x mat.Matrix) (*mat.VecDense, error)

	// Ghyper returns the derivative of the covariance with respect to each
	// free (log-transformed) hyperparameter, one matrix per packed scalar,
	// plus the gradient of the log-prior energy in the same order. A nil
	// x2 selects the training covariance, otherwise the cross covariance.
	Ghyper(x, x2 mat.Matrix) ([]*mat.Dense, []float64, error)

	// GhyperDiag is the masked, diagonal-only variant used by sparse
	// approximations: derivatives of Trvar(x) per free hyperparameter.
	GhyperDiag(x mat.Matrix) ([]*mat.VecDense, []float64, error)

	// Ghypergrad returns the hyperparameter gradient of the
	// once-input-differentiated kernel, for models observing derivatives
	// of the latent function.
	Ghypergrad(x mat.Matrix) ([]*mat.Dense, error)

	// Ghypergrad2 returns the hyperparameter gradient of the twice-input-
	// differentiated kernel as (m·n)×(m·n) block matrices.
	Ghypergrad2(x mat.Matrix) ([]*mat.Dense, error)

	// Ginput returns the derivative of the covariance with respect to
	// every scalar input coordinate, n·m matrices in dimension-major
	// order. A nil x2 selects the self-covariance form.
	Ginput(x, x2 mat.Matrix) ([]*mat.Dense, error)

	// Ginput2 returns the second derivative with respect to the same
	// dimension of both arguments, one matrix per dimension, along with
	// its two additive constituents (sum = pos − neg).
	Ginput2(x, x2 mat.Matrix) (sum, pos, neg []*mat.Dense, err error)

	// Ginput3 returns the second derivative with respect to two distinct
	// dimensions, one matrix per pair (i,j), i<j, upper triangle
	// enumerated column-wise.
	Ginput3(x, x2 mat.Matrix) ([]*mat.Dense, error)

	// Ginput4 returns the derivative of the covariance with respect to the
	// first argument, one dense matrix per input dimension. A nil x2
	// selects the self-covariance form; x2 must never alias x.
	Ginput4(x, x2 mat.Matrix) ([]*mat.Dense, error)

	// Recappend appends the current hyperparameter values as sample ri of
	// rec. A nil rec initializes an empty history from the receiver.
	Recappend(rec Record, ri int) (Record, error)
}

// Metric computes distances between input points and, when attached to a
// covariance function, owns the length-scale parameterization entirely,
// including its priors and parameter transform bookkeeping.
type Metric interface {
	// Distance returns the n1×n2 matrix of distances. A nil x2 selects
	// the symmetric self-distance of x.
	Distance(x, x2 mat.Matrix) (*mat.Dense, error)

	// DistanceGradParams returns the derivative of the distance matrix
	// with respect to each of the metric's packed (log-space) parameters.
	DistanceGradParams(x, x2 mat.Matrix) ([]*mat.Dense, error)

	// DistanceGradInput returns the derivative of the distance matrix with
	// respect to each input dimension of the first argument.
	DistanceGradInput(x, x2 mat.Matrix) ([]*mat.Dense, error)

	// LogPrior returns the metric's log prior including its own
	// log-Jacobian terms; LogPriorGradient returns the gradient of the
	// negative log prior with respect to the packed parameters, Jacobian
	// correction included.
	LogPrior() float64
	LogPriorGradient() []float64

	Pak() (w []float64, labels []string)
	Unpak(w []float64) (Metric, []float64, error)

	// NumParams reports the packed parameter count.
	NumParams() int
}

// Prior is the delegate attached to a single scalar hyperparameter (or,
// for ARD length-scales, applied elementwise to every entry).
type Prior interface {
	// LogDensity returns log p(v), plus any energy contributed by the
	// prior's own free hyperparameters and their transforms.
	LogDensity(v float64) float64

	// LogDensityGradient returns d log p(v) / dv.
	LogDensityGradient(v float64) float64

	// Pak flattens the prior's own free hyperparameters, if any.
	Pak() (w []float64, labels []string)
	Unpak(w []float64) (Prior, []float64, error)

	// LogDensityGradientParams returns d LogDensity(v) / dw for the packed
	// parameters w, in Pak order. Nil when the prior has none.
	LogDensityGradientParams(v float64) []float64
}

// Record is a growing history of hyperparameter samples produced by an
// external sampler via Covariance.Recappend.
type Record interface {
	NumSamples() int
}
