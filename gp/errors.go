package gp

import "errors"

var (
	// ErrDimensionMismatch is returned when two input matrices disagree on
	// the number of columns (input dimensions).
	ErrDimensionMismatch = errors.New("gp: input matrices must have the same number of columns")

	// ErrShortVector is returned by Unpak when the parameter vector holds
	// fewer values than the receiver's free hyperparameters require.
	ErrShortVector = errors.New("gp: parameter vector too short")

	// ErrInvalidParameter is returned when a hyperparameter is non-positive
	// or non-finite, at construction or after unpacking.
	ErrInvalidParameter = errors.New("gp: hyperparameter must be positive and finite")

	// ErrMetricUnsupported is returned by the input-derivative routines,
	// which are defined only for the built-in scaled-Euclidean distance.
	ErrMetricUnsupported = errors.New("gp: operation not supported with a metric delegate")

	// ErrAliasedInput is returned by Ginput4 when x2 shares storage with x;
	// self-covariance derivatives must use the single-argument form.
	ErrAliasedInput = errors.New("gp: x2 must not alias x")

	// ErrNoPrior is returned by Ghypergrad2, which requires a prior on the
	// magnitude hyperparameter.
	ErrNoPrior = errors.New("gp: operation requires a prior on magnSigma2")
)
