package metric

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/AstroH-Peng/gpstuff/gp"
	"github.com/AstroH-Peng/gpstuff/prior"
)

const (
	fdStep = 1e-6
	fdTol  = 1e-5
)

func testInputs() (*mat.Dense, *mat.Dense) {
	x := mat.NewDense(4, 2, []float64{
		0, 0,
		1, 0.5,
		-0.3, 1.2,
		0.7, -0.9,
	})
	x2 := mat.NewDense(3, 2, []float64{
		0.2, 0.1,
		-1, 2,
		0.5, 0.5,
	})
	return x, x2
}

func TestNewEuclideanValidation(t *testing.T) {
	_, err := NewEuclidean(nil, nil)
	assert.ErrorIs(t, err, gp.ErrInvalidParameter)
	_, err = NewEuclidean([]float64{1, 0}, nil)
	assert.ErrorIs(t, err, gp.ErrInvalidParameter)
	_, err = NewEuclidean([]float64{1, -2}, nil)
	assert.ErrorIs(t, err, gp.ErrInvalidParameter)
}

func TestDistance(t *testing.T) {
	m, err := NewEuclidean([]float64{1, 2}, nil)
	require.NoError(t, err)
	x, x2 := testInputs()
	D, err := m.Distance(x, x2)
	require.NoError(t, err)
	// Entry (0,0): sqrt(0.2²/1² + 0.1²/2²).
	want := math.Sqrt(0.04 + 0.0025)
	assert.InDelta(t, want, D.At(0, 0), 1e-12)

	// Self form: zero diagonal, symmetric.
	S, err := m.Distance(x, nil)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		assert.Zero(t, S.At(i, i))
		for j := 0; j < 4; j++ {
			assert.InDelta(t, S.At(j, i), S.At(i, j), 1e-12)
		}
	}
}

func TestDistanceDimensionMismatch(t *testing.T) {
	m, err := NewEuclidean([]float64{1, 2, 3}, nil)
	require.NoError(t, err)
	x, _ := testInputs()
	_, err = m.Distance(x, nil)
	assert.ErrorIs(t, err, gp.ErrDimensionMismatch)
}

func TestDistanceGradParamsFiniteDifference(t *testing.T) {
	m, err := NewEuclidean([]float64{0.8, 1.6}, prior.LogUniform{})
	require.NoError(t, err)
	x, x2 := testInputs()
	grads, err := m.DistanceGradParams(x, x2)
	require.NoError(t, err)
	require.Len(t, grads, 2)

	w, _ := m.Pak()
	for p := 0; p < 2; p++ {
		wp := append([]float64(nil), w...)
		wp[p] += fdStep
		up, _, err := m.Unpak(wp)
		require.NoError(t, err)
		wp[p] -= 2 * fdStep
		down, _, err := m.Unpak(wp)
		require.NoError(t, err)
		Du, err := up.Distance(x, x2)
		require.NoError(t, err)
		Dd, err := down.Distance(x, x2)
		require.NoError(t, err)
		for i := 0; i < 4; i++ {
			for j := 0; j < 3; j++ {
				want := (Du.At(i, j) - Dd.At(i, j)) / (2 * fdStep)
				assert.InDeltaf(t, want, grads[p].At(i, j), fdTol, "param %d entry (%d,%d)", p, i, j)
			}
		}
	}
}

func TestDistanceGradInputFiniteDifference(t *testing.T) {
	m, err := NewEuclidean([]float64{0.8, 1.6}, nil)
	require.NoError(t, err)
	x, x2 := testInputs()
	grads, err := m.DistanceGradInput(x, x2)
	require.NoError(t, err)
	require.Len(t, grads, 2)
	for dim := 0; dim < 2; dim++ {
		for a := 0; a < 4; a++ {
			xp := mat.DenseCopyOf(x)
			xp.Set(a, dim, xp.At(a, dim)+fdStep)
			xm := mat.DenseCopyOf(x)
			xm.Set(a, dim, xm.At(a, dim)-fdStep)
			Du, err := m.Distance(xp, x2)
			require.NoError(t, err)
			Dd, err := m.Distance(xm, x2)
			require.NoError(t, err)
			for b := 0; b < 3; b++ {
				want := (Du.At(a, b) - Dd.At(a, b)) / (2 * fdStep)
				assert.InDeltaf(t, want, grads[dim].At(a, b), fdTol, "dim %d entry (%d,%d)", dim, a, b)
			}
		}
	}
}

func TestPakUnpakRoundTrip(t *testing.T) {
	g, err := prior.NewGaussian(0, 2)
	require.NoError(t, err)
	m, err := NewEuclidean([]float64{0.5, 1.5, 2.5}, g)
	require.NoError(t, err)
	w, labels := m.Pak()
	require.Len(t, w, 3)
	require.Len(t, labels, 3)
	assert.Equal(t, "log(euclidean.lengthScale)", labels[0])

	m2, rest, err := m.Unpak(append(w, 42))
	require.NoError(t, err)
	assert.Equal(t, []float64{42}, rest)
	assert.InDeltaSlice(t, m.LengthScale(), m2.(*Euclidean).LengthScale(), 1e-12)

	_, _, err = m.Unpak(w[:1])
	assert.ErrorIs(t, err, gp.ErrShortVector)
}

func TestFixedMetricPacksNothing(t *testing.T) {
	m, err := NewEuclidean([]float64{1, 2}, nil)
	require.NoError(t, err)
	w, _ := m.Pak()
	assert.Empty(t, w)
	assert.Zero(t, m.NumParams())
	assert.Zero(t, m.LogPrior())
	assert.Nil(t, m.LogPriorGradient())
	m2, rest, err := m.Unpak([]float64{1, 2, 3})
	require.NoError(t, err)
	assert.Len(t, rest, 3)
	assert.Same(t, m, m2)
}

func TestLogPriorGradientFiniteDifference(t *testing.T) {
	st, err := prior.NewStudentT(0, 1, 4)
	require.NoError(t, err)
	m, err := NewEuclidean([]float64{0.9, 1.7}, st)
	require.NoError(t, err)
	g := m.LogPriorGradient()
	require.Len(t, g, 2)
	w, _ := m.Pak()
	for p := range w {
		wp := append([]float64(nil), w...)
		wp[p] += fdStep
		up, _, err := m.Unpak(wp)
		require.NoError(t, err)
		wp[p] -= 2 * fdStep
		down, _, err := m.Unpak(wp)
		require.NoError(t, err)
		// LogPriorGradient is the gradient of the negative log prior.
		want := -(up.LogPrior() - down.LogPrior()) / (2 * fdStep)
		assert.InDeltaf(t, want, g[p], fdTol, "param %d", p)
	}
}
