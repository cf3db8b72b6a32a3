package sexp

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/AstroH-Peng/gpstuff/gp"
	"github.com/AstroH-Peng/gpstuff/prior"
)

// covAt evaluates the covariance used by Ghyper for a given mode, so the
// finite-difference reference perturbs exactly what the engine
// differentiates.
func covAt(t *testing.T, k *Kernel, x, x2 mat.Matrix) *mat.Dense {
	t.Helper()
	var C *mat.Dense
	var err error
	if x2 == nil {
		C, err = k.trcovDense(x)
	} else {
		C, err = k.cov(x, x2)
	}
	if err != nil {
		t.Fatalf("covariance failed: %v", err)
	}
	return C
}

func checkGhyperFD(t *testing.T, k *Kernel, x, x2 mat.Matrix) {
	t.Helper()
	dk, gprior, err := k.Ghyper(x, x2)
	if err != nil {
		t.Fatalf("Ghyper failed: %v", err)
	}
	np := k.NumParams()
	if len(dk) != np || len(gprior) != np {
		t.Fatalf("Ghyper returned %d matrices, %d prior gradients, want %d", len(dk), len(gprior), np)
	}
	for p := 0; p < np; p++ {
		plus := covAt(t, perturb(t, k, p, fdStep), x, x2)
		minus := covAt(t, perturb(t, k, p, -fdStep), x, x2)
		r, c := plus.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				want := (plus.At(i, j) - minus.At(i, j)) / (2 * fdStep)
				if math.Abs(dk[p].At(i, j)-want) > fdTol {
					t.Errorf("param %d entry (%d,%d): analytic %v, finite difference %v", p, i, j, dk[p].At(i, j), want)
				}
			}
		}
	}
}

func TestGhyperTrainingFiniteDifference(t *testing.T) {
	gauss, err := prior.NewGaussian(0, 2)
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		name string
		k    *Kernel
		x    *mat.Dense
	}{
		{
			"isotropic 1d",
			mustKernel(t, WithMagnSigma2(0.6), WithLengthScale(0.9)),
			mat.NewDense(2, 1, []float64{0, 1.1}),
		},
		{
			"isotropic 3d",
			mustKernel(t, WithMagnSigma2(1.4), WithLengthScale(1.2)),
			mat.NewDense(5, 3, []float64{
				0, 0, 0,
				1, -0.5, 0.2,
				0.3, 0.9, -1.1,
				-0.4, 0.1, 0.8,
				2.1, 0.7, -0.2,
			}),
		},
		{
			"ard 2d",
			mustKernel(t, WithMagnSigma2(0.5), WithLengthScale(0.7, 1.9)),
			mat.NewDense(5, 2, []float64{
				0, 0,
				1, 0.5,
				-0.3, 1.2,
				0.7, -0.9,
				1.5, 0.1,
			}),
		},
		{
			"ard 3d with priors",
			mustKernel(t,
				WithMagnSigma2(0.8), WithMagnSigma2Prior(gauss),
				WithLengthScale(1.1, 0.6, 2.3)),
			mat.NewDense(2, 3, []float64{0, 0.4, -0.2, 1.3, -0.8, 0.5}),
		},
		{
			"nested free prior parameter",
			mustKernel(t,
				WithMagnSigma2(0.9),
				WithMagnSigma2Prior(prior.Gaussian{Mu: 0, Sigma2: 2, Sigma2Prior: prior.LogUniform{}}),
				WithLengthScale(1.4)),
			mat.NewDense(3, 1, []float64{0, 0.8, 2.1}),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			checkGhyperFD(t, tc.k, tc.x, nil)
		})
	}
}

func TestGhyperCrossFiniteDifference(t *testing.T) {
	k := mustKernel(t, WithMagnSigma2(0.7), WithLengthScale(0.9, 1.5))
	x := mat.NewDense(5, 2, []float64{
		0, 0,
		1, 0.5,
		-0.3, 1.2,
		0.7, -0.9,
		1.5, 0.1,
	})
	x2 := mat.NewDense(2, 2, []float64{0.4, 0.4, -1.2, 0.6})
	checkGhyperFD(t, k, x, x2)
}

func TestGhyperCrossDimensionMismatch(t *testing.T) {
	k := mustKernel(t)
	x := mat.NewDense(2, 2, []float64{0, 0, 1, 1})
	x2 := mat.NewDense(2, 1, []float64{0, 1})
	if _, _, err := k.Ghyper(x, x2); !errors.Is(err, gp.ErrDimensionMismatch) {
		t.Errorf("Ghyper error = %v, want ErrDimensionMismatch", err)
	}
}

func TestGhyperMetricFiniteDifference(t *testing.T) {
	k := mustKernel(t, WithMagnSigma2(0.5), WithMetric(newTestMetric(t, []float64{0.8, 1.6})))
	x := mat.NewDense(4, 2, []float64{
		0, 0,
		1, 0.5,
		-0.3, 1.2,
		0.7, -0.9,
	})
	x2 := mat.NewDense(3, 2, []float64{0.2, 0.1, -1, 2, 0.5, 0.5})
	checkGhyperFD(t, k, x, x2)
}

func TestGhyperDiag(t *testing.T) {
	k := mustKernel(t, WithMagnSigma2(0.3), WithLengthScale(0.5, 1.5))
	x := mat.NewDense(4, 2, []float64{0, 0, 1, 1, 2, 2, 3, 3})
	dk, gprior, err := k.GhyperDiag(x)
	if err != nil {
		t.Fatalf("GhyperDiag failed: %v", err)
	}
	np := k.NumParams()
	if len(dk) != np || len(gprior) != np {
		t.Fatalf("GhyperDiag returned %d vectors, %d prior gradients, want %d", len(dk), len(gprior), np)
	}
	// The magnitude derivative is the variance diagonal itself.
	for i := 0; i < 4; i++ {
		if math.Abs(dk[0].AtVec(i)-0.3) > 1e-12 {
			t.Errorf("magnitude block [%d] = %v, want 0.3", i, dk[0].AtVec(i))
		}
	}
	// Length-scale derivatives are identically zero: distance to self
	// stays zero regardless of the length-scale.
	for p := 1; p < np; p++ {
		for i := 0; i < 4; i++ {
			if dk[p].AtVec(i) != 0 {
				t.Errorf("length-scale block %d [%d] = %v, want 0", p, i, dk[p].AtVec(i))
			}
		}
	}
}

func TestGhyperFixedParametersSkipped(t *testing.T) {
	k := mustKernel(t,
		WithMagnSigma2(0.4), WithMagnSigma2Prior(nil),
		WithLengthScale(1.2))
	x := mat.NewDense(3, 1, []float64{0, 1, 2})
	dk, gprior, err := k.Ghyper(x, nil)
	if err != nil {
		t.Fatalf("Ghyper failed: %v", err)
	}
	if len(dk) != 1 || len(gprior) != 1 {
		t.Fatalf("got %d matrices, %d prior gradients, want 1/1", len(dk), len(gprior))
	}
	// The only block is the length-scale derivative, not the covariance.
	C, err := k.trcovDense(x)
	if err != nil {
		t.Fatal(err)
	}
	if same := math.Abs(dk[0].At(0, 1)-C.At(0, 1)) < 1e-15; same {
		t.Error("block looks like the magnitude derivative; fixed magnSigma2 must be skipped")
	}
}
