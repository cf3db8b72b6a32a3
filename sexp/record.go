package sexp

import (
	"encoding/gob"
	"fmt"
	"io"

	"github.com/AstroH-Peng/gpstuff/gp"
)

var _ gp.Record = (*Record)(nil)

// Record is the append-only sample history of one squared-exponential
// kernel, filled row by row by an external sampler. Prior-presence flags
// are copied from the template kernel at initialization so a consumer
// can tell which columns were actually sampled. Length-scale history is
// omitted entirely when a metric delegate owns the length-scales.
type Record struct {
	Version int

	MagnSigma2  []float64   // one value per sample
	LengthScale [][]float64 // one row per sample; nil under a metric

	// Packed free parameters of the priors themselves, one row per
	// sample; nil when the priors carry none.
	MagnPriorParams [][]float64
	LSPriorParams   [][]float64

	HasMagnSigma2Prior  bool
	HasLengthScalePrior bool
	HasMetric           bool
}

// NumSamples implements gp.Record.
func (r *Record) NumSamples() int { return len(r.MagnSigma2) }

// NewRecord initializes an empty sample history from a template kernel.
func NewRecord(template *Kernel) *Record {
	r := &Record{
		Version:            1,
		HasMagnSigma2Prior: template.magnSigma2Prior != nil,
		HasMetric:          template.metric != nil,
	}
	if template.ls != nil {
		r.HasLengthScalePrior = template.ls.prior != nil
	}
	return r
}

// Recappend appends the kernel's current hyperparameter values, and
// recursively the free parameters of its priors, as sample ri (1-based).
// A nil rec initializes an empty history from the receiver without
// appending. The receiver is never mutated; samplers keep mutating their
// live kernel through Unpak while the record only ever grows.
func (k *Kernel) Recappend(rec gp.Record, ri int) (gp.Record, error) {
	if rec == nil {
		return NewRecord(k), nil
	}
	r, ok := rec.(*Record)
	if !ok {
		return nil, fmt.Errorf("sexp: record has type %T, want *sexp.Record", rec)
	}
	if ri != r.NumSamples()+1 {
		return nil, fmt.Errorf("sexp: sample index %d out of order, want %d", ri, r.NumSamples()+1)
	}
	r.MagnSigma2 = append(r.MagnSigma2, k.magnSigma2)
	if k.magnSigma2Prior != nil {
		if pw, _ := k.magnSigma2Prior.Pak(); len(pw) > 0 {
			r.MagnPriorParams = append(r.MagnPriorParams, pw)
		}
	}
	if k.ls != nil {
		row := make([]float64, len(k.ls.values))
		copy(row, k.ls.values)
		r.LengthScale = append(r.LengthScale, row)
		if k.ls.prior != nil {
			if pw, _ := k.ls.prior.Pak(); len(pw) > 0 {
				r.LSPriorParams = append(r.LSPriorParams, pw)
			}
		}
	}
	return r, nil
}

// Save serializes the sample history in gob format.
func (r *Record) Save(w io.Writer) error {
	return gob.NewEncoder(w).Encode(r)
}

// LoadRecord deserializes a sample history written by Save.
func LoadRecord(rd io.Reader) (*Record, error) {
	var r Record
	if err := gob.NewDecoder(rd).Decode(&r); err != nil {
		return nil, err
	}
	if r.Version != 1 {
		return nil, fmt.Errorf("sexp: unsupported record version %d", r.Version)
	}
	return &r, nil
}
