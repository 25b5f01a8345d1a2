package quiver

import (
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/consensus/dna"
	"github.com/grailbio/consensus/matrix"
)

// Evaluator scores the individual moves of an alignment between one read
// (rows, 0..ReadLength) and one template (columns, 0..TemplateLength).
//
// The 4-wide variants return the scores of rows i..i+3 in column j.
type Evaluator interface {
	ReadLength() int
	TemplateLength() int
	Read() string
	Template() string
	// WithTemplate returns an evaluator for the same read against tpl. The
	// receiver is unchanged.
	WithTemplate(tpl string) Evaluator
	PinStart() bool
	PinEnd() bool

	Inc(i, j int) float64
	Del(i, j int) float64
	Extra(i, j int) float64
	Merge(i, j int) float64

	Inc4(i, j int) [4]float64
	Del4(i, j int) [4]float64
	Extra4(i, j int) [4]float64
	Merge4(i, j int) [4]float64
}

// QvEvaluator implements Evaluator for the QV model.
type QvEvaluator struct {
	features *Features
	tpl      string
	params   ModelParams
	pinStart bool
	pinEnd   bool
}

// NewQvEvaluator returns an evaluator of features against tpl. When pinStart
// (pinEnd) is false, template bases before (after) the read are deleted for
// free.
func NewQvEvaluator(features *Features, tpl string, params ModelParams, pinStart, pinEnd bool) (*QvEvaluator, error) {
	if features == nil {
		return nil, errors.E(errors.Invalid, "quiver: nil features")
	}
	if err := features.validate(); err != nil {
		return nil, err
	}
	if err := dna.Validate(tpl); err != nil {
		return nil, errors.E(errors.Invalid, "quiver: template", err)
	}
	return &QvEvaluator{
		features: features,
		tpl:      tpl,
		params:   params,
		pinStart: pinStart,
		pinEnd:   pinEnd,
	}, nil
}

// ReadLength implements Evaluator.
func (e *QvEvaluator) ReadLength() int { return len(e.features.Sequence) }

// TemplateLength implements Evaluator.
func (e *QvEvaluator) TemplateLength() int { return len(e.tpl) }

// Read implements Evaluator.
func (e *QvEvaluator) Read() string { return e.features.Sequence }

// Template implements Evaluator.
func (e *QvEvaluator) Template() string { return e.tpl }

// Features returns the read features.
func (e *QvEvaluator) Features() *Features { return e.features }

// Params returns the model coefficients.
func (e *QvEvaluator) Params() ModelParams { return e.params }

// WithTemplate implements Evaluator.
func (e *QvEvaluator) WithTemplate(tpl string) Evaluator {
	c := *e
	c.tpl = tpl
	return &c
}

// PinStart implements Evaluator.
func (e *QvEvaluator) PinStart() bool { return e.pinStart }

// PinEnd implements Evaluator.
func (e *QvEvaluator) PinEnd() bool { return e.pinEnd }

// Inc implements Evaluator.
func (e *QvEvaluator) Inc(i, j int) float64 {
	if e.features.Sequence[i] == e.tpl[j] {
		return e.params.Match
	}
	return e.params.Mismatch + e.params.MismatchS*e.features.SubsQv[i]
}

// Del implements Evaluator.
func (e *QvEvaluator) Del(i, j int) float64 {
	I := e.ReadLength()
	if (!e.pinStart && i == 0) || (!e.pinEnd && i == I) {
		return 0
	}
	if i < I && e.tpl[j] == e.features.DelTag[i] {
		return e.params.DeletionWithTag + e.params.DeletionWithTagS*e.features.DelQv[i]
	}
	return e.params.DeletionN
}

// Extra implements Evaluator.
func (e *QvEvaluator) Extra(i, j int) float64 {
	if j < len(e.tpl) && e.features.Sequence[i] == e.tpl[j] {
		return e.params.Branch + e.params.BranchS*e.features.InsQv[i]
	}
	return e.params.Nce + e.params.NceS*e.features.InsQv[i]
}

// Merge implements Evaluator.
func (e *QvEvaluator) Merge(i, j int) float64 {
	if j+1 >= len(e.tpl) {
		return matrix.Floor
	}
	b := e.tpl[j]
	if e.features.Sequence[i] != b || e.tpl[j+1] != b {
		return matrix.Floor
	}
	k := dna.Index(b)
	if k < 0 {
		panic(fmt.Sprintf("quiver: template base %q", b))
	}
	return e.params.Merge[k] + e.params.MergeS[k]*e.features.MergeQv[i]
}

// Inc4 implements Evaluator.
func (e *QvEvaluator) Inc4(i, j int) [4]float64 {
	return [4]float64{e.Inc(i, j), e.Inc(i+1, j), e.Inc(i+2, j), e.Inc(i+3, j)}
}

// Del4 implements Evaluator.
func (e *QvEvaluator) Del4(i, j int) [4]float64 {
	return [4]float64{e.Del(i, j), e.Del(i+1, j), e.Del(i+2, j), e.Del(i+3, j)}
}

// Extra4 implements Evaluator.
func (e *QvEvaluator) Extra4(i, j int) [4]float64 {
	return [4]float64{e.Extra(i, j), e.Extra(i+1, j), e.Extra(i+2, j), e.Extra(i+3, j)}
}

// Merge4 implements Evaluator.
func (e *QvEvaluator) Merge4(i, j int) [4]float64 {
	return [4]float64{e.Merge(i, j), e.Merge(i+1, j), e.Merge(i+2, j), e.Merge(i+3, j)}
}
