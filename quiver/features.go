package quiver

import (
	"fmt"

	"github.com/grailbio/base/errors"
)

// Features holds a read's bases and its per-base quality covariates. All
// slices have the length of Sequence.
type Features struct {
	Sequence string
	InsQv    []float64
	SubsQv   []float64
	DelQv    []float64
	// DelTag is, per read position, the template base most likely deleted
	// just before it, or 'N'.
	DelTag  []byte
	MergeQv []float64
}

// NewFeatures returns features for seq with every QV zero and no deletion
// tags.
func NewFeatures(seq string) (*Features, error) {
	f := &Features{Sequence: seq}
	f.allocate()
	for i := range f.DelTag {
		f.DelTag[i] = 'N'
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// NewFeaturesFromQuality builds features from a phred+33 quality string,
// using each base's QV for insertion, substitution, deletion and merge
// covariates.
func NewFeaturesFromQuality(seq, qual string) (*Features, error) {
	if len(qual) != len(seq) {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("quiver: %d quality values for %d bases", len(qual), len(seq)))
	}
	f := &Features{Sequence: seq}
	f.allocate()
	for i := 0; i < len(qual); i++ {
		q := int(qual[i]) - 33
		if q < 0 {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("quiver: bad quality %q at %d", qual[i], i))
		}
		qv := float64(q)
		f.InsQv[i], f.SubsQv[i], f.DelQv[i], f.MergeQv[i] = qv, qv, qv, qv
		f.DelTag[i] = 'N'
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Features) allocate() {
	n := len(f.Sequence)
	f.InsQv = make([]float64, n)
	f.SubsQv = make([]float64, n)
	f.DelQv = make([]float64, n)
	f.DelTag = make([]byte, n)
	f.MergeQv = make([]float64, n)
}

// Len returns the number of bases.
func (f *Features) Len() int { return len(f.Sequence) }

func (f *Features) validate() error {
	n := len(f.Sequence)
	if n == 0 {
		return errors.E(errors.Invalid, "quiver: empty read")
	}
	if len(f.InsQv) != n || len(f.SubsQv) != n || len(f.DelQv) != n || len(f.DelTag) != n || len(f.MergeQv) != n {
		return errors.E(errors.Invalid, fmt.Sprintf("quiver: feature lengths disagree with read length %d", n))
	}
	return nil
}
