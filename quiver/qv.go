package quiver

import (
	"fmt"
	"math"

	"github.com/exascience/pargo/parallel"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/consensus/mutation"
	"gonum.org/v1/gonum/floats"
)

// MaxQV is the largest quality value reported by ConsensusQVs, the highest
// value printable in phred+33.
const MaxQV = 93

// ProbabilityToQV converts an error probability to a phred quality value.
// A probability of 0 is treated as the smallest positive float64.
func ProbabilityToQV(p float64) (int, error) {
	if p < 0 || p > 1 || math.IsNaN(p) {
		return 0, errors.E(errors.Invalid, fmt.Sprintf("quiver: probability %v outside [0,1]", p))
	}
	if p == 0 {
		p = math.SmallestNonzeroFloat64
	}
	return int(math.Round(-10 * math.Log10(p))), nil
}

// ConsensusQVs returns a quality value per template position. The error
// probability at a position is the relative likelihood of the single-base
// edits there that lower the score, against the template base itself.
func ConsensusQVs(mms *MultiReadScorer, parallelism int) ([]int, error) {
	tpl := mms.Template()
	if len(tpl) == 0 {
		return nil, nil
	}
	enum := mutation.UniqueSingleBase(tpl)
	qvs := make([]int, len(tpl))
	errs := make([]error, len(tpl))
	parallel.Range(0, len(tpl), rangeParallelism(parallelism), func(low, high int) {
		var scores []float64
		for pos := low; pos < high; pos++ {
			scores = scores[:0]
			for _, m := range enum.MutationsIn(pos, pos+1) {
				if s := mms.Score(m); s < 0 {
					scores = append(scores, s)
				}
			}
			sum := 0.0
			if len(scores) > 0 {
				sum = math.Exp(floats.LogSumExp(scores))
			}
			qv, err := ProbabilityToQV(1 - 1/(1+sum))
			if err != nil {
				errs[pos] = err
				continue
			}
			if qv > MaxQV {
				qv = MaxQV
			}
			qvs[pos] = qv
		}
	})
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return qvs, nil
}
