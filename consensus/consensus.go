// Package consensus computes a consensus sequence from a set of reads. A
// partial-order alignment of the reads gives a draft, which is then refined
// by greedy template edits scored under the quiver error model, and finally
// annotated with per-base quality values.
package consensus

import (
	"context"
	"fmt"
	"runtime"

	"github.com/antzucaro/matchr"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/consensus/mutation"
	"github.com/grailbio/consensus/poa"
	"github.com/grailbio/consensus/quiver"
)

// Read is one input read. Qual holds phred+33 qualities and may be empty.
type Read struct {
	Name string
	Seq  string
	Qual string
}

// Opts controls Compute.
type Opts struct {
	// PoaMode is the alignment mode used to build the draft.
	PoaMode poa.Mode
	// PoaParams are the draft alignment scores.
	PoaParams poa.Params
	// UseRangeFinder bands the draft alignments around k-mer anchors.
	UseRangeFinder bool

	// ConfigTable holds the quiver model configurations. Nil means
	// quiver.DefaultConfigTable.
	ConfigTable *quiver.ConfigTable
	// Chemistry selects the ConfigTable entry used for every read.
	Chemistry string
	// Batched selects four-row matrix fills.
	Batched bool
	// SumProduct scores alignments by summing over paths instead of taking
	// the best one.
	SumProduct bool

	Refine quiver.RefineOptions
	// RefineRepeats runs an extra round that inserts or deletes whole
	// repeat units.
	RefineRepeats     bool
	RepeatLength      int
	MinRepeatElements int
	// ComputeQVs enables per-base quality values.
	ComputeQVs bool

	// MinReads is the smallest number of reads Compute accepts.
	MinReads int
	// Parallelism bounds concurrent work. Zero means runtime.NumCPU().
	Parallelism int
}

// DefaultOpts are the default settings.
var DefaultOpts = Opts{
	PoaMode:           poa.Global,
	PoaParams:         poa.DefaultParams,
	Chemistry:         quiver.DefaultChemistry,
	Refine:            quiver.DefaultRefineOptions,
	RefineRepeats:     true,
	RepeatLength:      2,
	MinRepeatElements: 3,
	ComputeQVs:        true,
	MinReads:          1,
}

// Result is the outcome of Compute.
type Result struct {
	// Sequence is the refined consensus.
	Sequence string
	// QVs holds one quality value per base of Sequence, or nil if they were
	// not requested.
	QVs []int
	// Converged is false if refinement stopped at the round limit.
	Converged bool
	// PoaSequence is the draft consensus before refinement.
	PoaSequence string
	// DraftDistance is the edit distance from PoaSequence to Sequence.
	DraftDistance int
	// Variants are the draft's candidate variants found in the graph.
	Variants []mutation.Scored
	// NumActiveReads is the number of reads that took part in refinement.
	NumActiveReads int
	// BaselineScore is the summed read score of Sequence.
	BaselineScore float64
}

func (r *Result) String() string {
	return fmt.Sprintf("consensus %d bases (%d edits from draft), %d active reads, score %.3f, converged %v",
		len(r.Sequence), r.DraftDistance, r.NumActiveReads, r.BaselineScore, r.Converged)
}

// Compute builds the consensus of reads.
func Compute(ctx context.Context, reads []Read, opts Opts) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(reads) == 0 || len(reads) < opts.MinReads {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("consensus: %d reads, need at least %d", len(reads), maxInt(opts.MinReads, 1)))
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = runtime.NumCPU()
	}
	if opts.Refine.Parallelism <= 0 {
		opts.Refine.Parallelism = opts.Parallelism
	}
	table := opts.ConfigTable
	if table == nil {
		table = quiver.DefaultConfigTable()
	}

	draft, err := draftConsensus(reads, opts)
	if err != nil {
		return nil, err
	}
	log.Printf("consensus: draft of %d bases from %d reads, %d candidate variants",
		len(draft.Sequence), len(reads), len(draft.Variants))

	mms, err := quiver.NewMultiReadScorer(table, draft.Sequence)
	if err != nil {
		return nil, err
	}
	mms.Batched = opts.Batched
	mms.SumProduct = opts.SumProduct
	mapped, err := mapReads(reads, len(draft.Sequence), opts.Chemistry)
	if err != nil {
		return nil, err
	}
	if _, err := mms.AddReads(mapped, opts.Parallelism); err != nil {
		return nil, err
	}
	if mms.NumActiveReads() == 0 {
		return nil, errors.E(errors.Invalid, "consensus: no read could be scored against the draft")
	}
	log.Debug.Printf("consensus: %d of %d reads active", mms.NumActiveReads(), mms.NumReads())

	converged, err := quiver.RefineConsensus(ctx, mms, opts.Refine)
	if err != nil {
		return nil, err
	}
	if opts.RefineRepeats {
		if err := quiver.RefineRepeats(ctx, mms, opts.RepeatLength, opts.MinRepeatElements, opts.Refine); err != nil {
			return nil, err
		}
	}
	res := &Result{
		Sequence:       mms.Template(),
		Converged:      converged,
		PoaSequence:    draft.Sequence,
		DraftDistance:  matchr.Levenshtein(draft.Sequence, mms.Template()),
		Variants:       draft.Variants,
		NumActiveReads: mms.NumActiveReads(),
		BaselineScore:  mms.BaselineScore(),
	}
	if opts.ComputeQVs {
		if res.QVs, err = quiver.ConsensusQVs(mms, opts.Parallelism); err != nil {
			return nil, err
		}
	}
	log.Printf("%v", res)
	return res, nil
}

func draftConsensus(reads []Read, opts Opts) (*poa.Consensus, error) {
	cfg := poa.Config{Params: opts.PoaParams, Mode: opts.PoaMode, UseRangeFinder: opts.UseRangeFinder}
	g := poa.NewGraph()
	for _, r := range reads {
		if err := g.AddSequence(r.Seq, cfg); err != nil {
			return nil, errors.E(err, fmt.Sprintf("consensus: read %s", r.Name))
		}
	}
	c := g.FindConsensus(cfg)
	if len(c.Sequence) == 0 {
		return nil, errors.E(errors.Invalid, "consensus: reads share no consensus")
	}
	return c, nil
}

// mapReads places every read, unpinned and forward, on the whole template.
func mapReads(reads []Read, tplLen int, chemistry string) ([]quiver.MappedRead, error) {
	mapped := make([]quiver.MappedRead, len(reads))
	for i, r := range reads {
		var (
			f   *quiver.Features
			err error
		)
		if r.Qual == "" {
			f, err = quiver.NewFeatures(r.Seq)
		} else {
			f, err = quiver.NewFeaturesFromQuality(r.Seq, r.Qual)
		}
		if err != nil {
			return nil, errors.E(err, fmt.Sprintf("consensus: read %s", r.Name))
		}
		mapped[i] = quiver.MappedRead{
			Name:          r.Name,
			Features:      f,
			Strand:        quiver.Forward,
			TemplateStart: 0,
			TemplateEnd:   tplLen,
			Chemistry:     chemistry,
		}
	}
	return mapped, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
