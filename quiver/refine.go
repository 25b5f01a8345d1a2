package quiver

import (
	"context"
	"sort"

	"github.com/biogo/store/llrb"
	farm "github.com/dgryski/go-farm"
	"github.com/exascience/pargo/parallel"
	"github.com/grailbio/base/log"
	"github.com/grailbio/consensus/mutation"
)

// RefineOptions controls RefineConsensus.
type RefineOptions struct {
	// MaximumIterations caps the number of refinement rounds.
	MaximumIterations int
	// MutationSeparation is the minimum distance between the starts of two
	// mutations applied in the same round.
	MutationSeparation int
	// MutationNeighborhood is the distance around each favorable mutation
	// searched in the following round.
	MutationNeighborhood int
	// MinFavorableScoreDiff is the score gain a mutation needs to be applied.
	MinFavorableScoreDiff float64
	// Parallelism bounds concurrent scoring. Zero or less picks a default
	// based on GOMAXPROCS.
	Parallelism int
}

// DefaultRefineOptions are the default refinement settings.
var DefaultRefineOptions = RefineOptions{
	MaximumIterations:     40,
	MutationSeparation:    10,
	MutationNeighborhood:  20,
	MinFavorableScoreDiff: DefaultMinFavorableScoreDiff,
}

type startKey int

func (k startKey) Compare(c llrb.Comparable) int { return int(k) - int(c.(startKey)) }

// BestSubset picks mutations greedily by decreasing score, skipping any whose
// start lies within separation of an already picked start. The result is in
// template order.
func BestSubset(muts []mutation.Scored, separation int) []mutation.Mutation {
	sorted := append([]mutation.Scored(nil), muts...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].Mutation.Less(sorted[j].Mutation)
	})
	var (
		starts llrb.Tree
		picked []mutation.Mutation
	)
	for _, m := range sorted {
		if c := starts.Ceil(startKey(m.Start - separation)); c != nil && int(c.(startKey)) <= m.Start+separation {
			continue
		}
		starts.Insert(startKey(m.Start))
		picked = append(picked, m.Mutation)
	}
	return mutation.Sorted(picked)
}

// favorableMutations scores candidates concurrently and returns those that
// improve the total score, in candidate order.
func favorableMutations(mms *MultiReadScorer, candidates []mutation.Mutation, parallelism int) []mutation.Scored {
	if len(candidates) == 0 {
		return nil
	}
	scores := make([]float64, len(candidates))
	ok := make([]bool, len(candidates))
	parallel.Range(0, len(candidates), rangeParallelism(parallelism), func(low, high int) {
		for i := low; i < high; i++ {
			if mms.FastIsFavorable(candidates[i]) {
				scores[i] = mms.Score(candidates[i])
				ok[i] = true
			}
		}
	})
	var favorable []mutation.Scored
	for i, m := range candidates {
		if ok[i] {
			favorable = append(favorable, m.WithScore(scores[i]))
		}
	}
	return favorable
}

func bestMutation(muts []mutation.Scored) mutation.Mutation {
	best := muts[0]
	for _, m := range muts[1:] {
		if m.Score > best.Score {
			best = m
		}
	}
	return best.Mutation
}

func templateHash(tpl string) uint64 { return farm.Hash64([]byte(tpl)) }

// RefineConsensus greedily applies favorable mutations to the template of
// mms until none remain or opts.MaximumIterations rounds have run. It
// reports whether refinement converged.
func RefineConsensus(ctx context.Context, mms *MultiReadScorer, opts RefineOptions) (bool, error) {
	mms.MinFavorableScoreDiff = opts.MinFavorableScoreDiff
	history := make(map[uint64]struct{})
	var favorable []mutation.Scored
	for round := 0; round < opts.MaximumIterations; round++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		refineRounds.Inc()
		tpl := mms.Template()
		enum := mutation.UniqueSingleBase(tpl)
		var candidates []mutation.Mutation
		if round == 0 {
			candidates = enum.Mutations()
		} else {
			centers := make([]mutation.Mutation, len(favorable))
			for i, m := range favorable {
				centers[i] = m.Mutation
			}
			candidates = mutation.UniqueNearby(enum, centers, opts.MutationNeighborhood)
		}
		favorable = favorableMutations(mms, candidates, opts.Parallelism)
		log.Debug.Printf("quiver: round %d: %d candidates, %d favorable", round, len(candidates), len(favorable))
		if len(favorable) == 0 {
			return true, nil
		}
		best := BestSubset(favorable, opts.MutationSeparation)
		if len(best) > 1 {
			if _, seen := history[templateHash(mutation.ApplyAll(best, tpl))]; seen {
				best = []mutation.Mutation{bestMutation(favorable)}
				log.Debug.Printf("quiver: round %d: batch revisits a template, applying %v only", round, best[0])
			}
		}
		history[templateHash(tpl)] = struct{}{}
		if err := mms.ApplyMutations(best, opts.Parallelism); err != nil {
			return false, err
		}
	}
	return false, nil
}

// RefineRepeats applies, in one round, the favorable insertions and
// deletions of whole repeat units in tandem repeats of repeatLength-base
// units with at least minRepeatElements copies.
func RefineRepeats(ctx context.Context, mms *MultiReadScorer, repeatLength, minRepeatElements int, opts RefineOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	mms.MinFavorableScoreDiff = opts.MinFavorableScoreDiff
	candidates := mutation.Repeat(mms.Template(), repeatLength, minRepeatElements).Mutations()
	favorable := favorableMutations(mms, candidates, opts.Parallelism)
	log.Debug.Printf("quiver: repeats: %d candidates, %d favorable", len(candidates), len(favorable))
	if len(favorable) == 0 {
		return nil
	}
	return mms.ApplyMutations(BestSubset(favorable, opts.MutationSeparation), opts.Parallelism)
}
