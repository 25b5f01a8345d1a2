package quiver

import (
	"fmt"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/consensus/dna"
	"github.com/grailbio/consensus/internal/invariant"
	"github.com/grailbio/consensus/mutation"
)

// Strand is the template strand a read aligns to.
type Strand int

const (
	// Forward reads align to the template as given.
	Forward Strand = iota
	// Reverse reads align to the reverse complement of the template.
	Reverse
)

func (s Strand) String() string {
	if s == Reverse {
		return "-"
	}
	return "+"
}

// MappedRead is a read placed on a window of the forward template. The
// window is in forward template coordinates even for Reverse reads.
type MappedRead struct {
	Name          string
	Features      *Features
	Strand        Strand
	TemplateStart int
	TemplateEnd   int
	PinStart      bool
	PinEnd        bool
	Chemistry     string
}

func (mr MappedRead) String() string {
	return fmt.Sprintf("%s %v [%d,%d)", mr.Name, mr.Strand, mr.TemplateStart, mr.TemplateEnd)
}

// DefaultMinFavorableScoreDiff is the aggregate score gain a mutation needs
// to count as favorable.
const DefaultMinFavorableScoreDiff = 0.04

type readState struct {
	read   MappedRead
	scorer *MutationScorer
	active bool
}

// MultiReadScorer scores template mutations against a set of mapped reads.
// Scoring methods may run concurrently with each other, but not with
// AddRead or ApplyMutations.
type MultiReadScorer struct {
	table              *ConfigTable
	fastScoreThreshold float64
	// MinFavorableScoreDiff is the threshold used by IsFavorable and
	// FastIsFavorable.
	MinFavorableScoreDiff float64
	// Batched selects four-row fills for reads added later.
	Batched bool
	// SumProduct selects sum-product instead of Viterbi scoring for reads
	// added later.
	SumProduct bool
	fwd, rev   string
	reads      []readState
}

// NewMultiReadScorer returns a scorer of tpl with no reads.
func NewMultiReadScorer(table *ConfigTable, tpl string) (*MultiReadScorer, error) {
	if err := dna.Validate(tpl); err != nil {
		return nil, errors.E(errors.Invalid, "quiver: template", err)
	}
	if table == nil || table.Len() == 0 {
		return nil, errors.E(errors.Invalid, "quiver: empty config table")
	}
	s := &MultiReadScorer{
		table:                 table,
		MinFavorableScoreDiff: DefaultMinFavorableScoreDiff,
		fwd:                   tpl,
		rev:                   dna.ReverseComplement(tpl),
	}
	for _, k := range table.Keys() {
		cfg, _ := table.At(k)
		if cfg.FastScoreThreshold < s.fastScoreThreshold {
			s.fastScoreThreshold = cfg.FastScoreThreshold
		}
	}
	return s, nil
}

// FastScoreThreshold returns the early-exit threshold of FastScore: the
// lowest threshold of any config, or 0.
func (s *MultiReadScorer) FastScoreThreshold() float64 { return s.fastScoreThreshold }

// Template returns the forward template.
func (s *MultiReadScorer) Template() string { return s.fwd }

// TemplateLength returns the template length.
func (s *MultiReadScorer) TemplateLength() int { return len(s.fwd) }

// TemplateFor returns the window [start, end) of the template, reverse
// complemented for the Reverse strand.
func (s *MultiReadScorer) TemplateFor(strand Strand, start, end int) string {
	if strand == Forward {
		return s.fwd[start:end]
	}
	n := len(s.fwd)
	return s.rev[n-end : n-start]
}

// NumReads returns the number of reads added, active or not.
func (s *MultiReadScorer) NumReads() int { return len(s.reads) }

// NumActiveReads returns the number of reads contributing to scores.
func (s *MultiReadScorer) NumActiveReads() int {
	n := 0
	for _, rs := range s.reads {
		if rs.active {
			n++
		}
	}
	return n
}

// Read returns the i'th read and whether it is active.
func (s *MultiReadScorer) Read(i int) (MappedRead, bool) {
	return s.reads[i].read, s.reads[i].active
}

func (s *MultiReadScorer) checkWindow(mr MappedRead) error {
	if mr.TemplateStart < 0 || mr.TemplateEnd > len(s.fwd) || mr.TemplateStart >= mr.TemplateEnd {
		return errors.E(errors.Invalid, fmt.Sprintf("quiver: read %s: window [%d,%d) outside template of length %d",
			mr.Name, mr.TemplateStart, mr.TemplateEnd, len(s.fwd)))
	}
	if mr.Features == nil {
		return errors.E(errors.Invalid, fmt.Sprintf("quiver: read %s has no features", mr.Name))
	}
	return nil
}

// newReadState builds the scorer for mr. Construction errors are returned;
// reads that fail to fill or exceed the allocation threshold come back
// inactive.
func (s *MultiReadScorer) newReadState(mr MappedRead, threshold float64, useConfigThreshold bool) (readState, error) {
	if err := s.checkWindow(mr); err != nil {
		return readState{}, err
	}
	cfg, err := s.table.At(mr.Chemistry)
	if err != nil {
		return readState{}, err
	}
	if useConfigThreshold {
		threshold = cfg.AddThreshold
	}
	ev, err := NewQvEvaluator(mr.Features, s.TemplateFor(mr.Strand, mr.TemplateStart, mr.TemplateEnd), cfg.Params, mr.PinStart, mr.PinEnd)
	if err != nil {
		return readState{}, err
	}
	combiner := Combiner(Viterbi{})
	if s.SumProduct {
		combiner = SumProduct{}
	}
	rec, err := NewRecursor(cfg.Moves, cfg.Banding, combiner)
	if err != nil {
		return readState{}, err
	}
	rec.Batched = s.Batched
	scorer, err := NewMutationScorer(ev, rec)
	rs := readState{read: mr, scorer: scorer, active: true}
	if err != nil {
		if _, ok := err.(*AlphaBetaMismatch); !ok {
			return readState{}, err
		}
		log.Debug.Printf("quiver: read %v inactive: %v", mr, err)
		inactiveReads.WithLabelValues("mismatch").Inc()
		rs.active = false
		return rs, nil
	}
	if threshold < 1 {
		I, J := ev.ReadLength(), ev.TemplateLength()
		maxSize := int(0.5 + threshold*float64((I+1)*(J+1)))
		if scorer.Alpha().AllocatedEntries() >= maxSize || scorer.Beta().AllocatedEntries() >= maxSize {
			log.Debug.Printf("quiver: read %v inactive: band too wide", mr)
			inactiveReads.WithLabelValues("allocation").Inc()
			rs.active = false
		}
	}
	return rs, nil
}

// AddRead adds mr using its chemistry's AddThreshold, and reports whether
// the read is active.
func (s *MultiReadScorer) AddRead(mr MappedRead) (bool, error) {
	return s.addRead(mr, 0, true)
}

// AddReadWithThreshold adds mr, deactivating it if either matrix allocates
// at least threshold of the full matrix. A threshold of 1 or more disables
// the check.
func (s *MultiReadScorer) AddReadWithThreshold(mr MappedRead, threshold float64) (bool, error) {
	return s.addRead(mr, threshold, false)
}

func (s *MultiReadScorer) addRead(mr MappedRead, threshold float64, useConfig bool) (bool, error) {
	rs, err := s.newReadState(mr, threshold, useConfig)
	if err != nil {
		return false, err
	}
	s.reads = append(s.reads, rs)
	s.checkInvariantsIfEnabled()
	return rs.active, nil
}

// eachRead calls fn for every index in [0, n), splitting the indexes into
// at most parallelism contiguous jobs.
// rangeParallelism converts a parallelism setting to the argument of
// parallel.Range, where zero selects its GOMAXPROCS default.
func rangeParallelism(parallelism int) int {
	return maxInt(parallelism, 0)
}

func eachRead(n, parallelism int, fn func(i int) error) error {
	jobs := minInt(maxInt(parallelism, 1), n)
	if jobs == 0 {
		return nil
	}
	return traverse.Each(jobs, func(jobIdx int) error {
		start, end := (jobIdx*n)/jobs, ((jobIdx+1)*n)/jobs
		for i := start; i < end; i++ {
			if err := fn(i); err != nil {
				return err
			}
		}
		return nil
	})
}

// AddReads adds reads, filling up to parallelism of them at a time. Reads are
// appended in order. On error no read is added.
func (s *MultiReadScorer) AddReads(reads []MappedRead, parallelism int) ([]bool, error) {
	states := make([]readState, len(reads))
	err := eachRead(len(reads), parallelism, func(i int) error {
		var err error
		states[i], err = s.newReadState(reads[i], 0, true)
		return err
	})
	if err != nil {
		return nil, err
	}
	active := make([]bool, len(reads))
	for i, rs := range states {
		active[i] = rs.active
	}
	s.reads = append(s.reads, states...)
	s.checkInvariantsIfEnabled()
	return active, nil
}

// ReadScoresMutation reports whether m falls in mr's window. An insertion
// must lie strictly after the window start; other mutations must overlap
// the window.
func ReadScoresMutation(mr MappedRead, m mutation.Mutation) bool {
	ts, te := mr.TemplateStart, mr.TemplateEnd
	if m.IsInsertion() {
		return ts < m.Start && m.End <= te
	}
	return ts < m.End && m.Start < te
}

// OrientedMutation translates m into the coordinates of mr's window on mr's
// strand, clipping multi-base edits to the window.
func OrientedMutation(mr MappedRead, m mutation.Mutation) mutation.Mutation {
	c := m
	if m.End-m.Start > 1 {
		c.Start = maxInt(m.Start, mr.TemplateStart)
		c.End = minInt(m.End, mr.TemplateEnd)
		if m.IsSubstitution() {
			c.Bases = m.Bases[c.Start-m.Start : c.End-m.Start]
		}
	}
	if mr.Strand == Forward {
		c.Start -= mr.TemplateStart
		c.End -= mr.TemplateStart
		return c
	}
	start, end := mr.TemplateEnd-c.End, mr.TemplateEnd-c.Start
	c.Start, c.End = start, end
	c.Bases = dna.ReverseComplement(c.Bases)
	return c
}

func (s *MultiReadScorer) delta(rs *readState, m mutation.Mutation) float64 {
	return rs.scorer.ScoreMutation(OrientedMutation(rs.read, m)) - rs.scorer.Score()
}

// Score returns the change in total score that applying m would cause.
func (s *MultiReadScorer) Score(m mutation.Mutation) float64 {
	sum := 0.0
	for i := range s.reads {
		rs := &s.reads[i]
		if rs.active && ReadScoresMutation(rs.read, m) {
			sum += s.delta(rs, m)
		}
	}
	return sum
}

// FastScore is Score, except that it stops as soon as the running sum drops
// below FastScoreThreshold.
func (s *MultiReadScorer) FastScore(m mutation.Mutation) float64 {
	sum := 0.0
	for i := range s.reads {
		rs := &s.reads[i]
		if rs.active && ReadScoresMutation(rs.read, m) {
			sum += s.delta(rs, m)
			if sum < s.fastScoreThreshold {
				return sum
			}
		}
	}
	return sum
}

// Scores returns the per-read score change of m, with unscored for reads
// that are inactive or do not cover m.
func (s *MultiReadScorer) Scores(m mutation.Mutation, unscored float64) []float64 {
	scores := make([]float64, len(s.reads))
	for i := range s.reads {
		rs := &s.reads[i]
		if rs.active && ReadScoresMutation(rs.read, m) {
			scores[i] = s.delta(rs, m)
		} else {
			scores[i] = unscored
		}
	}
	return scores
}

// IsFavorable reports whether m improves the total score by more than
// MinFavorableScoreDiff.
func (s *MultiReadScorer) IsFavorable(m mutation.Mutation) bool {
	return s.Score(m) > s.MinFavorableScoreDiff
}

// FastIsFavorable is IsFavorable using FastScore's early exit.
func (s *MultiReadScorer) FastIsFavorable(m mutation.Mutation) bool {
	sum := 0.0
	for i := range s.reads {
		rs := &s.reads[i]
		if rs.active && ReadScoresMutation(rs.read, m) {
			sum += s.delta(rs, m)
			if sum < s.fastScoreThreshold {
				return false
			}
		}
	}
	return sum > s.MinFavorableScoreDiff
}

// BaselineScore returns the total score of the active reads.
func (s *MultiReadScorer) BaselineScore() float64 {
	sum := 0.0
	for _, rs := range s.reads {
		if rs.active {
			sum += rs.scorer.Score()
		}
	}
	return sum
}

// BaselineScores returns the score of each active read.
func (s *MultiReadScorer) BaselineScores() []float64 {
	var scores []float64
	for _, rs := range s.reads {
		if rs.active {
			scores = append(scores, rs.scorer.Score())
		}
	}
	return scores
}

// NumFlipFlops returns, per read, the refill count of its last fill.
func (s *MultiReadScorer) NumFlipFlops() []int {
	n := make([]int, len(s.reads))
	for i, rs := range s.reads {
		n[i] = rs.scorer.NumFlipFlops()
	}
	return n
}

// AllocatedMatrixEntries returns, per read, the cells allocated by its
// alpha and beta matrices.
func (s *MultiReadScorer) AllocatedMatrixEntries() []int {
	n := make([]int, len(s.reads))
	for i, rs := range s.reads {
		n[i] = rs.scorer.Alpha().AllocatedEntries() + rs.scorer.Beta().AllocatedEntries()
	}
	return n
}

// UsedMatrixEntries returns, per read, the cells used by its alpha and beta
// matrices.
func (s *MultiReadScorer) UsedMatrixEntries() []int {
	n := make([]int, len(s.reads))
	for i, rs := range s.reads {
		n[i] = rs.scorer.Alpha().UsedEntries() + rs.scorer.Beta().UsedEntries()
	}
	return n
}

// ApplyMutations applies muts, which must not overlap, to the template,
// moves every read's window accordingly and refills the active reads with
// up to parallelism fills at a time. Reads whose fills disagree become
// inactive.
func (s *MultiReadScorer) ApplyMutations(muts []mutation.Mutation, parallelism int) error {
	mtp := mutation.TargetToQueryPositions(muts, s.fwd)
	s.fwd = mutation.ApplyAll(muts, s.fwd)
	s.rev = dna.ReverseComplement(s.fwd)
	for i := range s.reads {
		r := &s.reads[i].read
		r.TemplateStart, r.TemplateEnd = mtp[r.TemplateStart], mtp[r.TemplateEnd]
	}
	err := eachRead(len(s.reads), parallelism, func(i int) error {
		rs := &s.reads[i]
		if !rs.active {
			return nil
		}
		err := rs.scorer.SetTemplate(s.TemplateFor(rs.read.Strand, rs.read.TemplateStart, rs.read.TemplateEnd))
		if _, ok := err.(*AlphaBetaMismatch); ok {
			log.Debug.Printf("quiver: read %v inactive after template change: %v", rs.read, err)
			inactiveReads.WithLabelValues("mismatch").Inc()
			rs.active = false
			return nil
		}
		return err
	})
	appliedMutations.Add(float64(len(muts)))
	s.checkInvariantsIfEnabled()
	return err
}

func (s *MultiReadScorer) checkInvariantsIfEnabled() {
	if invariant.Enabled {
		s.CheckInvariants()
	}
}

// CheckInvariants panics if the reverse template is out of sync or a read's
// window or template is inconsistent.
func (s *MultiReadScorer) CheckInvariants() {
	if s.rev != dna.ReverseComplement(s.fwd) {
		log.Panicf("quiver: reverse template out of sync")
	}
	for _, rs := range s.reads {
		r := rs.read
		if r.TemplateStart < 0 || r.TemplateEnd > len(s.fwd) || r.TemplateStart > r.TemplateEnd {
			log.Panicf("quiver: read %v has window outside template of length %d", r, len(s.fwd))
		}
		if rs.active && rs.scorer.Template() != s.TemplateFor(r.Strand, r.TemplateStart, r.TemplateEnd) {
			log.Panicf("quiver: read %v scored against a stale template", r)
		}
	}
}

func (s *MultiReadScorer) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Template: %s\nScore: %.3f\nReads:\n", s.fwd, s.BaselineScore())
	for _, rs := range s.reads {
		fmt.Fprintf(&b, "\t%v active=%v\n", rs.read, rs.active)
	}
	return b.String()
}
