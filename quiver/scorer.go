package quiver

import (
	"sync"

	"github.com/grailbio/consensus/matrix"
	"github.com/grailbio/consensus/mutation"
)

const (
	// extendBufferColumns is the width of the pooled extension buffers; an
	// insertion or substitution of up to extendBufferColumns-1 bases is
	// scored without allocating.
	extendBufferColumns = 8
	// boundaryMargin: mutations starting within this many positions of the
	// template start, or ending within boundaryMargin-1 of its end, are not
	// evaluated.
	boundaryMargin = 3
)

// MutationScorer holds the forward and backward matrices of one read
// against one template and scores template mutations from them.
//
// ScoreMutation may be called concurrently; SetTemplate may not.
type MutationScorer struct {
	e         Evaluator
	r         *Recursor
	alpha     *matrix.Sparse
	beta      *matrix.Sparse
	flipflops int
	extPool   sync.Pool
}

// NewMutationScorer fills the matrices for e. If the fills disagree, the
// scorer is returned together with an *AlphaBetaMismatch error.
func NewMutationScorer(e Evaluator, r *Recursor) (*MutationScorer, error) {
	s := &MutationScorer{e: e, r: r}
	rows := e.ReadLength() + 1
	s.extPool.New = func() interface{} {
		return matrix.NewSparse(rows, extendBufferColumns)
	}
	err := s.fill()
	return s, err
}

func (s *MutationScorer) fill() error {
	I, J := s.e.ReadLength(), s.e.TemplateLength()
	s.alpha = matrix.NewSparse(I+1, J+1)
	s.beta = matrix.NewSparse(I+1, J+1)
	var err error
	s.flipflops, err = s.r.FillAlphaBeta(s.e, s.alpha, s.beta)
	return err
}

// Score returns the total score of the read against the template.
func (s *MutationScorer) Score() float64 { return s.beta.Get(0, 0) }

// Template returns the current template.
func (s *MutationScorer) Template() string { return s.e.Template() }

// SetTemplate replaces the template and refills both matrices.
func (s *MutationScorer) SetTemplate(tpl string) error {
	s.e = s.e.WithTemplate(tpl)
	return s.fill()
}

// Alpha returns the forward matrix.
func (s *MutationScorer) Alpha() *matrix.Sparse { return s.alpha }

// Beta returns the backward matrix.
func (s *MutationScorer) Beta() *matrix.Sparse { return s.beta }

// Evaluator returns the evaluator for the current template.
func (s *MutationScorer) Evaluator() Evaluator { return s.e }

// NumFlipFlops returns the refill count of the last fill.
func (s *MutationScorer) NumFlipFlops() int { return s.flipflops }

// Alignment returns the best alignment of the read to the template.
func (s *MutationScorer) Alignment() (*PairwiseAlignment, error) {
	return s.r.Alignment(s.e, s.alpha)
}

// ScoreMutation returns the total score the read would have against the
// template with m applied. Mutations too close to either end of the
// template are not evaluated and score as the current template does.
func (s *MutationScorer) ScoreMutation(m mutation.Mutation) float64 {
	J := s.e.TemplateLength()
	if m.Start < boundaryMargin || m.End > J-2 {
		return s.Score()
	}
	probe := s.e.WithTemplate(mutation.Apply(m, s.e.Template()))
	begin, n := m.Start, 1+len(m.Bases)
	if m.IsDeletion() {
		begin, n = m.Start-1, 2
	}
	var ext *matrix.Sparse
	if n <= extendBufferColumns {
		ext = s.extPool.Get().(*matrix.Sparse)
		defer s.extPool.Put(ext)
	} else {
		ext = matrix.NewSparse(s.alpha.Rows(), n)
	}
	s.r.ExtendAlpha(probe, s.alpha, begin, ext, n)
	return s.r.LinkAlphaBeta(probe, ext, n, s.beta, 1+m.End, 1+m.End+m.LengthDiff())
}
