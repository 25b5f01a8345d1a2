package poa

import (
	"fmt"

	"github.com/grailbio/base/errors"
)

// Mode selects how a sequence is aligned to the graph.
type Mode int

const (
	// Global aligns the whole sequence to a whole path from Enter to Exit.
	Global Mode = iota
	// SemiGlobal aligns the whole sequence to any subpath of the graph.
	SemiGlobal
	// Local aligns any substring of the sequence to any subpath.
	Local
)

func (m Mode) String() string {
	switch m {
	case Global:
		return "global"
	case SemiGlobal:
		return "semiglobal"
	case Local:
		return "local"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode parses the String form of a Mode.
func ParseMode(s string) (Mode, error) {
	for _, m := range []Mode{Global, SemiGlobal, Local} {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, errors.E(errors.Invalid, fmt.Sprintf("poa: unknown alignment mode %q", s))
}

// Params are the scores of the sequence-to-graph alignment moves.
type Params struct {
	Match    float64
	Mismatch float64
	// Insert scores a sequence base with no graph vertex.
	Insert float64
	// Delete scores a graph vertex skipped by the sequence.
	Delete float64
	// Branch is carried with the parameter set. Extra read bases are always
	// scored with Insert, including homopolymer extensions.
	Branch float64
}

// DefaultParams are the default alignment scores.
var DefaultParams = Params{
	Match:    3,
	Mismatch: -5,
	Insert:   -4,
	Delete:   -4,
	Branch:   -2,
}

// Config controls how sequences are added and how the consensus is chosen.
type Config struct {
	Params Params
	Mode   Mode
	// UseRangeFinder restricts each alignment column to read rows near
	// k-mer anchors between the read and the current consensus.
	UseRangeFinder bool
}

// DefaultConfig is global alignment with DefaultParams.
var DefaultConfig = Config{Params: DefaultParams, Mode: Global}
