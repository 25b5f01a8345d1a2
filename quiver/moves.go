package quiver

import (
	"fmt"
	"strings"

	"github.com/grailbio/base/errors"
	"gopkg.in/yaml.v3"
)

// Moves is a set of alignment moves a recursor may use.
type Moves uint8

const (
	// Incorporate consumes one read base and one template base.
	Incorporate Moves = 1 << iota
	// Extra consumes one read base only.
	Extra
	// Delete consumes one template base only.
	Delete
	// Merge consumes two identical template bases with one read base.
	Merge
	// Burst is reserved for burst-insertion models and is not supported by
	// Recursor.
	Burst

	// BasicMoves is the minimal move set.
	BasicMoves = Incorporate | Extra | Delete
	// AllMoves adds Merge to BasicMoves.
	AllMoves = BasicMoves | Merge
)

var moveNames = []struct {
	move Moves
	name string
}{
	{Incorporate, "incorporate"},
	{Extra, "extra"},
	{Delete, "delete"},
	{Merge, "merge"},
	{Burst, "burst"},
}

// Has reports whether every move in o is in m.
func (m Moves) Has(o Moves) bool { return m&o == o }

func (m Moves) String() string {
	var names []string
	for _, n := range moveNames {
		if m.Has(n.move) {
			names = append(names, n.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// ParseMoves parses a move set name: "basic", "all", or a '|' separated list
// of move names.
func ParseMoves(s string) (Moves, error) {
	switch s {
	case "basic":
		return BasicMoves, nil
	case "all":
		return AllMoves, nil
	}
	var m Moves
	for _, part := range strings.Split(s, "|") {
		part = strings.TrimSpace(part)
		found := false
		for _, n := range moveNames {
			if n.name == part {
				m |= n.move
				found = true
			}
		}
		if !found {
			return 0, errors.E(errors.Invalid, fmt.Sprintf("quiver: unknown move %q", part))
		}
	}
	return m, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *Moves) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseMoves(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// BandingOptions controls how wide a band the adaptive fills compute.
type BandingOptions struct {
	// DiagonalCross is how far, in rows, the band may trail the diagonal
	// of the matrix before it is widened to reach it. Zero or less disables
	// the bound.
	DiagonalCross int `yaml:"diagonalCross"`
	// ScoreDiff is the score drop, below a column's running maximum, at which
	// a column stops being filled.
	ScoreDiff float64 `yaml:"scoreDiff"`
}
