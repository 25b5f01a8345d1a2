// Package dna holds the nucleotide alphabet helpers shared by the consensus
// packages: base validation, complement and reverse complement.
package dna

import (
	"fmt"

	"github.com/grailbio/base/errors"
)

// Bases lists the four canonical bases in index order.
const Bases = "ACGT"

var compTable = [256]byte{}

var baseIndex = [256]int8{}

func init() {
	for i := range compTable {
		compTable[i] = 'N'
		baseIndex[i] = -1
	}
	for _, p := range [][2]byte{{'A', 'T'}, {'C', 'G'}, {'G', 'C'}, {'T', 'A'}} {
		compTable[p[0]] = p[1]
		compTable[p[0]+'a'-'A'] = p[1]
	}
	compTable['-'] = '-'
	for i := 0; i < len(Bases); i++ {
		baseIndex[Bases[i]] = int8(i)
		baseIndex[Bases[i]+'a'-'A'] = int8(i)
	}
}

// Complement maps A<->T and C<->G (either case) to upper case. '-' maps to
// itself and every other byte maps to 'N'.
func Complement(b byte) byte { return compTable[b] }

// Index returns the position of b in Bases, or -1 if b is not a base.
func Index(b byte) int { return int(baseIndex[b]) }

// IsBase reports whether b is one of ACGT (upper case).
func IsBase(b byte) bool { return b == 'A' || b == 'C' || b == 'G' || b == 'T' }

// ReverseComplementInplace reverse-complements seq in place.
func ReverseComplementInplace(seq []byte) {
	n := len(seq)
	half := n >> 1
	for idx, inv := 0, n-1; idx != half; idx, inv = idx+1, inv-1 {
		seq[idx], seq[inv] = compTable[seq[inv]], compTable[seq[idx]]
	}
	if n&1 == 1 {
		seq[half] = compTable[seq[half]]
	}
}

// ReverseComplement returns the reverse complement of seq.
func ReverseComplement(seq string) string {
	b := []byte(seq)
	ReverseComplementInplace(b)
	return string(b)
}

// Validate returns an errors.Invalid error if seq contains a byte outside
// ACGT.
func Validate(seq string) error {
	for i := 0; i < len(seq); i++ {
		if !IsBase(seq[i]) {
			return errors.E(errors.Invalid, fmt.Sprintf("dna: invalid base %q at position %d", seq[i], i))
		}
	}
	return nil
}
