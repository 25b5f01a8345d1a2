package dna

import (
	"math/rand"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/testutil/expect"
)

func TestReverseComplement(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"A", "T"},
		{"ACGT", "ACGT"},
		{"GATTACA", "TGTAATC"},
		{"acgtN", "NACGT"},
		{"AC-GT", "AC-GT"},
	}
	for _, test := range tests {
		expect.EQ(t, ReverseComplement(test.in), test.want, "input %q", test.in)
	}
}

func TestReverseComplementInvolution(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for n := 0; n < 50; n++ {
		b := make([]byte, n)
		for i := range b {
			b[i] = Bases[r.Intn(4)]
		}
		s := string(b)
		expect.EQ(t, ReverseComplement(ReverseComplement(s)), s)
	}
}

func TestIndexAndValidate(t *testing.T) {
	expect.EQ(t, Index('A'), 0)
	expect.EQ(t, Index('t'), 3)
	expect.EQ(t, Index('N'), -1)
	expect.NoError(t, Validate("GATTACA"))
	err := Validate("GATXACA")
	expect.True(t, errors.Is(errors.Invalid, err))
	expect.EQ(t, Complement('g'), byte('C'))
}
