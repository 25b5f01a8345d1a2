package quiver

import (
	"strings"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/require"
)

func TestConfigTable(t *testing.T) {
	tbl := NewConfigTable()
	_, err := tbl.At("P6-C4")
	expect.True(t, errors.Is(errors.NotExist, err))

	p6 := TestingParams
	p6.ChemistryName = "P6-C4"
	require.NoError(t, tbl.Insert(NewModelConfig(p6, AllMoves, fullBand, -12.5)))
	expect.True(t, errors.Is(errors.Exists, tbl.Insert(NewModelConfig(p6, BasicMoves, fullBand, -12.5))))
	expect.True(t, errors.Is(errors.Invalid, tbl.Insert(NewModelConfig(ModelParams{ChemistryName: DefaultChemistry}, AllMoves, fullBand, 0))))
	expect.True(t, errors.Is(errors.Invalid, tbl.InsertAs("", NewModelConfig(p6, AllMoves, fullBand, 0))))

	cfg, err := tbl.At("P6-C4")
	require.NoError(t, err)
	expect.EQ(t, cfg.Params.ChemistryName, "P6-C4")
	expect.EQ(t, cfg.AddThreshold, 1.0)
	_, err = tbl.At("P5-C3")
	expect.True(t, errors.Is(errors.NotExist, err))

	require.NoError(t, tbl.InsertDefault(NewModelConfig(TestingParams, BasicMoves, fullBand, -20)))
	cfg, err = tbl.At("P5-C3")
	require.NoError(t, err)
	expect.EQ(t, cfg.Moves, BasicMoves)
	expect.EQ(t, tbl.Keys(), []string{"*", "P6-C4"})
	expect.EQ(t, tbl.Len(), 2)
}

const testTableYAML = `
configs:
  - name: "*"
    params:
      chemistry: unknown
      match: 0
      mismatch: -10
      mismatchS: -0.1
      branch: -5
      deletionN: -4
      nce: -8
      merge: [-2, -2, -2, -2]
    banding: {diagonalCross: 4, scoreDiff: 18}
    fastScoreThreshold: -12.5
  - params: {chemistry: P6-C4, mismatch: -12}
    moves: "incorporate|extra|delete"
    addThreshold: 0.5
`

func TestLoadConfigTable(t *testing.T) {
	tbl, err := LoadConfigTable(strings.NewReader(testTableYAML))
	require.NoError(t, err)
	expect.EQ(t, tbl.Keys(), []string{"*", "P6-C4"})

	def, err := tbl.At("anything")
	require.NoError(t, err)
	expect.EQ(t, def.Moves, AllMoves)
	expect.EQ(t, def.AddThreshold, 1.0)
	expect.EQ(t, def.FastScoreThreshold, -12.5)
	expect.EQ(t, def.Banding, BandingOptions{DiagonalCross: 4, ScoreDiff: 18})
	expect.EQ(t, def.Params.Merge, [4]float64{-2, -2, -2, -2})
	expect.EQ(t, def.Params.MismatchS, -0.1)

	p6, err := tbl.At("P6-C4")
	require.NoError(t, err)
	expect.EQ(t, p6.Moves, BasicMoves)
	expect.EQ(t, p6.AddThreshold, 0.5)
	expect.EQ(t, p6.Params.Mismatch, -12.0)

	_, err = LoadConfigTable(strings.NewReader("configs:\n  - params: {chemistry: X}\n    moves: teleport\n"))
	expect.True(t, errors.Is(errors.Invalid, err))
	_, err = LoadConfigTable(strings.NewReader("configs:\n  - params: {chemistry: X}\n  - params: {chemistry: X}\n"))
	expect.True(t, errors.Is(errors.Exists, err))
}

func TestParseMoves(t *testing.T) {
	for _, test := range []struct {
		in   string
		want Moves
	}{
		{"basic", BasicMoves},
		{"all", AllMoves},
		{"incorporate|delete", Incorporate | Delete},
		{"merge | extra", Merge | Extra},
	} {
		got, err := ParseMoves(test.in)
		require.NoError(t, err, test.in)
		expect.EQ(t, got, test.want, test.in)
	}
	_, err := ParseMoves("hop")
	expect.True(t, errors.Is(errors.Invalid, err))
	expect.EQ(t, AllMoves.String(), "incorporate|extra|delete|merge")
	expect.EQ(t, Moves(0).String(), "none")
}

func TestDefaultConfigTable(t *testing.T) {
	cfg, err := DefaultConfigTable().At("P6-C4")
	require.NoError(t, err)
	expect.EQ(t, cfg.Params, TestingParams)
	expect.EQ(t, cfg.FastScoreThreshold, -12.5)
}
