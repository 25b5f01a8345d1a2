package quiver

import (
	"fmt"
	"io"
	"sort"

	"github.com/grailbio/base/errors"
	"gopkg.in/yaml.v3"
)

// DefaultChemistry is the table key consulted when a read's chemistry has
// no entry of its own.
const DefaultChemistry = "*"

// ModelParams are the coefficients of the QV scoring model. Every move cost
// is affine in the corresponding quality value: X + XS*qv.
type ModelParams struct {
	ChemistryName    string     `yaml:"chemistry"`
	ModelName        string     `yaml:"model"`
	Match            float64    `yaml:"match"`
	Mismatch         float64    `yaml:"mismatch"`
	MismatchS        float64    `yaml:"mismatchS"`
	Branch           float64    `yaml:"branch"`
	BranchS          float64    `yaml:"branchS"`
	DeletionN        float64    `yaml:"deletionN"`
	DeletionWithTag  float64    `yaml:"deletionWithTag"`
	DeletionWithTagS float64    `yaml:"deletionWithTagS"`
	Nce              float64    `yaml:"nce"`
	NceS             float64    `yaml:"nceS"`
	Merge            [4]float64 `yaml:"merge"`
	MergeS           [4]float64 `yaml:"mergeS"`
	Burst            float64    `yaml:"burst"`
	BurstS           float64    `yaml:"burstS"`
}

// WithMerge returns p with the same merge rate and slope for every base.
func (p ModelParams) WithMerge(merge, mergeS float64) ModelParams {
	for b := range p.Merge {
		p.Merge[b], p.MergeS[b] = merge, mergeS
	}
	return p
}

// ModelConfig is everything needed to score reads of one chemistry.
type ModelConfig struct {
	Params  ModelParams    `yaml:"params"`
	Moves   Moves          `yaml:"moves"`
	Banding BandingOptions `yaml:"banding"`
	// FastScoreThreshold is the running score sum below which FastScore
	// stops early.
	FastScoreThreshold float64 `yaml:"fastScoreThreshold"`
	// AddThreshold is the largest fraction of the full (I+1)x(J+1) matrix a
	// read's alpha or beta may allocate before the read is dropped. Values of
	// 1 or more disable the check.
	AddThreshold float64 `yaml:"addThreshold"`
}

// NewModelConfig returns a config with AddThreshold 1.
func NewModelConfig(params ModelParams, moves Moves, banding BandingOptions, fastScoreThreshold float64) ModelConfig {
	return ModelConfig{
		Params:             params,
		Moves:              moves,
		Banding:            banding,
		FastScoreThreshold: fastScoreThreshold,
		AddThreshold:       1,
	}
}

// ConfigTable maps chemistry names to model configs, with an optional
// fallback entry under DefaultChemistry.
type ConfigTable struct {
	configs map[string]ModelConfig
}

// NewConfigTable returns an empty table.
func NewConfigTable() *ConfigTable {
	return &ConfigTable{configs: map[string]ModelConfig{}}
}

// Insert adds cfg under its own chemistry name.
func (t *ConfigTable) Insert(cfg ModelConfig) error {
	if cfg.Params.ChemistryName == DefaultChemistry {
		return errors.E(errors.Invalid, "quiver: use InsertDefault for the fallback config")
	}
	return t.InsertAs(cfg.Params.ChemistryName, cfg)
}

// InsertAs adds cfg under name, which need not match its chemistry; this
// lets a chemistry without a trained model borrow a similar one.
func (t *ConfigTable) InsertAs(name string, cfg ModelConfig) error {
	if name == "" {
		return errors.E(errors.Invalid, "quiver: empty chemistry name")
	}
	if _, ok := t.configs[name]; ok {
		return errors.E(errors.Exists, fmt.Sprintf("quiver: chemistry %q already configured", name))
	}
	t.configs[name] = cfg
	return nil
}

// InsertDefault sets the fallback config.
func (t *ConfigTable) InsertDefault(cfg ModelConfig) error {
	return t.InsertAs(DefaultChemistry, cfg)
}

// At returns the config for chemistry name, or the fallback config.
func (t *ConfigTable) At(name string) (ModelConfig, error) {
	if cfg, ok := t.configs[name]; ok {
		return cfg, nil
	}
	if cfg, ok := t.configs[DefaultChemistry]; ok {
		return cfg, nil
	}
	return ModelConfig{}, errors.E(errors.NotExist, fmt.Sprintf("quiver: no config for chemistry %q and no default", name))
}

// Keys returns the configured names in sorted order.
func (t *ConfigTable) Keys() []string {
	keys := make([]string, 0, len(t.configs))
	for k := range t.configs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of entries.
func (t *ConfigTable) Len() int { return len(t.configs) }

type configFile struct {
	Configs []struct {
		// Name overrides Params.ChemistryName as the table key.
		Name        string      `yaml:"name"`
		ModelConfig `yaml:",inline"`
	} `yaml:"configs"`
}

// LoadConfigTable reads a YAML config table of the form
//
//	configs:
//	  - name: "*"
//	    params: {chemistry: unknown, match: 0, mismatch: -10, ...}
//	    moves: all
//	    banding: {diagonalCross: 4, scoreDiff: 18}
//	    fastScoreThreshold: -12.5
//
// An entry without addThreshold gets 1. An entry named "*" becomes the
// fallback.
func LoadConfigTable(r io.Reader) (*ConfigTable, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.E(err, "quiver: reading config table")
	}
	var f configFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.E(errors.Invalid, "quiver: parsing config table", err)
	}
	t := NewConfigTable()
	for _, c := range f.Configs {
		cfg := c.ModelConfig
		if cfg.AddThreshold == 0 {
			cfg.AddThreshold = 1
		}
		if cfg.Moves == 0 {
			cfg.Moves = AllMoves
		}
		name := c.Name
		if name == "" {
			name = cfg.Params.ChemistryName
		}
		if err := t.InsertAs(name, cfg); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// TestingParams are the QV model coefficients used by the package tests and
// by the built-in default table.
var TestingParams = ModelParams{
	ChemistryName:    "unknown",
	ModelName:        "AllQVsModel",
	Match:            0,
	Mismatch:         -10,
	MismatchS:        -0.1,
	Branch:           -5,
	BranchS:          -0.1,
	DeletionN:        -4,
	DeletionWithTag:  -6,
	DeletionWithTagS: -0.1,
	Nce:              -8,
	NceS:             -0.1,
	Burst:            -6,
	BurstS:           -0.1,
}.WithMerge(-2, 0)

// DefaultConfigTable returns a table whose only entry is a fallback config
// built from TestingParams.
func DefaultConfigTable() *ConfigTable {
	t := NewConfigTable()
	cfg := NewModelConfig(TestingParams, AllMoves, BandingOptions{DiagonalCross: 4, ScoreDiff: 18}, -12.5)
	if err := t.InsertDefault(cfg); err != nil {
		panic(err)
	}
	return t
}
