package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "lineage-scanner/internal/errors"
	"lineage-scanner/internal/lineage"
	"lineage-scanner/internal/models"
)

func TestLoad_CreatesTemplateWhenMissing(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "created template")
	assert.FileExists(t, filepath.Join(dir, "lineage.toml"))

	cfg, err := Load(dir)
	require.NoError(t, err)

	spec, err := cfg.ChainSpec()
	require.NoError(t, err)
	assert.Equal(t, 3, spec.Depth())
	assert.Equal(t, lineage.ConstraintBeyond, spec.Link(3).Constraint)
	assert.Equal(t, lineage.AnyKind, spec.Link(1).Kind)

	opts := cfg.EngineOptions()
	assert.Equal(t, 1, opts.ThresholdRank)
	assert.Equal(t, []int{3}, opts.MitigationRanks)
	assert.Equal(t, []lineage.RankPair{{From: 2, To: 3}}, opts.MitigationPairs)
	assert.Equal(t, 3, opts.SelectionRank)
	assert.Equal(t, lineage.SelectExtreme, opts.SelectionMode)
	assert.Equal(t, filepath.Join(dir, "lineage.db"), cfg.Store.Path)
	assert.Equal(t, 2, cfg.Swing.Left)
}

func TestLoadFile_RejectsMalformedChain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[[chain.links]]
rank = 1

[[chain.links]]
rank = 2
relation = "sideways"
`), 0644))

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrMalformedInput))
}

func TestLoadFile_CaseInsensitiveEnumsAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[engine]
workers = 2

[[chain.links]]
rank = 1
kind = "Valley"

[[chain.links]]
rank = 2
relation = "OPPOSITE"
constraint = "Behind"

[selection]
rank = 2
mode = "Non_Extreme"
`), 0644))
	t.Setenv("LINEAGE_WORKERS", "7")
	t.Setenv("LINEAGE_STORE_PATH", "/tmp/other.db")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Engine.Workers)
	assert.Equal(t, "/tmp/other.db", cfg.Store.Path)

	spec, err := cfg.ChainSpec()
	require.NoError(t, err)
	assert.Equal(t, models.KindValley, spec.Link(1).Kind)
	assert.Equal(t, lineage.ConstraintBehind, spec.Link(2).Constraint)
	assert.Equal(t, lineage.SelectNonExtreme, cfg.EngineOptions().SelectionMode)
}

func TestValidate_OptionRanks(t *testing.T) {
	cfg := &Config{
		Chain: ChainConfig{Links: []LinkConfig{
			{Rank: 1},
			{Rank: 2, Relation: "opposite"},
		}},
		Mitigation: MitigationConfig{Pairs: []PairConfig{{From: 2, To: 2}}},
		Swing:      SwingConfig{Left: 2, Right: 2},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrMalformedInput))

	cfg.Mitigation.Pairs = nil
	assert.NoError(t, cfg.Validate())

	cfg.Swing.Left = 0
	assert.True(t, apperrors.Is(cfg.Validate(), apperrors.ErrConfigInvalid))
}

func TestWriteTemplateRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	_, err := WriteTemplate(dir, false)
	require.NoError(t, err)

	_, err = WriteTemplate(dir, false)
	assert.Error(t, err)

	_, err = WriteTemplate(dir, true)
	assert.NoError(t, err)
}
