package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cora/internal/lexicon"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 0.7, cfg.Ritual.Verify.AcceptanceThreshold)
	assert.Equal(t, 30, cfg.Ritual.Verify.MinDwellSeconds)
	assert.Equal(t, 100, cfg.Ritual.Verify.LedgerCap)
	assert.Equal(t, 100, cfg.Ritual.RegistryCap)
	assert.Equal(t, 50, cfg.Ritual.BitacoraCap)
	assert.Equal(t, 2, cfg.Ritual.Matcher.MinOverlap)
	assert.Equal(t, 0.8, cfg.Ritual.Gate.Threshold)
	assert.Equal(t, 100, cfg.Constancy.HistoryCap)
	assert.Equal(t, "comunidad", cfg.SharedScope)
}

func TestParse_OverlaysDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
ritual:
  verify:
    min_dwell_seconds: 10
  matcher:
    min_overlap: 3
shared_scope: barrio
`))
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Ritual.Verify.MinDwellSeconds)
	assert.Equal(t, 0.7, cfg.Ritual.Verify.AcceptanceThreshold, "untouched keys keep defaults")
	assert.Equal(t, 0.3, cfg.Ritual.Verify.Score.Weights.ServiceVerb)
	assert.Equal(t, 3, cfg.Ritual.Matcher.MinOverlap)
	assert.Equal(t, "barrio", cfg.SharedScope)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown key", "ritual:\n  verfy: {}\n", "failed to parse YAML"},
		{"threshold out of range", "ritual:\n  gate:\n    threshold: 1.5\n", "ritual.gate.threshold"},
		{"inverted length band", "ritual:\n  verify:\n    score:\n      min_length: 300\n", "min_length"},
		{"zero overlap", "ritual:\n  matcher:\n    min_overlap: 0\n", "min_overlap"},
		{"empty scope", "shared_scope: \"\"\n", "shared_scope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_ResolvesLexiconPath(t *testing.T) {
	dir := t.TempDir()
	lex := "service_verbs: [servir]\nfirst_person: [yo]\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lexicon.yaml"), []byte(lex), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cora.yaml"), []byte("lexicon: lexicon.yaml\n"), 0o644))

	cfg, err := Load(filepath.Join(dir, "cora.yaml"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "lexicon.yaml"), cfg.Lexicon)

	l, err := cfg.LoadLexicon()
	require.NoError(t, err)
	assert.Equal(t, []string{"servir"}, l.ServiceVerbs)
}

func TestLoadLexicon_Default(t *testing.T) {
	l, err := Default().LoadLexicon()
	require.NoError(t, err)
	assert.Equal(t, lexicon.Default(), l)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
