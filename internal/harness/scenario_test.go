package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: minimal
description: "One offer"
steps:
  - invoke: offer
    text: puedo enseñar guitarra a mi vecino
    dwell: 45
    expect: { case: Verified }
assertions:
  - type: trace_count
    step: offer
    count: 1
`

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestParseScenario_Minimal(t *testing.T) {
	s, err := ParseScenario([]byte(minimalScenario))
	require.NoError(t, err)

	assert.Equal(t, "minimal", s.Name)
	require.Len(t, s.Steps, 1)
	assert.Equal(t, StepOffer, s.Steps[0].Invoke)
	assert.Equal(t, 45, s.Steps[0].Dwell)
	require.NotNil(t, s.Steps[0].Expect)
	assert.Equal(t, "Verified", s.Steps[0].Expect.Case)
	require.Len(t, s.Assertions, 1)
	assert.Equal(t, AssertTraceCount, s.Assertions[0].Type)
}

func TestParseScenario_RejectsUnknownFields(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: typo
description: "misspelt key"
steps:
  - invoke: start
assertion:
  - type: trace_count
    step: start
    count: 1
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Validation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing name",
			yaml:    "description: d\nsteps: [{invoke: start}]\nassertions: [{type: trace_count, step: start, count: 1}]",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			yaml:    "name: n\nsteps: [{invoke: start}]\nassertions: [{type: trace_count, step: start, count: 1}]",
			wantErr: "description is required",
		},
		{
			name:    "no steps",
			yaml:    "name: n\ndescription: d\nassertions: [{type: trace_count, step: start, count: 1}]",
			wantErr: "steps list is required",
		},
		{
			name:    "no assertions",
			yaml:    "name: n\ndescription: d\nsteps: [{invoke: start}]",
			wantErr: "assertions list is required",
		},
		{
			name:    "empty invoke",
			yaml:    "name: n\ndescription: d\nsteps: [{text: hola}]\nassertions: [{type: trace_count, step: start, count: 1}]",
			wantErr: "steps[0]: invoke is required",
		},
		{
			name:    "unknown step",
			yaml:    "name: n\ndescription: d\nsteps: [{invoke: dance}]\nassertions: [{type: trace_count, step: start, count: 1}]",
			wantErr: `unknown step "dance"`,
		},
		{
			name:    "negative dwell",
			yaml:    "name: n\ndescription: d\nsteps: [{invoke: offer, text: hola, dwell: -1}]\nassertions: [{type: trace_count, step: offer, count: 1}]",
			wantErr: "dwell must be non-negative",
		},
		{
			name:    "signal without text",
			yaml:    "name: n\ndescription: d\nsteps: [{invoke: signal}]\nassertions: [{type: trace_count, step: signal, count: 1}]",
			wantErr: "text is required for signal",
		},
		{
			name:    "advance without duration",
			yaml:    "name: n\ndescription: d\nsteps: [{invoke: advance}]\nassertions: [{type: trace_count, step: advance, count: 1}]",
			wantErr: "duration is required for advance",
		},
		{
			name:    "advance with bad duration",
			yaml:    "name: n\ndescription: d\nsteps: [{invoke: advance, duration: soon}]\nassertions: [{type: trace_count, step: advance, count: 1}]",
			wantErr: "invalid duration",
		},
		{
			name:    "expect without case",
			yaml:    "name: n\ndescription: d\nsteps: [{invoke: start, expect: {phase: offering}}]\nassertions: [{type: trace_count, step: start, count: 1}]",
			wantErr: "steps[0].expect: case is required",
		},
		{
			name:    "unknown assertion type",
			yaml:    "name: n\ndescription: d\nsteps: [{invoke: start}]\nassertions: [{type: vibes}]",
			wantErr: `unknown assertion type "vibes"`,
		},
		{
			name:    "trace_contains without step",
			yaml:    "name: n\ndescription: d\nsteps: [{invoke: start}]\nassertions: [{type: trace_contains}]",
			wantErr: "step is required for trace_contains",
		},
		{
			name:    "trace_order without steps",
			yaml:    "name: n\ndescription: d\nsteps: [{invoke: start}]\nassertions: [{type: trace_order}]",
			wantErr: "steps list is required for trace_order",
		},
		{
			name:    "final_state without expect",
			yaml:    "name: n\ndescription: d\nsteps: [{invoke: start}]\nassertions: [{type: final_state}]",
			wantErr: "expect is required for final_state",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_FileNotFound(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_ResolvesLexiconRelativeToFile(t *testing.T) {
	dir := t.TempDir()
	lexPath := filepath.Join(dir, "lex.yaml")
	require.NoError(t, os.WriteFile(lexPath, []byte("service_verbs: [servir]\nfirst_person: [yo]\n"), 0644))

	path := writeScenario(t, dir, "s.yaml", minimalScenario+"lexicon: lex.yaml\n")
	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, lexPath, s.Lexicon)
}

func TestLoadScenario_MissingLexicon(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "s.yaml", minimalScenario+"lexicon: nowhere.yaml\n")

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lexicon file not found")
}
