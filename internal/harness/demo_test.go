package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioDir = "../../testdata/scenarios"

// TestScenarioFiles runs the scenarios shipped with the repository.
func TestScenarioFiles(t *testing.T) {
	tests := []struct {
		name  string
		file  string
		phase string
	}{
		{"consecration_and_seal", "consecration_and_seal.yaml", "sealed"},
		{"rejection_and_retry", "rejection_and_retry.yaml", "needing"},
		{"need_before_offer", "need_before_offer.yaml", "matched"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scenario, err := LoadScenario(filepath.Join(scenarioDir, tt.file))
			require.NoError(t, err)
			assert.Equal(t, tt.name, scenario.Name)

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Equal(t, tt.phase, result.State["phase"])
		})
	}
}

func TestScenarioFiles_ConsecrationDetails(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join(scenarioDir, "consecration_and_seal.yaml"))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	var need TraceEvent
	for _, e := range result.Trace {
		if e.Type == "completion" && e.Step == StepNeed {
			need = e
		}
	}
	assert.Equal(t, "Matched", need.OutputCase)
	assert.Equal(t, 0.8125, need.Result["consecration_score"])
	assert.Regexp(t, `^HC-`, need.Result["consecration_huella"])
	assert.Regexp(t, `^CON-`, need.Result["connection_code"])
	assert.Contains(t, need.Result["message"], "hace 5 días")

	assert.Regexp(t, `^SR-`, result.State["seal_huella"])
}

func TestRunSuite(t *testing.T) {
	paths, err := FindScenarios(scenarioDir)
	require.NoError(t, err)
	assert.Len(t, paths, 3)

	result, err := RunSuite(context.Background(), paths, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 3, result.TotalScenarios)
	assert.Equal(t, 3, result.Passed)
	assert.Empty(t, result.Failures)
}

func TestRunSuite_ReportsFailures(t *testing.T) {
	dir := t.TempDir()
	good := writeScenario(t, dir, "a_good.yaml", minimalScenario)
	broken := writeScenario(t, dir, "b_broken.yaml", "name: [")
	failing := writeScenario(t, dir, "c_failing.yaml", `
name: failing
description: "expects a match that cannot happen"
steps:
  - invoke: offer
    text: hola
    dwell: 45
    expect: { case: Verified }
assertions:
  - type: trace_count
    step: offer
    count: 1
`)
	writeScenario(t, dir, "notes.txt", "ignored")

	paths, err := FindScenarios(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{good, broken, failing}, paths)

	result, err := RunSuite(context.Background(), paths, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 3, result.TotalScenarios)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 2, result.Failed)
	require.Len(t, result.Failures, 2)
	assert.Equal(t, broken, result.Failures[0].ScenarioPath)
	assert.Contains(t, result.Failures[0].Error, "failed to load scenario")
	assert.Equal(t, "failing", result.Failures[1].Scenario)
	assert.Contains(t, result.Failures[1].Error, "scenario assertions failed")
}

func TestRunSuite_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RunSuite(ctx, []string{"x.yaml"}, DefaultOptions())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFindScenarios_MissingDir(t *testing.T) {
	_, err := FindScenarios(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
