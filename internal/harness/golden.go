package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// DefaultGoldenDir is where RunWithGolden keeps its fixtures.
const DefaultGoldenDir = "testdata/golden"

// TraceSnapshot captures the complete trace and final state of a scenario.
type TraceSnapshot struct {
	ScenarioName string                 `json:"scenario_name"`
	Trace        []TraceEvent           `json:"trace"`
	State        map[string]interface{} `json:"state"`
}

// Snapshot serialises a result for golden comparison. Map keys are sorted
// by encoding/json, so equal results always produce equal bytes.
func Snapshot(name string, result *Result) ([]byte, error) {
	data, err := json.MarshalIndent(TraceSnapshot{
		ScenarioName: name,
		Trace:        result.Trace,
		State:        result.State,
	}, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden executes a scenario and compares the snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()
	return RunWithGoldenDir(t, scenario, DefaultGoldenDir)
}

// RunWithGoldenDir is RunWithGolden with an explicit fixture directory.
func RunWithGoldenDir(t *testing.T, scenario *Scenario, dir string) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	return AssertGolden(t, dir, scenario.Name, result)
}

// AssertGolden compares an existing result against the golden file name in dir.
func AssertGolden(t *testing.T, dir, name string, result *Result) error {
	t.Helper()

	data, err := Snapshot(name, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(dir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)

	return nil
}
