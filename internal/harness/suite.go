package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SuiteResult summarises a directory of scenarios.
type SuiteResult struct {
	TotalScenarios int               `json:"total_scenarios"`
	Passed         int               `json:"passed"`
	Failed         int               `json:"failed"`
	Failures       []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioFailure is one failed scenario.
type ScenarioFailure struct {
	Scenario     string `json:"scenario,omitempty"`
	ScenarioPath string `json:"scenario_path"`
	Error        string `json:"error"`
}

// FindScenarios lists the .yaml and .yml files directly under dir, sorted.
func FindScenarios(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scenario directory: %w", err)
	}

	paths := []string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// RunSuite loads and runs every scenario in paths.
//
// Each scenario is run twice; differing traces count as a failure, since
// a scenario whose trace depends on anything but its steps can't be
// checked against a golden file.
func RunSuite(ctx context.Context, paths []string, opts Options) (*SuiteResult, error) {
	result := &SuiteResult{}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result.TotalScenarios++

		fail := func(name, msg string) {
			result.Failed++
			result.Failures = append(result.Failures, ScenarioFailure{
				Scenario:     name,
				ScenarioPath: path,
				Error:        msg,
			})
		}

		scenario, err := LoadScenario(path)
		if err != nil {
			fail("", fmt.Sprintf("failed to load scenario: %v", err))
			continue
		}

		first, err := RunWithOptions(scenario, opts)
		if err != nil {
			fail(scenario.Name, fmt.Sprintf("scenario execution failed: %v", err))
			continue
		}
		if !first.Pass {
			fail(scenario.Name, fmt.Sprintf("scenario assertions failed: %v", first.Errors))
			continue
		}

		second, err := RunWithOptions(scenario, opts)
		if err != nil {
			fail(scenario.Name, fmt.Sprintf("scenario replay failed: %v", err))
			continue
		}
		if diff := DiffTraces(first.Trace, second.Trace); diff != "" {
			fail(scenario.Name, fmt.Sprintf("scenario is not deterministic (-first +second):\n%s", diff))
			continue
		}

		result.Passed++
	}

	return result, nil
}
