package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario defines a ritual scenario.
// A scenario walks one visitor through offers, needs, signals and the
// passage of time, then asserts on the resulting trace and final state.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Lexicon optionally points at a YAML or CUE lexicon.
	// Relative paths resolve against the scenario file. Empty means the
	// built-in Spanish lexicon.
	Lexicon string `yaml:"lexicon,omitempty"`

	// Origin is where the visitor arrived from. Defaults to "directo".
	Origin string `yaml:"origin,omitempty"`

	// Steps are executed in order against a fresh visitor.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	// Supported types: trace_contains, trace_order, trace_count, final_state
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one visitor action.
type Step struct {
	// Invoke is the step kind: start, offer, need, submit, signal or advance.
	Invoke string `yaml:"invoke"`

	// Text is the offer, need or signal text.
	Text string `yaml:"text,omitempty"`

	// Dwell is the time spent writing, in seconds.
	Dwell int `yaml:"dwell,omitempty"`

	// Duration is how far advance moves the clock (Go duration syntax).
	Duration string `yaml:"duration,omitempty"`

	// Expect optionally checks the outcome of this step.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a step.
type ExpectClause struct {
	// Case is the expected outcome case (e.g., "Verified", "Matched").
	Case string `yaml:"case"`

	// Phase is the expected phase after the step. Empty skips the check.
	Phase string `yaml:"phase,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": Check a step appears in trace with args
	// - "trace_order": Check steps appear in order
	// - "trace_count": Check a step produced an outcome exactly N times
	// - "final_state": Check fields of the visitor state
	Type string `yaml:"type"`

	// Step is the step kind (used by trace_contains, trace_count).
	Step string `yaml:"step,omitempty"`

	// Case filters completions by outcome (used by trace_count).
	Case string `yaml:"case,omitempty"`

	// Args are the expected step arguments (used by trace_contains).
	// Subset match - only specified fields are validated.
	Args map[string]interface{} `yaml:"args,omitempty"`

	// Expect contains expected state fields (used by final_state).
	// Subset match - only specified fields are validated.
	Expect map[string]interface{} `yaml:"expect,omitempty"`

	// Count is the expected number of occurrences (used by trace_count).
	Count int `yaml:"count,omitempty"`

	// Steps is the expected step order (used by trace_order).
	Steps []string `yaml:"steps,omitempty"`
}

// Step kinds.
const (
	StepStart   = "start"
	StepOffer   = "offer"
	StepNeed    = "need"
	StepSubmit  = "submit"
	StepSignal  = "signal"
	StepAdvance = "advance"
)

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// A relative lexicon path is resolved against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the lexicon path relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Lexicon != "" && !filepath.IsAbs(scenario.Lexicon) && basePath != "" {
		scenario.Lexicon = filepath.Join(basePath, scenario.Lexicon)
	}
	if scenario.Lexicon != "" {
		if _, err := os.Stat(scenario.Lexicon); os.IsNotExist(err) {
			return nil, fmt.Errorf("invalid scenario: lexicon file not found: %s", scenario.Lexicon)
		}
	}

	return scenario, nil
}

// ParseScenario parses scenario YAML with strict field validation.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateStep validates a single step based on its kind.
func validateStep(index int, st *Step) error {
	switch st.Invoke {
	case "":
		return fmt.Errorf("steps[%d]: invoke is required", index)
	case StepStart:
	case StepOffer, StepNeed, StepSubmit:
		if st.Dwell < 0 {
			return fmt.Errorf("steps[%d]: dwell must be non-negative", index)
		}
	case StepSignal:
		if st.Text == "" {
			return fmt.Errorf("steps[%d]: text is required for signal", index)
		}
	case StepAdvance:
		if st.Duration == "" {
			return fmt.Errorf("steps[%d]: duration is required for advance", index)
		}
		d, err := time.ParseDuration(st.Duration)
		if err != nil {
			return fmt.Errorf("steps[%d]: invalid duration %q: %w", index, st.Duration, err)
		}
		if d < 0 {
			return fmt.Errorf("steps[%d]: duration must be non-negative", index)
		}
	default:
		return fmt.Errorf("steps[%d]: unknown step %q", index, st.Invoke)
	}

	if st.Expect != nil && st.Expect.Case == "" {
		return fmt.Errorf("steps[%d].expect: case is required", index)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Step == "" {
			return fmt.Errorf("assertions[%d]: step is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Steps) == 0 {
			return fmt.Errorf("assertions[%d]: steps list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Step == "" {
			return fmt.Errorf("assertions[%d]: step is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
