package harness

import "github.com/google/go-cmp/cmp"

// TraceEvent is either a step invocation or the outcome of one.
type TraceEvent struct {
	Type       string                 `json:"type"` // "invocation" or "completion"
	Step       string                 `json:"step,omitempty"`
	Args       map[string]interface{} `json:"args,omitempty"`
	OutputCase string                 `json:"output_case,omitempty"`
	Result     map[string]interface{} `json:"result,omitempty"`
	Seq        int64                  `json:"seq"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success.
	// True if every expect clause and assertion holds.
	Pass bool `json:"pass"`

	// Trace contains all invocations and completions in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the visitor state after the last step, keyed by JSON field.
	State map[string]interface{} `json:"state,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string]interface{}),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddInvocationTrace adds a step invocation to the trace.
func (r *Result) AddInvocationTrace(step string, args map[string]interface{}, seq int64) {
	r.Trace = append(r.Trace, TraceEvent{
		Type: "invocation",
		Step: step,
		Args: args,
		Seq:  seq,
	})
}

// AddCompletionTrace adds a step outcome to the trace.
func (r *Result) AddCompletionTrace(step, outputCase string, result map[string]interface{}, seq int64) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:       "completion",
		Step:       step,
		OutputCase: outputCase,
		Result:     result,
		Seq:        seq,
	})
}

// DiffTraces returns a human-readable diff of two traces, or "" if equal.
func DiffTraces(want, got []TraceEvent) string {
	return cmp.Diff(want, got)
}
