package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/cora/internal/guardian"
	"github.com/roach88/cora/internal/kv"
	"github.com/roach88/cora/internal/lexicon"
	"github.com/roach88/cora/internal/ritual"
	"github.com/roach88/cora/internal/testutil"
)

// Options configure a scenario run.
type Options struct {
	// Guardian configures every ritual component.
	Guardian guardian.Options

	// Lexicon is used when the scenario names none. Nil means lexicon.Default().
	Lexicon *lexicon.Lexicon
}

// DefaultOptions returns the default component options and lexicon.
func DefaultOptions() Options {
	return Options{Guardian: guardian.DefaultOptions()}
}

// Harness runs scenarios against one visitor with a fake clock.
type Harness struct {
	store    *kv.Memory
	clock    *testutil.FakeClock
	guardian *guardian.Guardian
	logger   *slog.Logger
	seq      int64
}

// Run executes a scenario with default options.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithOptions(scenario, DefaultOptions())
}

// RunWithOptions executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory store with the clock fixed at
// testutil.Epoch, so identical scenarios produce identical traces.
//
// Execution flow:
// 1. Create fresh in-memory store and clock
// 2. Load the scenario lexicon, if any
// 3. Execute steps, checking expect clauses
// 4. Capture the final visitor state
// 5. Evaluate assertions
func RunWithOptions(scenario *Scenario, opts Options) (*Result, error) {
	lex := opts.Lexicon
	if scenario.Lexicon != "" {
		loaded, err := lexicon.LoadFile(scenario.Lexicon)
		if err != nil {
			return nil, fmt.Errorf("failed to load lexicon: %w", err)
		}
		lex = loaded
	}
	if lex == nil {
		lex = lexicon.Default()
	}

	st := kv.NewMemory()
	clock := testutil.NewFakeClock(testutil.Epoch)
	h := &Harness{
		store:    st,
		clock:    clock,
		guardian: guardian.New(st, lex, clock, opts.Guardian),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}

	ctx := context.Background()
	result := NewResult()

	origin := scenario.Origin
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, origin, result); err != nil {
			return nil, fmt.Errorf("failed to execute step %d: %w", i, err)
		}
	}

	state, err := h.finalState(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read final state: %w", err)
	}
	result.State = state

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}

	return result, nil
}

func (h *Harness) next() int64 {
	h.seq++
	return h.seq
}

// executeStep runs one step, traces it, and checks its expect clause.
func (h *Harness) executeStep(ctx context.Context, i int, step Step, origin string, result *Result) error {
	result.AddInvocationTrace(step.Invoke, stepArgs(step), h.next())

	outputCase, out, err := h.invoke(ctx, step, origin)
	if err != nil {
		return err
	}
	result.AddCompletionTrace(step.Invoke, outputCase, out, h.next())

	if step.Expect != nil {
		if step.Expect.Case != outputCase {
			result.AddError(fmt.Sprintf("steps[%d] %s: expected case %q, got %q",
				i, step.Invoke, step.Expect.Case, outputCase))
		}
		if step.Expect.Phase != "" && out["phase"] != step.Expect.Phase {
			result.AddError(fmt.Sprintf("steps[%d] %s: expected phase %q, got %v",
				i, step.Invoke, step.Expect.Phase, out["phase"]))
		}
	}

	h.logger.Info("step completed",
		"step", i,
		"invoke", step.Invoke,
		"output_case", outputCase,
	)
	return nil
}

// invoke performs step and returns its outcome case and result fields.
func (h *Harness) invoke(ctx context.Context, step Step, origin string) (string, map[string]interface{}, error) {
	switch step.Invoke {
	case StepStart:
		resp, err := h.guardian.Start(ctx, origin)
		if err != nil {
			return "", nil, err
		}
		return "Started", responseResult(resp), nil

	case StepOffer:
		resp, err := h.guardian.SubmitOffer(ctx, step.Text, step.Dwell)
		if err != nil {
			return "", nil, err
		}
		return offerCase(resp), responseResult(resp), nil

	case StepNeed:
		rec, err := h.guardian.Record(ctx)
		if err != nil {
			return "", nil, err
		}
		resp, err := h.guardian.SubmitNeed(ctx, step.Text, step.Dwell)
		if err != nil {
			return "", nil, err
		}
		return needCase(rec.Phase, resp), responseResult(resp), nil

	case StepSubmit:
		rec, err := h.guardian.Record(ctx)
		if err != nil {
			return "", nil, err
		}
		resp, err := h.guardian.Submit(ctx, step.Text, step.Dwell)
		if err != nil {
			return "", nil, err
		}
		if rec.Phase == ritual.PhaseInitial || rec.Phase == ritual.PhaseOffering {
			return offerCase(resp), responseResult(resp), nil
		}
		return needCase(rec.Phase, resp), responseResult(resp), nil

	case StepSignal:
		resp, err := h.guardian.LeaveSignal(ctx, step.Text)
		if err != nil {
			return "", nil, err
		}
		return "SignalLeft", responseResult(resp), nil

	case StepAdvance:
		d, err := time.ParseDuration(step.Duration)
		if err != nil {
			return "", nil, fmt.Errorf("invalid duration %q: %w", step.Duration, err)
		}
		now := h.clock.Advance(d)
		return "Advanced", map[string]interface{}{"now": ritual.ISOTimestamp(now)}, nil
	}

	return "", nil, fmt.Errorf("unknown step %q", step.Invoke)
}

func offerCase(resp guardian.Response) string {
	if resp.Verified {
		return "Verified"
	}
	return "Rejected"
}

func needCase(before ritual.Phase, resp guardian.Response) string {
	switch {
	case !before.CanAsk():
		return "Deferred"
	case !resp.Verified:
		return "Rejected"
	case resp.Match != nil:
		return "Matched"
	default:
		return "Unmatched"
	}
}

func stepArgs(step Step) map[string]interface{} {
	args := map[string]interface{}{}
	if step.Text != "" {
		args["text"] = step.Text
	}
	if step.Dwell != 0 {
		args["dwell"] = step.Dwell
	}
	if step.Duration != "" {
		args["duration"] = step.Duration
	}
	return args
}

func responseResult(resp guardian.Response) map[string]interface{} {
	out := map[string]interface{}{
		"phase":   string(resp.Phase),
		"message": resp.Message,
	}
	if resp.Huella != "" {
		out["huella"] = resp.Huella
	}
	if resp.Match != nil {
		out["connection_code"] = resp.Match.ConnectionCode
		out["overlap"] = resp.Match.Overlap
	}
	if c := resp.Consecration; c != nil {
		out["consecration_score"] = c.Score
		if c.Eligible {
			out["consecration_huella"] = c.Huella
		}
	}
	return out
}

// finalState flattens the visitor state, ledger stats and activity log
// into one map for final_state assertions.
func (h *Harness) finalState(ctx context.Context) (map[string]interface{}, error) {
	st, err := h.guardian.State(ctx)
	if err != nil {
		return nil, err
	}
	stats, err := h.guardian.Verifier().Stats(ctx)
	if err != nil {
		return nil, err
	}
	presences, err := h.guardian.Log().List(ctx)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"phase":                string(st.Phase),
		"offers_count":         st.OffersCount,
		"needs_count":          st.NeedsCount,
		"matches":              st.Matches,
		"signals_left":         st.SignalsLeft,
		"consecrated":          st.Consecrated,
		"sealed":               st.Sealed,
		"consecration_huella":  st.ConsecrationHuella,
		"seal_huella":          st.SealHuella,
		"verifications":        stats.Verifications,
		"average_authenticity": stats.AverageAuthenticity,
		"presences":            len(presences),
	}, nil
}
