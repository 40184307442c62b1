package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/authz"
	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/engine"
	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/field"
	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/ir"
)

// defaultDeterministicRuns is how many extra runs deterministic compares
// against the recorded run when Runs is unset.
const defaultDeterministicRuns = 2

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string           // Assertion type for categorization
	Expected string           // Human-readable expected outcome
	Actual   string           // Human-readable actual outcome
	Trace    []ir.TraceRecord // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, line := range ir.TraceLines(e.Trace) {
			fmt.Fprintf(&buf, "  %s\n", line)
		}
	}

	return buf.String()
}

// AssertionContext provides what assertions need beyond the result:
// the pipeline and inputs for assertions that re-run it.
type AssertionContext struct {
	Pipeline *engine.Pipeline
	Input    []byte
	Role     string
	Output   *field.Field
}

// assertFinalState checks the run's final state.
func assertFinalState(result *Result, assertion Assertion) error {
	want, err := ir.ParseState(assertion.State)
	if err != nil {
		return err
	}
	if result.State != want {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: want.String(),
			Actual:   result.State.String(),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertTraceContains checks that a rendered trace line is present.
func assertTraceContains(trace []ir.TraceRecord, assertion Assertion) error {
	if slices.Contains(ir.TraceLines(trace), assertion.Line) {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("line %q", assertion.Line),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceCount checks how many records of a kind the trace holds.
func assertTraceCount(trace []ir.TraceRecord, assertion Assertion) error {
	count := 0
	for _, r := range trace {
		switch assertion.Kind {
		case string(ir.KindExecuted), string(ir.KindKillSwitch):
			if string(r.Kind) == assertion.Kind {
				count++
			}
		case countValid:
			if r.Kind == ir.KindExecuted && r.Outcome == ir.OutcomeValid {
				count++
			}
		case countDecay:
			if r.IsDecay() {
				count++
			}
		default:
			return fmt.Errorf("unknown trace_count kind %q", assertion.Kind)
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d %s record(s)", assertion.Count, assertion.Kind),
			Actual:   fmt.Sprintf("%d record(s)", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertKillSwitch checks whether, and where, the kill switch fired.
func assertKillSwitch(trace []ir.TraceRecord, assertion Assertion) error {
	engaged := assertion.Engaged == nil || *assertion.Engaged

	idx := slices.IndexFunc(trace, func(r ir.TraceRecord) bool {
		return r.Kind == ir.KindKillSwitch
	})

	switch {
	case !engaged && idx >= 0:
		return &AssertionError{
			Type:     AssertKillSwitch,
			Expected: "kill switch not engaged",
			Actual:   fmt.Sprintf("engaged before stage %d", trace[idx].Index),
			Trace:    trace,
		}
	case engaged && idx < 0:
		return &AssertionError{
			Type:     AssertKillSwitch,
			Expected: "kill switch engaged",
			Actual:   "not engaged",
			Trace:    trace,
		}
	case engaged && idx != len(trace)-1:
		return &AssertionError{
			Type:     AssertKillSwitch,
			Expected: "kill switch record last in trace",
			Actual:   fmt.Sprintf("at position %d of %d", idx, len(trace)),
			Trace:    trace,
		}
	case engaged && assertion.Index != nil && trace[idx].Index != *assertion.Index:
		return &AssertionError{
			Type:     AssertKillSwitch,
			Expected: fmt.Sprintf("engaged before stage %d", *assertion.Index),
			Actual:   fmt.Sprintf("engaged before stage %d", trace[idx].Index),
			Trace:    trace,
		}
	}
	return nil
}

// assertLengthPreserved checks that output and input lengths match.
func assertLengthPreserved(actx *AssertionContext) error {
	if actx.Output.Len() != len(actx.Input) {
		return &AssertionError{
			Type:     AssertLengthPreserved,
			Expected: fmt.Sprintf("%d bytes", len(actx.Input)),
			Actual:   fmt.Sprintf("%d bytes", actx.Output.Len()),
		}
	}
	return nil
}

// assertDiffersFromAuthorized re-runs the input under a granted context and
// checks the run's output is different.
func assertDiffersFromAuthorized(actx *AssertionContext) error {
	authorized := actx.Pipeline.Run(actx.Input, authz.Granted(actx.Role))
	if authorized.Field.Equal(actx.Output) {
		return &AssertionError{
			Type:     AssertDiffersFromAuthorized,
			Expected: "output different from the authorized output",
			Actual:   fmt.Sprintf("identical output %s", actx.Output),
		}
	}
	return nil
}

// assertDeterministic re-runs the input and checks every run reproduces
// the recorded output, state and trace.
func assertDeterministic(result *Result, actx *AssertionContext, assertion Assertion, auth authz.Authorizer) error {
	runs := assertion.Runs
	if runs == 0 {
		runs = defaultDeterministicRuns
	}

	for i := 0; i < runs; i++ {
		again := actx.Pipeline.Run(actx.Input, auth)
		if !again.Field.Equal(actx.Output) || again.State != result.State || !slices.Equal(again.Trace, result.Trace) {
			return &AssertionError{
				Type:     AssertDeterministic,
				Expected: fmt.Sprintf("output %s, state %s", actx.Output, result.State),
				Actual:   fmt.Sprintf("run %d: output %s, state %s", i+1, again.Field, again.State),
				Trace:    again.Trace,
			}
		}
	}
	return nil
}

// authorizerFor rebuilds the run's authorization outcome for re-runs.
func authorizerFor(result *Result, role string) authz.Authorizer {
	if result.Run.Authorized {
		return authz.Granted(role)
	}
	return authz.Denied(role)
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertFinalState:
			err = assertFinalState(result, assertion)
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertKillSwitch:
			err = assertKillSwitch(result.Trace, assertion)
		case AssertLengthPreserved, AssertDiffersFromAuthorized, AssertDeterministic:
			if actx == nil || actx.Pipeline == nil || actx.Output == nil {
				err = fmt.Errorf("assertion[%d]: %s requires pipeline context", i, assertion.Type)
				break
			}
			switch assertion.Type {
			case AssertLengthPreserved:
				err = assertLengthPreserved(actx)
			case AssertDiffersFromAuthorized:
				err = assertDiffersFromAuthorized(actx)
			default:
				err = assertDeterministic(result, actx, assertion, authorizerFor(result, actx.Role))
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
