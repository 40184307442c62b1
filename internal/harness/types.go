package harness

import "github.com/ATNYCHI-ZERO/hdx-math-core/internal/ir"

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true when every assertion held and the recorded run
	// replayed identically.
	Pass bool `json:"pass"`

	// State is the final state of the run.
	State ir.State `json:"state"`

	// Output is the final payload, hex encoded.
	Output string `json:"output"`

	// Trace is the run's execution trace.
	Trace []ir.TraceRecord `json:"trace"`

	// Run is the record written for the run.
	Run ir.RunRecord `json:"run"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []ir.TraceRecord{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
