package engine

import (
	"log/slog"

	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/authz"
	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/field"
	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/ir"
)

// Pipeline runs an ordered chain of stages over a payload.
//
// INVARIANTS:
//   - stages slice order NEVER changes after construction
//   - no per-run state is stored on the Pipeline
type Pipeline struct {
	stages []Stage
	logger *slog.Logger
}

// Option allows configuration of pipeline parameters.
type Option func(*Pipeline)

// WithLogger sets the logger for per-step debug events.
// Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// Result is the outcome of one run.
type Result struct {
	// Field is the final payload, real or decoy.
	Field *field.Field

	// State is the final deception state.
	State ir.State

	// Trace has one record per executed stage plus at most one kill switch
	// record.
	Trace []ir.TraceRecord
}

// New creates a Pipeline over the given stages.
// The stages slice is copied to prevent external mutation from changing
// the pipeline order.
func New(stages []Stage, opts ...Option) *Pipeline {
	stagesCopy := make([]Stage, len(stages))
	copy(stagesCopy, stages)

	p := &Pipeline{
		stages: stagesCopy,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Stages returns a copy of the stage list in pipeline order.
func (p *Pipeline) Stages() []Stage {
	out := make([]Stage, len(p.stages))
	copy(out, p.stages)
	return out
}

// Len returns the number of stages.
func (p *Pipeline) Len() int {
	return len(p.stages)
}

// Run threads input through every stage and returns the final field, state
// and trace.
//
// The state starts at NORMAL on every call and lives only in this frame, so
// concurrent Runs on the same Pipeline are independent. input is copied;
// the caller's slice is never mutated.
func (p *Pipeline) Run(input []byte, auth authz.Authorizer) Result {
	f := field.Wrap(input)
	state := ir.StateNormal
	n := len(p.stages)
	trace := make([]ir.TraceRecord, 0, n+1)

	for i, stage := range p.stages {
		if state == ir.StateHoney && i > n-2 {
			state = state.Advance(ir.StateBlocked)
			trace = append(trace, ir.KillSwitch(i))
			p.logger.Debug("kill switch engaged",
				"index", i,
				"stages", n,
				"field", f.String(),
			)
			break
		}

		var isDecoy bool
		f, isDecoy = stage.Execute(f, i, auth)
		if isDecoy && state == ir.StateNormal {
			state = state.Advance(ir.StateHoney)
		}

		outcome := ir.OutcomeFor(isDecoy)
		trace = append(trace, ir.Executed(i, outcome, state))
		p.logger.Debug("stage executed",
			"index", i,
			"stage", stage.Name(),
			"outcome", string(outcome),
			"state", state.String(),
		)
	}

	return Result{Field: f, State: state, Trace: trace}
}
