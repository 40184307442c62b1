// Package recorder runs a pipeline and keeps a forensic record of every run.
//
// Records carry digests of the input and output, the final state and the
// typed trace, stamped with a logical clock seq and a run token. Because a
// run is fully determined by its input, authorization and stage list, a
// recorded run can be verified later by re-running it (Verify).
package recorder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/authz"
	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/engine"
	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/ir"
	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/store"
)

// Recorder runs a pipeline and writes each run to the store.
//
// Thread-safety: Record may be called from multiple goroutines. The
// pipeline is safe for concurrent runs, the clock is atomic and the store
// serializes writes.
type Recorder struct {
	pipeline *engine.Pipeline
	store    *store.Store
	specHash string
	clock    Sequencer
	tokens   TokenGenerator
}

// Option allows configuration of recorder parameters.
type Option func(*Recorder)

// WithTokenGenerator overrides the run token generator.
// Default: UUIDv7Generator.
func WithTokenGenerator(gen TokenGenerator) Option {
	return func(r *Recorder) {
		r.tokens = gen
	}
}

// WithClock overrides the logical clock.
// Default: a Clock resumed at the store's last seq.
func WithClock(c Sequencer) Option {
	return func(r *Recorder) {
		r.clock = c
	}
}

// New creates a Recorder for a pipeline identified by specHash.
func New(ctx context.Context, p *engine.Pipeline, specHash string, st *store.Store, opts ...Option) (*Recorder, error) {
	r := &Recorder{
		pipeline: p,
		store:    st,
		specHash: specHash,
		tokens:   UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.clock == nil {
		last, err := st.LastSeq(ctx)
		if err != nil {
			return nil, fmt.Errorf("resume clock: %w", err)
		}
		r.clock = NewClockAt(last)
	}

	return r, nil
}

// SpecHash returns the hash of the pipeline this recorder runs.
func (r *Recorder) SpecHash() string {
	return r.specHash
}

// Record runs input through the pipeline and writes the run record.
//
// The pipeline result is returned even when the write fails, so callers can
// decide whether to release output from an unrecorded run.
func (r *Recorder) Record(ctx context.Context, input []byte, auth authz.Authorizer) (engine.Result, ir.RunRecord, error) {
	res := r.pipeline.Run(input, auth)

	token := r.tokens.Generate()
	seq := r.clock.Next()

	run, err := NewRunRecord(token, seq, r.specHash, roleOf(auth), auth.Authorized(), input, r.pipeline.Len(), res)
	if err != nil {
		return res, ir.RunRecord{}, err
	}

	if err := r.store.WriteRun(ctx, run); err != nil {
		return res, ir.RunRecord{}, fmt.Errorf("record run %s: %w", token, err)
	}

	slog.Info("run recorded",
		"run_token", token,
		"seq", seq,
		"state", run.State.String(),
		"stages_executed", ir.CountKind(run.Trace, ir.KindExecuted),
	)

	return res, run, nil
}

// NewRunRecord builds the forensic record of a finished run.
func NewRunRecord(token string, seq int64, specHash, role string, authorized bool, input []byte, stageCount int, res engine.Result) (ir.RunRecord, error) {
	inputDigest := ir.Digest(input)

	id, err := ir.RunID(token, specHash, inputDigest, seq)
	if err != nil {
		return ir.RunRecord{}, err
	}

	traceHash, err := ir.TraceHash(res.Trace)
	if err != nil {
		return ir.RunRecord{}, err
	}

	return ir.RunRecord{
		ID:            id,
		RunToken:      token,
		Seq:           seq,
		Role:          role,
		Authorized:    authorized,
		SpecHash:      specHash,
		InputDigest:   inputDigest,
		OutputDigest:  res.Field.Digest(),
		Length:        int64(res.Field.Len()),
		StageCount:    int64(stageCount),
		State:         res.State,
		Trace:         res.Trace,
		TraceHash:     traceHash,
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
	}, nil
}

// roleOf returns the role label when the authorizer carries one.
func roleOf(auth authz.Authorizer) string {
	if r, ok := auth.(interface{ Role() string }); ok {
		return r.Role()
	}
	return ""
}
