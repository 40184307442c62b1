package harness

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"

	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/authz"
	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/compiler"
	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/engine"
	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/ir"
	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/recorder"
	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/store"
	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/testutil"
)

// inlinePipelineName names pipelines built from a scenario's inline stages.
const inlinePipelineName = "inline"

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation, with a
// deterministic clock and a fixed run token so golden snapshots are stable.
//
// Execution flow:
//  1. Resolve the pipeline (CUE directory or inline stages) and build it
//  2. Build the authorization context from role and credential
//  3. Record one run, then verify it by replay
//  4. Evaluate assertions
//
// Returns an error only when the scenario cannot be executed. Assertion
// failures are reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	spec, err := resolveSpec(scenario)
	if err != nil {
		return nil, err
	}
	specHash, err := ir.SpecHash(*spec)
	if err != nil {
		return nil, err
	}

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	pipeline, err := compiler.Build(spec, engine.WithLogger(quiet))
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}

	verifier, err := compiler.NewVerifier(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to build verifier: %w", err)
	}
	auth, err := authz.New(scenario.Role, scenario.Credential, verifier)
	if err != nil {
		return nil, fmt.Errorf("failed to authorize: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	rec, err := recorder.New(ctx, pipeline, specHash, st,
		recorder.WithClock(testutil.NewDeterministicClock()),
		recorder.WithTokenGenerator(testutil.NewFixedRunTokens(scenario.RunToken)),
	)
	if err != nil {
		return nil, err
	}

	input := []byte(scenario.Input)
	res, run, err := rec.Record(ctx, input, auth)
	if err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}

	result := NewResult()
	result.State = res.State
	result.Output = hex.EncodeToString(res.Field.Bytes())
	result.Trace = res.Trace
	result.Run = run

	if _, err := rec.Verify(ctx, run.RunToken, input, auth); err != nil {
		result.AddError(fmt.Sprintf("replay: %v", err))
	}

	actx := &AssertionContext{
		Pipeline: pipeline,
		Input:    input,
		Role:     scenario.Role,
		Output:   res.Field,
	}
	for _, msg := range EvaluateAssertions(result, scenarioAssertions(scenario), actx) {
		result.AddError(msg)
	}

	return result, nil
}

// resolveSpec loads the scenario's pipeline directory or assembles its
// inline stages.
func resolveSpec(s *Scenario) (*ir.PipelineSpec, error) {
	if s.Pipeline != "" {
		spec, err := compiler.LoadDir(s.Pipeline)
		if err != nil {
			return nil, fmt.Errorf("failed to load pipeline %s: %w", s.Pipeline, err)
		}
		return spec, nil
	}

	spec := &ir.PipelineSpec{
		Name:   inlinePipelineName,
		Hash:   s.Hash,
		Stages: make([]ir.StageSpec, len(s.Stages)),
	}
	for i, st := range s.Stages {
		spec.Stages[i] = ir.StageSpec{Name: st.Name, MaxDepth: st.MaxDepth}
	}
	return spec, nil
}

// scenarioAssertions returns the scenario's assertions with the
// expect_state shorthand expanded first.
func scenarioAssertions(s *Scenario) []Assertion {
	if s.ExpectState == "" {
		return s.Assertions
	}
	out := make([]Assertion, 0, len(s.Assertions)+1)
	out = append(out, Assertion{Type: AssertFinalState, State: s.ExpectState})
	return append(out, s.Assertions...)
}
