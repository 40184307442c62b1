package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/authz"
	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/ir"
)

// Mismatch is one field where a replayed run diverged from its record.
type Mismatch struct {
	Field    string `json:"field"`
	Recorded string `json:"recorded"`
	Replayed string `json:"replayed"`
}

// MismatchError is returned by Verify when a replay does not reproduce the
// recorded run.
type MismatchError struct {
	RunToken   string
	Mismatches []Mismatch
}

// Error implements the error interface.
func (e *MismatchError) Error() string {
	fields := make([]string, len(e.Mismatches))
	for i, m := range e.Mismatches {
		fields[i] = m.Field
	}
	return fmt.Sprintf("run %s did not replay identically: %s differ", e.RunToken, strings.Join(fields, ", "))
}

// IsMismatchError returns true if err is or wraps a *MismatchError.
func IsMismatchError(err error) bool {
	var me *MismatchError
	return errors.As(err, &me)
}

// Verification summarizes a successful replay.
type Verification struct {
	RunToken     string   `json:"run_token"`
	State        ir.State `json:"state"`
	OutputDigest string   `json:"output_digest"`
	TraceHash    string   `json:"trace_hash"`
}

// Verify re-runs a recorded run and checks that the pipeline, input,
// authorization, output, final state and trace all match the record. The replay is not recorded.
//
// Returns *MismatchError listing every diverging field.
func (r *Recorder) Verify(ctx context.Context, runToken string, input []byte, auth authz.Authorizer) (*Verification, error) {
	run, err := r.store.ReadRun(ctx, runToken)
	if err != nil {
		return nil, fmt.Errorf("read run %s: %w", runToken, err)
	}

	res := r.pipeline.Run(input, auth)
	replayed, err := NewRunRecord(run.RunToken, run.Seq, r.specHash, run.Role, auth.Authorized(), input, r.pipeline.Len(), res)
	if err != nil {
		return nil, err
	}

	var mismatches []Mismatch
	check := func(field, recorded, got string) {
		if recorded != got {
			mismatches = append(mismatches, Mismatch{Field: field, Recorded: recorded, Replayed: got})
		}
	}
	check("spec_hash", run.SpecHash, replayed.SpecHash)
	check("input_digest", run.InputDigest, replayed.InputDigest)
	check("authorized", strconv.FormatBool(run.Authorized), strconv.FormatBool(replayed.Authorized))
	check("output_digest", run.OutputDigest, replayed.OutputDigest)
	check("state", run.State.String(), replayed.State.String())
	check("trace_hash", run.TraceHash, replayed.TraceHash)

	if len(mismatches) > 0 {
		slog.Warn("replay diverged",
			"run_token", runToken,
			"mismatches", len(mismatches),
		)
		return nil, &MismatchError{RunToken: runToken, Mismatches: mismatches}
	}

	return &Verification{
		RunToken:     runToken,
		State:        replayed.State,
		OutputDigest: replayed.OutputDigest,
		TraceHash:    replayed.TraceHash,
	}, nil
}
