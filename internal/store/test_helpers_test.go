package store

import (
	"path/filepath"
	"testing"

	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/ir"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun creates a blocked run record with a four-stage decay trace.
func createTestRun(token string, seq int64) ir.RunRecord {
	trace := []ir.TraceRecord{
		ir.Executed(0, ir.OutcomeDecay, ir.StateHoney),
		ir.Executed(1, ir.OutcomeDecay, ir.StateHoney),
		ir.Executed(2, ir.OutcomeDecay, ir.StateHoney),
		ir.Executed(3, ir.OutcomeDecay, ir.StateHoney),
		ir.KillSwitch(4),
	}
	input := ir.Digest([]byte("CONFIDENTIAL_DATA_PACKET"))
	return ir.RunRecord{
		ID:            ir.MustRunID(token, "spec-hash", input, seq),
		RunToken:      token,
		Seq:           seq,
		Role:          "Hacker",
		Authorized:    false,
		SpecHash:      "spec-hash",
		InputDigest:   input,
		OutputDigest:  ir.Digest([]byte("output")),
		Length:        24,
		StageCount:    5,
		State:         ir.StateBlocked,
		Trace:         trace,
		TraceHash:     "trace-hash",
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
	}
}
