package recorder

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/authz"
	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/engine"
	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/ir"
	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/store"
)

var payload = []byte("CONFIDENTIAL_DATA_PACKET")

func fiveStages() *engine.Pipeline {
	stages := make([]engine.Stage, 5)
	for i := range stages {
		stages[i] = engine.NewStage("Op_"+string(rune('0'+i)), 10)
	}
	return engine.New(stages)
}

func newTestRecorder(t *testing.T, tokens ...string) (*Recorder, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	rec, err := New(context.Background(), fiveStages(), "spec-hash", st,
		WithTokenGenerator(NewFixedGenerator(tokens...)))
	require.NoError(t, err)
	return rec, st
}

func TestRecord_WritesRun(t *testing.T) {
	ctx := context.Background()
	rec, st := newTestRecorder(t, "run-1")

	res, run, err := rec.Record(ctx, payload, authz.Denied("Hacker"))
	require.NoError(t, err)

	assert.Equal(t, ir.StateBlocked, res.State)
	assert.Equal(t, "run-1", run.RunToken)
	assert.Equal(t, int64(1), run.Seq)
	assert.Equal(t, "Hacker", run.Role)
	assert.False(t, run.Authorized)
	assert.Equal(t, ir.Digest(payload), run.InputDigest)
	assert.Equal(t, res.Field.Digest(), run.OutputDigest)
	assert.Equal(t, int64(len(payload)), run.Length)
	assert.Equal(t, int64(5), run.StageCount)
	assert.Equal(t, ir.MustRunID("run-1", "spec-hash", run.InputDigest, 1), run.ID)

	stored, err := st.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, run, stored)
}

func TestRecord_SeqIncrements(t *testing.T) {
	ctx := context.Background()
	rec, _ := newTestRecorder(t, "run-1", "run-2")

	_, first, err := rec.Record(ctx, payload, authz.Granted("Admin"))
	require.NoError(t, err)
	_, second, err := rec.Record(ctx, payload, authz.Granted("Admin"))
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.Seq)
	assert.Equal(t, int64(2), second.Seq)
	assert.Equal(t, first.OutputDigest, second.OutputDigest)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestNew_ResumesClockFromStore(t *testing.T) {
	ctx := context.Background()
	rec, st := newTestRecorder(t, "run-1", "run-2")

	_, _, err := rec.Record(ctx, payload, authz.Granted("Admin"))
	require.NoError(t, err)
	_, _, err = rec.Record(ctx, payload, authz.Granted("Admin"))
	require.NoError(t, err)

	resumed, err := New(ctx, fiveStages(), "spec-hash", st,
		WithTokenGenerator(NewFixedGenerator("run-3")))
	require.NoError(t, err)

	_, run, err := resumed.Record(ctx, payload, authz.Granted("Admin"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), run.Seq)
}

func TestNewRunRecord_RoleFromAuthorizer(t *testing.T) {
	assert.Equal(t, "Admin", roleOf(authz.Granted("Admin")))

	type bare struct{ authz.Authorizer }
	assert.Equal(t, "", roleOf(bare{authz.Granted("Admin")}))
}

func TestVerify_Identical(t *testing.T) {
	ctx := context.Background()
	rec, _ := newTestRecorder(t, "run-1")

	_, run, err := rec.Record(ctx, payload, authz.Denied("Hacker"))
	require.NoError(t, err)

	v, err := rec.Verify(ctx, "run-1", payload, authz.Denied("Hacker"))
	require.NoError(t, err)
	assert.Equal(t, run.OutputDigest, v.OutputDigest)
	assert.Equal(t, run.TraceHash, v.TraceHash)
	assert.Equal(t, ir.StateBlocked, v.State)
}

func TestVerify_DifferentAuthorization(t *testing.T) {
	ctx := context.Background()
	rec, _ := newTestRecorder(t, "run-1")

	_, _, err := rec.Record(ctx, payload, authz.Denied("Hacker"))
	require.NoError(t, err)

	_, err = rec.Verify(ctx, "run-1", payload, authz.Granted("Admin"))
	require.Error(t, err)
	assert.True(t, IsMismatchError(err))

	var me *MismatchError
	require.ErrorAs(t, err, &me)
	fields := make([]string, 0, len(me.Mismatches))
	for _, m := range me.Mismatches {
		fields = append(fields, m.Field)
	}
	assert.Equal(t, []string{"authorized", "output_digest", "state", "trace_hash"}, fields)
	assert.Equal(t, Mismatch{Field: "authorized", Recorded: "false", Replayed: "true"}, me.Mismatches[0])
	assert.Contains(t, err.Error(), "run-1")
}

func TestVerify_DifferentInput(t *testing.T) {
	ctx := context.Background()
	rec, _ := newTestRecorder(t, "run-1")

	_, _, err := rec.Record(ctx, payload, authz.Granted("Admin"))
	require.NoError(t, err)

	_, err = rec.Verify(ctx, "run-1", []byte("TAMPERED_DATA_PACKET...."), authz.Granted("Admin"))
	var me *MismatchError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "input_digest", me.Mismatches[0].Field)
}

func TestVerify_UnknownRun(t *testing.T) {
	rec, _ := newTestRecorder(t)

	_, err := rec.Verify(context.Background(), "missing", payload, authz.Granted("Admin"))
	require.ErrorIs(t, err, store.ErrRunNotFound)
	assert.False(t, IsMismatchError(err))
}
