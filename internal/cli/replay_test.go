package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/authz"
	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/ir"
)

// recordRun runs packet through dir with --db and returns the run token.
func recordRun(t *testing.T, dir, dbPath, credential string) string {
	t.Helper()
	out, err := execute(NewRunCommand(&RootOptions{Format: "json"}),
		dir, "--data", packet, "--role", "Analyst", "--credential", credential, "--db", dbPath)
	require.NoError(t, err)
	resp := decodeRun(t, out)
	require.NotEmpty(t, resp.RunToken)
	return resp.RunToken
}

type replayResponse struct {
	Status string       `json:"status"`
	Data   ReplayResult `json:"data"`
	Error  *CLIError    `json:"error"`
}

func TestReplayMissingDatabaseFlag(t *testing.T) {
	_, err := execute(NewReplayCommand(&RootOptions{Format: "text"}), t.TempDir(), "--run", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
	assert.Contains(t, err.Error(), "db")
}

func TestReplayIdentical(t *testing.T) {
	dir := writePipeline(t, defaultPipelineCUE)
	dbPath := filepath.Join(t.TempDir(), "hdx.db")
	token := recordRun(t, dir, dbPath, "nope")

	out, err := execute(NewReplayCommand(&RootOptions{Format: "text"}),
		dir, "--db", dbPath, "--run", token, "--data", packet, "--credential", "nope")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Run "+token+" replayed identically")
	assert.Contains(t, out, "State: BLOCKED")
}

func TestReplayIdenticalJSON(t *testing.T) {
	dir := writePipeline(t, defaultPipelineCUE)
	dbPath := filepath.Join(t.TempDir(), "hdx.db")
	token := recordRun(t, dir, dbPath, authz.PlaceholderReference)

	out, err := execute(NewReplayCommand(&RootOptions{Format: "json"}),
		dir, "--db", dbPath, "--run", token, "--data", packet, "--credential", authz.PlaceholderReference)
	require.NoError(t, err)

	var resp replayResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Identical)
	require.NotNil(t, resp.Data.Verification)
	assert.Equal(t, ir.StateNormal, resp.Data.Verification.State)
}

func TestReplayDifferentInputDiverges(t *testing.T) {
	dir := writePipeline(t, defaultPipelineCUE)
	dbPath := filepath.Join(t.TempDir(), "hdx.db")
	token := recordRun(t, dir, dbPath, "nope")

	out, err := execute(NewReplayCommand(&RootOptions{Format: "json"}),
		dir, "--db", dbPath, "--run", token, "--data", "TAMPERED_DATA_PACKET____", "--credential", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp replayResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeReplayFailed, resp.Error.Code)
	assert.False(t, resp.Data.Identical)

	fields := make([]string, len(resp.Data.Mismatches))
	for i, m := range resp.Data.Mismatches {
		fields[i] = m.Field
	}
	assert.Equal(t, []string{"input_digest", "output_digest"}, fields)
}

func TestReplayDifferentCredentialDiverges(t *testing.T) {
	dir := writePipeline(t, defaultPipelineCUE)
	dbPath := filepath.Join(t.TempDir(), "hdx.db")
	token := recordRun(t, dir, dbPath, "nope")

	out, err := execute(NewReplayCommand(&RootOptions{Format: "text"}),
		dir, "--db", dbPath, "--run", token, "--data", packet, "--credential", authz.PlaceholderReference)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Run "+token+" diverged")
	assert.Contains(t, out, "authorized\n    recorded: false\n    replayed: true")
	assert.Contains(t, out, "state\n    recorded: BLOCKED\n    replayed: NORMAL")
}

func TestReplayUnknownRun(t *testing.T) {
	dir := writePipeline(t, defaultPipelineCUE)
	dbPath := filepath.Join(t.TempDir(), "hdx.db")
	recordRun(t, dir, dbPath, "nope")

	out, err := execute(NewReplayCommand(&RootOptions{Format: "text"}),
		dir, "--db", dbPath, "--run", "no-such-run", "--data", packet, "--credential", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeRunNotFound)
}

func TestReplayHelpText(t *testing.T) {
	cmd := NewReplayCommand(&RootOptions{})
	assert.Contains(t, cmd.Long, "Exit codes")
	assert.Contains(t, cmd.Long, "digests")
}
