package cli

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/authz"
	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/ir"
	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/store"
)

type runResponse struct {
	Status   string     `json:"status"`
	Data     RunSummary `json:"data"`
	Error    *CLIError  `json:"error"`
	RunToken string     `json:"run_token"`
}

func decodeRun(t *testing.T, out string) runResponse {
	t.Helper()
	var resp runResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp
}

func TestRunAuthorized(t *testing.T) {
	dir := writePipeline(t, defaultPipelineCUE)

	out, err := execute(NewRunCommand(&RootOptions{Format: "text"}),
		dir, "--data", packet, "--role", "Admin", "--credential", authz.PlaceholderReference)
	require.NoError(t, err)

	assert.Contains(t, out, "State: NORMAL")
	assert.Contains(t, out, "Step 0: VALID")
	assert.Contains(t, out, "Step 4: VALID")
	assert.Contains(t, out, "Output: "+authorizedHex)
	assert.NotContains(t, out, "Run:", "unrecorded runs have no token")
}

func TestRunDeniedJSON(t *testing.T) {
	dir := writePipeline(t, defaultPipelineCUE)

	out, err := execute(NewRunCommand(&RootOptions{Format: "json"}),
		dir, "--data", packet, "--role", "Hacker", "--credential", "WRONG_KEY")
	// Blocked runs still exit 0
	require.NoError(t, err)

	resp := decodeRun(t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, ir.StateBlocked, resp.Data.State)
	assert.Equal(t, deniedHex, resp.Data.Output)
	assert.Equal(t, len(packet), resp.Data.Length)
	assert.Equal(t, []string{
		"Step 0: DECAY/HONEY",
		"Step 1: DECAY/HONEY",
		"Step 2: DECAY/HONEY",
		"Step 3: DECAY/HONEY",
		"KILL-SWITCH: ENGAGED",
	}, resp.Data.Trace)
}

func TestRunCredentialFromEnv(t *testing.T) {
	dir := writePipeline(t, defaultPipelineCUE)
	t.Setenv(CredentialEnv, authz.PlaceholderReference)

	out, err := execute(NewRunCommand(&RootOptions{Format: "json"}), dir, "--data", packet)
	require.NoError(t, err)
	assert.Equal(t, ir.StateNormal, decodeRun(t, out).Data.State)
}

func TestRunDigestVerifier(t *testing.T) {
	dir := writePipeline(t, `package hdx

pipeline: vault: {
	hash: "sha256"
	auth: reference_digest: "`+secretDigest+`"
	stages: [for i in [0, 1, 2, 3, 4] {name: "Op_\(i)", max_depth: 10}]
}
`)

	out, err := execute(NewRunCommand(&RootOptions{Format: "json"}), dir, "--data", packet, "--credential", "s3cret")
	require.NoError(t, err)
	resp := decodeRun(t, out)
	assert.Equal(t, ir.StateNormal, resp.Data.State)
	assert.Equal(t, authorizedHex, resp.Data.Output)

	// The placeholder reference is not accepted once a digest is configured
	out, err = execute(NewRunCommand(&RootOptions{Format: "json"}), dir, "--data", packet, "--credential", authz.PlaceholderReference)
	require.NoError(t, err)
	assert.Equal(t, ir.StateBlocked, decodeRun(t, out).Data.State)
}

func TestRunFromStdin(t *testing.T) {
	dir := writePipeline(t, defaultPipelineCUE)

	cmd := NewRunCommand(&RootOptions{Format: "json"})
	cmd.SetIn(strings.NewReader(packet))
	out, err := execute(cmd, dir, "--input", "-", "--credential", authz.PlaceholderReference)
	require.NoError(t, err)
	assert.Equal(t, authorizedHex, decodeRun(t, out).Data.Output)
}

func TestRunInputFileToOutputFile(t *testing.T) {
	dir := writePipeline(t, defaultPipelineCUE)
	tmp := t.TempDir()
	in := filepath.Join(tmp, "packet.bin")
	outFile := filepath.Join(tmp, "packet.out")
	require.NoError(t, os.WriteFile(in, []byte(packet), 0644))

	out, err := execute(NewRunCommand(&RootOptions{Format: "text"}),
		dir, "--input", in, "--out", outFile, "--credential", "nope")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 24 bytes to "+outFile)
	assert.NotContains(t, out, "Output:")

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.Equal(t, deniedHex, hex.EncodeToString(data))
}

func TestRunRecordsToDatabase(t *testing.T) {
	dir := writePipeline(t, defaultPipelineCUE)
	dbPath := filepath.Join(t.TempDir(), "hdx.db")

	out, err := execute(NewRunCommand(&RootOptions{Format: "json"}),
		dir, "--data", packet, "--role", "Hacker", "--credential", "nope", "--db", dbPath)
	require.NoError(t, err)

	resp := decodeRun(t, out)
	require.NotEmpty(t, resp.RunToken)
	assert.Equal(t, resp.RunToken, resp.Data.RunToken)
	assert.NotEmpty(t, resp.Data.RunID)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	run, err := st.ReadRun(context.Background(), resp.RunToken)
	require.NoError(t, err)
	assert.Equal(t, ir.StateBlocked, run.State)
	assert.Equal(t, "Hacker", run.Role)
	assert.False(t, run.Authorized)
	assert.Equal(t, int64(1), run.Seq)
	assert.Equal(t, resp.Data.OutputDigest, run.OutputDigest)
	assert.Equal(t, resp.Data.Trace, ir.TraceLines(run.Trace))
}

func TestRunSeqContinuesAcrossInvocations(t *testing.T) {
	dir := writePipeline(t, defaultPipelineCUE)
	dbPath := filepath.Join(t.TempDir(), "hdx.db")

	for i := 0; i < 3; i++ {
		_, err := execute(NewRunCommand(&RootOptions{Format: "json"}),
			dir, "--data", packet, "--credential", "nope", "--db", dbPath)
		require.NoError(t, err)
	}

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	runs, err := st.ListRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 3)
	for i, r := range runs {
		assert.Equal(t, int64(i+1), r.Seq)
	}
}

func TestRunMissingPayload(t *testing.T) {
	dir := writePipeline(t, defaultPipelineCUE)

	_, err := execute(NewRunCommand(&RootOptions{Format: "text"}), dir, "--credential", "x")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "one of --input or --data is required")
}

func TestRunBothPayloadSources(t *testing.T) {
	dir := writePipeline(t, defaultPipelineCUE)

	_, err := execute(NewRunCommand(&RootOptions{Format: "text"}), dir, "--data", "a", "--input", "b", "--credential", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestRunMissingCredential(t *testing.T) {
	dir := writePipeline(t, defaultPipelineCUE)
	t.Setenv(CredentialEnv, "")

	out, err := execute(NewRunCommand(&RootOptions{Format: "json"}), dir, "--data", packet)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeCredential, resp.Error.Code)
	assert.NotContains(t, out, "SECURE_ROOT_KEY")
}

func TestRunNonExistentPipelineDir(t *testing.T) {
	out, err := execute(NewRunCommand(&RootOptions{Format: "text"}), "/nonexistent/pipeline", "--data", packet, "--credential", "x")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeNotFound)
}

func TestRunInvalidPipeline(t *testing.T) {
	dir := writePipeline(t, `package hdx

pipeline: bad: {
	hash: "sha256"
	stages: [{name: "a", max_depth: 1}, {name: "a", max_depth: 1}]
}
`)

	out, err := execute(NewRunCommand(&RootOptions{Format: "text"}), dir, "--data", packet, "--credential", "x")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "E104")
}

func TestReadPayload(t *testing.T) {
	b, err := readPayload("", "inline", nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("inline"), b)

	b, err = readPayload("-", "", strings.NewReader("piped"))
	require.NoError(t, err)
	assert.Equal(t, []byte("piped"), b)

	_, err = readPayload(filepath.Join(t.TempDir(), "absent"), "", nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
