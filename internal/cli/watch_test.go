package cli

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/authz"
	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/inbox"
	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/ir"
	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/store"
)

func TestWatchMissingFlags(t *testing.T) {
	_, err := execute(NewWatchCommand(&RootOptions{Format: "text"}), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestWatchOnceDrainsInbox(t *testing.T) {
	dir := writePipeline(t, defaultPipelineCUE)
	tmp := t.TempDir()
	in := filepath.Join(tmp, "in")
	outbox := filepath.Join(tmp, "out")
	dbPath := filepath.Join(tmp, "hdx.db")
	require.NoError(t, os.MkdirAll(in, 0700))
	for _, name := range []string{"a", "b", "c.tmp"} {
		require.NoError(t, os.WriteFile(filepath.Join(in, name), []byte(packet), 0600))
	}

	out, err := execute(NewWatchCommand(&RootOptions{Format: "json"}),
		dir, "--inbox", in, "--outbox", outbox, "--db", dbPath, "--once",
		"--role", "Admin", "--credential", authz.PlaceholderReference)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   []*inbox.Summary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "a", resp.Data[0].Source)
	assert.Equal(t, "b", resp.Data[1].Source)

	data, err := os.ReadFile(filepath.Join(outbox, "a"+inbox.PayloadSuffix))
	require.NoError(t, err)
	assert.Equal(t, authorizedHex, hex.EncodeToString(data))

	// The partial write is left alone
	pending, err := os.ReadDir(in)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "c.tmp", pending[0].Name())

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	runs, err := st.ListRuns(context.Background())
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestWatchOnceCreatesDirectories(t *testing.T) {
	dir := writePipeline(t, defaultPipelineCUE)
	tmp := t.TempDir()

	out, err := execute(NewWatchCommand(&RootOptions{Format: "text"}),
		dir, "--inbox", filepath.Join(tmp, "in"), "--outbox", filepath.Join(tmp, "out"),
		"--db", filepath.Join(tmp, "hdx.db"), "--once", "--credential", "x")
	require.NoError(t, err)
	assert.Contains(t, out, "Processed 0 file(s), 0 failed")

	for _, d := range []string{"in", "out"} {
		info, err := os.Stat(filepath.Join(tmp, d))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestWatchProcessesNewFiles(t *testing.T) {
	dir := writePipeline(t, defaultPipelineCUE)
	tmp := t.TempDir()
	in := filepath.Join(tmp, "in")
	outbox := filepath.Join(tmp, "out")

	ctx, cancel := context.WithCancel(context.Background())
	cmd := NewWatchCommand(&RootOptions{Format: "text"})
	cmd.SetContext(ctx)
	cmd.SetArgs([]string{dir, "--inbox", in, "--outbox", outbox,
		"--db", filepath.Join(tmp, "hdx.db"), "--debounce", "50ms", "--credential", "nope"})
	done := make(chan error, 1)
	go func() { done <- cmd.Execute() }()

	// Wait for the inbox to be created by the command.
	require.Eventually(t, func() bool {
		_, err := os.Stat(in)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	time.Sleep(200 * time.Millisecond)

	staged := filepath.Join(in, "packet.tmp")
	require.NoError(t, os.WriteFile(staged, []byte(packet), 0600))
	require.NoError(t, os.Rename(staged, filepath.Join(in, "packet")))

	summaryPath := filepath.Join(outbox, "packet"+inbox.SummarySuffix)
	require.Eventually(t, func() bool {
		_, err := os.Stat(summaryPath)
		return err == nil
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop after context cancellation")
	}

	data, err := os.ReadFile(summaryPath)
	require.NoError(t, err)
	var summary inbox.Summary
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, ir.StateBlocked, summary.State)
	assert.Equal(t, "KILL-SWITCH: ENGAGED", summary.Trace[len(summary.Trace)-1])
}
