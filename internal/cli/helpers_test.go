package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const (
	packet = "CONFIDENTIAL_DATA_PACKET"

	// Outputs for packet through the default five-stage pipeline.
	authorizedHex = "16e51bec1cee10e401e314e60aee14fe14f505eb16e110fe"
	deniedHex     = "55ceee9309006a1949ff6d889b5caa0e3c89c51309ceaa14"

	// sha256("s3cret")
	secretDigest = "1ec1c26b50d5d3c58d9583181af8076655fe00756bf7285940ba3670f99fcba0"
)

const defaultPipelineCUE = `package hdx

pipeline: hdx: {
	hash: "sha256"
	stages: [for i in [0, 1, 2, 3, 4] {name: "Op_\(i)", max_depth: 10}]
}
`

// writePipeline writes src as pipeline.cue in a fresh directory.
func writePipeline(t *testing.T, src string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "pipeline")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pipeline.cue"), []byte(src), 0644))
	return dir
}

// execute runs cmd with args and returns everything written to its output.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
