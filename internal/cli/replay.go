package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/recorder"
	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database   string
	RunToken   string
	Input      string
	Data       string
	Role       string
	Credential string
}

// ReplayResult holds the outcome of verifying one recorded run.
type ReplayResult struct {
	RunToken     string                 `json:"run_token"`
	Identical    bool                   `json:"identical"`
	Verification *recorder.Verification `json:"verification,omitempty"`
	Mismatches   []recorder.Mismatch    `json:"mismatches,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <pipeline-dir>",
		Short: "Re-run a recorded run and verify it is reproduced",
		Long: `Replay a recorded run against the same pipeline and input.

The database keeps only digests, so the original payload must be supplied
again. The replay must reproduce the recorded spec hash, input and output
digests, final state and trace hash. Nothing is written to the database.

Exit codes:
  0 - Replay identical to the record
  1 - Replay diverged (mismatching fields are listed)
  2 - Command error (database or run not found, etc.)

Examples:
  hdx replay ./pipeline --db ./hdx.db --run 0192... --input packet.bin
  hdx replay ./pipeline --db ./hdx.db --run 0192... --data CONFIDENTIAL_DATA_PACKET --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunToken, "run", "", "run token to verify (required)")
	_ = cmd.MarkFlagRequired("run")
	addPayloadFlags(cmd, &opts.Input, &opts.Data)
	addAuthFlags(cmd, &opts.Role, &opts.Credential)

	return cmd
}

func runReplay(opts *ReplayOptions, pipelineDir string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := newFormatter(opts.RootOptions, cmd)

	rt, err := loadRunnable(pipelineDir, opts.Role, opts.Credential)
	if err != nil {
		return reportError(formatter, err)
	}

	input, err := readPayload(opts.Input, opts.Data, cmd.InOrStdin())
	if err != nil {
		return reportError(formatter, err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return reportError(formatter, WrapExitError(ExitCommandError, "failed to open database", err))
	}
	defer closeStore(st)

	rec, err := recorder.New(ctx, rt.pipeline, rt.load.SpecHash, st)
	if err != nil {
		return reportError(formatter, WrapExitError(ExitCommandError, "failed to start recorder", err))
	}

	result := ReplayResult{RunToken: opts.RunToken}
	verification, err := rec.Verify(ctx, opts.RunToken, input, rt.auth)
	var mismatch *recorder.MismatchError
	switch {
	case errors.As(err, &mismatch):
		result.Mismatches = mismatch.Mismatches
	case errors.Is(err, store.ErrRunNotFound):
		_ = formatter.Error(ErrCodeRunNotFound, fmt.Sprintf("no run with token %s", opts.RunToken), nil)
		return WrapExitError(ExitCommandError, ErrCodeRunNotFound, err)
	case err != nil:
		return reportError(formatter, WrapExitError(ExitCommandError, "replay failed", err))
	default:
		result.Identical = true
		result.Verification = verification
	}

	if opts.Format == "json" {
		return outputReplayJSON(formatter, result)
	}
	return outputReplayText(formatter, result)
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(formatter *OutputFormatter, result ReplayResult) error {
	response := CLIResponse{
		Status:   "ok",
		Data:     result,
		RunToken: result.RunToken,
	}

	if !result.Identical {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeReplayFailed,
			Message: "replay diverged from the recorded run",
		}
	}

	if err := writeJSON(formatter.Writer, response); err != nil {
		return err
	}

	if !result.Identical {
		// Divergence = exit code 1
		return NewExitError(ExitFailure, "replay diverged from the recorded run")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(formatter *OutputFormatter, result ReplayResult) error {
	w := formatter.Writer

	if result.Identical {
		v := result.Verification
		fmt.Fprintf(w, "✓ Run %s replayed identically\n", result.RunToken)
		fmt.Fprintf(w, "  State: %s\n", v.State)
		fmt.Fprintf(w, "  Output digest: %s\n", v.OutputDigest)
		fmt.Fprintf(w, "  Trace hash: %s\n", v.TraceHash)
		return nil
	}

	fmt.Fprintf(w, "✗ Run %s diverged\n\n", result.RunToken)
	for _, m := range result.Mismatches {
		fmt.Fprintf(w, "  %s\n    recorded: %s\n    replayed: %s\n", m.Field, m.Recorded, m.Replayed)
	}
	// Divergence = exit code 1
	return NewExitError(ExitFailure, "replay diverged from the recorded run")
}
