package cli

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/authz"
	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/compiler"
	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/engine"
	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/ir"
	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/recorder"
	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/store"
)

// CredentialEnv is read when --credential is not given.
const CredentialEnv = "HDX_CREDENTIAL"

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Input      string // payload file, "-" for stdin
	Data       string // inline payload
	Out        string // write the output payload here
	Role       string
	Credential string
	Database   string // record the run when set
}

// RunSummary is the reported outcome of one run.
type RunSummary struct {
	RunToken     string   `json:"run_token,omitempty"`
	RunID        string   `json:"run_id,omitempty"`
	State        ir.State `json:"state"`
	Length       int      `json:"length"`
	OutputDigest string   `json:"output_digest"`
	Output       string   `json:"output,omitempty"` // hex, omitted when written to --out
	Trace        []string `json:"trace"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <pipeline-dir>",
		Short: "Run a payload through a pipeline",
		Long: `Run one payload through the pipeline defined in a CUE directory.

The credential is taken from --credential or the HDX_CREDENTIAL environment
variable. With --db the run is recorded and can be verified later with
"hdx replay". The final state is reported but never changes the exit code.

Examples:
  hdx run ./pipeline --data CONFIDENTIAL_DATA_PACKET --role Admin --credential SECURE_ROOT_KEY_99X
  hdx run ./pipeline --input packet.bin --out packet.out --db ./hdx.db
  cat packet.bin | hdx run ./pipeline --input - --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(opts, args[0], cmd)
		},
	}

	addPayloadFlags(cmd, &opts.Input, &opts.Data)
	addAuthFlags(cmd, &opts.Role, &opts.Credential)
	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "write the output payload to this file")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run in this SQLite database")

	return cmd
}

func runPipeline(opts *RunOptions, pipelineDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	rt, err := loadRunnable(pipelineDir, opts.Role, opts.Credential)
	if err != nil {
		return reportError(formatter, err)
	}

	input, err := readPayload(opts.Input, opts.Data, cmd.InOrStdin())
	if err != nil {
		return reportError(formatter, err)
	}

	var (
		res     engine.Result
		summary RunSummary
	)
	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return reportError(formatter, WrapExitError(ExitCommandError, "failed to open database", err))
		}
		defer closeStore(st)

		rec, err := recorder.New(cmd.Context(), rt.pipeline, rt.load.SpecHash, st)
		if err != nil {
			return reportError(formatter, WrapExitError(ExitCommandError, "failed to start recorder", err))
		}

		var run ir.RunRecord
		res, run, err = rec.Record(cmd.Context(), input, rt.auth)
		if err != nil {
			return reportError(formatter, WrapExitError(ExitCommandError, "failed to record run", err))
		}
		summary.RunToken = run.RunToken
		summary.RunID = run.ID
	} else {
		res = rt.pipeline.Run(input, rt.auth)
	}

	summary.State = res.State
	summary.Length = res.Field.Len()
	summary.OutputDigest = res.Field.Digest()
	summary.Trace = ir.TraceLines(res.Trace)

	if opts.Out != "" {
		if err := os.WriteFile(opts.Out, res.Field.Bytes(), 0644); err != nil {
			return reportError(formatter, WrapExitError(ExitCommandError, "writing output", err))
		}
	} else {
		summary.Output = hex.EncodeToString(res.Field.Bytes())
	}

	if formatter.Format == "json" {
		return writeJSON(formatter.Writer, CLIResponse{Status: "ok", Data: summary, RunToken: summary.RunToken})
	}
	printRunSummary(formatter.Writer, summary, opts.Out)
	return nil
}

func printRunSummary(w io.Writer, s RunSummary, outFile string) {
	if s.RunToken != "" {
		fmt.Fprintf(w, "Run: %s\n", s.RunToken)
	}
	fmt.Fprintf(w, "State: %s\n", s.State)
	fmt.Fprintln(w, "Trace:")
	for _, line := range s.Trace {
		fmt.Fprintf(w, "  %s\n", line)
	}
	if outFile != "" {
		fmt.Fprintf(w, "Wrote %d bytes to %s\n", s.Length, outFile)
		return
	}
	fmt.Fprintf(w, "Output: %s\n", s.Output)
}

// runnable is a loaded pipeline plus the caller's authorization.
type runnable struct {
	load     *LoadResult
	pipeline *engine.Pipeline
	auth     *authz.Context
}

// loadRunnable loads the pipeline in dir, builds it and authorizes the
// caller against the pipeline's verifier.
func loadRunnable(dir, role, credential string) (*runnable, error) {
	load, err := LoadPipeline(dir)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load pipeline", err)
	}
	slog.Debug("pipeline loaded", "dir", dir, "files", load.FileCount, "spec_hash", load.SpecHash)

	p, err := compiler.Build(load.Spec)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid pipeline", err)
	}

	verifier, err := compiler.NewVerifier(load.Spec)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid pipeline", err)
	}

	if credential == "" {
		credential = os.Getenv(CredentialEnv)
	}
	auth, err := authz.New(role, credential, verifier)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "credential rejected", err)
	}

	return &runnable{load: load, pipeline: p, auth: auth}, nil
}

// readPayload returns the inline payload, or the contents of path
// ("-" reads stdin). Exactly one source must be given.
func readPayload(path, data string, stdin io.Reader) ([]byte, error) {
	switch {
	case path != "" && data != "":
		return nil, NewExitError(ExitCommandError, "--input and --data are mutually exclusive")
	case data != "":
		return []byte(data), nil
	case path == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to read stdin", err)
		}
		return b, nil
	case path != "":
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to read input", err)
		}
		return b, nil
	default:
		return nil, NewExitError(ExitCommandError, "one of --input or --data is required")
	}
}

func addPayloadFlags(cmd *cobra.Command, input, data *string) {
	cmd.Flags().StringVarP(input, "input", "i", "", `payload file ("-" for stdin)`)
	cmd.Flags().StringVar(data, "data", "", "inline payload")
}

func addAuthFlags(cmd *cobra.Command, role, credential *string) {
	cmd.Flags().StringVar(role, "role", "anonymous", "requester role recorded with the run")
	cmd.Flags().StringVar(credential, "credential", "", "credential (default $"+CredentialEnv+")")
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// reportError prints err in the configured format and returns it as an
// ExitError (ExitCommandError unless err already carries a code).
func reportError(formatter *OutputFormatter, err error) error {
	code := ErrCodeGeneric
	var (
		loadErr  *LoadError
		validErr compiler.ValidationError
	)
	switch {
	case errors.As(err, &loadErr):
		code = loadErr.Code
	case errors.As(err, &validErr):
		code = validErr.Code
	case authz.IsValidationError(err):
		code = ErrCodeCredential
	}
	_ = formatter.Error(code, err.Error(), nil)

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	return WrapExitError(ExitCommandError, "command failed", err)
}

func closeStore(st *store.Store) {
	if err := st.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}
