package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/ir"
	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunToken string // optional - list all runs when empty
	State    string // optional - filter listed runs by final state
}

// RunSummaryRow is one line of the run listing.
type RunSummaryRow struct {
	Seq        int64    `json:"seq"`
	RunToken   string   `json:"run_token"`
	Role       string   `json:"role"`
	Authorized bool     `json:"authorized"`
	State      ir.State `json:"state"`
	Length     int64    `json:"length"`
}

// TraceResult holds the forensic view of one run.
type TraceResult struct {
	Run   ir.RunRecord `json:"run"`
	Lines []string     `json:"lines"`
	Stats TraceStats   `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Executed   int  `json:"executed"`
	Decayed    int  `json:"decayed"`
	KillSwitch bool `json:"kill_switch"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect recorded runs",
		Long: `Inspect runs recorded with "hdx run --db".

Without --run, lists every recorded run in seq order. With --run, shows
the full record of that run and its stage-by-stage trace.

Examples:
  hdx trace --db ./hdx.db
  hdx trace --db ./hdx.db --state BLOCKED
  hdx trace --db ./hdx.db --run 0192... --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunToken, "run", "", "run token to show")
	cmd.Flags().StringVar(&opts.State, "state", "", "only list runs that ended in this state (NORMAL|HONEY|BLOCKED)")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := newFormatter(opts.RootOptions, cmd)

	var filter *ir.State
	if opts.State != "" {
		s, err := ir.ParseState(opts.State)
		if err != nil {
			return reportError(formatter, WrapExitError(ExitCommandError, "invalid --state", err))
		}
		filter = &s
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return reportError(formatter, WrapExitError(ExitCommandError, "failed to open database", err))
	}
	defer closeStore(st)

	if opts.RunToken == "" {
		runs, err := st.ListRuns(ctx)
		if err != nil {
			return reportError(formatter, WrapExitError(ExitCommandError, "failed to list runs", err))
		}
		return outputRunList(formatter, filterRuns(runs, filter))
	}

	run, err := st.ReadRun(ctx, opts.RunToken)
	if errors.Is(err, store.ErrRunNotFound) {
		_ = formatter.Error(ErrCodeRunNotFound, fmt.Sprintf("no run with token %s", opts.RunToken), nil)
		return WrapExitError(ExitCommandError, ErrCodeRunNotFound, err)
	}
	if err != nil {
		return reportError(formatter, WrapExitError(ExitCommandError, "failed to read run", err))
	}

	result := TraceResult{
		Run:   run,
		Lines: ir.TraceLines(run.Trace),
		Stats: traceStats(run.Trace),
	}

	if opts.Format == "json" {
		return writeJSON(formatter.Writer, CLIResponse{Status: "ok", Data: result, RunToken: run.RunToken})
	}
	outputTraceText(formatter.Writer, result, opts.Verbose)
	return nil
}

func filterRuns(runs []ir.RunRecord, state *ir.State) []RunSummaryRow {
	rows := []RunSummaryRow{}
	for _, r := range runs {
		if state != nil && r.State != *state {
			continue
		}
		rows = append(rows, RunSummaryRow{
			Seq:        r.Seq,
			RunToken:   r.RunToken,
			Role:       r.Role,
			Authorized: r.Authorized,
			State:      r.State,
			Length:     r.Length,
		})
	}
	return rows
}

func traceStats(trace []ir.TraceRecord) TraceStats {
	var stats TraceStats
	for _, r := range trace {
		switch {
		case r.Kind == ir.KindKillSwitch:
			stats.KillSwitch = true
		case r.IsDecay():
			stats.Executed++
			stats.Decayed++
		default:
			stats.Executed++
		}
	}
	return stats
}

func outputRunList(formatter *OutputFormatter, rows []RunSummaryRow) error {
	if formatter.Format == "json" {
		return writeJSON(formatter.Writer, CLIResponse{Status: "ok", Data: rows})
	}

	w := formatter.Writer
	if len(rows) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	for _, r := range rows {
		fmt.Fprintf(w, "%4d  %s  %-8s %-7s %s (%d bytes)\n",
			r.Seq, r.RunToken, r.State, authLabel(r.Authorized), r.Role, r.Length)
	}
	return nil
}

func outputTraceText(w io.Writer, result TraceResult, verbose bool) {
	run := result.Run

	fmt.Fprintf(w, "Run: %s (seq %d)\n", run.RunToken, run.Seq)
	fmt.Fprintf(w, "Role: %s [%s]\n", run.Role, authLabel(run.Authorized))
	fmt.Fprintf(w, "State: %s\n", run.State)
	fmt.Fprintf(w, "Stages: %d executed of %d, %d decayed\n", result.Stats.Executed, run.StageCount, result.Stats.Decayed)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Trace:")
	for _, line := range result.Lines {
		fmt.Fprintf(w, "  %s\n", line)
	}

	if verbose {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "ID: %s\n", run.ID)
		fmt.Fprintf(w, "Spec hash: %s\n", run.SpecHash)
		fmt.Fprintf(w, "Input digest: %s\n", run.InputDigest)
		fmt.Fprintf(w, "Output digest: %s\n", run.OutputDigest)
		fmt.Fprintf(w, "Trace hash: %s\n", run.TraceHash)
		fmt.Fprintf(w, "Engine: %s, IR: %s\n", run.EngineVersion, run.IRVersion)
	}
}

func authLabel(authorized bool) string {
	if authorized {
		return "granted"
	}
	return "denied"
}
