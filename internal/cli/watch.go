package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/inbox"
	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/recorder"
	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/store"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Inbox      string
	Outbox     string
	Database   string
	Role       string
	Credential string
	Debounce   time.Duration
	Once       bool // process pending files and exit
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch <pipeline-dir>",
		Short: "Run every file dropped into an inbox through a pipeline",
		Long: `Watch an inbox directory and run each new file through the pipeline.

Every payload is recorded in the database. The output payload is written
to <outbox>/<name>.out with a run summary in <outbox>/<name>.run.json, and
the input file is removed. Write payloads atomically (write <name>.tmp,
then rename) so partial files are never picked up.

Examples:
  hdx watch ./pipeline --inbox ./in --outbox ./out --db ./hdx.db
  hdx watch ./pipeline --inbox ./in --outbox ./out --db ./hdx.db --once`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Inbox, "inbox", "", "directory to watch (required)")
	_ = cmd.MarkFlagRequired("inbox")
	cmd.Flags().StringVar(&opts.Outbox, "outbox", "", "directory for outputs (required)")
	_ = cmd.MarkFlagRequired("outbox")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	addAuthFlags(cmd, &opts.Role, &opts.Credential)
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", 200*time.Millisecond, "quiet period before a new file is processed")
	cmd.Flags().BoolVar(&opts.Once, "once", false, "process files already in the inbox, then exit")

	return cmd
}

func runWatch(opts *WatchOptions, pipelineDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	rt, err := loadRunnable(pipelineDir, opts.Role, opts.Credential)
	if err != nil {
		return reportError(formatter, err)
	}

	for _, dir := range []string{opts.Inbox, opts.Outbox} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			_ = formatter.Error(ErrCodeInbox, err.Error(), nil)
			return WrapExitError(ExitCommandError, ErrCodeInbox, err)
		}
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return reportError(formatter, WrapExitError(ExitCommandError, "failed to open database", err))
	}
	defer closeStore(st)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec, err := recorder.New(ctx, rt.pipeline, rt.load.SpecHash, st)
	if err != nil {
		return reportError(formatter, WrapExitError(ExitCommandError, "failed to start recorder", err))
	}

	proc := inbox.NewProcessor(rec, rt.auth, opts.Outbox)

	if opts.Once {
		return drainInbox(ctx, formatter, proc, opts.Inbox)
	}

	slog.Info("watching inbox",
		"inbox", opts.Inbox,
		"outbox", opts.Outbox,
		"pipeline", rt.load.Spec.Name,
		"role", rt.auth.Role(),
	)
	w := inbox.NewWatcher(opts.Inbox, proc.Handle, inbox.WithDebounce(opts.Debounce))
	if err := w.Run(ctx); err != nil {
		_ = formatter.Error(ErrCodeInbox, err.Error(), nil)
		return WrapExitError(ExitCommandError, ErrCodeInbox, err)
	}
	return nil
}

// drainInbox processes the files already in the inbox, in name order.
// Any failed file makes the command exit 1 after the rest are processed.
func drainInbox(ctx context.Context, formatter *OutputFormatter, proc *inbox.Processor, dir string) error {
	paths, err := inbox.ListPending(dir)
	if err != nil {
		_ = formatter.Error(ErrCodeInbox, err.Error(), nil)
		return WrapExitError(ExitCommandError, ErrCodeInbox, err)
	}

	summaries := []*inbox.Summary{}
	failed := 0
	for _, path := range paths {
		summary, err := proc.Process(ctx, path)
		if err != nil {
			failed++
			slog.Error("inbox payload failed", "path", path, "error", err)
			continue
		}
		summaries = append(summaries, summary)
	}

	if formatter.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: summaries}
		if failed > 0 {
			resp.Status = "error"
			resp.Error = &CLIError{Code: ErrCodeInbox, Message: fmt.Sprintf("%d file(s) failed", failed)}
		}
		if err := writeJSON(formatter.Writer, resp); err != nil {
			return err
		}
	} else {
		for _, s := range summaries {
			fmt.Fprintf(formatter.Writer, "%s  %s  %s\n", s.Source, s.RunToken, s.State)
		}
		fmt.Fprintf(formatter.Writer, "Processed %d file(s), %d failed\n", len(summaries), failed)
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d file(s) failed", failed))
	}
	return nil
}
