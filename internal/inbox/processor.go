package inbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/authz"
	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/ir"
	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/recorder"
)

// Output file suffixes written to the outbox.
const (
	PayloadSuffix = ".out"
	SummarySuffix = ".run.json"
)

// Summary is written next to each output payload.
type Summary struct {
	Source       string   `json:"source"`
	RunToken     string   `json:"run_token"`
	Seq          int64    `json:"seq"`
	State        ir.State `json:"state"`
	Length       int      `json:"length"`
	OutputDigest string   `json:"output_digest"`
	Trace        []string `json:"trace"`
}

// Processor runs inbox files through a recorder under one authorization
// context and writes the results to an outbox.
type Processor struct {
	rec    *recorder.Recorder
	auth   authz.Authorizer
	outbox string
}

// NewProcessor creates a processor writing to outbox.
func NewProcessor(rec *recorder.Recorder, auth authz.Authorizer, outbox string) *Processor {
	return &Processor{rec: rec, auth: auth, outbox: outbox}
}

// Process handles a single payload file:
// read → record run → write <name>.out and <name>.run.json → remove input.
//
// The input file is left in place if anything fails, so it is picked up
// again on the next start.
func (p *Processor) Process(ctx context.Context, path string) (*Summary, error) {
	// Reject symlinks so inbox entries cannot point at arbitrary files.
	fi, err := os.Lstat(path)
	if err != nil {
		return nil, fmt.Errorf("stat payload: %w", err)
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		return nil, fmt.Errorf("rejected symlink: %s", filepath.Base(path))
	}

	input, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}

	res, run, err := p.rec.Record(ctx, input, p.auth)
	if err != nil {
		return nil, err
	}

	name := filepath.Base(path)
	summary := &Summary{
		Source:       name,
		RunToken:     run.RunToken,
		Seq:          run.Seq,
		State:        res.State,
		Length:       res.Field.Len(),
		OutputDigest: run.OutputDigest,
		Trace:        ir.TraceLines(res.Trace),
	}

	if err := writeAtomic(filepath.Join(p.outbox, name+PayloadSuffix), res.Field.Bytes()); err != nil {
		return nil, fmt.Errorf("write output: %w", err)
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal summary: %w", err)
	}
	if err := writeAtomic(filepath.Join(p.outbox, name+SummarySuffix), data); err != nil {
		return nil, fmt.Errorf("write summary: %w", err)
	}

	if err := os.Remove(path); err != nil {
		return nil, fmt.Errorf("remove payload: %w", err)
	}
	return summary, nil
}

// Handle adapts Process to a watcher Handler, logging failures.
func (p *Processor) Handle(ctx context.Context, path string) {
	summary, err := p.Process(ctx, path)
	if errors.Is(err, fs.ErrNotExist) {
		// Already consumed by an earlier event for the same file.
		slog.Debug("inbox payload gone", "path", path)
		return
	}
	if err != nil {
		slog.Error("inbox payload failed", "path", path, "error", err)
		return
	}
	slog.Info("inbox payload processed",
		"source", summary.Source,
		"run_token", summary.RunToken,
		"state", summary.State.String(),
	)
}

// writeAtomic writes data to path via a .tmp file and rename.
func writeAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write temp: %w", err)
	}
	return os.Rename(tmpPath, path)
}
