package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/ir"
)

// ErrRunNotFound is returned when no run matches the requested token or ID.
var ErrRunNotFound = errors.New("run not found")

const runColumns = `id, run_token, seq, role, authorized, spec_hash, input_digest, output_digest,
	length, stage_count, state, trace_hash, engine_version, ir_version`

// ReadRun returns the run recorded under a run token, including its trace.
// Returns ErrRunNotFound if no such run exists.
func (s *Store) ReadRun(ctx context.Context, runToken string) (ir.RunRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE run_token = ?`, runToken)
	return s.readRunRow(ctx, row)
}

// ReadRunByID returns the run with the given content-addressed ID.
// Returns ErrRunNotFound if no such run exists.
func (s *Store) ReadRunByID(ctx context.Context, id string) (ir.RunRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	return s.readRunRow(ctx, row)
}

func (s *Store) readRunRow(ctx context.Context, row *sql.Row) (ir.RunRecord, error) {
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.RunRecord{}, ErrRunNotFound
	}
	if err != nil {
		return ir.RunRecord{}, err
	}

	run.Trace, err = s.ReadTrace(ctx, run.ID)
	if err != nil {
		return ir.RunRecord{}, err
	}
	return run, nil
}

// ListRuns returns all runs without their traces, ordered by
// seq ASC, id ASC COLLATE BINARY. Returns an empty slice (not nil) for an
// empty store.
func (s *Store) ListRuns(ctx context.Context) ([]ir.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []ir.RunRecord{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadTrace returns the trace records of a run in trace order.
// Returns an empty slice (not nil) if the run has no records.
func (s *Store) ReadTrace(ctx context.Context, runID string) ([]ir.TraceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, stage_index, outcome, state
		FROM trace_records
		WHERE run_id = ?
		ORDER BY position ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query trace: %w", err)
	}
	defer rows.Close()

	trace := []ir.TraceRecord{}
	for rows.Next() {
		var (
			rec     ir.TraceRecord
			kind    string
			outcome string
			state   string
		)
		if err := rows.Scan(&kind, &rec.Index, &outcome, &state); err != nil {
			return nil, fmt.Errorf("scan trace record: %w", err)
		}
		rec.Kind = ir.RecordKind(kind)
		rec.Outcome = ir.Outcome(outcome)
		if rec.State, err = ir.ParseState(state); err != nil {
			return nil, fmt.Errorf("scan trace record: %w", err)
		}
		trace = append(trace, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trace: %w", err)
	}
	return trace, nil
}

// LastSeq returns the highest recorded seq, or 0 for an empty store.
// Used to resume the logical clock across restarts.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM runs`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("query last seq: %w", err)
	}
	return seq.Int64, nil
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (ir.RunRecord, error) {
	var (
		run   ir.RunRecord
		state string
	)
	err := row.Scan(
		&run.ID,
		&run.RunToken,
		&run.Seq,
		&run.Role,
		&run.Authorized,
		&run.SpecHash,
		&run.InputDigest,
		&run.OutputDigest,
		&run.Length,
		&run.StageCount,
		&state,
		&run.TraceHash,
		&run.EngineVersion,
		&run.IRVersion,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ir.RunRecord{}, err
		}
		return ir.RunRecord{}, fmt.Errorf("scan run: %w", err)
	}
	if run.State, err = ir.ParseState(state); err != nil {
		return ir.RunRecord{}, fmt.Errorf("scan run: %w", err)
	}
	return run, nil
}
