package store

import (
	"context"
	"fmt"

	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/ir"
)

// WriteRun inserts a run record and its trace in one transaction.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - rewriting the same run
// is silently ignored and its trace is left untouched.
// Other constraint violations (e.g., a reused run token) return errors.
func (s *Store) WriteRun(ctx context.Context, run ir.RunRecord) error {
	state, err := run.State.MarshalText()
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write run: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, run_token, seq, role, authorized, spec_hash, input_digest, output_digest,
		 length, stage_count, state, trace_hash, engine_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.RunToken,
		run.Seq,
		run.Role,
		run.Authorized,
		run.SpecHash,
		run.InputDigest,
		run.OutputDigest,
		run.Length,
		run.StageCount,
		string(state),
		run.TraceHash,
		run.EngineVersion,
		run.IRVersion,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("write run: rows affected: %w", err)
	}
	if inserted == 0 {
		return nil
	}

	for pos, rec := range run.Trace {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO trace_records (run_id, position, kind, stage_index, outcome, state)
			VALUES (?, ?, ?, ?, ?, ?)
		`,
			run.ID,
			pos,
			string(rec.Kind),
			rec.Index,
			string(rec.Outcome),
			rec.State.String(),
		)
		if err != nil {
			return fmt.Errorf("write trace record %d: %w", pos, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write run: commit: %w", err)
	}
	return nil
}
