package store

import (
	"context"
	"fmt"

	"github.com/roach88/relay/internal/ir"
)

// WriteRun inserts a run record with its canonical script JSON.
// Uses ON CONFLICT(token) DO NOTHING for idempotency - duplicate tokens are
// silently ignored. Other constraint violations (e.g., CHECK on status)
// will still return errors.
//
// The runner writes the row with status pending before the chain starts;
// FinishRun flips it to the terminal status after the chain settles. A row
// that stays pending marks a run that crashed mid-chain.
func (s *Store) WriteRun(ctx context.Context, run ir.Run, scriptJSON []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(token, script_name, script_hash, script_json, status, final_value, error, runner_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(token) DO NOTHING
	`,
		run.Token,
		run.ScriptName,
		run.ScriptHash,
		string(scriptJSON),
		string(run.Status),
		run.FinalValue,
		run.Error,
		run.RunnerVersion,
		run.IRVersion,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}

	return nil
}

// FinishRun records a run's terminal status and final counter value.
//
// Only pending rows are updated: a run that already reached a terminal
// status keeps it, so replaying a finished run cannot rewrite history.
func (s *Store) FinishRun(ctx context.Context, token string, status ir.RunStatus, finalValue int64, errMsg string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, final_value = ?, error = ?
		WHERE token = ? AND status = 'pending'
	`,
		string(status),
		finalValue,
		errMsg,
		token,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}

	return nil
}

// WriteEmission inserts one observed output line.
// Uses ON CONFLICT DO NOTHING for idempotency - re-writing the same
// (run_token, seq) is silently ignored.
//
// Note: The run referenced by RunToken must exist (foreign key constraint).
func (s *Store) WriteEmission(ctx context.Context, em ir.Emission) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO emissions
		(run_token, seq, turn, kind, text, value)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		em.RunToken,
		em.Seq,
		em.Turn,
		string(em.Kind),
		em.Text,
		em.Value,
	)
	if err != nil {
		return fmt.Errorf("write emission: %w", err)
	}

	return nil
}
