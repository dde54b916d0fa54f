package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/relay/internal/ir"
)

// ReadRun retrieves a single run by token.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, token string) (ir.Run, error) {
	var run ir.Run
	var status string

	err := s.db.QueryRowContext(ctx, `
		SELECT token, script_name, script_hash, status, final_value, error, runner_version, ir_version
		FROM runs
		WHERE token = ?
	`, token).Scan(
		&run.Token, &run.ScriptName, &run.ScriptHash, &status,
		&run.FinalValue, &run.Error, &run.RunnerVersion, &run.IRVersion,
	)
	if err != nil {
		return ir.Run{}, err
	}

	run.Status = ir.RunStatus(status)
	return run, nil
}

// ReadRunScript retrieves the canonical script JSON recorded for a run.
// Returns sql.ErrNoRows if the run does not exist.
//
// Replay re-executes from this stored form, never from the file the run
// was originally compiled from.
func (s *Store) ReadRunScript(ctx context.Context, token string) ([]byte, error) {
	var scriptJSON string
	err := s.db.QueryRowContext(ctx, `
		SELECT script_json FROM runs WHERE token = ?
	`, token).Scan(&scriptJSON)
	if err != nil {
		return nil, err
	}
	return []byte(scriptJSON), nil
}

// ReadEmissions returns all emissions for a run token.
// Results are ordered deterministically: ORDER BY seq ASC.
//
// Returns an empty slice (not nil) if no emissions exist for the token.
func (s *Store) ReadEmissions(ctx context.Context, token string) ([]ir.Emission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_token, seq, turn, kind, text, value
		FROM emissions
		WHERE run_token = ?
		ORDER BY seq ASC
	`, token)
	if err != nil {
		return nil, fmt.Errorf("query emissions: %w", err)
	}
	defer rows.Close()

	var emissions []ir.Emission
	for rows.Next() {
		em, err := scanEmission(rows)
		if err != nil {
			return nil, err
		}
		emissions = append(emissions, em)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate emissions: %w", err)
	}

	// Return empty slice instead of nil
	if emissions == nil {
		emissions = []ir.Emission{}
	}

	return emissions, nil
}

// ListRunTokens returns all run tokens in the database.
// Results ordered by token COLLATE BINARY; UUIDv7 tokens therefore come
// out in creation order.
func (s *Store) ListRunTokens(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT token FROM runs
		ORDER BY token COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list run tokens: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("scan run token: %w", err)
		}
		tokens = append(tokens, token)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run tokens: %w", err)
	}

	if tokens == nil {
		tokens = []string{}
	}

	return tokens, nil
}

// ListRuns returns all run records.
// Results ordered by token COLLATE BINARY for deterministic listing.
func (s *Store) ListRuns(ctx context.Context) ([]ir.Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT token, script_name, script_hash, status, final_value, error, runner_version, ir_version
		FROM runs
		ORDER BY token COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []ir.Run
	for rows.Next() {
		var run ir.Run
		var status string
		if err := rows.Scan(
			&run.Token, &run.ScriptName, &run.ScriptHash, &status,
			&run.FinalValue, &run.Error, &run.RunnerVersion, &run.IRVersion,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Status = ir.RunStatus(status)
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	if runs == nil {
		runs = []ir.Run{}
	}

	return runs, nil
}

// GetLastSeq returns the highest emission seq recorded for a run.
// Returns 0 for a run with no emissions.
func (s *Store) GetLastSeq(ctx context.Context, token string) (int64, error) {
	var maxSeq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM emissions WHERE run_token = ?
	`, token).Scan(&maxSeq)
	if err != nil {
		return 0, fmt.Errorf("get last seq: %w", err)
	}
	return maxSeq, nil
}

// scanEmission scans a row into an Emission struct.
func scanEmission(rows *sql.Rows) (ir.Emission, error) {
	var em ir.Emission
	var kind string

	if err := rows.Scan(
		&em.RunToken, &em.Seq, &em.Turn, &kind, &em.Text, &em.Value,
	); err != nil {
		return ir.Emission{}, fmt.Errorf("scan emission: %w", err)
	}

	em.Kind = ir.EmissionKind(kind)
	return em, nil
}
