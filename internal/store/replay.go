package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/roach88/relay/internal/ir"
)

// RunState represents the recorded state of a run for recovery analysis.
type RunState struct {
	Run           ir.Run
	Emissions     []ir.Emission
	LastSeq       int64
	ContiguousSeq bool // seq runs 1..LastSeq with no gaps
	Terminal      bool // status is ok or error (false for stuck pending rows)
}

// GetRunState retrieves the complete recorded state of a run.
// Returns sql.ErrNoRows if the run does not exist.
func (s *Store) GetRunState(ctx context.Context, token string) (RunState, error) {
	run, err := s.ReadRun(ctx, token)
	if err != nil {
		return RunState{}, err
	}

	emissions, err := s.ReadEmissions(ctx, token)
	if err != nil {
		return RunState{}, fmt.Errorf("get run state: %w", err)
	}

	state := RunState{
		Run:           run,
		Emissions:     emissions,
		ContiguousSeq: true,
		Terminal:      run.Status != ir.StatusPending,
	}

	// Emissions arrive ordered by seq; a gap means rows were lost.
	for i, em := range emissions {
		if em.Seq != int64(i+1) {
			state.ContiguousSeq = false
		}
		if em.Seq > state.LastSeq {
			state.LastSeq = em.Seq
		}
	}

	return state, nil
}

// FindIncompleteRuns returns all runs still marked pending.
// A pending row belongs to a run that started writing its trace but never
// recorded a terminal status (crash, kill, or lost FinishRun).
func (s *Store) FindIncompleteRuns(ctx context.Context) ([]ir.Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT token, script_name, script_hash, status, final_value, error, runner_version, ir_version
		FROM runs
		WHERE status = 'pending'
		ORDER BY token COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("find incomplete runs: %w", err)
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
			return nil, fmt.Errorf("scan incomplete run: %w", err)
		}
		run.Status = ir.RunStatus(status)
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate incomplete runs: %w", err)
	}

	if runs == nil {
		runs = []ir.Run{}
	}

	return runs, nil
}

// Divergence is one point where a replayed trace disagrees with the
// stored trace.
type Divergence struct {
	Seq    int64  // emission seq where the traces disagree
	Field  string // "length", "seq", "turn", "kind", "text", or "value"
	Stored string
	Fresh  string
}

// String formats the divergence for diagnostics.
func (d Divergence) String() string {
	return fmt.Sprintf("seq %d: %s stored=%q fresh=%q", d.Seq, d.Field, d.Stored, d.Fresh)
}

// CompareEmissions compares a stored trace against a freshly replayed one,
// element by element. Run tokens are ignored: a replay runs under a fresh
// token. An empty result means the traces are identical.
//
// Both slices must already be ordered by seq.
func CompareEmissions(stored, fresh []ir.Emission) []Divergence {
	var divs []Divergence

	n := len(stored)
	if len(fresh) < n {
		n = len(fresh)
	}

	for i := 0; i < n; i++ {
		st, fr := stored[i], fresh[i]
		if st.Seq != fr.Seq {
			divs = append(divs, Divergence{
				Seq:    st.Seq,
				Field:  "seq",
				Stored: strconv.FormatInt(st.Seq, 10),
				Fresh:  strconv.FormatInt(fr.Seq, 10),
			})
		}
		if st.Turn != fr.Turn {
			divs = append(divs, Divergence{
				Seq:    st.Seq,
				Field:  "turn",
				Stored: strconv.FormatInt(st.Turn, 10),
				Fresh:  strconv.FormatInt(fr.Turn, 10),
			})
		}
		if st.Kind != fr.Kind {
			divs = append(divs, Divergence{
				Seq:    st.Seq,
				Field:  "kind",
				Stored: string(st.Kind),
				Fresh:  string(fr.Kind),
			})
		}
		if st.Text != fr.Text {
			divs = append(divs, Divergence{
				Seq:    st.Seq,
				Field:  "text",
				Stored: st.Text,
				Fresh:  fr.Text,
			})
		}
		if st.Value != fr.Value {
			divs = append(divs, Divergence{
				Seq:    st.Seq,
				Field:  "value",
				Stored: strconv.FormatInt(st.Value, 10),
				Fresh:  strconv.FormatInt(fr.Value, 10),
			})
		}
	}

	if len(stored) != len(fresh) {
		divs = append(divs, Divergence{
			Seq:    int64(n + 1),
			Field:  "length",
			Stored: strconv.Itoa(len(stored)),
			Fresh:  strconv.Itoa(len(fresh)),
		})
	}

	return divs
}
