package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/relay/internal/ir"
	"github.com/roach88/relay/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunToken string
}

// TraceEvent represents a single emission in the trace timeline.
type TraceEvent struct {
	Seq   int64  `json:"seq"`
	Turn  int64  `json:"turn"`
	Kind  string `json:"kind"`
	Text  string `json:"text"`
	Value int64  `json:"value,omitempty"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalEmissions int    `json:"total_emissions"`
	Values         int    `json:"values"`
	Markers        int    `json:"markers"`
	FinalTurn      int64  `json:"final_turn"`
	TraceDigest    string `json:"trace_digest"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	RunToken   string       `json:"run_token"`
	Script     string       `json:"script"`
	ScriptHash string       `json:"script_hash"`
	Status     string       `json:"status"`
	FinalValue int64        `json:"final_value"`
	Error      string       `json:"error,omitempty"`
	Timeline   []TraceEvent `json:"timeline"`
	Stats      TraceStats   `json:"stats"`
}

// RunListing holds the run inventory shown when no token is given.
type RunListing struct {
	Runs []ir.Run `json:"runs"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect the persisted trace of a run",
		Long: `Inspect the persisted emission trace of a run.

Shows the run's emissions in seq order with their loop turns, plus
summary stats and the trace digest. Without --run the command lists
every run recorded in the database.

Examples:
  relay trace --db ./relay.db
  relay trace --db ./relay.db --run 0190a5e2-1111-7abc-8def-000000000001
  relay trace --db ./relay.db --run test-run-1 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunToken, "run", "", "run token to trace (omit to list runs)")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	// Open database
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	// No token: show the run inventory instead.
	if opts.RunToken == "" {
		return listRuns(ctx, st, opts, cmd)
	}

	run, err := st.ReadRun(ctx, opts.RunToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return NewExitError(ExitCommandError, fmt.Sprintf("run %q not found in %s", opts.RunToken, opts.Database))
		}
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	emissions, err := st.ReadEmissions(ctx, opts.RunToken)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read emissions", err)
	}

	digest, err := ir.TraceDigest(emissions)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to digest trace", err)
	}

	result := buildTraceResult(run, emissions, digest)

	// Output results
	if opts.Format == "json" {
		return outputTraceJSON(cmd, result)
	}

	return outputTraceText(cmd, result)
}

// listRuns prints the run inventory of the database.
func listRuns(ctx context.Context, st *store.Store, opts *TraceOptions, cmd *cobra.Command) error {
	runs, err := st.ListRuns(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	if opts.Format == "json" {
		response := CLIResponse{
			Status: "ok",
			Data:   RunListing{Runs: runs},
		}
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(response)
	}

	w := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found in database.")
		return nil
	}

	fmt.Fprintf(w, "%d run(s):\n", len(runs))
	for _, run := range runs {
		if run.Status == ir.StatusOK {
			fmt.Fprintf(w, "  %s  %s %s final=%d\n", run.Token, run.ScriptName, run.Status, run.FinalValue)
		} else {
			fmt.Fprintf(w, "  %s  %s %s\n", run.Token, run.ScriptName, run.Status)
		}
	}
	return nil
}

// buildTraceResult assembles the trace view from stored rows.
func buildTraceResult(run ir.Run, emissions []ir.Emission, digest string) TraceResult {
	timeline := make([]TraceEvent, 0, len(emissions))
	values, markers := 0, 0
	var finalTurn int64

	for _, em := range emissions {
		timeline = append(timeline, TraceEvent{
			Seq:   em.Seq,
			Turn:  em.Turn,
			Kind:  string(em.Kind),
			Text:  em.Text,
			Value: em.Value,
		})
		switch em.Kind {
		case ir.KindValue:
			values++
		case ir.KindMarker:
			markers++
		}
		if em.Turn > finalTurn {
			finalTurn = em.Turn
		}
	}

	return TraceResult{
		RunToken:   run.Token,
		Script:     run.ScriptName,
		ScriptHash: run.ScriptHash,
		Status:     string(run.Status),
		FinalValue: run.FinalValue,
		Error:      run.Error,
		Timeline:   timeline,
		Stats: TraceStats{
			TotalEmissions: len(emissions),
			Values:         values,
			Markers:        markers,
			FinalTurn:      finalTurn,
			TraceDigest:    digest,
		},
	}
}

// outputTraceJSON outputs the trace result as JSON.
func outputTraceJSON(cmd *cobra.Command, result TraceResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// outputTraceText outputs the trace result as text.
func outputTraceText(cmd *cobra.Command, result TraceResult) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Trace for run: %s\n", result.RunToken)
	fmt.Fprintf(w, "Script: %s (%s)\n", result.Script, result.ScriptHash)
	fmt.Fprintf(w, "Status: %s\n", result.Status)
	if result.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", result.Error)
	}
	fmt.Fprintln(w)

	// Timeline section
	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no emissions)")
	} else {
		for _, event := range result.Timeline {
			fmt.Fprintf(w, "  [seq %d turn %d] %s %q\n", event.Seq, event.Turn, event.Kind, event.Text)
		}
	}
	fmt.Fprintln(w)

	// Stats section
	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Emissions:    %d\n", result.Stats.TotalEmissions)
	fmt.Fprintf(w, "  Values:       %d\n", result.Stats.Values)
	fmt.Fprintf(w, "  Markers:      %d\n", result.Stats.Markers)
	fmt.Fprintf(w, "  Final turn:   %d\n", result.Stats.FinalTurn)
	fmt.Fprintf(w, "  Trace digest: %s\n", result.Stats.TraceDigest)

	return nil
}
