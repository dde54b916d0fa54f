package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/relay/internal/ir"
	"github.com/roach88/relay/internal/runner"
	"github.com/roach88/relay/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunToken string // optional - specific run only
}

// ReplayRunResult holds the replay result for a single run.
type ReplayRunResult struct {
	RunToken      string   `json:"run_token"`
	Script        string   `json:"script"`
	StoredStatus  string   `json:"stored_status"`
	Emissions     int      `json:"emissions"`
	Deterministic bool     `json:"deterministic"`
	Divergences   []string `json:"divergences,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Runs             []ReplayRunResult `json:"runs"`
	TotalRuns        int               `json:"total_runs"`
	AllDeterministic bool              `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-execute stored runs and verify determinism",
		Long: `Re-execute stored runs and verify their traces are reproducible.

Each run's canonical script is read back from the database and executed
on a fresh loop under a capture emitter. The fresh trace is compared to
the stored one emission by emission (run tokens excluded). Runs that
aborted replay to the same truncated trace.

Runs recorded under a non-default turn quota may replay differently,
since the quota itself is not part of the stored script.

Exit codes:
  0 - All runs replay deterministic
  1 - Determinism verification failed (divergences detected)
  2 - Command error (database not found, etc.)

Examples:
  relay replay --db ./relay.db
  relay replay --db ./relay.db --run test-run-1
  relay replay --db ./relay.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunToken, "run", "", "replay specific run only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	// Open database
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	// Get run tokens to process
	var runTokens []string
	if opts.RunToken != "" {
		runTokens = []string{opts.RunToken}
	} else {
		runTokens, err = st.ListRunTokens(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list run tokens", err)
		}
	}

	if len(runTokens) == 0 {
		if opts.Format == "json" {
			result := ReplayResult{
				Runs:             []ReplayRunResult{},
				TotalRuns:        0,
				AllDeterministic: true,
			}
			return outputReplayJSON(cmd, result)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No runs found in database.")
		return nil
	}

	// Process each run
	result := ReplayResult{
		Runs:             make([]ReplayRunResult, 0, len(runTokens)),
		TotalRuns:        len(runTokens),
		AllDeterministic: true,
	}

	for _, token := range runTokens {
		runResult, err := replayAndVerifyRun(ctx, st, token)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay run %s", token), err)
		}

		result.Runs = append(result.Runs, runResult)
		if !runResult.Deterministic {
			result.AllDeterministic = false
		}
	}

	// Output results
	if opts.Format == "json" {
		return outputReplayJSON(cmd, result)
	}

	return outputReplayText(cmd, result, opts.Verbose)
}

// replayAndVerifyRun re-executes a single stored run and compares traces.
func replayAndVerifyRun(ctx context.Context, st *store.Store, token string) (ReplayRunResult, error) {
	run, err := st.ReadRun(ctx, token)
	if err != nil {
		return ReplayRunResult{}, fmt.Errorf("read run: %w", err)
	}

	scriptJSON, err := st.ReadRunScript(ctx, token)
	if err != nil {
		return ReplayRunResult{}, fmt.Errorf("read run script: %w", err)
	}
	script, err := ir.ParseScript(scriptJSON)
	if err != nil {
		return ReplayRunResult{}, err
	}

	stored, err := st.ReadEmissions(ctx, token)
	if err != nil {
		return ReplayRunResult{}, err
	}

	// Fresh loop, capture emitter, no persistence. A failed chain is
	// expected to fail again; only the trace matters here.
	r := runner.New(
		runner.WithEmitter(runner.NewCaptureEmitter()),
		runner.WithTokenGenerator(runner.NewFixedGenerator("replay-"+token)),
	)
	report, runErr := r.Run(ctx, script)
	if report == nil {
		return ReplayRunResult{}, fmt.Errorf("replay never started: %w", runErr)
	}

	divergences := store.CompareEmissions(stored, report.Emissions)
	divergenceStrings := make([]string, len(divergences))
	for i, d := range divergences {
		divergenceStrings[i] = d.String()
	}

	return ReplayRunResult{
		RunToken:      token,
		Script:        run.ScriptName,
		StoredStatus:  string(run.Status),
		Emissions:     len(stored),
		Deterministic: len(divergences) == 0,
		Divergences:   divergenceStrings,
	}, nil
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(cmd *cobra.Command, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	if !result.AllDeterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_DETERMINISM",
			Message: "determinism verification failed",
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !result.AllDeterministic {
		// Determinism failure = exit code 1
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Replay Summary: %d run(s)\n", result.TotalRuns)
	fmt.Fprintln(w)

	for _, run := range result.Runs {
		status := "✓"
		if !run.Deterministic {
			status = "✗"
		}

		fmt.Fprintf(w, "%s Run: %s\n", status, run.RunToken)

		if verbose {
			fmt.Fprintf(w, "  Script: %s\n", run.Script)
			fmt.Fprintf(w, "  Stored status: %s\n", run.StoredStatus)
			fmt.Fprintf(w, "  Emissions: %d\n", run.Emissions)
		} else {
			fmt.Fprintf(w, "  Script: %s, %d emission(s)\n", run.Script, run.Emissions)
		}

		for _, d := range run.Divergences {
			fmt.Fprintf(w, "  Divergence: %s\n", d)
		}
		fmt.Fprintln(w)
	}

	if result.AllDeterministic {
		fmt.Fprintln(w, "✓ All runs replay deterministic")
		return nil
	}

	fmt.Fprintln(w, "✗ Determinism verification failed")
	// Determinism failure = exit code 1
	return NewExitError(ExitFailure, "determinism verification failed")
}
