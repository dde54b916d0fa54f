package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/relay/internal/ir"
	"github.com/roach88/relay/internal/runner"
	"github.com/roach88/relay/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database   string
	ScriptName string
	MaxTurns   int

	// Tokens allows overriding the run token generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	Tokens runner.TokenGenerator
}

// RunReport is the JSON payload for one completed run.
type RunReport struct {
	Token      string   `json:"token"`
	Script     string   `json:"script"`
	ScriptHash string   `json:"script_hash"`
	Status     string   `json:"status"`
	FinalValue int64    `json:"final_value"`
	Turns      int64    `json:"turns"`
	Lines      []string `json:"lines"`
	Error      string   `json:"error,omitempty"`
}

// RunSummary wraps the reports of a run invocation.
type RunSummary struct {
	Runs []RunReport `json:"runs"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [script-dir]",
		Short: "Run chain scripts on the event loop",
		Long: `Run chain scripts on the single-threaded event loop.

With no arguments the built-in countup script runs: the counter starts
at zero and three chained increments emit begin, 1, 2, 3, end. With a
script directory every script found there runs in name order.

In text format stdout carries the emission lines and nothing else.
Pass --db to persist run traces for later trace and replay.

Example:
  relay run
  relay run ./scripts --db ./relay.db
  relay run ./scripts --script countup --max-turns 16`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) > 0 {
				dir = args[0]
			}
			return runScripts(opts, dir, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (runs are persisted when set)")
	cmd.Flags().StringVar(&opts.ScriptName, "script", "", "run only the named script")
	cmd.Flags().IntVar(&opts.MaxTurns, "max-turns", 0, "turn quota per run (0 uses the default)")

	return cmd
}

func runScripts(opts *RunOptions, dir string, cmd *cobra.Command) error {
	scripts, err := resolveScripts(opts, dir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to resolve scripts", err)
	}
	slog.Info("scripts resolved", "count", len(scripts))

	// Open database when persistence is requested (create if not exists)
	var st *store.Store
	if opts.Database != "" {
		slog.Info("opening database", "path", opts.Database)
		st, err = store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()
	}

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	jsonOut := opts.Format == "json"

	runnerOpts := []runner.Option{}
	if st != nil {
		runnerOpts = append(runnerOpts, runner.WithStore(st))
	}
	if opts.MaxTurns > 0 {
		runnerOpts = append(runnerOpts, runner.WithMaxTurns(opts.MaxTurns))
	}
	if opts.Tokens != nil {
		runnerOpts = append(runnerOpts, runner.WithTokenGenerator(opts.Tokens))
	}
	if jsonOut {
		// Emission lines travel inside the JSON envelope, not stdout.
		runnerOpts = append(runnerOpts, runner.WithEmitter(runner.NewCaptureEmitter()))
	} else {
		runnerOpts = append(runnerOpts, runner.WithEmitter(runner.NewConsoleEmitter(cmd.OutOrStdout())))
	}
	r := runner.New(runnerOpts...)

	var (
		reports []RunReport
		failed  int
	)
	for _, script := range scripts {
		report, runErr := r.Run(ctx, script)
		if report == nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("script %q failed to start", script.Name), runErr)
		}
		reports = append(reports, newRunReport(report))
		if runErr != nil {
			failed++
			slog.Error("chain aborted", "script", script.Name, "token", report.Token, "error", runErr)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		slog.Info("chain finished",
			"script", script.Name,
			"token", report.Token,
			"final_value", report.FinalValue,
			"turns", report.Turns,
		)
	}

	if jsonOut {
		formatter := &OutputFormatter{
			Format:    opts.Format,
			Writer:    cmd.OutOrStdout(),
			ErrWriter: cmd.ErrOrStderr(),
			Verbose:   opts.Verbose,
		}
		if failed > 0 {
			msg := fmt.Sprintf("%d of %d chains aborted", failed, len(reports))
			if err := formatter.Error("E_RUN_FAILED", msg, RunSummary{Runs: reports}); err != nil {
				return err
			}
			return NewExitError(ExitFailure, msg)
		}
		return formatter.Success(RunSummary{Runs: reports})
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d chains aborted", failed, len(reports)))
	}
	return nil
}

// resolveScripts picks the scripts a run invocation targets. No
// directory means the built-in countup script.
func resolveScripts(opts *RunOptions, dir string) ([]ir.Script, error) {
	var scripts []ir.Script
	if dir == "" {
		scripts = []ir.Script{runner.DefaultScript()}
	} else {
		loadResult, loadErrors := LoadScripts(dir, LoadModeFailFast)
		if len(loadErrors) > 0 {
			return nil, loadErrors[0]
		}
		scripts = loadResult.Scripts
	}

	if opts.ScriptName != "" {
		for _, s := range scripts {
			if s.Name == opts.ScriptName {
				return []ir.Script{s}, nil
			}
		}
		return nil, fmt.Errorf("script %q not found", opts.ScriptName)
	}

	return scripts, nil
}

func newRunReport(r *runner.Report) RunReport {
	rep := RunReport{
		Token:      r.Token,
		Script:     r.ScriptName,
		ScriptHash: r.ScriptHash,
		Status:     string(r.Status),
		FinalValue: r.FinalValue,
		Turns:      r.Turns,
		Lines:      r.Lines(),
	}
	if r.Err != nil {
		rep.Error = r.Err.Error()
	}
	return rep
}
