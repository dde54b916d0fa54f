package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/relay/internal/compiler"
	"github.com/roach88/relay/internal/ir"
	"github.com/roach88/relay/internal/runner"
	"github.com/roach88/relay/internal/store"
	"github.com/roach88/relay/internal/testutil"
)

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation. The
// script executes on the real runner with a capture emitter and a fixed
// run token, so re-runs produce identical traces.
//
// Execution flow:
//  1. Create fresh in-memory database
//  2. Resolve the script (inline or compiled from script_file)
//  3. Validate the script; validation errors fail the scenario
//  4. Execute the script on the runner
//  5. Evaluate the expect clause and assertions
//
// Run returns an error only for infrastructure failures (store, script
// file access). Expectation and assertion mismatches mark the result as
// failed instead.
func Run(scenario *Scenario) (*Result, error) {
	// Create fresh in-memory SQLite database
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	script, err := scenario.ResolveScript()
	if err != nil {
		return nil, err
	}

	result := NewResult()

	// Surface authoring mistakes as coded validation errors rather than
	// a runner abort. All errors are collected, not just the first.
	if verrs := compiler.Validate(script); len(verrs) > 0 {
		for _, verr := range verrs {
			result.AddError(verr.Error())
		}
		return result, nil
	}

	token := scenario.RunToken
	if token == "" {
		token = DefaultRunToken
	}

	capture := runner.NewCaptureEmitter()
	opts := []runner.Option{
		runner.WithStore(st),
		runner.WithEmitter(capture),
		runner.WithTokenGenerator(testutil.NewFixedTokenGenerator(token)),
	}
	if scenario.MaxTurns > 0 {
		opts = append(opts, runner.WithMaxTurns(scenario.MaxTurns))
	}

	ctx := context.Background()
	report, runErr := runner.New(opts...).Run(ctx, script)
	if report == nil {
		return nil, fmt.Errorf("failed to execute script: %w", runErr)
	}

	result.Report = report
	for _, em := range report.Emissions {
		result.AddEmissionTrace(em)
	}

	evaluateExpect(result, scenario.Expect, report, runErr)

	actx := &AssertionContext{
		Store:    st,
		Ctx:      ctx,
		RunToken: report.Token,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

// evaluateExpect checks the report against the scenario's expect clause.
func evaluateExpect(result *Result, expect *ExpectClause, report *runner.Report, runErr error) {
	if expect == nil {
		return
	}

	wantStatus := expect.Status
	if wantStatus == "" {
		wantStatus = string(ir.StatusOK)
	}
	if string(report.Status) != wantStatus {
		detail := ""
		if runErr != nil {
			detail = fmt.Sprintf(" (%v)", runErr)
		}
		result.AddError(fmt.Sprintf("expected status %q, got %q%s", wantStatus, report.Status, detail))
	}

	if expect.FinalValue != nil && report.FinalValue != *expect.FinalValue {
		result.AddError(fmt.Sprintf("expected final value %d, got %d", *expect.FinalValue, report.FinalValue))
	}

	if expect.Error != "" {
		switch {
		case runErr == nil:
			result.AddError(fmt.Sprintf("expected error containing %q, run succeeded", expect.Error))
		case !strings.Contains(runErr.Error(), expect.Error):
			result.AddError(fmt.Sprintf("expected error containing %q, got %q", expect.Error, runErr))
		}
	}

	if expect.Turns > 0 && report.Turns != expect.Turns {
		result.AddError(fmt.Sprintf("expected %d turns, got %d", expect.Turns, report.Turns))
	}
}
