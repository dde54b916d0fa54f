package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/relay/internal/ir"
)

// TraceSnapshot captures the complete trace for a scenario execution.
// All fields use canonical JSON serialization for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	RunToken     string       `json:"run_token,omitempty"`
	Status       string       `json:"status"`
	FinalValue   int64        `json:"final_value"`
	Trace        []TraceEvent `json:"trace"`
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical
// JSON serialization. This is required because ir.MarshalCanonical only
// handles plain maps, slices, and primitives.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"kind": event.Kind,
			"seq":  event.Seq,
			"text": event.Text,
			"turn": event.Turn,
		}
		if event.Kind == string(ir.KindValue) {
			eventMap["value"] = event.Value
		}
		traceList[i] = eventMap
	}

	result := map[string]any{
		"scenario_name": s.ScenarioName,
		"status":        s.Status,
		"final_value":   s.FinalValue,
		"trace":         traceList,
	}
	if s.RunToken != "" {
		result["run_token"] = s.RunToken
	}
	return result
}

// snapshotResult builds a TraceSnapshot from an executed scenario result.
func snapshotResult(scenarioName, runToken string, result *Result) TraceSnapshot {
	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		RunToken:     runToken,
		Trace:        result.Trace,
	}
	if result.Report != nil {
		snapshot.Status = string(result.Report.Status)
		snapshot.FinalValue = result.Report.FinalValue
	}
	return snapshot
}

// Snapshot renders the canonical golden bytes for an executed scenario.
// The run token defaults the same way Run defaults it, so snapshots stay
// stable for scenario files that omit run_token.
func Snapshot(scenario *Scenario, result *Result) ([]byte, error) {
	token := scenario.RunToken
	if token == "" {
		token = DefaultRunToken
	}
	snapshot := snapshotResult(scenario.Name, token, result)
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against a golden
// file. The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Golden files serve as the source of truth for expected trace behavior;
// the comparison fails the test via goldie on any byte difference.
//
// Returns an error if scenario execution fails.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}

	traceJSON, err := Snapshot(scenario, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, traceJSON)

	return nil
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := snapshotResult(scenarioName, "", result)

	traceJSON, err := ir.MarshalCanonical(snapshot.toCanonicalMap())
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}
