package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relay/internal/ir"
	"github.com/roach88/relay/internal/runner"
	"github.com/roach88/relay/internal/store"
)

// seedRun executes a script against a store-backed runner so trace and
// replay tests have persisted runs to work with. Failed chains are a
// valid seed, so the run error is not checked here.
func seedRun(t *testing.T, dbPath, token string, script ir.Script) *runner.Report {
	t.Helper()

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	r := runner.New(
		runner.WithStore(st),
		runner.WithEmitter(runner.NewCaptureEmitter()),
		runner.WithTokenGenerator(runner.NewFixedGenerator(token)),
	)
	report, _ := r.Run(context.Background(), script)
	require.NotNil(t, report)
	return report
}

func failScript(message string) ir.Script {
	return ir.Script{
		Name:  "boom",
		Steps: []ir.Step{{Op: ir.StepFail, Message: message}},
	}
}

func TestTraceRun(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "relay.db")
	seedRun(t, dbPath, "trace-test-1", runner.DefaultScript())

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewTraceCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--db", dbPath, "--run", "trace-test-1"})

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "Trace for run: trace-test-1")
	assert.Contains(t, output, "Script: countup")
	assert.Contains(t, output, "Status: ok")
	assert.Contains(t, output, `[seq 1 turn 1] marker "begin"`)
	assert.Contains(t, output, `[seq 2 turn 2] value "1"`)
	assert.Contains(t, output, `[seq 4 turn 4] value "3"`)
	assert.Contains(t, output, `[seq 5 turn 5] marker "end"`)
	assert.Contains(t, output, "Emissions:    5")
	assert.Contains(t, output, "Values:       3")
	assert.Contains(t, output, "Markers:      2")
	assert.Contains(t, output, "Final turn:   5")
}

func TestTraceDigestMatchesStoredEmissions(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "relay.db")
	seedRun(t, dbPath, "trace-test-digest", runner.DefaultScript())

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	emissions, err := st.ReadEmissions(context.Background(), "trace-test-digest")
	require.NoError(t, err)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewTraceCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--db", dbPath, "--run", "trace-test-digest"})

	err = cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Trace digest: "+ir.MustTraceDigest(emissions))
}

func TestTraceFailedRun(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "relay.db")
	seedRun(t, dbPath, "trace-test-fail", failScript("kaput"))

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewTraceCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--db", dbPath, "--run", "trace-test-fail"})

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "Status: error")
	assert.Contains(t, output, "Error: ")
	assert.Contains(t, output, "kaput")

	// Only the begin marker made it out before the chain aborted
	assert.Contains(t, output, "Emissions:    1")
	assert.Contains(t, output, `[seq 1 turn 1] marker "begin"`)
}

func TestTraceListRuns(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "relay.db")
	seedRun(t, dbPath, "run-a", runner.DefaultScript())
	seedRun(t, dbPath, "run-b", failScript("kaput"))

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewTraceCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--db", dbPath})

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "2 run(s):")
	assert.Contains(t, output, "run-a  countup ok final=3")
	assert.Contains(t, output, "run-b  boom error")
}

func TestTraceRunNotFound(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "relay.db")
	seedRun(t, dbPath, "exists", runner.DefaultScript())

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewTraceCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--db", dbPath, "--run", "nope"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `run "nope" not found`)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTraceEmptyDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "relay.db")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewTraceCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--db", dbPath})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "No runs found in database.")
}

func TestTraceJSONFormat(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "relay.db")
	report := seedRun(t, dbPath, "trace-json", runner.DefaultScript())

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewTraceCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--db", dbPath, "--run", "trace-json"})

	err := cmd.Execute()
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "trace-json", resp.Data.RunToken)
	assert.Equal(t, "countup", resp.Data.Script)
	assert.Equal(t, report.ScriptHash, resp.Data.ScriptHash)
	assert.Equal(t, "ok", resp.Data.Status)
	assert.Equal(t, int64(3), resp.Data.FinalValue)

	require.Len(t, resp.Data.Timeline, 5)
	assert.Equal(t, "marker", resp.Data.Timeline[0].Kind)
	assert.Equal(t, "begin", resp.Data.Timeline[0].Text)
	assert.Equal(t, "value", resp.Data.Timeline[3].Kind)
	assert.Equal(t, int64(3), resp.Data.Timeline[3].Value)

	assert.Equal(t, 5, resp.Data.Stats.TotalEmissions)
	assert.Equal(t, 3, resp.Data.Stats.Values)
	assert.Equal(t, 2, resp.Data.Stats.Markers)
	assert.Equal(t, int64(5), resp.Data.Stats.FinalTurn)
	assert.Equal(t, ir.MustTraceDigest(report.Emissions), resp.Data.Stats.TraceDigest)
}

func TestTraceJSONFormatListRuns(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "relay.db")
	seedRun(t, dbPath, "json-list", runner.DefaultScript())

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewTraceCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--db", dbPath})

	err := cmd.Execute()
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   RunListing `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Runs, 1)
	assert.Equal(t, "json-list", resp.Data.Runs[0].Token)
	assert.Equal(t, ir.StatusOK, resp.Data.Runs[0].Status)
}
