package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relay/internal/ir"
)

// createTestScript creates a minimal CUE script file for testing.
func createTestScript(t *testing.T, dir, name string) string {
	t.Helper()
	scriptsDir := filepath.Join(dir, "scripts")
	if err := os.MkdirAll(scriptsDir, 0755); err != nil {
		t.Fatal(err)
	}
	scriptPath := filepath.Join(scriptsDir, name)
	content := `script: countup: {
	start: 0
	steps: [{op: "increment"}]
}
`
	if err := os.WriteFile(scriptPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return scriptPath
}

func writeScenario(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, `
name: test_scenario
description: "Test scenario for validation"
run_token: run-test-001
script:
  name: countup
  start: 0
  steps:
    - op: increment
    - op: add
      amount: 2
expect:
  status: ok
  final_value: 3
assertions:
  - type: trace_contains
    line: "3"
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "Test scenario for validation", scenario.Description)
	assert.Equal(t, "run-test-001", scenario.RunToken)
	require.NotNil(t, scenario.Script)
	assert.Equal(t, "countup", scenario.Script.Name)
	assert.Equal(t, int64(0), scenario.Script.Start)
	require.Len(t, scenario.Script.Steps, 2)
	assert.Equal(t, ir.StepIncrement, scenario.Script.Steps[0].Op)
	assert.Equal(t, ir.StepAdd, scenario.Script.Steps[1].Op)
	assert.Equal(t, int64(2), scenario.Script.Steps[1].Amount)
	require.NotNil(t, scenario.Expect)
	assert.Equal(t, "ok", scenario.Expect.Status)
	require.NotNil(t, scenario.Expect.FinalValue)
	assert.Equal(t, int64(3), *scenario.Expect.FinalValue)
	assert.Len(t, scenario.Assertions, 1)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_MissingName(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, `
description: "Missing name"
script:
  name: countup
  steps:
    - op: increment
expect:
  status: ok
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")
}

func TestLoadScenario_MissingDescription(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, `
name: test
script:
  name: countup
  steps:
    - op: increment
expect:
  status: ok
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "description is required")
}

func TestLoadScenario_MissingScript(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, `
name: test
description: "No script at all"
expect:
  status: ok
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "script or script_file is required")
}

func TestLoadScenario_ScriptAndScriptFileExclusive(t *testing.T) {
	dir := t.TempDir()
	scriptPath := createTestScript(t, dir, "countup.cue")
	path := writeScenario(t, dir, `
name: test
description: "Both script forms"
script:
  name: countup
  steps:
    - op: increment
script_file: `+scriptPath+`
expect:
  status: ok
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestLoadScenario_ScriptFileNotFound(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, `
name: test
description: "Dangling script reference"
script_file: `+filepath.Join(dir, "missing.cue")+`
expect:
  status: ok
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "script file not found")
}

func TestLoadScenario_MissingExpectAndAssertions(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, `
name: test
description: "Checks nothing"
script:
  name: countup
  steps:
    - op: increment
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expect or assertions list is required")
}

func TestLoadScenario_AssertionsOnly(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, `
name: test
description: "Assertions without expect clause"
script:
  name: countup
  steps:
    - op: increment
assertions:
  - type: stamps_monotonic
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Nil(t, scenario.Expect)
	assert.Len(t, scenario.Assertions, 1)
}

func TestLoadScenario_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, `
name: test
  description: bad indentation
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_UnknownFieldsRejected(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, `
name: test
description: "Typo in field name"
script:
  name: countup
  steps:
    - op: increment
expect:
  status: ok
assertion:
  - type: stamps_monotonic
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_InvalidExpectStatus(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, `
name: test
description: "Bad status value"
script:
  name: countup
  steps:
    - op: increment
expect:
  status: exploded
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expect.status")
}

func TestLoadScenario_NegativeMaxTurns(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, `
name: test
description: "Negative quota"
max_turns: -1
script:
  name: countup
  steps:
    - op: increment
expect:
  status: ok
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_turns must be non-negative")
}

func TestLoadScenario_AssertionMissingType(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, `
name: test
description: "Assertion without type"
script:
  name: countup
  steps:
    - op: increment
assertions:
  - line: begin
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assertions[0]: type is required")
}

func TestLoadScenario_TraceLinesRequiresLines(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, `
name: test
description: "trace_lines without lines"
script:
  name: countup
  steps:
    - op: increment
assertions:
  - type: trace_lines
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lines list is required for trace_lines")
}

func TestLoadScenario_TraceContainsRequiresLine(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, `
name: test
description: "trace_contains without line"
script:
  name: countup
  steps:
    - op: increment
assertions:
  - type: trace_contains
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line is required for trace_contains")
}

func TestLoadScenario_TraceCountRequiresLineOrKind(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, `
name: test
description: "trace_count with no filter"
script:
  name: countup
  steps:
    - op: increment
assertions:
  - type: trace_count
    count: 2
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line or kind is required for trace_count")
}

func TestLoadScenario_TraceCountZeroAllowed(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, `
name: test
description: "Zero count asserts absence"
script:
  name: countup
  steps:
    - op: increment
assertions:
  - type: trace_count
    line: end
    count: 0
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, 0, scenario.Assertions[0].Count)
}

func TestLoadScenario_TraceCountNegativeRejected(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, `
name: test
description: "Negative count is nonsense"
script:
  name: countup
  steps:
    - op: increment
assertions:
  - type: trace_count
    line: end
    count: -1
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count must be non-negative")
}

func TestLoadScenario_InvalidAssertionKind(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, `
name: test
description: "Unknown emission kind"
script:
  name: countup
  steps:
    - op: increment
assertions:
  - type: trace_count
    kind: noise
    count: 1
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kind must be")
}

func TestLoadScenario_UnknownAssertionType(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, `
name: test
description: "Unknown assertion"
script:
  name: countup
  steps:
    - op: increment
assertions:
  - type: trace_rhymes
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown assertion type "trace_rhymes"`)
}

func TestLoadScenarioWithBasePath(t *testing.T) {
	dir := t.TempDir()
	createTestScript(t, dir, "countup.cue")
	path := writeScenario(t, dir, `
name: test
description: "Relative script path"
script_file: scripts/countup.cue
expect:
  status: ok
`)

	scenario, err := LoadScenarioWithBasePath(path, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "scripts", "countup.cue"), scenario.ScriptFile)
}

func TestLoadScenarioWithBasePath_AbsolutePathKept(t *testing.T) {
	dir := t.TempDir()
	scriptPath := createTestScript(t, dir, "countup.cue")
	path := writeScenario(t, dir, `
name: test
description: "Absolute script path"
script_file: `+scriptPath+`
expect:
  status: ok
`)

	scenario, err := LoadScenarioWithBasePath(path, "/some/other/base")
	require.NoError(t, err)
	assert.Equal(t, scriptPath, scenario.ScriptFile)
}

func TestResolveScript_Inline(t *testing.T) {
	scenario := &Scenario{
		Name: "inline",
		Script: &ir.Script{
			Name:  "countup",
			Steps: []ir.Step{{Op: ir.StepIncrement}},
		},
	}

	script, err := scenario.ResolveScript()
	require.NoError(t, err)
	assert.Equal(t, "countup", script.Name)
}

func TestResolveScript_FromFile(t *testing.T) {
	dir := t.TempDir()
	scriptPath := createTestScript(t, dir, "countup.cue")
	scenario := &Scenario{Name: "from_file", ScriptFile: scriptPath}

	script, err := scenario.ResolveScript()
	require.NoError(t, err)
	assert.Equal(t, "countup", script.Name)
	require.Len(t, script.Steps, 1)
	assert.Equal(t, ir.StepIncrement, script.Steps[0].Op)
}

func TestResolveScript_Neither(t *testing.T) {
	scenario := &Scenario{Name: "empty"}

	_, err := scenario.ResolveScript()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "script or script_file is required")
}

func TestAssertionConstants(t *testing.T) {
	assert.Equal(t, "trace_lines", AssertTraceLines)
	assert.Equal(t, "trace_contains", AssertTraceContains)
	assert.Equal(t, "trace_count", AssertTraceCount)
	assert.Equal(t, "stamps_monotonic", AssertStampsMonotonic)
	assert.Equal(t, "stored_trace", AssertStoredTrace)
}

func TestLoadExampleScenarios(t *testing.T) {
	tests := []struct {
		name           string
		scenarioFile   string
		wantName       string
		wantAssertions int
	}{
		{
			name:           "countup_basic",
			scenarioFile:   "testdata/scenarios/countup_basic.yaml",
			wantName:       "countup_basic",
			wantAssertions: 3,
		},
		{
			name:           "mixed_arithmetic",
			scenarioFile:   "testdata/scenarios/mixed_arithmetic.yaml",
			wantName:       "mixed_arithmetic",
			wantAssertions: 3,
		},
		{
			name:           "fail_midchain",
			scenarioFile:   "testdata/scenarios/fail_midchain.yaml",
			wantName:       "fail_midchain",
			wantAssertions: 3,
		},
		{
			name:           "custom_markers",
			scenarioFile:   "testdata/scenarios/custom_markers.yaml",
			wantName:       "custom_markers",
			wantAssertions: 2,
		},
		{
			name:           "file_script",
			scenarioFile:   "testdata/scenarios/file_script.yaml",
			wantName:       "file_script",
			wantAssertions: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scenario, err := LoadScenarioWithBasePath(tt.scenarioFile, filepath.Dir(tt.scenarioFile))
			require.NoError(t, err, "Failed to load example scenario %s", tt.scenarioFile)

			assert.Equal(t, tt.wantName, scenario.Name)
			assert.Len(t, scenario.Assertions, tt.wantAssertions)
		})
	}
}
