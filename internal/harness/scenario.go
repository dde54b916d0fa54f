package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/relay/internal/compiler"
	"github.com/roach88/relay/internal/ir"
)

// DefaultRunToken is the fixed token used when a scenario declares none.
// A fixed default keeps golden traces stable across runs.
const DefaultRunToken = "test-run-default"

// Scenario defines a conformance test scenario.
// Scenarios execute one script on the runner and assert on the resulting
// trace and report.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// RunToken is an optional fixed run token for deterministic tests.
	// If empty, DefaultRunToken is used.
	RunToken string `yaml:"run_token,omitempty"`

	// MaxTurns optionally bounds the loop turns the run may consume.
	// Zero uses the runner default.
	MaxTurns int `yaml:"max_turns,omitempty"`

	// Script is the chain script to execute, declared inline.
	// Exactly one of Script and ScriptFile must be set.
	Script *ir.Script `yaml:"script,omitempty"`

	// ScriptFile is a path to a CUE file defining exactly one script.
	// Relative paths resolve against the scenario file location when
	// loaded via LoadScenarioWithBasePath.
	ScriptFile string `yaml:"script_file,omitempty"`

	// Expect specifies report-level expectations (status, final value).
	Expect *ExpectClause `yaml:"expect,omitempty"`

	// Assertions validate the emitted trace.
	// Supported types: trace_lines, trace_contains, trace_count,
	// stamps_monotonic, stored_trace.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// ExpectClause specifies expected run outcome.
type ExpectClause struct {
	// Status is the expected run status: "ok" or "error".
	// Empty defaults to "ok".
	Status string `yaml:"status,omitempty"`

	// FinalValue is the expected counter value after the chain.
	// Nil skips the check.
	FinalValue *int64 `yaml:"final_value,omitempty"`

	// Error is a substring the abort error must contain.
	// Only meaningful with status "error".
	Error string `yaml:"error,omitempty"`

	// Turns is the exact number of loop turns the run must consume.
	// Zero skips the check.
	Turns int64 `yaml:"turns,omitempty"`
}

// Assertion validates the emitted trace.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_lines": Check the exact emitted line sequence
	// - "trace_contains": Check a line appears in the trace
	// - "trace_count": Check a line or kind appears exactly N times
	// - "stamps_monotonic": Check seq contiguity and turn ordering
	// - "stored_trace": Check the persisted trace matches the captured one
	Type string `yaml:"type"`

	// Lines is the expected line sequence (used by trace_lines).
	Lines []string `yaml:"lines,omitempty"`

	// Line is the expected line text (used by trace_contains, trace_count).
	Line string `yaml:"line,omitempty"`

	// Kind filters emissions by kind, "marker" or "value"
	// (used by trace_contains, trace_count).
	Kind string `yaml:"kind,omitempty"`

	// Count is the expected number of occurrences (used by trace_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceLines      = "trace_lines"
	AssertTraceContains   = "trace_contains"
	AssertTraceCount      = "trace_count"
	AssertStampsMonotonic = "stamps_monotonic"
	AssertStoredTrace     = "stored_trace"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the script_file path relative to the provided base path.
// This is useful when scenario files reference scripts using relative paths.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve the script path relative to base path BEFORE validation
	if scenario.ScriptFile != "" && !filepath.IsAbs(scenario.ScriptFile) && basePath != "" {
		scenario.ScriptFile = filepath.Join(basePath, scenario.ScriptFile)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// ResolveScript returns the scenario's script, compiling script_file
// when the script is not declared inline.
func (s *Scenario) ResolveScript() (ir.Script, error) {
	if s.Script != nil {
		return *s.Script, nil
	}
	if s.ScriptFile != "" {
		return compiler.LoadScriptFile(s.ScriptFile)
	}
	return ir.Script{}, fmt.Errorf("scenario %q: script or script_file is required", s.Name)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Script == nil && s.ScriptFile == "" {
		return fmt.Errorf("script or script_file is required")
	}
	if s.Script != nil && s.ScriptFile != "" {
		return fmt.Errorf("script and script_file are mutually exclusive")
	}

	// Validate the script file exists
	if s.ScriptFile != "" {
		if _, err := os.Stat(s.ScriptFile); os.IsNotExist(err) {
			return fmt.Errorf("script file not found: %s", s.ScriptFile)
		}
	}

	if s.MaxTurns < 0 {
		return fmt.Errorf("max_turns must be non-negative")
	}

	// A scenario with neither expectations nor assertions checks nothing
	if s.Expect == nil && len(s.Assertions) == 0 {
		return fmt.Errorf("expect or assertions list is required")
	}

	// Validate expect clause if present
	if s.Expect != nil {
		switch s.Expect.Status {
		case "", string(ir.StatusOK), string(ir.StatusError):
		default:
			return fmt.Errorf("expect.status must be %q or %q", ir.StatusOK, ir.StatusError)
		}
		if s.Expect.Turns < 0 {
			return fmt.Errorf("expect.turns must be non-negative")
		}
	}

	// Validate assertions
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	if a.Kind != "" && a.Kind != string(ir.KindMarker) && a.Kind != string(ir.KindValue) {
		return fmt.Errorf("assertions[%d]: kind must be %q or %q", index, ir.KindMarker, ir.KindValue)
	}

	switch a.Type {
	case AssertTraceLines:
		if len(a.Lines) == 0 {
			return fmt.Errorf("assertions[%d]: lines list is required for trace_lines", index)
		}
	case AssertTraceContains:
		if a.Line == "" {
			return fmt.Errorf("assertions[%d]: line is required for trace_contains", index)
		}
	case AssertTraceCount:
		if a.Line == "" && a.Kind == "" {
			return fmt.Errorf("assertions[%d]: line or kind is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertStampsMonotonic, AssertStoredTrace:
		// No fields beyond type
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
