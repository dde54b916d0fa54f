package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relay/internal/ir"
)

func writeScriptFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestCompileValidScripts(t *testing.T) {
	scriptsDir := t.TempDir()
	writeScriptFile(t, scriptsDir, "scripts.cue", `
package test

script: {
	aaa: {
		steps: [{op: "increment"}]
	}
	bbb: {
		start: 40
		steps: [
			{op: "increment"},
			{op: "add", amount: 1},
		]
	}
}
`)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{scriptsDir})

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "✓ Compiled 2 script(s), 3 step(s)")
	assert.Contains(t, output, "aaa: start 0, 1 step(s)")
	assert.Contains(t, output, "bbb: start 40, 2 step(s)")
}

func TestCompileWithOutput(t *testing.T) {
	scriptsDir := t.TempDir()
	writeScriptFile(t, scriptsDir, "scripts.cue", `
package test

script: aaa: {
	steps: [{op: "increment"}]
}
`)

	outPath := filepath.Join(t.TempDir(), "ir.json")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{scriptsDir, "--output", outPath})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Wrote canonical IR to "+outPath)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)

	content := string(data)
	assert.True(t, strings.HasPrefix(content, `{"scripts":[`))
	assert.True(t, strings.HasSuffix(content, "]}\n"))
	assert.Contains(t, content, `"name":"aaa"`)
}

func TestCompileFloatStart(t *testing.T) {
	scriptsDir := t.TempDir()
	writeScriptFile(t, scriptsDir, "bad.cue", `
package test

script: bad: {
	start: 1.5
	steps: [{op: "increment"}]
}
`)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{scriptsDir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	output := buf.String()
	assert.Contains(t, output, "✗ Compilation failed")
	assert.Contains(t, output, ErrCodeIntField)
	assert.Contains(t, output, "float values are forbidden")
}

func TestCompileUnknownOp(t *testing.T) {
	scriptsDir := t.TempDir()
	writeScriptFile(t, scriptsDir, "bad.cue", `
package test

script: bad: {
	steps: [{op: "quadruple"}]
}
`)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{scriptsDir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	output := buf.String()
	assert.Contains(t, output, ErrCodeStepOp)
	assert.Contains(t, output, `unknown op "quadruple"`)
}

func TestCompileAmountOnIncrement(t *testing.T) {
	scriptsDir := t.TempDir()
	writeScriptFile(t, scriptsDir, "bad.cue", `
package test

script: bad: {
	steps: [{op: "increment", amount: 5}]
}
`)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{scriptsDir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	output := buf.String()
	assert.Contains(t, output, ErrCodeStepAmount)
	assert.Contains(t, output, `amount is only valid for op "add"`)
}

func TestCompileNonExistentDir(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"/nonexistent/directory"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "script directory not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCompileEmptyDir(t *testing.T) {
	scriptsDir := t.TempDir()

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{scriptsDir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no CUE files found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCompileJSONFormat(t *testing.T) {
	scriptsDir := t.TempDir()
	writeScriptFile(t, scriptsDir, "scripts.cue", `
package test

script: {
	bbb: {
		steps: [{op: "increment"}]
	}
	aaa: {
		steps: [{op: "increment"}]
	}
}
`)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{scriptsDir})

	err := cmd.Execute()
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Scripts []ir.Script `json:"scripts"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Scripts, 2)

	// Loader sorts scripts by name
	assert.Equal(t, "aaa", resp.Data.Scripts[0].Name)
	assert.Equal(t, "bbb", resp.Data.Scripts[1].Name)
}

func TestCompileJSONFormatErrors(t *testing.T) {
	scriptsDir := t.TempDir()
	writeScriptFile(t, scriptsDir, "bad.cue", `
package test

script: bad: {
	start: 2.5
	steps: [{op: "increment"}]
}
`)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{scriptsDir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Error  *CLIError  `json:"error"`
		Data   []CLIError `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeIntField, resp.Error.Code)
	require.Len(t, resp.Data, 1)
}
