package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/relay/internal/ir"
)

// LoadScriptFile compiles a single CUE file that defines exactly one
// script under the "script" root, e.g.:
//
//	script: countup: {
//		start: 0
//		steps: [{op: "increment"}]
//	}
//
// Files defining zero or several scripts are rejected; directory loading
// with multi-script packages is the CLI loader's job.
func LoadScriptFile(path string) (ir.Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ir.Script{}, fmt.Errorf("failed to read script file: %w", err)
	}

	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return ir.Script{}, formatCUEError(err)
	}

	scriptsVal := v.LookupPath(cue.ParsePath("script"))
	if !scriptsVal.Exists() {
		return ir.Script{}, &CompileError{
			Field:   "script",
			Message: fmt.Sprintf("no script block found in %s", path),
		}
	}

	iter, err := scriptsVal.Fields()
	if err != nil {
		return ir.Script{}, formatCUEError(err)
	}

	var (
		script ir.Script
		count  int
	)
	for iter.Next() {
		count++
		if count > 1 {
			return ir.Script{}, &CompileError{
				Field:   "script",
				Message: fmt.Sprintf("file %s defines more than one script; want exactly one", path),
			}
		}
		script, err = CompileScript(iter.Value())
		if err != nil {
			return ir.Script{}, err
		}
	}
	if count == 0 {
		return ir.Script{}, &CompileError{
			Field:   "script",
			Message: fmt.Sprintf("script block in %s is empty", path),
		}
	}

	return script, nil
}
