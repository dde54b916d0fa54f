package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"
	"github.com/spf13/cobra"

	"github.com/roach88/relay/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <script-dir>",
		Short: "Validate scripts without emitting IR",
		Long: `Validate CUE chain scripts without emitting IR.

Performs syntax checking, schema validation, and step semantics checks
without generating output files. Faster than compile for development feedback.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, scriptDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	// Use shared loader for the load machinery. Per-script compile
	// errors are left to validateAll, which recompiles every script
	// from the CUE value and collects all errors with positions.
	loadResult, loadErrors := LoadScripts(scriptDir, LoadModeFailFast)

	// Handle load errors (directory not found, no files, etc.)
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputValidateError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputValidateError(formatter, ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, scriptDir)

	validationErrors := validateAll(loadResult.CUEValue, formatter)

	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, validationErrors)
	}

	// Output success
	return outputValidateSuccess(formatter)
}

// validateAll validates every script in the CUE value.
// Compiles each script and runs schema validation on the result,
// collecting all errors instead of failing fast.
func validateAll(value cue.Value, formatter *OutputFormatter) []compiler.ValidationError {
	var allErrors []compiler.ValidationError
	scriptCount := 0

	scriptsVal := value.LookupPath(cue.ParsePath("script"))
	if scriptsVal.Exists() {
		iter, err := scriptsVal.Fields()
		if err != nil {
			allErrors = append(allErrors, compiler.ValidationError{
				Field:   "script",
				Message: fmt.Sprintf("iterating scripts: %v", err),
				Code:    ErrCodeGeneric,
			})
		} else {
			for iter.Next() {
				scriptCount++
				scriptName := iter.Label()
				formatter.VerboseLog("Validating script: %s", scriptName)

				script, compileErr := compiler.CompileScript(iter.Value())
				if compileErr != nil {
					// Convert compile error to validation error
					var cErr *compiler.CompileError
					if errors.As(compileErr, &cErr) {
						allErrors = append(allErrors, compiler.ValidationError{
							Field:   cErr.Field,
							Message: cErr.Message,
							Code:    MapFieldToErrorCode(cErr.Field),
							Line:    getLineFromCuePos(cErr.Pos),
						})
					} else {
						allErrors = append(allErrors, compiler.ValidationError{
							Field:   "script." + scriptName,
							Message: compileErr.Error(),
							Code:    ErrCodeGeneric,
						})
					}
					continue
				}

				// Run schema validation on the compiled script
				allErrors = append(allErrors, compiler.Validate(script)...)
			}
		}
	}

	if scriptCount == 0 && len(allErrors) == 0 {
		allErrors = append(allErrors, compiler.ValidationError{
			Field:   "script",
			Message: "no scripts found in CUE files",
			Code:    ErrCodeGeneric,
		})
	}

	return allErrors
}

// getLineFromCuePos extracts line number from a token.Pos.
func getLineFromCuePos(pos token.Pos) int {
	if pos.IsValid() {
		return pos.Line()
	}
	return 0
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter) error {
	if formatter.Format == "json" {
		result := ValidationResult{Valid: true}
		return formatter.Success(result)
	}

	fmt.Fprintln(formatter.Writer, "✓ All scripts valid")
	return nil
}

// outputValidateError outputs a single validation error.
func outputValidateError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	// Hard load errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	if formatter.Format == "json" {
		result := ValidationResult{
			Valid:  false,
			Errors: errs,
		}

		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}

	// Validation failures = exit code 1
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}

// ValidateScriptsDir validates all scripts in a directory.
// This is a helper function for external callers.
func ValidateScriptsDir(scriptDir string) ([]compiler.ValidationError, error) {
	loadResult, loadErrors := LoadScripts(scriptDir, LoadModeFailFast)
	if loadResult == nil && len(loadErrors) > 0 {
		return nil, loadErrors[0]
	}

	silentFormatter := &OutputFormatter{Format: "text", Verbose: false, Writer: io.Discard}
	return validateAll(loadResult.CUEValue, silentFormatter), nil
}
