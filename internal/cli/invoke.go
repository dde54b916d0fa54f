package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/relay/internal/ir"
	"github.com/roach88/relay/internal/runner"
)

// InvokeOptions holds flags for the invoke command.
type InvokeOptions struct {
	*RootOptions
	Value   int64
	Amount  int64
	Message string
}

// InvokeResult is the JSON payload for a single step application.
type InvokeResult struct {
	Op     string `json:"op"`
	Value  int64  `json:"value"`
	Result int64  `json:"result"`
}

// NewInvokeCommand creates the invoke command.
func NewInvokeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InvokeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "invoke <op>",
		Short: "Apply one step op to a counter value",
		Long: `Apply a single step op to a counter value, synchronously and outside
the event loop. Useful for poking at step semantics without a script.

Example:
  relay invoke increment --value 41
  relay invoke add --value 10 --amount 32
  relay invoke fail --message "boom"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return invokeStep(opts, args[0], cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.Value, "value", 0, "counter value the step receives")
	cmd.Flags().Int64Var(&opts.Amount, "amount", 0, "amount for the add op")
	cmd.Flags().StringVar(&opts.Message, "message", "", "message for the fail op")

	return cmd
}

func invokeStep(opts *InvokeOptions, op string, cmd *cobra.Command) error {
	if !ir.ValidOps[ir.StepOp(op)] {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown op %q (want increment, add, or fail)", op))
	}

	step := ir.Step{
		Op:      ir.StepOp(op),
		Amount:  opts.Amount,
		Message: opts.Message,
	}

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	result, err := runner.ApplyStep(step, opts.Value)
	if err != nil {
		if opts.Format == "json" {
			if ferr := formatter.Error("E_STEP_FAILED", err.Error(), nil); ferr != nil {
				return ferr
			}
		}
		return WrapExitError(ExitFailure, "invoke failed", err)
	}

	if opts.Format == "json" {
		return formatter.Success(InvokeResult{Op: op, Value: opts.Value, Result: result})
	}

	fmt.Fprintln(cmd.OutOrStdout(), result)
	return nil
}
