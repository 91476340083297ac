package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/chaindb/internal/engine"
	"github.com/roach88/chaindb/internal/ir"
)

// CallOptions holds flags for the call command.
type CallOptions struct {
	*RootOptions
	Args     string
	Database string
}

// NewCallCommand creates the call command, which makes any engine call
// from raw JSON arguments.
func NewCallCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CallOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "call <action>",
		Short: "Make a raw engine call",
		Long: fmt.Sprintf(`Make any engine call with its arguments given as a JSON object.

Actions:
  %s

Examples:
  chaindb call Token.balanceOf --args '{"holder":"0x00000000000000000000000000000000000000a1"}'
  chaindb call Database.selectAll -d <id> --args '{"table":0,"limit":10}'`,
			strings.Join(actionNames(), "\n  ")),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Args, "args", "{}", "action arguments as a JSON object")
	cmd.Flags().StringVarP(&opts.Database, "database", "d", "", "database ID for Database.* actions")

	return cmd
}

func runCall(opts *CallOptions, action string, cmd *cobra.Command) error {
	v, err := ir.UnmarshalIRValue([]byte(opts.Args))
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --args JSON", err)
	}
	args, ok := v.(ir.IRObject)
	if !ok {
		return NewExitError(ExitCommandError, "--args must be a JSON object")
	}

	return withInstance(cmd, opts.RootOptions, func(in *instance, caller ir.Address) error {
		_, err := in.execute(cmd, opts.RootOptions, engine.Call{
			Action:   ir.ActionRef(action),
			Database: opts.Database,
			Caller:   caller,
			Args:     args,
		})
		return err
	})
}

func actionNames() []string {
	refs := engine.Actions()
	names := make([]string, len(refs))
	for i, a := range refs {
		names[i] = string(a)
		if engine.IsMutating(a) {
			names[i] += " (journaled)"
		}
	}
	return names
}
