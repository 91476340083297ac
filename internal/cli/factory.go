package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/chaindb/internal/engine"
	"github.com/roach88/chaindb/internal/ir"
)

// FactoryOptions holds flags for the factory commands.
type FactoryOptions struct {
	*RootOptions
	Owner string // create on behalf of another owner
}

// NewFactoryCommand creates the factory command group.
func NewFactoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FactoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "factory",
		Short: "Buy databases and manage their price",
		Long: `Commands for the factory that sells new databases.

Creating a database charges the current price from the owner to the
treasury. The factory takes the payment through an allowance, so the owner
must first approve the factory for at least the price:

  chaindb token approve factory 100 --caller 0x...a1
  chaindb factory create orders --caller 0x...a1
  chaindb factory create orders --owner 0x...b0 --caller 0x...a1`,
	}

	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a database owned by the caller or by --owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withInstance(cmd, rootOpts, func(in *instance, caller ir.Address) error {
				call := engine.Call{
					Action: engine.ActionCreate,
					Caller: caller,
					Args:   ir.IRObject{"name": ir.IRString(args[0])},
				}
				if opts.Owner != "" {
					owner, err := in.accountArg("owner", opts.Owner)
					if err != nil {
						return err
					}
					call.Action = engine.ActionCreateFrom
					call.Args["owner"] = owner
				}
				_, err := in.execute(cmd, rootOpts, call)
				return err
			})
		},
	}
	create.Flags().StringVar(&opts.Owner, "owner", "", "owner of the new database (default: the caller)")

	cmd.AddCommand(
		create,
		&cobra.Command{
			Use:   "price",
			Short: "Show the price of a new database",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return simpleCall(cmd, rootOpts, engine.ActionPrice, ir.IRObject{})
			},
		},
		&cobra.Command{
			Use:   "update-price <price>",
			Short: "Change the price of a new database (admin only)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				price, err := parseAmount(args[0])
				if err != nil {
					return err
				}
				return simpleCall(cmd, rootOpts, engine.ActionUpdatePrice, ir.IRObject{"price": price})
			},
		},
		&cobra.Command{
			Use:   "databases",
			Short: "List every database the factory has created",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return simpleCall(cmd, rootOpts, engine.ActionDatabases, ir.IRObject{})
			},
		},
	)
	return cmd
}

// simpleCall makes one call that needs no database and no account
// arguments.
func simpleCall(cmd *cobra.Command, opts *RootOptions, action ir.ActionRef, args ir.IRObject) error {
	return withInstance(cmd, opts, func(in *instance, caller ir.Address) error {
		_, err := in.execute(cmd, opts, engine.Call{Action: action, Caller: caller, Args: args})
		return err
	})
}
