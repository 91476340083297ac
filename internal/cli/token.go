package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/chaindb/internal/engine"
	"github.com/roach88/chaindb/internal/ir"
)

// NewTokenCommand creates the token command group.
func NewTokenCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint, move and inspect payment tokens",
		Long: `Commands for the fungible token that pays for new databases.

Accounts are given as hex addresses or as one of the configured names
admin, factory and treasury.

Examples:
  chaindb token mint 0x00000000000000000000000000000000000000a1 10000
  chaindb token approve factory 100 --caller 0x00000000000000000000000000000000000000a1
  chaindb token balance treasury`,
	}

	cmd.AddCommand(
		newAmountCommand(opts, "mint <to> <amount>", "Mint tokens (admin only)", engine.ActionMint, "to"),
		newAmountCommand(opts, "transfer <to> <amount>", "Transfer tokens from the caller", engine.ActionTransfer, "to"),
		newAmountCommand(opts, "approve <spender> <amount>", "Set the caller's allowance for a spender", engine.ActionApprove, "spender"),
		&cobra.Command{
			Use:   "balance <holder>",
			Short: "Show an account's balance",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withInstance(cmd, opts, func(in *instance, caller ir.Address) error {
					holder, err := in.accountArg("holder", args[0])
					if err != nil {
						return err
					}
					_, err = in.execute(cmd, opts, engine.Call{
						Action: engine.ActionBalanceOf,
						Caller: caller,
						Args:   ir.IRObject{"holder": holder},
					})
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "allowance <owner> <spender>",
			Short: "Show what a spender may still take from an owner",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withInstance(cmd, opts, func(in *instance, caller ir.Address) error {
					owner, err := in.accountArg("owner", args[0])
					if err != nil {
						return err
					}
					spender, err := in.accountArg("spender", args[1])
					if err != nil {
						return err
					}
					_, err = in.execute(cmd, opts, engine.Call{
						Action: engine.ActionAllowance,
						Caller: caller,
						Args:   ir.IRObject{"owner": owner, "spender": spender},
					})
					return err
				})
			},
		},
	)
	return cmd
}

// newAmountCommand builds a command taking an account and an amount.
func newAmountCommand(opts *RootOptions, use, short string, action ir.ActionRef, accountKey string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withInstance(cmd, opts, func(in *instance, caller ir.Address) error {
				account, err := in.accountArg(accountKey, args[0])
				if err != nil {
					return err
				}
				amount, err := parseAmount(args[1])
				if err != nil {
					return err
				}
				_, err = in.execute(cmd, opts, engine.Call{
					Action: action,
					Caller: caller,
					Args:   ir.IRObject{accountKey: account, "amount": amount},
				})
				return err
			})
		},
	}
}

// parseAmount reads an unsigned decimal amount. Amounts beyond int64 are
// passed as decimal strings.
func parseAmount(s string) (ir.IRValue, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return nil, NewExitError(ExitCommandError, "amount must be an unsigned integer: "+s)
	}
	return ir.UintValue(n), nil
}
