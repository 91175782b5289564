package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/pledge/internal/model"
)

// NewFundCommand creates the fund command.
func NewFundCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "fund <owner> <amount>",
		Short: "Deposit funds into an owner's account",
		Long: `Deposit funds into the canonical account of owner for the default asset.

Funding is the only way value enters the ledger; it records no event.

Example:
  pledge fund alice 1000 --db ./pledge.db`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFund(rootOpts, args[0], args[1], cmd)
		},
	}
}

func runFund(opts *RootOptions, owner, amountArg string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	amount, err := strconv.ParseUint(amountArg, 10, 64)
	if err != nil {
		_ = formatter.Error(ErrCodeInvalidInput, fmt.Sprintf("invalid amount %q", amountArg), nil)
		return WrapExitError(ExitCommandError, "invalid amount", err)
	}

	s, err := openSession(opts)
	if err != nil {
		return err
	}
	defer s.Close()

	acct, err := s.engine.Fund(context.Background(), model.Identity(owner), opts.asset(), amount)
	if err != nil {
		return formatter.Fail(err)
	}

	return formatter.Render(acct, func(w io.Writer) {
		fmt.Fprintf(w, "Funded %s: balance %d %s\n", acct.Owner, acct.Balance, acct.Asset)
		fmt.Fprintf(w, "  account: %s\n", acct.Ref)
	})
}

// NewBalanceCommand creates the balance command.
func NewBalanceCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <owner>",
		Short: "Show an owner's accounts",
		Long: `List every account owned by owner, one per asset.

Vault accounts are owned by their commitment ref, so
  pledge balance <ref>
shows what a commitment still holds.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBalance(rootOpts, args[0], cmd)
		},
	}
}

func runBalance(opts *RootOptions, owner string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	s, err := openSession(opts)
	if err != nil {
		return err
	}
	defer s.Close()

	accounts, err := s.store.ListAccounts(context.Background(), model.Identity(owner))
	if err != nil {
		return formatter.Fail(err)
	}

	return formatter.Render(accounts, func(w io.Writer) {
		if len(accounts) == 0 {
			fmt.Fprintf(w, "No accounts for %s\n", owner)
			return
		}
		for _, acct := range accounts {
			fmt.Fprintf(w, "%-10s %20d  %s\n", acct.Asset, acct.Balance, acct.Ref)
		}
	})
}
