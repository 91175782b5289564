package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/pledge/internal/model"
	"github.com/roach88/pledge/internal/query"
	"github.com/roach88/pledge/internal/store"
)

// CommitmentView is a commitment as the CLI renders it, with the outcome
// spelled out.
type CommitmentView struct {
	model.Commitment
	Outcome string `json:"outcome"`
}

func newCommitmentView(c model.Commitment) CommitmentView {
	return CommitmentView{Commitment: c, Outcome: c.Outcome.String()}
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <ref>",
		Short:         "Show a commitment and its events",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(rootOpts, model.CommitmentRef(args[0]), cmd)
		},
	}
}

type showResult struct {
	Commitment CommitmentView `json:"commitment"`
	Vault      uint64         `json:"vault_balance"`
	Events     []model.Event  `json:"events"`
}

func runShow(opts *RootOptions, ref model.CommitmentRef, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	s, err := openSession(opts)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := context.Background()
	c, err := s.store.ReadCommitment(ctx, ref)
	if errors.Is(err, store.ErrNotFound) {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("commitment %s not found", ref), nil)
		return NewExitError(ExitFailure, "commitment not found")
	}
	if err != nil {
		return formatter.Fail(err)
	}

	var balance uint64
	acct, err := s.store.ReadAccount(ctx, c.Vault.Account())
	switch {
	case err == nil:
		balance = acct.Balance
	case !errors.Is(err, store.ErrNotFound):
		return formatter.Fail(err)
	}

	events, err := s.store.ReadEventsForCommitment(ctx, ref)
	if err != nil {
		return formatter.Fail(err)
	}

	result := showResult{Commitment: newCommitmentView(c), Vault: balance, Events: events}
	return formatter.Render(result, func(w io.Writer) {
		fmt.Fprintf(w, "Commitment %s\n", c.Ref)
		fmt.Fprintf(w, "  creator:     %s\n", c.Creator)
		fmt.Fprintf(w, "  description: %s\n", c.Description)
		fmt.Fprintf(w, "  judge:       %s\n", c.Judge)
		fmt.Fprintf(w, "  to_success:  %s\n", c.ToSuccess)
		fmt.Fprintf(w, "  to_failure:  %s\n", c.ToFailure)
		fmt.Fprintf(w, "  amount:      %d %s\n", c.Amount, c.Asset)
		fmt.Fprintf(w, "  deadline:    %d\n", c.Deadline)
		fmt.Fprintf(w, "  outcome:     %s\n", c.Outcome)
		fmt.Fprintf(w, "  vault:       %s (%d)\n", c.Vault, balance)
		for _, ev := range events {
			fmt.Fprintf(w, "  #%d %s at %d\n", ev.Seq, ev.Kind, ev.At)
		}
	})
}

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Creator   string
	Judge     string
	Outcome   string
	Asset     string
	DueBefore uint64
	Limit     int
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List commitments",
		Long: `List commitments ordered by deadline.

Example:
  pledge list --judge jim --outcome pending --due-before 1700000000`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Creator, "creator", "", "only commitments by this creator")
	cmd.Flags().StringVar(&opts.Judge, "judge", "", "only commitments judged by this identity")
	cmd.Flags().StringVar(&opts.Outcome, "outcome", "", "pending|success|failure|reclaimed")
	cmd.Flags().StringVar(&opts.Asset, "filter-asset", "", "only commitments in this asset")
	cmd.Flags().Uint64Var(&opts.DueBefore, "due-before", 0, "only deadlines before this unix time")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of results (0 for all)")

	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if opts.Outcome != "" {
		if _, err := model.ParseOutcome(opts.Outcome); err != nil {
			_ = formatter.Error(ErrCodeInvalidInput, err.Error(), nil)
			return WrapExitError(ExitCommandError, "invalid outcome", err)
		}
	}
	if opts.Limit < 0 {
		_ = formatter.Error(ErrCodeInvalidInput, "limit must not be negative", nil)
		return NewExitError(ExitCommandError, "invalid limit")
	}

	s, err := openSession(opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	commitments, err := s.store.ListCommitments(context.Background(), query.Filter{
		Creator:   model.Identity(opts.Creator),
		Judge:     model.Identity(opts.Judge),
		Outcome:   opts.Outcome,
		Asset:     model.Asset(opts.Asset),
		DueBefore: opts.DueBefore,
		Limit:     opts.Limit,
	})
	if err != nil {
		return formatter.Fail(err)
	}

	views := make([]CommitmentView, 0, len(commitments))
	for _, c := range commitments {
		views = append(views, newCommitmentView(c))
	}

	return formatter.Render(views, func(w io.Writer) {
		if len(views) == 0 {
			fmt.Fprintln(w, "No commitments")
			return
		}
		for _, v := range views {
			fmt.Fprintf(w, "%s  %-9s %10d  %8d %s  %s\n",
				v.Ref, v.Outcome, v.Deadline, v.Amount, v.Asset, v.Description)
		}
	})
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	var after uint64
	var limit int

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print the event log",
		Long: `Print events in append order, starting after sequence --after.

Example:
  pledge events --after 42 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(rootOpts, after, limit, cmd)
		},
	}

	cmd.Flags().Uint64Var(&after, "after", 0, "only events with a greater sequence number")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of events (0 for all)")

	return cmd
}

func runEvents(opts *RootOptions, after uint64, limit int, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if limit < 0 {
		_ = formatter.Error(ErrCodeInvalidInput, "limit must not be negative", nil)
		return NewExitError(ExitCommandError, "invalid limit")
	}

	s, err := openSession(opts)
	if err != nil {
		return err
	}
	defer s.Close()

	events, err := s.store.ReadEvents(context.Background(), after, limit)
	if err != nil {
		return formatter.Fail(err)
	}

	return formatter.Render(events, func(w io.Writer) {
		for _, ev := range events {
			payload, err := model.MarshalCanonical(ev.Payload)
			if err != nil {
				payload = []byte("?")
			}
			fmt.Fprintf(w, "#%d %-8s %s at %d %s\n", ev.Seq, ev.Kind, ev.Habit, ev.At, payload)
		}
	})
}

// NewAuditCommand creates the audit command.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Check the ledger against the event log",
		Long: `Replay the event log and check it against every commitment and vault.

Exits 1 when any inconsistency is found.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(rootOpts, cmd)
		},
	}
}

func runAudit(opts *RootOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	s, err := openSession(opts)
	if err != nil {
		return err
	}
	defer s.Close()

	report, err := s.engine.Audit(context.Background())
	if err != nil {
		return formatter.Fail(err)
	}

	if !report.OK() {
		if outErr := formatter.Error(ErrCodeAuditFailed,
			fmt.Sprintf("%d finding(s)", len(report.Findings)), report); outErr != nil {
			return outErr
		}
		if formatter.Format != "json" {
			for _, f := range report.Findings {
				fmt.Fprintf(formatter.Writer, "  %s: %s\n", f.Ref, f.Problem)
			}
		}
		return NewExitError(ExitFailure, "audit failed")
	}

	return formatter.Render(report, func(w io.Writer) {
		fmt.Fprintf(w, "OK: %d commitments, %d events (last #%d)\n",
			report.Commitments, report.Events, report.LastSeq)
	})
}

// NewDeriveCommand creates the derive command.
func NewDeriveCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Compute deterministic refs without a database",
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "ref <creator> <description>",
		Short:         "Commitment ref for (creator, description)",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDerive(rootOpts, cmd, func() (string, error) {
				ref, err := model.DeriveCommitmentRef(model.Identity(args[0]), model.NormalizeDescription(args[1]))
				return string(ref), err
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "account <owner>",
		Short:         "Canonical account of owner for the asset",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDerive(rootOpts, cmd, func() (string, error) {
				ref, err := model.DeriveDestination(model.Identity(args[0]), rootOpts.asset())
				return string(ref), err
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "vault <ref>",
		Short:         "Vault of commitment ref for the asset",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDerive(rootOpts, cmd, func() (string, error) {
				ref, err := model.DeriveVaultRef(model.CommitmentRef(args[0]), rootOpts.asset())
				return string(ref), err
			})
		},
	})

	return cmd
}

func runDerive(opts *RootOptions, cmd *cobra.Command, derive func() (string, error)) error {
	formatter := opts.formatter(cmd)

	ref, err := derive()
	if err != nil {
		_ = formatter.Error(ErrCodeInvalidInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "derive failed", err)
	}
	return formatter.Render(map[string]string{"ref": ref}, func(w io.Writer) {
		fmt.Fprintln(w, ref)
	})
}
