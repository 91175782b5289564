package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/pledge/internal/engine"
	"github.com/roach88/pledge/internal/model"
)

// CreateOptions holds flags for the create command.
type CreateOptions struct {
	*RootOptions
	Caller      string
	Description string
	Amount      uint64
	Judge       string
	ToSuccess   string
	ToFailure   string
	Deadline    uint64
	In          time.Duration
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Lock funds against a new commitment",
		Long: `Lock --amount from the caller's account into a fresh vault for the
commitment (--as, --description).

The deadline is either an absolute unix time (--deadline) or an offset from
now (--in).

Example:
  pledge create --as alice --description "no meme coins" --amount 100 \
    --judge jim --to-success sam --to-failure fay --in 720h`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Caller, "as", "", "creator identity (required)")
	cmd.Flags().StringVar(&opts.Description, "description", "", "commitment description, at most 32 bytes (required)")
	cmd.Flags().Uint64Var(&opts.Amount, "amount", 0, "amount to lock (required)")
	cmd.Flags().StringVar(&opts.Judge, "judge", "", "judge identity (required)")
	cmd.Flags().StringVar(&opts.ToSuccess, "to-success", "", "beneficiary on success and on reclaim (required)")
	cmd.Flags().StringVar(&opts.ToFailure, "to-failure", "", "beneficiary on failure (required)")
	cmd.Flags().Uint64Var(&opts.Deadline, "deadline", 0, "deadline as unix seconds")
	cmd.Flags().DurationVar(&opts.In, "in", 0, "deadline as an offset from now")
	for _, name := range []string{"as", "description", "amount", "judge", "to-success", "to-failure"} {
		_ = cmd.MarkFlagRequired(name)
	}
	cmd.MarkFlagsMutuallyExclusive("deadline", "in")
	cmd.MarkFlagsOneRequired("deadline", "in")

	return cmd
}

func runCreate(opts *CreateOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	s, err := openSession(opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	deadline := opts.Deadline
	if opts.In > 0 {
		deadline = opts.now() + uint64(opts.In/time.Second)
	}

	receipt, err := s.engine.Create(context.Background(), engine.CreateRequest{
		Caller:      model.Identity(opts.Caller),
		Amount:      opts.Amount,
		Description: opts.Description,
		Judge:       model.Identity(opts.Judge),
		ToSuccess:   model.Identity(opts.ToSuccess),
		ToFailure:   model.Identity(opts.ToFailure),
		Deadline:    deadline,
	})
	if err != nil {
		return formatter.Fail(err)
	}
	return renderReceipt(formatter, "Created", receipt)
}

// SettleOptions holds flags shared by judge and clawback.
type SettleOptions struct {
	*RootOptions
	Caller         string
	Verdict        string
	To             string
	DestinationRef string
}

// NewJudgeCommand creates the judge command.
func NewJudgeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SettleOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "judge <ref>",
		Short: "Rule on a commitment after its deadline",
		Long: `Record the judge's verdict and release the vault to the matching
beneficiary. --to names the beneficiary; its canonical account is derived
and must match the commitment's to_success (success) or to_failure (failure).

Example:
  pledge judge 5776f8... --as jim --verdict success --to sam`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJudge(opts, model.CommitmentRef(args[0]), cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Caller, "as", "", "caller identity (required)")
	cmd.Flags().StringVar(&opts.Verdict, "verdict", "", "success|failure (required)")
	opts.destinationFlags(cmd)
	_ = cmd.MarkFlagRequired("as")
	_ = cmd.MarkFlagRequired("verdict")

	return cmd
}

func runJudge(opts *SettleOptions, ref model.CommitmentRef, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	var verdict bool
	switch opts.Verdict {
	case "success":
		verdict = true
	case "failure":
	default:
		_ = formatter.Error(ErrCodeInvalidInput, fmt.Sprintf("verdict must be success or failure, got %q", opts.Verdict), nil)
		return NewExitError(ExitCommandError, "invalid verdict")
	}

	s, err := openSession(opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := context.Background()
	dst, err := s.destination(ctx, opts.RootOptions, ref, opts.To, opts.DestinationRef)
	if err != nil {
		return err
	}

	receipt, err := s.engine.Judge(ctx, engine.JudgeRequest{
		Caller:      model.Identity(opts.Caller),
		Ref:         ref,
		Verdict:     verdict,
		Destination: dst,
	})
	if err != nil {
		return formatter.Fail(err)
	}
	return renderReceipt(formatter, "Judged", receipt)
}

// NewClawbackCommand creates the clawback command.
func NewClawbackCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SettleOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "clawback <ref>",
		Short: "Reclaim an unjudged commitment after the grace period",
		Long: `Release an unjudged commitment to its success beneficiary once
deadline + 7 days has passed. Anyone may call it.

Example:
  pledge clawback 5776f8... --to sam`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClawback(opts, model.CommitmentRef(args[0]), cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Caller, "as", "", "caller identity")
	opts.destinationFlags(cmd)

	return cmd
}

func runClawback(opts *SettleOptions, ref model.CommitmentRef, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	s, err := openSession(opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := context.Background()
	dst, err := s.destination(ctx, opts.RootOptions, ref, opts.To, opts.DestinationRef)
	if err != nil {
		return err
	}

	receipt, err := s.engine.Clawback(ctx, engine.ClawbackRequest{
		Caller:      model.Identity(opts.Caller),
		Ref:         ref,
		Destination: dst,
	})
	if err != nil {
		return formatter.Fail(err)
	}
	return renderReceipt(formatter, "Reclaimed", receipt)
}

func (o *SettleOptions) destinationFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.To, "to", "", "beneficiary whose canonical account receives the funds")
	cmd.Flags().StringVar(&o.DestinationRef, "destination-ref", "", "raw destination account ref")
	cmd.MarkFlagsMutuallyExclusive("to", "destination-ref")
	cmd.MarkFlagsOneRequired("to", "destination-ref")
}

func renderReceipt(formatter *OutputFormatter, verb string, r engine.Receipt) error {
	return formatter.Render(r, func(w io.Writer) {
		fmt.Fprintf(w, "%s %s\n", verb, r.Ref)
		fmt.Fprintf(w, "  event: #%d %s at %d (%s)\n", r.Event.Seq, r.Event.Kind, r.Event.At, r.Event.RequestID)
	})
}
