package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/pledge/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Database, Asset and Now start from the environment (config.Config)
	// and are overridden by --db, --asset and --now.
	Database string
	Asset    string
	Now      uint64
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the pledge CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "pledge",
		Short: "pledge - escrowed habit commitments",
		Long: `Lock funds against a personal commitment. A judge rules success or
failure after the deadline and the funds go to the matching destination.
If the judge never rules, anyone can reclaim the funds to the success
destination once the grace period has passed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return opts.applyConfig(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.Database, "db", "", "path to SQLite database (default $PLEDGE_DB or pledge.db)")
	flags.StringVar(&opts.Asset, "asset", "", "default asset (default $PLEDGE_ASSET or TOKEN)")
	flags.Uint64Var(&opts.Now, "now", 0, "pin the clock to this unix time (default $PLEDGE_NOW or the system clock)")

	cmd.AddCommand(NewFundCommand(opts))
	cmd.AddCommand(NewBalanceCommand(opts))
	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewJudgeCommand(opts))
	cmd.AddCommand(NewClawbackCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewEventsCommand(opts))
	cmd.AddCommand(NewAuditCommand(opts))
	cmd.AddCommand(NewDeriveCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))

	return cmd
}

// applyConfig fills unset flags from the environment and installs the
// slog handler.
func (o *RootOptions) applyConfig(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	flags := cmd.Flags()
	if !flags.Changed("db") {
		o.Database = cfg.DB
	}
	if !flags.Changed("asset") {
		o.Asset = cfg.Asset
	}
	if !flags.Changed("now") {
		o.Now = cfg.Now
	}

	slog.SetDefault(slog.New(cfg.NewHandler(cmd.ErrOrStderr(), o.Verbose)))
	return nil
}

// formatter builds the OutputFormatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
