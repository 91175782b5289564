package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/pledge/internal/engine"
	"github.com/roach88/pledge/internal/model"
)

// maxLineSize bounds one request line on stdin.
const maxLineSize = 1 << 20

// RunRequest is one line of the run command's input. Exactly one of
// Create, Judge and Clawback is set. To, when given, fills in a missing
// judge or clawback destination with that owner's canonical account.
type RunRequest struct {
	Create   *engine.CreateRequest   `json:"create,omitempty"`
	Judge    *engine.JudgeRequest    `json:"judge,omitempty"`
	Clawback *engine.ClawbackRequest `json:"clawback,omitempty"`
	To       model.Identity          `json:"to,omitempty"`
}

// RunResult is one line of the run command's output.
type RunResult struct {
	Line    int             `json:"line"`
	Status  string          `json:"status"` // "ok" or "error"
	Receipt *engine.Receipt `json:"receipt,omitempty"`
	Error   *CLIError       `json:"error,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Serve commands from stdin through the engine loop",
		Long: `Start the single-writer engine loop and apply one command per line
of standard input, printing one result per line.

Each input line is a JSON object with one of "create", "judge" or
"clawback". Judge and clawback take "to" as a shorthand for the
beneficiary whose canonical account receives the funds:

  {"create":{"caller":"alice","amount":100,"description":"no meme coins",
             "judge":"jim","to_success":"sam","to_failure":"fay","deadline":1700000000}}
  {"judge":{"caller":"jim","ref":"5776f8...","verdict":true},"to":"sam"}

Exits 1 if any command was rejected. Ctrl-C stops the loop; commands
still queued fail with the cancellation error.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoop(rootOpts, cmd)
		},
	}
}

func runLoop(opts *RootOptions, cmd *cobra.Command) error {
	s, err := openSession(opts)
	if err != nil {
		return err
	}
	defer s.Close()

	// The root context is cancelled on SIGINT and SIGTERM.
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	runErr := make(chan error, 1)
	go func() {
		runErr <- s.engine.Run(ctx)
	}()

	// A read from stdin cannot be interrupted, so serve runs on its own and
	// is abandoned on cancellation.
	served := make(chan serveResult, 1)
	go func() {
		rejected, err := serve(ctx, s, opts, cmd.InOrStdin(), cmd.OutOrStdout())
		served <- serveResult{rejected: rejected, err: err}
	}()

	var res serveResult
	select {
	case res = <-served:
	case <-ctx.Done():
		slog.Info("interrupted, no longer reading commands")
	}

	s.engine.Stop()
	if err := <-runErr; err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitCommandError, "engine error", err)
	}
	if res.err != nil {
		return WrapExitError(ExitCommandError, "failed to read commands", res.err)
	}

	slog.Info("engine stopped gracefully")
	if res.rejected > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d command(s) rejected", res.rejected))
	}
	return nil
}

type serveResult struct {
	rejected int
	err      error
}

// serve submits each input line and writes its result. It returns the
// number of lines that did not produce a receipt.
func serve(ctx context.Context, s *session, opts *RootOptions, r io.Reader, w io.Writer) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	enc := json.NewEncoder(w)

	rejected := 0
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		result := RunResult{Line: line}
		receipt, err := submitLine(ctx, s, opts, raw)
		if err != nil {
			rejected++
			result.Status = "error"
			result.Error = runError(err)
		} else {
			result.Status = "ok"
			result.Receipt = &receipt
		}

		if opts.Format == "json" {
			if err := enc.Encode(result); err != nil {
				return rejected, err
			}
		} else {
			writeRunResult(w, result)
		}

		if ctx.Err() != nil {
			return rejected, nil
		}
	}
	return rejected, scanner.Err()
}

func submitLine(ctx context.Context, s *session, opts *RootOptions, raw []byte) (engine.Receipt, error) {
	cmd, err := decodeRunRequest(ctx, s, opts, raw)
	if err != nil {
		return engine.Receipt{}, err
	}
	return s.engine.Submit(ctx, cmd)
}

// decodeRunRequest parses one line into an engine command, deriving the
// destination from To when the request carries none.
func decodeRunRequest(ctx context.Context, s *session, opts *RootOptions, raw []byte) (engine.Command, error) {
	var req RunRequest
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return engine.Command{}, fmt.Errorf("invalid request: %w", err)
	}

	set := 0
	for _, present := range []bool{req.Create != nil, req.Judge != nil, req.Clawback != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return engine.Command{}, errors.New("invalid request: exactly one of create, judge or clawback is required")
	}

	switch {
	case req.Create != nil:
		return engine.CreateCommand(*req.Create), nil
	case req.Judge != nil:
		if req.Judge.Destination == "" {
			dst, err := s.destination(ctx, opts, req.Judge.Ref, string(req.To), "")
			if err != nil {
				return engine.Command{}, err
			}
			req.Judge.Destination = dst
		}
		return engine.JudgeCommand(*req.Judge), nil
	default:
		if req.Clawback.Destination == "" {
			dst, err := s.destination(ctx, opts, req.Clawback.Ref, string(req.To), "")
			if err != nil {
				return engine.Command{}, err
			}
			req.Clawback.Destination = dst
		}
		return engine.ClawbackCommand(*req.Clawback), nil
	}
}

func runError(err error) *CLIError {
	var ee *engine.EscrowError
	if errors.As(err, &ee) {
		e := &CLIError{Code: string(ee.Code), Message: ee.Error()}
		if len(ee.Details) > 0 {
			e.Details = ee.Details
		}
		return e
	}
	return &CLIError{Code: ErrCodeInvalidInput, Message: err.Error()}
}

func writeRunResult(w io.Writer, r RunResult) {
	if r.Status == "ok" {
		fmt.Fprintf(w, "%d: ok %s %s #%d\n", r.Line, r.Receipt.Event.Kind, r.Receipt.Ref, r.Receipt.Event.Seq)
		return
	}
	fmt.Fprintf(w, "%d: error [%s] %s\n", r.Line, r.Error.Code, r.Error.Message)
}
