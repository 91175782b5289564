package harness

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/pledge/internal/engine"
	"github.com/roach88/pledge/internal/model"
	"github.com/roach88/pledge/internal/store"
	"github.com/roach88/pledge/internal/testutil"
)

// Harness is the state of one scenario run.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	clock  *testutil.ManualClock
	asset  model.Asset
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database. Commands go through the
// engine's single-writer loop, exactly as the CLI's run command sends them.
//
// Execution flow:
//  1. Create fresh in-memory database and engine
//  2. Fund accounts
//  3. Submit each step at its time and compare the result with expect
//  4. Evaluate assertions
//
// A rejected command is a result, not an error; Run only returns an error
// when the scenario cannot be executed at all.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	asset := model.Asset(scenario.Asset)
	if asset == "" {
		asset = engine.DefaultAsset
	}

	clock := testutil.NewManualClock(scenario.Start)
	eng := engine.New(st, clock,
		engine.WithAsset(asset),
		engine.WithRequestIDs(testutil.NewSequentialIDs("req")),
	)

	h := &Harness{
		store:  st,
		engine: eng,
		clock:  clock,
		asset:  asset,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()
	defer func() {
		eng.Stop()
		<-done
	}()

	if err := h.fund(ctx, scenario.Accounts); err != nil {
		return nil, fmt.Errorf("failed to fund accounts: %w", err)
	}

	result := NewResult()
	if err := h.executeSteps(ctx, scenario.Steps, result); err != nil {
		return nil, fmt.Errorf("failed to execute steps: %w", err)
	}

	for _, msg := range h.evaluateAssertions(ctx, scenario.Assertions) {
		result.AddError(msg)
	}

	slog.Debug("scenario finished",
		"scenario", scenario.Name,
		"steps", len(result.Trace),
		"pass", result.Pass,
	)
	return result, nil
}

func (h *Harness) fund(ctx context.Context, accounts []Funding) error {
	for i, acct := range accounts {
		asset := h.assetOr(acct.Asset)
		if _, err := h.engine.Fund(ctx, model.Identity(acct.Owner), asset, acct.Amount); err != nil {
			return fmt.Errorf("accounts[%d]: %w", i, err)
		}
	}
	return nil
}

// executeSteps submits every step and records what happened.
func (h *Harness) executeSteps(ctx context.Context, steps []Step, result *Result) error {
	for i, step := range steps {
		if step.At != nil {
			h.clock.Set(*step.At)
		}

		cmd, ref, err := h.command(step)
		if err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}

		receipt, err := h.engine.Submit(ctx, cmd)
		got := ExpectOK
		if err != nil {
			if !engine.IsRejection(err) {
				return fmt.Errorf("steps[%d] (%s): %w", i, cmd.Type, err)
			}
			got = string(engine.CodeOf(err))
		}

		ev := TraceEvent{
			Step:    i,
			Command: cmd.Type.String(),
			At:      h.clock.Now(),
			Ref:     string(ref),
			Result:  got,
		}
		if err == nil {
			event := receipt.Event
			ev.Event = &event
		}
		result.AddStep(ev)

		want := step.Expect
		if want == "" {
			want = ExpectOK
		}
		if got != want {
			msg := fmt.Sprintf("step %d (%s): expected %s, got %s", i, cmd.Type, want, got)
			if err != nil {
				msg += ": " + err.Error()
			}
			result.AddError(msg)
		}
	}
	return nil
}

// command turns a step into an engine command and the ref it addresses.
func (h *Harness) command(step Step) (engine.Command, model.CommitmentRef, error) {
	switch {
	case step.Create != nil:
		c := step.Create
		ref, err := model.DeriveCommitmentRef(model.Identity(c.Caller), model.NormalizeDescription(c.Description))
		if err != nil {
			return engine.Command{}, "", err
		}
		return engine.CreateCommand(engine.CreateRequest{
			Caller:      model.Identity(c.Caller),
			Amount:      c.Amount,
			Description: c.Description,
			Judge:       model.Identity(c.Judge),
			ToSuccess:   model.Identity(c.ToSuccess),
			ToFailure:   model.Identity(c.ToFailure),
			Deadline:    c.Deadline,
			Asset:       model.Asset(c.Asset),
		}), ref, nil

	case step.Judge != nil:
		j := step.Judge
		ref, err := h.ref(j.Creator, j.Description)
		if err != nil {
			return engine.Command{}, "", err
		}
		dst, err := h.destination(j.Destination, j.DestinationRef)
		if err != nil {
			return engine.Command{}, "", err
		}
		return engine.JudgeCommand(engine.JudgeRequest{
			Caller:      model.Identity(j.Caller),
			Ref:         ref,
			Verdict:     j.Verdict,
			Destination: dst,
		}), ref, nil

	case step.Clawback != nil:
		c := step.Clawback
		ref, err := h.ref(c.Creator, c.Description)
		if err != nil {
			return engine.Command{}, "", err
		}
		dst, err := h.destination(c.Destination, c.DestinationRef)
		if err != nil {
			return engine.Command{}, "", err
		}
		return engine.ClawbackCommand(engine.ClawbackRequest{
			Caller:      model.Identity(c.Caller),
			Ref:         ref,
			Destination: dst,
		}), ref, nil
	}
	return engine.Command{}, "", fmt.Errorf("step names no command")
}

func (h *Harness) ref(creator, description string) (model.CommitmentRef, error) {
	return model.DeriveCommitmentRef(model.Identity(creator), model.NormalizeDescription(description))
}

// destination resolves an owner to its canonical account in the scenario
// asset; a raw ref wins when both are given.
func (h *Harness) destination(owner, raw string) (model.AccountRef, error) {
	if raw != "" {
		return model.AccountRef(raw), nil
	}
	return model.DeriveDestination(model.Identity(owner), h.asset)
}

func (h *Harness) assetOr(asset string) model.Asset {
	if asset == "" {
		return h.asset
	}
	return model.Asset(asset)
}
