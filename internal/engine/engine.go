package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/roach88/pledge/internal/model"
	"github.com/roach88/pledge/internal/store"
	"github.com/roach88/pledge/internal/vault"
)

// DefaultAsset is used when neither the request nor WithAsset names one.
const DefaultAsset model.Asset = "TOKEN"

// Vault moves escrowed funds inside a store transaction.
// vault.Ledger is the production implementation.
type Vault interface {
	// Lock moves c.Amount from the from account into c's fresh vault.
	Lock(ctx context.Context, c model.Commitment, from model.AccountRef) error

	// Release moves the entire vault balance of c to the account to,
	// opening it for owner if needed, and returns the amount moved.
	Release(ctx context.Context, c model.Commitment, to model.AccountRef, owner model.Identity) (uint64, error)
}

// VaultFactory binds a Vault to one transaction.
type VaultFactory func(tx *store.Tx) Vault

// Engine enacts create, judge and clawback against a store.
//
// Thread-safety model:
//   - Create/Judge/Clawback/Execute: safe from any goroutine; each call is
//     one immediate transaction
//   - Submit: safe from any goroutine; requires a running Run loop
//   - Run: must be called from exactly one goroutine
type Engine struct {
	store    *store.Store
	now      TimeSource
	asset    model.Asset
	ids      RequestIDGenerator
	sinks    []EventSink
	newVault VaultFactory
	queue    *commandQueue
}

// Option allows configuration of engine parameters.
type Option func(*Engine)

// WithAsset sets the asset used when a CreateRequest leaves Asset empty.
func WithAsset(asset model.Asset) Option {
	return func(e *Engine) {
		e.asset = asset
	}
}

// WithSinks adds sinks that receive every committed event, in order.
func WithSinks(sinks ...EventSink) Option {
	return func(e *Engine) {
		e.sinks = append(e.sinks, sinks...)
	}
}

// WithRequestIDs sets the request ID generator. Default: UUIDv7Generator.
func WithRequestIDs(gen RequestIDGenerator) Option {
	return func(e *Engine) {
		e.ids = gen
	}
}

// WithVault replaces the vault implementation. Tests use it to inject
// transfer failures.
func WithVault(f VaultFactory) Option {
	return func(e *Engine) {
		e.newVault = f
	}
}

// New creates an Engine over s. now supplies the time every deadline is
// compared against.
func New(s *store.Store, now TimeSource, opts ...Option) *Engine {
	e := &Engine{
		store: s,
		now:   now,
		asset: DefaultAsset,
		ids:   UUIDv7Generator{},
		newVault: func(tx *store.Tx) Vault {
			return vault.New(tx)
		},
		queue: newCommandQueue(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Create locks req.Amount from the caller's canonical account into a fresh
// vault and records a pending commitment.
//
// Preconditions, first failure wins:
//  1. amount > 0 and storable (INVALID_AMOUNT)
//  2. deadline > now (DEADLINE_IN_PAST)
//  3. description and identities well formed, deadline storable (INVALID_ARGUMENT)
//  4. no commitment for (caller, description) (ALREADY_EXISTS)
//  5. the vault accepts the transfer (VAULT_FAILURE)
func (e *Engine) Create(ctx context.Context, req CreateRequest) (Receipt, error) {
	now := e.now.Now()

	c, source, err := e.prepareCreate(req, now)
	if err != nil {
		e.logRejected(CommandCreate, c.Ref, req.Caller, err)
		return Receipt{}, err
	}

	var receipt Receipt
	err = e.store.Update(ctx, func(tx *store.Tx) error {
		_, err := tx.ReadCommitment(ctx, c.Ref)
		if err == nil {
			return newError(CodeAlreadyExists, c.Ref, "commitment already exists for creator %q", c.Creator)
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		if err := tx.InsertCommitment(ctx, c); err != nil {
			if errors.Is(err, store.ErrExists) {
				return newError(CodeAlreadyExists, c.Ref, "commitment already exists for creator %q", c.Creator)
			}
			return err
		}

		if err := e.newVault(tx).Lock(ctx, c, source); err != nil {
			return newVaultError(c.Ref, err)
		}

		ev, err := e.appendEvent(ctx, tx, model.EventCreated, c, now, model.CreatedPayload(c))
		if err != nil {
			return err
		}
		receipt = Receipt{Ref: c.Ref, Event: ev}
		return nil
	})
	if err != nil {
		e.logRejected(CommandCreate, c.Ref, req.Caller, err)
		return Receipt{}, err
	}

	slog.Info("commitment created",
		"ref", c.Ref,
		"creator", c.Creator,
		"judge", c.Judge,
		"amount", c.Amount,
		"deadline", c.Deadline,
		"seq", receipt.Event.Seq,
	)
	e.publish(ctx, receipt.Event)
	return receipt, nil
}

// prepareCreate validates req in precondition order and builds the record.
// The returned commitment carries its Ref whenever the description and
// creator were usable, so rejections can be logged against it.
func (e *Engine) prepareCreate(req CreateRequest, now uint64) (model.Commitment, model.AccountRef, error) {
	var c model.Commitment

	if req.Amount == 0 {
		return c, "", newError(CodeInvalidAmount, "", "amount must be greater than zero")
	}
	if req.Amount > model.MaxStoredValue {
		return c, "", newError(CodeInvalidAmount, "", "amount %d exceeds maximum %d", req.Amount, model.MaxStoredValue)
	}
	if req.Deadline <= now {
		return c, "", newError(CodeDeadlineInPast, "", "deadline %d is not after now %d", req.Deadline, now).
			withDetail("now", fmt.Sprint(now))
	}
	if req.Deadline > model.MaxStoredValue {
		return c, "", newError(CodeInvalidArgument, "", "deadline %d exceeds maximum %d", req.Deadline, model.MaxStoredValue)
	}

	asset := req.Asset
	if asset == "" {
		asset = e.asset
	}
	if !utf8.ValidString(req.Description) {
		return c, "", newError(CodeInvalidArgument, "", "description is not valid UTF-8")
	}
	description := model.NormalizeDescription(req.Description)

	if err := model.ValidateDescription(description); err != nil {
		return c, "", newError(CodeInvalidArgument, "", "%v", err)
	}
	for _, f := range []struct {
		name string
		id   model.Identity
	}{
		{"creator", req.Caller},
		{"judge", req.Judge},
		{"to_success", req.ToSuccess},
		{"to_failure", req.ToFailure},
		{"asset", model.Identity(asset)},
	} {
		if err := model.ValidateIdentity(f.name, f.id); err != nil {
			return c, "", newError(CodeInvalidArgument, "", "%v", err)
		}
	}

	ref, err := model.DeriveCommitmentRef(req.Caller, description)
	if err != nil {
		return c, "", newError(CodeInvalidArgument, "", "%v", err)
	}
	vaultRef, err := model.DeriveVaultRef(ref, asset)
	if err != nil {
		return c, "", newError(CodeInvalidArgument, ref, "%v", err)
	}
	source, err := model.DeriveDestination(req.Caller, asset)
	if err != nil {
		return c, "", newError(CodeInvalidArgument, ref, "%v", err)
	}

	c = model.Commitment{
		Ref:         ref,
		Creator:     req.Caller,
		Description: description,
		Judge:       req.Judge,
		ToSuccess:   req.ToSuccess,
		ToFailure:   req.ToFailure,
		Asset:       asset,
		Vault:       vaultRef,
		Amount:      req.Amount,
		Deadline:    req.Deadline,
		Outcome:     model.Pending(),
		CreatedAt:   now,
	}
	return c, source, nil
}

// Judge records the judge's verdict and releases the vault to the matching
// destination.
//
// Preconditions, first failure wins:
//  0. the commitment exists (NOT_FOUND)
//  1. caller is the judge (NOT_AUTHORIZED)
//  2. outcome is pending (ALREADY_JUDGED)
//  3. now >= deadline (DEADLINE_NOT_PASSED)
//  4. destination is the beneficiary's canonical account (WRONG_DESTINATION)
//
// The caller check runs before the outcome check on purpose: a replay by
// someone other than the judge on a settled record gets NOT_AUTHORIZED, not
// ALREADY_JUDGED. Either way no funds move.
func (e *Engine) Judge(ctx context.Context, req JudgeRequest) (Receipt, error) {
	now := e.now.Now()

	var receipt Receipt
	err := e.store.Update(ctx, func(tx *store.Tx) error {
		c, err := e.loadCommitment(ctx, tx, req.Ref)
		if err != nil {
			return err
		}

		if req.Caller != c.Judge {
			return newError(CodeNotAuthorized, c.Ref, "caller %q is not the judge", req.Caller)
		}
		if !c.Outcome.IsPending() {
			return newError(CodeAlreadyJudged, c.Ref, "outcome already %s", c.Outcome)
		}
		if now < c.Deadline {
			return newError(CodeDeadlineNotPassed, c.Ref, "deadline %d not reached (now %d)", c.Deadline, now).
				withDetail("deadline", fmt.Sprint(c.Deadline))
		}

		beneficiary := c.Beneficiary(req.Verdict)
		if err := checkDestination(c, beneficiary, req.Destination); err != nil {
			return err
		}

		receipt, err = e.settle(ctx, tx, c, model.Judged(req.Verdict), beneficiary, req.Destination, now,
			model.EventJudged, model.JudgedPayload(c, req.Verdict))
		return err
	})
	if err != nil {
		e.logRejected(CommandJudge, req.Ref, req.Caller, err)
		return Receipt{}, err
	}

	slog.Info("commitment judged",
		"ref", req.Ref,
		"judge", req.Caller,
		"verdict", req.Verdict,
		"seq", receipt.Event.Seq,
	)
	e.publish(ctx, receipt.Event)
	return receipt, nil
}

// Clawback releases an unjudged commitment to its success destination once
// the grace period after the deadline has passed. Any caller may issue it.
//
// Preconditions, first failure wins:
//  0. the commitment exists (NOT_FOUND)
//  1. outcome is pending (ALREADY_JUDGED)
//  2. now >= deadline + GracePeriod (DEADLINE_NOT_PASSED)
//  3. destination is to_success's canonical account (WRONG_DESTINATION)
func (e *Engine) Clawback(ctx context.Context, req ClawbackRequest) (Receipt, error) {
	now := e.now.Now()

	var receipt Receipt
	err := e.store.Update(ctx, func(tx *store.Tx) error {
		c, err := e.loadCommitment(ctx, tx, req.Ref)
		if err != nil {
			return err
		}

		if !c.Outcome.IsPending() {
			return newError(CodeAlreadyJudged, c.Ref, "outcome already %s", c.Outcome)
		}
		if reclaimable := c.ReclaimableAt(); now < reclaimable {
			return newError(CodeDeadlineNotPassed, c.Ref, "clawback opens at %d (now %d)", reclaimable, now).
				withDetail("reclaimable_at", fmt.Sprint(reclaimable))
		}
		if err := checkDestination(c, c.ToSuccess, req.Destination); err != nil {
			return err
		}

		receipt, err = e.settle(ctx, tx, c, model.Reclaimed(), c.ToSuccess, req.Destination, now,
			model.EventClawback, model.ClawbackPayload(c))
		return err
	})
	if err != nil {
		e.logRejected(CommandClawback, req.Ref, req.Caller, err)
		return Receipt{}, err
	}

	slog.Info("commitment reclaimed",
		"ref", req.Ref,
		"caller", req.Caller,
		"seq", receipt.Event.Seq,
	)
	e.publish(ctx, receipt.Event)
	return receipt, nil
}

// Execute dispatches cmd to Create, Judge or Clawback.
func (e *Engine) Execute(ctx context.Context, cmd Command) Result {
	var (
		r   Receipt
		err error
	)
	switch cmd.Type {
	case CommandCreate:
		if cmd.Create == nil {
			return Result{Err: fmt.Errorf("create command missing request")}
		}
		r, err = e.Create(ctx, *cmd.Create)
	case CommandJudge:
		if cmd.Judge == nil {
			return Result{Err: fmt.Errorf("judge command missing request")}
		}
		r, err = e.Judge(ctx, *cmd.Judge)
	case CommandClawback:
		if cmd.Clawback == nil {
			return Result{Err: fmt.Errorf("clawback command missing request")}
		}
		r, err = e.Clawback(ctx, *cmd.Clawback)
	default:
		return Result{Err: fmt.Errorf("unknown command type: %d", cmd.Type)}
	}
	return Result{Receipt: r, Err: err}
}

// Fund deposits amount of asset into owner's canonical account. It is the
// entry point for funds and is not an escrow command: no event is recorded.
func (e *Engine) Fund(ctx context.Context, owner model.Identity, asset model.Asset, amount uint64) (model.Account, error) {
	if asset == "" {
		asset = e.asset
	}
	if err := model.ValidateIdentity("owner", owner); err != nil {
		return model.Account{}, newError(CodeInvalidArgument, "", "%v", err)
	}
	if amount == 0 || amount > model.MaxStoredValue {
		return model.Account{}, newError(CodeInvalidAmount, "", "amount %d out of range", amount)
	}

	var acct model.Account
	err := e.store.Update(ctx, func(tx *store.Tx) error {
		var err error
		acct, err = vault.New(tx).Deposit(ctx, owner, asset, amount)
		if err != nil {
			return newVaultError("", err)
		}
		return nil
	})
	if err != nil {
		return model.Account{}, err
	}

	slog.Info("account funded", "owner", owner, "asset", asset, "amount", amount, "balance", acct.Balance)
	return acct, nil
}

// Asset returns the engine's default asset.
func (e *Engine) Asset() model.Asset {
	return e.asset
}

func (e *Engine) loadCommitment(ctx context.Context, tx *store.Tx, ref model.CommitmentRef) (model.Commitment, error) {
	c, err := tx.ReadCommitment(ctx, ref)
	if errors.Is(err, store.ErrNotFound) {
		return model.Commitment{}, newError(CodeNotFound, ref, "no such commitment")
	}
	if err != nil {
		return model.Commitment{}, err
	}
	return c, nil
}

// checkDestination compares the caller-supplied account with the canonical
// account of beneficiary. The caller's value is never trusted on its own.
func checkDestination(c model.Commitment, beneficiary model.Identity, supplied model.AccountRef) error {
	want, err := model.DeriveDestination(beneficiary, c.Asset)
	if err != nil {
		return fmt.Errorf("derive destination: %w", err)
	}
	if supplied != want {
		return newError(CodeWrongDestination, c.Ref, "destination %q is not the account of %q", supplied, beneficiary).
			withDetail("expected", string(want))
	}
	return nil
}

// settle applies a terminal transition: outcome compare-and-set, full vault
// release, event append. The caller's transaction makes the three atomic.
func (e *Engine) settle(
	ctx context.Context,
	tx *store.Tx,
	c model.Commitment,
	outcome model.Outcome,
	owner model.Identity,
	to model.AccountRef,
	now uint64,
	kind model.EventKind,
	payload model.Object,
) (Receipt, error) {
	if err := tx.SettleCommitment(ctx, c.Ref, outcome, now); err != nil {
		if errors.Is(err, store.ErrNotPending) {
			return Receipt{}, newError(CodeAlreadyJudged, c.Ref, "outcome changed concurrently")
		}
		return Receipt{}, err
	}

	moved, err := e.newVault(tx).Release(ctx, c, to, owner)
	if err != nil {
		return Receipt{}, newVaultError(c.Ref, err)
	}
	slog.Debug("vault released", "ref", c.Ref, "to", to, "amount", moved)

	ev, err := e.appendEvent(ctx, tx, kind, c, now, payload)
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{Ref: c.Ref, Event: ev}, nil
}

func (e *Engine) appendEvent(
	ctx context.Context,
	tx *store.Tx,
	kind model.EventKind,
	c model.Commitment,
	now uint64,
	payload model.Object,
) (model.Event, error) {
	ev, err := tx.AppendEvent(ctx, model.Event{
		Kind:      kind,
		Habit:     c.Ref,
		RequestID: e.ids.Generate(),
		At:        now,
		Payload:   payload,
	})
	if err != nil {
		return model.Event{}, fmt.Errorf("append %s event: %w", kind, err)
	}
	return ev, nil
}

// logRejected logs rejections at Info and infrastructure failures at Error.
func (e *Engine) logRejected(cmd CommandType, ref model.CommitmentRef, caller model.Identity, err error) {
	if code := CodeOf(err); code != "" {
		slog.Info("command rejected",
			"command", cmd,
			"ref", ref,
			"caller", caller,
			"code", code,
			"error", err,
		)
		return
	}
	slog.Error("command failed",
		"command", cmd,
		"ref", ref,
		"caller", caller,
		"error", err,
	)
}
