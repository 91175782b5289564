package cli

import (
	"context"
	"errors"
	"log/slog"

	"github.com/roach88/pledge/internal/engine"
	"github.com/roach88/pledge/internal/model"
	"github.com/roach88/pledge/internal/store"
)

// session is an open store and the engine over it.
type session struct {
	store  *store.Store
	engine *engine.Engine
}

// openSession opens opts.Database and builds an engine with the configured
// asset and clock.
func openSession(opts *RootOptions) (*session, error) {
	if opts.Database == "" {
		return nil, NewExitError(ExitCommandError, "no database: set --db or PLEDGE_DB")
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	var now engine.TimeSource = engine.SystemClock{}
	if opts.Now != 0 {
		now = engine.FixedTime(opts.Now)
	}

	eng := engine.New(st, now,
		engine.WithAsset(opts.asset()),
		engine.WithSinks(engine.LogSink{}),
	)
	slog.Debug("session opened", "db", opts.Database, "asset", eng.Asset(), "now", now.Now())
	return &session{store: st, engine: eng}, nil
}

func (s *session) Close() {
	if err := s.store.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

func (o *RootOptions) asset() model.Asset {
	if o.Asset == "" {
		return engine.DefaultAsset
	}
	return model.Asset(o.Asset)
}

// now returns the pinned clock or the wall clock.
func (o *RootOptions) now() uint64 {
	if o.Now != 0 {
		return o.Now
	}
	return engine.SystemClock{}.Now()
}

// destination returns raw when set, otherwise the canonical account of
// owner in the asset of commitment ref. An unknown ref falls back to the
// default asset and is left for the engine to reject.
func (s *session) destination(ctx context.Context, opts *RootOptions, ref model.CommitmentRef, owner, raw string) (model.AccountRef, error) {
	if raw != "" {
		return model.AccountRef(raw), nil
	}
	if owner == "" {
		return "", NewExitError(ExitCommandError, "a destination is required: use --to or --destination-ref")
	}

	asset := opts.asset()
	c, err := s.store.ReadCommitment(ctx, ref)
	switch {
	case err == nil:
		asset = c.Asset
	case !errors.Is(err, store.ErrNotFound):
		return "", WrapExitError(ExitCommandError, "failed to read commitment", err)
	}
	return model.DeriveDestination(model.Identity(owner), asset)
}
