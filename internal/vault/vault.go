// Package vault moves escrowed funds between accounts inside a store
// transaction. It knows nothing about deadlines or judges; the engine
// decides when a move is allowed and the vault only enforces balances.
package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/pledge/internal/model"
	"github.com/roach88/pledge/internal/store"
)

// Vault-boundary failures. Every failure aborts the enclosing transaction.
var (
	// ErrInsufficientFunds means the source account is missing or short.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrVaultExists means a vault account was already opened for the commitment.
	ErrVaultExists = errors.New("vault already exists")

	// ErrEmptyVault means a release found nothing to move. Releasing zero is
	// never a silent success.
	ErrEmptyVault = errors.New("vault is empty")

	// ErrOverflow means a credit would exceed the storable range.
	ErrOverflow = errors.New("balance overflow")

	// ErrAssetMismatch means an account holds a different asset than requested.
	ErrAssetMismatch = errors.New("asset mismatch")
)

// Ledger is the store-backed vault. A Ledger is bound to one transaction
// and must not outlive it.
type Ledger struct {
	tx *store.Tx
}

// New binds a Ledger to tx.
func New(tx *store.Tx) *Ledger {
	return &Ledger{tx: tx}
}

// Deposit credits amount of asset to owner's canonical account, opening it
// if needed. It is how funds enter the system.
func (l *Ledger) Deposit(ctx context.Context, owner model.Identity, asset model.Asset, amount uint64) (model.Account, error) {
	if amount == 0 {
		return model.Account{}, fmt.Errorf("deposit: amount must be positive")
	}
	ref, err := model.DeriveDestination(owner, asset)
	if err != nil {
		return model.Account{}, fmt.Errorf("deposit: %w", err)
	}
	acct, err := l.credit(ctx, ref, owner, asset, amount)
	if err != nil {
		return model.Account{}, fmt.Errorf("deposit: %w", err)
	}
	slog.Debug("deposit", "owner", owner, "asset", asset, "amount", amount, "balance", acct.Balance)
	return acct, nil
}

// Lock moves c.Amount from the from account into a fresh vault account
// owned by the commitment. The vault must not exist yet.
func (l *Ledger) Lock(ctx context.Context, c model.Commitment, from model.AccountRef) error {
	src, err := l.tx.ReadAccount(ctx, from)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("lock: source %s: %w", from, ErrInsufficientFunds)
	}
	if err != nil {
		return fmt.Errorf("lock: %w", err)
	}
	if src.Asset != c.Asset {
		return fmt.Errorf("lock: source holds %s, want %s: %w", src.Asset, c.Asset, ErrAssetMismatch)
	}
	if src.Balance < c.Amount {
		return fmt.Errorf("lock: source has %d, need %d: %w", src.Balance, c.Amount, ErrInsufficientFunds)
	}

	err = l.tx.InsertAccount(ctx, model.Account{
		Ref:     c.Vault.Account(),
		Owner:   model.Identity(c.Ref),
		Asset:   c.Asset,
		Balance: c.Amount,
	})
	if errors.Is(err, store.ErrExists) {
		return fmt.Errorf("lock: %s: %w", c.Vault, ErrVaultExists)
	}
	if err != nil {
		return fmt.Errorf("lock: %w", err)
	}

	if err := l.tx.SetBalance(ctx, from, src.Balance-c.Amount); err != nil {
		return fmt.Errorf("lock: %w", err)
	}
	return nil
}

// Release moves the entire vault balance of c to the account to, opening it
// for owner if needed, and returns the amount moved.
func (l *Ledger) Release(ctx context.Context, c model.Commitment, to model.AccountRef, owner model.Identity) (uint64, error) {
	v, err := l.tx.ReadAccount(ctx, c.Vault.Account())
	if errors.Is(err, store.ErrNotFound) {
		return 0, fmt.Errorf("release: vault %s: %w", c.Vault, ErrEmptyVault)
	}
	if err != nil {
		return 0, fmt.Errorf("release: %w", err)
	}
	if v.Balance == 0 {
		return 0, fmt.Errorf("release: vault %s: %w", c.Vault, ErrEmptyVault)
	}

	if _, err := l.credit(ctx, to, owner, v.Asset, v.Balance); err != nil {
		return 0, fmt.Errorf("release: %w", err)
	}
	if err := l.tx.SetBalance(ctx, v.Ref, 0); err != nil {
		return 0, fmt.Errorf("release: %w", err)
	}
	return v.Balance, nil
}

// Balance returns the balance of ref, or 0 if the account does not exist.
func (l *Ledger) Balance(ctx context.Context, ref model.AccountRef) (uint64, error) {
	acct, err := l.tx.ReadAccount(ctx, ref)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("balance: %w", err)
	}
	return acct.Balance, nil
}

// credit adds amount to ref, opening the account when it does not exist.
func (l *Ledger) credit(ctx context.Context, ref model.AccountRef, owner model.Identity, asset model.Asset, amount uint64) (model.Account, error) {
	acct, err := l.tx.ReadAccount(ctx, ref)
	if errors.Is(err, store.ErrNotFound) {
		if amount > model.MaxStoredValue {
			return model.Account{}, fmt.Errorf("credit %s: %w", ref, ErrOverflow)
		}
		acct = model.Account{Ref: ref, Owner: owner, Asset: asset, Balance: amount}
		if err := l.tx.InsertAccount(ctx, acct); err != nil {
			return model.Account{}, err
		}
		return acct, nil
	}
	if err != nil {
		return model.Account{}, err
	}

	if acct.Asset != asset {
		return model.Account{}, fmt.Errorf("credit %s: holds %s, want %s: %w", ref, acct.Asset, asset, ErrAssetMismatch)
	}
	if amount > model.MaxStoredValue-acct.Balance {
		return model.Account{}, fmt.Errorf("credit %s: %w", ref, ErrOverflow)
	}
	acct.Balance += amount
	if err := l.tx.SetBalance(ctx, ref, acct.Balance); err != nil {
		return model.Account{}, err
	}
	return acct, nil
}
