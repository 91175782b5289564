package vault

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pledge/internal/model"
	"github.com/roach88/pledge/internal/store"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testCommitment(amount uint64) model.Commitment {
	ref := model.MustDeriveCommitmentRef("alice", "gym")
	return model.Commitment{
		Ref:         ref,
		Creator:     "alice",
		Description: "gym",
		Judge:       "jim",
		ToSuccess:   "sam",
		ToFailure:   "fay",
		Asset:       "TOKEN",
		Vault:       model.MustDeriveVaultRef(ref, "TOKEN"),
		Amount:      amount,
		Deadline:    10,
	}
}

// inTx runs fn with a Ledger in one committed transaction.
func inTx(t *testing.T, s *store.Store, fn func(ctx context.Context, l *Ledger) error) error {
	t.Helper()
	ctx := context.Background()
	return s.Update(ctx, func(tx *store.Tx) error {
		return fn(ctx, New(tx))
	})
}

func balance(t *testing.T, s *store.Store, ref model.AccountRef) uint64 {
	t.Helper()
	var b uint64
	require.NoError(t, inTx(t, s, func(ctx context.Context, l *Ledger) error {
		var err error
		b, err = l.Balance(ctx, ref)
		return err
	}))
	return b
}

func TestDeposit_OpensAndCredits(t *testing.T) {
	s := setupTestStore(t)
	src := model.MustDeriveDestination("alice", "TOKEN")

	require.NoError(t, inTx(t, s, func(ctx context.Context, l *Ledger) error {
		_, err := l.Deposit(ctx, "alice", "TOKEN", 60)
		return err
	}))
	require.NoError(t, inTx(t, s, func(ctx context.Context, l *Ledger) error {
		acct, err := l.Deposit(ctx, "alice", "TOKEN", 40)
		assert.Equal(t, uint64(100), acct.Balance)
		return err
	}))

	assert.Equal(t, uint64(100), balance(t, s, src))
}

func TestDeposit_Rejects(t *testing.T) {
	s := setupTestStore(t)

	err := inTx(t, s, func(ctx context.Context, l *Ledger) error {
		_, err := l.Deposit(ctx, "alice", "TOKEN", 0)
		return err
	})
	assert.Error(t, err)

	require.NoError(t, inTx(t, s, func(ctx context.Context, l *Ledger) error {
		_, err := l.Deposit(ctx, "alice", "TOKEN", model.MaxStoredValue)
		return err
	}))
	err = inTx(t, s, func(ctx context.Context, l *Ledger) error {
		_, err := l.Deposit(ctx, "alice", "TOKEN", 1)
		return err
	})
	assert.ErrorIs(t, err, ErrOverflow)

	err = inTx(t, s, func(ctx context.Context, l *Ledger) error {
		_, err := l.Deposit(ctx, "bob", "TOKEN", math.MaxUint64)
		return err
	})
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestLock_MovesFundsIntoVault(t *testing.T) {
	s := setupTestStore(t)
	c := testCommitment(100)
	src := model.MustDeriveDestination("alice", "TOKEN")

	require.NoError(t, inTx(t, s, func(ctx context.Context, l *Ledger) error {
		if _, err := l.Deposit(ctx, "alice", "TOKEN", 150); err != nil {
			return err
		}
		return l.Lock(ctx, c, src)
	}))

	assert.Equal(t, uint64(50), balance(t, s, src))
	assert.Equal(t, uint64(100), balance(t, s, c.Vault.Account()))
}

func TestLock_InsufficientFunds(t *testing.T) {
	s := setupTestStore(t)
	c := testCommitment(100)
	src := model.MustDeriveDestination("alice", "TOKEN")

	err := inTx(t, s, func(ctx context.Context, l *Ledger) error {
		return l.Lock(ctx, c, src)
	})
	assert.ErrorIs(t, err, ErrInsufficientFunds, "missing source account")

	require.NoError(t, inTx(t, s, func(ctx context.Context, l *Ledger) error {
		_, err := l.Deposit(ctx, "alice", "TOKEN", 99)
		return err
	}))
	err = inTx(t, s, func(ctx context.Context, l *Ledger) error {
		return l.Lock(ctx, c, src)
	})
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	assert.Equal(t, uint64(99), balance(t, s, src))
	assert.Equal(t, uint64(0), balance(t, s, c.Vault.Account()))
}

func TestLock_VaultMustBeFresh(t *testing.T) {
	s := setupTestStore(t)
	c := testCommitment(10)
	src := model.MustDeriveDestination("alice", "TOKEN")

	require.NoError(t, inTx(t, s, func(ctx context.Context, l *Ledger) error {
		if _, err := l.Deposit(ctx, "alice", "TOKEN", 100); err != nil {
			return err
		}
		return l.Lock(ctx, c, src)
	}))

	err := inTx(t, s, func(ctx context.Context, l *Ledger) error {
		return l.Lock(ctx, c, src)
	})
	assert.ErrorIs(t, err, ErrVaultExists)
	assert.Equal(t, uint64(90), balance(t, s, src), "failed lock must not debit")
}

func TestLock_AssetMismatch(t *testing.T) {
	s := setupTestStore(t)
	c := testCommitment(10)
	gold := model.MustDeriveDestination("alice", "GOLD")

	err := inTx(t, s, func(ctx context.Context, l *Ledger) error {
		if _, err := l.Deposit(ctx, "alice", "GOLD", 100); err != nil {
			return err
		}
		return l.Lock(ctx, c, gold)
	})
	assert.ErrorIs(t, err, ErrAssetMismatch)
}

func TestRelease_MovesEntireBalance(t *testing.T) {
	s := setupTestStore(t)
	c := testCommitment(100)
	src := model.MustDeriveDestination("alice", "TOKEN")
	dst := model.MustDeriveDestination("sam", "TOKEN")

	require.NoError(t, inTx(t, s, func(ctx context.Context, l *Ledger) error {
		if _, err := l.Deposit(ctx, "alice", "TOKEN", 100); err != nil {
			return err
		}
		return l.Lock(ctx, c, src)
	}))

	var moved uint64
	require.NoError(t, inTx(t, s, func(ctx context.Context, l *Ledger) error {
		var err error
		moved, err = l.Release(ctx, c, dst, "sam")
		return err
	}))

	assert.Equal(t, uint64(100), moved)
	assert.Equal(t, uint64(100), balance(t, s, dst))
	assert.Equal(t, uint64(0), balance(t, s, c.Vault.Account()))

	acct, err := s.ReadAccount(context.Background(), dst)
	require.NoError(t, err)
	assert.Equal(t, model.Identity("sam"), acct.Owner)
}

func TestRelease_EmptyVaultFails(t *testing.T) {
	s := setupTestStore(t)
	c := testCommitment(100)
	src := model.MustDeriveDestination("alice", "TOKEN")
	dst := model.MustDeriveDestination("sam", "TOKEN")

	err := inTx(t, s, func(ctx context.Context, l *Ledger) error {
		_, err := l.Release(ctx, c, dst, "sam")
		return err
	})
	assert.ErrorIs(t, err, ErrEmptyVault, "vault never opened")

	require.NoError(t, inTx(t, s, func(ctx context.Context, l *Ledger) error {
		if _, err := l.Deposit(ctx, "alice", "TOKEN", 100); err != nil {
			return err
		}
		if err := l.Lock(ctx, c, src); err != nil {
			return err
		}
		_, err := l.Release(ctx, c, dst, "sam")
		return err
	}))

	err = inTx(t, s, func(ctx context.Context, l *Ledger) error {
		_, err := l.Release(ctx, c, dst, "sam")
		return err
	})
	assert.ErrorIs(t, err, ErrEmptyVault, "second release")
	assert.Equal(t, uint64(100), balance(t, s, dst))
}
