package store

import (
	"context"
	"fmt"

	"github.com/roach88/pledge/internal/model"
)

// InsertCommitment persists a new pending commitment.
// Uses ON CONFLICT DO NOTHING and reports a collision on ref, vault or
// (creator, description) as ErrExists.
func (t *Tx) InsertCommitment(ctx context.Context, c model.Commitment) error {
	amount, err := toInt64("amount", c.Amount)
	if err != nil {
		return fmt.Errorf("insert commitment: %w", err)
	}
	deadline, err := toInt64("deadline", c.Deadline)
	if err != nil {
		return fmt.Errorf("insert commitment: %w", err)
	}
	createdAt, err := toInt64("created_at", c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert commitment: %w", err)
	}

	result, err := t.tx.ExecContext(ctx, `
		INSERT INTO commitments
		(ref, creator, description, judge, to_success, to_failure, asset, vault, amount, deadline, outcome, created_at, settled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'pending', ?, 0)
		ON CONFLICT DO NOTHING
	`,
		string(c.Ref),
		string(c.Creator),
		c.Description,
		string(c.Judge),
		string(c.ToSuccess),
		string(c.ToFailure),
		string(c.Asset),
		string(c.Vault),
		amount,
		deadline,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert commitment: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert commitment: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("insert commitment %s: %w", c.Ref, ErrExists)
	}
	return nil
}

// SettleCommitment moves a pending commitment to a terminal outcome.
// The update is a compare-and-set on outcome = 'pending': if another
// command already settled the record, nothing changes and ErrNotPending
// is returned.
func (t *Tx) SettleCommitment(ctx context.Context, ref model.CommitmentRef, outcome model.Outcome, at uint64) error {
	if outcome.IsPending() {
		return fmt.Errorf("settle commitment %s: outcome must be terminal", ref)
	}
	settledAt, err := toInt64("settled_at", at)
	if err != nil {
		return fmt.Errorf("settle commitment: %w", err)
	}

	result, err := t.tx.ExecContext(ctx, `
		UPDATE commitments
		SET outcome = ?, settled_at = ?
		WHERE ref = ? AND outcome = 'pending'
	`, outcome.String(), settledAt, string(ref))
	if err != nil {
		return fmt.Errorf("settle commitment: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("settle commitment: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("settle commitment %s: %w", ref, ErrNotPending)
	}
	return nil
}

// InsertAccount opens an account with the given starting balance.
// Returns ErrExists if the ref is taken.
func (t *Tx) InsertAccount(ctx context.Context, acct model.Account) error {
	balance, err := toInt64("balance", acct.Balance)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}

	result, err := t.tx.ExecContext(ctx, `
		INSERT INTO accounts (ref, owner, asset, balance)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(ref) DO NOTHING
	`, string(acct.Ref), string(acct.Owner), string(acct.Asset), balance)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert account: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("insert account %s: %w", acct.Ref, ErrExists)
	}
	return nil
}

// SetBalance overwrites an existing account's balance.
// Returns ErrNotFound if the account does not exist.
func (t *Tx) SetBalance(ctx context.Context, ref model.AccountRef, balance uint64) error {
	b, err := toInt64("balance", balance)
	if err != nil {
		return fmt.Errorf("set balance: %w", err)
	}

	result, err := t.tx.ExecContext(ctx, `
		UPDATE accounts SET balance = ? WHERE ref = ?
	`, b, string(ref))
	if err != nil {
		return fmt.Errorf("set balance: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set balance: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("set balance %s: %w", ref, ErrNotFound)
	}
	return nil
}

// AppendEvent appends ev to the log and returns it with Seq assigned.
// Seq is one past the current maximum, computed inside the transaction,
// so the log has no gaps.
func (t *Tx) AppendEvent(ctx context.Context, ev model.Event) (model.Event, error) {
	at, err := toInt64("at", ev.At)
	if err != nil {
		return model.Event{}, fmt.Errorf("append event: %w", err)
	}
	payload, err := marshalPayload(ev.Payload)
	if err != nil {
		return model.Event{}, fmt.Errorf("append event: %w", err)
	}

	var seq int64
	if err := t.tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM events`).Scan(&seq); err != nil {
		return model.Event{}, fmt.Errorf("append event: next seq: %w", err)
	}

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO events (seq, kind, habit, request_id, at, payload)
		VALUES (?, ?, ?, ?, ?, ?)
	`, seq, string(ev.Kind), string(ev.Habit), ev.RequestID, at, payload)
	if err != nil {
		return model.Event{}, fmt.Errorf("append event: %w", err)
	}

	ev.Seq = uint64(seq)
	return ev, nil
}
