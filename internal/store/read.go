package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/pledge/internal/model"
	"github.com/roach88/pledge/internal/query"
)

// ReadCommitment retrieves a commitment by ref.
// Returns an error wrapping ErrNotFound if it does not exist.
func (s *Store) ReadCommitment(ctx context.Context, ref model.CommitmentRef) (model.Commitment, error) {
	return readCommitment(ctx, s.db, ref)
}

// ReadCommitment is the in-transaction variant of Store.ReadCommitment.
func (t *Tx) ReadCommitment(ctx context.Context, ref model.CommitmentRef) (model.Commitment, error) {
	return readCommitment(ctx, t.tx, ref)
}

// ReadAccount retrieves an account by ref.
// Returns an error wrapping ErrNotFound if it does not exist.
func (s *Store) ReadAccount(ctx context.Context, ref model.AccountRef) (model.Account, error) {
	return readAccount(ctx, s.db, ref)
}

// ReadAccount is the in-transaction variant of Store.ReadAccount.
func (t *Tx) ReadAccount(ctx context.Context, ref model.AccountRef) (model.Account, error) {
	return readAccount(ctx, t.tx, ref)
}

// ReadEventsForCommitment returns every event for one commitment in seq order.
func (s *Store) ReadEventsForCommitment(ctx context.Context, ref model.CommitmentRef) ([]model.Event, error) {
	return readEvents(ctx, s.db, `
		SELECT seq, kind, habit, request_id, at, payload
		FROM events
		WHERE habit = ?
		ORDER BY seq ASC
	`, string(ref))
}

// ReadEventsForCommitment is the in-transaction variant of
// Store.ReadEventsForCommitment.
func (t *Tx) ReadEventsForCommitment(ctx context.Context, ref model.CommitmentRef) ([]model.Event, error) {
	return readEvents(ctx, t.tx, `
		SELECT seq, kind, habit, request_id, at, payload
		FROM events
		WHERE habit = ?
		ORDER BY seq ASC
	`, string(ref))
}

// ListCommitments returns commitments matching f, ordered by deadline then ref.
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) ListCommitments(ctx context.Context, f query.Filter) ([]model.Commitment, error) {
	sqlText, params, err := query.CompileFilter(f)
	if err != nil {
		return nil, fmt.Errorf("list commitments: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, fmt.Errorf("list commitments: %w", err)
	}
	defer rows.Close()

	commitments := []model.Commitment{}
	for rows.Next() {
		c, err := scanCommitment(rows)
		if err != nil {
			return nil, fmt.Errorf("list commitments: %w", err)
		}
		commitments = append(commitments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commitments: %w", err)
	}
	return commitments, nil
}

// ListAccounts returns accounts owned by owner, or every account when owner
// is empty, ordered by ref.
func (s *Store) ListAccounts(ctx context.Context, owner model.Identity) ([]model.Account, error) {
	sqlText := `SELECT ref, owner, asset, balance FROM accounts`
	var params []any
	if owner != "" {
		sqlText += ` WHERE owner = ?`
		params = append(params, string(owner))
	}
	sqlText += ` ORDER BY ref COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	accounts := []model.Account{}
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("list accounts: %w", err)
		}
		accounts = append(accounts, acct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, nil
}

func readCommitment(ctx context.Context, q querier, ref model.CommitmentRef) (model.Commitment, error) {
	row := q.QueryRowContext(ctx, `SELECT `+query.Columns+` FROM commitments WHERE ref = ?`, string(ref))
	c, err := scanCommitment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Commitment{}, fmt.Errorf("commitment %s: %w", ref, ErrNotFound)
	}
	if err != nil {
		return model.Commitment{}, fmt.Errorf("read commitment: %w", err)
	}
	return c, nil
}

func readAccount(ctx context.Context, q querier, ref model.AccountRef) (model.Account, error) {
	row := q.QueryRowContext(ctx, `SELECT ref, owner, asset, balance FROM accounts WHERE ref = ?`, string(ref))
	acct, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, fmt.Errorf("account %s: %w", ref, ErrNotFound)
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("read account: %w", err)
	}
	return acct, nil
}

func readEvents(ctx context.Context, q querier, sqlText string, args ...any) ([]model.Event, error) {
	rows, err := q.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []model.Event{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanCommitment scans the columns listed in query.Columns.
func scanCommitment(row scanner) (model.Commitment, error) {
	var (
		c                                   model.Commitment
		ref, creator, judge, toSuccess      string
		toFailure, asset, vault, outcomeStr string
		amount, deadline, createdAt, settledAt int64
	)
	if err := row.Scan(
		&ref, &creator, &c.Description, &judge, &toSuccess, &toFailure,
		&asset, &vault, &amount, &deadline, &outcomeStr, &createdAt, &settledAt,
	); err != nil {
		return model.Commitment{}, err
	}

	outcome, err := model.ParseOutcome(outcomeStr)
	if err != nil {
		return model.Commitment{}, fmt.Errorf("commitment %s: %w", ref, err)
	}

	c.Ref = model.CommitmentRef(ref)
	c.Creator = model.Identity(creator)
	c.Judge = model.Identity(judge)
	c.ToSuccess = model.Identity(toSuccess)
	c.ToFailure = model.Identity(toFailure)
	c.Asset = model.Asset(asset)
	c.Vault = model.VaultRef(vault)
	c.Outcome = outcome

	for _, f := range []struct {
		name string
		src  int64
		dst  *uint64
	}{
		{"amount", amount, &c.Amount},
		{"deadline", deadline, &c.Deadline},
		{"created_at", createdAt, &c.CreatedAt},
		{"settled_at", settledAt, &c.SettledAt},
	} {
		v, err := fromInt64(f.name, f.src)
		if err != nil {
			return model.Commitment{}, fmt.Errorf("commitment %s: %w", ref, err)
		}
		*f.dst = v
	}
	return c, nil
}

func scanAccount(row scanner) (model.Account, error) {
	var (
		ref, owner, asset string
		balance           int64
	)
	if err := row.Scan(&ref, &owner, &asset, &balance); err != nil {
		return model.Account{}, err
	}
	b, err := fromInt64("balance", balance)
	if err != nil {
		return model.Account{}, fmt.Errorf("account %s: %w", ref, err)
	}
	return model.Account{
		Ref:     model.AccountRef(ref),
		Owner:   model.Identity(owner),
		Asset:   model.Asset(asset),
		Balance: b,
	}, nil
}

func scanEvent(row scanner) (model.Event, error) {
	var (
		seq, at                       int64
		kind, habit, requestID, rawPL string
	)
	if err := row.Scan(&seq, &kind, &habit, &requestID, &at, &rawPL); err != nil {
		return model.Event{}, fmt.Errorf("scan event: %w", err)
	}
	payload, err := unmarshalPayload(rawPL)
	if err != nil {
		return model.Event{}, fmt.Errorf("event %d: %w", seq, err)
	}
	atU, err := fromInt64("at", at)
	if err != nil {
		return model.Event{}, fmt.Errorf("event %d: %w", seq, err)
	}
	return model.Event{
		Seq:       uint64(seq),
		Kind:      model.EventKind(kind),
		Habit:     model.CommitmentRef(habit),
		RequestID: requestID,
		At:        atU,
		Payload:   payload,
	}, nil
}
