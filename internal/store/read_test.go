package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pledge/internal/model"
	"github.com/roach88/pledge/internal/query"
)

func TestReadCommitment_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadCommitment(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReadAccount_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadAccount(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListCommitments(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	a := createTestCommitment("alice", "a", 300)
	b := createTestCommitment("bob", "b", 100)
	c := createTestCommitment("alice", "c", 200)
	c.Judge = "other"
	for _, x := range []model.Commitment{a, b, c} {
		insertTestCommitment(t, s, x)
	}
	require.NoError(t, s.Update(ctx, func(tx *Tx) error {
		return tx.SettleCommitment(ctx, b.Ref, model.Reclaimed(), 1)
	}))

	refs := func(cs []model.Commitment) []model.CommitmentRef {
		out := make([]model.CommitmentRef, len(cs))
		for i, c := range cs {
			out[i] = c.Ref
		}
		return out
	}

	tests := []struct {
		name   string
		filter query.Filter
		want   []model.CommitmentRef
	}{
		{"all by deadline", query.Filter{}, []model.CommitmentRef{b.Ref, c.Ref, a.Ref}},
		{"creator", query.Filter{Creator: "alice"}, []model.CommitmentRef{c.Ref, a.Ref}},
		{"judge", query.Filter{Judge: "other"}, []model.CommitmentRef{c.Ref}},
		{"outcome", query.Filter{Outcome: "reclaimed"}, []model.CommitmentRef{b.Ref}},
		{"pending due", query.Filter{Outcome: "pending", DueBefore: 300}, []model.CommitmentRef{c.Ref}},
		{"limit", query.Filter{Limit: 1}, []model.CommitmentRef{b.Ref}},
		{"no match", query.Filter{Creator: "nobody"}, []model.CommitmentRef{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListCommitments(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, refs(got))
		})
	}
}

func TestListCommitments_InvalidFilter(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ListCommitments(context.Background(), query.Filter{Outcome: "maybe"})
	assert.Error(t, err)
}

func TestListAccounts(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, func(tx *Tx) error {
		for _, a := range []model.Account{
			{Ref: "b", Owner: "bob", Asset: "TOKEN", Balance: 1},
			{Ref: "a", Owner: "alice", Asset: "TOKEN", Balance: 2},
			{Ref: "c", Owner: "alice", Asset: "GOLD", Balance: 3},
		} {
			if err := tx.InsertAccount(ctx, a); err != nil {
				return err
			}
		}
		return nil
	}))

	all, err := s.ListAccounts(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, model.AccountRef("a"), all[0].Ref)

	alice, err := s.ListAccounts(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, alice, 2)
	assert.Equal(t, model.Asset("GOLD"), alice[1].Asset)
}

func TestReplay_PagesThroughLog(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// More than one page of events across many commitments.
	total := replayPageSize + 10
	require.NoError(t, s.Update(ctx, func(tx *Tx) error {
		for i := 0; i < total; i++ {
			c := createTestCommitment("alice", fmt.Sprintf("habit %d", i), 100)
			if err := tx.InsertCommitment(ctx, c); err != nil {
				return err
			}
			if _, err := tx.AppendEvent(ctx, model.Event{Kind: model.EventCreated, Habit: c.Ref, Payload: model.Object{}}); err != nil {
				return err
			}
		}
		return nil
	}))

	var seen []uint64
	err := s.Replay(ctx, 0, func(ev model.Event) error {
		// fn may query while replaying.
		_, err := s.ReadCommitment(ctx, ev.Habit)
		seen = append(seen, ev.Seq)
		return err
	})
	require.NoError(t, err)
	require.Len(t, seen, total)
	for i, seq := range seen {
		assert.Equal(t, uint64(i+1), seq)
	}

	last, err := s.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(total), last)

	tail, err := s.ReadEvents(ctx, uint64(total-3), 0)
	require.NoError(t, err)
	assert.Len(t, tail, 3)
}

func TestReplay_StopsOnError(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	c := createTestCommitment("alice", "a", 100)
	require.NoError(t, s.Update(ctx, func(tx *Tx) error {
		if err := tx.InsertCommitment(ctx, c); err != nil {
			return err
		}
		for i := 0; i < 2; i++ {
			if _, err := tx.AppendEvent(ctx, model.Event{Kind: model.EventCreated, Habit: c.Ref, Payload: model.Object{}}); err != nil {
				return err
			}
		}
		return nil
	}))

	calls := 0
	stop := fmt.Errorf("stop")
	err := s.Replay(ctx, 0, func(model.Event) error {
		calls++
		return stop
	})
	assert.Same(t, stop, err)
	assert.Equal(t, 1, calls)
}
