package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/pledge/internal/model"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestCommitment builds a pending commitment with derived refs.
func createTestCommitment(creator model.Identity, description string, deadline uint64) model.Commitment {
	ref := model.MustDeriveCommitmentRef(creator, description)
	return model.Commitment{
		Ref:         ref,
		Creator:     creator,
		Description: description,
		Judge:       "judge",
		ToSuccess:   "success",
		ToFailure:   "failure",
		Asset:       "TOKEN",
		Vault:       model.MustDeriveVaultRef(ref, "TOKEN"),
		Amount:      100,
		Deadline:    deadline,
		Outcome:     model.Pending(),
		CreatedAt:   1,
	}
}

// insertTestCommitment writes c in its own transaction.
func insertTestCommitment(t *testing.T, s *Store, c model.Commitment) {
	t.Helper()
	err := s.Update(context.Background(), func(tx *Tx) error {
		return tx.InsertCommitment(context.Background(), c)
	})
	if err != nil {
		t.Fatalf("InsertCommitment() failed: %v", err)
	}
}
