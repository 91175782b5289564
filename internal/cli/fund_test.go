package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pledge/internal/model"
)

func TestFundAndBalance(t *testing.T) {
	c := newCLI(t)

	out, err := c.text(NewFundCommand, "alice", "1000")
	require.NoError(t, err)
	assert.Contains(t, out, "Funded alice: balance 1000 TOKEN")
	assert.Contains(t, out, string(model.MustDeriveDestination("alice", "TOKEN")))

	_, err = c.text(NewFundCommand, "alice", "5")
	require.NoError(t, err)

	resp, err := c.json(NewBalanceCommand, "alice")
	require.NoError(t, err)
	var accounts []model.Account
	decodeData(t, resp, &accounts)
	require.Len(t, accounts, 1)
	assert.Equal(t, uint64(1005), accounts[0].Balance)
	assert.Equal(t, model.Identity("alice"), accounts[0].Owner)
}

func TestFund_InvalidAmount(t *testing.T) {
	c := newCLI(t)

	out, err := c.text(NewFundCommand, "alice", "lots")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeInvalidInput)
}

func TestFund_ZeroIsRejected(t *testing.T) {
	c := newCLI(t)

	_, err := c.text(NewFundCommand, "alice", "0")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestBalance_UnknownOwner(t *testing.T) {
	c := newCLI(t)

	out, err := c.text(NewBalanceCommand, "nobody")
	require.NoError(t, err)
	assert.Contains(t, out, "No accounts for nobody")
}

func TestMissingDatabase(t *testing.T) {
	c := newCLI(t)
	c.db = ""

	_, err := c.text(NewBalanceCommand, "alice")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no database")
}
