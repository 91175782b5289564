package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pledge/internal/model"
)

const testNow = 1_000_000

// cliEnv runs commands against one temporary database with a pinned clock.
type cliEnv struct {
	t   *testing.T
	db  string
	now uint64
}

func newCLI(t *testing.T) *cliEnv {
	t.Helper()
	return &cliEnv{t: t, db: filepath.Join(t.TempDir(), "pledge.db"), now: testNow}
}

func (c *cliEnv) opts(format string) *RootOptions {
	return &RootOptions{Format: format, Database: c.db, Asset: "TOKEN", Now: c.now}
}

// exec runs the command built by newCmd and returns its stdout.
func (c *cliEnv) exec(format string, newCmd func(*RootOptions) *cobra.Command, stdin string, args ...string) (string, error) {
	c.t.Helper()
	out := &bytes.Buffer{}
	cmd := newCmd(c.opts(format))
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func (c *cliEnv) text(newCmd func(*RootOptions) *cobra.Command, args ...string) (string, error) {
	c.t.Helper()
	return c.exec("text", newCmd, "", args...)
}

// json runs a command with --format json and decodes the response.
func (c *cliEnv) json(newCmd func(*RootOptions) *cobra.Command, args ...string) (CLIResponse, error) {
	c.t.Helper()
	out, err := c.exec("json", newCmd, "", args...)
	var resp CLIResponse
	require.NoError(c.t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp, err
}

// decodeData re-decodes resp.Data into v.
func decodeData(t *testing.T, resp CLIResponse, v any) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, v))
}

// seed funds alice and creates "no meme coins" with a deadline 10s out.
func (c *cliEnv) seed() model.CommitmentRef {
	c.t.Helper()
	_, err := c.text(NewFundCommand, "alice", "1000")
	require.NoError(c.t, err)
	_, err = c.text(NewCreateCommand,
		"--as", "alice", "--description", "no meme coins", "--amount", "100",
		"--judge", "jim", "--to-success", "sam", "--to-failure", "fay", "--in", "10s")
	require.NoError(c.t, err)
	return model.MustDeriveCommitmentRef("alice", "no meme coins")
}
