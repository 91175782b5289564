package engine

import (
	"fmt"

	"github.com/roach88/pledge/internal/model"
)

// CreateRequest locks Amount against a new commitment.
// Caller is the authenticated creator. An empty Asset selects the engine default.
type CreateRequest struct {
	Caller      model.Identity `json:"caller"`
	Amount      uint64         `json:"amount"`
	Description string         `json:"description"`
	Judge       model.Identity `json:"judge"`
	ToSuccess   model.Identity `json:"to_success"`
	ToFailure   model.Identity `json:"to_failure"`
	Deadline    uint64         `json:"deadline"`
	Asset       model.Asset    `json:"asset,omitempty"`
}

// JudgeRequest records the judge's verdict. Destination is the account the
// caller expects to receive the funds; it must be the canonical account of
// the winning beneficiary.
type JudgeRequest struct {
	Caller      model.Identity      `json:"caller"`
	Ref         model.CommitmentRef `json:"ref"`
	Verdict     bool                `json:"verdict"`
	Destination model.AccountRef    `json:"destination"`
}

// ClawbackRequest releases an unjudged commitment to its success
// destination once the grace period has passed. Any caller may issue it.
type ClawbackRequest struct {
	Caller      model.Identity      `json:"caller"`
	Ref         model.CommitmentRef `json:"ref"`
	Destination model.AccountRef    `json:"destination"`
}

// Receipt is returned for every accepted command.
type Receipt struct {
	Ref   model.CommitmentRef `json:"ref"`
	Event model.Event         `json:"event"`
}

// CommandType distinguishes the three commands.
type CommandType int

const (
	CommandCreate CommandType = iota + 1
	CommandJudge
	CommandClawback
)

// String returns the lower-case command name used in logs.
func (t CommandType) String() string {
	switch t {
	case CommandCreate:
		return "create"
	case CommandJudge:
		return "judge"
	case CommandClawback:
		return "clawback"
	default:
		return fmt.Sprintf("command(%d)", int(t))
	}
}

// Command wraps one request for Execute and the Submit/Run loop.
// Exactly the field matching Type must be set.
type Command struct {
	Type     CommandType
	Create   *CreateRequest
	Judge    *JudgeRequest
	Clawback *ClawbackRequest
}

// Result is the outcome of executing a Command.
type Result struct {
	Receipt Receipt
	Err     error
}

// CreateCommand wraps req.
func CreateCommand(req CreateRequest) Command {
	return Command{Type: CommandCreate, Create: &req}
}

// JudgeCommand wraps req.
func JudgeCommand(req JudgeRequest) Command {
	return Command{Type: CommandJudge, Judge: &req}
}

// ClawbackCommand wraps req.
func ClawbackCommand(req ClawbackRequest) Command {
	return Command{Type: CommandClawback, Clawback: &req}
}
