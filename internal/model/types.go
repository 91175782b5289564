package model

import (
	"fmt"
	"math"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// GracePeriod is how long after the deadline a judge has to rule before
// anyone may reclaim the funds to the success destination. Seconds (7 days).
const GracePeriod uint64 = 604800

// Bounds on caller-supplied text.
const (
	// MaxDescriptionBytes caps a description after NFC normalisation.
	MaxDescriptionBytes = 32

	// MaxIdentityBytes caps creator, judge and destination identities.
	MaxIdentityBytes = 64
)

// MaxStoredValue is the largest amount or timestamp that can be persisted.
const MaxStoredValue uint64 = math.MaxInt64

// Identity names a party: creator, judge, or a destination owner.
// Identities arrive already authenticated; this package only compares them.
type Identity string

// Asset names the fungible token a commitment escrows.
type Asset string

// AccountRef addresses a balance-holding account.
type AccountRef string

// CommitmentRef is the content-addressed identity of a commitment.
type CommitmentRef string

// VaultRef addresses the account holding one commitment's locked funds.
type VaultRef string

// Account returns the vault as a plain account reference.
func (v VaultRef) Account() AccountRef {
	return AccountRef(v)
}

// Account is a balance of one asset held for one owner.
// Vault accounts are owned by the commitment they escrow for.
type Account struct {
	Ref     AccountRef `json:"ref"`
	Owner   Identity   `json:"owner"`
	Asset   Asset      `json:"asset"`
	Balance uint64     `json:"balance"`
}

// OutcomeState enumerates the lifecycle states of a commitment.
type OutcomeState uint8

const (
	// OutcomePending is the initial state: funds locked, no verdict.
	OutcomePending OutcomeState = iota
	// OutcomeJudged means the judge ruled and funds went to the matching destination.
	OutcomeJudged
	// OutcomeReclaimed means nobody ruled in time and funds went to the success destination.
	OutcomeReclaimed
)

// Outcome is the write-once result of a commitment.
// The zero value is Pending.
type Outcome struct {
	state   OutcomeState
	success bool
}

// Pending returns the initial outcome.
func Pending() Outcome { return Outcome{state: OutcomePending} }

// Judged returns the outcome of a verdict.
func Judged(success bool) Outcome { return Outcome{state: OutcomeJudged, success: success} }

// Reclaimed returns the outcome of a clawback.
func Reclaimed() Outcome { return Outcome{state: OutcomeReclaimed} }

// State returns the lifecycle state.
func (o Outcome) State() OutcomeState { return o.state }

// IsPending reports whether no terminal transition has happened yet.
func (o Outcome) IsPending() bool { return o.state == OutcomePending }

// IsTerminal reports whether funds have been released.
func (o Outcome) IsTerminal() bool { return o.state != OutcomePending }

// Verdict returns the judge's ruling. ok is false unless the outcome is Judged.
func (o Outcome) Verdict() (success bool, ok bool) {
	if o.state != OutcomeJudged {
		return false, false
	}
	return o.success, true
}

// String returns the persisted spelling of the outcome.
func (o Outcome) String() string {
	switch o.state {
	case OutcomePending:
		return "pending"
	case OutcomeJudged:
		if o.success {
			return "success"
		}
		return "failure"
	case OutcomeReclaimed:
		return "reclaimed"
	default:
		return fmt.Sprintf("outcome(%d)", o.state)
	}
}

// ParseOutcome is the inverse of Outcome.String.
func ParseOutcome(s string) (Outcome, error) {
	switch s {
	case "pending":
		return Pending(), nil
	case "success":
		return Judged(true), nil
	case "failure":
		return Judged(false), nil
	case "reclaimed":
		return Reclaimed(), nil
	default:
		return Outcome{}, fmt.Errorf("unknown outcome %q", s)
	}
}

// Commitment is the persistent record of one habit.
// Everything except Outcome and SettledAt is immutable after creation.
type Commitment struct {
	Ref         CommitmentRef `json:"ref"`
	Creator     Identity      `json:"creator"`
	Description string        `json:"description"`
	Judge       Identity      `json:"judge"`
	ToSuccess   Identity      `json:"to_success"`
	ToFailure   Identity      `json:"to_failure"`
	Asset       Asset         `json:"asset"`
	Vault       VaultRef      `json:"vault"`
	Amount      uint64        `json:"amount"`
	Deadline    uint64        `json:"deadline"`
	Outcome     Outcome       `json:"-"`
	CreatedAt   uint64        `json:"created_at"`
	SettledAt   uint64        `json:"settled_at,omitempty"` // 0 while pending
}

// Beneficiary returns the identity that receives funds for a verdict.
func (c Commitment) Beneficiary(success bool) Identity {
	if success {
		return c.ToSuccess
	}
	return c.ToFailure
}

// ReclaimableAt returns the first instant a clawback is permitted.
// Saturates at MaxUint64 instead of wrapping.
func (c Commitment) ReclaimableAt() uint64 {
	if c.Deadline > math.MaxUint64-GracePeriod {
		return math.MaxUint64
	}
	return c.Deadline + GracePeriod
}

// NormalizeDescription returns the NFC form used for hashing and storage.
func NormalizeDescription(s string) string {
	return norm.NFC.String(s)
}

// ValidateDescription checks an already-normalised description.
func ValidateDescription(s string) error {
	if s == "" {
		return fmt.Errorf("description is required")
	}
	if !utf8.ValidString(s) {
		return fmt.Errorf("description is not valid UTF-8")
	}
	if len(s) > MaxDescriptionBytes {
		return fmt.Errorf("description is %d bytes, max %d", len(s), MaxDescriptionBytes)
	}
	return nil
}

// ValidateIdentity checks that an identity is present and bounded.
// field names the argument in the error message.
func ValidateIdentity(field string, id Identity) error {
	if id == "" {
		return fmt.Errorf("%s is required", field)
	}
	if !utf8.ValidString(string(id)) {
		return fmt.Errorf("%s is not valid UTF-8", field)
	}
	if len(id) > MaxIdentityBytes {
		return fmt.Errorf("%s is %d bytes, max %d", field, len(id), MaxIdentityBytes)
	}
	return nil
}
