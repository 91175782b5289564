package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/pledge/internal/model"
)

// ErrorCode categorises a rejected command. Codes are stable strings so
// they can be matched in scenarios and CLI output.
type ErrorCode string

const (
	// CodeInvalidAmount indicates a zero or unstorable amount at creation.
	CodeInvalidAmount ErrorCode = "INVALID_AMOUNT"

	// CodeDeadlineInPast indicates a creation deadline not strictly in the future.
	CodeDeadlineInPast ErrorCode = "DEADLINE_IN_PAST"

	// CodeAlreadyExists indicates a duplicate (creator, description).
	CodeAlreadyExists ErrorCode = "ALREADY_EXISTS"

	// CodeNotAuthorized indicates the caller is not the commitment's judge.
	CodeNotAuthorized ErrorCode = "NOT_AUTHORIZED"

	// CodeAlreadyJudged indicates the commitment already has a terminal outcome.
	CodeAlreadyJudged ErrorCode = "ALREADY_JUDGED"

	// CodeDeadlineNotPassed indicates judge or clawback before its threshold.
	CodeDeadlineNotPassed ErrorCode = "DEADLINE_NOT_PASSED"

	// CodeWrongDestination indicates the supplied destination is not the
	// canonical account of the beneficiary.
	CodeWrongDestination ErrorCode = "WRONG_DESTINATION"

	// CodeInvalidArgument indicates malformed text or out-of-range fields.
	CodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"

	// CodeNotFound indicates an unknown commitment ref.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeVaultFailure indicates the vault refused to move funds.
	CodeVaultFailure ErrorCode = "VAULT_FAILURE"
)

// EscrowError is returned for every rejected command.
// Storage failures are not EscrowErrors; they are wrapped plain errors.
type EscrowError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Ref identifies the affected commitment, when known.
	Ref model.CommitmentRef

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause (vault errors), if any.
	Err error
}

// Error implements the error interface.
func (e *EscrowError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Ref != "" {
		msg = fmt.Sprintf("%s (ref=%s)", msg, e.Ref)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes the cause so errors.Is(err, vault.ErrEmptyVault) works.
func (e *EscrowError) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of an EscrowError anywhere in err's chain,
// or "" if there is none.
func CodeOf(err error) ErrorCode {
	var ee *EscrowError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
// Uses errors.As to handle wrapped errors.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// IsRejection reports whether err is a rejected command rather than an
// infrastructure failure.
func IsRejection(err error) bool {
	return CodeOf(err) != ""
}

func newError(code ErrorCode, ref model.CommitmentRef, format string, args ...any) *EscrowError {
	return &EscrowError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Ref:     ref,
	}
}

func newVaultError(ref model.CommitmentRef, cause error) *EscrowError {
	return &EscrowError{
		Code:    CodeVaultFailure,
		Message: "vault rejected the transfer",
		Ref:     ref,
		Err:     cause,
	}
}

// withDetail attaches one key/value to e and returns it.
func (e *EscrowError) withDetail(key, value string) *EscrowError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}
