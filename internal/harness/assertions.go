package harness

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/pledge/internal/model"
	"github.com/roach88/pledge/internal/store"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Index    int
	Type     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "assertion[%d] failed: %s\n", e.Index, e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// evaluateAssertions returns one message per failed assertion.
func (h *Harness) evaluateAssertions(ctx context.Context, assertions []Assertion) []string {
	var msgs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertBalance:
			err = h.assertBalance(ctx, i, a)
		case AssertVault:
			err = h.assertVault(ctx, i, a)
		case AssertOutcome:
			err = h.assertOutcome(ctx, i, a)
		case AssertEventCount:
			err = h.assertEventCount(ctx, i, a)
		case AssertAuditClean:
			err = h.assertAuditClean(ctx, i)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}
		if err != nil {
			msgs = append(msgs, err.Error())
		}
	}
	return msgs
}

func (h *Harness) assertBalance(ctx context.Context, i int, a Assertion) error {
	ref, err := model.DeriveDestination(model.Identity(a.Owner), h.assetOr(a.Asset))
	if err != nil {
		return err
	}
	return h.checkAccount(ctx, i, a, ref, fmt.Sprintf("account of %s", a.Owner))
}

func (h *Harness) assertVault(ctx context.Context, i int, a Assertion) error {
	ref, err := h.ref(a.Creator, a.Description)
	if err != nil {
		return err
	}
	vaultRef, err := model.DeriveVaultRef(ref, h.assetOr(a.Asset))
	if err != nil {
		return err
	}
	return h.checkAccount(ctx, i, a, vaultRef.Account(), fmt.Sprintf("vault of %s/%q", a.Creator, a.Description))
}

// checkAccount compares a balance; a missing account holds zero.
func (h *Harness) checkAccount(ctx context.Context, i int, a Assertion, ref model.AccountRef, label string) error {
	var balance uint64
	acct, err := h.store.ReadAccount(ctx, ref)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return fmt.Errorf("assertion[%d]: %w", i, err)
	default:
		balance = acct.Balance
	}

	if balance != *a.Amount {
		return &AssertionError{
			Index:    i,
			Type:     a.Type,
			Expected: fmt.Sprintf("%s holds %d", label, *a.Amount),
			Actual:   fmt.Sprintf("%s holds %d", label, balance),
		}
	}
	return nil
}

func (h *Harness) assertOutcome(ctx context.Context, i int, a Assertion) error {
	ref, err := h.ref(a.Creator, a.Description)
	if err != nil {
		return err
	}

	c, err := h.store.ReadCommitment(ctx, ref)
	if errors.Is(err, store.ErrNotFound) {
		return &AssertionError{
			Index:    i,
			Type:     a.Type,
			Expected: fmt.Sprintf("commitment %s/%q is %s", a.Creator, a.Description, a.Outcome),
			Actual:   "commitment not found",
		}
	}
	if err != nil {
		return fmt.Errorf("assertion[%d]: %w", i, err)
	}

	if c.Outcome.String() != a.Outcome {
		return &AssertionError{
			Index:    i,
			Type:     a.Type,
			Expected: fmt.Sprintf("outcome %s", a.Outcome),
			Actual:   fmt.Sprintf("outcome %s", c.Outcome),
		}
	}
	return nil
}

func (h *Harness) assertEventCount(ctx context.Context, i int, a Assertion) error {
	events, err := h.store.ReadEvents(ctx, 0, 0)
	if err != nil {
		return fmt.Errorf("assertion[%d]: %w", i, err)
	}
	if len(events) != *a.Count {
		return &AssertionError{
			Index:    i,
			Type:     a.Type,
			Expected: fmt.Sprintf("%d events", *a.Count),
			Actual:   fmt.Sprintf("%d events", len(events)),
		}
	}
	return nil
}

func (h *Harness) assertAuditClean(ctx context.Context, i int) error {
	report, err := h.engine.Audit(ctx)
	if err != nil {
		return fmt.Errorf("assertion[%d]: %w", i, err)
	}
	if !report.OK() {
		problems := make([]string, 0, len(report.Findings))
		for _, f := range report.Findings {
			problems = append(problems, fmt.Sprintf("%s: %s", f.Ref, f.Problem))
		}
		return &AssertionError{
			Index:    i,
			Type:     AssertAuditClean,
			Expected: "no audit findings",
			Actual:   strings.Join(problems, "; "),
		}
	}
	return nil
}
