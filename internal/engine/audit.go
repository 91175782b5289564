package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/roach88/pledge/internal/model"
	"github.com/roach88/pledge/internal/query"
	"github.com/roach88/pledge/internal/store"
)

// Finding is one inconsistency reported by Audit.
type Finding struct {
	Ref     model.CommitmentRef `json:"ref"`
	Problem string              `json:"problem"`
}

// AuditReport summarises a full consistency check.
type AuditReport struct {
	Commitments int       `json:"commitments"`
	Events      int       `json:"events"`
	LastSeq     uint64    `json:"last_seq"`
	Findings    []Finding `json:"findings"`
}

// OK reports whether the audit found nothing wrong.
func (r AuditReport) OK() bool {
	return len(r.Findings) == 0
}

// history is the folded event log of one commitment.
type history struct {
	created   []model.Event
	terminals []model.Event
}

// Audit replays the event log and checks it against every commitment and
// vault balance:
//   - every commitment has exactly one created event matching its record
//   - a pending commitment has no terminal event and a vault holding the
//     locked amount
//   - a terminal commitment has an empty vault and exactly one terminal
//     event agreeing with its outcome
//   - events never refer to unknown commitments
//
// Audit only reads; it is safe to run while the engine is serving commands,
// though a concurrent command may show up as a transient finding.
func (e *Engine) Audit(ctx context.Context) (AuditReport, error) {
	report := AuditReport{Findings: []Finding{}}
	histories := make(map[model.CommitmentRef]*history)

	err := e.store.Replay(ctx, 0, func(ev model.Event) error {
		report.Events++
		report.LastSeq = ev.Seq

		h := histories[ev.Habit]
		if h == nil {
			h = &history{}
			histories[ev.Habit] = h
		}
		switch ev.Kind {
		case model.EventCreated:
			h.created = append(h.created, ev)
		case model.EventJudged, model.EventClawback:
			h.terminals = append(h.terminals, ev)
		default:
			report.add(ev.Habit, "event %d has unknown kind %q", ev.Seq, ev.Kind)
		}
		return nil
	})
	if err != nil {
		return AuditReport{}, fmt.Errorf("audit: %w", err)
	}

	commitments, err := e.store.ListCommitments(ctx, query.Filter{})
	if err != nil {
		return AuditReport{}, fmt.Errorf("audit: %w", err)
	}
	report.Commitments = len(commitments)

	for _, c := range commitments {
		h := histories[c.Ref]
		delete(histories, c.Ref)
		if h == nil {
			h = &history{}
		}

		balance, err := e.vaultBalance(ctx, c)
		if err != nil {
			return AuditReport{}, fmt.Errorf("audit: %w", err)
		}
		report.checkCommitment(c, h, balance)
	}

	for _, ref := range slices.Sorted(maps.Keys(histories)) {
		h := histories[ref]
		report.add(ref, "%d events refer to an unknown commitment", len(h.created)+len(h.terminals))
	}

	slog.Info("audit complete",
		"commitments", report.Commitments,
		"events", report.Events,
		"findings", len(report.Findings),
	)
	return report, nil
}

func (e *Engine) vaultBalance(ctx context.Context, c model.Commitment) (uint64, error) {
	acct, err := e.store.ReadAccount(ctx, c.Vault.Account())
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return acct.Balance, nil
}

func (r *AuditReport) checkCommitment(c model.Commitment, h *history, balance uint64) {
	switch len(h.created) {
	case 0:
		r.add(c.Ref, "no created event")
	case 1:
		r.checkCreated(c, h.created[0])
	default:
		r.add(c.Ref, "%d created events", len(h.created))
	}

	if c.Outcome.IsPending() {
		if len(h.terminals) > 0 {
			r.add(c.Ref, "pending but has %d terminal events", len(h.terminals))
		}
		if balance != c.Amount {
			r.add(c.Ref, "pending vault holds %d, locked amount is %d", balance, c.Amount)
		}
		return
	}

	if balance != 0 {
		r.add(c.Ref, "%s but vault still holds %d", c.Outcome, balance)
	}
	if len(h.terminals) != 1 {
		r.add(c.Ref, "%s with %d terminal events", c.Outcome, len(h.terminals))
		return
	}

	ev := h.terminals[0]
	switch c.Outcome.State() {
	case model.OutcomeJudged:
		success, _ := c.Outcome.Verdict()
		result, ok := ev.Payload.Bool("result")
		if ev.Kind != model.EventJudged || !ok || result != success {
			r.add(c.Ref, "outcome %s disagrees with event %d (%s)", c.Outcome, ev.Seq, ev.Kind)
		}
	case model.OutcomeReclaimed:
		if ev.Kind != model.EventClawback {
			r.add(c.Ref, "outcome %s disagrees with event %d (%s)", c.Outcome, ev.Seq, ev.Kind)
		}
	}
	if ev.At != c.SettledAt {
		r.add(c.Ref, "settled at %d but event %d is at %d", c.SettledAt, ev.Seq, ev.At)
	}
}

func (r *AuditReport) checkCreated(c model.Commitment, ev model.Event) {
	creator, _ := ev.Payload.String("creator")
	judge, _ := ev.Payload.String("judge")
	deadline, _ := ev.Payload.Uint("deadline")
	if creator != string(c.Creator) || judge != string(c.Judge) || deadline != c.Deadline {
		r.add(c.Ref, "created event %d does not match the record", ev.Seq)
	}
}

func (r *AuditReport) add(ref model.CommitmentRef, format string, args ...any) {
	r.Findings = append(r.Findings, Finding{Ref: ref, Problem: fmt.Sprintf(format, args...)})
}
