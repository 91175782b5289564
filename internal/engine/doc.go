// Package engine implements the pledge escrow state machine.
//
// Three commands act on a Commitment:
//
//	Create   - creator locks funds against a habit with a future deadline
//	Judge    - the judge rules once, after the deadline
//	Clawback - anyone, after deadline + GracePeriod, sends funds to to_success
//
// ATOMICITY:
//
// Each command is one store transaction. Preconditions are checked first,
// in a fixed order, and the first failure aborts before any write. The
// outcome write, the vault release and the event append then commit
// together or not at all.
//
// SERIALISATION:
//
// Judge and clawback may both become eligible once the grace period has
// passed. Two layers make sure only one lands:
//   - Submit/Run funnel commands through a single goroutine, so one process
//     applies them one at a time
//   - Store.Update opens BEGIN IMMEDIATE transactions and the outcome update
//     is a compare-and-set on outcome = 'pending', so a second process
//     sees the first one's result and fails with ALREADY_JUDGED
//
// Clawback moves the outcome to Reclaimed. A commitment therefore has
// exactly one terminal transition, and releasing an already drained vault
// is reported as a vault failure rather than ignored.
//
// Events are published to sinks only after commit. A failing sink is
// logged; it cannot undo the command.
package engine
