package harness

import "github.com/roach88/pledge/internal/model"

// TraceEvent records one executed step.
type TraceEvent struct {
	Step    int    `json:"step"`
	Command string `json:"command"`
	At      uint64 `json:"at"`
	Ref     string `json:"ref"`

	// Result is "ok" or the rejection code.
	Result string `json:"result"`

	// Event is the event the step appended, if it succeeded.
	Event *model.Event `json:"event,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true if every step matched its expect and every assertion held.
	Pass bool `json:"pass"`

	// Trace contains one entry per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddStep appends a step to the trace.
func (r *Result) AddStep(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
