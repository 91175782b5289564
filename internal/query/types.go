package query

import "github.com/roach88/pledge/internal/model"

// Field is a filterable commitment column.
type Field string

const (
	FieldCreator  Field = "creator"
	FieldJudge    Field = "judge"
	FieldOutcome  Field = "outcome"
	FieldAsset    Field = "asset"
	FieldDeadline Field = "deadline"
)

// Predicate is a filter condition.
//
// This is a sealed interface: Equals, Before and And are the only
// implementations, which keeps the compiler's type switch exhaustive.
type Predicate interface {
	predicateNode()
}

// Equals matches rows whose Field equals Value.
// Value must be a string for text columns or a uint64 for deadline.
type Equals struct {
	Field Field
	Value any
}

func (Equals) predicateNode() {}

// Before matches rows whose Field is strictly less than Value.
// Only numeric columns accept it.
type Before struct {
	Field Field
	Value uint64
}

func (Before) predicateNode() {}

// And matches rows satisfying every predicate. An empty And matches all rows.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Filter is the user-facing listing request used by the CLI.
// Zero-valued fields do not constrain the result.
type Filter struct {
	Creator   model.Identity
	Judge     model.Identity
	Outcome   string // pending, success, failure or reclaimed
	Asset     model.Asset
	DueBefore uint64 // deadline < DueBefore
	Limit     int    // 0 means unlimited
}

// Predicate converts the filter into a predicate tree.
// Conditions appear in a fixed order so compiled SQL is stable.
func (f Filter) Predicate() Predicate {
	var preds []Predicate
	if f.Creator != "" {
		preds = append(preds, Equals{Field: FieldCreator, Value: string(f.Creator)})
	}
	if f.Judge != "" {
		preds = append(preds, Equals{Field: FieldJudge, Value: string(f.Judge)})
	}
	if f.Outcome != "" {
		preds = append(preds, Equals{Field: FieldOutcome, Value: f.Outcome})
	}
	if f.Asset != "" {
		preds = append(preds, Equals{Field: FieldAsset, Value: string(f.Asset)})
	}
	if f.DueBefore > 0 {
		preds = append(preds, Before{Field: FieldDeadline, Value: f.DueBefore})
	}
	return And{Predicates: preds}
}
