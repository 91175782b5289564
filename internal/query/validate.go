package query

import (
	"fmt"

	"github.com/roach88/pledge/internal/model"
)

var textFields = map[Field]bool{
	FieldCreator: true,
	FieldJudge:   true,
	FieldOutcome: true,
	FieldAsset:   true,
}

var numericFields = map[Field]bool{
	FieldDeadline: true,
}

// Validate checks that a predicate only references known columns with
// values of the right type. Compile calls it; callers building predicates
// by hand may call it earlier for a better error location.
func Validate(p Predicate) error {
	switch pred := p.(type) {
	case nil:
		return nil
	case Equals:
		return validateEquals(pred)
	case *Equals:
		return validateEquals(*pred)
	case Before:
		return validateBefore(pred)
	case *Before:
		return validateBefore(*pred)
	case And:
		return validateAnd(pred)
	case *And:
		return validateAnd(*pred)
	default:
		return fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func validateEquals(eq Equals) error {
	switch {
	case textFields[eq.Field]:
		s, ok := eq.Value.(string)
		if !ok {
			return fmt.Errorf("field %q expects a string, got %T", eq.Field, eq.Value)
		}
		if eq.Field == FieldOutcome {
			if _, err := model.ParseOutcome(s); err != nil {
				return fmt.Errorf("field %q: %w", eq.Field, err)
			}
		}
		return nil
	case numericFields[eq.Field]:
		if _, ok := eq.Value.(uint64); !ok {
			return fmt.Errorf("field %q expects a uint64, got %T", eq.Field, eq.Value)
		}
		return nil
	default:
		return fmt.Errorf("unknown field %q", eq.Field)
	}
}

func validateBefore(b Before) error {
	if !numericFields[b.Field] {
		return fmt.Errorf("field %q does not support ordering comparisons", b.Field)
	}
	return nil
}

func validateAnd(and And) error {
	for i, p := range and.Predicates {
		if err := Validate(p); err != nil {
			return fmt.Errorf("and[%d]: %w", i, err)
		}
	}
	return nil
}
