package query

import (
	"fmt"
	"strings"

	"github.com/roach88/pledge/internal/model"
)

// Columns is the commitment column list, in the order the store scans them.
const Columns = "ref, creator, description, judge, to_success, to_failure, asset, vault, amount, deadline, outcome, created_at, settled_at"

// stableOrder is appended to every listing. Deadline first so the most
// urgent commitments lead; ref breaks ties deterministically.
const stableOrder = "deadline ASC, ref COLLATE BINARY ASC"

// Compile converts a predicate into a parameterised SELECT over the
// commitments table. A positive limit adds a LIMIT clause.
func Compile(p Predicate, limit int) (string, []any, error) {
	if err := Validate(p); err != nil {
		return "", nil, fmt.Errorf("compile: %w", err)
	}
	if limit < 0 {
		return "", nil, fmt.Errorf("compile: negative limit %d", limit)
	}

	where, params, err := compilePredicate(p)
	if err != nil {
		return "", nil, fmt.Errorf("compile: %w", err)
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(Columns)
	b.WriteString(" FROM commitments")
	if where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}
	b.WriteString(" ORDER BY ")
	b.WriteString(stableOrder)
	if limit > 0 {
		b.WriteString(" LIMIT ?")
		params = append(params, limit)
	}
	return b.String(), params, nil
}

// CompileFilter is Compile for the CLI-facing Filter.
func CompileFilter(f Filter) (string, []any, error) {
	return Compile(f.Predicate(), f.Limit)
}

// compilePredicate returns an empty fragment for predicates that match
// every row, so callers can omit the WHERE clause entirely.
func compilePredicate(p Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "", nil, nil
	case Equals:
		return compileEquals(pred)
	case *Equals:
		return compileEquals(*pred)
	case Before:
		return compileBefore(pred)
	case *Before:
		return compileBefore(*pred)
	case And:
		return compileAnd(pred)
	case *And:
		return compileAnd(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func compileEquals(eq Equals) (string, []any, error) {
	var param any
	switch v := eq.Value.(type) {
	case string:
		param = v
	case uint64:
		if v > model.MaxStoredValue {
			// Nothing stored can be that large.
			return "1 = 0", nil, nil
		}
		param = int64(v)
	default:
		return "", nil, fmt.Errorf("unsupported value type: %T", eq.Value)
	}
	return fmt.Sprintf("%s = ?", eq.Field), []any{param}, nil
}

func compileBefore(b Before) (string, []any, error) {
	if b.Value > model.MaxStoredValue {
		return fmt.Sprintf("%s <= ?", b.Field), []any{int64(model.MaxStoredValue)}, nil
	}
	return fmt.Sprintf("%s < ?", b.Field), []any{int64(b.Value)}, nil
}

func compileAnd(and And) (string, []any, error) {
	var parts []string
	var params []any
	for _, p := range and.Predicates {
		sql, ps, err := compilePredicate(p)
		if err != nil {
			return "", nil, err
		}
		if sql == "" {
			continue
		}
		parts = append(parts, sql)
		params = append(params, ps...)
	}
	return strings.Join(parts, " AND "), params, nil
}
