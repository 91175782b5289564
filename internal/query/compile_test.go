package query

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const selectPrefix = "SELECT " + Columns + " FROM commitments"

func TestCompile_EmptyFilter(t *testing.T) {
	sql, params, err := CompileFilter(Filter{})
	require.NoError(t, err)
	assert.Equal(t, selectPrefix+" ORDER BY deadline ASC, ref COLLATE BINARY ASC", sql)
	assert.Empty(t, params)
}

func TestCompile_AllFilters(t *testing.T) {
	sql, params, err := CompileFilter(Filter{
		Creator:   "alice",
		Judge:     "jim",
		Outcome:   "pending",
		Asset:     "TOKEN",
		DueBefore: 100,
		Limit:     5,
	})
	require.NoError(t, err)

	assert.Equal(t,
		selectPrefix+" WHERE creator = ? AND judge = ? AND outcome = ? AND asset = ? AND deadline < ?"+
			" ORDER BY deadline ASC, ref COLLATE BINARY ASC LIMIT ?",
		sql)
	assert.Equal(t, []any{"alice", "jim", "pending", "TOKEN", int64(100), 5}, params)
}

func TestCompile_ValuesNeverInterpolated(t *testing.T) {
	sql, params, err := CompileFilter(Filter{Creator: "x' OR '1'='1"})
	require.NoError(t, err)
	assert.NotContains(t, sql, "OR '1'")
	assert.Equal(t, []any{"x' OR '1'='1"}, params)
}

func TestCompile_AlwaysOrdered(t *testing.T) {
	preds := []Predicate{
		nil,
		And{},
		Equals{Field: FieldJudge, Value: "j"},
		&Before{Field: FieldDeadline, Value: 7},
	}
	for _, p := range preds {
		sql, _, err := Compile(p, 0)
		require.NoError(t, err)
		assert.Contains(t, sql, " ORDER BY deadline ASC, ref COLLATE BINARY ASC")
	}
}

func TestCompile_LargeValues(t *testing.T) {
	sql, params, err := Compile(Before{Field: FieldDeadline, Value: math.MaxUint64}, 0)
	require.NoError(t, err)
	assert.Contains(t, sql, "deadline <= ?")
	assert.Equal(t, []any{int64(math.MaxInt64)}, params)

	sql, params, err = Compile(Equals{Field: FieldDeadline, Value: uint64(math.MaxUint64)}, 0)
	require.NoError(t, err)
	assert.Contains(t, sql, "WHERE 1 = 0")
	assert.Empty(t, params)
}

func TestCompile_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		pred  Predicate
		limit int
	}{
		{"unknown field", Equals{Field: "description; DROP TABLE commitments", Value: "x"}, 0},
		{"wrong value type", Equals{Field: FieldCreator, Value: uint64(1)}, 0},
		{"bad outcome", Equals{Field: FieldOutcome, Value: "maybe"}, 0},
		{"before on text", Before{Field: FieldCreator, Value: 1}, 0},
		{"nested invalid", And{Predicates: []Predicate{Equals{Field: "nope", Value: "x"}}}, 0},
		{"negative limit", nil, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Compile(tt.pred, tt.limit)
			assert.Error(t, err)
		})
	}
}

func TestFilter_PredicateOrderStable(t *testing.T) {
	f := Filter{DueBefore: 9, Creator: "c"}
	and, ok := f.Predicate().(And)
	require.True(t, ok)
	require.Len(t, and.Predicates, 2)
	assert.Equal(t, Equals{Field: FieldCreator, Value: "c"}, and.Predicates[0])
	assert.Equal(t, Before{Field: FieldDeadline, Value: 9}, and.Predicates[1])
}
