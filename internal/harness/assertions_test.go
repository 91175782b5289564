package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssertions_Pass(t *testing.T) {
	scenario := baseScenario(Step{Create: createStep("walk", 40, 1010)})
	scenario.Assertions = []Assertion{
		{Type: AssertBalance, Owner: "alice", Amount: u64(60)},
		{Type: AssertBalance, Owner: "nobody", Amount: u64(0)},
		{Type: AssertVault, Creator: "alice", Description: "walk", Amount: u64(40)},
		{Type: AssertOutcome, Creator: "alice", Description: "walk", Outcome: "pending"},
		{Type: AssertEventCount, Count: intp(1)},
		{Type: AssertAuditClean},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestAssertions_Failures(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		want      []string
	}{
		{
			name:      "balance",
			assertion: Assertion{Type: AssertBalance, Owner: "alice", Amount: u64(100)},
			want:      []string{"assertion[0] failed: balance", "account of alice holds 100", "account of alice holds 60"},
		},
		{
			name:      "vault",
			assertion: Assertion{Type: AssertVault, Creator: "alice", Description: "walk", Amount: u64(0)},
			want:      []string{"assertion[0] failed: vault", "holds 40"},
		},
		{
			name:      "outcome",
			assertion: Assertion{Type: AssertOutcome, Creator: "alice", Description: "walk", Outcome: "success"},
			want:      []string{"Expected: outcome success", "Actual: outcome pending"},
		},
		{
			name:      "outcome of unknown commitment",
			assertion: Assertion{Type: AssertOutcome, Creator: "alice", Description: "run", Outcome: "pending"},
			want:      []string{"commitment not found"},
		},
		{
			name:      "event count",
			assertion: Assertion{Type: AssertEventCount, Count: intp(3)},
			want:      []string{"Expected: 3 events", "Actual: 1 events"},
		},
		{
			name:      "unknown type",
			assertion: Assertion{Type: "final_state"},
			want:      []string{`unknown assertion type "final_state"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scenario := baseScenario(Step{Create: createStep("walk", 40, 1010)})
			scenario.Assertions = []Assertion{tt.assertion}

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.False(t, result.Pass)
			require.Len(t, result.Errors, 1)
			for _, want := range tt.want {
				assert.Contains(t, result.Errors[0], want)
			}
		})
	}
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{Index: 2, Type: AssertBalance, Expected: "a", Actual: "b"}
	assert.Equal(t, "assertion[2] failed: balance\n  Expected: a\n  Actual: b", err.Error())
}
