package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pledge/internal/model"
)

func u64(v uint64) *uint64 { return &v }
func intp(v int) *int      { return &v }

func createStep(description string, amount, deadline uint64) *CreateStep {
	return &CreateStep{
		Caller:      "alice",
		Amount:      amount,
		Description: description,
		Judge:       "jim",
		ToSuccess:   "sam",
		ToFailure:   "fay",
		Deadline:    deadline,
	}
}

func baseScenario(steps ...Step) *Scenario {
	return &Scenario{
		Name:        "inline",
		Description: "inline scenario",
		Start:       1000,
		Accounts:    []Funding{{Owner: "alice", Amount: 100}},
		Steps:       steps,
	}
}

func TestRun_TraceRecordsEveryStep(t *testing.T) {
	scenario := baseScenario(
		Step{Create: createStep("walk", 40, 1010)},
		Step{At: u64(1010), Judge: &JudgeStep{Caller: "jim", Creator: "alice", Description: "walk", Verdict: true, Destination: "sam"}},
		Step{Judge: &JudgeStep{Caller: "jim", Creator: "alice", Description: "walk", Verdict: true, Destination: "sam"}, Expect: "ALREADY_JUDGED"},
	)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 3)

	ref := string(model.MustDeriveCommitmentRef("alice", "walk"))

	first := result.Trace[0]
	assert.Equal(t, "create", first.Command)
	assert.Equal(t, uint64(1000), first.At)
	assert.Equal(t, ref, first.Ref)
	assert.Equal(t, ExpectOK, first.Result)
	require.NotNil(t, first.Event)
	assert.Equal(t, "req-1", first.Event.RequestID)

	second := result.Trace[1]
	assert.Equal(t, uint64(1010), second.At)
	require.NotNil(t, second.Event)
	assert.Equal(t, model.EventJudged, second.Event.Kind)
	assert.Equal(t, uint64(2), second.Event.Seq)

	third := result.Trace[2]
	assert.Equal(t, uint64(1010), third.At, "clock stays put without at")
	assert.Equal(t, "ALREADY_JUDGED", third.Result)
	assert.Nil(t, third.Event)
}

func TestRun_ExpectMismatchFails(t *testing.T) {
	scenario := baseScenario(
		Step{Create: createStep("walk", 40, 1010), Expect: "VAULT_FAILURE"},
		Step{Create: createStep("walk", 500, 1010)},
	)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, "step 0 (create): expected VAULT_FAILURE, got ok", result.Errors[0])
	assert.Contains(t, result.Errors[1], "step 1 (create): expected ok, got ALREADY_EXISTS")
}

func TestRun_DestinationRefOverride(t *testing.T) {
	scenario := baseScenario(
		Step{Create: createStep("walk", 40, 1010)},
		Step{At: u64(1010), Judge: &JudgeStep{
			Caller: "jim", Creator: "alice", Description: "walk", Verdict: true,
			Destination:    "sam",
			DestinationRef: "not-an-account",
		}, Expect: "WRONG_DESTINATION"},
		Step{Judge: &JudgeStep{
			Caller: "jim", Creator: "alice", Description: "walk", Verdict: true,
			DestinationRef: string(model.MustDeriveDestination("sam", "TOKEN")),
		}},
	)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_CustomAsset(t *testing.T) {
	scenario := baseScenario(
		Step{Create: createStep("walk", 40, 1010)},
	)
	scenario.Asset = "GOLD"
	scenario.Assertions = []Assertion{
		{Type: AssertBalance, Owner: "alice", Amount: u64(60)},
		{Type: AssertBalance, Owner: "alice", Asset: "TOKEN", Amount: u64(0)},
		{Type: AssertVault, Creator: "alice", Description: "walk", Amount: u64(40)},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_FundingFailureIsAnError(t *testing.T) {
	scenario := baseScenario(Step{Create: createStep("walk", 40, 1010)})
	scenario.Accounts = []Funding{{Owner: "", Amount: 5}}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fund accounts")
}
