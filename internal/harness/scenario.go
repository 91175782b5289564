package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/pledge/internal/engine"
)

// Scenario is one escrow test: funded accounts, a timed sequence of
// commands with expected results, and assertions on the final state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Asset is the engine's default asset. Empty means engine.DefaultAsset.
	Asset string `yaml:"asset,omitempty"`

	// Start is the initial clock reading.
	Start uint64 `yaml:"start"`

	// Accounts are funded before the first step.
	Accounts []Funding `yaml:"accounts,omitempty"`

	// Steps run in order. Each names exactly one command.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Funding deposits Amount into Owner's canonical account.
type Funding struct {
	Owner  string `yaml:"owner"`
	Amount uint64 `yaml:"amount"`
	Asset  string `yaml:"asset,omitempty"`
}

// Step is one command issued at a point in time.
type Step struct {
	// At moves the clock before the command. Nil leaves it where it is.
	At *uint64 `yaml:"at,omitempty"`

	Create   *CreateStep   `yaml:"create,omitempty"`
	Judge    *JudgeStep    `yaml:"judge,omitempty"`
	Clawback *ClawbackStep `yaml:"clawback,omitempty"`

	// Expect is "ok" or an error code. Empty means "ok".
	Expect string `yaml:"expect,omitempty"`
}

// CreateStep mirrors engine.CreateRequest.
type CreateStep struct {
	Caller      string `yaml:"caller"`
	Amount      uint64 `yaml:"amount"`
	Description string `yaml:"description"`
	Judge       string `yaml:"judge"`
	ToSuccess   string `yaml:"to_success"`
	ToFailure   string `yaml:"to_failure"`
	Deadline    uint64 `yaml:"deadline"`
	Asset       string `yaml:"asset,omitempty"`
}

// JudgeStep issues a verdict on the commitment (Creator, Description).
type JudgeStep struct {
	Caller         string `yaml:"caller"`
	Creator        string `yaml:"creator"`
	Description    string `yaml:"description"`
	Verdict        bool   `yaml:"verdict"`
	Destination    string `yaml:"destination,omitempty"`
	DestinationRef string `yaml:"destination_ref,omitempty"`
}

// ClawbackStep reclaims the commitment (Creator, Description).
type ClawbackStep struct {
	Caller         string `yaml:"caller,omitempty"`
	Creator        string `yaml:"creator"`
	Description    string `yaml:"description"`
	Destination    string `yaml:"destination,omitempty"`
	DestinationRef string `yaml:"destination_ref,omitempty"`
}

// Assertion validates final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Owner selects the account for balance.
	Owner string `yaml:"owner,omitempty"`

	// Creator and Description select the commitment for vault and outcome.
	Creator     string `yaml:"creator,omitempty"`
	Description string `yaml:"description,omitempty"`

	// Asset overrides the scenario asset for balance and vault.
	Asset string `yaml:"asset,omitempty"`

	Amount  *uint64 `yaml:"amount,omitempty"`
	Outcome string  `yaml:"outcome,omitempty"`
	Count   *int    `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertBalance    = "balance"
	AssertVault      = "vault"
	AssertOutcome    = "outcome"
	AssertEventCount = "event_count"
	AssertAuditClean = "audit_clean"
)

// ExpectOK is the expect value of a step that must succeed.
const ExpectOK = "ok"

var knownCodes = []engine.ErrorCode{
	engine.CodeInvalidAmount,
	engine.CodeDeadlineInPast,
	engine.CodeAlreadyExists,
	engine.CodeNotAuthorized,
	engine.CodeAlreadyJudged,
	engine.CodeDeadlineNotPassed,
	engine.CodeWrongDestination,
	engine.CodeInvalidArgument,
	engine.CodeNotFound,
	engine.CodeVaultFailure,
}

// LoadScenario reads, schema-checks and parses a scenario YAML file.
// Returns an error if the file doesn't exist, fails the CUE schema,
// contains unknown fields, or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(path, data)
}

// ParseScenario is LoadScenario for in-memory data; filename is used in
// error positions.
func ParseScenario(filename string, data []byte) (*Scenario, error) {
	if err := ValidateScenarioData(filename, data); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	// The schema already rejects unknown fields; KnownFields keeps the Go
	// structs honest if the two drift.
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// FindScenarios returns the .yaml and .yml files directly under dir, sorted.
func FindScenarios(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scenario dir: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch filepath.Ext(entry.Name()) {
		case ".yaml", ".yml":
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	slices.Sort(paths)
	return paths, nil
}

// validateScenario checks what the schema cannot express.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, acct := range s.Accounts {
		if acct.Owner == "" {
			return fmt.Errorf("accounts[%d]: owner is required", i)
		}
		if acct.Amount == 0 {
			return fmt.Errorf("accounts[%d]: amount must be positive", i)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, s *Step) error {
	n := 0
	for _, set := range []bool{s.Create != nil, s.Judge != nil, s.Clawback != nil} {
		if set {
			n++
		}
	}
	if n != 1 {
		return fmt.Errorf("steps[%d]: exactly one of create, judge or clawback is required, got %d", index, n)
	}

	if s.Expect != "" && s.Expect != ExpectOK && !slices.Contains(knownCodes, engine.ErrorCode(s.Expect)) {
		return fmt.Errorf("steps[%d]: unknown expect code %q", index, s.Expect)
	}

	switch {
	case s.Judge != nil:
		if s.Judge.Destination == "" && s.Judge.DestinationRef == "" {
			return fmt.Errorf("steps[%d]: judge needs destination or destination_ref", index)
		}
	case s.Clawback != nil:
		if s.Clawback.Destination == "" && s.Clawback.DestinationRef == "" {
			return fmt.Errorf("steps[%d]: clawback needs destination or destination_ref", index)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertBalance:
		if a.Owner == "" || a.Amount == nil {
			return fmt.Errorf("assertions[%d]: owner and amount are required for balance", index)
		}
	case AssertVault:
		if a.Creator == "" || a.Amount == nil {
			return fmt.Errorf("assertions[%d]: creator, description and amount are required for vault", index)
		}
	case AssertOutcome:
		if a.Creator == "" || a.Outcome == "" {
			return fmt.Errorf("assertions[%d]: creator, description and outcome are required for outcome", index)
		}
	case AssertEventCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for event_count", index)
		}
	case AssertAuditClean:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
