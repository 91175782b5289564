package harness

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/pledge/internal/model"
)

// MarshalTrace renders a trace as canonical JSON, one step per line.
func MarshalTrace(trace []TraceEvent) ([]byte, error) {
	var buf bytes.Buffer
	for _, ev := range trace {
		line, err := model.MarshalCanonical(ev.canonical())
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", ev.Step, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

func (ev TraceEvent) canonical() model.Object {
	obj := model.Object{
		"step":    model.Uint(uint64(ev.Step)),
		"command": model.String(ev.Command),
		"at":      model.Uint(ev.At),
		"ref":     model.String(ev.Ref),
		"result":  model.String(ev.Result),
	}
	if ev.Event != nil {
		obj["event"] = model.Object{
			"seq":        model.Uint(ev.Event.Seq),
			"kind":       model.String(ev.Event.Kind),
			"habit":      model.String(ev.Event.Habit),
			"request_id": model.String(ev.Event.RequestID),
			"at":         model.Uint(ev.Event.At),
			"payload":    ev.Event.Payload,
		}
	}
	return obj
}

// RunWithGolden executes a scenario and compares the trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check Pass.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's trace against a golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	traceJSON, err := MarshalTrace(result.Trace)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, traceJSON)
	return nil
}
