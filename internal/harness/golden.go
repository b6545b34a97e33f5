package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/openqlab/awgctl/internal/wave"
)

// StateSnapshot captures a scenario run for golden comparison: the event log
// plus the final instrument state, serialized canonically.
type StateSnapshot struct {
	ScenarioName string
	Events       []Event
	State        map[string]any
}

// toCanonicalMap renders the snapshot for canonical JSON serialization.
func (s *StateSnapshot) toCanonicalMap() map[string]any {
	events := make([]any, len(s.Events))
	for i, e := range s.Events {
		m := map[string]any{"op": e.Op}
		if e.Program != "" {
			m["program"] = e.Program
		}
		if e.Error != "" {
			m["error"] = e.Error
		}
		events[i] = m
	}
	return map[string]any{
		"scenario": s.ScenarioName,
		"events":   events,
		"state":    s.State,
	}
}

// RunWithGolden executes a scenario and compares the outcome against a golden
// file at testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails; a golden mismatch fails the test
// through goldie.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}

	snapshot := StateSnapshot{
		ScenarioName: scenario.Name,
		Events:       result.Events,
		State:        result.State.CanonicalMap(),
	}

	body, err := wave.MarshalCanonical(snapshot.toCanonicalMap())
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, body)

	return nil
}
