package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/bprogram/internal/ir"
)

// TraceSnapshot captures the deterministic part of a scenario execution.
// All fields use canonical JSON serialization for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string          `json:"scenario_name"`
	TraceHash    string          `json:"trace_hash"`
	Selections   []ir.Selection  `json:"selections"`
	Diagnostics  []ir.Diagnostic `json:"diagnostics"`
	Threads      []string        `json:"threads"`
}

// GoldenBytes returns the canonical JSON golden representation of a result.
func GoldenBytes(scenarioName string, result *Result) ([]byte, error) {
	hash, err := ir.TraceHash(result.Selections)
	if err != nil {
		return nil, err
	}
	return ir.MarshalCanonical(TraceSnapshot{
		ScenarioName: scenarioName,
		TraceHash:    hash,
		Selections:   result.Selections,
		Diagnostics:  result.Diagnostics,
		Threads:      result.Threads,
	})
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
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

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := GoldenBytes(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
