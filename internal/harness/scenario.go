package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/bprogram/internal/engine"
	"github.com/roach88/bprogram/internal/ir"
)

// Scenario defines a behavioral program test: a program, the triggers
// offered to it, and what must hold afterwards.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Program is an inline program. Exactly one of Program and
	// ProgramFile must be set.
	Program *ir.Program `yaml:"program,omitempty"`

	// ProgramFile is a .cue, .yaml or .json program file, relative to the
	// scenario file.
	ProgramFile string `yaml:"program_file,omitempty"`

	// ProgramName selects a program from a multi-program file.
	ProgramName string `yaml:"program_name,omitempty"`

	// Strategy overrides the program's selection strategy.
	Strategy string `yaml:"strategy,omitempty"`

	// Seed seeds random strategies, shuffled threads and random requests.
	Seed uint64 `yaml:"seed,omitempty"`

	// MaxSteps overrides the step budget of a drain. 0 means unlimited.
	MaxSteps *int `yaml:"max_steps,omitempty"`

	// Triggers are offered to the engine in order.
	Triggers []TriggerStep `yaml:"triggers"`

	// Feedback lists the event types that get recording handlers. Empty
	// means every type the program requests or the scenario triggers.
	Feedback []string `yaml:"feedback,omitempty"`

	// PanicFeedback lists event types whose handlers panic.
	PanicFeedback []string `yaml:"panic_feedback,omitempty"`

	// ExpectFeedback is the exact order of recorded feedback invocations.
	ExpectFeedback []string `yaml:"expect_feedback,omitempty"`

	// Assertions validate the recorded run.
	Assertions []Assertion `yaml:"assertions"`
}

// TriggerStep is one external event.
type TriggerStep struct {
	Type   string `yaml:"type"`
	Detail any    `yaml:"detail,omitempty"`

	// Public sends the event through the public gate instead of the
	// unrestricted trigger.
	Public bool `yaml:"public,omitempty"`
}

// Event returns the engine event of the step.
func (t TriggerStep) Event() engine.Event {
	return engine.Event{Type: t.Type, Detail: t.Detail}
}

// Assertion validates the recorded run.
type Assertion struct {
	// Type specifies the assertion type (see the Assert* constants).
	Type string `yaml:"type"`

	// Events is the expected order (selected_order, selected_sequence).
	Events []string `yaml:"events,omitempty"`

	// Event is the event type (selected_count, never_selected).
	Event string `yaml:"event,omitempty"`

	// Count is the expected number of occurrences (selected_count,
	// diagnostic_count).
	Count int `yaml:"count,omitempty"`

	// Thread is the thread name (thread_absent, thread_present).
	Thread string `yaml:"thread,omitempty"`

	// Kind is the snapshot kind (diagnostic_count).
	Kind string `yaml:"kind,omitempty"`
}

// Assertion type constants.
const (
	AssertSelectedOrder    = "selected_order"
	AssertSelectedSequence = "selected_sequence"
	AssertSelectedCount    = "selected_count"
	AssertNeverSelected    = "never_selected"
	AssertThreadAbsent     = "thread_absent"
	AssertThreadPresent    = "thread_present"
	AssertDiagnosticCount  = "diagnostic_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// A relative program_file is resolved against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.ProgramFile != "" && !filepath.IsAbs(scenario.ProgramFile) {
		scenario.ProgramFile = filepath.Join(filepath.Dir(path), scenario.ProgramFile)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch {
	case s.Program == nil && s.ProgramFile == "":
		return fmt.Errorf("program or program_file is required")
	case s.Program != nil && s.ProgramFile != "":
		return fmt.Errorf("program and program_file are mutually exclusive")
	}

	if s.ProgramFile != "" {
		if _, err := os.Stat(s.ProgramFile); os.IsNotExist(err) {
			return fmt.Errorf("program file not found: %s", s.ProgramFile)
		}
	}

	if s.MaxSteps != nil && *s.MaxSteps < 0 {
		return fmt.Errorf("max_steps must be non-negative")
	}

	if len(s.Triggers) == 0 {
		return fmt.Errorf("triggers list is required and must be non-empty")
	}
	for i, step := range s.Triggers {
		if step.Type == "" {
			return fmt.Errorf("triggers[%d]: type is required", i)
		}
	}

	if len(s.Assertions) == 0 && s.ExpectFeedback == nil {
		return fmt.Errorf("assertions or expect_feedback is required")
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
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
	case AssertSelectedOrder, AssertSelectedSequence:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for %s", index, a.Type)
		}
	case AssertSelectedCount, AssertNeverSelected:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for %s", index, a.Type)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertThreadAbsent, AssertThreadPresent:
		if a.Thread == "" {
			return fmt.Errorf("assertions[%d]: thread is required for %s", index, a.Type)
		}
	case AssertDiagnosticCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for diagnostic_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for diagnostic_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
