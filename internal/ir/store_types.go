package ir

// Trace records, as persisted by the store. Steps come from the engine's
// logical clock.

// Run is one recorded execution of a program.
type Run struct {
	ID          string `json:"id"`
	ProgramName string `json:"program_name"`
	ProgramHash string `json:"program_hash"`
	ProgramJSON string `json:"program_json"` // canonical JSON of the Program
	Strategy    string `json:"strategy"`
	Seed        int64  `json:"seed"`
	StartStep   int64  `json:"start_step"`
}

// Trigger is an event injected from outside a run.
type Trigger struct {
	Seq      int64  `json:"seq"`
	Type     string `json:"type"`
	Detail   any    `json:"detail,omitempty"`
	Public   bool   `json:"public,omitempty"`
	Accepted bool   `json:"accepted"`
}

// Selection is the winner of one arbitration step.
type Selection struct {
	Step     int64  `json:"step"`
	Type     string `json:"type"`
	Detail   any    `json:"detail,omitempty"`
	Thread   string `json:"thread"`
	Priority int    `json:"priority"`
}

// Bid is one requested event at a step, selected or not.
type Bid struct {
	Step       int64  `json:"step"`
	Index      int    `json:"index"`
	Thread     string `json:"thread"`
	Type       string `json:"type"`
	Trigger    bool   `json:"trigger,omitempty"`
	Selected   bool   `json:"selected,omitempty"`
	Priority   int    `json:"priority"`
	BlockedBy  string `json:"blocked_by,omitempty"`
	Interrupts string `json:"interrupts,omitempty"`
}

// Diagnostic is a non-selection snapshot: a warning or a recovered failure.
type Diagnostic struct {
	Step    int64  `json:"step"`
	Kind    string `json:"kind"`
	Thread  string `json:"thread,omitempty"`
	Type    string `json:"type,omitempty"`
	Message string `json:"message"`
}

// SelectedTypes lists the event types of selections in order.
func SelectedTypes(sels []Selection) []string {
	out := make([]string, len(sels))
	for i, s := range sels {
		out[i] = s.Type
	}
	return out
}

// SelectedThreads lists the selecting threads of selections in order.
func SelectedThreads(sels []Selection) []string {
	out := make([]string, len(sels))
	for i, s := range sels {
		out[i] = s.Thread
	}
	return out
}
