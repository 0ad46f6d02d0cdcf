package engine

// Idiom is one synchronization point of a behavior thread.
//
// Request and Template propose events for selection. WaitFor asks to be
// resumed when a matching event is selected. Block vetoes matching
// candidates from every thread, including the declaring one. Interrupt
// vetoes exactly like Block; it is reported separately in snapshots.
type Idiom struct {
	Request   []Event
	Template  Template
	WaitFor   []Matcher
	Block     []Matcher
	Interrupt []Matcher
}

// inert reports whether the sync point declares nothing at all. Such a
// point can never be selected or resumed.
func (i Idiom) inert() bool {
	return len(i.Request) == 0 && i.Template == nil &&
		len(i.WaitFor) == 0 && len(i.Block) == 0 && len(i.Interrupt) == 0
}
