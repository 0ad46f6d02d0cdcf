package engine

// Cursor is a paused behavior thread. Each call to Next resumes the thread
// and returns its next synchronization point, or false once the sequence
// is exhausted. A cursor never yields again after returning false.
type Cursor interface {
	Next() (Idiom, bool)
}

// Rule is a restartable behavior: every call returns a fresh cursor
// positioned before its first synchronization point. Rules are what
// Threads.Set registers and what the combinators compose.
type Rule func() Cursor

// Repeat decides, before each pass over a looped body, whether another
// pass should run.
type Repeat func() bool

// Forever is a Repeat that never stops.
func Forever() bool { return true }

// Sync returns a one-shot rule yielding a single synchronization point.
func Sync(idiom Idiom) Rule {
	return func() Cursor {
		return &syncCursor{idiom: idiom}
	}
}

// Thread sequences rules: each rule's synchronization points are produced
// only after the previous rule is exhausted.
func Thread(rules ...Rule) Rule {
	b := body{kind: bodyOnce, rules: rules}
	return func() Cursor {
		return newSeqCursor(b)
	}
}

// Loop sequences rules like Thread and restarts from the first rule each
// time the body is exhausted, for as long as repeat allows. The condition
// is consulted before every pass, including the first. A nil repeat loops
// forever.
func Loop(repeat Repeat, rules ...Rule) Rule {
	if repeat == nil {
		repeat = Forever
	}
	b := body{kind: bodyRepeat, rules: rules, repeat: repeat}
	return func() Cursor {
		return newSeqCursor(b)
	}
}

// LoopTimes runs the body exactly n passes. The pass count belongs to the
// cursor, so a re-registered thread starts counting again.
func LoopTimes(n int, rules ...Rule) Rule {
	b := body{kind: bodyRepeat, rules: rules, limit: n}
	return func() Cursor {
		return newSeqCursor(b)
	}
}

// Cursors wraps an existing cursor constructor as a Rule. It is the escape
// hatch for hand-written state machines.
func Cursors(newCursor func() Cursor) Rule {
	return Rule(newCursor)
}

type syncCursor struct {
	idiom Idiom
	done  bool
}

func (c *syncCursor) Next() (Idiom, bool) {
	if c.done {
		return Idiom{}, false
	}
	c.done = true
	return c.idiom, true
}

type bodyKind int

const (
	bodyOnce bodyKind = iota
	bodyRepeat
)

// body is the tagged variant evaluated by seqCursor: Once(rules) or
// Repeat(rules, repeat). A Repeat body with a positive limit counts passes
// instead of consulting repeat.
type body struct {
	kind   bodyKind
	rules  []Rule
	repeat Repeat
	limit  int
}

func (b body) again(passes int) bool {
	if b.kind == bodyOnce {
		return passes == 0
	}
	if b.repeat == nil {
		return passes < b.limit
	}
	return b.repeat()
}

type seqCursor struct {
	body    body
	idx     int    // next rule to start within the current pass
	current Cursor // cursor of the rule being drained, nil between rules
	passes  int    // completed or in-progress passes
	yielded bool   // the current pass produced at least one point
	started bool   // a pass is in progress
	done    bool
}

func newSeqCursor(b body) *seqCursor {
	return &seqCursor{body: b}
}

func (c *seqCursor) Next() (Idiom, bool) {
	for !c.done {
		if !c.started {
			if !c.body.again(c.passes) {
				c.done = true
				break
			}
			c.passes++
			c.started = true
			c.idx = 0
			c.yielded = false
		}

		if c.current == nil {
			if c.idx >= len(c.body.rules) {
				// End of pass. A repeating body that produced nothing would
				// spin forever, so it terminates instead.
				if !c.yielded {
					c.done = true
					break
				}
				c.started = false
				continue
			}
			c.current = c.body.rules[c.idx]()
			c.idx++
		}

		if idiom, ok := c.current.Next(); ok {
			c.yielded = true
			return idiom, true
		}
		c.current = nil
	}
	return Idiom{}, false
}
