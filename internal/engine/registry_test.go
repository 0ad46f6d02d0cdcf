package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThreads_PriorityIsRegistrationOrder(t *testing.T) {
	e := newTestEngine()
	e.Threads().Set(Named("c", req("x")), Named("a", req("x")))
	e.Threads().Set(Named("b", req("x")))

	assert.Equal(t, []string{"c", "a", "b"}, e.Threads().Names())
	assert.Equal(t, 3, e.Threads().Len())
}

func TestThreads_ReplaceTakesLastPriorityAndRestarts(t *testing.T) {
	e := newTestEngine()
	rec := record(e)
	e.Threads().Set(
		Named("a", Thread(req("a1"), req("a2"))),
		Named("b", Thread(req("b1"))),
	)

	e.Threads().Set(Named("a", Thread(req("A1"))))

	assert.Equal(t, []string{"b", "a"}, e.Threads().Names())
	warnings := rec.kind(KindThreadsWarning)
	require.Len(t, warnings, 1)
	assert.Equal(t, "a", warnings[0].Thread)
	assert.Contains(t, warnings[0].Warning, "replaced")

	e.Trigger(Event{Type: "start"})
	assert.Equal(t, []string{"start", "b1", "A1"}, rec.selected())
}

func TestThreads_ReplaceAfterProgressRestartsCursor(t *testing.T) {
	rule := Thread(Sync(Idiom{WaitFor: On("go")}), req("one"), Sync(Idiom{WaitFor: On("never")}))
	e := newTestEngine()
	e.Threads().Set(Named("w", rule))
	rec := record(e)

	e.Trigger(Event{Type: "go"})
	require.Equal(t, []string{"go", "one"}, rec.selected())
	require.True(t, e.Threads().Has("w").Pending)

	e.Threads().Set(Named("w", rule))
	rec.reset()
	e.Trigger(Event{Type: "go"})
	assert.Equal(t, []string{"go", "one"}, rec.selected(), "replacement starts from the first sync point")
}

func TestThreads_Has(t *testing.T) {
	e := newTestEngine()
	e.Threads().Set(Named("waiter", Sync(Idiom{WaitFor: On("never")})))

	assert.Equal(t, Status{Running: true}, e.Threads().Has("waiter"), "not yet pulled")
	assert.Equal(t, Status{}, e.Threads().Has("missing"))

	e.Trigger(Event{Type: "start"})
	assert.Equal(t, Status{Pending: true}, e.Threads().Has("waiter"))
}

func TestThreads_Delete(t *testing.T) {
	e := newTestEngine()
	e.Threads().Set(
		Named("blocker", Sync(Idiom{Block: On("go")})),
		Named("goer", Thread(req("go"))),
	)
	rec := record(e)

	e.Trigger(Event{Type: "start"})
	require.Equal(t, []string{"start"}, rec.selected())

	assert.True(t, e.Threads().Delete("blocker"))
	assert.False(t, e.Threads().Delete("blocker"))

	e.Trigger(Event{Type: "resume"})
	assert.Equal(t, []string{"start", "resume", "go"}, rec.selected())
}

func TestThreads_DeleteFromFeedback(t *testing.T) {
	e := newTestEngine()
	e.Threads().Set(Named("ticker", Loop(nil, req("tick"))))
	ticks := 0
	e.UseFeedback(Handlers{"tick": func(any) {
		ticks++
		if ticks == 2 {
			e.Threads().Delete("ticker")
		}
	}})

	e.Trigger(Event{Type: "start"})

	assert.Equal(t, 2, ticks)
	assert.Equal(t, 0, e.Threads().Len())
}

func TestThreads_NilRuleIgnored(t *testing.T) {
	e := newTestEngine()
	e.Threads().Set(Named("nil", nil))

	assert.Equal(t, 0, e.Threads().Len())
}
