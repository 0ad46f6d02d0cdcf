package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterDefinition(log *[]string) Definition {
	return Definition{
		PublicEvents: []string{"increment"},
		Options:      []Option{WithLogger(discardLogger())},
		Setup: func(ctx *Context) Handlers {
			ctx.Threads.Set(Named("count", Loop(nil,
				Sync(Idiom{WaitFor: On("increment")}),
				req("counted"),
			)))
			ctx.AddDisconnect(func() { *log = append(*log, "setup cleanup") })
			return Handlers{
				"counted": func(any) { *log = append(*log, "counted") },
			}
		},
	}
}

func TestDefine_InstancesAreIsolated(t *testing.T) {
	var log []string
	newCounter := Define(counterDefinition(&log))

	a := newCounter()
	b := newCounter()
	require.NotSame(t, a.Engine, b.Engine)

	a.Trigger(Event{Type: "increment"})
	a.Trigger(Event{Type: "increment"})

	assert.Equal(t, []string{"counted", "counted"}, log)
	assert.Equal(t, int64(4), a.Engine.Step())
	assert.Equal(t, int64(0), b.Engine.Step())
}

func TestDefine_TriggerIsPublicGated(t *testing.T) {
	var log []string
	inst := Define(counterDefinition(&log))()

	inst.Trigger(Event{Type: "counted"})

	assert.Empty(t, log, "internal events cannot be injected from outside")
}

func TestDefine_DisconnectRunsOnce(t *testing.T) {
	var log []string
	inst := Define(counterDefinition(&log))()

	inst.Disconnect()
	inst.Disconnect()
	assert.Equal(t, []string{"setup cleanup"}, log)

	// Feedback was detached as part of the disconnect.
	inst.Trigger(Event{Type: "increment"})
	assert.Equal(t, []string{"setup cleanup"}, log)
}

func TestConnection_AddAfterDisconnectRunsImmediately(t *testing.T) {
	c := NewConnection(func(Event) {})
	c.Disconnect()

	ran := false
	c.AddDisconnect(func() { ran = true })
	c.AddDisconnect(nil)

	assert.True(t, ran)
}

func TestConnection_CallbackOrder(t *testing.T) {
	c := NewConnection(nil)
	var order []int
	c.AddDisconnect(func() { order = append(order, 1) })
	c.AddDisconnect(func() { order = append(order, 2) })

	c.Disconnect()

	assert.Equal(t, []int{1, 2}, order)
}

func TestDefine_SnapshotThroughContext(t *testing.T) {
	var kinds []SnapshotKind
	inst := Define(Definition{
		Options: []Option{WithLogger(discardLogger())},
		Setup: func(ctx *Context) Handlers {
			ctx.AddDisconnect(ctx.UseSnapshot(func(msg SnapshotMessage) {
				kinds = append(kinds, msg.Kind)
			}))
			ctx.Trigger(Event{Type: "boot"})
			return nil
		},
	})()

	inst.Trigger(Event{Type: "anything"})
	inst.Disconnect()
	inst.Trigger(Event{Type: "ignored"})

	assert.Equal(t, []SnapshotKind{KindSelection, KindSelection}, kinds)
}
