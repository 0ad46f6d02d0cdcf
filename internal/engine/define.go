package engine

// Connection bundles a trigger with the cleanup callbacks of whatever was
// wired to it. Callbacks run once, in registration order.
type Connection struct {
	Trigger     TriggerFunc
	disconnects []Disconnect
	closed      bool
}

// NewConnection wraps a trigger.
func NewConnection(trigger TriggerFunc) *Connection {
	return &Connection{Trigger: trigger}
}

// AddDisconnect registers a cleanup callback. Callbacks added after
// Disconnect run immediately.
func (c *Connection) AddDisconnect(d Disconnect) {
	if d == nil {
		return
	}
	if c.closed {
		d()
		return
	}
	c.disconnects = append(c.disconnects, d)
}

// Disconnect runs every registered callback. Later calls do nothing.
func (c *Connection) Disconnect() {
	if c.closed {
		return
	}
	c.closed = true
	ds := c.disconnects
	c.disconnects = nil
	for _, d := range ds {
		d()
	}
}

// Context is what a Definition's Setup receives. Trigger is the unrestricted
// trigger; the gated one is only handed to the outside.
type Context struct {
	Threads       *Threads
	Trigger       TriggerFunc
	UseSnapshot   func(SnapshotListener) Disconnect
	AddDisconnect func(Disconnect)
	Engine        *Engine
}

// Definition describes a reusable behavioral program.
type Definition struct {
	// PublicEvents lists the event types outside callers may trigger. Nil
	// leaves the instance trigger ungated.
	PublicEvents []string

	// Options configure each engine built from the definition.
	Options []Option

	// Setup registers threads and returns feedback handlers.
	Setup func(ctx *Context) Handlers
}

// Instance is one running program built from a Definition.
type Instance struct {
	*Connection
	Engine *Engine
}

// Define returns a constructor for isolated instances of d. Every call
// builds a fresh engine: instances share no registry, queue or handlers.
func Define(d Definition) func() *Instance {
	return func() *Instance {
		opts := append([]Option{}, d.Options...)
		if d.PublicEvents != nil {
			opts = append(opts, WithPublicEvents(d.PublicEvents...))
		}
		e := New(opts...)
		conn := NewConnection(e.PublicTrigger())
		if d.Setup != nil {
			handlers := d.Setup(&Context{
				Threads:       e.Threads(),
				Trigger:       e.Trigger,
				UseSnapshot:   e.UseSnapshot,
				AddDisconnect: conn.AddDisconnect,
				Engine:        e,
			})
			if len(handlers) > 0 {
				conn.AddDisconnect(e.UseFeedback(handlers))
			}
		}
		return &Instance{Connection: conn, Engine: e}
	}
}
