package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/roach88/bprogram/internal/engine"
)

// Bridge relays events between one engine and a Redis channel.
//
// Run is the only method that calls the trigger, so the goroutine running
// it must own the engine. Publish and Forwarder are safe from any
// goroutine.
type Bridge struct {
	rdb     *redis.Client
	channel string
	origin  string
	trigger engine.TriggerFunc
	logger  *slog.Logger

	ready     chan struct{}
	readyOnce sync.Once
}

// New creates a bridge. Inbound events go to trigger; outbound envelopes
// carry origin.
func New(rdb *redis.Client, channel, origin string, trigger engine.TriggerFunc, logger *slog.Logger) (*Bridge, error) {
	if rdb == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if channel == "" {
		return nil, fmt.Errorf("channel cannot be empty")
	}
	if origin == "" {
		return nil, fmt.Errorf("origin cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		rdb:     rdb,
		channel: channel,
		origin:  origin,
		trigger: trigger,
		logger:  logger,
		ready:   make(chan struct{}),
	}, nil
}

// Origin returns the identity stamped on published envelopes.
func (b *Bridge) Origin() string {
	return b.origin
}

// Ready is closed once Run's subscription is confirmed by the server.
func (b *Bridge) Ready() <-chan struct{} {
	return b.ready
}

// Run subscribes to the channel and forwards inbound events until ctx is
// cancelled. Undecodable messages and messages from this bridge's own
// origin are skipped. A nil trigger makes Run a no-op listener.
func (b *Bridge) Run(ctx context.Context) error {
	pubsub := b.rdb.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	// Wait for confirmation so Ready means messages will be delivered.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.readyOnce.Do(func() { close(b.ready) })
	b.logger.Info("bridge subscribed", "channel", b.channel, "origin", b.origin)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("bridge stopped", "channel", b.channel)
			return nil
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("subscription to %s closed", b.channel)
			}
			b.deliver([]byte(msg.Payload))
		}
	}
}

func (b *Bridge) deliver(payload []byte) {
	env, err := UnmarshalEnvelope(payload)
	if err != nil {
		b.logger.Warn("dropping malformed message", "channel", b.channel, "error", err)
		return
	}
	if env.Origin == b.origin {
		return
	}
	b.logger.Debug("event received", "event", env.Type, "from", env.Origin)
	if b.trigger != nil {
		b.trigger(env.Event())
	}
}

// Publish sends an event to every other peer on the channel.
func (b *Bridge) Publish(ctx context.Context, ev engine.Event) error {
	data, err := MarshalEnvelope(Envelope{Origin: b.origin, Type: ev.Type, Detail: ev.Detail})
	if err != nil {
		return fmt.Errorf("encode %s: %w", ev.Type, err)
	}
	if err := b.rdb.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

// Forwarder returns feedback handlers that publish the listed event types
// when they are selected. Publish failures are logged; feedback handlers
// have no error path.
func (b *Bridge) Forwarder(ctx context.Context, types ...string) engine.Handlers {
	h := make(engine.Handlers, len(types))
	for _, typ := range types {
		h[typ] = func(detail any) {
			if err := b.Publish(ctx, engine.Event{Type: typ, Detail: detail}); err != nil {
				b.logger.Error("forward failed", "event", typ, "error", err)
			}
		}
	}
	return h
}
