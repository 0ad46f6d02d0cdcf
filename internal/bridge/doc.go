// Package bridge connects engines running in different processes over
// Redis pub/sub.
//
// Every message on the channel is a CBOR envelope {origin, type, detail}.
// A Bridge forwards inbound envelopes to a trigger, normally an instance's
// public-gated trigger, so remote peers can only inject public events.
// Envelopes carrying the bridge's own origin are ignored, which keeps an
// engine from re-triggering the events it published itself.
//
// Delivery is at-most-once, as Redis pub/sub is: a message published while
// no bridge is subscribed is lost.
package bridge
