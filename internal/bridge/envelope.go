package bridge

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"

	"github.com/roach88/bprogram/internal/engine"
)

// Envelope is the wire form of one event.
type Envelope struct {
	Origin string `cbor:"origin"`
	Type   string `cbor:"type"`
	Detail any    `cbor:"detail,omitempty"`
}

// Event returns the engine event carried by the envelope.
func (e Envelope) Event() engine.Event {
	return engine.Event{Type: e.Type, Detail: e.Detail}
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("cbor encode mode: %v", err))
	}
	encMode = em

	// Maps decode with string keys so details look the same as JSON ones
	// to detail matchers.
	dm, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("cbor decode mode: %v", err))
	}
	decMode = dm
}

// MarshalEnvelope encodes an envelope as canonical CBOR.
func MarshalEnvelope(e Envelope) ([]byte, error) {
	return encMode.Marshal(e)
}

// UnmarshalEnvelope decodes and checks an envelope.
func UnmarshalEnvelope(data []byte) (Envelope, error) {
	var e Envelope
	if err := decMode.Unmarshal(data, &e); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if e.Type == "" {
		return Envelope{}, fmt.Errorf("decode envelope: event type is empty")
	}
	return e, nil
}
