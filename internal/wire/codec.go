package wire

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// ErrDecode is returned for malformed, truncated or oversized inbound
// payloads. The offending payload is dropped by the caller, never retried.
var ErrDecode = errors.New("failed to decode message")

// DefaultMaxPayload bounds inbound payloads at 1 MiB.
const DefaultMaxPayload = 1 << 20

// Codec serializes messages to and from the transport's byte payload as
// self-describing JSON documents.
type Codec struct {
	// MaxPayload is the largest inbound payload Decode will attempt to
	// parse. Anything larger is rejected outright, which protects the node
	// from memory exhaustion by a hostile or buggy peer.
	MaxPayload int
}

func (c Codec) maxPayload() int {
	if c.MaxPayload <= 0 {
		return DefaultMaxPayload
	}
	return c.MaxPayload
}

// Encode serializes a well-formed message. It only fails when handed an
// invalid union, which indicates a bug in the caller rather than bad input.
func (c Codec) Encode(m Message) ([]byte, error) {
	if m.Variant() == VariantInvalid {
		return nil, errors.New("message must set exactly one of announce or query")
	}
	return json.Marshal(m)
}

// Decode parses an inbound payload. The size bound is enforced before the
// payload content is ever inspected.
func (c Codec) Decode(b []byte) (Message, error) {
	if len(b) > c.maxPayload() {
		return Message{}, errors.Wrapf(ErrDecode, "payload of %d bytes exceeds limit of %d", len(b), c.maxPayload())
	}
	var m Message
	if err := json.Unmarshal(b, &m); err != nil {
		return Message{}, errors.Wrap(ErrDecode, err.Error())
	}
	if m.Variant() == VariantInvalid {
		return Message{}, errors.Wrap(ErrDecode, "message sets neither or both of announce and query")
	}
	return m, nil
}
