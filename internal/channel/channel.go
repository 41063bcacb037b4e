// Package channel defines the publish/subscribe boundary the sync engine
// speaks through. Implementations own discovery, transport security and
// connection management; the engine treats payloads as opaque bytes.
package channel

import (
	"context"

	"github.com/potlucklabs/potluck/internal/peer"
)

// Delivery is one inbound payload tagged with the identity of the peer that
// published it.
type Delivery struct {
	Sender  peer.ID
	Payload []byte
}

// Transport is a publish/subscribe primitive over one logical topic.
type Transport interface {
	// Publish fans the payload out to all current subscribers. Best effort:
	// peers that cannot be reached are skipped, not retried.
	Publish(ctx context.Context, payload []byte) error
	// Events yields inbound deliveries in arrival order. The channel closing
	// means the transport is gone and the node can no longer participate.
	Events() <-chan Delivery
}
