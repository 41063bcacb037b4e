package mock

import (
	"context"
	"sync"

	"github.com/potlucklabs/potluck/internal/channel"
	"github.com/potlucklabs/potluck/internal/peer"
)

// Network is an in-memory, process-local gossip channel shared by a set of
// routes. Publishing on one route delivers to every other route, mimicking
// the pubsub topic without any transport.
type Network struct {
	mu     sync.Mutex
	routes []*Route
}

func NewNetwork() *Network { return &Network{} }

// Route joins the network under the given identity. Every existing route
// learns the newcomer and vice versa, standing in for discovery.
func (n *Network) Route(id peer.ID, dir *peer.Directory) *Route {
	r := &Route{
		net:       n,
		id:        id,
		directory: dir,
		events:    make(chan channel.Delivery, 64),
	}
	n.mu.Lock()
	for _, other := range n.routes {
		if other.directory != nil {
			other.directory.Add(id)
		}
		if dir != nil {
			dir.Add(other.id)
		}
	}
	n.routes = append(n.routes, r)
	n.mu.Unlock()
	return r
}

// Route is one subscriber's view of the network. It implements the transport
// surface the node wires in.
type Route struct {
	net       *Network
	id        peer.ID
	directory *peer.Directory
	events    chan channel.Delivery
	closed    bool
}

// Configure is a no-op; the route is live from the moment it joins.
func (r *Route) Configure(context.Context, peer.ID) error { return nil }

// Publish delivers the payload to every other route. Routes with a full
// event buffer are skipped, matching the best-effort channel contract.
func (r *Route) Publish(_ context.Context, payload []byte) error {
	b := make([]byte, len(payload))
	copy(b, payload)
	r.net.mu.Lock()
	defer r.net.mu.Unlock()
	for _, other := range r.net.routes {
		if other == r || other.closed {
			continue
		}
		select {
		case other.events <- channel.Delivery{Sender: r.id, Payload: b}:
		default:
		}
	}
	return nil
}

func (r *Route) Events() <-chan channel.Delivery { return r.events }

// Close ends the route's event stream, simulating the transport going away.
func (r *Route) Close() {
	r.net.mu.Lock()
	defer r.net.mu.Unlock()
	if !r.closed {
		r.closed = true
		close(r.events)
	}
}
