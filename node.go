// Package potluck is a node in a peer-to-peer overlay that replicates
// recipes across loosely connected participants. Each node keeps a durable
// local store, broadcasts the recipes it chooses to share, and can query the
// overlay for the shared recipes of its peers. There is no coordinator and
// no convergence guarantee; replication is eventual and best effort among
// cooperating peers.
package potluck

import (
	"context"

	"github.com/potlucklabs/potluck/internal/engine"
	"github.com/potlucklabs/potluck/internal/peer"
	"github.com/potlucklabs/potluck/internal/recipe"
	"github.com/potlucklabs/potluck/internal/wire"
)

type (
	// Recipe is one shared unit of data.
	Recipe = recipe.Recipe
	// PeerID identifies a node in the overlay.
	PeerID = peer.ID
	// Target addresses a message to all subscribers or to one named peer.
	Target = wire.Target
	// State is the lifecycle state of a node's engine.
	State = engine.State
)

const (
	StateRunning      = engine.StateRunning
	StateShuttingDown = engine.StateShuttingDown
	StateStopped      = engine.StateStopped
)

var (
	ErrValidation    = recipe.ErrValidation
	ErrNotFound      = recipe.ErrNotFound
	ErrPersistence   = recipe.ErrPersistence
	ErrDecode        = wire.ErrDecode
	ErrChannelClosed = engine.ErrChannelClosed
)

// TargetAll addresses every subscriber of the topic.
func TargetAll() Target { return wire.TargetAll() }

// TargetPeer addresses a single named peer.
func TargetPeer(id PeerID) Target { return wire.TargetPeer(id) }

// Node is a running participant in the overlay.
type Node interface {
	// Create stores a new owned recipe and returns it with its assigned id.
	Create(ctx context.Context, name, ingredients, instructions string) (Recipe, error)
	// ListLocal returns the recipes this node created.
	ListLocal(ctx context.Context) ([]Recipe, error)
	// ListAll returns every recipe held, created or received.
	ListAll(ctx context.Context) ([]Recipe, error)
	// ListPeers returns the identities of the currently known peers.
	ListPeers(ctx context.Context) ([]PeerID, error)
	// PublishOne marks an owned recipe as shared and broadcasts it. Fails
	// with ErrNotFound for an id this node does not own.
	PublishOne(ctx context.Context, id uint64) error
	// PublishAll marks every owned recipe as shared and broadcasts the set.
	PublishAll(ctx context.Context) (int, error)
	// Request queries the targeted peer, or all peers, for their shared
	// recipes. Responses arrive asynchronously and merge into the store.
	Request(ctx context.Context, target Target) error
	// Identity returns this node's identity.
	Identity() PeerID
	// State returns the engine's lifecycle state.
	State() State
	// Close shuts the node down and waits for the engine loop to stop.
	Close() error
}
