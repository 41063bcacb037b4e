// Package engine implements the coordinating event loop of a node. All
// inputs that can touch the recipe store - inbound gossip, local commands,
// self-generated query responses - funnel through one loop, so the store
// needs no locking: serialization is structural.
package engine

import (
	"context"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/potlucklabs/potluck/internal/channel"
	"github.com/potlucklabs/potluck/internal/peer"
	"github.com/potlucklabs/potluck/internal/recipe"
	"github.com/potlucklabs/potluck/internal/wire"
	"go.uber.org/zap"
)

var (
	// ErrChannelClosed is returned by the loop when the gossip transport's
	// event stream ends. The node can no longer participate in the overlay.
	ErrChannelClosed = errors.New("gossip channel closed")
	// ErrStopped is returned to callers whose command arrives after the
	// loop has shut down.
	ErrStopped = errors.New("engine stopped")
)

// State is the lifecycle of an engine. There are no transitions out of
// StateStopped.
type State uint8

const (
	StateRunning State = iota
	StateShuttingDown
	StateStopped
)

type Engine struct {
	Config
	intents   chan intent
	responses chan wire.Message
	stopped   chan struct{}
	state     int32
}

func New(cfg Config) (*Engine, error) {
	cfg = cfg.Merge(DefaultConfig())
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		Config:    cfg,
		intents:   make(chan intent),
		responses: make(chan wire.Message, 16),
		stopped:   make(chan struct{}),
	}, nil
}

// Flow starts the event loop and returns a channel that yields its terminal
// error. The loop runs until ctx is cancelled (clean shutdown, nil error) or
// the gossip channel closes (ErrChannelClosed).
func (e *Engine) Flow(ctx context.Context) <-chan error {
	errC := make(chan error, 1)
	go func() {
		err := e.loop(ctx)
		e.setState(StateStopped)
		close(e.stopped)
		errC <- err
	}()
	return errC
}

func (e *Engine) State() State { return State(atomic.LoadInt32(&e.state)) }

func (e *Engine) setState(s State) { atomic.StoreInt32(&e.state, int32(s)) }

// loop waits on whichever event source becomes ready first. Within one
// iteration at most one store mutation occurs, and it completes fully -
// validate, append, persist - before the loop waits again, so a concurrently
// arriving event can never interrupt persistence mid-write.
func (e *Engine) loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			e.setState(StateShuttingDown)
			return nil
		case d, ok := <-e.Channel.Events():
			if !ok {
				e.setState(StateShuttingDown)
				// The transport closes its event stream during shutdown as
				// well; once the context is cancelled a closed stream is not
				// a failure.
				if ctx.Err() != nil {
					return nil
				}
				return ErrChannelClosed
			}
			e.handleDelivery(d)
		case in := <-e.intents:
			in.result <- e.handleIntent(ctx, in)
		case msg := <-e.responses:
			if err := e.publish(ctx, msg); err != nil {
				e.Logger.Warn("failed to publish query response", zap.Error(err))
			}
		}
	}
}

// handleDelivery filters and applies one inbound payload. Malformed and
// irrelevant messages are dropped here and never reach the store.
func (e *Engine) handleDelivery(d channel.Delivery) {
	if d.Sender == e.Host {
		return
	}
	msg, err := e.Codec.Decode(d.Payload)
	if err != nil {
		e.Logger.Warn("dropping undecodable payload",
			zap.String("sender", string(d.Sender)),
			zap.Int("size", len(d.Payload)),
			zap.Error(err),
		)
		return
	}
	switch msg.Variant() {
	case wire.VariantAnnounce:
		e.handleAnnounce(d.Sender, *msg.Announce)
	case wire.VariantQuery:
		e.handleQuery(d.Sender, *msg.Query)
	}
}

func (e *Engine) handleAnnounce(sender peer.ID, ann wire.Announce) {
	if !ann.Target.Selects(e.Host) {
		e.Logger.Debug("ignoring announce addressed to another peer",
			zap.String("sender", string(sender)),
			zap.String("target", string(ann.Target.Peer)),
		)
		return
	}
	added, err := e.Store.Merge(ann.Recipes)
	if err != nil {
		e.Logger.Warn("store persistence failed, running degraded", zap.Error(err))
	}
	e.Logger.Info("merged announce",
		zap.String("sender", string(sender)),
		zap.Int("received", len(ann.Recipes)),
		zap.Int("added", added),
	)
}

// handleQuery answers a relevant query by queueing a response announce for a
// later loop iteration. Queueing rather than publishing inline keeps the
// query handler from blocking the loop on the network.
func (e *Engine) handleQuery(sender peer.ID, q wire.Query) {
	if !q.Target.Selects(e.Host) {
		return
	}
	resp := wire.NewAnnounce(wire.TargetPeer(sender), e.Store.Shared())
	select {
	case e.responses <- resp:
	default:
		e.Logger.Warn("response queue full, dropping query response",
			zap.String("requester", string(sender)),
		)
	}
}

func (e *Engine) handleIntent(ctx context.Context, in intent) result {
	switch in.kind {
	case intentCreate:
		r, err := e.Store.Create(in.name, in.ingredients, in.instructions)
		return result{recipe: r, err: err}
	case intentListLocal:
		return result{recipes: e.Store.Local()}
	case intentListAll:
		return result{recipes: e.Store.All()}
	case intentListPeers:
		return result{peers: e.Directory.List()}
	case intentPublishOne:
		r, err := e.Store.MarkShared(in.id)
		if err != nil {
			return result{err: err}
		}
		return result{err: e.publish(ctx, wire.NewAnnounce(wire.TargetAll(), []recipe.Recipe{r}))}
	case intentPublishAll:
		shared, err := e.Store.ShareAll()
		if err != nil {
			return result{err: err}
		}
		return result{count: len(shared), err: e.publish(ctx, wire.NewAnnounce(wire.TargetAll(), shared))}
	case intentRequest:
		return result{err: e.publish(ctx, wire.NewQuery(in.target))}
	}
	panic("unknown intent")
}

func (e *Engine) publish(ctx context.Context, msg wire.Message) error {
	b, err := e.Codec.Encode(msg)
	if err != nil {
		return err
	}
	return e.Channel.Publish(ctx, b)
}

// execute hands an intent to the loop and waits for its result.
func (e *Engine) execute(ctx context.Context, in intent) (result, error) {
	in.result = make(chan result, 1)
	select {
	case e.intents <- in:
	case <-e.stopped:
		return result{}, ErrStopped
	case <-ctx.Done():
		return result{}, ctx.Err()
	}
	select {
	case res := <-in.result:
		return res, nil
	case <-e.stopped:
		return result{}, ErrStopped
	case <-ctx.Done():
		return result{}, ctx.Err()
	}
}

// Create validates and stores a new owned recipe, reporting the assigned id.
func (e *Engine) Create(ctx context.Context, name, ingredients, instructions string) (recipe.Recipe, error) {
	res, err := e.execute(ctx, intent{
		kind:         intentCreate,
		name:         name,
		ingredients:  ingredients,
		instructions: instructions,
	})
	if err != nil {
		return recipe.Recipe{}, err
	}
	return res.recipe, res.err
}

// ListLocal returns the recipes owned by this node.
func (e *Engine) ListLocal(ctx context.Context) ([]recipe.Recipe, error) {
	res, err := e.execute(ctx, intent{kind: intentListLocal})
	if err != nil {
		return nil, err
	}
	return res.recipes, res.err
}

// ListAll returns every recipe held, local or received.
func (e *Engine) ListAll(ctx context.Context) ([]recipe.Recipe, error) {
	res, err := e.execute(ctx, intent{kind: intentListAll})
	if err != nil {
		return nil, err
	}
	return res.recipes, res.err
}

// ListPeers returns the identities currently known to the peer directory.
func (e *Engine) ListPeers(ctx context.Context) ([]peer.ID, error) {
	res, err := e.execute(ctx, intent{kind: intentListPeers})
	if err != nil {
		return nil, err
	}
	return res.peers, res.err
}

// PublishOne marks the owned recipe with the given id as shared and
// broadcasts it. Fails with recipe.ErrNotFound - and publishes nothing -
// when the id does not name an owned recipe.
func (e *Engine) PublishOne(ctx context.Context, id uint64) error {
	res, err := e.execute(ctx, intent{kind: intentPublishOne, id: id})
	if err != nil {
		return err
	}
	return res.err
}

// PublishAll marks every owned recipe as shared and broadcasts the set,
// returning how many recipes were announced.
func (e *Engine) PublishAll(ctx context.Context) (int, error) {
	res, err := e.execute(ctx, intent{kind: intentPublishAll})
	if err != nil {
		return 0, err
	}
	return res.count, res.err
}

// Request publishes a query for the shared recipes of the targeted peer or
// of all peers. Responses arrive later as ordinary announces; a peer that
// never answers is simply never heard from.
func (e *Engine) Request(ctx context.Context, target wire.Target) error {
	res, err := e.execute(ctx, intent{kind: intentRequest, target: target})
	if err != nil {
		return err
	}
	return res.err
}
