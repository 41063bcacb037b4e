package potluck

import (
	"context"

	"github.com/potlucklabs/potluck/internal/channel"
	"github.com/potlucklabs/potluck/internal/engine"
	"github.com/potlucklabs/potluck/internal/peer"
	"github.com/potlucklabs/potluck/internal/recipe"
	"github.com/potlucklabs/potluck/internal/wire"
	grpct "github.com/potlucklabs/potluck/transport/grpc"
)

// Transport is the gossip channel a node participates through. The default
// implementation lives in transport/grpc; mock.Route provides an in-memory
// one.
type Transport interface {
	channel.Transport
	Configure(ctx context.Context, host peer.ID) error
}

// Open starts a node: it loads the store document at storePath, joins the
// overlay by listening on addr and contacting peers, and starts the sync
// engine. The returned Node is ready for commands.
func Open(storePath, addr string, peers []string, opts ...Option) (Node, error) {
	o := newOptions(opts...)
	ctx, shutdown := context.WithCancel(context.Background())

	store, err := recipe.Open(recipe.Config{
		Path:   storePath,
		FS:     o.fs,
		Host:   o.identity,
		Logger: o.logger,
	})
	if err != nil {
		shutdown()
		return nil, err
	}

	transport := o.transport
	if transport == nil {
		transport, err = grpct.New(grpct.Config{
			ListenAddr:    addr,
			AdvertiseAddr: o.advertise,
			Bootstrap:     peers,
			Directory:     o.directory,
			Logger:        o.logger,
		})
		if err != nil {
			shutdown()
			return nil, err
		}
	}
	if err := transport.Configure(ctx, o.identity); err != nil {
		shutdown()
		return nil, err
	}

	eng, err := engine.New(engine.Config{
		Host:      o.identity,
		Store:     store,
		Channel:   transport,
		Directory: o.directory,
		Codec:     wire.Codec{MaxPayload: o.maxPayload},
		Logger:    o.logger,
	})
	if err != nil {
		shutdown()
		return nil, err
	}

	return &node{
		Engine:   eng,
		identity: o.identity,
		shutdown: shutdown,
		errC:     eng.Flow(ctx),
	}, nil
}

type node struct {
	*engine.Engine
	identity peer.ID
	shutdown context.CancelFunc
	errC     <-chan error
}

func (n *node) Identity() PeerID { return n.identity }

// Close cancels the engine loop and waits for it to stop. Returns the loop's
// terminal error, which is nil on a clean shutdown.
func (n *node) Close() error {
	n.shutdown()
	return <-n.errC
}
