// Package grpc implements the gossip channel over gRPC. Publishing fans an
// envelope out to every known peer address with a unary Deliver call; inbound
// calls surface on the Events channel. Peers are learned from the envelopes
// they send, seeded by the configured bootstrap addresses.
package grpc

import (
	"context"
	"net"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/potlucklabs/potluck/internal/channel"
	"github.com/potlucklabs/potluck/internal/peer"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

type Config struct {
	// ListenAddr is the address the channel server binds to.
	ListenAddr string
	// AdvertiseAddr is the address peers are told to dial back. Defaults to
	// ListenAddr.
	AdvertiseAddr string
	// Bootstrap are the peer addresses contacted before any peer has been
	// learned.
	Bootstrap []string
	// Directory receives the identity of every peer heard from.
	Directory *peer.Directory
	// Logger
	Logger *zap.Logger
}

func (cfg Config) Merge(def Config) Config {
	if cfg.AdvertiseAddr == "" {
		cfg.AdvertiseAddr = cfg.ListenAddr
	}
	if cfg.Logger == nil {
		cfg.Logger = def.Logger
	}
	return cfg
}

func (cfg Config) Validate() error {
	if cfg.ListenAddr == "" {
		return errors.New("listen address must be set")
	}
	if cfg.Directory == nil {
		return errors.New("directory must be set")
	}
	return nil
}

func DefaultConfig() Config { return Config{Logger: zap.NewNop()} }

// Transport implements channel.Transport.
type Transport struct {
	Config
	host   peer.ID
	server *grpc.Server
	events chan channel.Delivery
	done   chan struct{}

	mu    sync.Mutex
	conns map[string]*grpc.ClientConn
	addrs map[peer.ID]string
}

func New(cfg Config) (*Transport, error) {
	cfg = cfg.Merge(DefaultConfig())
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Transport{
		Config: cfg,
		events: make(chan channel.Delivery, 64),
		done:   make(chan struct{}),
		conns:  make(map[string]*grpc.ClientConn),
		addrs:  make(map[peer.ID]string),
	}, nil
}

// Configure binds the channel server and starts serving. The server runs
// until ctx is cancelled, at which point in-flight deliveries drain and the
// events channel closes.
func (t *Transport) Configure(ctx context.Context, host peer.ID) error {
	t.host = host
	lis, err := net.Listen("tcp", t.ListenAddr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", t.ListenAddr)
	}
	t.server = grpc.NewServer()
	t.server.RegisterService(&serviceDesc, t)
	go func() {
		if err := t.server.Serve(lis); err != nil {
			t.Logger.Error("channel server stopped", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		close(t.done)
		t.server.GracefulStop()
		t.closeConns()
		close(t.events)
	}()
	t.Logger.Info("channel listening",
		zap.String("addr", t.ListenAddr),
		zap.Int("bootstrap", len(t.Bootstrap)),
	)
	return nil
}

// Publish fans the payload out to every known peer address. Unreachable
// peers are logged and skipped; delivery is best effort.
func (t *Transport) Publish(ctx context.Context, payload []byte) error {
	env := &Envelope{Sender: t.host, Addr: t.AdvertiseAddr, Payload: payload}
	var g errgroup.Group
	for _, addr := range t.targets() {
		addr := addr
		g.Go(func() error {
			if err := t.deliver(ctx, addr, env); err != nil {
				t.Logger.Warn("failed to deliver",
					zap.String("addr", addr),
					zap.Error(err),
				)
			}
			return nil
		})
	}
	return g.Wait()
}

func (t *Transport) Events() <-chan channel.Delivery { return t.events }

// Deliver implements the channel service.
func (t *Transport) Deliver(ctx context.Context, env *Envelope) (*Ack, error) {
	if env.Sender != t.host {
		t.learn(env.Sender, env.Addr)
	}
	select {
	case t.events <- channel.Delivery{Sender: env.Sender, Payload: env.Payload}:
		return &Ack{}, nil
	case <-t.done:
		return nil, errors.New("transport shutting down")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *Transport) learn(id peer.ID, addr string) {
	t.mu.Lock()
	if addr != "" {
		t.addrs[id] = addr
	}
	t.mu.Unlock()
	t.Directory.Add(id)
}

// targets returns the deduplicated union of bootstrap and learned peer
// addresses, excluding the host's own.
func (t *Transport) targets() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	seen := map[string]struct{}{t.AdvertiseAddr: {}}
	var out []string
	for _, addr := range t.Bootstrap {
		if _, ok := seen[addr]; !ok {
			seen[addr] = struct{}{}
			out = append(out, addr)
		}
	}
	for _, addr := range t.addrs {
		if _, ok := seen[addr]; !ok {
			seen[addr] = struct{}{}
			out = append(out, addr)
		}
	}
	return out
}

func (t *Transport) deliver(ctx context.Context, addr string, env *Envelope) error {
	conn, err := t.acquire(addr)
	if err != nil {
		return err
	}
	return conn.Invoke(ctx, deliverMethod, env, new(Ack))
}

func (t *Transport) acquire(addr string) (*grpc.ClientConn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if conn, ok := t.conns[addr]; ok {
		return conn, nil
	}
	conn, err := grpc.Dial(addr,
		grpc.WithInsecure(),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(Name)),
	)
	if err != nil {
		return nil, err
	}
	t.conns[addr] = conn
	return conn, nil
}

func (t *Transport) closeConns() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for addr, conn := range t.conns {
		if err := conn.Close(); err != nil {
			t.Logger.Debug("failed to close connection", zap.String("addr", addr), zap.Error(err))
		}
		delete(t.conns, addr)
	}
}
