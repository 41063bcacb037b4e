package potluck

import (
	"github.com/cockroachdb/pebble/vfs"
	"github.com/potlucklabs/potluck/internal/peer"
	"go.uber.org/zap"
)

type Option func(*options)

type options struct {
	// identity is the local node identity. Generated when unset.
	identity peer.ID
	// logger is shared by the store, engine and transport.
	logger *zap.Logger
	// fs is the filesystem holding the store document.
	fs vfs.FS
	// transport overrides the default gRPC channel transport. Used by the
	// in-memory network in tests.
	transport Transport
	// directory overrides the default empty peer directory.
	directory *peer.Directory
	// advertise is the address peers dial back. Defaults to the listen
	// address.
	advertise string
	// maxPayload bounds inbound wire payloads.
	maxPayload int
}

func newOptions(opts ...Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	mergeDefaultOptions(o)
	return o
}

func mergeDefaultOptions(o *options) {
	if o.identity == "" {
		o.identity = peer.Generate()
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.fs == nil {
		o.fs = vfs.Default
	}
	if o.directory == nil {
		o.directory = peer.NewDirectory()
	}
}

// WithIdentity sets the node identity instead of generating one.
func WithIdentity(id PeerID) Option { return func(o *options) { o.identity = id } }

// WithLogger sets the logger for the node and its components.
func WithLogger(logger *zap.Logger) Option { return func(o *options) { o.logger = logger } }

// WithFS sets the filesystem the store document is written to.
func WithFS(fs vfs.FS) Option { return func(o *options) { o.fs = fs } }

// WithTransport replaces the default gRPC gossip channel.
func WithTransport(t Transport) Option { return func(o *options) { o.transport = t } }

// WithDirectory replaces the default empty peer directory.
func WithDirectory(d *peer.Directory) Option { return func(o *options) { o.directory = d } }

// WithAdvertiseAddr sets the address peers are told to dial back.
func WithAdvertiseAddr(addr string) Option { return func(o *options) { o.advertise = addr } }

// WithMaxPayload bounds the size of inbound wire payloads.
func WithMaxPayload(n int) Option { return func(o *options) { o.maxPayload = n } }
