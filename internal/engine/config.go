package engine

import (
	"github.com/cockroachdb/errors"
	"github.com/potlucklabs/potluck/internal/channel"
	"github.com/potlucklabs/potluck/internal/peer"
	"github.com/potlucklabs/potluck/internal/recipe"
	"github.com/potlucklabs/potluck/internal/wire"
	"go.uber.org/zap"
)

type Config struct {
	// Host is the identity of the local node.
	Host peer.ID
	// Store is the node's recipe store. The engine is its only mutator.
	Store *recipe.Store
	// Channel is the gossip channel the engine publishes to and receives
	// deliveries from.
	Channel channel.Transport
	// Directory is the set of known peers, maintained by the transport.
	// The engine only reads it.
	Directory *peer.Directory
	// Codec translates messages to and from channel payloads.
	Codec wire.Codec
	// Logger
	Logger *zap.Logger
}

func (cfg Config) Merge(def Config) Config {
	if cfg.Codec.MaxPayload == 0 {
		cfg.Codec = def.Codec
	}
	if cfg.Logger == nil {
		cfg.Logger = def.Logger
	}
	return cfg
}

func (cfg Config) Validate() error {
	if cfg.Host == "" {
		return errors.New("host identity must be set")
	}
	if cfg.Store == nil {
		return errors.New("store must be set")
	}
	if cfg.Channel == nil {
		return errors.New("channel must be set")
	}
	if cfg.Directory == nil {
		return errors.New("directory must be set")
	}
	return nil
}

func DefaultConfig() Config {
	return Config{
		Codec:  wire.Codec{MaxPayload: wire.DefaultMaxPayload},
		Logger: zap.NewNop(),
	}
}
