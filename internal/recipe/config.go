package recipe

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/potlucklabs/potluck/internal/peer"
	"go.uber.org/zap"
)

type Config struct {
	// Path is the location of the store document on FS.
	Path string
	// FS is the filesystem the store document lives on. Swapped for an
	// in-memory filesystem in tests.
	FS vfs.FS
	// Host is the identity of the local node. Recipes created through this
	// store carry it as their publisher.
	Host peer.ID
	// Logger
	Logger *zap.Logger
}

func (cfg Config) Merge(def Config) Config {
	if cfg.Path == "" {
		cfg.Path = def.Path
	}
	if cfg.FS == nil {
		cfg.FS = def.FS
	}
	if cfg.Logger == nil {
		cfg.Logger = def.Logger
	}
	return cfg
}

func (cfg Config) Validate() error {
	if cfg.Path == "" {
		return errors.New("store path must be set")
	}
	if cfg.Host == "" {
		return errors.New("host identity must be set")
	}
	return nil
}

func DefaultConfig() Config {
	return Config{
		FS:     vfs.Default,
		Logger: zap.NewNop(),
	}
}
