package engine

import (
	"github.com/potlucklabs/potluck/internal/peer"
	"github.com/potlucklabs/potluck/internal/recipe"
	"github.com/potlucklabs/potluck/internal/wire"
)

// intentKind enumerates the typed commands the interpreter layer hands the
// engine. Each is handled in a single loop iteration.
type intentKind uint8

const (
	intentCreate intentKind = iota
	intentListLocal
	intentListAll
	intentListPeers
	intentPublishOne
	intentPublishAll
	intentRequest
)

type intent struct {
	kind intentKind

	// create
	name         string
	ingredients  string
	instructions string

	// publish-one
	id uint64

	// request
	target wire.Target

	result chan result
}

type result struct {
	recipe  recipe.Recipe
	recipes []recipe.Recipe
	peers   []peer.ID
	count   int
	err     error
}
