package mock

import (
	"strconv"

	"github.com/cockroachdb/pebble/vfs"
	"github.com/potlucklabs/potluck"
	"github.com/potlucklabs/potluck/internal/peer"
)

// Builder opens nodes joined through one in-memory network, each with its
// own memory filesystem. Used to stand up multi-node scenarios in tests.
type Builder struct {
	DefaultOptions []potluck.Option
	net            *Network
	nodes          []potluck.Node
}

func NewBuilder(opts ...potluck.Option) *Builder {
	return &Builder{DefaultOptions: opts, net: NewNetwork()}
}

func (b *Builder) New(opts ...potluck.Option) (potluck.Node, error) {
	id := peer.ID("node-" + strconv.Itoa(len(b.nodes)+1))
	dir := peer.NewDirectory()
	route := b.net.Route(id, dir)
	all := []potluck.Option{
		potluck.WithIdentity(id),
		potluck.WithDirectory(dir),
		potluck.WithTransport(route),
		potluck.WithFS(vfs.NewMem()),
	}
	all = append(all, b.DefaultOptions...)
	all = append(all, opts...)
	n, err := potluck.Open("/recipes.json", "", nil, all...)
	if err != nil {
		return nil, err
	}
	b.nodes = append(b.nodes, n)
	return n, nil
}

// Close shuts down every node the builder opened, returning the first error.
func (b *Builder) Close() error {
	var first error
	for _, n := range b.nodes {
		if err := n.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
