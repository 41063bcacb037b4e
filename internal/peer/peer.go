package peer

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// ID is the opaque identity of a node in the overlay. It is assigned once at
// startup and travels with every record the node creates.
type ID string

// Generate returns a fresh identity for a node that was not configured with one.
func Generate() ID { return ID(uuid.NewString()) }

// Directory is the set of currently known peers. It is populated and
// depopulated by the transport's discovery; the engine only reads it.
type Directory struct {
	mu    sync.RWMutex
	peers map[ID]struct{}
}

func NewDirectory() *Directory { return &Directory{peers: make(map[ID]struct{})} }

func (d *Directory) Add(id ID) {
	if id == "" {
		return
	}
	d.mu.Lock()
	d.peers[id] = struct{}{}
	d.mu.Unlock()
}

func (d *Directory) Remove(id ID) {
	d.mu.Lock()
	delete(d.peers, id)
	d.mu.Unlock()
}

func (d *Directory) Contains(id ID) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.peers[id]
	return ok
}

// List returns the known peers in a stable order.
func (d *Directory) List() []ID {
	d.mu.RLock()
	ids := make([]ID, 0, len(d.peers))
	for id := range d.peers {
		ids = append(ids, id)
	}
	d.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.peers)
}
