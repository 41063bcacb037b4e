// Package wire defines the two message kinds exchanged over the gossip
// channel and the codec that moves them through the transport's opaque byte
// payload.
package wire

import (
	"github.com/potlucklabs/potluck/internal/peer"
	"github.com/potlucklabs/potluck/internal/recipe"
)

// Scope selects between the two addressing modes of a Target.
type Scope uint8

const (
	// ScopeAll addresses every subscriber of the topic.
	ScopeAll Scope = iota
	// ScopePeer addresses a single named peer. The channel still delivers to
	// everyone; relevance filtering is local to each receiver.
	ScopePeer
)

// Target says who a message is meant for. It is a tagged choice so the two
// cases are handled exhaustively rather than through a nullable peer field.
type Target struct {
	Scope Scope   `json:"scope"`
	Peer  peer.ID `json:"peer,omitempty"`
}

func TargetAll() Target { return Target{Scope: ScopeAll} }

func TargetPeer(id peer.ID) Target { return Target{Scope: ScopePeer, Peer: id} }

// Selects reports whether the target addresses the given node.
func (t Target) Selects(id peer.ID) bool {
	return t.Scope == ScopeAll || t.Peer == id
}

// Announce carries zero or more recipes, either as an unsolicited broadcast
// or as the response to a Query addressed back to the requester.
type Announce struct {
	Target  Target          `json:"target"`
	Recipes []recipe.Recipe `json:"recipes"`
}

// Query requests the shared recipes of one peer or of all peers.
type Query struct {
	Target Target `json:"target"`
}

// Message is the tagged union of the two wire message kinds. Exactly one of
// the fields is set on a well-formed message.
type Message struct {
	Announce *Announce `json:"announce,omitempty"`
	Query    *Query    `json:"query,omitempty"`
}

func NewAnnounce(target Target, recipes []recipe.Recipe) Message {
	return Message{Announce: &Announce{Target: target, Recipes: recipes}}
}

func NewQuery(target Target) Message {
	return Message{Query: &Query{Target: target}}
}

type Variant uint8

const (
	VariantInvalid Variant = iota
	VariantAnnounce
	VariantQuery
)

func (m Message) Variant() Variant {
	if m.Announce != nil && m.Query == nil {
		return VariantAnnounce
	}
	if m.Query != nil && m.Announce == nil {
		return VariantQuery
	}
	return VariantInvalid
}
