package recipe

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/potlucklabs/potluck/internal/peer"
)

const (
	// MaxNameLength bounds the name field of a recipe.
	MaxNameLength = 128
	// MaxBodyLength bounds the ingredients and instructions fields.
	MaxBodyLength = 4096
)

var (
	// ErrValidation is returned when a recipe field is empty or oversized.
	ErrValidation = errors.New("invalid recipe")
	// ErrNotFound is returned when an operation references a recipe the host
	// does not own.
	ErrNotFound = errors.New("recipe not found")
	// ErrPersistence is returned when the store could not be written to disk.
	// The in-memory store remains authoritative; the caller decides whether
	// to keep running in a degraded state.
	ErrPersistence = errors.New("failed to persist store")
)

// Recipe is one shared unit of data. IDs are allocated per publisher, so two
// nodes may both hold an id 1; the pair (publisher, id) is what identifies a
// recipe across the overlay.
type Recipe struct {
	ID           uint64  `json:"id"`
	Name         string  `json:"name"`
	Ingredients  string  `json:"ingredients"`
	Instructions string  `json:"instructions"`
	Publisher    peer.ID `json:"publisher"`
	// Shared marks an owned recipe as eligible for broadcast. Only shared
	// recipes are announced or served in response to queries.
	Shared bool `json:"shared"`
}

// Key identifies a recipe across the overlay.
type Key struct {
	Publisher peer.ID
	ID        uint64
}

func (r Recipe) Key() Key { return Key{Publisher: r.Publisher, ID: r.ID} }

func validateFields(name, ingredients, instructions string) error {
	if strings.TrimSpace(name) == "" {
		return errors.Wrap(ErrValidation, "name must not be blank")
	}
	if len(name) > MaxNameLength {
		return errors.Wrapf(ErrValidation, "name exceeds %d bytes", MaxNameLength)
	}
	if len(ingredients) > MaxBodyLength {
		return errors.Wrapf(ErrValidation, "ingredients exceed %d bytes", MaxBodyLength)
	}
	if len(instructions) > MaxBodyLength {
		return errors.Wrapf(ErrValidation, "instructions exceed %d bytes", MaxBodyLength)
	}
	return nil
}
