package recipe

import (
	"encoding/json"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Store is a node's local collection of recipes: the ones it created plus the
// ones it received from peers. It is deliberately unsynchronized; the sync
// engine is its only mutator (reads from other goroutines must go through the
// engine as well).
type Store struct {
	Config
	recipes []Recipe
	index   map[Key]struct{}
	nextID  uint64
}

// Open loads the store document at cfg.Path. A missing document yields an
// empty store; an unreadable or corrupt one is an error.
func Open(cfg Config) (*Store, error) {
	cfg = cfg.Merge(DefaultConfig())
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Store{Config: cfg, index: make(map[Key]struct{})}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	f, err := s.FS.Open(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return errors.Wrapf(err, "failed to open store at %s", s.Path)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return errors.Wrapf(err, "failed to read store at %s", s.Path)
	}
	if err := json.Unmarshal(b, &s.recipes); err != nil {
		return errors.Wrapf(err, "store at %s is corrupt", s.Path)
	}
	for _, r := range s.recipes {
		s.index[r.Key()] = struct{}{}
		if r.Publisher == s.Host && r.ID > s.nextID {
			s.nextID = r.ID
		}
	}
	return nil
}

// Create validates the given fields, allocates the next owned id, appends the
// recipe and persists the store. On a persistence failure the recipe is kept
// in memory and the error is returned alongside it.
func (s *Store) Create(name, ingredients, instructions string) (Recipe, error) {
	if err := validateFields(name, ingredients, instructions); err != nil {
		return Recipe{}, err
	}
	s.nextID++
	r := Recipe{
		ID:           s.nextID,
		Name:         name,
		Ingredients:  ingredients,
		Instructions: instructions,
		Publisher:    s.Host,
	}
	s.recipes = append(s.recipes, r)
	s.index[r.Key()] = struct{}{}
	return r, s.persist()
}

// Local returns the recipes owned by the host.
func (s *Store) Local() []Recipe {
	var out []Recipe
	for _, r := range s.recipes {
		if r.Publisher == s.Host {
			out = append(out, r)
		}
	}
	return out
}

// Shared returns the owned recipes marked as shared. This is the set served
// to peer queries; received recipes are never re-served, which keeps a query
// from amplifying across the overlay.
func (s *Store) Shared() []Recipe {
	var out []Recipe
	for _, r := range s.recipes {
		if r.Publisher == s.Host && r.Shared {
			out = append(out, r)
		}
	}
	return out
}

// All returns every recipe held, local or received.
func (s *Store) All() []Recipe {
	out := make([]Recipe, len(s.recipes))
	copy(out, s.recipes)
	return out
}

// Get returns the owned recipe with the given id.
func (s *Store) Get(id uint64) (Recipe, bool) {
	for _, r := range s.recipes {
		if r.Publisher == s.Host && r.ID == id {
			return r, true
		}
	}
	return Recipe{}, false
}

// MarkShared flags the owned recipe with the given id as shared and persists
// the store. Returns ErrNotFound if the id does not name an owned recipe.
func (s *Store) MarkShared(id uint64) (Recipe, error) {
	for i, r := range s.recipes {
		if r.Publisher == s.Host && r.ID == id {
			s.recipes[i].Shared = true
			return s.recipes[i], s.persist()
		}
	}
	return Recipe{}, errors.Wrapf(ErrNotFound, "no owned recipe with id %d", id)
}

// ShareAll marks every owned recipe as shared, persisting once. Returns the
// resulting shared set.
func (s *Store) ShareAll() ([]Recipe, error) {
	changed := false
	for i, r := range s.recipes {
		if r.Publisher == s.Host && !r.Shared {
			s.recipes[i].Shared = true
			changed = true
		}
	}
	shared := s.Shared()
	if !changed {
		return shared, nil
	}
	return shared, s.persist()
}

// Merge appends each incoming recipe whose (publisher, id) key is not already
// held, returning the count actually added. Merging the same batch twice adds
// nothing the second time. The store is persisted only when something was
// added.
//
// Incoming recipes claiming the host's own identity are skipped: owned ids
// are allocated only by Create, and accepting them would let an echoed or
// spoofed record collide with a later allocation.
func (s *Store) Merge(in []Recipe) (int, error) {
	added := 0
	for _, r := range in {
		if r.Publisher == s.Host {
			s.Logger.Warn("skipping incoming recipe claiming local identity",
				zap.Uint64("id", r.ID), zap.String("name", r.Name))
			continue
		}
		if _, ok := s.index[r.Key()]; ok {
			continue
		}
		s.recipes = append(s.recipes, r)
		s.index[r.Key()] = struct{}{}
		added++
	}
	if added == 0 {
		return 0, nil
	}
	return added, s.persist()
}

// Len reports the number of recipes held.
func (s *Store) Len() int { return len(s.recipes) }

// persist writes the full store document with atomic-replace semantics: the
// document on disk is always either the previous complete content or the new
// complete content, never a partial write.
func (s *Store) persist() error {
	b, err := json.Marshal(s.recipes)
	if err != nil {
		return errors.Wrap(ErrPersistence, err.Error())
	}
	tmp := s.Path + ".tmp"
	f, err := s.FS.Create(tmp)
	if err != nil {
		return errors.Wrapf(ErrPersistence, "failed to create %s: %v", tmp, err)
	}
	if _, err := f.Write(b); err != nil {
		f.Close()
		return errors.Wrapf(ErrPersistence, "failed to write %s: %v", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return errors.Wrapf(ErrPersistence, "failed to sync %s: %v", tmp, err)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(ErrPersistence, "failed to close %s: %v", tmp, err)
	}
	if err := s.FS.Rename(tmp, s.Path); err != nil {
		return errors.Wrapf(ErrPersistence, "failed to replace %s: %v", s.Path, err)
	}
	s.Logger.Debug("persisted store", zap.String("path", s.Path), zap.Int("recipes", len(s.recipes)))
	return nil
}
