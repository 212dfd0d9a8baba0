package cellstate

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/udisondev/gridmerge/internal/token"
	"github.com/udisondev/gridmerge/internal/world"
)

// Cell is the answer to "what is at this cell".
type Cell struct {
	Token    token.BaseToken
	Modified bool // Token comes from a modification, not the generator
}

// Stats reports how modifications are split between cache and archive.
type Stats struct {
	Cached   int
	Archived int
}

// Store is the override layer over the generator. Its modifications live
// either in the visibility cache (cells inside the window) or in the
// archive (everything else), never in both.
//
// Not safe for concurrent use; the owner serialises access.
type Store struct {
	gen     *token.Generator
	cache   *VisibilityCache
	archive *Archive
}

// NewStore creates a store with no modifications and an empty window.
func NewStore(gen *token.Generator) *Store {
	return &Store{
		gen:     gen,
		cache:   NewVisibilityCache(),
		archive: NewArchive(),
	}
}

// Generator returns the underlying token generator.
func (s *Store) Generator() *token.Generator {
	return s.gen
}

// Window returns the current visibility window.
func (s *Store) Window() world.Window {
	return s.cache.Window()
}

// Lookup returns the modification for id from whichever side holds it.
func (s *Store) Lookup(id world.CellID) (Modification, bool) {
	if m, ok := s.cache.Get(id); ok {
		return m, true
	}
	return s.archive.Recall(id)
}

// Get returns the cell's token; a modification always wins over generation.
func (s *Store) Get(id world.CellID) Cell {
	if m, ok := s.Lookup(id); ok {
		return Cell{Token: m.Token(), Modified: true}
	}
	return Cell{Token: s.gen.Base(id)}
}

// SetEmptied records that the cell's token was taken.
func (s *Store) SetEmptied(id world.CellID) {
	s.set(id, Emptied())
}

// SetPlaced records that the player put a token of value v on the cell.
func (s *Store) SetPlaced(id world.CellID, v token.Value) {
	s.set(id, Placed(v))
}

func (s *Store) set(id world.CellID, m Modification) {
	if s.cache.IsVisible(id) {
		s.cache.put(id, m)
		return
	}
	s.archive.Archive(id, m)
}

// Clear drops the modification for id so it falls back to generation.
func (s *Store) Clear(id world.CellID) {
	s.cache.remove(id)
	s.archive.Forget(id)
}

// ClearAll drops every modification (game reset). The window is kept.
func (s *Store) ClearAll() {
	s.cache.reset()
	s.archive.Reset()
}

// Load replaces all modifications with entries, placing each on the side
// matching the current window.
func (s *Store) Load(entries []Entry) {
	s.ClearAll()
	for _, e := range entries {
		s.set(e.Cell, e.Mod)
	}
}

// Migrate moves the cache to window w: cached cells leaving view are
// archived before removal, archived cells entering view are recalled into
// the cache and then forgotten. The partition is verified afterwards.
func (s *Store) Migrate(w world.Window) error {
	old := s.cache.Window()

	var evicted, restored int
	s.cache.ForEach(func(id world.CellID, m Modification) bool {
		if !w.Contains(id) {
			s.archive.Archive(id, m)
			s.cache.remove(id)
			evicted++
		}
		return true
	})

	s.cache.setWindow(w)

	// Scan whichever side is smaller: the archive or the window.
	var entering []world.CellID
	if int64(s.archive.Len()) <= w.Area() {
		s.archive.ForEach(func(id world.CellID, _ Modification) bool {
			if w.Contains(id) {
				entering = append(entering, id)
			}
			return true
		})
	} else {
		w.ForEach(func(id world.CellID) bool {
			if !old.Contains(id) && s.archive.Has(id) {
				entering = append(entering, id)
			}
			return true
		})
	}
	for _, id := range entering {
		m, ok := s.archive.Recall(id)
		if !ok {
			continue
		}
		s.cache.put(id, m)
		s.archive.Forget(id)
		restored++
	}

	if evicted > 0 || restored > 0 {
		slog.Debug("visibility window migrated",
			"evicted", evicted,
			"restored", restored,
			"cached", s.cache.Len(),
			"archived", s.archive.Len())
	}

	return s.CheckPartition()
}

// CheckPartition verifies every modification lives on exactly one side and
// on the side matching the window.
func (s *Store) CheckPartition() error {
	var err error
	w := s.cache.Window()
	s.cache.ForEach(func(id world.CellID, _ Modification) bool {
		if s.archive.Has(id) {
			err = fmt.Errorf("%w: cell %s is both cached and archived", ErrInvariantViolation, id)
			return false
		}
		if !w.Contains(id) {
			err = fmt.Errorf("%w: cached cell %s is outside the window", ErrInvariantViolation, id)
			return false
		}
		return true
	})
	if err != nil {
		return err
	}
	s.archive.ForEach(func(id world.CellID, _ Modification) bool {
		if w.Contains(id) {
			err = fmt.Errorf("%w: archived cell %s is inside the window", ErrInvariantViolation, id)
			return false
		}
		return true
	})
	return err
}

// All returns every modification (cache and archive combined) sorted by cell.
func (s *Store) All() []Entry {
	entries := make([]Entry, 0, s.cache.Len()+s.archive.Len())
	collect := func(id world.CellID, m Modification) bool {
		entries = append(entries, Entry{Cell: id, Mod: m})
		return true
	}
	s.cache.ForEach(collect)
	s.archive.ForEach(collect)
	slices.SortFunc(entries, func(a, b Entry) int {
		return a.Cell.Compare(b.Cell)
	})
	return entries
}

// Stats returns the current cache/archive split.
func (s *Store) Stats() Stats {
	return Stats{Cached: s.cache.Len(), Archived: s.archive.Len()}
}
