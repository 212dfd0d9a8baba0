package game

import (
	"fmt"
	"slices"

	"github.com/udisondev/gridmerge/internal/cellstate"
	"github.com/udisondev/gridmerge/internal/token"
	"github.com/udisondev/gridmerge/internal/world"
)

// Snapshot is the full logical game state: cache and archive combined.
// Modifications are sorted by cell so equal states export identically.
type Snapshot struct {
	Position      world.LatLng
	Inventory     token.Value // 0 = empty
	Modifications []cellstate.Entry
}

// SnapshotSink receives a snapshot after every mutation (best effort).
type SnapshotSink interface {
	SaveSnapshot(Snapshot) error
}

// SnapshotSource loads a previously saved snapshot.
// ok is false when nothing has been saved yet.
type SnapshotSource interface {
	LoadSnapshot() (s Snapshot, ok bool, err error)
}

// Validate checks the snapshot is structurally sound for grid.
// Every failure wraps ErrCorruptSnapshot.
func (s Snapshot) Validate(grid world.Grid) error {
	if _, err := grid.ToCellID(s.Position); err != nil {
		return fmt.Errorf("%w: position: %w", ErrCorruptSnapshot, err)
	}
	if s.Inventory != 0 && !s.Inventory.IsValid() {
		return fmt.Errorf("%w: inventory value %d is not a power of two", ErrCorruptSnapshot, s.Inventory)
	}

	seen := make(map[world.CellID]struct{}, len(s.Modifications))
	for _, e := range s.Modifications {
		if _, dup := seen[e.Cell]; dup {
			return fmt.Errorf("%w: cell %s listed twice", ErrCorruptSnapshot, e.Cell)
		}
		seen[e.Cell] = struct{}{}
		if err := e.Mod.Validate(); err != nil {
			return fmt.Errorf("%w: cell %s: %w", ErrCorruptSnapshot, e.Cell, err)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	s.Modifications = slices.Clone(s.Modifications)
	return s
}
