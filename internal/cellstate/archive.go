package cellstate

import (
	"github.com/udisondev/gridmerge/internal/world"
)

// memento is the frozen state of one cell taken when it left view.
// Fields are unexported; only the Archive creates and reads them.
type memento struct {
	state Modification
}

func (m memento) restore() Modification {
	return m.state
}

// Archive keeps modifications of cells outside the visibility window
// (caretaker of per-cell mementos). Unbounded: nothing expires.
//
// Recall does not remove; the caller forgets explicitly after it has taken
// ownership of the state.
type Archive struct {
	snapshots map[world.CellID]memento
}

// NewArchive creates an empty archive.
func NewArchive() *Archive {
	return &Archive{
		snapshots: make(map[world.CellID]memento),
	}
}

// Archive stores a snapshot of mod for id, replacing any earlier one.
func (a *Archive) Archive(id world.CellID, mod Modification) {
	a.snapshots[id] = memento{state: mod}
}

// Recall returns a copy of the snapshot for id without removing it.
func (a *Archive) Recall(id world.CellID) (Modification, bool) {
	m, ok := a.snapshots[id]
	if !ok {
		return Modification{}, false
	}
	return m.restore(), true
}

// Has reports whether a snapshot exists for id.
func (a *Archive) Has(id world.CellID) bool {
	_, ok := a.snapshots[id]
	return ok
}

// Forget drops the snapshot for id.
func (a *Archive) Forget(id world.CellID) {
	delete(a.snapshots, id)
}

// Len returns the number of archived cells.
func (a *Archive) Len() int {
	return len(a.snapshots)
}

// ForEach iterates over archived cells in unspecified order.
// fn must not mutate the archive. If fn returns false, iteration stops.
func (a *Archive) ForEach(fn func(world.CellID, Modification) bool) {
	for id, m := range a.snapshots {
		if !fn(id, m.restore()) {
			return
		}
	}
}

// Reset discards every snapshot.
func (a *Archive) Reset() {
	clear(a.snapshots)
}
