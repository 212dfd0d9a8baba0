package cellstate

import (
	"github.com/udisondev/gridmerge/internal/world"
)

// VisibilityCache holds the live modifications of cells inside the current
// visibility window. Reused across renders; only Store migrates entries in
// and out of it.
type VisibilityCache struct {
	window world.Window
	mods   map[world.CellID]Modification
}

// NewVisibilityCache creates a cache with an empty window.
func NewVisibilityCache() *VisibilityCache {
	return &VisibilityCache{
		window: world.EmptyWindow(),
		mods:   make(map[world.CellID]Modification, 64),
	}
}

// Window returns the window the cache currently covers.
func (c *VisibilityCache) Window() world.Window {
	return c.window
}

// IsVisible reports whether id lies inside the cached window.
func (c *VisibilityCache) IsVisible(id world.CellID) bool {
	return c.window.Contains(id)
}

// Get returns the live modification for id.
func (c *VisibilityCache) Get(id world.CellID) (Modification, bool) {
	m, ok := c.mods[id]
	return m, ok
}

// Len returns the number of live modifications.
func (c *VisibilityCache) Len() int {
	return len(c.mods)
}

// ForEach iterates over live modifications in unspecified order.
// If fn returns false, iteration stops.
func (c *VisibilityCache) ForEach(fn func(world.CellID, Modification) bool) {
	for id, m := range c.mods {
		if !fn(id, m) {
			return
		}
	}
}

func (c *VisibilityCache) put(id world.CellID, m Modification) {
	c.mods[id] = m
}

func (c *VisibilityCache) remove(id world.CellID) {
	delete(c.mods, id)
}

func (c *VisibilityCache) setWindow(w world.Window) {
	c.window = w
}

func (c *VisibilityCache) reset() {
	clear(c.mods)
}
