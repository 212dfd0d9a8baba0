// Package movement provides the interchangeable sources of player movement.
// Sources only produce positions; the game loop applies them to the engine.
package movement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/udisondev/gridmerge/internal/world"
)

// Kind names a movement source.
type Kind string

const (
	KindButtons     Kind = "buttons"
	KindGeolocation Kind = "geolocation"
)

// ErrUnknownSource is returned by Controller.Use for unregistered kinds.
var ErrUnknownSource = errors.New("unknown movement source")

// Source is the capability shared by all movement sources.
type Source interface {
	Kind() Kind
	// Start begins emitting positions to out until Stop or ctx is done.
	Start(ctx context.Context, out chan<- world.LatLng) error
	Stop()
}

// Controller holds exactly one active source and swaps between them.
type Controller struct {
	mu      sync.Mutex
	sources map[Kind]Source
	active  Source
	out     chan<- world.LatLng
}

// NewController registers sources; moves from the active one go to out.
func NewController(out chan<- world.LatLng, sources ...Source) *Controller {
	c := &Controller{
		sources: make(map[Kind]Source, len(sources)),
		out:     out,
	}
	for _, s := range sources {
		c.sources[s.Kind()] = s
	}
	return c
}

// Use stops the active source (if any) and starts the one named kind.
func (c *Controller) Use(ctx context.Context, kind Kind) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, ok := c.sources[kind]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSource, kind)
	}
	if c.active == next {
		return nil
	}
	prev := c.active
	if prev != nil {
		prev.Stop()
		slog.Info("movement source stopped", "source", prev.Kind())
		c.active = nil
	}
	if err := next.Start(ctx, c.out); err != nil {
		// Restore the previous source on failure.
		if prev != nil {
			if rerr := prev.Start(ctx, c.out); rerr == nil {
				c.active = prev
			}
		}
		return fmt.Errorf("starting %s source: %w", kind, err)
	}
	c.active = next
	slog.Info("movement source started", "source", kind)
	return nil
}

// Toggle switches between buttons and geolocation.
func (c *Controller) Toggle(ctx context.Context) error {
	next := KindGeolocation
	if c.Active() == KindGeolocation {
		next = KindButtons
	}
	return c.Use(ctx, next)
}

// Active returns the kind of the active source, or "" if none.
func (c *Controller) Active() Kind {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return ""
	}
	return c.active.Kind()
}

// Stop stops the active source.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		c.active.Stop()
		c.active = nil
	}
}
