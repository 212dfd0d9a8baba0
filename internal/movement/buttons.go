package movement

import (
	"context"
	"log/slog"
	"sync"

	"github.com/udisondev/gridmerge/internal/world"
)

// Direction is one step on the grid.
type Direction uint8

const (
	North Direction = iota + 1
	South
	East
	West
)

func (d Direction) delta() (dLat, dLng float64) {
	switch d {
	case North:
		return 1, 0
	case South:
		return -1, 0
	case East:
		return 0, 1
	case West:
		return 0, -1
	default:
		return 0, 0
	}
}

// ButtonSource turns direction presses into one-cell steps from the
// player's current position. Presses made while earlier steps are still
// queued build on the last queued target.
type ButtonSource struct {
	step   float64
	locate func() world.LatLng

	mu      sync.Mutex
	ctx     context.Context
	out     chan<- world.LatLng
	last    world.LatLng // most recent queued target
	hasLast bool
}

// NewButtonSource creates a source stepping step degrees per press.
// locate returns the current player position.
func NewButtonSource(step float64, locate func() world.LatLng) *ButtonSource {
	return &ButtonSource{step: step, locate: locate}
}

// Kind implements Source.
func (b *ButtonSource) Kind() Kind {
	return KindButtons
}

// Start implements Source.
func (b *ButtonSource) Start(ctx context.Context, out chan<- world.LatLng) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ctx = ctx
	b.out = out
	b.hasLast = false
	return nil
}

// Stop implements Source.
func (b *ButtonSource) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.out = nil
	b.hasLast = false
}

// Press emits the position one cell away in direction d. Returns false if
// the source is stopped or the move queue is full.
func (b *ButtonSource) Press(d Direction) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.out == nil {
		return false
	}
	dLat, dLng := d.delta()
	if dLat == 0 && dLng == 0 {
		return false
	}

	p := b.locate()
	if b.hasLast && len(b.out) > 0 {
		p = b.last
	}
	next := world.LatLng{Lat: p.Lat + dLat*b.step, Lng: p.Lng + dLng*b.step}

	select {
	case b.out <- next:
		b.last, b.hasLast = next, true
		return true
	case <-b.ctx.Done():
		return false
	default:
		slog.Warn("move dropped, queue full", "direction", d)
		return false
	}
}
