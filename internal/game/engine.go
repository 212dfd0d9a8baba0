package game

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/udisondev/gridmerge/internal/cellstate"
	"github.com/udisondev/gridmerge/internal/token"
	"github.com/udisondev/gridmerge/internal/world"
)

// Config holds everything an Engine needs.
type Config struct {
	Grid              world.Grid
	Generator         *token.Generator
	Start             world.LatLng // default position, restored by Reset
	InteractionRadius int64        // Chebyshev cell distance
	VictoryThreshold  token.Value
	Sink              SnapshotSink // optional
}

// Engine owns the whole game state. Every operation runs to completion under
// one mutex, so callers (renderer, input, movement sources) are sequential
// collaborators even when they live on different goroutines.
type Engine struct {
	mu sync.Mutex

	grid      world.Grid
	store     *cellstate.Store
	start     world.LatLng
	radius    int64
	threshold token.Value
	sink      SnapshotSink

	position  world.LatLng
	inventory Inventory
}

// NewEngine creates a fresh game at cfg.Start.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Generator == nil {
		return nil, errors.New("engine: generator is required")
	}
	if _, err := cfg.Grid.ToCellID(cfg.Start); err != nil {
		return nil, fmt.Errorf("engine: start position: %w", err)
	}
	if cfg.InteractionRadius < 0 {
		return nil, fmt.Errorf("engine: negative interaction radius %d", cfg.InteractionRadius)
	}
	if cfg.VictoryThreshold == 0 {
		return nil, errors.New("engine: victory threshold must be positive")
	}

	return &Engine{
		grid:      cfg.Grid,
		store:     cellstate.NewStore(cfg.Generator),
		start:     cfg.Start,
		radius:    cfg.InteractionRadius,
		threshold: cfg.VictoryThreshold,
		sink:      cfg.Sink,
		position:  cfg.Start,
	}, nil
}

// Grid returns the engine's coordinate system.
func (e *Engine) Grid() world.Grid {
	return e.grid
}

// InteractionRadius returns the proximity limit in cells.
func (e *Engine) InteractionRadius() int64 {
	return e.radius
}

// Position returns the player's continuous position.
func (e *Engine) Position() world.LatLng {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.position
}

// PlayerCell returns the cell under the player.
func (e *Engine) PlayerCell() world.CellID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playerCellLocked()
}

func (e *Engine) playerCellLocked() world.CellID {
	// position is validated on every write
	id, _ := e.grid.ToCellID(e.position)
	return id
}

// Inventory returns the held slot.
func (e *Engine) Inventory() Inventory {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inventory
}

// InRange reports whether id passes the proximity check from the player's cell.
func (e *Engine) InRange(id world.CellID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inRangeLocked(id)
}

func (e *Engine) inRangeLocked(id world.CellID) bool {
	return world.ChebyshevDistance(e.playerCellLocked(), id) <= e.radius
}

// Stats returns the cache/archive split of modifications.
func (e *Engine) Stats() cellstate.Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Stats()
}

// CheckPartition verifies that every modification is held exactly once, in
// the cache when visible and in the archive otherwise.
func (e *Engine) CheckPartition() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.CheckPartition()
}

// Window returns the current visibility window.
func (e *Engine) Window() world.Window {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Window()
}

// QueryCell returns what the renderer should draw at id.
func (e *Engine) QueryCell(id world.CellID) TokenView {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := e.store.Get(id).Token
	return TokenView{Present: t.Present, Value: t.Value}
}

// ActivateCell applies the pickup/merge/place state machine to id.
func (e *Engine) ActivateCell(id world.CellID) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	res := e.activateLocked(id)
	res.Cell = id
	res.Inventory = e.inventory

	slog.Debug("cell activated",
		"cell", id,
		"result", res.Kind,
		"inventory", e.inventory)

	if res.Kind.Changed() {
		e.persistLocked()
	}
	return res
}

func (e *Engine) activateLocked(id world.CellID) Result {
	if !e.inRangeLocked(id) {
		return Result{Kind: KindTooFar, Message: "Too far away"}
	}

	cell := e.store.Get(id).Token
	held := e.inventory

	switch {
	case held.IsEmpty() && cell.Present:
		e.inventory = Holding(cell.Value)
		e.store.SetEmptied(id)
		return e.withVictory(Result{
			Kind:    KindPicked,
			Message: fmt.Sprintf("Picked up %d", cell.Value),
		})

	case held.IsEmpty():
		return Result{Kind: KindEmpty, Message: "Nothing here"}

	case !cell.Present:
		e.store.SetPlaced(id, held.Value())
		e.inventory = EmptyHand
		return Result{
			Kind:    KindPlaced,
			Message: fmt.Sprintf("Placed %d", held.Value()),
		}

	case cell.Value == held.Value():
		merged, ok := held.Value().Double()
		if !ok {
			return Result{Kind: KindMismatch, Message: fmt.Sprintf("Cannot merge %d any further", held.Value())}
		}
		e.inventory = Holding(merged)
		e.store.SetEmptied(id)
		return e.withVictory(Result{
			Kind:    KindMerged,
			Message: fmt.Sprintf("Merged into %d", merged),
		})

	default:
		return Result{
			Kind:    KindMismatch,
			Message: fmt.Sprintf("Cannot merge %d with %d", held.Value(), cell.Value),
		}
	}
}

func (e *Engine) withVictory(res Result) Result {
	if e.inventory.Value() >= e.threshold {
		res.Victory = true
		res.Message += fmt.Sprintf(". You win: reached %d!", e.inventory.Value())
		slog.Info("victory", "held", e.inventory.Value(), "threshold", e.threshold)
	}
	return res
}

// ViewportChanged migrates modifications between the visibility cache and
// the archive. An error means the partition is broken (ErrInvariantViolation).
func (e *Engine) ViewportChanged(w world.Window) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Migrate(w)
}

// PlayerMoved updates the player's position.
func (e *Engine) PlayerMoved(p world.LatLng) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.grid.ToCellID(p); err != nil {
		return fmt.Errorf("%w: player position: %w", ErrInvariantViolation, err)
	}
	e.position = p
	e.persistLocked()
	return nil
}

// Reset clears every modification and the inventory, and returns the player
// to the start position. Modifications are discarded, not archived.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.store.ClearAll()
	e.inventory = EmptyHand
	e.position = e.start
	slog.Info("game reset", "position", e.start)
	e.persistLocked()
}

// ExportSnapshot returns the entire logical state.
func (e *Engine) ExportSnapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() Snapshot {
	return Snapshot{
		Position:      e.position,
		Inventory:     e.inventory.Value(),
		Modifications: e.store.All(),
	}
}

// ImportSnapshot replaces the state with s. Invalid data is rejected with
// ErrCorruptSnapshot and leaves the current state untouched.
func (e *Engine) ImportSnapshot(s Snapshot) error {
	if err := s.Validate(e.grid); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	mods := slices.Clone(s.Modifications)
	slices.SortFunc(mods, func(a, b cellstate.Entry) int {
		return a.Cell.Compare(b.Cell)
	})

	e.store.Load(mods)
	e.position = s.Position
	e.inventory = Holding(s.Inventory)

	slog.Info("snapshot imported",
		"position", s.Position,
		"inventory", e.inventory,
		"modifications", len(mods))

	return e.store.CheckPartition()
}

// persistLocked hands the current state to the sink. Failures are logged;
// the game continues in memory.
func (e *Engine) persistLocked() {
	if e.sink == nil {
		return
	}
	if err := e.sink.SaveSnapshot(e.snapshotLocked()); err != nil {
		slog.Warn("snapshot save failed", "err", err)
	}
}
