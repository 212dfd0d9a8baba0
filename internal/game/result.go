package game

import (
	"fmt"

	"github.com/udisondev/gridmerge/internal/token"
	"github.com/udisondev/gridmerge/internal/world"
)

// ResultKind classifies the outcome of activating a cell.
type ResultKind uint8

const (
	KindPicked ResultKind = iota + 1
	KindMerged
	KindPlaced
	KindTooFar
	KindEmpty
	KindMismatch
)

func (k ResultKind) String() string {
	switch k {
	case KindPicked:
		return "picked"
	case KindMerged:
		return "merged"
	case KindPlaced:
		return "placed"
	case KindTooFar:
		return "too_far"
	case KindEmpty:
		return "empty"
	case KindMismatch:
		return "mismatch"
	default:
		return fmt.Sprintf("result(%d)", uint8(k))
	}
}

// Changed reports whether the outcome mutated game state.
func (k ResultKind) Changed() bool {
	return k == KindPicked || k == KindMerged || k == KindPlaced
}

// Result is the outcome of one cell activation.
type Result struct {
	Kind      ResultKind
	Cell      world.CellID
	Message   string
	Inventory Inventory
	Victory   bool
}

// Err returns ErrOutOfRange for too-far activations, nil otherwise.
func (r Result) Err() error {
	if r.Kind == KindTooFar {
		return fmt.Errorf("cell %s: %w", r.Cell, ErrOutOfRange)
	}
	return nil
}

// TokenView is what the renderer draws for a cell.
type TokenView struct {
	Present bool
	Value   token.Value
}

func (v TokenView) String() string {
	if !v.Present {
		return "·"
	}
	return v.Value.String()
}
