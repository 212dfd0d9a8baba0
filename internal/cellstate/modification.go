package cellstate

import (
	"errors"
	"fmt"

	"github.com/udisondev/gridmerge/internal/token"
	"github.com/udisondev/gridmerge/internal/world"
)

// ErrInvariantViolation signals an internal-consistency fault in the
// cache/archive partition. It is never expected under correct operation.
var ErrInvariantViolation = errors.New("cell state invariant violation")

// Kind is the type of a player-induced override.
type Kind uint8

const (
	// KindEmptied: the cell's token was taken by pickup or merge.
	KindEmptied Kind = iota + 1
	// KindPlaced: the player deposited a token here.
	KindPlaced
)

func (k Kind) String() string {
	switch k {
	case KindEmptied:
		return "emptied"
	case KindPlaced:
		return "placed"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Modification is the ground-truth override for one cell.
// Value type: copies never alias archived state.
type Modification struct {
	Kind  Kind
	Value token.Value // zero unless Kind == KindPlaced
}

// Emptied returns the override for a cell whose token was removed.
func Emptied() Modification {
	return Modification{Kind: KindEmptied}
}

// Placed returns the override for a cell holding a player-placed token.
func Placed(v token.Value) Modification {
	return Modification{Kind: KindPlaced, Value: v}
}

// Token returns the token the cell shows under this override.
func (m Modification) Token() token.BaseToken {
	if m.Kind == KindPlaced {
		return token.Of(m.Value)
	}
	return token.None
}

// Validate checks the modification is structurally sound.
func (m Modification) Validate() error {
	switch m.Kind {
	case KindEmptied:
		if m.Value != 0 {
			return fmt.Errorf("emptied cell carries value %d", m.Value)
		}
	case KindPlaced:
		if !m.Value.IsValid() {
			return fmt.Errorf("placed value %d is not a power of two", m.Value)
		}
	default:
		return fmt.Errorf("unknown modification %s", m.Kind)
	}
	return nil
}

func (m Modification) String() string {
	if m.Kind == KindPlaced {
		return fmt.Sprintf("placed(%d)", m.Value)
	}
	return m.Kind.String()
}

// Entry pairs a cell with its modification.
type Entry struct {
	Cell world.CellID
	Mod  Modification
}
