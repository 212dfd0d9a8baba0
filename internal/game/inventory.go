package game

import (
	"fmt"

	"github.com/udisondev/gridmerge/internal/token"
)

// Inventory is the player's single slot: empty or holding one token.
type Inventory struct {
	held token.Value // 0 = empty
}

// EmptyHand is the empty inventory.
var EmptyHand = Inventory{}

// Holding returns an inventory holding v.
func Holding(v token.Value) Inventory {
	return Inventory{held: v}
}

// IsEmpty reports whether the slot is empty.
func (i Inventory) IsEmpty() bool {
	return i.held == 0
}

// Value returns the held value (0 when empty).
func (i Inventory) Value() token.Value {
	return i.held
}

func (i Inventory) String() string {
	if i.IsEmpty() {
		return "empty"
	}
	return fmt.Sprintf("holding %d", i.held)
}
