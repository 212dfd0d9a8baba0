package testutil

import (
	"testing"

	"github.com/udisondev/gridmerge/internal/game"
	"github.com/udisondev/gridmerge/internal/token"
	"github.com/udisondev/gridmerge/internal/world"
)

// AssertTokenView fails the test unless id renders as want.
func AssertTokenView(t testing.TB, e *game.Engine, id world.CellID, want game.TokenView) {
	t.Helper()

	got := e.QueryCell(id)
	if got != want {
		t.Fatalf("cell %s: expected %s, got %s", id, want, got)
	}
}

// AssertEmptied fails the test unless id renders with no token.
func AssertEmptied(t testing.TB, e *game.Engine, id world.CellID) {
	t.Helper()
	AssertTokenView(t, e, id, game.TokenView{})
}

// AssertHolding fails the test unless the inventory holds v (0 = empty).
func AssertHolding(t testing.TB, e *game.Engine, v token.Value) {
	t.Helper()

	got := e.Inventory()
	if got.Value() != v {
		t.Fatalf("inventory mismatch: expected %d, got %s", v, got)
	}
}

// AssertPartition fails the test unless every modification is cached when
// it lies inside the window and archived otherwise.
func AssertPartition(t testing.TB, e *game.Engine) {
	t.Helper()

	if err := e.CheckPartition(); err != nil {
		t.Fatalf("partition broken: %v", err)
	}

	window := e.Window()
	visible := 0
	for _, m := range e.ExportSnapshot().Modifications {
		if window.Contains(m.Cell) {
			visible++
		}
	}
	if st := e.Stats(); st.Cached != visible {
		t.Fatalf("partition mismatch: cached %d, visible modifications %d", st.Cached, visible)
	}
}
