package savefile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/gridmerge/internal/cellstate"
	"github.com/udisondev/gridmerge/internal/game"
	"github.com/udisondev/gridmerge/internal/testutil"
	"github.com/udisondev/gridmerge/internal/world"
)

func TestStore_MissingFile(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "save.yaml"))

	_, ok, err := s.LoadSnapshot()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_RoundTrip(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "save.yaml"))
	want := game.Snapshot{
		Position:  world.LatLng{Lat: 36.98949379578401, Lng: -122.06277128548504},
		Inventory: 32,
		Modifications: []cellstate.Entry{
			{Cell: world.CellID{Lat: -1, Lng: 5}, Mod: cellstate.Emptied()},
			{Cell: world.CellID{Lat: 2, Lng: -5}, Mod: cellstate.Placed(4)},
		},
	}

	require.NoError(t, s.SaveSnapshot(want))

	got, ok, err := s.LoadSnapshot()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)

	// saving again produces identical bytes
	first, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	require.NoError(t, s.SaveSnapshot(got))
	second, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestStore_EngineRoundTrip(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "save.yaml"))
	e := testutil.NewEngine(t, testutil.EngineOptions{Sink: s})
	require.NoError(t, e.ImportSnapshot(game.Snapshot{
		Position:  e.Position(),
		Inventory: 2,
		Modifications: []cellstate.Entry{
			{Cell: world.CellID{Lat: 1, Lng: 0}, Mod: cellstate.Placed(2)},
		},
	}))
	e.ActivateCell(world.CellID{Lat: 1, Lng: 0}) // merge, persists

	loaded, ok, err := s.LoadSnapshot()
	require.NoError(t, err)
	require.True(t, ok)

	restored := testutil.NewEngine(t, testutil.EngineOptions{})
	require.NoError(t, restored.ImportSnapshot(loaded))
	assert.Equal(t, e.ExportSnapshot(), restored.ExportSnapshot())
	testutil.AssertHolding(t, restored, 4)
	testutil.AssertEmptied(t, restored, world.CellID{Lat: 1, Lng: 0})
}

func TestStore_Corrupt(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not yaml", "position: [broken"},
		{"wrong version", "version: 7\nposition: {lat: 0, lng: 0}\n"},
		{"unknown kind", "version: 1\nmodifications:\n  - {lat: 0, lng: 0, kind: exploded}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "save.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			_, _, err := New(path).LoadSnapshot()
			assert.ErrorIs(t, err, game.ErrCorruptSnapshot)
		})
	}
}

func TestStore_SaveIntoMissingDirectoryFails(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "nope", "save.yaml"))
	assert.Error(t, s.SaveSnapshot(game.Snapshot{}))
}

func TestStore_Remove(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "save.yaml"))
	require.NoError(t, s.SaveSnapshot(game.Snapshot{}))

	require.NoError(t, s.Remove())
	require.NoError(t, s.Remove(), "removing twice is fine")

	_, ok, err := s.LoadSnapshot()
	require.NoError(t, err)
	assert.False(t, ok)
}
