package game_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/gridmerge/internal/cellstate"
	"github.com/udisondev/gridmerge/internal/game"
	"github.com/udisondev/gridmerge/internal/testutil"
	"github.com/udisondev/gridmerge/internal/token"
	"github.com/udisondev/gridmerge/internal/world"
)

// findBaseCell returns a cell near the origin whose generated content matches want.
func findBaseCell(t *testing.T, e *game.Engine, want func(game.TokenView) bool) world.CellID {
	t.Helper()
	var found world.CellID
	ok := false
	world.WindowAround(world.CellID{}, 30, 30).ForEach(func(id world.CellID) bool {
		if want(e.QueryCell(id)) {
			found, ok = id, true
			return false
		}
		return true
	})
	require.True(t, ok, "no matching cell near origin")
	return found
}

// moveTo puts the player on the center of id.
func moveTo(t *testing.T, e *game.Engine, id world.CellID) {
	t.Helper()
	require.NoError(t, e.PlayerMoved(e.Grid().CellCenter(id)))
	require.Equal(t, id, e.PlayerCell())
}

// setup imports a state with the player at (0,0) holding held, plus mods.
func setup(t *testing.T, e *game.Engine, held token.Value, mods ...cellstate.Entry) {
	t.Helper()
	require.NoError(t, e.ImportSnapshot(game.Snapshot{
		Position:      e.Grid().CellCenter(world.CellID{}),
		Inventory:     held,
		Modifications: mods,
	}))
}

func placed(lat, lng int32, v token.Value) cellstate.Entry {
	return cellstate.Entry{Cell: world.CellID{Lat: lat, Lng: lng}, Mod: cellstate.Placed(v)}
}

func TestEngine_QueryCellDeterministic(t *testing.T) {
	first := testutil.NewEngine(t, testutil.EngineOptions{Seed: "same"})
	second := testutil.NewEngine(t, testutil.EngineOptions{Seed: "same"})

	world.WindowAround(world.CellID{}, 15, 15).ForEach(func(id world.CellID) bool {
		view := first.QueryCell(id)
		assert.Equal(t, view, first.QueryCell(id))
		assert.Equal(t, view, second.QueryCell(id))
		return true
	})
}

func TestEngine_PickupThenScrollAwayAndBack(t *testing.T) {
	e := testutil.NewEngine(t, testutil.EngineOptions{})

	id := findBaseCell(t, e, func(v game.TokenView) bool { return v.Present })
	base := e.QueryCell(id)
	moveTo(t, e, id)

	home := world.WindowAround(id, 8, 16)
	require.NoError(t, e.ViewportChanged(home))

	res := e.ActivateCell(id)
	assert.Equal(t, game.KindPicked, res.Kind)
	assert.Equal(t, base.Value, res.Inventory.Value())
	testutil.AssertHolding(t, e, base.Value)
	testutil.AssertEmptied(t, e, id)

	require.NoError(t, e.ViewportChanged(world.WindowAround(id.Offset(500, 500), 8, 16)))
	assert.Equal(t, cellstate.Stats{Archived: 1}, e.Stats())
	testutil.AssertEmptied(t, e, id)

	require.NoError(t, e.ViewportChanged(home))
	assert.Equal(t, cellstate.Stats{Cached: 1}, e.Stats())
	testutil.AssertEmptied(t, e, id)
}

func TestEngine_PickupOfFour(t *testing.T) {
	e := testutil.NewEngine(t, testutil.EngineOptions{})
	setup(t, e, 0, placed(1, 1, 4))
	id := world.CellID{Lat: 1, Lng: 1}

	res := e.ActivateCell(id)

	assert.Equal(t, game.KindPicked, res.Kind)
	assert.Equal(t, "Picked up 4", res.Message)
	assert.False(t, res.Victory)
	testutil.AssertHolding(t, e, 4)
	testutil.AssertEmptied(t, e, id)
}

func TestEngine_MergeReachesVictory(t *testing.T) {
	e := testutil.NewEngine(t, testutil.EngineOptions{VictoryThreshold: 16})
	setup(t, e, 8, placed(0, 1, 8))
	id := world.CellID{Lat: 0, Lng: 1}

	res := e.ActivateCell(id)

	assert.Equal(t, game.KindMerged, res.Kind)
	assert.True(t, res.Victory)
	assert.Equal(t, token.Value(16), res.Inventory.Value())
	testutil.AssertHolding(t, e, 16)
	testutil.AssertEmptied(t, e, id)
}

func TestEngine_MergeBelowThreshold(t *testing.T) {
	e := testutil.NewEngine(t, testutil.EngineOptions{VictoryThreshold: 64})
	setup(t, e, 2, placed(-1, -1, 2))

	res := e.ActivateCell(world.CellID{Lat: -1, Lng: -1})

	assert.Equal(t, game.KindMerged, res.Kind)
	assert.Equal(t, "Merged into 4", res.Message)
	assert.False(t, res.Victory)
}

func TestEngine_VictoryDoesNotBlockPlay(t *testing.T) {
	e := testutil.NewEngine(t, testutil.EngineOptions{VictoryThreshold: 4})
	setup(t, e, 4)

	res := e.ActivateCell(world.CellID{Lat: 2, Lng: 0})
	require.Equal(t, game.KindPlaced, res.Kind)

	res = e.ActivateCell(world.CellID{Lat: 2, Lng: 0})
	assert.Equal(t, game.KindPicked, res.Kind)
	assert.True(t, res.Victory)
}

func TestEngine_Mismatch(t *testing.T) {
	e := testutil.NewEngine(t, testutil.EngineOptions{})
	setup(t, e, 4, placed(0, 2, 8))
	before := e.ExportSnapshot()

	res := e.ActivateCell(world.CellID{Lat: 0, Lng: 2})

	assert.Equal(t, game.KindMismatch, res.Kind)
	assert.Equal(t, "Cannot merge 4 with 8", res.Message)
	assert.Equal(t, before, e.ExportSnapshot())
}

func TestEngine_EmptyHandEmptyCell(t *testing.T) {
	e := testutil.NewEngine(t, testutil.EngineOptions{})
	id := world.CellID{Lat: 1, Lng: 0}
	setup(t, e, 0, cellstate.Entry{Cell: id, Mod: cellstate.Emptied()})
	before := e.ExportSnapshot()

	res := e.ActivateCell(id)

	assert.Equal(t, game.KindEmpty, res.Kind)
	assert.Equal(t, before, e.ExportSnapshot())
}

func TestEngine_PlaceThenPickupInverse(t *testing.T) {
	e := testutil.NewEngine(t, testutil.EngineOptions{})
	id := findBaseCell(t, e, func(v game.TokenView) bool { return !v.Present })
	moveTo(t, e, id)
	setupPos := e.Position()
	require.NoError(t, e.ImportSnapshot(game.Snapshot{Position: setupPos, Inventory: 8}))

	res := e.ActivateCell(id)
	require.Equal(t, game.KindPlaced, res.Kind)
	assert.Equal(t, "Placed 8", res.Message)
	testutil.AssertHolding(t, e, 0)
	testutil.AssertTokenView(t, e, id, game.TokenView{Present: true, Value: 8})

	res = e.ActivateCell(id)
	require.Equal(t, game.KindPicked, res.Kind)
	testutil.AssertHolding(t, e, 8)
	testutil.AssertEmptied(t, e, id)

	mods := e.ExportSnapshot().Modifications
	require.Len(t, mods, 1)
	assert.Equal(t, cellstate.Entry{Cell: id, Mod: cellstate.Emptied()}, mods[0],
		"cell stays emptied, not back to base")
}

func TestEngine_TooFar(t *testing.T) {
	e := testutil.NewEngine(t, testutil.EngineOptions{InteractionRadius: 3})
	setup(t, e, 0, placed(4, 0, 2), placed(3, -3, 2))
	before := e.ExportSnapshot()

	res := e.ActivateCell(world.CellID{Lat: 4, Lng: 0})
	assert.Equal(t, game.KindTooFar, res.Kind)
	assert.ErrorIs(t, res.Err(), game.ErrOutOfRange)
	assert.Equal(t, before, e.ExportSnapshot())

	// corner of the Chebyshev square is still in range
	assert.True(t, e.InRange(world.CellID{Lat: 3, Lng: -3}))
	res = e.ActivateCell(world.CellID{Lat: 3, Lng: -3})
	assert.Equal(t, game.KindPicked, res.Kind)
	assert.NoError(t, res.Err())
}

func TestEngine_RangeFollowsPlayer(t *testing.T) {
	e := testutil.NewEngine(t, testutil.EngineOptions{InteractionRadius: 1})
	setup(t, e, 0, placed(10, 10, 2))
	target := world.CellID{Lat: 10, Lng: 10}

	assert.Equal(t, game.KindTooFar, e.ActivateCell(target).Kind)

	moveTo(t, e, target.Offset(-1, 1))
	assert.Equal(t, game.KindPicked, e.ActivateCell(target).Kind)
}

func TestEngine_PlayerMovedRejectsUnrepresentable(t *testing.T) {
	e := testutil.NewEngine(t, testutil.EngineOptions{})
	before := e.Position()

	err := e.PlayerMoved(world.LatLng{Lat: math.NaN(), Lng: 0})
	assert.ErrorIs(t, err, game.ErrInvariantViolation)
	assert.ErrorIs(t, err, world.ErrUnrepresentable)
	assert.Equal(t, before, e.Position())
}

func TestEngine_SnapshotRoundTrip(t *testing.T) {
	e := testutil.NewEngine(t, testutil.EngineOptions{Seed: "roundtrip"})
	require.NoError(t, e.ViewportChanged(world.WindowAround(world.CellID{}, 2, 2)))
	setup(t, e, 2,
		placed(0, 1, 2),
		placed(40, 40, 16),
		cellstate.Entry{Cell: world.CellID{Lat: -50, Lng: 3}, Mod: cellstate.Emptied()},
	)
	e.ActivateCell(world.CellID{Lat: 0, Lng: 1}) // merge → 4
	require.NoError(t, e.PlayerMoved(world.LatLng{Lat: 0.00012, Lng: -0.00007}))

	exported := e.ExportSnapshot()

	fresh := testutil.NewEngine(t, testutil.EngineOptions{Seed: "roundtrip"})
	require.NoError(t, fresh.ViewportChanged(world.WindowAround(world.CellID{Lat: 40, Lng: 40}, 1, 1)))
	require.NoError(t, fresh.ImportSnapshot(exported))

	assert.Equal(t, exported, fresh.ExportSnapshot())
	assert.Equal(t, e.Position(), fresh.Position())
	assert.Equal(t, e.Inventory(), fresh.Inventory())
	for _, m := range exported.Modifications {
		assert.Equal(t, e.QueryCell(m.Cell), fresh.QueryCell(m.Cell), "cell %s", m.Cell)
	}
	testutil.AssertPartition(t, fresh)
}

func TestEngine_ImportCorruptSnapshot(t *testing.T) {
	e := testutil.NewEngine(t, testutil.EngineOptions{})
	setup(t, e, 4, placed(1, 1, 2))
	before := e.ExportSnapshot()
	origin := e.Grid().CellCenter(world.CellID{})

	tests := []struct {
		name string
		snap game.Snapshot
	}{
		{
			name: "NaN position",
			snap: game.Snapshot{Position: world.LatLng{Lat: math.NaN()}},
		},
		{
			name: "inventory not a power of two",
			snap: game.Snapshot{Position: origin, Inventory: 3},
		},
		{
			name: "duplicate cell",
			snap: game.Snapshot{Position: origin, Modifications: []cellstate.Entry{
				placed(0, 0, 2), placed(0, 0, 4),
			}},
		},
		{
			name: "placed zero",
			snap: game.Snapshot{Position: origin, Modifications: []cellstate.Entry{placed(0, 0, 0)}},
		},
		{
			name: "unknown kind",
			snap: game.Snapshot{Position: origin, Modifications: []cellstate.Entry{
				{Cell: world.CellID{}, Mod: cellstate.Modification{Kind: 7}},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.ImportSnapshot(tt.snap)
			assert.ErrorIs(t, err, game.ErrCorruptSnapshot)
			assert.Equal(t, before, e.ExportSnapshot(), "state untouched")
		})
	}
}

func TestEngine_Reset(t *testing.T) {
	sink := &testutil.RecordingSink{}
	e := testutil.NewEngine(t, testutil.EngineOptions{Sink: sink})
	start := e.Position()
	setup(t, e, 8, placed(1, 1, 2), placed(90, 90, 2))
	require.NoError(t, e.PlayerMoved(world.LatLng{Lat: 0.5, Lng: 0.5}))

	e.Reset()

	assert.Equal(t, start, e.Position())
	testutil.AssertHolding(t, e, 0)
	assert.Empty(t, e.ExportSnapshot().Modifications)
	assert.Equal(t, cellstate.Stats{}, e.Stats())
	assert.Equal(t, e.ExportSnapshot(), sink.Last(t))
}

func TestEngine_PersistsAfterMutation(t *testing.T) {
	sink := &testutil.RecordingSink{}
	e := testutil.NewEngine(t, testutil.EngineOptions{Sink: sink})
	setup(t, e, 0, placed(0, 1, 2))
	require.Equal(t, 0, sink.Count(), "import does not persist")

	e.ActivateCell(world.CellID{Lat: 0, Lng: 1})
	assert.Equal(t, 1, sink.Count())
	assert.Equal(t, e.ExportSnapshot(), sink.Last(t))

	e.ActivateCell(world.CellID{Lat: 0, Lng: 1}) // place back
	assert.Equal(t, 2, sink.Count())

	// no-op activations do not persist
	e.ActivateCell(world.CellID{Lat: 50, Lng: 50})
	assert.Equal(t, 2, sink.Count())

	require.NoError(t, e.PlayerMoved(world.LatLng{Lat: 0.0001, Lng: 0}))
	assert.Equal(t, 3, sink.Count())
}

func TestEngine_SinkFailureIsNonFatal(t *testing.T) {
	sink := &testutil.RecordingSink{Fail: true}
	e := testutil.NewEngine(t, testutil.EngineOptions{Sink: sink})
	setup(t, e, 0, placed(0, 1, 2))

	res := e.ActivateCell(world.CellID{Lat: 0, Lng: 1})

	assert.Equal(t, game.KindPicked, res.Kind)
	testutil.AssertHolding(t, e, 2)
	assert.Equal(t, 0, sink.Count())
}

func TestEngine_PartitionAcrossViewportChanges(t *testing.T) {
	e := testutil.NewEngine(t, testutil.EngineOptions{InteractionRadius: 100})
	setup(t, e, 0)

	center := world.CellID{}
	for i := range int32(40) {
		center = center.Offset(1, 2)
		require.NoError(t, e.ViewportChanged(world.WindowAround(center, 3, 5)))
		e.ActivateCell(center.Offset(0, i%3))
		testutil.AssertPartition(t, e)
	}
	assert.NoError(t, e.CheckPartition())
}

func TestNewEngine_Invalid(t *testing.T) {
	grid, err := world.NewGrid(world.LatLng{}, testutil.TestCellSize)
	require.NoError(t, err)
	gen, err := token.NewGenerator("x", 0.1, token.DefaultValues)
	require.NoError(t, err)

	tests := []struct {
		name string
		cfg  game.Config
	}{
		{"no generator", game.Config{Grid: grid, VictoryThreshold: 2}},
		{"bad start", game.Config{Grid: grid, Generator: gen, Start: world.LatLng{Lat: math.Inf(1)}, VictoryThreshold: 2}},
		{"negative radius", game.Config{Grid: grid, Generator: gen, InteractionRadius: -1, VictoryThreshold: 2}},
		{"zero threshold", game.Config{Grid: grid, Generator: gen}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := game.NewEngine(tt.cfg)
			assert.Error(t, err)
		})
	}
}
