package testutil

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/udisondev/gridmerge/internal/game"
	"github.com/udisondev/gridmerge/internal/token"
	"github.com/udisondev/gridmerge/internal/world"
)

// TestCellSize matches the default configuration (degrees).
const TestCellSize = 1e-4

// EngineOptions tweaks NewEngine. Zero fields take test defaults.
type EngineOptions struct {
	Seed              string
	SpawnProbability  float64
	Start             world.LatLng
	InteractionRadius int64
	VictoryThreshold  token.Value
	Sink              game.SnapshotSink
}

// NewEngine builds an engine on a grid anchored at (0,0).
// Defaults: seed "test", spawn probability 0.10, radius 3, threshold 16,
// start at the center of cell (0,0).
func NewEngine(t testing.TB, opts EngineOptions) *game.Engine {
	t.Helper()

	if opts.Seed == "" {
		opts.Seed = "test"
	}
	if opts.SpawnProbability == 0 {
		opts.SpawnProbability = token.DefaultSpawnProbability
	}
	if opts.InteractionRadius == 0 {
		opts.InteractionRadius = 3
	}
	if opts.VictoryThreshold == 0 {
		opts.VictoryThreshold = 16
	}

	grid, err := world.NewGrid(world.LatLng{}, TestCellSize)
	require.NoError(t, err)
	if opts.Start == (world.LatLng{}) {
		opts.Start = grid.CellCenter(world.CellID{})
	}

	gen, err := token.NewGenerator(opts.Seed, opts.SpawnProbability, token.DefaultValues)
	require.NoError(t, err)

	e, err := game.NewEngine(game.Config{
		Grid:              grid,
		Generator:         gen,
		Start:             opts.Start,
		InteractionRadius: opts.InteractionRadius,
		VictoryThreshold:  opts.VictoryThreshold,
		Sink:              opts.Sink,
	})
	require.NoError(t, err)
	return e
}

// ErrSimulated stands in for an I/O failure in error-path tests.
var ErrSimulated = errors.New("simulated failure")

// RecordingSink keeps every snapshot it receives. With Fail set it returns
// ErrSimulated instead.
type RecordingSink struct {
	mu        sync.Mutex
	Fail      bool
	snapshots []game.Snapshot
}

// SaveSnapshot implements game.SnapshotSink.
func (s *RecordingSink) SaveSnapshot(snap game.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail {
		return ErrSimulated
	}
	s.snapshots = append(s.snapshots, snap.Clone())
	return nil
}

// Count returns the number of saved snapshots.
func (s *RecordingSink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snapshots)
}

// Last returns the most recent snapshot.
func (s *RecordingSink) Last(t testing.TB) game.Snapshot {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.snapshots, "no snapshot saved")
	return s.snapshots[len(s.snapshots)-1]
}
