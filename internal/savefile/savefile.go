// Package savefile persists game snapshots as a YAML document on disk.
package savefile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/udisondev/gridmerge/internal/cellstate"
	"github.com/udisondev/gridmerge/internal/game"
	"github.com/udisondev/gridmerge/internal/token"
	"github.com/udisondev/gridmerge/internal/world"
)

// formatVersion is bumped on incompatible changes to the document layout.
const formatVersion = 1

type document struct {
	Version       int            `yaml:"version"`
	Position      world.LatLng   `yaml:"position"`
	Inventory     uint32         `yaml:"inventory"`
	Modifications []modification `yaml:"modifications"`
}

type modification struct {
	Lat   int32  `yaml:"lat"`
	Lng   int32  `yaml:"lng"`
	Kind  string `yaml:"kind"`
	Value uint32 `yaml:"value,omitempty"`
}

// Store reads and writes one snapshot file.
type Store struct {
	path string
}

// New creates a store backed by path.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the snapshot file location.
func (s *Store) Path() string {
	return s.path
}

// SaveSnapshot implements game.SnapshotSink. The file is replaced atomically.
func (s *Store) SaveSnapshot(snap game.Snapshot) error {
	doc := document{
		Version:       formatVersion,
		Position:      snap.Position,
		Inventory:     uint32(snap.Inventory),
		Modifications: make([]modification, 0, len(snap.Modifications)),
	}
	for _, e := range snap.Modifications {
		doc.Modifications = append(doc.Modifications, modification{
			Lat:   e.Cell.Lat,
			Lng:   e.Cell.Lng,
			Kind:  e.Mod.Kind.String(),
			Value: uint32(e.Mod.Value),
		})
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing snapshot %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing snapshot %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing snapshot %s: %w", s.path, err)
	}
	return nil
}

// LoadSnapshot implements game.SnapshotSource. A missing file is not an error.
// Malformed documents are reported as game.ErrCorruptSnapshot.
func (s *Store) LoadSnapshot() (game.Snapshot, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return game.Snapshot{}, false, nil
		}
		return game.Snapshot{}, false, fmt.Errorf("reading snapshot %s: %w", s.path, err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return game.Snapshot{}, false, fmt.Errorf("%w: parsing %s: %w", game.ErrCorruptSnapshot, s.path, err)
	}
	if doc.Version != formatVersion {
		return game.Snapshot{}, false, fmt.Errorf("%w: %s has version %d, want %d",
			game.ErrCorruptSnapshot, s.path, doc.Version, formatVersion)
	}

	snap := game.Snapshot{
		Position:  doc.Position,
		Inventory: token.Value(doc.Inventory),
	}
	for _, m := range doc.Modifications {
		kind, err := parseKind(m.Kind)
		if err != nil {
			return game.Snapshot{}, false, fmt.Errorf("%w: cell %d,%d: %w", game.ErrCorruptSnapshot, m.Lat, m.Lng, err)
		}
		snap.Modifications = append(snap.Modifications, cellstate.Entry{
			Cell: world.CellID{Lat: m.Lat, Lng: m.Lng},
			Mod:  cellstate.Modification{Kind: kind, Value: token.Value(m.Value)},
		})
	}
	return snap, true, nil
}

// Remove deletes the snapshot file if present.
func (s *Store) Remove() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing snapshot %s: %w", s.path, err)
	}
	return nil
}

func parseKind(s string) (cellstate.Kind, error) {
	switch s {
	case cellstate.KindEmptied.String():
		return cellstate.KindEmptied, nil
	case cellstate.KindPlaced.String():
		return cellstate.KindPlaced, nil
	default:
		return 0, fmt.Errorf("unknown modification kind %q", s)
	}
}
