package token

import (
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"golang.org/x/crypto/blake2b"

	"github.com/udisondev/gridmerge/internal/world"
)

// Salts separating the presence and value draws of one cell.
const (
	saltSpawn = "spawn"
	saltValue = "initialValue"
)

// DefaultValues is the value table used when none is configured.
var DefaultValues = []Value{1, 2, 4, 8, 16}

// DefaultSpawnProbability is the chance a cell generates a token.
const DefaultSpawnProbability = 0.10

var (
	ErrNoValues           = errors.New("token value table is empty")
	ErrInvalidValue       = errors.New("token value is not a power of two")
	ErrInvalidProbability = errors.New("spawn probability must be within [0, 1]")
)

// Generator derives base tokens from cell coordinates.
// Pure: the same seed and cell always produce the same token.
type Generator struct {
	key        []byte
	spawnProb  float64
	values     []Value   // ascending
	cumulative []float64 // cumulative weight per value, last ≈ 1
}

// NewGenerator creates a generator for the given seed family.
// Values are weighted inversely proportional to their magnitude.
func NewGenerator(seed string, spawnProbability float64, values []Value) (*Generator, error) {
	if !(spawnProbability >= 0 && spawnProbability <= 1) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProbability, spawnProbability)
	}
	if len(values) == 0 {
		return nil, ErrNoValues
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	for _, v := range sorted {
		if !v.IsValid() {
			return nil, fmt.Errorf("%w: %d", ErrInvalidValue, v)
		}
	}

	var total float64
	for _, v := range sorted {
		total += 1 / float64(v)
	}
	cumulative := make([]float64, len(sorted))
	var acc float64
	for i, v := range sorted {
		acc += (1 / float64(v)) / total
		cumulative[i] = acc
	}

	return &Generator{
		key:        seedKey(seed),
		spawnProb:  spawnProbability,
		values:     sorted,
		cumulative: cumulative,
	}, nil
}

// seedKey turns a seed into a BLAKE2b key (at most 64 bytes).
func seedKey(seed string) []byte {
	if len(seed) <= blake2b.Size {
		return []byte(seed)
	}
	sum := blake2b.Sum512([]byte(seed))
	return sum[:]
}

// Values returns the configured value table in ascending order.
func (g *Generator) Values() []Value {
	return slices.Clone(g.values)
}

// SpawnProbability returns the configured presence probability.
func (g *Generator) SpawnProbability() float64 {
	return g.spawnProb
}

// HasToken reports whether the cell generates a token.
func (g *Generator) HasToken(id world.CellID) bool {
	return g.draw(id, saltSpawn) < g.spawnProb
}

// Value returns the generated value for the cell. Only meaningful when
// HasToken is true; callers with a modification for id must not call it.
func (g *Generator) Value(id world.CellID) Value {
	return g.pick(g.draw(id, saltValue))
}

// Base returns the full generated token for the cell.
func (g *Generator) Base(id world.CellID) BaseToken {
	if !g.HasToken(id) {
		return None
	}
	return Of(g.Value(id))
}

// pick returns the first value whose cumulative weight meets or exceeds r.
// Rounding can leave the last bucket just below r; the largest value covers it.
func (g *Generator) pick(r float64) Value {
	for i, c := range g.cumulative {
		if c >= r {
			return g.values[i]
		}
	}
	return g.values[len(g.values)-1]
}

// draw hashes the canonical "lat,lng:salt" encoding of the cell into a
// uniform float64 in [0, 1).
func (g *Generator) draw(id world.CellID, salt string) float64 {
	h, err := blake2b.New256(g.key)
	if err != nil {
		// key length is bounded by seedKey
		panic(fmt.Sprintf("blake2b: %v", err))
	}

	buf := make([]byte, 0, 32)
	buf = strconv.AppendInt(buf, int64(id.Lat), 10)
	buf = append(buf, ',')
	buf = strconv.AppendInt(buf, int64(id.Lng), 10)
	buf = append(buf, ':')
	buf = append(buf, salt...)
	h.Write(buf)

	var sum [blake2b.Size256]byte
	h.Sum(sum[:0])

	// top 53 bits → exact float64 mantissa
	return float64(binary.BigEndian.Uint64(sum[:8])>>11) / (1 << 53)
}
