package world

import (
	"errors"
	"fmt"
	"math"
)

// ErrUnrepresentable is returned for positions that do not map to any cell
// (non-finite coordinates or indices outside int32).
var ErrUnrepresentable = errors.New("position is not representable on the grid")

// LatLng is a continuous world position in degrees.
// Value type, passed by value.
type LatLng struct {
	Lat float64 `yaml:"lat"`
	Lng float64 `yaml:"lng"`
}

// IsFinite reports whether both coordinates are finite numbers.
func (p LatLng) IsFinite() bool {
	return !math.IsNaN(p.Lat) && !math.IsInf(p.Lat, 0) &&
		!math.IsNaN(p.Lng) && !math.IsInf(p.Lng, 0)
}

// CellID is the stable, origin-relative address of a grid cell.
// Ordered by (Lat, Lng).
type CellID struct {
	Lat int32
	Lng int32
}

// Compare orders cells by latitude index, then longitude index.
// Returns -1, 0 or +1 (usable with slices.SortFunc).
func (c CellID) Compare(other CellID) int {
	switch {
	case c.Lat < other.Lat:
		return -1
	case c.Lat > other.Lat:
		return 1
	case c.Lng < other.Lng:
		return -1
	case c.Lng > other.Lng:
		return 1
	default:
		return 0
	}
}

// Less reports whether c sorts before other.
func (c CellID) Less(other CellID) bool {
	return c.Compare(other) < 0
}

// Offset returns the cell dLat rows and dLng columns away, saturating at
// the int32 limits.
func (c CellID) Offset(dLat, dLng int32) CellID {
	return CellID{Lat: saturatingAdd(c.Lat, dLat), Lng: saturatingAdd(c.Lng, dLng)}
}

func saturatingAdd(a, b int32) int32 {
	return int32(min(max(int64(a)+int64(b), math.MinInt32), math.MaxInt32))
}

func (c CellID) String() string {
	return fmt.Sprintf("%d,%d", c.Lat, c.Lng)
}

// ChebyshevDistance returns max(|dLat|, |dLng|) between two cells.
func ChebyshevDistance(a, b CellID) int64 {
	dLat := int64(a.Lat) - int64(b.Lat)
	if dLat < 0 {
		dLat = -dLat
	}
	dLng := int64(a.Lng) - int64(b.Lng)
	if dLng < 0 {
		dLng = -dLng
	}
	return max(dLat, dLng)
}

// Grid maps continuous positions to cells anchored at a fixed origin.
// Every conversion is computed fresh from the origin, never incrementally.
type Grid struct {
	origin   LatLng
	cellSize float64
}

// NewGrid creates a grid anchored at origin with square cells of cellSize degrees.
func NewGrid(origin LatLng, cellSize float64) (Grid, error) {
	if !origin.IsFinite() {
		return Grid{}, fmt.Errorf("grid origin %v: %w", origin, ErrUnrepresentable)
	}
	if !(cellSize > 0) || math.IsInf(cellSize, 0) {
		return Grid{}, fmt.Errorf("invalid cell size %v", cellSize)
	}
	return Grid{origin: origin, cellSize: cellSize}, nil
}

// Origin returns the grid anchor.
func (g Grid) Origin() LatLng {
	return g.origin
}

// CellSize returns the cell edge length in degrees.
func (g Grid) CellSize() float64 {
	return g.cellSize
}

// ToCellID converts a world position to its cell.
// A position maps to index i on an axis iff it lies in
// [origin + i·size, origin + (i+1)·size).
func (g Grid) ToCellID(p LatLng) (CellID, error) {
	lat, err := g.axisIndex(p.Lat, g.origin.Lat)
	if err != nil {
		return CellID{}, fmt.Errorf("latitude %v: %w", p.Lat, err)
	}
	lng, err := g.axisIndex(p.Lng, g.origin.Lng)
	if err != nil {
		return CellID{}, fmt.Errorf("longitude %v: %w", p.Lng, err)
	}
	return CellID{Lat: lat, Lng: lng}, nil
}

// axisIndex floors the offset from origin and then nudges the result so it
// agrees with the edge formula used by CellBounds (division can round across
// an edge, e.g. 3e-4/1e-4 = 2.9999999999999996).
func (g Grid) axisIndex(coord, origin float64) (int32, error) {
	if math.IsNaN(coord) || math.IsInf(coord, 0) {
		return 0, ErrUnrepresentable
	}
	f := math.Floor((coord - origin) / g.cellSize)
	if f < math.MinInt32 || f > math.MaxInt32 {
		return 0, ErrUnrepresentable
	}
	i := int64(f)
	if g.edge(origin, i+1) <= coord {
		i++
	} else if g.edge(origin, i) > coord {
		i--
	}
	if i < math.MinInt32 || i > math.MaxInt32 {
		return 0, ErrUnrepresentable
	}
	return int32(i), nil
}

func (g Grid) edge(origin float64, i int64) float64 {
	return origin + float64(i)*g.cellSize
}

// CellBounds returns the north-west (top-left) and south-east (bottom-right)
// corners of a cell. The north and east edges belong to the neighbouring cells.
func (g Grid) CellBounds(id CellID) (topLeft, bottomRight LatLng) {
	south := g.edge(g.origin.Lat, int64(id.Lat))
	north := g.edge(g.origin.Lat, int64(id.Lat)+1)
	west := g.edge(g.origin.Lng, int64(id.Lng))
	east := g.edge(g.origin.Lng, int64(id.Lng)+1)
	return LatLng{Lat: north, Lng: west}, LatLng{Lat: south, Lng: east}
}

// CellCenter returns the world position at the middle of a cell.
func (g Grid) CellCenter(id CellID) LatLng {
	return LatLng{
		Lat: g.origin.Lat + (float64(id.Lat)+0.5)*g.cellSize,
		Lng: g.origin.Lng + (float64(id.Lng)+0.5)*g.cellSize,
	}
}
