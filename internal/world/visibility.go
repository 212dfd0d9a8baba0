package world

// Window is the rectangular range of cells currently rendered (inclusive on
// both corners). A window whose Min exceeds Max on either axis is empty.
type Window struct {
	Min CellID
	Max CellID
}

// EmptyWindow returns a window that contains no cells.
func EmptyWindow() Window {
	return Window{Min: CellID{Lat: 1, Lng: 1}, Max: CellID{Lat: 0, Lng: 0}}
}

// NewWindow returns the window spanned by two opposite corners in any order.
func NewWindow(a, b CellID) Window {
	return Window{
		Min: CellID{Lat: min(a.Lat, b.Lat), Lng: min(a.Lng, b.Lng)},
		Max: CellID{Lat: max(a.Lat, b.Lat), Lng: max(a.Lng, b.Lng)},
	}
}

// WindowAround returns the window of cells within latRadius rows and
// lngRadius columns of center.
func WindowAround(center CellID, latRadius, lngRadius int32) Window {
	latRadius = max(latRadius, 0)
	lngRadius = max(lngRadius, 0)
	return Window{
		Min: center.Offset(-latRadius, -lngRadius),
		Max: center.Offset(latRadius, lngRadius),
	}
}

// IsEmpty reports whether the window contains no cells.
func (w Window) IsEmpty() bool {
	return w.Min.Lat > w.Max.Lat || w.Min.Lng > w.Max.Lng
}

// Contains reports whether id lies inside the window.
func (w Window) Contains(id CellID) bool {
	return id.Lat >= w.Min.Lat && id.Lat <= w.Max.Lat &&
		id.Lng >= w.Min.Lng && id.Lng <= w.Max.Lng
}

// Rows returns the number of latitude rows covered.
func (w Window) Rows() int64 {
	if w.IsEmpty() {
		return 0
	}
	return int64(w.Max.Lat) - int64(w.Min.Lat) + 1
}

// Cols returns the number of longitude columns covered.
func (w Window) Cols() int64 {
	if w.IsEmpty() {
		return 0
	}
	return int64(w.Max.Lng) - int64(w.Min.Lng) + 1
}

// Area returns the number of cells in the window.
func (w Window) Area() int64 {
	return w.Rows() * w.Cols()
}

// ForEach iterates over the window's cells in (Lat, Lng) order.
// If fn returns false, iteration stops early.
func (w Window) ForEach(fn func(CellID) bool) {
	if w.IsEmpty() {
		return
	}
	// int64 loop counters: Max may be MaxInt32
	for lat := int64(w.Min.Lat); lat <= int64(w.Max.Lat); lat++ {
		for lng := int64(w.Min.Lng); lng <= int64(w.Max.Lng); lng++ {
			if !fn(CellID{Lat: int32(lat), Lng: int32(lng)}) {
				return
			}
		}
	}
}
