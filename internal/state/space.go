package state

import (
	"math"

	"localboard/internal/geom"
)

const (
	defaultCellSize = 256

	// objects spanning more cells than this are kept out of the grid
	maxCells = 1024
)

type cell struct{ x, y int }

// SpaceIndex buckets object bounds into a uniform grid so region queries
// only look at objects in the cells they touch. Objects too large for the
// grid are kept in a separate set every query checks.
type SpaceIndex struct {
	cellSize  float64
	cells     map[cell]map[string]struct{}
	bounds    map[string]geom.Bounds
	oversized map[string]struct{}
}

// NewSpaceIndex creates an index with the given cell size. A non-positive
// size uses the default.
func NewSpaceIndex(cellSize float64) *SpaceIndex {
	if cellSize <= 0 {
		cellSize = defaultCellSize
	}
	return &SpaceIndex{
		cellSize:  cellSize,
		cells:     make(map[cell]map[string]struct{}),
		bounds:    make(map[string]geom.Bounds),
		oversized: make(map[string]struct{}),
	}
}

// Insert indexes id under b, replacing any previous bounds.
func (s *SpaceIndex) Insert(id string, b geom.Bounds) {
	s.Remove(id)
	if b.IsEmpty() {
		return
	}
	s.bounds[id] = b
	if s.tooLarge(b) {
		s.oversized[id] = struct{}{}
		return
	}
	s.visit(b, func(c cell) {
		ids, ok := s.cells[c]
		if !ok {
			ids = make(map[string]struct{})
			s.cells[c] = ids
		}
		ids[id] = struct{}{}
	})
}

// Remove drops id from the index.
func (s *SpaceIndex) Remove(id string) {
	b, ok := s.bounds[id]
	if !ok {
		return
	}
	delete(s.bounds, id)
	if _, ok := s.oversized[id]; ok {
		delete(s.oversized, id)
		return
	}
	s.visit(b, func(c cell) {
		if ids, ok := s.cells[c]; ok {
			delete(ids, id)
			if len(ids) == 0 {
				delete(s.cells, c)
			}
		}
	})
}

// Query returns the ids whose bounds overlap b.
func (s *SpaceIndex) Query(b geom.Bounds) []string {
	if b.IsEmpty() {
		return nil
	}
	var out []string
	if !(s.cellCount(b) <= float64(len(s.bounds)+64)) {
		// a huge region is cheaper to answer by a scan
		for id, ob := range s.bounds {
			if ob.Overlaps(b) {
				out = append(out, id)
			}
		}
		return out
	}
	seen := make(map[string]struct{})
	for id := range s.oversized {
		seen[id] = struct{}{}
		if s.bounds[id].Overlaps(b) {
			out = append(out, id)
		}
	}
	s.visit(b, func(c cell) {
		for id := range s.cells[c] {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			if s.bounds[id].Overlaps(b) {
				out = append(out, id)
			}
		}
	})
	return out
}

func (s *SpaceIndex) cellCount(b geom.Bounds) float64 {
	w := math.Floor(b.MaxX/s.cellSize) - math.Floor(b.MinX/s.cellSize) + 1
	h := math.Floor(b.MaxY/s.cellSize) - math.Floor(b.MinY/s.cellSize) + 1
	return w * h
}

// tooLarge also holds for bounds whose cell count is not a number.
func (s *SpaceIndex) tooLarge(b geom.Bounds) bool {
	return !(s.cellCount(b) <= maxCells)
}

func (s *SpaceIndex) visit(b geom.Bounds, fn func(cell)) {
	x0 := int(math.Floor(b.MinX / s.cellSize))
	x1 := int(math.Floor(b.MaxX / s.cellSize))
	y0 := int(math.Floor(b.MinY / s.cellSize))
	y1 := int(math.Floor(b.MaxY / s.cellSize))
	for x := x0; x <= x1; x++ {
		for y := y0; y <= y1; y++ {
			fn(cell{x, y})
		}
	}
}
