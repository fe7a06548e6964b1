package geom

import "math"

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// EmptyBounds returns a box that contains nothing; extending it with any point
// yields that point's box.
func EmptyBounds() Bounds {
	return Bounds{
		MinX: math.Inf(1), MinY: math.Inf(1),
		MaxX: math.Inf(-1), MaxY: math.Inf(-1),
	}
}

// BoundsOf computes the bounding box of pts. An empty slice yields EmptyBounds.
func BoundsOf(pts []Point) Bounds {
	b := EmptyBounds()
	for _, p := range pts {
		b = b.Extend(p)
	}
	return b
}

// IsEmpty reports whether the box contains no point.
func (b Bounds) IsEmpty() bool {
	return b.MinX > b.MaxX || b.MinY > b.MaxY
}

// Extend grows the box to include p.
func (b Bounds) Extend(p Point) Bounds {
	b.MinX = math.Min(b.MinX, p.X)
	b.MinY = math.Min(b.MinY, p.Y)
	b.MaxX = math.Max(b.MaxX, p.X)
	b.MaxY = math.Max(b.MaxY, p.Y)
	return b
}

// Union returns the smallest box containing both b and o.
func (b Bounds) Union(o Bounds) Bounds {
	if o.IsEmpty() {
		return b
	}
	if b.IsEmpty() {
		return o
	}
	return Bounds{
		MinX: math.Min(b.MinX, o.MinX),
		MinY: math.Min(b.MinY, o.MinY),
		MaxX: math.Max(b.MaxX, o.MaxX),
		MaxY: math.Max(b.MaxY, o.MaxY),
	}
}

// Inflate grows the box by d on every side.
func (b Bounds) Inflate(d float64) Bounds {
	if b.IsEmpty() {
		return b
	}
	return Bounds{MinX: b.MinX - d, MinY: b.MinY - d, MaxX: b.MaxX + d, MaxY: b.MaxY + d}
}

// Translate moves the box by the vector d.
func (b Bounds) Translate(d Point) Bounds {
	if b.IsEmpty() {
		return b
	}
	return Bounds{MinX: b.MinX + d.X, MinY: b.MinY + d.Y, MaxX: b.MaxX + d.X, MaxY: b.MaxY + d.Y}
}

// Overlaps reports whether two boxes share at least one point.
func (b Bounds) Overlaps(o Bounds) bool {
	if b.IsEmpty() || o.IsEmpty() {
		return false
	}
	return !(b.MaxX < o.MinX || o.MaxX < b.MinX || b.MaxY < o.MinY || o.MaxY < b.MinY)
}

// Contains reports whether p lies inside the box, edges included.
func (b Bounds) Contains(p Point) bool {
	return p.X >= b.MinX && p.X <= b.MaxX && p.Y >= b.MinY && p.Y <= b.MaxY
}

// Width returns the horizontal extent, zero for an empty box.
func (b Bounds) Width() float64 {
	if b.IsEmpty() {
		return 0
	}
	return b.MaxX - b.MinX
}

// Height returns the vertical extent, zero for an empty box.
func (b Bounds) Height() float64 {
	if b.IsEmpty() {
		return 0
	}
	return b.MaxY - b.MinY
}
