package world

import "fmt"

// ChunkCoord identifies a chunk on the chunk grid.
type ChunkCoord struct {
	X, Y int
}

func (c ChunkCoord) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// Origin returns the world tile position of the chunk's bottom-left cell.
func (c ChunkCoord) Origin(size int) Point {
	return Point{X: c.X * size, Y: c.Y * size}
}

// Bounds returns the chunk's world rectangle.
func (c ChunkCoord) Bounds(size int) Rect {
	o := c.Origin(size)
	return Rect{MinX: o.X, MinY: o.Y, MaxX: o.X + size - 1, MaxY: o.Y + size - 1}
}

// Point is a world tile position. Y grows upward; depth is negative Y.
type Point struct {
	X, Y int
}

// Add returns p offset by q.
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// ChunkOf returns the chunk containing p and p's offset inside it.
func ChunkOf(p Point, size int) (ChunkCoord, Point) {
	cx, lx := floorDiv(p.X, size)
	cy, ly := floorDiv(p.Y, size)
	return ChunkCoord{X: cx, Y: cy}, Point{X: lx, Y: ly}
}

func floorDiv(a, b int) (q, r int) {
	q, r = a/b, a%b
	if r < 0 {
		q--
		r += b
	}
	return q, r
}

// Rect is an axis-aligned tile rectangle with inclusive bounds.
type Rect struct {
	MinX, MinY, MaxX, MaxY int
}

// RectAt returns the rectangle of w×h cells with its bottom-left corner at p.
func RectAt(p Point, w, h int) Rect {
	return Rect{MinX: p.X, MinY: p.Y, MaxX: p.X + w - 1, MaxY: p.Y + h - 1}
}

// Empty reports whether the rectangle covers no cells.
func (r Rect) Empty() bool {
	return r.MaxX < r.MinX || r.MaxY < r.MinY
}

// Width returns the number of columns, 0 when empty.
func (r Rect) Width() int {
	if r.Empty() {
		return 0
	}
	return r.MaxX - r.MinX + 1
}

// Height returns the number of rows, 0 when empty.
func (r Rect) Height() int {
	if r.Empty() {
		return 0
	}
	return r.MaxY - r.MinY + 1
}

// Area returns the number of covered cells.
func (r Rect) Area() int {
	return r.Width() * r.Height()
}

// Contains reports whether p lies inside r.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.MinX && p.X <= r.MaxX && p.Y >= r.MinY && p.Y <= r.MaxY
}

// Intersect returns the overlap of r and o. Disjoint rectangles yield an empty
// rectangle with zero area.
func (r Rect) Intersect(o Rect) Rect {
	out := Rect{
		MinX: max(r.MinX, o.MinX),
		MinY: max(r.MinY, o.MinY),
		MaxX: min(r.MaxX, o.MaxX),
		MaxY: min(r.MaxY, o.MaxY),
	}
	if out.Empty() {
		return Rect{MinX: 0, MinY: 0, MaxX: -1, MaxY: -1}
	}
	return out
}
