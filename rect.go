// rect.go - rectangle algebra for the compositor

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

package main

// Rect is a screen-space rectangle. Width and height are never negative;
// an empty rectangle has w == 0 || h == 0.
type Rect struct {
	X, Y int32
	W, H uint32
}

func (r Rect) Right() int32  { return r.X + int32(r.W) }
func (r Rect) Bottom() int32 { return r.Y + int32(r.H) }
func (r Rect) Empty() bool   { return r.W == 0 || r.H == 0 }

func (r Rect) Contains(x, y int32) bool {
	return x >= r.X && x < r.Right() && y >= r.Y && y < r.Bottom()
}

// Intersect returns the overlapping rectangle and true, or an empty
// rectangle and false if the two rectangles do not overlap.
func (r Rect) Intersect(o Rect) (Rect, bool) {
	x0 := max32(r.X, o.X)
	y0 := max32(r.Y, o.Y)
	x1 := min32(r.Right(), o.Right())
	y1 := min32(r.Bottom(), o.Bottom())
	if x1 <= x0 || y1 <= y0 {
		return Rect{}, false
	}
	return Rect{X: x0, Y: y0, W: uint32(x1 - x0), H: uint32(y1 - y0)}, true
}

// Union returns the smallest rectangle containing both r and o. The empty
// rectangle is the identity element.
func (r Rect) Union(o Rect) Rect {
	if r.Empty() {
		return o
	}
	if o.Empty() {
		return r
	}
	x0 := min32(r.X, o.X)
	y0 := min32(r.Y, o.Y)
	x1 := max32(r.Right(), o.Right())
	y1 := max32(r.Bottom(), o.Bottom())
	return Rect{X: x0, Y: y0, W: uint32(x1 - x0), H: uint32(y1 - y0)}
}

// Expand grows the rectangle by n pixels on every side.
func (r Rect) Expand(n int32) Rect {
	if r.Empty() {
		return r
	}
	return Rect{
		X: r.X - n,
		Y: r.Y - n,
		W: uint32(int32(r.W) + 2*n),
		H: uint32(int32(r.H) + 2*n),
	}
}

// ClipToScreen clips r to the [0,0)-(w,h) screen bounds, saturating at the
// edges rather than wrapping. Returns an empty rectangle if there is no
// overlap.
func (r Rect) ClipToScreen(screenW, screenH int32) Rect {
	clipped, ok := r.Intersect(Rect{X: 0, Y: 0, W: uint32(screenW), H: uint32(screenH)})
	if !ok {
		return Rect{}
	}
	return clipped
}

func min32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}
