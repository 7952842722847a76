// compositor_damage.go - damage rectangle accumulator

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

package main

// damageCeiling bounds the number of distinct rectangles tracked per
// compose pass; beyond it the whole set collapses to its bounding union.
const damageCeiling = 64

// DamageAccumulator collects screen-clipped dirty rectangles across one
// compose pass. It is owned by the compositor's single goroutine.
type DamageAccumulator struct {
	rects         []Rect
	screenW       int32
	screenH       int32
	collapsedOnly bool
}

func newDamageAccumulator(screenW, screenH int32) *DamageAccumulator {
	return &DamageAccumulator{screenW: screenW, screenH: screenH}
}

// Add clips r to the screen and folds it into the accumulator, collapsing
// to the bounding union if the ceiling would be exceeded.
func (d *DamageAccumulator) Add(r Rect) {
	clipped := r.ClipToScreen(d.screenW, d.screenH)
	if clipped.Empty() {
		return
	}
	if d.collapsedOnly {
		d.rects[0] = d.rects[0].Union(clipped)
		return
	}
	d.rects = append(d.rects, clipped)
	if len(d.rects) > damageCeiling {
		d.collapse()
	}
}

func (d *DamageAccumulator) collapse() {
	var union Rect
	for _, r := range d.rects {
		union = union.Union(r)
	}
	union = union.ClipToScreen(d.screenW, d.screenH)
	d.rects = []Rect{union}
	d.collapsedOnly = true
}

// SetScreenSize updates the clip bounds (e.g. on framebuffer resize).
func (d *DamageAccumulator) SetScreenSize(w, h int32) {
	d.screenW, d.screenH = w, h
}

// Drain returns the accumulated rectangles and resets the accumulator for
// the next compose pass.
func (d *DamageAccumulator) Drain() []Rect {
	out := d.rects
	d.rects = nil
	d.collapsedOnly = false
	return out
}

// Peek returns the accumulated rectangles without draining them.
func (d *DamageAccumulator) Peek() []Rect {
	return d.rects
}
