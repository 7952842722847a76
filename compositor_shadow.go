// compositor_shadow.go - soft drop-shadow rendering

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

package main

const (
	shadowSpread      = 16 // px
	shadowVOffset     = 6  // px
	shadowCornerRad   = 8  // px, rounded-rect corner radius used for the SDF
	shadowFocusedA    = 50
	shadowUnfocusedA  = 25
)

// ShadowCache holds the precomputed, per-layer-size alpha bitmap used to
// paint a soft drop shadow. Dimensions are always (w+2*spread) x
// (h+2*spread); the cache is invalidated whenever the owning layer's
// dimensions change.
type ShadowCache struct {
	W, H  int
	Alpha []byte // one byte per pixel, 0-255 normalized alpha
}

// isqrtU32 computes the integer square root of n via Newton's method,
// matching the original's no-floating-point radial distance computation.
func isqrtU32(n uint32) uint32 {
	if n == 0 {
		return 0
	}
	x := n
	y := (x + 1) / 2
	for y < x {
		x = y
		y = (x + n/x) / 2
	}
	return x
}

// roundedRectSDF returns the signed distance from (px, py) to the boundary
// of a rounded rectangle of size (w, h) with the given corner radius,
// centered at the origin. Negative/zero means inside.
func roundedRectSDF(px, py int32, w, h uint32, radius int32) int32 {
	halfW := int32(w) / 2
	halfH := int32(h) / 2
	// Distance of the point from the rectangle center, folded into one
	// quadrant.
	qx := abs32(px) - (halfW - radius)
	qy := abs32(py) - (halfH - radius)

	if qx > 0 && qy > 0 {
		// Outside both axis-aligned half-planes: corner region, use the
		// integer radial distance to the rounded corner.
		d := isqrtU32(uint32(qx*qx + qy*qy))
		return int32(d) - radius
	}
	// Otherwise the nearest boundary is axis-aligned.
	m := max32(qx, qy)
	return m - radius
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

// computeShadowCache builds a fresh ShadowCache for a layer of size (w, h).
// Per spec: alpha=255 inside (distance<=0), 0 beyond spread, quadratic
// falloff in between.
func computeShadowCache(w, h uint32) *ShadowCache {
	cw := int(w) + 2*shadowSpread
	ch := int(h) + 2*shadowSpread
	alpha := make([]byte, cw*ch)

	for y := 0; y < ch; y++ {
		py := int32(y-shadowSpread) - int32(h)/2
		for x := 0; x < cw; x++ {
			px := int32(x-shadowSpread) - int32(w)/2
			dist := roundedRectSDF(px, py, w, h, shadowCornerRad)

			var a uint32
			switch {
			case dist <= 0:
				a = 255
			case dist >= shadowSpread:
				a = 0
			default:
				rem := uint32(shadowSpread - dist)
				a = 255 * rem * rem / (shadowSpread * shadowSpread)
			}
			alpha[y*cw+x] = byte(a)
		}
	}
	return &ShadowCache{W: cw, H: ch, Alpha: alpha}
}

// focusAlpha returns the base alpha (out of 255) a shadow is scaled by,
// depending on whether its layer currently has focus.
func focusAlpha(focused bool) uint32 {
	if focused {
		return shadowFocusedA
	}
	return shadowUnfocusedA
}
