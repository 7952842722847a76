// compositor_compose.go - damage-rectangle composition

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

package main

import (
	"golang.org/x/sync/errgroup"
)

const composeStripHeight = 60

// backgroundColor is the desktop fill color (opaque dark gray), ARGB8888.
var backgroundColor = [4]byte{0x20, 0x20, 0x20, 0xff}

// alphaBlend performs straight-over ARGB8888 compositing of src atop dst
// in place. Byte order is B, G, R, A.
func alphaBlend(dst []byte, src []byte) {
	a := uint32(src[3])
	switch a {
	case 0:
		return
	case 255:
		copy(dst[:4], src[:4])
		return
	}
	inv := 255 - a
	for c := 0; c < 3; c++ {
		dst[c] = byte((uint32(src[c])*a + uint32(dst[c])*inv) / 255)
	}
	dstA := uint32(dst[3])
	dst[3] = byte(a + dstA*inv/255)
}

// compositeRowOpaqueRuns blends one source row onto one destination row,
// bulk-copying contiguous fully-opaque runs and alpha-blending everything
// else. w is the number of pixels in the row.
func compositeRowOpaqueRuns(dstRow, srcRow []byte, w int) {
	x := 0
	for x < w {
		off := x * bytesPerPixel
		if srcRow[off+3] == 255 {
			start := x
			for x < w && srcRow[x*bytesPerPixel+3] == 255 {
				x++
			}
			run := (x - start) * bytesPerPixel
			copy(dstRow[start*bytesPerPixel:start*bytesPerPixel+run], srcRow[start*bytesPerPixel:start*bytesPerPixel+run])
			continue
		}
		if srcRow[off+3] == 0 {
			x++
			continue
		}
		alphaBlend(dstRow[off:off+4], srcRow[off:off+4])
		x++
	}
}

// compositeRect draws the visible layer stack into bb (the back buffer,
// stride stride) restricted to rect: background fill,
// then each visible layer bottom-to-top with shadow, blur-behind, and
// opaque-run-aware blending.
func compositeRect(shm *SharedMemory, layers []*Layer, bb []byte, stride int, screenW, screenH int32, rect Rect) {
	fillBackground(bb, stride, rect)

	for _, l := range layers {
		if !l.Visible {
			continue
		}
		overlap, ok := l.bounds().Intersect(rect)
		if !ok {
			if !l.Shadowed {
				continue
			}
		}

		if l.Shadowed {
			drawShadow(bb, stride, screenW, screenH, rect, l)
		}
		if l.BlurBehind && ok {
			blurBackBufferRegion(bb, stride, screenW, screenH, overlap, l.BlurRadius, 2)
		}
		if !ok {
			continue
		}

		pixels := l.Pixels(shm)
		if pixels == nil {
			continue
		}
		compositeLayerOverlap(bb, stride, pixels, l, overlap)
	}
}

func fillBackground(bb []byte, stride int, rect Rect) {
	for y := rect.Y; y < rect.Bottom(); y++ {
		rowOff := int(y)*stride + int(rect.X)*bytesPerPixel
		for x := 0; x < int(rect.W); x++ {
			off := rowOff + x*bytesPerPixel
			copy(bb[off:off+4], backgroundColor[:])
		}
	}
}

// compositeLayerOverlap draws the portion of l's pixels that falls within
// overlap into bb, parallelized across horizontal strips via errgroup the
// way the source frame blender parallelizes its scanline blend.
func compositeLayerOverlap(bb []byte, stride int, srcPixels []byte, l *Layer, overlap Rect) {
	srcStride := int(l.W) * bytesPerPixel
	rows := int(overlap.H)
	if rows <= composeStripHeight {
		compositeStrip(bb, stride, srcPixels, srcStride, l, overlap, overlap.Y, overlap.Bottom())
		return
	}

	var g errgroup.Group
	for y0 := overlap.Y; y0 < overlap.Bottom(); y0 += composeStripHeight {
		y0 := y0
		y1 := min32(y0+composeStripHeight, overlap.Bottom())
		g.Go(func() error {
			compositeStrip(bb, stride, srcPixels, srcStride, l, overlap, y0, y1)
			return nil
		})
	}
	_ = g.Wait()
}

func compositeStrip(bb []byte, stride int, srcPixels []byte, srcStride int, l *Layer, overlap Rect, y0, y1 int32) {
	for y := y0; y < y1; y++ {
		srcY := y - l.Y
		dstOff := int(y)*stride + int(overlap.X)*bytesPerPixel
		srcOff := int(srcY)*srcStride + int(overlap.X-l.X)*bytesPerPixel
		w := int(overlap.W)

		dstRow := bb[dstOff : dstOff+w*bytesPerPixel]
		srcRow := srcPixels[srcOff : srcOff+w*bytesPerPixel]

		if l.Opaque {
			copy(dstRow, srcRow)
			continue
		}
		compositeRowOpaqueRuns(dstRow, srcRow, w)
	}
}

func drawShadow(bb []byte, stride int, screenW, screenH int32, rect Rect, l *Layer) {
	if l.ShadowCache == nil {
		l.ShadowCache = computeShadowCache(l.W, l.H)
	}
	cache := l.ShadowCache
	base := focusAlpha(l.Focused)

	originX := l.X - shadowSpread
	originY := l.Y + shadowVOffset - shadowSpread

	shadowRect := Rect{X: originX, Y: originY, W: uint32(cache.W), H: uint32(cache.H)}
	overlap, ok := shadowRect.Intersect(rect)
	if !ok {
		return
	}

	for y := overlap.Y; y < overlap.Bottom(); y++ {
		cacheY := int(y - originY)
		dstRowOff := int(y) * stride
		for x := overlap.X; x < overlap.Right(); x++ {
			cacheX := int(x - originX)
			a := uint32(cache.Alpha[cacheY*cache.W+cacheX])
			if a == 0 {
				continue
			}
			a = a * base / 255
			px := [4]byte{0, 0, 0, byte(a)}
			off := dstRowOff + int(x)*bytesPerPixel
			alphaBlend(bb[off:off+4], px[:])
		}
	}
}
