// compositor_blur.go - separable box-filter background blur

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

package main

// blurBackBufferRegion blurs bb (a full-screen ARGB8888 buffer of the
// given stride) in place, restricted to region, using a separable box
// filter of the given radius repeated passes times (1 = box, 2 = triangle,
// 3 ~= Gaussian). Pixels outside the framebuffer are clamped to the
// nearest edge.
func blurBackBufferRegion(bb []byte, stride int, screenW, screenH int32, region Rect, radius int, passes int) {
	if radius <= 0 || passes <= 0 || region.Empty() {
		return
	}
	for p := 0; p < passes; p++ {
		blurHorizontal(bb, stride, screenW, screenH, region, radius)
		blurVertical(bb, stride, screenW, screenH, region, radius)
	}
}

// blurHorizontal applies a sliding-window box blur along each row of
// region, one color channel at a time.
func blurHorizontal(bb []byte, stride int, screenW, screenH int32, region Rect, radius int) {
	window := 2*radius + 1
	row := make([]uint32, region.W)
	for y := region.Y; y < region.Bottom(); y++ {
		if y < 0 || y >= screenH {
			continue
		}
		for c := 0; c < bytesPerPixel; c++ {
			var sum uint32
			for i := -radius; i <= radius; i++ {
				x := clampInt32(region.X+int32(i), 0, screenW-1)
				sum += uint32(bb[int(y)*stride+int(x)*bytesPerPixel+c])
			}
			for x := region.X; x < region.Right(); x++ {
				row[x-region.X] = sum / uint32(window)
				leave := clampInt32(x-int32(radius), 0, screenW-1)
				enter := clampInt32(x+int32(radius)+1, 0, screenW-1)
				sum -= uint32(bb[int(y)*stride+int(leave)*bytesPerPixel+c])
				sum += uint32(bb[int(y)*stride+int(enter)*bytesPerPixel+c])
			}
			for x := region.X; x < region.Right(); x++ {
				bb[int(y)*stride+int(x)*bytesPerPixel+c] = byte(row[x-region.X])
			}
		}
	}
}

// blurVertical applies a sliding-window box blur along each column of
// region, one color channel at a time.
func blurVertical(bb []byte, stride int, screenW, screenH int32, region Rect, radius int) {
	window := 2*radius + 1
	col := make([]uint32, region.H)
	for x := region.X; x < region.Right(); x++ {
		if x < 0 || x >= screenW {
			continue
		}
		for c := 0; c < bytesPerPixel; c++ {
			var sum uint32
			for i := -radius; i <= radius; i++ {
				y := clampInt32(region.Y+int32(i), 0, screenH-1)
				sum += uint32(bb[int(y)*stride+int(x)*bytesPerPixel+c])
			}
			for y := region.Y; y < region.Bottom(); y++ {
				col[y-region.Y] = sum / uint32(window)
				leave := clampInt32(y-int32(radius), 0, screenH-1)
				enter := clampInt32(y+int32(radius)+1, 0, screenH-1)
				sum -= uint32(bb[int(leave)*stride+int(x)*bytesPerPixel+c])
				sum += uint32(bb[int(enter)*stride+int(x)*bytesPerPixel+c])
			}
			for y := region.Y; y < region.Bottom(); y++ {
				bb[int(y)*stride+int(x)*bytesPerPixel+c] = byte(col[y-region.Y])
			}
		}
	}
}

func clampInt32(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
