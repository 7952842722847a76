package main

import "testing"

func fillLayerSolid(c *Compositor, id uint32, color [4]byte) {
	c.mu.Lock()
	_, l := c.layers.find(id)
	for i := 0; i < len(l.Source.owned); i += bytesPerPixel {
		copy(l.Source.owned[i:i+4], color[:])
	}
	c.mu.Unlock()
}

func newTestCompositor(w, h int32) *Compositor {
	fb := NewFramebufferView(w, h)
	shm := NewSharedMemory(0)
	return NewCompositor(fb, shm, newSoftwareGPU())
}

func TestComposeOpaqueOverlap(t *testing.T) {
	c := newTestCompositor(200, 200)
	bottom := c.AddLayer(0, 0, 100, 100, true)
	top := c.AddLayer(50, 50, 100, 100, true)

	fillLayerSolid(c, bottom, [4]byte{0, 0, 255, 255}) // red (B, G, R, A)
	fillLayerSolid(c, top, [4]byte{0, 255, 0, 255})    // green

	c.damage.Add(Rect{X: 0, Y: 0, W: 200, H: 200})
	c.Compose()

	bb, stride := c.BackBufferSnapshot()

	px := func(x, y int32) [4]byte {
		off := int(y)*stride + int(x)*bytesPerPixel
		var p [4]byte
		copy(p[:], bb[off:off+4])
		return p
	}

	if got := px(60, 60); got != [4]byte{0, 255, 0, 255} {
		t.Fatalf("overlap region = %v, want green", got)
	}
	if got := px(10, 10); got != [4]byte{0, 0, 255, 255} {
		t.Fatalf("bottom-only region = %v, want red", got)
	}
}

func TestShadowCacheInvalidatedOnResize(t *testing.T) {
	c := newTestCompositor(640, 480)
	id := c.AddLayer(10, 10, 200, 200, true)
	c.SetLayerFlags(id, true, false, 0)
	c.damage.Add(Rect{X: 0, Y: 0, W: 640, H: 480})
	c.Compose()

	c.mu.Lock()
	_, l := c.layers.find(id)
	first := l.ShadowCache
	c.mu.Unlock()
	if first == nil {
		t.Fatalf("expected shadow cache to be populated after compose")
	}
	wantW, wantH := 200+2*shadowSpread, 200+2*shadowSpread
	if first.W != wantW || first.H != wantH {
		t.Fatalf("cache dims = %dx%d, want %dx%d", first.W, first.H, wantW, wantH)
	}

	c.ResizeLayer(id, 300, 300)
	c.Compose()

	c.mu.Lock()
	_, l = c.layers.find(id)
	second := l.ShadowCache
	c.mu.Unlock()
	if second == first {
		t.Fatalf("expected a freshly-recomputed shadow cache after resize")
	}
	wantW, wantH = 300+2*shadowSpread, 300+2*shadowSpread
	if second.W != wantW || second.H != wantH {
		t.Fatalf("cache dims after resize = %dx%d, want %dx%d", second.W, second.H, wantW, wantH)
	}
}

func TestDamageCoversLayerMutation(t *testing.T) {
	c := newTestCompositor(300, 300)
	id := c.AddLayer(0, 0, 50, 50, true)
	c.damage.Drain() // discard damage from AddLayer itself

	c.MoveLayer(id, 100, 100)
	rects := c.damage.Peek()
	if len(rects) == 0 {
		t.Fatalf("expected move to push damage")
	}
	old := Rect{X: 0, Y: 0, W: 50, H: 50}
	want := Rect{X: 100, Y: 100, W: 50, H: 50}
	var coveredOld, coveredNew bool
	for _, r := range rects {
		if r == old {
			coveredOld = true
		}
		if r == want {
			coveredNew = true
		}
	}
	if !coveredOld || !coveredNew {
		t.Fatalf("move damage = %v, want to cover both %v and %v", rects, old, want)
	}
}

func TestDamageAccumulatorCollapsesOnOverflow(t *testing.T) {
	d := newDamageAccumulator(1000, 1000)
	for i := 0; i < damageCeiling+10; i++ {
		d.Add(Rect{X: int32(i), Y: int32(i), W: 1, H: 1})
	}
	rects := d.Peek()
	if len(rects) != 1 {
		t.Fatalf("expected collapse to a single bounding rect, got %d", len(rects))
	}
}

func TestOpaqueRowEquivalentToMemcpy(t *testing.T) {
	w := 40
	dst := make([]byte, w*bytesPerPixel)
	src := make([]byte, w*bytesPerPixel)
	for i := range src {
		src[i] = byte(i + 1)
	}
	for i := 3; i < len(src); i += bytesPerPixel {
		src[i] = 255 // fully opaque
	}
	want := make([]byte, len(dst))
	copy(want, src)

	compositeRowOpaqueRuns(dst, src, w)

	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("opaque row composite != memcpy at byte %d: got %d want %d", i, dst[i], want[i])
		}
	}
}

func TestFlushEngineDoubleBufferReflushesGhosting(t *testing.T) {
	fb := NewFramebufferView(100, 200) // tall: two 100x100 pages
	e := NewFlushEngine(fb, newSoftwareGPU())
	e.EnableDoubleBuffer(100)

	bb := make([]byte, 100*100*bytesPerPixel)
	first := []Rect{{X: 0, Y: 0, W: 10, H: 10}}
	e.Flush(bb, 100*bytesPerPixel, first)

	second := []Rect{{X: 50, Y: 50, W: 5, H: 5}}
	cmds := e.Flush(bb, 100*bytesPerPixel, second)

	var updateCount int
	for _, c := range cmds {
		if c[0] == gpuCmdUpdate {
			updateCount++
		}
	}
	if updateCount < 2 {
		t.Fatalf("expected prior damage to be re-flushed alongside new damage, got %d UPDATE commands", updateCount)
	}
}
