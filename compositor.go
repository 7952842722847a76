// compositor.go - the layer-based windowing compositor core

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

package main

import (
	"sync"
	"time"
)

const composeFrequencyHz = 60

// Compositor owns a layer table, a damage accumulator, a back buffer and
// a flush engine. Following the "re-architect as explicit handles" direction,
// it is an explicit value constructed by the caller, not package-level
// global state; the one exception is the shared-memory region table,
// which is intentionally process-wide and passed in by reference.
type Compositor struct {
	mu sync.Mutex

	shm    *SharedMemory
	layers *LayerTable
	damage *DamageAccumulator
	flush  *FlushEngine

	backBuffer []byte
	stride     int
	screenW    int32
	screenH    int32

	done chan struct{}
}

// NewCompositor constructs a compositor targeting fb, with pixels backed
// by shm. The compositor never blocks and owns the framebuffer from a
// single goroutine once Start is called.
func NewCompositor(fb *FramebufferView, shm *SharedMemory, gpu gpuBackend) *Compositor {
	damage := newDamageAccumulator(fb.Width, fb.Height)
	c := &Compositor{
		shm:     shm,
		layers:  newLayerTable(damage),
		damage:  damage,
		flush:   NewFlushEngine(fb, gpu),
		stride:  int(fb.Width) * bytesPerPixel,
		screenW: fb.Width,
		screenH: fb.Height,
		done:    make(chan struct{}),
	}
	c.backBuffer = make([]byte, c.stride*int(fb.Height))
	return c
}

// AddLayer adds a locally-owned layer and returns its id.
func (c *Compositor) AddLayer(x, y int32, w, h uint32, opaque bool) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.layers.AddLayer(x, y, w, h, opaque)
}

// AddShmLayer adds a layer backed by shared memory and returns its id.
func (c *Compositor) AddShmLayer(x, y int32, w, h uint32, opaque bool, regionID uint32) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.layers.AddShmLayer(x, y, w, h, opaque, regionID)
}

func (c *Compositor) RemoveLayer(id uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.layers.Remove(id)
}

func (c *Compositor) MoveLayer(id uint32, x, y int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.layers.Move(id, x, y)
}

func (c *Compositor) ResizeLayer(id uint32, w, h uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.layers.Resize(id, w, h)
}

func (c *Compositor) RaiseLayer(id uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.layers.Raise(id)
}

func (c *Compositor) SetLayerVisible(id uint32, visible bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.layers.SetVisible(id, visible)
}

func (c *Compositor) SetFocus(id uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.layers.SetFocus(id)
}

func (c *Compositor) MarkDirty(id uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.layers.MarkDirty(id)
}

// FillLayerColor overwrites a locally-owned layer's entire pixel buffer
// with a solid ARGB8888 color and marks it dirty. No-op on a shared-memory
// backed layer, whose pixels are owned by its client.
func (c *Compositor) FillLayerColor(id uint32, argb uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, l := c.layers.find(id)
	if l == nil || l.Source.regionID != 0 {
		return
	}
	buf := l.Source.owned
	for i := 0; i < len(buf); i += 4 {
		buf[i+0] = byte(argb)
		buf[i+1] = byte(argb >> 8)
		buf[i+2] = byte(argb >> 16)
		buf[i+3] = byte(argb >> 24)
	}
	l.Dirty = true
	c.damage.Add(l.bounds())
}

// SetCursor updates the hardware cursor's position and visibility, to be
// emitted as CURSOR_MOVE/CURSOR_SHOW commands on the next Compose.
func (c *Compositor) SetCursor(x, y int32, visible bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flush.SetCursor(x, y, visible)
}

// SetLayerFlags configures the shadow/blur flags of an existing layer.
func (c *Compositor) SetLayerFlags(id uint32, shadowed, blurBehind bool, blurRadius int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, l := c.layers.find(id)
	if l == nil {
		return
	}
	l.Shadowed = shadowed
	l.BlurBehind = blurBehind
	l.BlurRadius = blurRadius
	c.damage.Add(l.bounds().Expand(shadowSpread))
}

// Compose runs one compose pass: folds in dirty-layer bounds, drains the
// damage accumulator, composites each rectangle, and flushes to the
// framebuffer. It never returns an error; a layer whose shared-memory
// region has vanished is simply skipped so the compositor always makes
// forward progress with whatever subset of layers is valid.
func (c *Compositor) Compose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.composeLocked()
}

func (c *Compositor) composeLocked() {
	for _, l := range c.layers.layers {
		if l.Dirty {
			c.damage.Add(l.bounds())
			l.Dirty = false
		}
	}

	damage := c.damage.Drain()
	if len(damage) == 0 && !c.flush.cursorChanged() {
		return
	}

	for _, rect := range damage {
		compositeRect(c.shm, c.layers.layers, c.backBuffer, c.stride, c.screenW, c.screenH, rect)
	}

	_ = c.flush.FlushAndSubmit(c.backBuffer, c.stride, damage)
}

// Resize changes the screen dimensions, reallocating the back buffer and
// the flush engine's framebuffer view together so they never disagree on
// size, and damages the whole screen so the next Compose repaints it in
// full.
func (c *Compositor) Resize(w, h int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.screenW, c.screenH = w, h
	c.stride = int(w) * bytesPerPixel
	c.backBuffer = make([]byte, c.stride*int(h))
	c.flush.Resize(w, h)
	c.damage.SetScreenSize(w, h)
	c.damage.Add(Rect{X: 0, Y: 0, W: uint32(w), H: uint32(h)})
}

// Start runs the compose loop on its own goroutine at composeFrequencyHz.
func (c *Compositor) Start() {
	go c.refreshLoop()
}

func (c *Compositor) Stop() {
	close(c.done)
}

func (c *Compositor) refreshLoop() {
	ticker := time.NewTicker(time.Second / composeFrequencyHz)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.Compose()
		}
	}
}

// BackBufferSnapshot returns a copy of the current back buffer, for tests.
func (c *Compositor) BackBufferSnapshot() ([]byte, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]byte, len(c.backBuffer))
	copy(out, c.backBuffer)
	return out, c.stride
}
