// compositor_flush.go - dirty-rectangle flush and GPU command emission

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

package main

import (
	"runtime"
	"sync/atomic"
)

// FlushEngine copies damaged back-buffer rectangles into the framebuffer
// and batches the GPU command records describing them.
type FlushEngine struct {
	fb  *FramebufferView
	gpu gpuBackend

	// flushGeneration is released-stored after every write the flush
	// touches, and is the substitute for the CPU store-fence ("sfence")
	// this repository cannot express portably without assembly: see
	// DESIGN.md. A GPU backend observing a new generation value is
	// guaranteed to observe every byte written before that store.
	flushGeneration atomic.Uint64

	doubleBuffer bool
	pageHeight   int32
	activePage   int32 // 0 or 1, y-offset multiplier into a tall framebuffer
	priorDamage  []Rect

	// cursor state: wantX/Y/Visible is the latest value set by SetCursor;
	// sentX/Y/Visible is what the last Flush emitted. Flush only appends a
	// CURSOR_MOVE/CURSOR_SHOW command when the two disagree, so an idle
	// cursor costs nothing in the command batch.
	wantCursorX, wantCursorY int32
	wantCursorVisible        bool
	sentCursorX, sentCursorY int32
	sentCursorVisible        bool
	cursorSent               bool
}

// SetCursor records the hardware cursor's position and visibility to be
// picked up by the next Flush.
func (e *FlushEngine) SetCursor(x, y int32, visible bool) {
	e.wantCursorX, e.wantCursorY = x, y
	e.wantCursorVisible = visible
}

// cursorChanged reports whether SetCursor has recorded a value the last
// Flush hasn't emitted yet, so Compose can flush a cursor-only update even
// when no layer has rect damage.
func (e *FlushEngine) cursorChanged() bool {
	return !e.cursorSent ||
		e.wantCursorX != e.sentCursorX ||
		e.wantCursorY != e.sentCursorY ||
		e.wantCursorVisible != e.sentCursorVisible
}

// NewFlushEngine constructs a flush engine over fb using backend gpu.
func NewFlushEngine(fb *FramebufferView, gpu gpuBackend) *FlushEngine {
	return &FlushEngine{fb: fb, gpu: gpu, wantCursorVisible: true}
}

// Resize reallocates the underlying framebuffer view to the new
// dimensions and resets double-buffer page tracking, which otherwise
// would reference offsets into the old, now wrong-sized allocation.
func (e *FlushEngine) Resize(width, height int32) {
	e.fb.Resize(width, height)
	e.activePage = 0
	e.priorDamage = nil
}

// EnableDoubleBuffer switches the engine into a mode where it alternates
// between two same-sized pages stacked in a tall framebuffer, re-flushing
// the previous frame's damage to the new page each time to avoid ghosting.
func (e *FlushEngine) EnableDoubleBuffer(pageHeight int32) {
	e.doubleBuffer = true
	e.pageHeight = pageHeight
}

// Flush copies each damaged rectangle from bb (stride backBufferStride)
// into the framebuffer and returns the GPU command batch describing the
// update. It does not submit the batch itself; callers decide when to
// hand it to the gpu backend (see FlushAndSubmit).
func (e *FlushEngine) Flush(bb []byte, backBufferStride int, damage []Rect) []GPUCommand {
	cmds := make([]GPUCommand, 0, len(damage)+1)

	pageOffset := int32(0)
	if e.doubleBuffer {
		pageOffset = e.activePage * e.pageHeight
	}

	toFlush := damage
	if e.doubleBuffer {
		// Always re-flush the prior frame's damage to the new page too,
		// otherwise stale content from two frames back shows through
		// ("ghosting").
		toFlush = append(append([]Rect{}, damage...), e.priorDamage...)
	}

	for _, r := range toFlush {
		target := Rect{X: r.X, Y: r.Y + pageOffset, W: r.W, H: r.H}
		// The back buffer is one page tall: read at r, write at target.
		n := int(r.W) * bytesPerPixel
		for y := int32(0); y < int32(r.H); y++ {
			srcOff := int(r.Y+y)*backBufferStride + int(r.X)*bytesPerPixel
			dstOff := int(target.Y+y)*e.fb.Pitch + int(target.X)*bytesPerPixel
			copy(e.fb.Pixels[dstOff:dstOff+n], bb[srcOff:srcOff+n])
		}
		cmds = append(cmds, updateCmd(target.X, target.Y, target.W, target.H))
	}

	if !e.cursorSent || e.wantCursorX != e.sentCursorX || e.wantCursorY != e.sentCursorY {
		cmds = append(cmds, cursorMoveCmd(e.wantCursorX, e.wantCursorY))
		e.sentCursorX, e.sentCursorY = e.wantCursorX, e.wantCursorY
	}
	if !e.cursorSent || e.wantCursorVisible != e.sentCursorVisible {
		cmds = append(cmds, cursorShowCmd(e.wantCursorVisible))
		e.sentCursorVisible = e.wantCursorVisible
	}
	e.cursorSent = true

	// Release the back-buffer writes before the UPDATE/FLIP commands
	// become visible to whatever consumes the batch.
	runtime.KeepAlive(bb)
	e.flushGeneration.Add(1)

	if e.doubleBuffer {
		cmds = append(cmds, flipCmd())
		e.priorDamage = damage
		e.activePage = 1 - e.activePage
	}

	return cmds
}

// FlushAndSubmit flushes damage and hands the resulting command batch to
// the configured GPU backend.
func (e *FlushEngine) FlushAndSubmit(bb []byte, backBufferStride int, damage []Rect) error {
	cmds := e.Flush(bb, backBufferStride, damage)
	return e.gpu.Submit(cmds, e.fb.Pixels)
}

// Generation returns the flush engine's monotonic flush counter, useful
// for tests asserting a flush actually happened.
func (e *FlushEngine) Generation() uint64 {
	return e.flushGeneration.Load()
}
