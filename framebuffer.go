// framebuffer.go - framebuffer mapping external interface

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

package main

import "fmt"

// FramebufferError gives detailed context for framebuffer failures, in the
// same Operation/Details/Err shape used throughout this codebase.
type FramebufferError struct {
	Operation string
	Details   string
	Err       error
}

func (e *FramebufferError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("framebuffer %s failed: %s: %v", e.Operation, e.Details, e.Err)
	}
	return fmt.Sprintf("framebuffer %s failed: %s", e.Operation, e.Details)
}

// FramebufferView is the external framebuffer mapping the compositor is
// constructed with: pixel pointer (as a Go slice), width, height, and
// pitch (bytes per row). Pitch may exceed width*bytesPerPixel; rows are
// never assumed contiguous.
type FramebufferView struct {
	Pixels []byte
	Width  int32
	Height int32
	Pitch  int
}

// NewFramebufferView allocates a tightly-packed (pitch == width*4) view,
// the common case for an in-process demo or test.
func NewFramebufferView(width, height int32) *FramebufferView {
	pitch := int(width) * bytesPerPixel
	return &FramebufferView{
		Pixels: make([]byte, pitch*int(height)),
		Width:  width,
		Height: height,
		Pitch:  pitch,
	}
}

// Resize reallocates the view as a tightly-packed buffer of the new
// dimensions. Any pixels from the previous allocation are discarded; the
// caller is expected to re-damage the whole screen afterward.
func (f *FramebufferView) Resize(width, height int32) {
	f.Width = width
	f.Height = height
	f.Pitch = int(width) * bytesPerPixel
	f.Pixels = make([]byte, f.Pitch*int(height))
}

// CopyRect copies a rectangle from src (back buffer, tightly packed
// stride srcStride) into this framebuffer view, honoring a pitch that may
// differ from width*bytesPerPixel.
func (f *FramebufferView) CopyRect(src []byte, srcStride int, r Rect) {
	for y := int32(0); y < int32(r.H); y++ {
		srcOff := (int(r.Y)+int(y))*srcStride + int(r.X)*bytesPerPixel
		dstOff := (int(r.Y)+int(y))*f.Pitch + int(r.X)*bytesPerPixel
		n := int(r.W) * bytesPerPixel
		copy(f.Pixels[dstOff:dstOff+n], src[srcOff:srcOff+n])
	}
}
