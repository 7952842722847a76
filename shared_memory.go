// shared_memory.go - reference-counted shared pixel regions

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

package main

import (
	"errors"
	"sync"
)

const framePageSize = 4096

// ErrOutOfFrames is returned when the frame allocator cannot satisfy a
// shared-memory create request.
var ErrOutOfFrames = errors.New("shared memory: out of frames")

// frameAllocator hands out opaque page-sized frame handles. Real device
// memory is modeled as plain Go byte slices here; a hosted process has no
// physical frame table to bypass.
type frameAllocator struct {
	mu    sync.Mutex
	next  uint64
	avail int // simulated ceiling; 0 means unlimited
}

func newFrameAllocator(avail int) *frameAllocator {
	return &frameAllocator{avail: avail}
}

func (a *frameAllocator) allocFrame() (*[framePageSize]byte, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.avail > 0 {
		if a.next >= uint64(a.avail) {
			return nil, false
		}
	}
	a.next++
	return &[framePageSize]byte{}, true
}

// SharedRegion is a reference-counted set of page-aligned frames, the
// substrate the compositor's shared-memory layers (per-window pixel
// surfaces) read from. The TCP core does not use shared regions.
type SharedRegion struct {
	ID          uint32
	Frames      []*[framePageSize]byte
	Size        uint64 // bytes, rounded up to page size
	RefCount    uint32
	OwnerThread uint64
}

// SharedMemory is the process-wide region table, behind a single lock.
// main.go constructs one and hands a pointer to the Compositor; TcpStack
// takes no SharedMemory.
type SharedMemory struct {
	mu      sync.Mutex
	regions []*SharedRegion
	nextID  uint32
	alloc   *frameAllocator
}

// NewSharedMemory constructs an empty region table. avail bounds the
// number of frames the allocator can hand out; 0 means unbounded (used by
// tests and the demo in main.go).
func NewSharedMemory(avail int) *SharedMemory {
	return &SharedMemory{nextID: 1, alloc: newFrameAllocator(avail)}
}

// Create allocates size bytes (rounded to page multiples) and registers a
// new region. Frames are pre-allocated into a local slice before the
// table lock is taken, so the lock's critical section never recurses into
// the frame allocator.
func (m *SharedMemory) Create(size uint64, ownerThread uint64) (uint32, error) {
	pages := (size + framePageSize - 1) / framePageSize
	if pages == 0 {
		pages = 1
	}
	frames := make([]*[framePageSize]byte, 0, pages)
	for i := uint64(0); i < pages; i++ {
		f, ok := m.alloc.allocFrame()
		if !ok {
			// Partial failure: give the frames already taken back to the
			// allocator before reporting the error.
			m.alloc.mu.Lock()
			m.alloc.next -= uint64(len(frames))
			m.alloc.mu.Unlock()
			return 0, ErrOutOfFrames
		}
		frames = append(frames, f)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.regions = append(m.regions, &SharedRegion{
		ID:          id,
		Frames:      frames,
		Size:        pages * framePageSize,
		RefCount:    1,
		OwnerThread: ownerThread,
	})
	return id, nil
}

// Map increments the region's reference count, modeling a second address
// space mapping the same frames. Returns false if the id is unknown.
func (m *SharedMemory) Map(id uint32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.find(id)
	if r == nil {
		return false
	}
	r.RefCount++
	return true
}

// Pixels returns a flat copy of the region's frames, usable as an ARGB
// pixel buffer. Frames are stored as fixed-size pages, not one contiguous
// slice, so a caller needing a single byte range gets a fresh copy on
// every call rather than an alias into the region's own storage.
func (m *SharedMemory) Pixels(id uint32) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.find(id)
	if r == nil {
		return nil, false
	}
	buf := make([]byte, 0, r.Size)
	for _, f := range r.Frames {
		buf = append(buf, f[:]...)
	}
	return buf, true
}

// Release decrements the region's reference count; at zero the region is
// removed from the table and its frames are returned to the allocator.
func (m *SharedMemory) Release(id uint32) {
	m.mu.Lock()
	freed := 0
	for i, r := range m.regions {
		if r.ID != id {
			continue
		}
		r.RefCount--
		if r.RefCount == 0 {
			m.regions = append(m.regions[:i], m.regions[i+1:]...)
			freed = len(r.Frames)
		}
		break
	}
	m.mu.Unlock()

	if freed > 0 {
		m.alloc.mu.Lock()
		m.alloc.next -= uint64(freed)
		m.alloc.mu.Unlock()
	}
}

// find must be called with m.mu held.
func (m *SharedMemory) find(id uint32) *SharedRegion {
	for _, r := range m.regions {
		if r.ID == id {
			return r
		}
	}
	return nil
}
