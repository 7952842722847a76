// compositor_layer.go - layer table

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

package main

// pixelSource is a tagged union: either the layer owns its pixel buffer,
// or it holds a non-owning view into a shared-memory region.
type pixelSource struct {
	owned    []byte // nil when backed by shared memory
	regionID uint32 // 0 when locally owned
	shm      []byte // cached view, refreshed from SharedMemory on demand
}

// Layer is one entry in the compositor's layer table.
type Layer struct {
	ID     uint32
	X, Y   int32
	W, H   uint32
	Source pixelSource

	Opaque      bool
	Visible     bool
	Shadowed    bool
	BlurBehind  bool
	Focused     bool
	Dirty       bool
	BlurRadius  int
	ShadowCache *ShadowCache
}

func (l *Layer) bounds() Rect {
	return Rect{X: l.X, Y: l.Y, W: l.W, H: l.H}
}

// Pixels returns the layer's current ARGB8888 pixel buffer, reading
// through to shared memory if the layer does not own its buffer.
func (l *Layer) Pixels(shm *SharedMemory) []byte {
	if l.Source.regionID == 0 {
		return l.Source.owned
	}
	buf, ok := shm.Pixels(l.Source.regionID)
	if !ok {
		return nil
	}
	l.Source.shm = buf
	return buf
}

// LayerTable is the ordered, bottom-to-top sequence of layers. It is
// owned exclusively by the compositor's single goroutine: no internal
// locking is required or provided.
type LayerTable struct {
	layers []*Layer
	nextID uint32
	damage *DamageAccumulator
}

func newLayerTable(damage *DamageAccumulator) *LayerTable {
	return &LayerTable{nextID: 1, damage: damage}
}

// AddLayer creates a layer backed by a locally-owned, zeroed pixel buffer.
func (t *LayerTable) AddLayer(x, y int32, w, h uint32, opaque bool) uint32 {
	l := &Layer{
		ID: t.allocID(), X: x, Y: y, W: w, H: h,
		Opaque: opaque, Visible: true,
		Source: pixelSource{owned: make([]byte, int(w)*int(h)*bytesPerPixel)},
	}
	t.layers = append(t.layers, l)
	t.damage.Add(l.bounds())
	return l.ID
}

// AddShmLayer creates a layer whose pixels live in a shared-memory region.
func (t *LayerTable) AddShmLayer(x, y int32, w, h uint32, opaque bool, regionID uint32) uint32 {
	l := &Layer{
		ID: t.allocID(), X: x, Y: y, W: w, H: h,
		Opaque: opaque, Visible: true,
		Source: pixelSource{regionID: regionID},
	}
	t.layers = append(t.layers, l)
	t.damage.Add(l.bounds())
	return l.ID
}

func (t *LayerTable) allocID() uint32 {
	id := t.nextID
	t.nextID++
	return id
}

func (t *LayerTable) find(id uint32) (int, *Layer) {
	for i, l := range t.layers {
		if l.ID == id {
			return i, l
		}
	}
	return -1, nil
}

// Remove pushes damage for the layer's final bounds before removing it.
func (t *LayerTable) Remove(id uint32) {
	i, l := t.find(id)
	if l == nil {
		return
	}
	t.damage.Add(l.bounds())
	t.layers = append(t.layers[:i], t.layers[i+1:]...)
}

// Move relocates a layer, pushing damage for both its old and new bounds.
func (t *LayerTable) Move(id uint32, x, y int32) {
	_, l := t.find(id)
	if l == nil {
		return
	}
	old := l.bounds()
	l.X, l.Y = x, y
	t.damage.Add(old)
	t.damage.Add(l.bounds())
}

// Resize invalidates the shadow cache and replaces the owned pixel buffer
// (if any) with a zeroed buffer of the new dimensions.
func (t *LayerTable) Resize(id uint32, w, h uint32) {
	_, l := t.find(id)
	if l == nil {
		return
	}
	old := l.bounds()
	l.W, l.H = w, h
	if l.Source.regionID == 0 {
		l.Source.owned = make([]byte, int(w)*int(h)*bytesPerPixel)
	}
	l.ShadowCache = nil
	t.damage.Add(old)
	t.damage.Add(l.bounds())
}

// Raise moves the layer to the top of the stacking order.
func (t *LayerTable) Raise(id uint32) {
	i, l := t.find(id)
	if l == nil {
		return
	}
	t.layers = append(t.layers[:i], t.layers[i+1:]...)
	t.layers = append(t.layers, l)
	t.damage.Add(l.bounds())
}

// SetVisible toggles layer visibility, marking damage either way.
func (t *LayerTable) SetVisible(id uint32, visible bool) {
	_, l := t.find(id)
	if l == nil || l.Visible == visible {
		return
	}
	l.Visible = visible
	t.damage.Add(l.bounds())
}

// SetFocus marks id as focused and clears focus on every other layer.
// Shadow intensity is focus-dependent, so both the previously-focused and
// newly-focused layers' shadow-aware bounds are pushed as damage.
func (t *LayerTable) SetFocus(id uint32) {
	for _, l := range t.layers {
		wasFocused := l.Focused
		isFocused := l.ID == id
		if wasFocused == isFocused {
			continue
		}
		l.Focused = isFocused
		if l.Shadowed {
			t.damage.Add(l.bounds().Expand(shadowSpread))
		} else {
			t.damage.Add(l.bounds())
		}
	}
}

// MarkDirty flags a layer's pixels as changed (e.g. after a shared-memory
// client finished writing a frame) and pushes its bounds as damage.
func (t *LayerTable) MarkDirty(id uint32) {
	_, l := t.find(id)
	if l == nil {
		return
	}
	l.Dirty = true
	t.damage.Add(l.bounds())
}
